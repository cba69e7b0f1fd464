package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"abfeedback/api/utils"
)

// AuthRequired admits requests carrying the static X-API-KEY or a valid
// dashboard JWT from the cookie or an Authorization bearer header.
func AuthRequired(secret []byte, defaultAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if defaultAPIKey != "" && c.GetHeader("X-API-KEY") == defaultAPIKey {
			c.Set("auth_method", "api_key")
			c.Next()
			return
		}

		tokenString, err := c.Cookie(utils.DashboardCookie)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if tokenString == "" {
				log.Println("AuthRequired: No JWT token found in cookie or header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
				return
			}
		}

		claims, err := utils.ValidateJWT(secret, tokenString)
		if err != nil {
			log.Printf("AuthRequired: Invalid JWT token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("auth_method", "jwt")
		c.Set("auth_subject", claims.Subject)
		c.Next()
	}
}
