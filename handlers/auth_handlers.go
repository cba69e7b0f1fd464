package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"abfeedback/api/utils"
)

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthHandlers guards the analysis dashboard with a single shared password.
type AuthHandlers struct {
	PasswordHash []byte
	Secret       []byte
	TokenTTL     time.Duration
}

func NewAuthHandlers(passwordHash string, secret []byte, ttl time.Duration) *AuthHandlers {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthHandlers{PasswordHash: []byte(passwordHash), Secret: secret, TokenTTL: ttl}
}

// Login checks the dashboard password and issues a JWT cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if len(h.PasswordHash) == 0 {
		log.Println("Dashboard login attempted but DASHBOARD_PASSWORD_HASH is not set")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dashboard login is disabled"})
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.PasswordHash, []byte(req.Password)); err != nil {
		log.Printf("Dashboard login failed from %s: password mismatch", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := utils.GenerateJWT(h.Secret, "dashboard", h.TokenTTL)
	if err != nil {
		log.Printf("ERROR: Failed to generate dashboard JWT: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetCookie(
		utils.DashboardCookie,
		tokenString,
		int(h.TokenTTL/time.Second),
		"/",
		"",
		false,
		true,
	)

	log.Printf("Dashboard login from %s. JWT issued.", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie(utils.DashboardCookie, "", -1, "/", "", false, true)

	log.Println("Dashboard logged out (JWT cookie cleared).")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
