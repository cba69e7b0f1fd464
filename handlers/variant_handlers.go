package handlers

import (
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"abfeedback/api/models"
	"abfeedback/api/utils"
	"abfeedback/api/variant"
)

const sessionCookie = "ab-session"

// testNamePattern keeps test names usable as cookie name suffixes.
var testNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// cookieStore persists variant choices in browser session cookies. They are
// dropped when the browser session ends.
type cookieStore struct {
	c *gin.Context
}

func (s cookieStore) Get(key string) (string, bool) {
	v, err := s.c.Cookie(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (s cookieStore) Set(key, value string) {
	s.c.SetCookie(key, value, 0, "/", "", false, false)
}

type VariantHandlers struct {
	// Coin overrides the fair coin used for new visitors.
	Coin func() bool
}

func NewVariantHandlers() *VariantHandlers {
	return &VariantHandlers{}
}

// Assign returns the visitor's variant for ?test= and their session id.
// ?force=A|B pins the variant.
func (h *VariantHandlers) Assign(c *gin.Context) {
	testName := c.DefaultQuery("test", variant.DefaultTestName)
	if !testNamePattern.MatchString(testName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'test' parameter. Use letters, digits, '-' or '_' (max 64)."})
		return
	}

	var override models.Variant
	if raw := c.Query("force"); raw != "" {
		v, err := models.ParseVariant(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidVariant.Error()})
			return
		}
		override = v
	}

	store := cookieStore{c: c}
	v := variant.NewAssigner(store, h.Coin).Assign(testName, override)

	sessionID, ok := store.Get(sessionCookie)
	if !ok {
		sessionID = utils.GenerateSessionID(time.Now())
		store.Set(sessionCookie, sessionID)
	}

	c.JSON(http.StatusOK, variant.Session{ID: sessionID, Variant: v, TestName: testName})
}
