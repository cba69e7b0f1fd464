// Package variant assigns sessions to A/B treatments.
package variant

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"abfeedback/api/models"
	"abfeedback/api/utils"
)

const DefaultTestName = "default"

// Session is the explicit session context threaded through the recorder and
// the HTTP layer.
type Session struct {
	ID       string         `json:"sessionId"`
	Variant  models.Variant `json:"variant"`
	TestName string         `json:"testName"`
}

// SessionStore is a session-scoped key-value store, e.g. a browser session
// storage or a session cookie jar.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// StorageKey is the key under which a test's variant is persisted.
func StorageKey(testName string) string {
	if testName == "" {
		testName = DefaultTestName
	}
	return "ab-test-" + testName
}

type Assigner struct {
	store SessionStore
	coin  func() bool
}

// NewAssigner flips a fair coin for new sessions. coin may be nil.
func NewAssigner(store SessionStore, coin func() bool) *Assigner {
	if coin == nil {
		coin = func() bool { return rand.IntN(2) == 0 }
	}
	return &Assigner{store: store, coin: coin}
}

// Assign returns the variant for testName. A valid override wins and is
// persisted; otherwise a stored choice is reused; otherwise a new one is drawn
// and persisted.
func (a *Assigner) Assign(testName string, override models.Variant) models.Variant {
	key := StorageKey(testName)

	if override.Valid() {
		a.store.Set(key, string(override))
		return override
	}
	if stored, ok := a.store.Get(key); ok {
		if v := models.Variant(stored); v.Valid() {
			return v
		}
	}

	v := models.VariantB
	if a.coin() {
		v = models.VariantA
	}
	a.store.Set(key, string(v))
	return v
}

// NewSession assigns a variant and generates a fresh session id.
func (a *Assigner) NewSession(testName string, override models.Variant, now time.Time) Session {
	if testName == "" {
		testName = DefaultTestName
	}
	return Session{
		ID:       utils.GenerateSessionID(now),
		Variant:  a.Assign(testName, override),
		TestName: testName,
	}
}

// FromSessionID derives a variant from the parity of the millisecond prefix
// of a session id. It is an alternate deterministic strategy; Assign does not
// use it.
func FromSessionID(sessionID string) models.Variant {
	prefix, _, _ := strings.Cut(sessionID, "-")
	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || n%2 != 0 {
		return models.VariantB
	}
	return models.VariantA
}

// MapStore is an in-process SessionStore.
type MapStore map[string]string

func (m MapStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapStore) Set(key, value string) { m[key] = value }
