package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"abfeedback/api/analysis"
	"abfeedback/api/config"
	"abfeedback/api/dispatch"
	"abfeedback/api/handlers"
	"abfeedback/api/models"
	"abfeedback/api/store"
	"abfeedback/api/utils"
)

const testPassword = "open-sesame"

type testServer struct {
	router *gin.Engine
	mem    *store.MemoryStore
}

func newTestServer(t *testing.T, tweak func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		FEOrigin:              "http://dashboard.test",
		JWTSecret:             []byte("test-secret"),
		DashboardPasswordHash: string(hash),
		DefaultAPIKey:         "static-key",
		DashboardTokenTTL:     time.Hour,
		RateLimitRPS:          1000,
		RateLimitBurst:        1000,
	}
	if tweak != nil {
		tweak(cfg)
	}

	mem := store.NewMemoryStore()
	d := dispatch.New(mem)
	agg := analysis.NewAggregator(nil, mem)

	r := handlers.NewRouter(cfg, handlers.Routes{
		Behavior: handlers.NewBehaviorHandlers(d, mem, nil, agg),
		Feedback: handlers.NewFeedbackHandlers(d, mem, agg),
		Stats:    handlers.NewStatsHandlers(store.NewAnalyticsStore(nil)),
		Variant:  &handlers.VariantHandlers{Coin: func() bool { return true }},
		Auth:     handlers.NewAuthHandlers(cfg.DashboardPasswordHash, cfg.JWTSecret, cfg.DashboardTokenTTL),
	})
	return &testServer{router: r, mem: mem}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func behaviorBody(session, variant string, scroll float64, kinds ...string) map[string]any {
	events := []map[string]any{}
	for _, k := range kinds {
		events = append(events, map[string]any{"type": k, "timestamp": 100, "pagePath": "/"})
	}
	return map[string]any{
		"sessionId": session,
		"variant":   variant,
		"events":    events,
		"metadata":  map[string]any{"pagePath": "/"},
		"summary":   map[string]any{"timeOnPage": 12000, "scrollDepth": scroll, "clickCount": 1, "pagesVisited": []string{"/"}},
	}
}

func TestPostBehavior(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s1", "A", 10, "view"), func(r *http.Request) {
		r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile")
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["shouldRequestFeedback"])
	assert.EqualValues(t, 1, body["storedCount"])

	w = s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s2", "B", 75, "view"))
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["shouldRequestFeedback"])
	assert.EqualValues(t, 2, body["storedCount"])

	stored, err := s.mem.ListBehaviors(context.Background(), store.Filter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.DeviceMobile, stored[0].Metadata.DeviceType)
	assert.False(t, stored[0].Metadata.Timestamp.IsZero())
}

func TestPostBehaviorExitIntentRequestsFeedback(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s1", "A", 0, "view", "exit"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["shouldRequestFeedback"])
}

func TestPostBehaviorRejectsInvalid(t *testing.T) {
	s := newTestServer(t, nil)

	for name, body := range map[string]any{
		"missing session": behaviorBody("", "A", 0),
		"missing variant": behaviorBody("s1", "", 0),
		"unknown variant": behaviorBody("s1", "C", 0),
	} {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/behavior", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/behavior", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, s.mem.BehaviorCount())
}

func TestPostFeedback(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/feedback", map[string]any{
		"sessionId": "s1",
		"variant":   "A",
		"feedback":  map[string]any{"rating": 7},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/feedback", map[string]any{
		"sessionId":       "s1",
		"variant":         "A",
		"behaviorSummary": map[string]any{"timeOnPage": 31000},
		"feedback":        map[string]any{"rating": 4, "comment": "nice"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["feedbackCount"])
}

func TestListEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s1", "A", 10))
	s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s2", "B", 10))
	s.do(t, http.MethodPost, "/api/feedback", map[string]any{"sessionId": "s2", "variant": "B", "feedback": map[string]any{"rating": 3}})

	w := s.do(t, http.MethodGet, "/api/behavior?variant=A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "memory", body["source"])

	w = s.do(t, http.MethodGet, "/api/behavior?sessionId=s2", nil)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = s.do(t, http.MethodGet, "/api/feedback?variant=A", nil)
	body = decode(t, w)
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []any{}, body["feedbacks"])

	w = s.do(t, http.MethodGet, "/api/feedback?variant=Z", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/feedback/analysis?variant=C", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid variant. Must be A or B", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/api/feedback/analysis", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s1", "A", 50, "view", "conversion"))
	s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s2", "A", 50, "view"))
	s.do(t, http.MethodPost, "/api/feedback", map[string]any{"sessionId": "s1", "variant": "A", "feedback": map[string]any{"rating": 5}})

	w = s.do(t, http.MethodGet, "/api/feedback/analysis?variant=A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "memory", w.Header().Get("X-Data-Source"))

	var got models.VariantAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.VariantA, got.Variant)
	assert.InDelta(t, 5.0, got.AvgRating, 1e-9)
	assert.Equal(t, 2, got.BehaviorMetrics.TotalSessions)
	assert.InDelta(t, 50.0, got.BehaviorMetrics.ConversionRate, 1e-9)
	assert.InDelta(t, 60.0, got.BehaviorMetrics.EngagementScore, 1e-9)
	assert.Equal(t, 1, got.FeedbackCount)
}

func TestCompareEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s1", "A", 90))
	s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s2", "B", 10))

	w := s.do(t, http.MethodGet, "/api/feedback/compare", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.VariantComparison
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Metrics, 4)
	for _, m := range got.Metrics {
		switch m.Name {
		case "engagementScore":
			assert.Equal(t, "A", m.Winner)
			assert.InDelta(t, 80.0, m.Difference, 1e-9)
		case "avgTimeOnPage", "avgRating", "conversionRate":
			assert.Equal(t, models.WinnerTie, m.Winner)
		}
	}
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestVariantAssignment(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/variant?test=hero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "A", body["variant"])
	assert.Equal(t, "hero", body["testName"])

	variantCookie := cookieNamed(w, "ab-test-hero")
	sessionCookie := cookieNamed(w, "ab-session")
	require.NotNil(t, variantCookie)
	require.NotNil(t, sessionCookie)
	assert.Zero(t, variantCookie.MaxAge, "variant cookie must end with the browser session")
	assert.Zero(t, sessionCookie.MaxAge, "session cookie must end with the browser session")
	assert.True(t, variantCookie.Expires.IsZero())
	assert.True(t, sessionCookie.Expires.IsZero())
	assert.Equal(t, sessionCookie.Value, body["sessionId"])

	w = s.do(t, http.MethodGet, "/api/variant?test=hero&force=B", nil, func(r *http.Request) {
		r.AddCookie(variantCookie)
		r.AddCookie(sessionCookie)
	})
	body = decode(t, w)
	assert.Equal(t, "B", body["variant"])
	assert.Equal(t, sessionCookie.Value, body["sessionId"])

	w = s.do(t, http.MethodGet, "/api/variant?test=hero", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "ab-test-hero", Value: "B"})
	})
	assert.Equal(t, "B", decode(t, w)["variant"])

	w = s.do(t, http.MethodGet, "/api/variant?force=X", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVariantAssignmentRejectsBadTestName(t *testing.T) {
	s := newTestServer(t, nil)

	for _, name := range []string{"hero%20banner", "a%3Bb", "a=b", "%C3%A9", strings.Repeat("x", 65)} {
		w := s.do(t, http.MethodGet, "/api/variant?test="+name, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Empty(t, w.Result().Cookies(), name)
	}

	w := s.do(t, http.MethodGet, "/api/variant?test=checkout_v2-b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, cookieNamed(w, "ab-test-checkout_v2-b"))
}

func TestStatsRequireAuth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/stats/top-paths", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/stats/top-paths", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/stats/top-paths", nil, func(r *http.Request) {
		r.Header.Set("X-API-KEY", "static-key")
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsValidatesParameters(t *testing.T) {
	s := newTestServer(t, nil)
	auth := func(r *http.Request) { r.Header.Set("X-API-KEY", "static-key") }

	for _, path := range []string{
		"/api/stats/event-counts",
		"/api/stats/event-counts?interval=Fortnight",
		"/api/stats/event-counts?interval=Day&start=yesterday",
		"/api/stats/event-counts?interval=Day&variant=C",
		"/api/stats/top-paths?limit=0",
		"/api/stats/top-paths?start=2024-02-01T00:00:00Z&end=2024-01-01T00:00:00Z",
	} {
		w := s.do(t, http.MethodGet, path, nil, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestDashboardLogin(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/dashboard/login", map[string]any{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/dashboard/login", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/dashboard/login", map[string]any{"password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	token := cookieNamed(w, utils.DashboardCookie)
	require.NotNil(t, token)
	assert.True(t, token.HttpOnly)

	w = s.do(t, http.MethodGet, "/api/stats/top-paths", nil, func(r *http.Request) { r.AddCookie(token) })
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodPost, "/api/dashboard/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := cookieNamed(w, utils.DashboardCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestDashboardLoginDisabledWithoutHash(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.DashboardPasswordHash = "" })
	w := s.do(t, http.MethodPost, "/api/dashboard/login", map[string]any{"password": testPassword})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIngestionIsRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 2
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(t, http.MethodPost, "/api/behavior", behaviorBody("s1", "A", 0)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := s.do(t, http.MethodGet, "/api/behavior", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodOptions, "/api/behavior", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://dashboard.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
