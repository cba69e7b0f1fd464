package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"abfeedback/api/store"
	"abfeedback/api/utils"
)

const defaultStatsWindow = 7 * 24 * time.Hour

// StatsHandlers serves dashboard queries over the flattened event store.
type StatsHandlers struct {
	EventStore *store.AnalyticsStore
}

func NewStatsHandlers(s *store.AnalyticsStore) *StatsHandlers {
	return &StatsHandlers{EventStore: s}
}

func (h *StatsHandlers) available(c *gin.Context) bool {
	if h.EventStore.Configured() {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event store is not configured"})
	return false
}

// parseTimeRange reads RFC3339 start and end. start defaults to seven days
// before now and end to now.
func parseTimeRange(c *gin.Context) (start, end time.Time, ok bool) {
	now := time.Now().UTC()
	start, end = now.Add(-defaultStatsWindow), now

	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
		start = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
		end = t
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'end' must not be before 'start'"})
		return start, end, false
	}
	return start, end, true
}

func (h *StatsHandlers) GetEventCountsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	start, end, ok := parseTimeRange(c)
	if !ok || !h.available(c) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.EventStore.GetEventCountsOverTime(ctx, interval, start, end, f.Variant, c.Query("eventType"))
	if err != nil {
		log.Printf("Error getting event counts over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetUniqueSessionsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	start, end, ok := parseTimeRange(c)
	if !ok || !h.available(c) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.EventStore.GetUniqueSessionsOverTime(ctx, interval, start, end, f.Variant)
	if err != nil {
		log.Printf("Error getting unique sessions over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unique session statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetTopNPagePaths(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}
	if !h.available(c) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.EventStore.GetTopNPagePaths(ctx, start, end, f.Variant, limit)
	if err != nil {
		log.Printf("Error getting top page paths: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top page paths statistics"})
		return
	}
	c.JSON(http.StatusOK, results)
}
