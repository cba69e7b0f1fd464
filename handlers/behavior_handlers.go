package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"abfeedback/api/analysis"
	"abfeedback/api/dispatch"
	"abfeedback/api/models"
	"abfeedback/api/store"
	"abfeedback/api/trigger"
	"abfeedback/api/utils"
)

type BehaviorHandlers struct {
	Dispatcher *dispatch.Dispatcher
	Counter    store.Counter
	Evaluator  *trigger.Evaluator
	Aggregator *analysis.Aggregator
}

func NewBehaviorHandlers(d *dispatch.Dispatcher, counter store.Counter, ev *trigger.Evaluator, agg *analysis.Aggregator) *BehaviorHandlers {
	if ev == nil {
		ev = trigger.Default()
	}
	return &BehaviorHandlers{Dispatcher: d, Counter: counter, Evaluator: ev, Aggregator: agg}
}

// PostBehavior stores a behavior snapshot and tells the client whether the
// feedback prompt should be shown.
func (h *BehaviorHandlers) PostBehavior(c *gin.Context) {
	var rec models.BehaviorRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		log.Printf("Error binding behavior JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid behavior data"})
		return
	}
	if err := rec.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid behavior data", "details": err.Error()})
		return
	}

	if rec.Metadata.UserAgent == "" {
		rec.Metadata.UserAgent = c.Request.UserAgent()
	}
	if rec.Metadata.DeviceType == "" {
		rec.Metadata.DeviceType = utils.DeviceTypeFromUserAgent(rec.Metadata.UserAgent)
	}
	if rec.Metadata.Timestamp.IsZero() {
		rec.Metadata.Timestamp = time.Now().UTC()
	}
	if rec.Events == nil {
		rec.Events = []models.BehaviorEvent{}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Dispatcher.SubmitBehavior(ctx, &rec); err != nil {
		log.Printf("Error storing behavior for session %s: %v", rec.SessionID, err)
		if errors.Is(err, dispatch.ErrNoSinkAccepted) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record behavior"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"shouldRequestFeedback": h.Evaluator.Evaluate(rec.Summary, rec.Events, rec.Variant),
		"storedCount":           h.Counter.BehaviorCount(),
	})
}

// ListBehaviors returns stored snapshots filtered by sessionId and variant.
func (h *BehaviorHandlers) ListBehaviors(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	f.SessionID = c.Query("sessionId")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	behaviors, source := h.Aggregator.Sources().Behaviors(ctx, f)
	if behaviors == nil {
		behaviors = []models.BehaviorRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"behaviors": behaviors,
		"count":     len(behaviors),
		"source":    source,
	})
}

// bindFilter reads an optional variant query parameter. An unknown variant
// is a 400.
func bindFilter(c *gin.Context) (store.Filter, bool) {
	raw := c.Query("variant")
	if raw == "" {
		return store.Filter{}, true
	}
	v, err := models.ParseVariant(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidVariant.Error()})
		return store.Filter{}, false
	}
	return store.Filter{Variant: v}, true
}
