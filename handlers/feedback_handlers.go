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
)

type FeedbackHandlers struct {
	Dispatcher *dispatch.Dispatcher
	Counter    store.Counter
	Aggregator *analysis.Aggregator
}

func NewFeedbackHandlers(d *dispatch.Dispatcher, counter store.Counter, agg *analysis.Aggregator) *FeedbackHandlers {
	return &FeedbackHandlers{Dispatcher: d, Counter: counter, Aggregator: agg}
}

func (h *FeedbackHandlers) PostFeedback(c *gin.Context) {
	var rec models.FeedbackRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		log.Printf("Error binding feedback JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feedback data"})
		return
	}
	if err := rec.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feedback data", "details": err.Error()})
		return
	}
	if rec.Feedback.Timestamp.IsZero() {
		rec.Feedback.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Dispatcher.SubmitFeedback(ctx, &rec); err != nil {
		log.Printf("Error storing feedback for session %s: %v", rec.SessionID, err)
		if errors.Is(err, dispatch.ErrNoSinkAccepted) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record feedback"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"feedbackCount": h.Counter.FeedbackCount(),
	})
}

func (h *FeedbackHandlers) ListFeedbacks(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	feedbacks, source := h.Aggregator.Sources().Feedbacks(ctx, f)
	if feedbacks == nil {
		feedbacks = []models.FeedbackRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"feedbacks": feedbacks,
		"count":     len(feedbacks),
		"source":    source,
	})
}

// Analysis returns the VariantAnalysis for ?variant=A|B.
func (h *FeedbackHandlers) Analysis(c *gin.Context) {
	v, err := models.ParseVariant(c.Query("variant"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidVariant.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, source, err := h.Aggregator.Analyze(ctx, v)
	if err != nil {
		log.Printf("Error analyzing variant %s: %v", v, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.Header("X-Data-Source", source)
	c.JSON(http.StatusOK, result)
}

func (h *FeedbackHandlers) Compare(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	c.JSON(http.StatusOK, h.Aggregator.CompareVariants(ctx))
}
