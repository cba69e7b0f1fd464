// Package store holds the storage collaborators that behavior and feedback
// records are written to and read back from.
package store

import (
	"context"
	"errors"

	"abfeedback/api/models"
)

var (
	// ErrNotConfigured is returned without any I/O by collaborators whose
	// backing service was not configured.
	ErrNotConfigured = errors.New("storage collaborator is not configured")
	// ErrCapacity means the remote resource refused the write because it
	// reached its element limit.
	ErrCapacity = errors.New("storage collaborator reached its element limit")
	// ErrResourceMissing means the remote collection does not exist.
	ErrResourceMissing = errors.New("storage collaborator resource not found")
)

// Sink accepts finalized records.
type Sink interface {
	Name() string
	SaveBehavior(ctx context.Context, rec *models.BehaviorRecord) error
	SaveFeedback(ctx context.Context, rec *models.FeedbackRecord) error
}

// Source returns stored records matching a filter.
type Source interface {
	Name() string
	ListBehaviors(ctx context.Context, f Filter) ([]models.BehaviorRecord, error)
	ListFeedbacks(ctx context.Context, f Filter) ([]models.FeedbackRecord, error)
}

// Counter reports running totals for ingestion acknowledgements.
type Counter interface {
	BehaviorCount() int
	FeedbackCount() int
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Variant   models.Variant
	SessionID string
}

func (f Filter) matches(sessionID string, variant models.Variant) bool {
	if f.Variant != "" && f.Variant != variant {
		return false
	}
	if f.SessionID != "" && f.SessionID != sessionID {
		return false
	}
	return true
}

// filterBehaviors returns deep copies of the matching records.
func (f Filter) filterBehaviors(all []models.BehaviorRecord) []models.BehaviorRecord {
	out := make([]models.BehaviorRecord, 0, len(all))
	for _, b := range all {
		if f.matches(b.SessionID, b.Variant) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (f Filter) filterFeedbacks(all []models.FeedbackRecord) []models.FeedbackRecord {
	out := make([]models.FeedbackRecord, 0, len(all))
	for _, fb := range all {
		if f.matches(fb.SessionID, fb.Variant) {
			out = append(out, fb.Clone())
		}
	}
	return out
}
