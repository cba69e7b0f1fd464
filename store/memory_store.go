package store

import (
	"context"
	"sync"

	"abfeedback/api/models"
)

// MemoryStore keeps records in process memory. It is the always-available
// local collaborator on the server.
type MemoryStore struct {
	mu        sync.RWMutex
	behaviors []models.BehaviorRecord
	feedbacks []models.FeedbackRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) SaveBehavior(_ context.Context, rec *models.BehaviorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behaviors = append(s.behaviors, rec.Clone())
	return nil
}

func (s *MemoryStore) SaveFeedback(_ context.Context, rec *models.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbacks = append(s.feedbacks, rec.Clone())
	return nil
}

func (s *MemoryStore) ListBehaviors(_ context.Context, f Filter) ([]models.BehaviorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.filterBehaviors(s.behaviors), nil
}

func (s *MemoryStore) ListFeedbacks(_ context.Context, f Filter) ([]models.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.filterFeedbacks(s.feedbacks), nil
}

func (s *MemoryStore) BehaviorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.behaviors)
}

func (s *MemoryStore) FeedbackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feedbacks)
}
