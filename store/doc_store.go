package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"abfeedback/api/models"
)

const docStoreSchema = `
CREATE TABLE IF NOT EXISTS behaviors (
	id         UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT,
	variant    TEXT NOT NULL,
	events     JSONB NOT NULL DEFAULT '[]',
	metadata   JSONB NOT NULL DEFAULT '{}',
	summary    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_behaviors_variant_created ON behaviors (variant, created_at DESC);

CREATE TABLE IF NOT EXISTS feedbacks (
	id               UUID PRIMARY KEY,
	session_id       TEXT NOT NULL,
	variant          TEXT NOT NULL,
	behavior_summary JSONB NOT NULL DEFAULT '{}',
	feedback         JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_feedbacks_variant_created ON feedbacks (variant, created_at DESC);
`

// DocStore is the remote document store: two Postgres tables holding JSONB
// documents, filtered by variant and ordered by recency. A DocStore without
// a database handle reports ErrNotConfigured on every call.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func (s *DocStore) Name() string { return "docstore" }

func (s *DocStore) Configured() bool { return s != nil && s.db != nil }

func (s *DocStore) EnsureSchema(ctx context.Context) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if _, err := s.db.ExecContext(ctx, docStoreSchema); err != nil {
		return fmt.Errorf("failed to apply document store schema: %w", err)
	}
	return nil
}

func (s *DocStore) SaveBehavior(ctx context.Context, rec *models.BehaviorRecord) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	events, err := json.Marshal(rec.Events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	id := uuid.New()
	query := `
		INSERT INTO behaviors (id, session_id, user_id, variant, events, metadata, summary)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7);
	`
	if _, err := s.db.ExecContext(ctx, query, id, rec.SessionID, rec.UserID, string(rec.Variant), string(events), string(metadata), string(summary)); err != nil {
		return fmt.Errorf("failed to insert behavior: %w", err)
	}

	log.Printf("[DocStore] behavior stored: id=%s session=%s events=%d", id, rec.SessionID, len(rec.Events))
	return nil
}

func (s *DocStore) SaveFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	summary, err := json.Marshal(rec.BehaviorSummary)
	if err != nil {
		return fmt.Errorf("failed to encode behavior summary: %w", err)
	}
	feedback, err := json.Marshal(rec.Feedback)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}

	id := uuid.New()
	query := `
		INSERT INTO feedbacks (id, session_id, variant, behavior_summary, feedback)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := s.db.ExecContext(ctx, query, id, rec.SessionID, string(rec.Variant), string(summary), string(feedback)); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	log.Printf("[DocStore] feedback stored: id=%s session=%s", id, rec.SessionID)
	return nil
}

func (s *DocStore) ListBehaviors(ctx context.Context, f Filter) ([]models.BehaviorRecord, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	query := `
		SELECT session_id, COALESCE(user_id, ''), variant, events, metadata, summary, created_at
		FROM behaviors
		WHERE ($1 = '' OR variant = $1) AND ($2 = '' OR session_id = $2)
		ORDER BY created_at DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, string(f.Variant), f.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query behaviors: %w", err)
	}
	defer rows.Close()

	results := []models.BehaviorRecord{}
	for rows.Next() {
		var (
			rec                       models.BehaviorRecord
			variant                   string
			events, metadata, summary []byte
			createdAt                 time.Time
		)
		if err := rows.Scan(&rec.SessionID, &rec.UserID, &variant, &events, &metadata, &summary, &createdAt); err != nil {
			log.Printf("[DocStore] error scanning behavior row: %v", err)
			continue
		}
		rec.Variant = models.Variant(variant)
		decodeDocument("events", events, &rec.Events)
		decodeDocument("metadata", metadata, &rec.Metadata)
		decodeDocument("summary", summary, &rec.Summary)
		if rec.Events == nil {
			rec.Events = []models.BehaviorEvent{}
		}
		if rec.Metadata.Timestamp.IsZero() {
			rec.Metadata.Timestamp = createdAt
		}
		if rec.Metadata.DeviceType == "" {
			rec.Metadata.DeviceType = models.DeviceDesktop
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during behaviors query: %w", err)
	}
	return results, nil
}

func (s *DocStore) ListFeedbacks(ctx context.Context, f Filter) ([]models.FeedbackRecord, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	query := `
		SELECT session_id, variant, behavior_summary, feedback, created_at
		FROM feedbacks
		WHERE ($1 = '' OR variant = $1) AND ($2 = '' OR session_id = $2)
		ORDER BY created_at DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, string(f.Variant), f.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedbacks: %w", err)
	}
	defer rows.Close()

	results := []models.FeedbackRecord{}
	for rows.Next() {
		var (
			rec               models.FeedbackRecord
			variant           string
			summary, feedback []byte
			createdAt         time.Time
		)
		if err := rows.Scan(&rec.SessionID, &variant, &summary, &feedback, &createdAt); err != nil {
			log.Printf("[DocStore] error scanning feedback row: %v", err)
			continue
		}
		rec.Variant = models.Variant(variant)
		decodeDocument("behavior_summary", summary, &rec.BehaviorSummary)
		decodeDocument("feedback", feedback, &rec.Feedback)
		if rec.Feedback.Timestamp.IsZero() {
			rec.Feedback.Timestamp = createdAt
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during feedbacks query: %w", err)
	}
	return results, nil
}

// decodeDocument leaves dst at its zero value when the column is malformed.
func decodeDocument[T any](column string, data []byte, dst *T) {
	if len(data) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log.Printf("[DocStore] malformed %s document, using defaults: %v", column, err)
		return
	}
	*dst = v
}
