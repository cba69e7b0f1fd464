package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"abfeedback/api/models"
)

const capacityMarker = "Max number of elements"

// RESTSink posts records as JSON to a REST resource. It is used both for the
// mock REST resource (/behaviors, /feedbacks) and for the ingestion API
// (/api/behavior, /api/feedback).
type RESTSink struct {
	name          string
	baseURL       string
	behaviorsPath string
	feedbacksPath string
	client        *http.Client
}

func NewRESTSink(name, baseURL, behaviorsPath, feedbacksPath string, client *http.Client) *RESTSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTSink{
		name:          name,
		baseURL:       strings.TrimRight(baseURL, "/"),
		behaviorsPath: behaviorsPath,
		feedbacksPath: feedbacksPath,
		client:        client,
	}
}

// NewMockAPISink targets a mock REST resource with behaviors and feedbacks
// collections.
func NewMockAPISink(baseURL string, client *http.Client) *RESTSink {
	return NewRESTSink("mockapi", baseURL, "/behaviors", "/feedbacks", client)
}

// NewIngestSink targets this service's own ingestion endpoints.
func NewIngestSink(baseURL string, client *http.Client) *RESTSink {
	return NewRESTSink("ingest-api", baseURL, "/api/behavior", "/api/feedback", client)
}

func (s *RESTSink) Name() string { return s.name }

func (s *RESTSink) Configured() bool { return s != nil && s.baseURL != "" }

func (s *RESTSink) SaveBehavior(ctx context.Context, rec *models.BehaviorRecord) error {
	return s.post(ctx, s.behaviorsPath, rec)
}

func (s *RESTSink) SaveFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	return s.post(ctx, s.feedbacksPath, rec)
}

func (s *RESTSink) post(ctx context.Context, path string, v any) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		log.Printf("[%s] stored %s (%d)", s.name, path, resp.StatusCode)
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrResourceMissing)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(respBody), capacityMarker):
		return fmt.Errorf("%s: %w", path, ErrCapacity)
	default:
		return fmt.Errorf("%s responded %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}
