package models

import (
	"encoding/json"
	"time"
)

// AnalyticsEvent is one flattened row of the analytics_events table. Every
// behavior event and every feedback submission becomes one row.
type AnalyticsEvent struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	SessionID  string          `json:"sessionId"`
	Variant    string          `json:"variant"`
	Timestamp  time.Time       `json:"timestamp"`
	PagePath   string          `json:"pagePath"`
	Element    string          `json:"element"`
	OffsetMs   int64           `json:"offsetMs"`
	Referrer   string          `json:"referrer"`
	UserAgent  string          `json:"userAgent"`
	DeviceType string          `json:"deviceType"`
	EventData  json.RawMessage `json:"eventData,omitempty"`
}

// EventTypeFeedback marks analytics rows produced from feedback submissions.
const EventTypeFeedback = "feedback"

type TopPathResult struct {
	PagePath string `json:"pagePath"`
	Count    uint64 `json:"count"`
}
