package models

import (
	"errors"
	"time"
)

var (
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrMissingVariant   = errors.New("variant is required")
	ErrInvalidVariant   = errors.New("invalid variant. Must be A or B")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
)

// Variant is one of the two treatments a session is assigned to.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// Variants lists every assignable variant in display order.
var Variants = []Variant{VariantA, VariantB}

func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

// ParseVariant accepts exactly "A" or "B".
func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return "", ErrMissingVariant
	}
	v := Variant(s)
	if !v.Valid() {
		return "", ErrInvalidVariant
	}
	return v, nil
}

type EventKind string

const (
	EventView       EventKind = "view"
	EventClick      EventKind = "click"
	EventScroll     EventKind = "scroll"
	EventHover      EventKind = "hover"
	EventExit       EventKind = "exit"
	EventConversion EventKind = "conversion"
)

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// BehaviorEvent is one discrete interaction. OffsetMs is measured from the
// start of the page view the event happened on.
type BehaviorEvent struct {
	Type     EventKind `json:"type"`
	Element  string    `json:"element,omitempty"`
	OffsetMs int64     `json:"timestamp"`
	Value    any       `json:"value,omitempty"`
	PagePath string    `json:"pagePath"`
}

// ClickPosition is the payload recorded with click events.
type ClickPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type SessionSummary struct {
	TimeOnPage   int64    `json:"timeOnPage"`
	ScrollDepth  float64  `json:"scrollDepth"`
	ClickCount   int      `json:"clickCount"`
	PagesVisited []string `json:"pagesVisited"`
}

// Clone returns a copy that shares no slices with s.
func (s SessionSummary) Clone() SessionSummary {
	c := s
	c.PagesVisited = append([]string(nil), s.PagesVisited...)
	return c
}

type BehaviorMetadata struct {
	PagePath   string     `json:"pagePath"`
	Referrer   string     `json:"referrer,omitempty"`
	DeviceType DeviceType `json:"deviceType"`
	UserAgent  string     `json:"userAgent,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// BehaviorRecord is the unit submitted to storage: a snapshot of one
// session's event log and summary.
type BehaviorRecord struct {
	SessionID string           `json:"sessionId"`
	UserID    string           `json:"userId,omitempty"`
	Variant   Variant          `json:"variant"`
	Events    []BehaviorEvent  `json:"events"`
	Metadata  BehaviorMetadata `json:"metadata"`
	Summary   SessionSummary   `json:"summary"`
}

func (r *BehaviorRecord) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	if _, err := ParseVariant(string(r.Variant)); err != nil {
		return err
	}
	return nil
}

// Clone returns a copy that shares no slices with r. Event values are
// treated as immutable.
func (r BehaviorRecord) Clone() BehaviorRecord {
	c := r
	c.Events = append([]BehaviorEvent(nil), r.Events...)
	c.Summary = r.Summary.Clone()
	return c
}

// HasEvent reports whether the log holds at least one event of kind k.
func (r *BehaviorRecord) HasEvent(k EventKind) bool {
	return ContainsKind(r.Events, k)
}

func ContainsKind(events []BehaviorEvent, k EventKind) bool {
	for _, e := range events {
		if e.Type == k {
			return true
		}
	}
	return false
}
