package models

import "time"

// FeedbackDetails is what the visitor answered in the prompt. Rating is a
// pointer so that "not rated" survives storage round trips.
type FeedbackDetails struct {
	Rating    *float64  `json:"rating,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Question  string    `json:"question,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type FeedbackRecord struct {
	SessionID       string          `json:"sessionId"`
	Variant         Variant         `json:"variant"`
	BehaviorSummary SessionSummary  `json:"behaviorSummary"`
	Feedback        FeedbackDetails `json:"feedback"`
}

func (f *FeedbackRecord) Validate() error {
	if f.SessionID == "" {
		return ErrMissingSessionID
	}
	if _, err := ParseVariant(string(f.Variant)); err != nil {
		return err
	}
	if r := f.Feedback.Rating; r != nil && (*r < 1 || *r > 5) {
		return ErrInvalidRating
	}
	return nil
}

// Clone returns a copy that shares no memory with f.
func (f FeedbackRecord) Clone() FeedbackRecord {
	c := f
	c.BehaviorSummary = f.BehaviorSummary.Clone()
	if f.Feedback.Rating != nil {
		r := *f.Feedback.Rating
		c.Feedback.Rating = &r
	}
	return c
}

// Rate is a convenience for building a rating pointer.
func Rate(v int) *float64 {
	f := float64(v)
	return &f
}
