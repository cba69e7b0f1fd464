// Package dispatch delivers finalized records to an ordered list of storage
// collaborators on a best-effort basis.
package dispatch

import (
	"context"
	"errors"
	"log"

	"abfeedback/api/models"
	"abfeedback/api/store"
)

// ErrNoSinkAccepted is returned when every sink, the local one included,
// rejected the record.
var ErrNoSinkAccepted = errors.New("no storage sink accepted the record")

// Dispatcher writes the local sink first and synchronously, then attempts
// every remote sink in order. A failing sink never stops the next one and
// nothing is retried.
type Dispatcher struct {
	local   store.Sink
	remotes []store.Sink
}

func New(local store.Sink, remotes ...store.Sink) *Dispatcher {
	return &Dispatcher{local: local, remotes: remotes}
}

// Sinks returns the delivery order.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.remotes)+1)
	if d.local != nil {
		names = append(names, d.local.Name())
	}
	for _, s := range d.remotes {
		names = append(names, s.Name())
	}
	return names
}

func (d *Dispatcher) SubmitBehavior(ctx context.Context, rec *models.BehaviorRecord) error {
	return d.submit(ctx, "behavior", rec.SessionID, func(s store.Sink) error {
		return s.SaveBehavior(ctx, rec)
	})
}

func (d *Dispatcher) SubmitFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	return d.submit(ctx, "feedback", rec.SessionID, func(s store.Sink) error {
		return s.SaveFeedback(ctx, rec)
	})
}

func (d *Dispatcher) submit(ctx context.Context, kind, sessionID string, save func(store.Sink) error) error {
	accepted := 0
	attempt := func(s store.Sink) {
		if err := save(s); err != nil {
			switch {
			case errors.Is(err, store.ErrNotConfigured):
				log.Printf("[Dispatcher] %s sink %s skipped: not configured", kind, s.Name())
			case errors.Is(err, store.ErrCapacity):
				log.Printf("[Dispatcher] WARN %s sink %s is full, record kept elsewhere: %v", kind, s.Name(), err)
			default:
				log.Printf("[Dispatcher] WARN %s sink %s failed for session %s: %v", kind, s.Name(), sessionID, err)
			}
			return
		}
		accepted++
	}

	if d.local != nil {
		attempt(d.local)
	}
	for _, s := range d.remotes {
		if ctx.Err() != nil {
			log.Printf("[Dispatcher] WARN %s delivery for session %s stopped before %s: %v", kind, sessionID, s.Name(), ctx.Err())
			break
		}
		attempt(s)
	}

	if accepted == 0 {
		return ErrNoSinkAccepted
	}
	log.Printf("[Dispatcher] %s for session %s accepted by %d/%d sinks", kind, sessionID, accepted, len(d.Sinks()))
	return nil
}
