package tracker

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"abfeedback/api/models"
	"abfeedback/api/trigger"
)

var ErrFeedbackClosed = errors.New("feedback already collected or in progress for this session")

// Submitter is implemented by dispatch.Dispatcher.
type Submitter interface {
	SubmitBehavior(ctx context.Context, rec *models.BehaviorRecord) error
	SubmitFeedback(ctx context.Context, rec *models.FeedbackRecord) error
}

type promptState int32

const (
	promptIdle promptState = iota
	promptShown
	promptCollecting
	promptCollected
)

type Options struct {
	FlushInterval time.Duration
	PollInterval  time.Duration
	Evaluator     *trigger.Evaluator
	// OnPrompt is called once per session when a trigger rule first holds.
	OnPrompt func(summary models.SessionSummary, rule trigger.Rule)
}

// Tracker owns a Recorder for one tab's lifetime. It flushes behavior
// snapshots periodically, polls the trigger rules, and submits feedback.
type Tracker struct {
	rec        *Recorder
	submitter  Submitter
	evaluator  *trigger.Evaluator
	flushEvery time.Duration
	pollEvery  time.Duration
	onPrompt   func(models.SessionSummary, trigger.Rule)

	inFlight atomic.Bool
	prompt   atomic.Int32
}

func New(rec *Recorder, submitter Submitter, opts Options) *Tracker {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Evaluator == nil {
		opts.Evaluator = trigger.Default()
	}
	return &Tracker{
		rec:        rec,
		submitter:  submitter,
		evaluator:  opts.Evaluator,
		flushEvery: opts.FlushInterval,
		pollEvery:  opts.PollInterval,
		onPrompt:   opts.OnPrompt,
	}
}

func (t *Tracker) Recorder() *Recorder { return t.rec }

// Flush submits a fresh snapshot. It returns false without doing anything when
// a flush is already in flight for this tracker.
func (t *Tracker) Flush(ctx context.Context) bool {
	if !t.inFlight.CompareAndSwap(false, true) {
		log.Printf("[Tracker] flush dropped for session %s: previous submission still in flight", t.rec.session.ID)
		return false
	}
	defer t.inFlight.Store(false)

	snap := t.rec.Snapshot()
	if err := t.submitter.SubmitBehavior(ctx, &snap); err != nil {
		log.Printf("[Tracker] WARN behavior submission for session %s: %v", snap.SessionID, err)
	}
	return true
}

// Unload fires a final flush without waiting for it. Completion is not
// guaranteed.
func (t *Tracker) Unload(ctx context.Context) {
	go t.Flush(context.WithoutCancel(ctx))
}

// CheckTrigger evaluates the rules once. It returns true only the first time
// a rule holds for this session; after that the prompt never fires again.
func (t *Tracker) CheckTrigger() bool {
	if promptState(t.prompt.Load()) != promptIdle {
		return false
	}

	snap := t.rec.Snapshot()
	rule, ok := t.evaluator.Match(snap.Summary, snap.Events, snap.Variant)
	if !ok {
		return false
	}
	if !t.prompt.CompareAndSwap(int32(promptIdle), int32(promptShown)) {
		return false
	}

	log.Printf("[Tracker] feedback trigger %s met for session %s: timeOnPage=%d scrollDepth=%.1f clickCount=%d",
		rule.Condition, snap.SessionID, snap.Summary.TimeOnPage, snap.Summary.ScrollDepth, snap.Summary.ClickCount)
	if t.onPrompt != nil {
		t.onPrompt(snap.Summary, rule)
	}
	return true
}

// SubmitFeedback records the visitor's answer. Only one submission per
// session is accepted.
func (t *Tracker) SubmitFeedback(ctx context.Context, rating *float64, comment, question string) error {
	rec := models.FeedbackRecord{
		SessionID:       t.rec.session.ID,
		Variant:         t.rec.session.Variant,
		BehaviorSummary: t.rec.Summary(),
		Feedback: models.FeedbackDetails{
			Rating:    rating,
			Comment:   comment,
			Question:  question,
			Timestamp: t.rec.now().UTC(),
		},
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	prev := promptState(t.prompt.Load())
	if prev == promptCollecting || prev == promptCollected {
		return ErrFeedbackClosed
	}
	if !t.prompt.CompareAndSwap(int32(prev), int32(promptCollecting)) {
		return ErrFeedbackClosed
	}
	defer t.prompt.Store(int32(promptCollected))

	if err := t.submitter.SubmitFeedback(ctx, &rec); err != nil {
		log.Printf("[Tracker] WARN feedback submission for session %s: %v", rec.SessionID, err)
	}
	return nil
}

// DismissPrompt closes a shown prompt without an answer. The trigger stays
// suppressed for the rest of the session.
func (t *Tracker) DismissPrompt() {
	log.Printf("[Tracker] feedback prompt dismissed for session %s", t.rec.session.ID)
}

// Prompted reports whether the prompt was ever shown for this session.
func (t *Tracker) Prompted() bool {
	return promptState(t.prompt.Load()) != promptIdle
}

// Run drives the flush and poll timers until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	flush := time.NewTicker(t.flushEvery)
	defer flush.Stop()
	poll := time.NewTicker(t.pollEvery)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			go t.Flush(ctx)
		case <-poll.C:
			t.CheckTrigger()
		}
	}
}
