// Package tracker captures one session's interaction log and turns it into
// behavior and feedback submissions.
package tracker

import (
	"sync"
	"time"

	"abfeedback/api/models"
	"abfeedback/api/utils"
	"abfeedback/api/variant"
)

// Clock returns the current time. Tests and the simulator inject their own.
type Clock func() time.Time

// Recorder is the append-only event log of one session plus the running
// summary of the current page view. Click and scroll counters reset on every
// page view; the visited page set and the log span the whole session.
type Recorder struct {
	mu  sync.Mutex
	now Clock

	session    variant.Session
	deviceType models.DeviceType
	userAgent  string
	referrer   string

	events    []models.BehaviorEvent
	pagePath  string
	pageStart time.Time
	maxScroll float64
	clicks    int
	visited   []string
	seen      map[string]struct{}
}

type Option func(*Recorder)

func WithClock(c Clock) Option {
	return func(r *Recorder) { r.now = c }
}

func WithDevice(d models.DeviceType) Option {
	return func(r *Recorder) { r.deviceType = d }
}

func WithUserAgent(ua string) Option {
	return func(r *Recorder) { r.userAgent = ua }
}

func WithReferrer(ref string) Option {
	return func(r *Recorder) { r.referrer = ref }
}

// NewRecorder starts the session on pagePath and records its first view.
func NewRecorder(session variant.Session, pagePath string, opts ...Option) *Recorder {
	r := &Recorder{
		now:        time.Now,
		session:    session,
		deviceType: models.DeviceDesktop,
		seen:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.RecordPageView(pagePath)
	return r
}

func (r *Recorder) Session() variant.Session { return r.session }

// offset must be called with mu held.
func (r *Recorder) offset() int64 {
	d := r.now().Sub(r.pageStart)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

func (r *Recorder) append(e models.BehaviorEvent) {
	e.PagePath = r.pagePath
	r.events = append(r.events, e)
}

func (r *Recorder) RecordClick(element string, pos *models.ClickPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := models.BehaviorEvent{Type: models.EventClick, Element: element, OffsetMs: r.offset()}
	if pos != nil {
		e.Value = *pos
	}
	r.append(e)
	r.clicks++
}

// RecordScroll logs a scroll depth in percent. Non-finite depths, which a
// page with no scrollable height produces, are logged as 0.
func (r *Recorder) RecordScroll(depth float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	depth = utils.Finite(depth)
	if depth > r.maxScroll {
		r.maxScroll = depth
	}
	r.append(models.BehaviorEvent{Type: models.EventScroll, OffsetMs: r.offset(), Value: depth})
}

func (r *Recorder) RecordHover(element string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(models.BehaviorEvent{Type: models.EventHover, Element: element, OffsetMs: r.offset()})
}

// RecordPageView starts a new page view: the page clock restarts and the click
// and scroll counters reset, even when path is the current page.
func (r *Recorder) RecordPageView(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pagePath = path
	r.pageStart = r.now()
	r.maxScroll = 0
	r.clicks = 0
	if _, ok := r.seen[path]; !ok {
		r.seen[path] = struct{}{}
		r.visited = append(r.visited, path)
	}
	r.append(models.BehaviorEvent{Type: models.EventView, OffsetMs: 0})
}

func (r *Recorder) RecordExitIntent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(models.BehaviorEvent{Type: models.EventExit, OffsetMs: r.offset()})
}

func (r *Recorder) RecordConversion(goal string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(models.BehaviorEvent{Type: models.EventConversion, OffsetMs: r.offset(), Value: goal})
}

// Summary returns the current page view's summary. TimeOnPage is computed at
// call time.
func (r *Recorder) Summary() models.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary()
}

func (r *Recorder) summary() models.SessionSummary {
	return models.SessionSummary{
		TimeOnPage:   r.offset(),
		ScrollDepth:  r.maxScroll,
		ClickCount:   r.clicks,
		PagesVisited: append([]string(nil), r.visited...),
	}
}

// Snapshot builds an independent BehaviorRecord from the live state. It has
// no side effects.
func (r *Recorder) Snapshot() models.BehaviorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return models.BehaviorRecord{
		SessionID: r.session.ID,
		Variant:   r.session.Variant,
		Events:    append([]models.BehaviorEvent(nil), r.events...),
		Metadata: models.BehaviorMetadata{
			PagePath:   r.pagePath,
			Referrer:   r.referrer,
			DeviceType: r.deviceType,
			UserAgent:  r.userAgent,
			Timestamp:  r.now().UTC(),
		},
		Summary: r.summary(),
	}
}
