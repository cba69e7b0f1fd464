package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfeedback/api/models"
	"abfeedback/api/store"
)

type recordingSink struct {
	name string
	err  error

	mu    *sync.Mutex
	order *[]string
	calls int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) SaveBehavior(context.Context, *models.BehaviorRecord) error {
	return s.record()
}

func (s *recordingSink) SaveFeedback(context.Context, *models.FeedbackRecord) error {
	return s.record()
}

func (s *recordingSink) record() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	*s.order = append(*s.order, s.name)
	return s.err
}

func newSinks(errs map[string]error, names ...string) ([]*recordingSink, *[]string) {
	mu := &sync.Mutex{}
	order := &[]string{}
	sinks := make([]*recordingSink, 0, len(names))
	for _, n := range names {
		sinks = append(sinks, &recordingSink{name: n, err: errs[n], mu: mu, order: order})
	}
	return sinks, order
}

var rec = &models.BehaviorRecord{SessionID: "s1", Variant: models.VariantA}

func TestLocalFirstThenRemotesInOrder(t *testing.T) {
	sinks, order := newSinks(nil, "local", "docstore", "eventstore", "mockapi")
	d := New(sinks[0], sinks[1], sinks[2], sinks[3])

	require.NoError(t, d.SubmitBehavior(context.Background(), rec))
	assert.Equal(t, []string{"local", "docstore", "eventstore", "mockapi"}, *order)
	assert.Equal(t, []string{"local", "docstore", "eventstore", "mockapi"}, d.Sinks())
}

func TestAllRemotesFailStillSucceeds(t *testing.T) {
	boom := errors.New("network unreachable")
	sinks, order := newSinks(map[string]error{
		"docstore": store.ErrNotConfigured,
		"mockapi":  store.ErrCapacity,
		"api":      boom,
	}, "local", "docstore", "mockapi", "api")
	d := New(sinks[0], sinks[1], sinks[2], sinks[3])

	assert.NoError(t, d.SubmitBehavior(context.Background(), rec))
	assert.Len(t, *order, 4, "every sink is attempted once")
}

func TestLocalFailureDoesNotBlockRemotes(t *testing.T) {
	sinks, order := newSinks(map[string]error{"local": errors.New("disk full")}, "local", "docstore")
	d := New(sinks[0], sinks[1])

	fb := &models.FeedbackRecord{SessionID: "s1", Variant: models.VariantB}
	assert.NoError(t, d.SubmitFeedback(context.Background(), fb))
	assert.Equal(t, []string{"local", "docstore"}, *order)
}

func TestNoSinkAccepted(t *testing.T) {
	fail := errors.New("down")
	sinks, _ := newSinks(map[string]error{"local": fail, "docstore": fail}, "local", "docstore")
	d := New(sinks[0], sinks[1])

	assert.ErrorIs(t, d.SubmitBehavior(context.Background(), rec), ErrNoSinkAccepted)
}

func TestCancelledContextStillWritesLocal(t *testing.T) {
	sinks, order := newSinks(nil, "local", "docstore")
	d := New(sinks[0], sinks[1])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, d.SubmitBehavior(ctx, rec))
	assert.Equal(t, []string{"local"}, *order)
}
