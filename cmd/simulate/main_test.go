package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfeedback/api/analysis"
	"abfeedback/api/dispatch"
	"abfeedback/api/store"
)

func TestVisitStoresSnapshots(t *testing.T) {
	cache, err := store.NewFileCache(t.TempDir())
	require.NoError(t, err)

	sim := &simulator{
		dispatcher: dispatch.New(cache),
		testName:   "landing",
		flushEvery: 10 * time.Second,
		pollEvery:  time.Second,
		seed:       42,
	}
	start := time.Unix(1700000000, 0)
	for i := 0; i < 6; i++ {
		require.NoError(t, sim.visit(context.Background(), i, start.Add(time.Duration(i)*time.Minute)))
	}

	behaviors, err := cache.ListBehaviors(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(behaviors), 6)
	for _, b := range behaviors {
		assert.True(t, b.Variant.Valid())
		assert.NotEmpty(t, b.SessionID)
		assert.NotEmpty(t, b.Events)
	}

	var out bytes.Buffer
	printComparison(&out, analysis.NewAggregator(nil, cache).CompareVariants(context.Background()))
	assert.Contains(t, out.String(), "engagementScore")
	assert.Contains(t, out.String(), "winner")
}

func TestVisitStopsOnCancelledContext(t *testing.T) {
	sim := &simulator{
		dispatcher: dispatch.New(store.NewMemoryStore()),
		flushEvery: time.Second,
		pollEvery:  time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.visit(ctx, 0, time.Now()), context.Canceled)
}
