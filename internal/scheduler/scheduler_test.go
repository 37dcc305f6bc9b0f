package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Nowhere/Special", time.Minute)
	assert.Error(t, err)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s, err := New("UTC", time.Minute)
	require.NoError(t, err)
	assert.Error(t, s.AddJob("scrape", "not a schedule", func(context.Context) error { return nil }))
	assert.Empty(t, s.ListJobs())
}

func TestRunNow(t *testing.T) {
	s, err := New("UTC", time.Minute)
	require.NoError(t, err)

	calls := 0
	require.NoError(t, s.AddJob("scrape", "0 6 * * *", func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))
	require.NoError(t, s.RunNow("scrape"))
	assert.Equal(t, 1, calls)

	assert.Error(t, s.RunNow("missing"))
}

func TestRunNow_PropagatesError(t *testing.T) {
	s, err := New("UTC", time.Minute)
	require.NoError(t, err)
	boom := errors.New("boom")
	require.NoError(t, s.AddJob("scrape", "@daily", func(context.Context) error { return boom }))
	assert.ErrorIs(t, s.RunNow("scrape"), boom)
}

func TestListJobs(t *testing.T) {
	s, err := New("America/New_York", time.Minute)
	require.NoError(t, err)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("scrape", "0 6 * * *", noop))
	require.NoError(t, s.AddJob("analyze", "30 7 * * 1-5", noop))
	require.NoError(t, s.AddJob("scrape", "0 8 * * *", noop))

	s.Start()
	defer s.Stop()

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "analyze", jobs[0].Name)
	assert.Equal(t, "scrape", jobs[1].Name)
	assert.Equal(t, "0 8 * * *", jobs[1].Schedule)
	assert.False(t, jobs[1].NextRun.IsZero())
	assert.Equal(t, 8, jobs[1].NextRun.In(s.timezone).Hour())

	s.RemoveJob("analyze")
	assert.Len(t, s.ListJobs(), 1)
}
