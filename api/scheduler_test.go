package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/generic"
)

type fakeRecognizer struct {
	mu    sync.Mutex
	calls []generic.TimePoint
	count int
	err   error
}

func (f *fakeRecognizer) RecognizeAllDue(_ context.Context, asOf generic.TimePoint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, asOf)
	return f.count, f.err
}

func (f *fakeRecognizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestScheduler_RunNowUsesClock(t *testing.T) {
	rec := &fakeRecognizer{count: 3}
	s := NewRecognitionScheduler(rec, zerolog.Nop())
	s.Now = func() time.Time { return time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC) }

	n := s.RunNow(context.Background())

	assert.Equal(t, 3, n)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "2024-05-01", rec.calls[0].String())
	assert.Equal(t, 2024, s.LastRun().Year())
}

func TestScheduler_ErrorsDoNotStopRun(t *testing.T) {
	rec := &fakeRecognizer{count: 1, err: errors.New("contract c-1: boom")}
	s := NewRecognitionScheduler(rec, zerolog.Nop())

	assert.Equal(t, 1, s.RunNow(context.Background()))
	assert.Equal(t, 1, s.RunNow(context.Background()))
	assert.Equal(t, 2, rec.Calls())
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	rec := &fakeRecognizer{}
	s := NewRecognitionScheduler(rec, zerolog.Nop())
	s.Interval = 10 * time.Millisecond

	s.Start()
	s.Start() // no-op while running
	assert.Eventually(t, func() bool { return rec.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := rec.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, rec.Calls())

	s.Stop() // idempotent
}

func TestScheduler_Disabled(t *testing.T) {
	rec := &fakeRecognizer{}
	s := NewRecognitionScheduler(rec, zerolog.Nop())
	s.Enabled = false

	s.Start()
	s.Stop()

	assert.Zero(t, rec.Calls())
	assert.True(t, s.LastRun().IsZero())
}
