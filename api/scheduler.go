/*
scheduler.go - Periodic recognition of due schedule entries

PURPOSE:
  Periodically recognizes every schedule entry whose date has arrived, for
  all contracts, so revenue lands in the journal without a manual call.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Recognition is idempotent: entries already journaled are skipped by the
    ledger, so overlapping or repeated runs are harmless
  - A failing contract is logged and does not stop the others

CONFIGURATION:
  - Interval: How often to check (SCHEDULER_INTERVAL, default 1h)
  - Enabled:  Whether scheduler is active (SCHEDULER_ENABLED)

USAGE:
  s := NewRecognitionScheduler(engine, log)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - handlers.go: RecognizeAllDue endpoint (manual run)
  - revenue/engine.go: Engine.RecognizeAllDue
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/generic"
)

// DueRecognizer recognizes every due entry as of a date. *revenue.Engine
// implements it.
type DueRecognizer interface {
	RecognizeAllDue(ctx context.Context, asOf generic.TimePoint) (int, error)
}

// RecognitionScheduler handles automated recognition.
type RecognitionScheduler struct {
	Recognizer DueRecognizer
	Interval   time.Duration
	Enabled    bool
	Now        func() time.Time

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.Mutex
	last   time.Time
}

func NewRecognitionScheduler(r DueRecognizer, log zerolog.Logger) *RecognitionScheduler {
	return &RecognitionScheduler{
		Recognizer: r,
		Interval:   time.Hour,
		Enabled:    true,
		Now:        time.Now,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a
// no-op.
func (rs *RecognitionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info().Msg("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.log.Info().Dur("interval", rs.Interval).Msg("started")
}

// Stop stops the scheduler and waits for a run in progress.
func (rs *RecognitionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.log.Info().Msg("stopped")
}

func (rs *RecognitionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	rs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one recognition pass and returns the number of entries
// recognized.
func (rs *RecognitionScheduler) RunNow(ctx context.Context) int {
	now := rs.Now()
	asOf := generic.FromTime(now)

	count, err := rs.Recognizer.RecognizeAllDue(ctx, asOf)
	if err != nil {
		rs.log.Warn().Err(err).Str("as_of", asOf.String()).Int("recognized", count).Msg("recognition pass finished with errors")
	} else if count > 0 {
		rs.log.Info().Str("as_of", asOf.String()).Int("recognized", count).Msg("recognition pass completed")
	}

	rs.lastMu.Lock()
	rs.last = now
	rs.lastMu.Unlock()
	return count
}

// LastRun returns when the last pass started, zero if none has run.
func (rs *RecognitionScheduler) LastRun() time.Time {
	rs.lastMu.Lock()
	defer rs.lastMu.Unlock()
	return rs.last
}
