package revenue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/generic"
	gstore "github.com/warp/revenue-engine/generic/store"
	"github.com/warp/revenue-engine/revenue"
	"github.com/warp/revenue-engine/store/memory"
	"go.opentelemetry.io/otel/metric/noop"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func amt(s string) generic.Amount { return generic.MustAmount(s) }

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

type fixture struct {
	ctx     context.Context
	repo    *memory.Repository
	journal *gstore.TxMemory
	engine  *revenue.Engine
	ledger  *revenue.Ledger
}

// newFixture seeds contract c-100: 1200.00 over [2024-01-15, 2024-04-15) with
// a single over-time obligation, and processes it. The schedule is
// 219.35 / 400.00 / 400.00 / 180.65.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	journal := gstore.NewTxMemory()

	metrics, err := revenue.NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	engine := revenue.NewEngine(revenue.EngineConfig{
		Repository: repo,
		Journal:    journal,
		Metrics:    metrics,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) },
	})

	end := date(2024, time.April, 15)
	require.NoError(t, repo.SaveContract(ctx, revenue.Contract{
		ID:        "c-100",
		Value:     amt("1200.00"),
		StartDate: date(2024, time.January, 15),
		EndDate:   &end,
	}))
	require.NoError(t, repo.SaveCandidates(ctx, "c-100", []revenue.ObligationCandidate{
		{Description: "Subscription", StandaloneSellingPrice: amt("1200.00"), SatisfactionMethod: revenue.OverTime},
	}))
	_, err = engine.Process(ctx, "c-100")
	require.NoError(t, err)

	return &fixture{ctx: ctx, repo: repo, journal: journal, engine: engine, ledger: engine.Ledger()}
}

func (f *fixture) schedule(t *testing.T) []revenue.ScheduleEntry {
	t.Helper()
	entries, err := f.ledger.Schedule(f.ctx, "c-100")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries
}

func (f *fixture) recognized(t *testing.T, ob revenue.ObligationID) string {
	t.Helper()
	total, err := f.ledger.TotalRecognized(f.ctx, ob)
	require.NoError(t, err)
	return total.String()
}

// =============================================================================
// RECOGNIZE
// =============================================================================

func TestRecognize_Success(t *testing.T) {
	// GIVEN: A processed contract
	f := newFixture(t)
	jan := f.schedule(t)[0]

	// WHEN: Recognizing January on its date
	out, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))

	// THEN: The entry is recognized and the journal holds its amount
	require.NoError(t, err)
	assert.Equal(t, revenue.StatusRecognized, out.Status)
	assert.Equal(t, jan.ID, out.ID)
	assert.Equal(t, "219.35", f.recognized(t, jan.ObligationID))

	remaining, err := f.ledger.RemainingRevenue(f.ctx, jan.ObligationID)
	require.NoError(t, err)
	assert.Equal(t, "980.65", remaining.String())

	tx, err := f.journal.Get(f.ctx, generic.TransactionID(jan.ID))
	require.NoError(t, err)
	assert.Equal(t, generic.TxRecognition, tx.Type)
	assert.Equal(t, "recognition:"+string(jan.ID), tx.IdempotencyKey)
	assert.Equal(t, generic.EntityID("c-100"), tx.EntityID)
	assert.Equal(t, generic.AccountID(jan.ObligationID), tx.AccountID)

	// AND: The schedule reports it as recognized
	assert.Equal(t, revenue.StatusRecognized, f.schedule(t)[0].Status)
}

func TestRecognize_NotYetDue(t *testing.T) {
	f := newFixture(t)
	feb := f.schedule(t)[1]

	_, err := f.ledger.Recognize(f.ctx, feb.ID, date(2024, time.January, 31))

	var due *generic.NotYetDueError
	require.True(t, errors.As(err, &due), "got %v", err)
	assert.Equal(t, "2024-02-01", due.DueOn.String())
	assert.Equal(t, "2024-01-31", due.AsOf.String())
	assert.Equal(t, "0.00", f.recognized(t, feb.ObligationID))
}

func TestRecognize_Twice(t *testing.T) {
	f := newFixture(t)
	jan := f.schedule(t)[0]
	_, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.February, 1))
	require.NoError(t, err)

	_, err = f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.February, 1))

	var already *generic.AlreadyRecognizedError
	require.True(t, errors.As(err, &already), "got %v", err)
	assert.Equal(t, "219.35", f.recognized(t, jan.ObligationID))
}

func TestRecognize_UnknownEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Recognize(f.ctx, "nope", date(2024, time.December, 31))
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
}

// staleSchedule answers the first GetEntry with an entry that is no longer
// stored, as if Process replaced it between the read and the lock.
type staleSchedule struct {
	revenue.ScheduleRepository
	stale revenue.ScheduleEntry
	reads int
}

func (s *staleSchedule) GetEntry(ctx context.Context, id revenue.EntryID) (revenue.ScheduleEntry, error) {
	s.reads++
	if s.reads == 1 {
		return s.stale, nil
	}
	return s.ScheduleRepository.GetEntry(ctx, id)
}

func TestRecognize_ReadsEntryUnderLock(t *testing.T) {
	// GIVEN: The January entry is replaced by re-processing at a higher price
	f := newFixture(t)
	jan := f.schedule(t)[0]
	require.NoError(t, f.repo.AddConsideration(f.ctx, "c-100", revenue.VariableConsiderationElement{
		Type: revenue.Bonus, Amount: amt("120.00"),
	}))
	_, err := f.engine.Process(f.ctx, "c-100")
	require.NoError(t, err)
	require.NotEqual(t, jan.ID, f.schedule(t)[0].ID)

	// WHEN: Recognizing through a ledger whose first read still sees the old entry
	schedule := &staleSchedule{ScheduleRepository: f.repo, stale: jan}
	ledger := revenue.NewLedger(revenue.LedgerConfig{
		Journal:     f.journal,
		Obligations: f.repo,
		Schedule:    schedule,
		Logger:      zerolog.Nop(),
	})
	_, err = ledger.Recognize(f.ctx, jan.ID, date(2024, time.December, 31))

	// THEN: The re-read under the lock finds it gone and nothing is journaled
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
	assert.Equal(t, 2, schedule.reads)
	assert.Equal(t, "0.00", f.recognized(t, jan.ObligationID))
}

func TestRecognize_OverRecognitionRejected(t *testing.T) {
	// GIVEN: January recognized and adjusted up to the full allocation
	f := newFixture(t)
	entries := f.schedule(t)
	jan, feb := entries[0], entries[1]
	_, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	require.NoError(t, err)
	_, err = f.ledger.Adjust(f.ctx, jan.ID, amt("980.65"), "catch up")
	require.NoError(t, err)

	// WHEN: Recognizing February
	_, err = f.ledger.Recognize(f.ctx, feb.ID, date(2024, time.February, 1))

	// THEN: Rejected, nothing written
	var over *generic.OverRecognitionError
	require.True(t, errors.As(err, &over), "got %v", err)
	assert.Equal(t, "1200.00", over.Allocated.String())
	assert.Equal(t, "1200.00", over.Recognized.String())
	assert.Equal(t, "400.00", over.Delta.String())
	assert.Equal(t, "1200.00", f.recognized(t, jan.ObligationID))
	assert.Equal(t, revenue.StatusScheduled, f.schedule(t)[1].Status)
}

// =============================================================================
// RECOGNIZE DUE
// =============================================================================

func TestRecognizeDue(t *testing.T) {
	f := newFixture(t)

	got, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.March, 10))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1019.35", f.recognized(t, got[0].ObligationID))

	again, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.March, 10))
	require.NoError(t, err)
	assert.Empty(t, again)

	rest, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "180.65", rest[0].Amount.String())
	assert.Equal(t, "1200.00", f.recognized(t, got[0].ObligationID))
}

func TestRecognizeDue_SkipsJournaledEntries(t *testing.T) {
	// GIVEN: Everything recognized, then the obligations disappear
	f := newFixture(t)
	_, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.December, 31))
	require.NoError(t, err)
	require.NoError(t, f.repo.ReplaceObligations(f.ctx, "c-100", nil))

	// WHEN: Recognizing everything due again
	got, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.December, 31))

	// THEN: Journaled entries are skipped before their obligation is looked up
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecognizeDue_StopsAtFirstFailure(t *testing.T) {
	// GIVEN: The allocation is already fully recognized through January
	f := newFixture(t)
	jan := f.schedule(t)[0]
	_, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	require.NoError(t, err)
	_, err = f.ledger.Adjust(f.ctx, jan.ID, amt("980.65"), "catch up")
	require.NoError(t, err)

	// WHEN: Recognizing everything due
	got, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.December, 31))

	// THEN: February fails and nothing after it is attempted
	assert.ErrorIs(t, err, generic.ErrOverRecognition)
	assert.Empty(t, got)
	for _, e := range f.schedule(t)[1:] {
		assert.Equal(t, revenue.StatusScheduled, e.Status)
	}
}

// =============================================================================
// ADJUST / REVERSE
// =============================================================================

func TestAdjust(t *testing.T) {
	f := newFixture(t)
	entries := f.schedule(t)
	jan, feb := entries[0], entries[1]

	_, err := f.ledger.Adjust(f.ctx, feb.ID, amt("1.00"), "early")
	assert.ErrorIs(t, err, generic.ErrNotRecognized)

	_, err = f.ledger.Adjust(f.ctx, "nope", amt("1.00"), "ghost")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)

	_, err = f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	require.NoError(t, err)

	adj, err := f.ledger.Adjust(f.ctx, jan.ID, amt("-19.354"), "credit note")
	require.NoError(t, err)
	assert.Equal(t, revenue.StatusAdjusted, adj.Status)
	assert.Equal(t, "-19.35", adj.Amount.String(), "delta is rounded")
	assert.Equal(t, jan.ID, adj.ReferenceID)
	assert.Equal(t, "credit note", adj.Reason)
	assert.Equal(t, "200.00", f.recognized(t, jan.ObligationID))

	// Two adjustments of the same record are both kept
	_, err = f.ledger.Adjust(f.ctx, jan.ID, amt("-19.35"), "credit note")
	require.NoError(t, err)
	assert.Equal(t, "180.65", f.recognized(t, jan.ObligationID))

	// Original record untouched
	tx, err := f.journal.Get(f.ctx, generic.TransactionID(jan.ID))
	require.NoError(t, err)
	assert.Equal(t, "219.35", tx.Delta.String())
}

func TestAdjust_OverRecognition(t *testing.T) {
	f := newFixture(t)
	jan := f.schedule(t)[0]
	_, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	require.NoError(t, err)

	_, err = f.ledger.Adjust(f.ctx, jan.ID, amt("980.66"), "one cent too many")
	assert.ErrorIs(t, err, generic.ErrOverRecognition)
	assert.Equal(t, "219.35", f.recognized(t, jan.ObligationID))
}

func TestReverse(t *testing.T) {
	// GIVEN: January recognized
	f := newFixture(t)
	entries := f.schedule(t)
	jan, feb := entries[0], entries[1]
	_, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	require.NoError(t, err)

	// WHEN: Reversing it
	rev, err := f.ledger.Reverse(f.ctx, jan.ID, "contract amended")

	// THEN: The negation is appended and the total returns to zero
	require.NoError(t, err)
	assert.Equal(t, revenue.StatusReversed, rev.Status)
	assert.Equal(t, "-219.35", rev.Amount.String())
	assert.Equal(t, jan.ID, rev.ReferenceID)
	assert.Equal(t, "0.00", f.recognized(t, jan.ObligationID))

	// AND: The schedule entry stays recognized; it cannot be recognized again
	assert.Equal(t, revenue.StatusRecognized, f.schedule(t)[0].Status)
	_, err = f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	assert.ErrorIs(t, err, generic.ErrAlreadyRecognized)

	// AND: Neither the original nor the reversal can be reversed again
	_, err = f.ledger.Reverse(f.ctx, jan.ID, "again")
	assert.ErrorIs(t, err, generic.ErrAlreadyReversed)
	_, err = f.ledger.Reverse(f.ctx, rev.ID, "undo")
	assert.ErrorIs(t, err, generic.ErrAlreadyReversed)

	// AND: Unrecognized entries cannot be reversed
	_, err = f.ledger.Reverse(f.ctx, feb.ID, "early")
	assert.ErrorIs(t, err, generic.ErrNotRecognized)
}

func TestReverse_Adjustment(t *testing.T) {
	f := newFixture(t)
	jan := f.schedule(t)[0]
	_, err := f.ledger.Recognize(f.ctx, jan.ID, date(2024, time.January, 1))
	require.NoError(t, err)
	adj, err := f.ledger.Adjust(f.ctx, jan.ID, amt("-100.00"), "discount")
	require.NoError(t, err)

	rev, err := f.ledger.Reverse(f.ctx, adj.ID, "discount withdrawn")
	require.NoError(t, err)
	assert.Equal(t, "100.00", rev.Amount.String())
	assert.Equal(t, "219.35", f.recognized(t, jan.ObligationID))
}

func TestReverse_OverRecognition(t *testing.T) {
	// Reversing a negative adjustment cannot push past the allocation either
	f := newFixture(t)
	entries := f.schedule(t)
	_, err := f.ledger.Recognize(f.ctx, entries[0].ID, date(2024, time.January, 1))
	require.NoError(t, err)
	adj, err := f.ledger.Adjust(f.ctx, entries[0].ID, amt("-219.35"), "write off")
	require.NoError(t, err)
	for _, e := range entries[1:] {
		_, err := f.ledger.Recognize(f.ctx, e.ID, date(2024, time.December, 31))
		require.NoError(t, err)
	}
	_, err = f.ledger.Adjust(f.ctx, entries[0].ID, amt("219.35"), "back")
	require.NoError(t, err)

	_, err = f.ledger.Reverse(f.ctx, adj.ID, "undo write off")
	assert.ErrorIs(t, err, generic.ErrOverRecognition)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestHistoryAndSummary(t *testing.T) {
	f := newFixture(t)
	entries := f.schedule(t)
	_, err := f.ledger.RecognizeDue(f.ctx, "c-100", date(2024, time.February, 1))
	require.NoError(t, err)
	_, err = f.ledger.Reverse(f.ctx, entries[1].ID, "dispute")
	require.NoError(t, err)

	history, err := f.ledger.History(f.ctx, "c-100")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, revenue.StatusRecognized, history[0].Status)
	assert.Equal(t, revenue.StatusRecognized, history[1].Status)
	assert.Equal(t, revenue.StatusReversed, history[2].Status)
	assert.Equal(t, entries[1].ID, history[2].ReferenceID)

	sum, err := f.ledger.Summary(f.ctx, "c-100")
	require.NoError(t, err)
	assert.Equal(t, "1200.00", sum.Allocated.String())
	assert.Equal(t, "219.35", sum.Recognized.String())
	assert.Equal(t, "980.65", sum.Remaining.String())
	assert.Equal(t, "580.65", sum.Pending.String())
	require.Len(t, sum.Obligations, 1)
	ob := sum.Obligations[0]
	assert.Equal(t, 4, ob.Entries)
	assert.Equal(t, 2, ob.RecognizedEntries)
	assert.Equal(t, "18.28", ob.PercentRecognized.StringFixed(2))
}

func TestQueries_UnknownObligation(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.TotalRecognized(f.ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrObligationNotFound)
	_, err = f.ledger.RemainingRevenue(f.ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrObligationNotFound)
}
