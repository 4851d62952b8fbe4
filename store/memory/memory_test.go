package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/generic"
	"github.com/warp/revenue-engine/revenue"
)

func entry(id string, ob revenue.ObligationID, seq int, month time.Month, amount string) revenue.ScheduleEntry {
	return revenue.ScheduleEntry{
		ID:              revenue.EntryID(id),
		ObligationID:    ob,
		ContractID:      "c-1",
		Sequence:        seq,
		RecognitionDate: generic.NewTimePoint(2024, month, 1),
		Amount:          generic.MustAmount(amount),
		Status:          revenue.StatusScheduled,
	}
}

func TestRepository_NotFound(t *testing.T) {
	repo := New()
	ctx := context.Background()

	_, err := repo.GetContract(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrContractNotFound)

	_, err = repo.GetObligation(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrObligationNotFound)

	_, err = repo.GetEntry(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)

	obs, err := repo.Obligations(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestRepository_ListContractsSorted(t *testing.T) {
	repo := New()
	ctx := context.Background()
	for _, id := range []revenue.ContractID{"c-3", "c-1", "c-2"} {
		require.NoError(t, repo.SaveContract(ctx, revenue.Contract{ID: id, Value: generic.Zero()}))
	}

	list, err := repo.ListContracts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, revenue.ContractID("c-1"), list[0].ID)
	assert.Equal(t, revenue.ContractID("c-3"), list[2].ID)
}

func TestRepository_ReplaceSchedule(t *testing.T) {
	// GIVEN: A stored schedule of three entries
	repo := New()
	ctx := context.Background()
	require.NoError(t, repo.ReplaceSchedule(ctx, "c-1", []revenue.ScheduleEntry{
		entry("e-feb", "ob-1", 1, time.February, "10.00"),
		entry("e-jan", "ob-1", 0, time.January, "10.00"),
		entry("e-mar", "ob-1", 2, time.March, "10.00"),
	}, nil))

	// WHEN: Replacing it while keeping January
	require.NoError(t, repo.ReplaceSchedule(ctx, "c-1", []revenue.ScheduleEntry{
		entry("e-feb2", "ob-1", 1, time.February, "20.00"),
		entry("e-jan-b", "ob-0", 0, time.January, "5.00"),
	}, map[revenue.EntryID]bool{"e-jan": true}))

	// THEN: January survives, the rest is replaced, order is date then obligation
	got, err := repo.Schedule(ctx, "c-1")
	require.NoError(t, err)
	ids := make([]revenue.EntryID, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []revenue.EntryID{"e-jan-b", "e-jan", "e-feb2"}, ids)

	_, err = repo.GetEntry(ctx, "e-mar")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)

	e, err := repo.GetEntry(ctx, "e-feb2")
	require.NoError(t, err)
	assert.Equal(t, "20.00", e.Amount.String())
}

func TestRepository_ReturnsCopies(t *testing.T) {
	repo := New()
	ctx := context.Background()
	require.NoError(t, repo.SaveCandidates(ctx, "c-1", []revenue.ObligationCandidate{
		{Description: "A", StandaloneSellingPrice: generic.MustAmount("1")},
	}))

	got, err := repo.Candidates(ctx, "c-1")
	require.NoError(t, err)
	got[0].Description = "mutated"

	again, err := repo.Candidates(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "A", again[0].Description)
}
