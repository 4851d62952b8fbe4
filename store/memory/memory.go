// Package memory implements revenue.Repository in process memory. Used by
// tests and by the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/revenue-engine/generic"
	"github.com/warp/revenue-engine/revenue"
)

type Repository struct {
	mu             sync.RWMutex
	contracts      map[revenue.ContractID]revenue.Contract
	candidates     map[revenue.ContractID][]revenue.ObligationCandidate
	considerations map[revenue.ContractID][]revenue.VariableConsiderationElement
	obligations    map[revenue.ContractID][]revenue.AllocatedObligation
	schedules      map[revenue.ContractID][]revenue.ScheduleEntry
}

var _ revenue.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		contracts:      make(map[revenue.ContractID]revenue.Contract),
		candidates:     make(map[revenue.ContractID][]revenue.ObligationCandidate),
		considerations: make(map[revenue.ContractID][]revenue.VariableConsiderationElement),
		obligations:    make(map[revenue.ContractID][]revenue.AllocatedObligation),
		schedules:      make(map[revenue.ContractID][]revenue.ScheduleEntry),
	}
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (r *Repository) SaveContract(_ context.Context, c revenue.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.ID] = c
	return nil
}

func (r *Repository) GetContract(_ context.Context, id revenue.ContractID) (revenue.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	if !ok {
		return revenue.Contract{}, generic.ErrContractNotFound
	}
	return c, nil
}

func (r *Repository) ListContracts(_ context.Context) ([]revenue.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]revenue.Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// INPUTS
// =============================================================================

func (r *Repository) SaveCandidates(_ context.Context, id revenue.ContractID, candidates []revenue.ObligationCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[id] = append([]revenue.ObligationCandidate(nil), candidates...)
	return nil
}

func (r *Repository) Candidates(_ context.Context, id revenue.ContractID) ([]revenue.ObligationCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]revenue.ObligationCandidate(nil), r.candidates[id]...), nil
}

func (r *Repository) AddConsideration(_ context.Context, id revenue.ContractID, el revenue.VariableConsiderationElement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.considerations[id] = append(r.considerations[id], el)
	return nil
}

func (r *Repository) Considerations(_ context.Context, id revenue.ContractID) ([]revenue.VariableConsiderationElement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]revenue.VariableConsiderationElement(nil), r.considerations[id]...), nil
}

// =============================================================================
// OUTPUTS
// =============================================================================

func (r *Repository) ReplaceObligations(_ context.Context, id revenue.ContractID, obligations []revenue.AllocatedObligation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obligations[id] = append([]revenue.AllocatedObligation(nil), obligations...)
	return nil
}

func (r *Repository) Obligations(_ context.Context, id revenue.ContractID) ([]revenue.AllocatedObligation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]revenue.AllocatedObligation(nil), r.obligations[id]...), nil
}

func (r *Repository) GetObligation(_ context.Context, id revenue.ObligationID) (revenue.AllocatedObligation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, obs := range r.obligations {
		for _, ob := range obs {
			if ob.ID == id {
				return ob, nil
			}
		}
	}
	return revenue.AllocatedObligation{}, generic.ErrObligationNotFound
}

func (r *Repository) ReplaceSchedule(_ context.Context, id revenue.ContractID, entries []revenue.ScheduleEntry, keep map[revenue.EntryID]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next []revenue.ScheduleEntry
	for _, e := range r.schedules[id] {
		if keep[e.ID] {
			next = append(next, e)
		}
	}
	for _, e := range entries {
		e.Status = revenue.StatusScheduled
		next = append(next, e)
	}
	sortEntries(next)
	r.schedules[id] = next
	return nil
}

func (r *Repository) Schedule(_ context.Context, id revenue.ContractID) ([]revenue.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]revenue.ScheduleEntry(nil), r.schedules[id]...), nil
}

func (r *Repository) GetEntry(_ context.Context, id revenue.EntryID) (revenue.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entries := range r.schedules {
		for _, e := range entries {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return revenue.ScheduleEntry{}, generic.ErrEntryNotFound
}

func sortEntries(entries []revenue.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.RecognitionDate.Equal(b.RecognitionDate) {
			return a.RecognitionDate.Before(b.RecognitionDate)
		}
		if a.ObligationID != b.ObligationID {
			return a.ObligationID < b.ObligationID
		}
		return a.Sequence < b.Sequence
	})
}
