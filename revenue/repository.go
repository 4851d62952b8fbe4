/*
repository.go - Persistence boundary for contract data

PURPOSE:
  Contracts, candidates, variable consideration, accepted obligations and
  generated schedules live outside the engine. The journal (generic.Store)
  is kept separate: everything here may be replaced on re-processing,
  whereas the journal only grows.

REPLACEMENT RULES:
  - ReplaceObligations overwrites the obligations of a contract.
  - ReplaceSchedule drops entries of the contract except those in keep and
    inserts the new ones. Entries already in the journal are passed in keep
    so their rows are never lost.

IMPLEMENTATIONS:
  - store/memory: maps behind a mutex
  - store/sqldb: SQLite / PostgreSQL
*/
package revenue

import "context"

type ContractRepository interface {
	// SaveContract inserts or replaces a contract.
	SaveContract(ctx context.Context, c Contract) error

	// GetContract returns generic.ErrContractNotFound for unknown IDs.
	GetContract(ctx context.Context, id ContractID) (Contract, error)

	// ListContracts returns every contract ordered by ID.
	ListContracts(ctx context.Context) ([]Contract, error)
}

type CandidateRepository interface {
	// SaveCandidates replaces the candidates of a contract.
	SaveCandidates(ctx context.Context, id ContractID, candidates []ObligationCandidate) error

	// Candidates returns candidates in the order they were saved.
	Candidates(ctx context.Context, id ContractID) ([]ObligationCandidate, error)
}

type ConsiderationRepository interface {
	AddConsideration(ctx context.Context, id ContractID, el VariableConsiderationElement) error

	// Considerations returns elements in the order they were added.
	Considerations(ctx context.Context, id ContractID) ([]VariableConsiderationElement, error)
}

type ObligationRepository interface {
	ReplaceObligations(ctx context.Context, id ContractID, obligations []AllocatedObligation) error

	// Obligations returns the contract's obligations in allocation order.
	Obligations(ctx context.Context, id ContractID) ([]AllocatedObligation, error)

	// GetObligation returns generic.ErrObligationNotFound for unknown IDs.
	GetObligation(ctx context.Context, id ObligationID) (AllocatedObligation, error)
}

type ScheduleRepository interface {
	ReplaceSchedule(ctx context.Context, id ContractID, entries []ScheduleEntry, keep map[EntryID]bool) error

	// Schedule returns generated entries ordered by date, obligation and
	// sequence. Status is always Scheduled; the Ledger derives the rest.
	Schedule(ctx context.Context, id ContractID) ([]ScheduleEntry, error)

	// GetEntry returns generic.ErrEntryNotFound for unknown IDs.
	GetEntry(ctx context.Context, id EntryID) (ScheduleEntry, error)
}

// Repository is everything the engine needs besides the journal.
type Repository interface {
	ContractRepository
	CandidateRepository
	ConsiderationRepository
	ObligationRepository
	ScheduleRepository
}
