package revenue

//go:generate mockgen -source=suggester.go -destination=suggester_mock.go -package=revenue

import "context"

// ObligationSuggester proposes performance obligations for a contract. The
// source may be a stored list, a rules table or anything else; the engine
// only needs the candidates.
type ObligationSuggester interface {
	Suggest(ctx context.Context, contract Contract) ([]ObligationCandidate, error)
}

// ConsiderationSource supplies the variable consideration of a contract.
type ConsiderationSource interface {
	Considerations(ctx context.Context, id ContractID) ([]VariableConsiderationElement, error)
}

// StoredSuggester returns whatever candidates were saved for the contract.
type StoredSuggester struct {
	Candidates CandidateRepository
}

func (s StoredSuggester) Suggest(ctx context.Context, contract Contract) ([]ObligationCandidate, error) {
	return s.Candidates.Candidates(ctx, contract.ID)
}
