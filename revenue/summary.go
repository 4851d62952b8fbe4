package revenue

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
)

// =============================================================================
// CONTRACT SUMMARY
// =============================================================================

// ObligationSummary is the recognition position of one obligation.
//
//	Remaining = Allocated - Recognized
//	Pending   = Σ Scheduled entries not yet in the journal
type ObligationSummary struct {
	Obligation        AllocatedObligation
	Recognized        generic.Amount
	Remaining         generic.Amount
	Pending           generic.Amount
	PercentRecognized decimal.Decimal
	Entries           int
	RecognizedEntries int
}

type ContractSummary struct {
	ContractID  ContractID
	Allocated   generic.Amount
	Recognized  generic.Amount
	Remaining   generic.Amount
	Pending     generic.Amount
	Obligations []ObligationSummary
}

// Summary folds the journal and the current schedule of a contract into
// per-obligation totals.
func (l *Ledger) Summary(ctx context.Context, contractID ContractID) (ContractSummary, error) {
	obligations, err := l.obligations.Obligations(ctx, contractID)
	if err != nil {
		return ContractSummary{}, err
	}
	entries, err := l.Schedule(ctx, contractID)
	if err != nil {
		return ContractSummary{}, err
	}
	txs, err := l.journal.LoadEntity(ctx, generic.EntityID(contractID))
	if err != nil {
		return ContractSummary{}, err
	}

	recognized := make(map[ObligationID]generic.Amount)
	for _, tx := range txs {
		id := ObligationID(tx.AccountID)
		recognized[id] = recognized[id].Add(tx.Delta)
	}

	sum := ContractSummary{
		ContractID: contractID,
		Allocated:  generic.Zero(),
		Recognized: generic.Zero(),
		Remaining:  generic.Zero(),
		Pending:    generic.Zero(),
	}
	for _, ob := range obligations {
		os := ObligationSummary{
			Obligation: ob,
			Recognized: generic.Zero().Add(recognized[ob.ID]),
			Pending:    generic.Zero(),
		}
		for _, e := range entries {
			if e.ObligationID != ob.ID {
				continue
			}
			os.Entries++
			if e.Status == StatusRecognized {
				os.RecognizedEntries++
			} else {
				os.Pending = os.Pending.Add(e.Amount)
			}
		}
		os.Remaining = ob.AllocatedAmount.Sub(os.Recognized)
		os.PercentRecognized = percentOf(os.Recognized, ob.AllocatedAmount)

		sum.Allocated = sum.Allocated.Add(ob.AllocatedAmount)
		sum.Recognized = sum.Recognized.Add(os.Recognized)
		sum.Remaining = sum.Remaining.Add(os.Remaining)
		sum.Pending = sum.Pending.Add(os.Pending)
		sum.Obligations = append(sum.Obligations, os)
	}
	return sum, nil
}
