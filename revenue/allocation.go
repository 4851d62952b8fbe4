package revenue

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
)

// FullContractDescription names the obligation synthesized when a contract
// has no explicit obligations.
const FullContractDescription = "Full contract"

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/warp/revenue-engine"))

// =============================================================================
// OBLIGATION ALLOCATOR
// =============================================================================

// Allocate distributes price across candidates by relative standalone
// selling price. Each share is rounded half-to-even to the minimal unit and
// the rounding residual goes to the last candidate in input order, so the
// allocations always sum to price exactly.
//
// Edge cases:
//   - no candidates: one over-time "Full contract" obligation spanning the
//     contract period receives the whole price
//   - all standalone selling prices zero: the first obligation receives the
//     whole price, the rest receive zero
//
// A negative standalone selling price fails with
// *generic.InvalidObligationError and a negative price with
// *generic.InvalidPriceError. Nothing is returned on failure.
func Allocate(contract Contract, price generic.Amount, candidates []ObligationCandidate) ([]AllocatedObligation, error) {
	if price.IsNegative() {
		return nil, &generic.InvalidPriceError{Computed: price, Clamped: generic.Zero()}
	}

	if len(candidates) == 0 {
		candidates = []ObligationCandidate{{
			Description:            FullContractDescription,
			StandaloneSellingPrice: price,
			SatisfactionMethod:     OverTime,
		}}
	}

	weights := make([]decimal.Decimal, len(candidates))
	totalSSP := decimal.Zero
	for i, c := range candidates {
		if c.StandaloneSellingPrice.IsNegative() {
			return nil, &generic.InvalidObligationError{
				Index:                  i,
				Description:            c.Description,
				StandaloneSellingPrice: c.StandaloneSellingPrice,
			}
		}
		weights[i] = c.StandaloneSellingPrice.Value
		totalSSP = totalSSP.Add(weights[i])
	}

	var amounts []generic.Amount
	if totalSSP.IsZero() {
		amounts = make([]generic.Amount, len(candidates))
		for i := range amounts {
			amounts[i] = generic.Zero()
		}
		amounts[0] = price.Round()
	} else {
		amounts = generic.Apportion(price, weights)
	}

	contractPeriod := contract.Period()
	allocated := make([]AllocatedObligation, len(candidates))
	for i, c := range candidates {
		method := c.SatisfactionMethod
		if method == "" {
			method = OverTime
		}
		start, end := effectiveDates(c, contractPeriod)

		allocated[i] = AllocatedObligation{
			PerformanceObligation: PerformanceObligation{
				ID:                     obligationID(contract.ID, i, c.Description),
				ContractID:             contract.ID,
				Description:            c.Description,
				StandaloneSellingPrice: c.StandaloneSellingPrice,
				SatisfactionMethod:     method,
				StartDate:              start,
				EndDate:                end,
				Status:                 ObligationActive,
			},
			AllocatedAmount: amounts[i],
			Percent:         percentOf(amounts[i], price),
		}
	}
	return allocated, nil
}

// effectiveDates falls back to the contract period for missing dates. An
// end that is not after the start becomes a DefaultTermMonths window.
func effectiveDates(c ObligationCandidate, contract generic.Period) (generic.TimePoint, generic.TimePoint) {
	start := contract.Start
	if c.StartDate != nil {
		start = *c.StartDate
	}
	end := contract.End
	if c.EndDate != nil {
		end = *c.EndDate
	}
	if !end.After(start) {
		end = start.AddMonths(DefaultTermMonths)
	}
	return start, end
}

// obligationID is stable for the same contract, position and description,
// so re-running allocation keeps the journal history attached.
func obligationID(contractID ContractID, index int, description string) ObligationID {
	name := string(contractID) + "/" + strconv.Itoa(index) + "/" + description
	return ObligationID(uuid.NewSHA1(idNamespace, []byte(name)).String())
}

func percentOf(part, whole generic.Amount) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Value.Div(whole.Value).Mul(decimal.NewFromInt(100)).RoundBank(2)
}

// SumAllocated totals the allocated amounts.
func SumAllocated(obligations []AllocatedObligation) generic.Amount {
	total := generic.Zero()
	for _, o := range obligations {
		total = total.Add(o.AllocatedAmount)
	}
	return total
}

func (o AllocatedObligation) String() string {
	return fmt.Sprintf("%s %q %s (%s%%)", o.ID, o.Description, o.AllocatedAmount, o.Percent.StringFixed(2))
}
