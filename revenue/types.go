/*
Package revenue implements the five-step revenue recognition model on top of
the generic money, period and journal primitives.

PIPELINE (one contract, strictly in this order):

	Contract + variable consideration
	    -> ResolvePrice      (price.go)     transaction price
	    -> Allocate          (allocation.go) price split across obligations
	    -> GenerateSchedule  (schedule.go)   dated entries per obligation
	    -> Ledger            (ledger.go)     recognize / adjust / reverse

The first three stages are pure functions. Only the Ledger and the Engine
touch storage, and every external input (candidate obligations, variable
consideration, the contract itself) arrives through the interfaces in
repository.go and suggester.go.

INVARIANTS:
  - Allocations of a contract sum to its transaction price exactly.
  - Schedule entries of an obligation sum to its allocation exactly.
  - Recognized total of an obligation never exceeds its allocation.
  - Recognized history is never rewritten; corrections are appended.
*/
package revenue

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContractID string
type ObligationID string
type EntryID string

// =============================================================================
// ENUMS
// =============================================================================

// SatisfactionMethod decides the schedule shape of an obligation.
type SatisfactionMethod string

const (
	PointInTime SatisfactionMethod = "point_in_time"
	OverTime    SatisfactionMethod = "over_time"
)

func ParseSatisfactionMethod(s string) (SatisfactionMethod, error) {
	switch m := SatisfactionMethod(s); m {
	case PointInTime, OverTime:
		return m, nil
	default:
		return "", fmt.Errorf("unknown satisfaction method %q", s)
	}
}

type ObligationStatus string

const (
	ObligationActive    ObligationStatus = "active"
	ObligationCompleted ObligationStatus = "completed"
	ObligationCancelled ObligationStatus = "cancelled"
)

// ConsiderationType classifies a variable consideration element and fixes
// the sign it contributes to the transaction price.
type ConsiderationType string

const (
	Bonus      ConsiderationType = "bonus"
	Penalty    ConsiderationType = "penalty"
	Rebate     ConsiderationType = "rebate"
	Refund     ConsiderationType = "refund"
	UsageBased ConsiderationType = "usage_based"
	Financing  ConsiderationType = "financing"
	NonCash    ConsiderationType = "non_cash"
	Other      ConsiderationType = "other"
)

func ParseConsiderationType(s string) (ConsiderationType, error) {
	switch t := ConsiderationType(s); t {
	case Bonus, Penalty, Rebate, Refund, UsageBased, Financing, NonCash, Other:
		return t, nil
	default:
		return "", fmt.Errorf("unknown consideration type %q", s)
	}
}

// EntryStatus is the lifecycle state of a schedule or ledger entry.
type EntryStatus string

const (
	StatusScheduled  EntryStatus = "scheduled"
	StatusRecognized EntryStatus = "recognized"
	StatusAdjusted   EntryStatus = "adjusted"
	StatusReversed   EntryStatus = "reversed"
)

// =============================================================================
// CONTRACT
// =============================================================================

// DefaultTermMonths is the contract term assumed when the end date is absent
// or not after the start date.
const DefaultTermMonths = 12

// Contract is owned by the external repository. Value is the base (fixed)
// price; TransactionPrice is set once the resolver has run, so re-resolution
// always starts from Value.
type Contract struct {
	ID               ContractID
	Customer         string
	Value            generic.Amount
	StartDate        generic.TimePoint
	EndDate          *generic.TimePoint
	TransactionPrice *generic.Amount
}

// Period returns [StartDate, EndDate), or a DefaultTermMonths window from
// StartDate when EndDate is missing or not after it.
func (c Contract) Period() generic.Period {
	if c.EndDate != nil && c.EndDate.After(c.StartDate) {
		return generic.Period{Start: c.StartDate, End: *c.EndDate}
	}
	return generic.Period{Start: c.StartDate, End: c.StartDate.AddMonths(DefaultTermMonths)}
}

// Price returns the resolved transaction price, falling back to Value.
func (c Contract) Price() generic.Amount {
	if c.TransactionPrice != nil {
		return *c.TransactionPrice
	}
	return c.Value
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

// ObligationCandidate is a proposed performance obligation supplied by an
// ObligationSuggester. Dates default to the contract's.
type ObligationCandidate struct {
	Description            string
	StandaloneSellingPrice generic.Amount
	SatisfactionMethod     SatisfactionMethod
	StartDate              *generic.TimePoint
	EndDate                *generic.TimePoint
}

// PerformanceObligation is a candidate accepted by the allocator, with its
// effective dates resolved.
type PerformanceObligation struct {
	ID                     ObligationID
	ContractID             ContractID
	Description            string
	StandaloneSellingPrice generic.Amount
	SatisfactionMethod     SatisfactionMethod
	StartDate              generic.TimePoint
	EndDate                generic.TimePoint
	Status                 ObligationStatus
}

// Period is the obligation's effective range [StartDate, EndDate).
func (o PerformanceObligation) Period() generic.Period {
	return generic.Period{Start: o.StartDate, End: o.EndDate}
}

// AllocatedObligation carries the share of the transaction price assigned to
// an obligation.
type AllocatedObligation struct {
	PerformanceObligation
	AllocatedAmount generic.Amount

	// Percent of the transaction price, two decimals. Display only.
	Percent decimal.Decimal
}

// =============================================================================
// VARIABLE CONSIDERATION
// =============================================================================

// VariableConsiderationElement adjusts the base price. ConstraintFactor, when
// set, must be within [0,1] and scales Amount down to the portion that is
// unlikely to reverse.
type VariableConsiderationElement struct {
	Type             ConsiderationType
	Amount           generic.Amount
	ConstraintFactor *decimal.Decimal
	Rationale        string
}

// =============================================================================
// SCHEDULE ENTRY
// =============================================================================

// ScheduleEntry is one dated amount of revenue. Generated entries are
// Scheduled; the Ledger reports them as Recognized once journaled, and
// reports adjustments/reversals as entries of their own that reference the
// original through ReferenceID.
type ScheduleEntry struct {
	ID              EntryID
	ContractID      ContractID
	ObligationID    ObligationID
	Sequence        int
	RecognitionDate generic.TimePoint
	Amount          generic.Amount
	Status          EntryStatus
	ReferenceID     EntryID
	Reason          string
}
