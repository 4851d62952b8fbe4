/*
schedule.go - Recognition schedule generation

PURPOSE:
  Expands an allocated obligation into dated ScheduleEntry values.

BRANCHES:
  PointInTime:
    One entry on the obligation start date for the full allocation.

  OverTime:
    n       = MonthsBetween(start, end), at least 1
    monthly = allocation / n                (exact, not pre-rounded)

    One entry per calendar month overlapping [start, end), dated on the
    first of that month:
      - first entry, when start is mid-month: monthly × remaining/days
      - middle entries: monthly, rounded half-to-even
      - last entry: whatever is left, so the entries sum to the allocation

    A non-final entry never takes more than what is left of the allocation;
    once the allocation is used up the remaining entries are zero.

EXAMPLE:
  1200.00 over [2024-01-15, 2024-04-15):
    n = 3, monthly = 400.00
    2024-01-01  219.35   (400 × 17/31)
    2024-02-01  400.00
    2024-03-01  400.00
    2024-04-01  180.65   (residual)

REGENERATION:
  When the journal already holds entries for an obligation, only the part
  of the allocation not yet recognized is scheduled, over the months that
  have no journaled entry (GenerateRemainingSchedule).

SEE ALSO:
  - generic/period.go: MonthStarts, MonthsBetween
  - ledger.go: turns Scheduled entries into Recognized ones
*/
package revenue

import (
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
)

// GenerateSchedule returns the Scheduled entries for one obligation, ordered
// by date. The allocation is expected to be non-negative.
func GenerateSchedule(ob AllocatedObligation) []ScheduleEntry {
	switch ob.SatisfactionMethod {
	case PointInTime:
		return []ScheduleEntry{newEntry(ob, 0, ob.StartDate, ob.AllocatedAmount)}
	default:
		return overTime(ob)
	}
}

func overTime(ob AllocatedObligation) []ScheduleEntry {
	period := ob.Period()
	n := period.Months()
	if n < 1 {
		n = 1
	}
	monthly := ob.AllocatedAmount.DivInt(n)
	starts := period.MonthStarts()

	entries := make([]ScheduleEntry, 0, len(starts))
	remaining := ob.AllocatedAmount
	for i, monthStart := range starts {
		var amount generic.Amount
		if i == len(starts)-1 {
			amount = remaining
		} else {
			raw := monthly
			if i == 0 && !period.Start.IsFirstOfMonth() {
				raw = prorate(monthly, period.Start)
			}
			amount = raw.Round().Min(remaining)
		}
		remaining = remaining.Sub(amount)
		entries = append(entries, newEntry(ob, i, monthStart, amount))
	}
	return entries
}

// prorate scales monthly by the share of start's month that is covered.
func prorate(monthly generic.Amount, start generic.TimePoint) generic.Amount {
	return monthly.MulRatio(
		decimal.NewFromInt(int64(generic.DaysRemainingInMonth(start))),
		decimal.NewFromInt(int64(generic.DaysInMonth(start))),
	)
}

// GenerateContractSchedule generates every obligation's schedule and orders
// the result by date, then obligation input order, then sequence.
func GenerateContractSchedule(obligations []AllocatedObligation) []ScheduleEntry {
	var all []ScheduleEntry
	for _, ob := range obligations {
		all = append(all, GenerateSchedule(ob)...)
	}
	SortEntries(all, obligations)
	return all
}

// SortEntries orders entries by date, then obligation input order, then
// sequence.
func SortEntries(entries []ScheduleEntry, obligations []AllocatedObligation) {
	order := make(map[ObligationID]int, len(obligations))
	for i, ob := range obligations {
		order[ob.ID] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.RecognitionDate.Equal(b.RecognitionDate) {
			return a.RecognitionDate.Before(b.RecognitionDate)
		}
		if order[a.ObligationID] != order[b.ObligationID] {
			return order[a.ObligationID] < order[b.ObligationID]
		}
		return a.Sequence < b.Sequence
	})
}

// =============================================================================
// REGENERATION
// =============================================================================

// Recognized is what the journal already holds for one obligation.
type Recognized struct {
	// Total nets recognitions, adjustments and reversals.
	Total generic.Amount

	// Dates are the recognition dates of journaled entries.
	Dates map[string]bool
}

// GenerateRemainingSchedule returns the Scheduled entries still needed for
// ob once rec is accounted for. Only months without a journaled entry are
// scheduled, and together they carry AllocatedAmount - rec.Total:
//
//   - nothing recognized:       the full GenerateSchedule result
//   - open months already sum
//     to the remainder:         those entries unchanged (same IDs)
//   - otherwise:                the remainder apportioned over the open
//                               months by their generated amounts, residual
//                               on the last one
//   - no open month left:       a single catch-up entry on the last date
//
// A remainder of zero yields no entries. A negative remainder is the
// caller's to reject; it also yields no entries.
func GenerateRemainingSchedule(ob AllocatedObligation, rec Recognized) []ScheduleEntry {
	full := GenerateSchedule(ob)
	if len(full) == 0 || (len(rec.Dates) == 0 && rec.Total.IsZero()) {
		return full
	}

	remaining := ob.AllocatedAmount.Sub(rec.Total)
	if !remaining.IsPositive() {
		return nil
	}

	var open []ScheduleEntry
	for _, e := range full {
		if !rec.Dates[e.RecognitionDate.String()] {
			open = append(open, e)
		}
	}
	if len(open) == 0 {
		last := full[len(full)-1]
		return []ScheduleEntry{newEntry(ob, len(full), last.RecognitionDate, remaining)}
	}
	if SumEntries(open).Equal(remaining) {
		return open
	}

	weights := make([]decimal.Decimal, len(open))
	sum := decimal.Zero
	for i, e := range open {
		weights[i] = e.Amount.Value
		sum = sum.Add(e.Amount.Value)
	}
	if !sum.IsPositive() {
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
	}
	shares := generic.Apportion(remaining, weights)
	for i, e := range open {
		open[i] = newEntry(ob, e.Sequence, e.RecognitionDate, shares[i])
	}
	return open
}

// SumEntries totals entry amounts.
func SumEntries(entries []ScheduleEntry) generic.Amount {
	total := generic.Zero()
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

func newEntry(ob AllocatedObligation, seq int, date generic.TimePoint, amount generic.Amount) ScheduleEntry {
	return ScheduleEntry{
		ID:              entryID(ob.ID, seq, date, amount),
		ContractID:      ob.ContractID,
		ObligationID:    ob.ID,
		Sequence:        seq,
		RecognitionDate: date,
		Amount:          amount,
		Status:          StatusScheduled,
	}
}

// entryID is derived from the entry's content: regenerating an unchanged
// schedule yields the same IDs, and any change yields new ones.
func entryID(ob ObligationID, seq int, date generic.TimePoint, amount generic.Amount) EntryID {
	name := string(ob) + "/" + strconv.Itoa(seq) + "/" + date.String() + "/" + amount.String()
	return EntryID(uuid.NewSHA1(idNamespace, []byte(name)).String())
}
