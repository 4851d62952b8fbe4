/*
Package generic provides the domain-agnostic core of the revenue engine.

PURPOSE:
  Exact money arithmetic, calendar-month date handling, the error taxonomy
  and the append-only journal. The revenue package builds the five-step
  recognition model on top of these pieces; nothing in here knows what a
  contract or a performance obligation is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: an exact decimal quantity in an implied currency
  - Transaction: an immutable journal record (recognition, adjustment, reversal)
  - Entity/Account IDs: the journal is keyed by (entity, account)

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: decimal.Decimal everywhere, rounding only at the minimal unit
  3. Auditability: Every transaction has a reason, reference and idempotency key

USAGE:
  price := generic.MustAmount("1200.00")
  monthly := price.DivInt(3).Round()

SEE ALSO:
  - money.go: rounding and proportional splits
  - period.go: half-open periods and month iteration
  - ledger.go: journal interface
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Exact decimal quantity
// =============================================================================

// MinorUnitPlaces is the number of decimal places of the smallest currency
// subunit. Every persisted amount is rounded to this precision.
const MinorUnitPlaces int32 = 2

// Amount is a currency-agnostic decimal amount.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount        { return Amount{Value: decimal.NewFromFloat(value)} }
func NewAmountFromInt(value int64) Amount   { return Amount{Value: decimal.NewFromInt(value)} }
func AmountOf(value decimal.Decimal) Amount { return Amount{Value: value} }

// ParseAmount parses a decimal string such as "1200.00" or "-15.5".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{Value: d}, nil
}

// MustAmount parses s and panics on malformed input. Intended for literals.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func Zero() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s)} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg()} }
func (a Amount) Abs() Amount                  { return Amount{Value: a.Value.Abs()} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Cmp(b Amount) int             { return a.Value.Cmp(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// String renders the amount at minimal-unit precision ("219.35").
func (a Amount) String() string { return a.Value.StringFixedBank(MinorUnitPlaces) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EntityID groups journal records (a contract, for the revenue domain).
type EntityID string

// AccountID is the sub-ledger inside an entity (a performance obligation).
type AccountID string

type TransactionID string

// =============================================================================
// TRANSACTION - Immutable journal record
// =============================================================================

type TransactionType string

const (
	TxRecognition TransactionType = "recognition" // Scheduled amount earned
	TxAdjustment  TransactionType = "adjustment"  // Signed correction of a prior record
	TxReversal    TransactionType = "reversal"    // Exact negation of a prior record
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	AccountID      AccountID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    TransactionID // Record this one corrects; empty for recognitions
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt time.Time
}
