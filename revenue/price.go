package revenue

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
)

// =============================================================================
// TRANSACTION PRICE RESOLVER
// =============================================================================

// Contribution is one element's effect on the transaction price.
type Contribution struct {
	Element VariableConsiderationElement

	// Constrained is Amount scaled by the constraint factor, before sign.
	Constrained generic.Amount

	// Signed is what was added to the price.
	Signed generic.Amount

	// Disclose marks Financing and Other elements, which count toward the
	// price but must be reported separately.
	Disclose bool
}

// PriceResolution is the output of ResolvePrice.
type PriceResolution struct {
	BaseValue     generic.Amount
	Price         generic.Amount
	Contributions []Contribution
}

// Disclosures returns the contributions flagged for disclosure.
func (r PriceResolution) Disclosures() []Contribution {
	var out []Contribution
	for _, c := range r.Contributions {
		if c.Disclose {
			out = append(out, c)
		}
	}
	return out
}

// ResolvePrice combines the base value with variable consideration:
//
//	price = base + Σ sign(type) × amount × factor
//
// Bonus, UsageBased and NonCash add the magnitude of the amount; Penalty,
// Rebate and Refund subtract it; Financing and Other add the amount as
// signed. A missing factor means 1. The result is rounded half-to-even to the
// minimal unit.
//
// A negative result is rejected with *generic.InvalidPriceError; the
// resolution is not returned in that case.
func ResolvePrice(base generic.Amount, elements []VariableConsiderationElement) (PriceResolution, error) {
	res := PriceResolution{BaseValue: base}
	price := base

	for i, el := range elements {
		constrained, err := constrain(i, el)
		if err != nil {
			return PriceResolution{}, err
		}

		var signed generic.Amount
		disclose := false
		switch el.Type {
		case Bonus, UsageBased, NonCash:
			signed = constrained.Abs()
		case Penalty, Rebate, Refund:
			signed = constrained.Abs().Neg()
		case Financing, Other:
			signed = constrained
			disclose = true
		default:
			return PriceResolution{}, &generic.InvalidConsiderationError{
				Index:  i,
				Reason: fmt.Sprintf("unknown type %q", el.Type),
			}
		}

		price = price.Add(signed)
		res.Contributions = append(res.Contributions, Contribution{
			Element:     el,
			Constrained: constrained,
			Signed:      signed,
			Disclose:    disclose,
		})
	}

	price = price.Round()
	if price.IsNegative() {
		return PriceResolution{}, &generic.InvalidPriceError{Computed: price, Clamped: generic.Zero()}
	}
	res.Price = price
	return res, nil
}

func constrain(i int, el VariableConsiderationElement) (generic.Amount, error) {
	if el.ConstraintFactor == nil {
		return el.Amount, nil
	}
	f := *el.ConstraintFactor
	if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
		return generic.Amount{}, &generic.InvalidConsiderationError{
			Index:  i,
			Reason: fmt.Sprintf("constraint factor %s outside [0,1]", f),
		}
	}
	return el.Amount.Mul(f), nil
}
