package generic

import "github.com/shopspring/decimal"

// Round rounds half-to-even at the minimal unit.
func (a Amount) Round() Amount { return Amount{Value: a.Value.RoundBank(MinorUnitPlaces)} }

// IsRounded reports whether the amount has no digits below the minimal unit.
func (a Amount) IsRounded() bool { return a.Value.Equal(a.Value.RoundBank(MinorUnitPlaces)) }

// MulRatio multiplies by num/den without rounding. den must be non-zero.
func (a Amount) MulRatio(num, den decimal.Decimal) Amount {
	return Amount{Value: a.Value.Mul(num).Div(den)}
}

// DivInt divides by n without rounding. n must be non-zero.
func (a Amount) DivInt(n int) Amount {
	return Amount{Value: a.Value.Div(decimal.NewFromInt(int64(n)))}
}

// Sum folds amounts with exact addition.
func Sum(amounts ...Amount) Amount {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Apportion splits total across weights in proportion, rounding each share
// half-to-even. The rounding residual lands on the last share (see
// AssignResidual). The shares always sum to total.Round().
//
// Weights must be non-negative with a positive sum.
func Apportion(total Amount, weights []decimal.Decimal) []Amount {
	if len(weights) == 0 {
		return nil
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}

	target := total.Round()
	shares := make([]Amount, len(weights))
	allocated := Zero()
	for i, w := range weights {
		shares[i] = target.MulRatio(w, sum).Round()
		allocated = allocated.Add(shares[i])
	}

	AssignResidual(shares, target.Sub(allocated))
	return shares
}

// AssignResidual adds residual to the last element of shares. A negative
// residual the last element cannot absorb is taken from earlier elements,
// last to first, without driving any of them below zero. Whatever is left
// after that lands on the first element.
func AssignResidual(shares []Amount, residual Amount) {
	if residual.IsZero() || len(shares) == 0 {
		return
	}
	last := len(shares) - 1
	if !residual.IsNegative() {
		shares[last] = shares[last].Add(residual)
		return
	}
	for i := last; i >= 0 && !residual.IsZero(); i-- {
		take := residual.Neg().Min(shares[i])
		if take.IsNegative() {
			continue
		}
		shares[i] = shares[i].Sub(take)
		residual = residual.Add(take)
	}
	if !residual.IsZero() {
		shares[0] = shares[0].Add(residual)
	}
}
