package formulas

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Sorted is an ascending view of a return series used by the order-statistic
// measures. Build it with SortReturns (private copy) or AssumeSorted (no copy).
type Sorted struct {
	values []float64
}

// SortReturns copies x and sorts the copy ascending. The caller's slice keeps its order.
func SortReturns(x []float64) Sorted {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return Sorted{values: s}
}

// AssumeSorted wraps an already ascending buffer without copying it.
// The buffer is shared: callers must not modify it while the view is in use.
func AssumeSorted(x []float64) (Sorted, error) {
	if !sort.Float64sAreSorted(x) {
		return Sorted{}, domainErr("returns", len(x), "buffer is not sorted ascending")
	}
	return Sorted{values: x}, nil
}

// Len returns the number of observations.
func (s Sorted) Len() int { return len(s.values) }

// Values exposes the ascending values. The slice must be treated as read-only.
func (s Sorted) Values() []float64 { return s.values }

// negated returns the ascending view of -x, which is the reversed negation.
func (s Sorted) negated() Sorted {
	n := len(s.values)
	out := make([]float64, n)
	for i, v := range s.values {
		out[n-1-i] = -v
	}
	return Sorted{values: out}
}

// VaR is the negated empirical α-quantile of the lower tail.
func (s Sorted) VaR(alpha float64) (float64, error) {
	if err := CheckAlpha("alpha", alpha); err != nil {
		return 0, err
	}
	if err := checkReturns(s.values, 1); err != nil {
		return 0, err
	}
	return -s.values[tailIndex(len(s.values), alpha)], nil
}

// CVaR is VaR plus the average shortfall beyond it, scaled by 1/(αT).
func (s Sorted) CVaR(alpha float64) (float64, error) {
	v, err := s.VaR(alpha)
	if err != nil {
		return 0, err
	}
	k := tailIndex(len(s.values), alpha)
	shortfall := 0.0
	for _, x := range s.values[:k] {
		shortfall += x + v
	}
	return v - shortfall/(alpha*float64(len(s.values))), nil
}

// WR is the worst realisation, -min(x).
func (s Sorted) WR() (float64, error) {
	if err := checkReturns(s.values, 1); err != nil {
		return 0, err
	}
	return -s.values[0], nil
}

// RG is the range max(x) - min(x).
func (s Sorted) RG() (float64, error) {
	if err := checkReturns(s.values, 1); err != nil {
		return 0, err
	}
	return s.values[len(s.values)-1] - s.values[0], nil
}

// OWA applies an ordered weight array to the ascending values.
func (s Sorted) OWA(w []float64) (float64, error) {
	if err := checkReturns(s.values, 1); err != nil {
		return 0, err
	}
	if len(w) != len(s.values) {
		return 0, domainErr("owa weights", len(w), "length must match the number of observations")
	}
	return floats.Dot(w, s.values), nil
}

// tailIndex is the zero-based position of the ⌈αT⌉-th smallest value.
func tailIndex(n int, alpha float64) int {
	k := ceilInt(alpha * float64(n))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k - 1
}
