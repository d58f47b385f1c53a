package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Accumulation selects how returns are chained into a cumulative path.
type Accumulation int

const (
	// Uncompounded sums returns: path_j = Σ_{i≤j} x_i, starting from 0.
	Uncompounded Accumulation = iota
	// Compounded multiplies growth factors: path_j = Π_{i≤j} (1+x_i), starting from 1.
	Compounded
)

func (a Accumulation) String() string {
	if a == Compounded {
		return "compounded"
	}
	return "uncompounded"
}

// Drawdowns builds the drawdown sequence of x: running peak of the cumulative
// path minus the path itself. The result has len(x)+1 entries, the first one
// being the zero drawdown of the starting point; every entry is ≥ 0.
func Drawdowns(x []float64, mode Accumulation) []float64 {
	path := make([]float64, len(x)+1)
	if mode == Compounded {
		growth := make([]float64, len(x))
		for i, r := range x {
			growth[i] = 1 + r
		}
		path[0] = 1
		floats.CumProd(path[1:], growth)
	} else {
		floats.CumSum(path[1:], x)
	}

	dd := path
	peak := math.Inf(-1)
	for i, p := range path {
		peak = math.Max(peak, p)
		dd[i] = peak - p
	}
	return dd
}

// MDD calculates the maximum drawdown of uncompounded cumulative returns.
func MDD(x []float64) (float64, error) { return maxDrawdown(x, Uncompounded) }

// MDDCompounded calculates the maximum drawdown of compounded cumulative returns.
func MDDCompounded(x []float64) (float64, error) { return maxDrawdown(x, Compounded) }

// ADD calculates the average drawdown of uncompounded cumulative returns,
// 1/T Σ_{j=0..T} DD_j.
func ADD(x []float64) (float64, error) { return averageDrawdown(x, Uncompounded) }

// ADDCompounded calculates the average drawdown of compounded cumulative returns.
func ADDCompounded(x []float64) (float64, error) { return averageDrawdown(x, Compounded) }

// UCI calculates the ulcer index of uncompounded cumulative returns,
// sqrt(1/T Σ_{j=0..T} DD_j^2).
func UCI(x []float64) (float64, error) { return ulcerIndex(x, Uncompounded) }

// UCICompounded calculates the ulcer index of compounded cumulative returns.
func UCICompounded(x []float64) (float64, error) { return ulcerIndex(x, Compounded) }

// DaR calculates the drawdown at risk of uncompounded cumulative returns:
// the ⌈αT⌉-th largest entry of the drawdown sequence.
func DaR(x []float64, alpha float64) (float64, error) { return drawdownAtRisk(x, alpha, Uncompounded) }

// DaRCompounded calculates the drawdown at risk of compounded cumulative returns.
func DaRCompounded(x []float64, alpha float64) (float64, error) {
	return drawdownAtRisk(x, alpha, Compounded)
}

// CDaR calculates the conditional drawdown at risk of uncompounded cumulative
// returns: DaR plus the excess of the larger drawdowns over it, scaled by
// 1/(αT).
func CDaR(x []float64, alpha float64) (float64, error) {
	return conditionalDrawdownAtRisk(x, alpha, Uncompounded)
}

// CDaRCompounded calculates the conditional drawdown at risk of compounded cumulative returns.
func CDaRCompounded(x []float64, alpha float64) (float64, error) {
	return conditionalDrawdownAtRisk(x, alpha, Compounded)
}

func maxDrawdown(x []float64, mode Accumulation) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	return floats.Max(Drawdowns(x, mode)), nil
}

func averageDrawdown(x []float64, mode Accumulation) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	return floats.Sum(Drawdowns(x, mode)) / float64(len(x)), nil
}

func ulcerIndex(x []float64, mode Accumulation) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	dd := Drawdowns(x, mode)
	return math.Sqrt(floats.Dot(dd, dd) / float64(len(x))), nil
}

// drawdownTail returns the ascending negated drawdown sequence and the
// position of its ⌈αT⌉-th smallest entry. T counts returns, not the T+1
// drawdown entries, so the starting zero never shifts the quantile.
func drawdownTail(x []float64, alpha float64, mode Accumulation) ([]float64, int, error) {
	if err := CheckAlpha("alpha", alpha); err != nil {
		return nil, 0, err
	}
	if err := checkReturns(x, 1); err != nil {
		return nil, 0, err
	}
	losses := Drawdowns(x, mode)
	floats.Scale(-1, losses)
	sort.Float64s(losses)
	return losses, tailIndex(len(x), alpha), nil
}

func drawdownAtRisk(x []float64, alpha float64, mode Accumulation) (float64, error) {
	losses, k, err := drawdownTail(x, alpha, mode)
	if err != nil {
		return 0, err
	}
	return -losses[k], nil
}

func conditionalDrawdownAtRisk(x []float64, alpha float64, mode Accumulation) (float64, error) {
	losses, k, err := drawdownTail(x, alpha, mode)
	if err != nil {
		return 0, err
	}
	dar := -losses[k]
	excess := 0.0
	for _, l := range losses[:k] {
		excess += l + dar
	}
	return dar - excess/(alpha*float64(len(x))), nil
}
