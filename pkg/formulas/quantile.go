package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// VaR calculates the historical Value at Risk at significance level alpha.
// The result is positive for losses: VaR(x, 0.05) = -q_0.05(x).
// The input is sorted on a private copy; x keeps its order.
func VaR(x []float64, alpha float64) (float64, error) {
	return SortReturns(x).VaR(alpha)
}

// CVaR calculates the Conditional Value at Risk (expected shortfall):
//
//	CVaR(x, α) = VaR(x, α) - 1/(αT) Σ min(x_t + VaR(x, α), 0)
func CVaR(x []float64, alpha float64) (float64, error) {
	return SortReturns(x).CVaR(alpha)
}

// RCVaR is the CVaR range: CVaR of losses at alpha plus CVaR of gains at beta.
func RCVaR(x []float64, alpha, beta float64) (float64, error) {
	if err := CheckAlpha("beta", beta); err != nil {
		return 0, err
	}
	s := SortReturns(x)
	losses, err := s.CVaR(alpha)
	if err != nil {
		return 0, err
	}
	gains, err := s.negated().CVaR(beta)
	if err != nil {
		return 0, err
	}
	return losses + gains, nil
}

// WR calculates the worst realisation, -min(x).
func WR(x []float64) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	return -floats.Min(x), nil
}

// RG calculates the range of the returns, max(x) - min(x).
func RG(x []float64) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	return floats.Max(x) - floats.Min(x), nil
}

// ceilInt rounds v up, ignoring float noise such as 0.1*30 = 3.0000000000000004.
func ceilInt(v float64) int {
	r := math.Round(v)
	if math.Abs(v-r) <= 1e-9*math.Max(1, math.Abs(v)) {
		return int(r)
	}
	return int(math.Ceil(v))
}
