package formulas

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DVar calculates the Brownian distance variance of the return series:
// the mean of the squared doubly-centred pairwise distance matrix.
//
//	a_ij = |x_i - x_j|
//	A_ij = a_ij - ā_i. - ā_.j + ā_..
//	dVar = 1/T² Σ A_ij²
func DVar(x []float64) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	t := len(x)
	a := mat.NewDense(t, t, nil)
	a.Apply(func(i, j int, _ float64) float64 {
		return math.Abs(x[i] - x[j])
	}, a)

	// The distance matrix is symmetric, so row means double as column means.
	means := make([]float64, t)
	grand := 0.0
	for i := 0; i < t; i++ {
		means[i] = mat.Sum(a.RowView(i)) / float64(t)
		grand += means[i]
	}
	grand /= float64(t)

	a.Apply(func(i, j int, v float64) float64 {
		return v - means[i] - means[j] + grand
	}, a)

	var sq mat.Dense
	sq.MulElem(a, a)
	return mat.Sum(&sq) / float64(t*t), nil
}
