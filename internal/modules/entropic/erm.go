package entropic

import (
	"math"

	"github.com/aristath/riskengine/pkg/formulas"
	"gonum.org/v1/gonum/floats"
)

func checkInputs(x []float64, alpha float64) error {
	if len(x) == 0 {
		return &formulas.DomainError{Param: "returns", Value: 0, Reason: "need at least 1 observation"}
	}
	return formulas.CheckAlpha("alpha", alpha)
}

// ERM is the entropic risk of returns x at a fixed positive z:
//
//	z·ln(mean(exp(-x/z)) / α)
//
// Minimising over z gives the Entropic Value at Risk.
func ERM(x []float64, z, alpha float64) (float64, error) {
	if err := checkInputs(x, alpha); err != nil {
		return math.NaN(), err
	}
	if !(z > 0) || math.IsInf(z, 1) {
		return math.NaN(), &formulas.DomainError{Param: "z", Value: z, Reason: "must be positive and finite"}
	}
	v, _ := entropic(x, z, alpha, make([]float64, len(x)))
	return v, nil
}

// entropic returns ERM(x, z, α) and its derivative in z. buf holds len(x)
// scratch values.
func entropic(x []float64, z, alpha float64, buf []float64) (float64, float64) {
	for i, xi := range x {
		buf[i] = -xi / z
	}
	lse := floats.LogSumExp(buf)
	l := lse - math.Log(float64(len(x))*alpha)

	// d/dz = l + Σ softmax_i·x_i / z
	tilt := 0.0
	for i, xi := range x {
		tilt += math.Exp(buf[i]-lse) * xi
	}
	return z * l, l + tilt/z
}
