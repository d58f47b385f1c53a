package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean, weighted when w is non-nil.
func Mean(x, w []float64) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	if w != nil && len(w) != len(x) {
		return 0, domainErr("mean weights", len(w), "length must match the number of observations")
	}
	return stat.Mean(x, w), nil
}

// MAD calculates the mean absolute deviation around the (optionally weighted) mean.
//
//	MAD(x) = 1/T Σ |x_t - E(x)|
func MAD(x, w []float64) (float64, error) {
	mu, err := Mean(x, w)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		sum += math.Abs(v - mu)
	}
	return sum / float64(len(x)), nil
}

// SSD calculates the semi standard deviation. Only observations whose
// shortfall below the mean, E(x) - x_t, reaches the target r contribute:
//
//	SSD(x, r) = sqrt( Σ_{E(x)-x_t ≥ r} (E(x)-x_t)^2 / (T-1) )
func SSD(x []float64, r float64, w []float64) (float64, error) {
	if err := checkReturns(x, 2); err != nil {
		return 0, err
	}
	mu, err := Mean(x, w)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		if d := mu - v; d >= r {
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(len(x)-1)), nil
}

// FLPM calculates the first lower partial moment (Omega ratio denominator).
//
//	FLPM(x, r) = 1/T Σ max(r - x_t, 0)
func FLPM(x []float64, r float64) (float64, error) {
	if err := checkReturns(x, 1); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		sum += math.Max(r-v, 0)
	}
	return sum / float64(len(x)), nil
}

// SLPM calculates the second lower partial moment (Sortino ratio denominator).
//
//	SLPM(x, r) = sqrt( Σ max(r - x_t, 0)^2 / (T-1) )
func SLPM(x []float64, r float64) (float64, error) {
	if err := checkReturns(x, 2); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		d := math.Max(r-v, 0)
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)-1)), nil
}

// Kurt calculates the square root kurtosis, sqrt(1/T Σ (x_t - E(x))^4).
func Kurt(x []float64) (float64, error) {
	return fourthMoment(x, false)
}

// SKurt calculates the square root semi-kurtosis, restricted to observations below the mean.
func SKurt(x []float64) (float64, error) {
	return fourthMoment(x, true)
}

func fourthMoment(x []float64, lowerOnly bool) (float64, error) {
	mu, err := Mean(x, nil)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		d := v - mu
		if lowerOnly && d >= 0 {
			continue
		}
		sum += d * d * d * d
	}
	return math.Sqrt(sum / float64(len(x))), nil
}
