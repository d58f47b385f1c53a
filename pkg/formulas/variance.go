package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const symmetryTolerance = 1e-10

// Variance calculates the portfolio variance wᵀΣw.
// Σ must be square, match len(w), and be symmetric positive semi-definite.
func Variance(w []float64, cov [][]float64) (float64, error) {
	sigma, err := quadraticForm("covariance", w, cov)
	if err != nil {
		return 0, err
	}
	wv := mat.NewVecDense(len(w), w)
	return math.Max(mat.Inner(wv, sigma, wv), 0), nil
}

// SD calculates the portfolio standard deviation, the square root of Variance.
func SD(w []float64, cov [][]float64) (float64, error) {
	v, err := Variance(w, cov)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Skew calculates the square root of the quadratic skewness form wᵀVw, where V
// is the pre-computed N×N co-skewness quadratic matrix.
func Skew(w []float64, v [][]float64) (float64, error) {
	return sqrtForm("coskewness", w, v)
}

// SSkew is Skew evaluated on the semi co-skewness quadratic matrix.
func SSkew(w []float64, sv [][]float64) (float64, error) {
	return sqrtForm("semi coskewness", w, sv)
}

func sqrtForm(name string, w []float64, m [][]float64) (float64, error) {
	sym, err := quadraticForm(name, w, m)
	if err != nil {
		return 0, err
	}
	wv := mat.NewVecDense(len(w), w)
	return math.Sqrt(math.Max(mat.Inner(wv, sym, wv), 0)), nil
}

// quadraticForm converts m to a symmetric gonum matrix after checking shape,
// symmetry and positive semi-definiteness.
func quadraticForm(name string, w []float64, m [][]float64) (*mat.SymDense, error) {
	n := len(w)
	if n == 0 {
		return nil, domainErr("weights", n, "must not be empty")
	}
	if len(m) != n {
		return nil, domainErr(name, len(m), fmt.Sprintf("matrix size doesn't match %d weights", n))
	}

	scale := 0.0
	for i := range m {
		if len(m[i]) != n {
			return nil, domainErr(name, len(m[i]), fmt.Sprintf("row %d is not of length %d", i, n))
		}
		for j := range m[i] {
			scale = math.Max(scale, math.Abs(m[i][j]))
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(m[i][j]-m[j][i]) > symmetryTolerance*math.Max(1, scale) {
				return nil, domainErr(name, fmt.Sprintf("[%d][%d]", i, j), "matrix is not symmetric")
			}
			sym.SetSym(i, j, m[i][j])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return nil, domainErr(name, n, "eigendecomposition failed")
	}
	values := eig.Values(nil)
	if values[0] < -symmetryTolerance*math.Max(1, math.Abs(values[n-1])) {
		return nil, domainErr(name, values[0], "matrix is not positive semi-definite")
	}
	return sym, nil
}
