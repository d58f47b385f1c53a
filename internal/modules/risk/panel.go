package risk

import (
	"math"

	"github.com/aristath/riskengine/pkg/formulas"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Panel holds asset returns with one row per observation and one column
// per asset.
type Panel [][]float64

// dense validates the panel shape and copies it into a matrix.
func (p Panel) dense() (*mat.Dense, error) {
	if len(p) == 0 {
		return nil, &formulas.DomainError{Param: "assets", Value: 0, Reason: "need at least 1 observation"}
	}
	n := len(p[0])
	if n == 0 {
		return nil, &formulas.DomainError{Param: "assets", Value: 0, Reason: "need at least 1 asset"}
	}
	m := mat.NewDense(len(p), n, nil)
	for i, row := range p {
		if len(row) != n {
			return nil, &formulas.DomainError{Param: "assets", Value: len(row), Reason: "rows must have equal length"}
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// PortfolioReturns combines the panel into the return series of a
// portfolio holding weights w.
func (p Panel) PortfolioReturns(w []float64) ([]float64, error) {
	m, err := p.dense()
	if err != nil {
		return nil, err
	}
	if _, n := m.Dims(); len(w) != n {
		return nil, &formulas.DomainError{Param: "weights", Value: len(w), Reason: "length must match asset count"}
	}
	var x mat.VecDense
	x.MulVec(m, mat.NewVecDense(len(w), append([]float64(nil), w...)))
	return x.RawVector().Data, nil
}

// Covariance returns the sample covariance of the panel columns (N-1
// normalised). With shrink set the estimate is pulled towards a constant
// covariance target: average variance on the diagonal, average covariance
// off it.
func (p Panel) Covariance(shrink bool) ([][]float64, error) {
	m, err := p.dense()
	if err != nil {
		return nil, err
	}
	if t, _ := m.Dims(); t < 2 {
		return nil, &formulas.DomainError{Param: "assets", Value: t, Reason: "need at least 2 observations"}
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, m, nil)
	if shrink {
		shrinkCovariance(&cov)
	}

	n := cov.SymmetricDim()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = cov.At(i, j)
		}
	}
	return out, nil
}

// shrinkCovariance blends cov in place with a target holding the average
// variance on the diagonal and the average covariance elsewhere. The
// intensity is estimated from the dispersion of the entries, capped at 0.5.
func shrinkCovariance(cov *mat.SymDense) {
	n := cov.SymmetricDim()
	if n < 2 {
		return
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += cov.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += cov.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))
	if avgVar <= 0 {
		avgCov = 0
	}
	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		return avgCov
	}

	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sqDiff, sum, sumSq float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := cov.At(i, j)
				d := v - target(i, j)
				sqDiff += d * d
				sum += v
				sumSq += v * v
			}
		}
		cells := float64(n * n)
		meanSqDiff := sqDiff / cells
		mean := sum / cells
		dispersion := sumSq/cells - mean*mean
		if dispersion > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0, dispersion/(dispersion+meanSqDiff)))
		}
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, (1-shrinkage)*cov.At(i, j)+shrinkage*target(i, j))
		}
	}
}
