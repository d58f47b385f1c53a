package formulas

import (
	"gonum.org/v1/gonum/floats"
)

// TailGini configures the discretised continuum of CVaR levels between
// AlphaI and Alpha used by the Tail Gini measures.
type TailGini struct {
	AlphaI float64 // start significance level, 0 < AlphaI < Alpha
	Alpha  float64 // end significance level, in (0, 1)
	Sims   int     // number of CVaR levels in the quadrature, > 0
}

// DefaultTailGini returns the customary configuration for a given end level.
func DefaultTailGini(alpha float64) TailGini {
	return TailGini{AlphaI: 0.0001, Alpha: alpha, Sims: 100}
}

// Validate checks the Tail Gini parameters. A single simulation collapses
// the measure onto CVaR at Alpha and ignores AlphaI.
func (tg TailGini) Validate() error {
	if err := CheckAlpha("alpha", tg.Alpha); err != nil {
		return err
	}
	if tg.Sims <= 0 {
		return domainErr("sims", tg.Sims, "must be positive")
	}
	if tg.Sims > 1 && !(tg.AlphaI > 0 && tg.AlphaI < tg.Alpha) {
		return domainErr("alpha_i", tg.AlphaI, "must lie in (0, alpha)")
	}
	return nil
}

// TailGiniRange pairs the loss-side and gain-side Tail Gini configurations.
type TailGiniRange struct {
	Losses TailGini
	Gains  TailGini
}

// OWAGMDWeights returns the ordered weights that turn an ascending series
// into its Gini mean difference.
func OWAGMDWeights(t int) []float64 {
	w := make([]float64, t)
	if t < 2 {
		return w
	}
	den := float64(t * (t - 1))
	for i := range w {
		w[i] = (4*float64(i+1) - 2*float64(t+1)) / den
	}
	return w
}

// OWACVaRWeights returns the ordered weights reproducing CVaR at alpha.
func OWACVaRWeights(t int, alpha float64) []float64 {
	w := make([]float64, t)
	if t == 0 {
		return w
	}
	k := tailIndex(t, alpha)
	scale := 1 / (alpha * float64(t))
	for i := 0; i < k; i++ {
		w[i] = -scale
	}
	w[k] = -1 + float64(k)*scale
	return w
}

// OWATGWeights returns the ordered weights of the Tail Gini measure: a
// weighted sum of CVaR weight vectors over a grid of significance levels.
func OWATGWeights(t int, tg TailGini) ([]float64, error) {
	if err := tg.Validate(); err != nil {
		return nil, err
	}
	if tg.Sims == 1 {
		return OWACVaRWeights(t, tg.Alpha), nil
	}

	n := tg.Sims
	alphas := floats.Span(make([]float64, n), tg.AlphaI, tg.Alpha)
	last := alphas[n-1]
	omega := make([]float64, n)
	omega[0] = alphas[1] * alphas[0] / (last * last)
	for j := 1; j < n-1; j++ {
		omega[j] = (alphas[j+1] - alphas[j-1]) * alphas[j] / (last * last)
	}
	omega[n-1] = (alphas[n-1] - alphas[n-2]) / last

	w := make([]float64, t)
	for j, a := range alphas {
		floats.AddScaled(w, omega[j], OWACVaRWeights(t, a))
	}
	return w, nil
}

// OWA calculates an ordered weight array risk measure: Σ w_i x_(i) over the
// ascending order statistics of x.
func OWA(x, w []float64) (float64, error) {
	return SortReturns(x).OWA(w)
}

// GMD calculates the Gini mean difference, the mean absolute difference
// between distinct observations.
func GMD(x []float64) (float64, error) {
	if err := checkReturns(x, 2); err != nil {
		return 0, err
	}
	return SortReturns(x).OWA(OWAGMDWeights(len(x)))
}

// TG calculates the Tail Gini of the loss tail.
func TG(x []float64, tg TailGini) (float64, error) {
	return SortReturns(x).TG(tg)
}

// RTG calculates the Tail Gini range: Tail Gini of losses plus Tail Gini of gains.
func RTG(x []float64, r TailGiniRange) (float64, error) {
	return SortReturns(x).RTG(r)
}

// TG evaluates the Tail Gini on an ascending view.
func (s Sorted) TG(tg TailGini) (float64, error) {
	if err := checkReturns(s.values, 1); err != nil {
		return 0, err
	}
	w, err := OWATGWeights(len(s.values), tg)
	if err != nil {
		return 0, err
	}
	return s.OWA(w)
}

// RTG evaluates the Tail Gini range on an ascending view.
func (s Sorted) RTG(r TailGiniRange) (float64, error) {
	losses, err := s.TG(r.Losses)
	if err != nil {
		return 0, err
	}
	gains, err := s.negated().TG(r.Gains)
	if err != nil {
		return 0, err
	}
	return losses + gains, nil
}
