package formulas

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workedExample = []float64{0.05, -0.02, 0.03, -0.07, 0.01}

func TestVaRCVaR_WorkedExample(t *testing.T) {
	x := append([]float64(nil), workedExample...)

	v, err := VaR(x, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.07, v, 1e-12)

	c, err := CVaR(x, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.07, c, 1e-12, "a single tail observation leaves no shortfall beyond VaR")

	wr, err := WR(x)
	require.NoError(t, err)
	assert.InDelta(t, 0.07, wr, 1e-12)

	rg, err := RG(x)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, rg, 1e-12)

	assert.Equal(t, workedExample, x, "input order must be preserved")
}

func TestCVaR(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		alpha     float64
		want      float64
		tolerance float64
	}{
		{
			name:      "two observations in tail",
			returns:   []float64{-0.10, -0.05, -0.02, 0.0, 0.02, 0.05, 0.10, 0.15, 0.20, 0.25},
			alpha:     0.2,
			want:      0.075, // VaR 0.05, shortfall (-0.10+0.05)/(0.2*10) = -0.025
			tolerance: 1e-12,
		},
		{
			name:      "fractional tail weight",
			returns:   []float64{-0.10, -0.05, -0.02, 0.0, 0.02, 0.05, 0.10, 0.15, 0.20, 0.25},
			alpha:     0.15,
			want:      0.05 + 0.05/1.5, // VaR 0.05 at k=2, shortfall -0.05/(0.15*10)
			tolerance: 1e-12,
		},
		{
			name:      "single observation",
			returns:   []float64{-0.10},
			alpha:     0.05,
			want:      0.10,
			tolerance: 1e-12,
		},
		{
			name:      "all gains gives negative risk",
			returns:   []float64{0.01, 0.02, 0.03, 0.04},
			alpha:     0.25,
			want:      -0.01,
			tolerance: 1e-12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CVaR(tt.returns, tt.alpha)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestVaR_FloatNoiseInTailIndex(t *testing.T) {
	x := make([]float64, 30)
	for i := range x {
		x[i] = float64(i)
	}
	// 0.1*30 evaluates to 3.0000000000000004 in floating point.
	v, err := VaR(x, 0.1)
	require.NoError(t, err)
	assert.Equal(t, -2.0, v)
}

func TestCVaRDominatesVaR(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		x := make([]float64, 5+rng.Intn(200))
		for i := range x {
			x[i] = rng.NormFloat64() * 0.02
		}
		for _, alpha := range []float64{0.01, 0.05, 0.1, 0.33, 0.9} {
			v, err := VaR(x, alpha)
			require.NoError(t, err)
			c, err := CVaR(x, alpha)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, c, v-1e-12, "CVaR must dominate VaR (alpha=%v)", alpha)
		}
	}
}

func TestVaRCVaR_PermutationInvariantAndNonMutating(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := make([]float64, 100)
	for i := range x {
		x[i] = rng.NormFloat64() * 0.03
	}
	original := append([]float64(nil), x...)

	v1, err := VaR(x, 0.05)
	require.NoError(t, err)
	c1, err := CVaR(x, 0.05)
	require.NoError(t, err)
	assert.Equal(t, original, x)

	shuffled := append([]float64(nil), x...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	v2, err := VaR(shuffled, 0.05)
	require.NoError(t, err)
	c2, err := CVaR(shuffled, 0.05)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.InDelta(t, c1, c2, 1e-15)
}

func TestRCVaR(t *testing.T) {
	got, err := RCVaR(workedExample, 0.2, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, got, 1e-12, "worst loss 0.07 plus best gain 0.05")
}

func TestAssumeSorted(t *testing.T) {
	buf := []float64{-0.07, -0.02, 0.01, 0.03, 0.05}
	s, err := AssumeSorted(buf)
	require.NoError(t, err)

	v, err := s.VaR(0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.07, v, 1e-12)
	assert.Same(t, &buf[0], &s.Values()[0], "opt-in view must share the caller buffer")

	_, err = AssumeSorted(workedExample)
	assert.True(t, errors.Is(err, ErrDomain))
}

func TestQuantileMeasures_DomainErrors(t *testing.T) {
	_, err := VaR(workedExample, 0)
	assert.ErrorIs(t, err, ErrDomain)

	_, err = CVaR(workedExample, 1)
	assert.ErrorIs(t, err, ErrDomain)

	_, err = VaR(nil, 0.05)
	assert.ErrorIs(t, err, ErrDomain)

	_, err = RCVaR(workedExample, 0.05, 1.5)
	assert.ErrorIs(t, err, ErrDomain)

	var de *DomainError
	_, err = CVaR(workedExample, -0.1)
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "alpha", de.Param)
}
