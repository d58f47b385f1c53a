package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarianceAndSD(t *testing.T) {
	w := []float64{0.5, 0.5}
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.03},
	}

	v, err := Variance(w, cov)
	require.NoError(t, err)
	assert.InDelta(t, 0.0225, v, 1e-12)

	sd, err := SD(w, cov)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, sd, 1e-12)
}

func TestVariance_InvalidCovariance(t *testing.T) {
	tests := []struct {
		name string
		w    []float64
		cov  [][]float64
	}{
		{name: "empty weights", w: nil, cov: nil},
		{name: "size mismatch", w: []float64{1}, cov: [][]float64{{1, 0}, {0, 1}}},
		{name: "ragged rows", w: []float64{0.5, 0.5}, cov: [][]float64{{1, 0}, {0}}},
		{name: "asymmetric", w: []float64{0.5, 0.5}, cov: [][]float64{{1, 0.2}, {0.1, 1}}},
		{name: "indefinite", w: []float64{0.5, 0.5}, cov: [][]float64{{1, 2}, {2, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Variance(tt.w, tt.cov)
			assert.ErrorIs(t, err, ErrDomain)

			_, err = SD(tt.w, tt.cov)
			assert.ErrorIs(t, err, ErrDomain)
		})
	}
}

func TestVariance_SingularPSDAccepted(t *testing.T) {
	// Perfectly correlated assets: rank one but still positive semi-definite.
	cov := [][]float64{
		{0.04, 0.04},
		{0.04, 0.04},
	}
	v, err := Variance([]float64{1, -1}, cov)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-15)
}

func TestSkew(t *testing.T) {
	v := [][]float64{
		{0.002, 0.0005},
		{0.0005, 0.001},
	}
	w := []float64{0.6, 0.4}
	want := math.Sqrt(0.36*0.002 + 2*0.24*0.0005 + 0.16*0.001)

	got, err := Skew(w, v)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	got, err = SSkew(w, v)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}
