package formulas

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDVar(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{name: "two points", returns: []float64{0, 1}, want: 0.25},
		{name: "constant series", returns: []float64{0.02, 0.02, 0.02}, want: 0},
		{name: "single observation", returns: []float64{0.05}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DVar(tt.returns)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestDVar_ShiftInvariantAndScalesQuadratically(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	x := make([]float64, 25)
	for i := range x {
		x[i] = rng.NormFloat64() * 0.01
	}
	base, err := DVar(x)
	require.NoError(t, err)
	assert.Greater(t, base, 0.0)

	shifted := make([]float64, len(x))
	scaled := make([]float64, len(x))
	for i, v := range x {
		shifted[i] = v + 0.5
		scaled[i] = 3 * v
	}

	got, err := DVar(shifted)
	require.NoError(t, err)
	assert.InDelta(t, base, got, 1e-12)

	got, err = DVar(scaled)
	require.NoError(t, err)
	assert.InDelta(t, 9*base, got, 1e-10*math.Max(1, base))
}

func TestDVar_Empty(t *testing.T) {
	_, err := DVar(nil)
	assert.ErrorIs(t, err, ErrDomain)
}
