package optimization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

func quadratic(convex bool) *ScalarProblem {
	return &ScalarProblem{
		Dim: 2,
		Func: func(x []float64) float64 {
			a, b := x[0]-1, x[1]+0.5
			return a*a + 2*b*b + 0.25
		},
		Grad: func(grad, x []float64) {
			grad[0] = 2 * (x[0] - 1)
			grad[1] = 4 * (x[1] + 0.5)
		},
		Start:  []float64{3, 2},
		Convex: convex,
	}
}

func TestScalarSolver_GradientMethods(t *testing.T) {
	for _, method := range []string{MethodBFGS, MethodLBFGS} {
		t.Run(method, func(t *testing.T) {
			s, err := NewScalarSolver(method, quietLogger())
			require.NoError(t, err)

			sol, err := s.Solve(context.Background(), &Problem{Scalar: quadratic(true)}, nil)
			require.NoError(t, err)
			assert.Equal(t, StatusOptimal, sol.Status)
			assert.Equal(t, FormScalar, sol.Form)
			assert.InDelta(t, 0.25, sol.Objective, 1e-12)
			assert.InDeltaSlice(t, []float64{1, -0.5}, sol.X, 1e-6)

			sol, err = s.Solve(context.Background(), &Problem{Scalar: quadratic(false)}, nil)
			require.NoError(t, err)
			assert.Equal(t, StatusLocallyOptimal, sol.Status)
		})
	}
}

func TestScalarSolver_FiniteDifferenceGradient(t *testing.T) {
	p := quadratic(true)
	p.Grad = nil

	s, err := NewScalarSolver(MethodBFGS, quietLogger())
	require.NoError(t, err)
	sol, err := s.Solve(context.Background(), &Problem{Scalar: p}, Parameters{"grad_tol": 1e-6})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, sol.Objective, 1e-9)
}

func TestScalarSolver_NelderMead(t *testing.T) {
	s, err := NewScalarSolver(MethodNelderMead, quietLogger())
	require.NoError(t, err)

	sol, err := s.Solve(context.Background(), &Problem{Scalar: quadratic(true)}, nil)
	require.NoError(t, err)
	assert.Contains(t, []Status{StatusOptimal, StatusAlmostOptimal}, sol.Status)
	assert.InDelta(t, 0.25, sol.Objective, 1e-8)
}

func TestScalarSolver_IterationLimit(t *testing.T) {
	s, err := NewScalarSolver(MethodNelderMead, quietLogger())
	require.NoError(t, err)

	sol, err := s.Solve(context.Background(), &Problem{Scalar: quadratic(true)}, Parameters{"max_iter": 2})
	require.NoError(t, err)
	assert.Equal(t, StatusIterationLimit, sol.Status)
}

func TestScalarSolver_Unsupported(t *testing.T) {
	s, err := NewScalarSolver(MethodLBFGS, quietLogger())
	require.NoError(t, err)

	sol, err := s.Solve(context.Background(), &Problem{Cone: &Program{}}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedProblem)
	assert.Equal(t, StatusUnsupported, sol.Status)
}

func TestNewScalarSolver_UnknownMethod(t *testing.T) {
	_, err := NewScalarSolver("newton-raphson", quietLogger())
	assert.Error(t, err)
}

func TestScalarStatus(t *testing.T) {
	tests := []struct {
		in     optimize.Status
		convex bool
		want   Status
	}{
		{optimize.GradientThreshold, true, StatusOptimal},
		{optimize.GradientThreshold, false, StatusLocallyOptimal},
		{optimize.FunctionConvergence, true, StatusAlmostOptimal},
		{optimize.MethodConverge, false, StatusAlmostLocallyOptimal},
		{optimize.IterationLimit, true, StatusIterationLimit},
		{optimize.RuntimeLimit, true, StatusTimeout},
		{optimize.Failure, true, StatusNumericalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scalarStatus(tt.in, tt.convex), "%v convex=%v", tt.in, tt.convex)
	}
}
