package entropic

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReturns(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()*0.02 + 0.001
	}
	// a couple of fat-tail days
	x[n/3] = -0.06
	x[2*n/3] = -0.045
	return x
}

func scalarEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	log := zerolog.Nop()
	catalog := optimization.DefaultCatalog()
	reg, err := optimization.NewRegistry(
		optimization.SolverConfig{Name: "lbfgs", Solver: catalog[optimization.MethodLBFGS](log)},
		optimization.SolverConfig{
			Name:   "nelder-mead",
			Solver: catalog[optimization.MethodNelderMead](log),
			Check:  optimization.AcceptanceCriteria{AllowAlmost: true},
		},
	)
	require.NoError(t, err)
	return NewEvaluator(optimization.NewRunner(log), reg)
}

func barrierEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	log := zerolog.Nop()
	reg, err := optimization.NewRegistry(optimization.SolverConfig{
		Name:   "barrier",
		Solver: optimization.NewBarrierSolver(log),
		Check:  optimization.AcceptanceCriteria{AllowAlmost: true},
	})
	require.NoError(t, err)
	return NewEvaluator(optimization.NewRunner(log), reg)
}

func TestEvaluator_EVaRBoundsTailMeasures(t *testing.T) {
	ctx := context.Background()
	e := scalarEvaluator(t)

	for _, seed := range []int64{1, 2, 3} {
		x := sampleReturns(60, seed)
		for _, alpha := range []float64{0.05, 0.2} {
			res, err := e.SolveERM(ctx, x, alpha)
			require.NoError(t, err)
			require.False(t, math.IsNaN(res.Value), "seed %d α %v", seed, alpha)
			assert.Greater(t, res.Z, 0.0)
			assert.NotEmpty(t, res.Solver)

			varV, err := formulas.VaR(x, alpha)
			require.NoError(t, err)
			cvar, err := formulas.CVaR(x, alpha)
			require.NoError(t, err)
			wr, err := formulas.WR(x)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, res.Value, cvar-1e-9)
			assert.GreaterOrEqual(t, cvar, varV)
			assert.LessOrEqual(t, res.Value, wr+1e-8)

			direct, err := ERM(x, res.Z, alpha)
			require.NoError(t, err)
			assert.InDelta(t, direct, res.Value, 1e-12, "value is ERM at the reported z")
		}
	}
}

func TestEvaluator_RVaRBetweenEVaRAndWorstRealisation(t *testing.T) {
	ctx := context.Background()
	e := scalarEvaluator(t)
	x := sampleReturns(50, 4)

	evar, err := e.EVaR(ctx, x, 0.05)
	require.NoError(t, err)
	wr, err := formulas.WR(x)
	require.NoError(t, err)

	prev := evar
	for _, kappa := range []float64{0.1, 0.3, 0.6, 0.9} {
		rvar, err := e.RVaR(ctx, x, 0.05, kappa)
		require.NoError(t, err)
		require.False(t, math.IsNaN(rvar))
		assert.GreaterOrEqual(t, rvar, prev-1e-8, "non-decreasing in κ (κ=%v)", kappa)
		assert.LessOrEqual(t, rvar, wr+1e-8)
		prev = rvar
	}

	small, err := e.RVaR(ctx, x, 0.05, 0.001)
	require.NoError(t, err)
	assert.InEpsilon(t, evar, small, 5e-3)
}

func TestEvaluator_DrawdownVariants(t *testing.T) {
	ctx := context.Background()
	e := scalarEvaluator(t)
	x := sampleReturns(50, 6)

	edar, err := e.EDaR(ctx, x, 0.05)
	require.NoError(t, err)
	// CDaR scales by αT over T+1 drawdowns; this level matches the EVaR tail.
	cdar, err := formulas.CDaR(x, 0.05*51/50)
	require.NoError(t, err)
	mdd, err := formulas.MDD(x)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, edar, cdar-1e-9)
	assert.LessOrEqual(t, edar, mdd+1e-8)

	rdar, err := e.RDaR(ctx, x, 0.05, 0.3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rdar, edar-1e-8)
	assert.LessOrEqual(t, rdar, mdd+1e-8)

	edarR, err := e.EDaRCompounded(ctx, x, 0.05)
	require.NoError(t, err)
	mddR, err := formulas.MDDCompounded(x)
	require.NoError(t, err)
	assert.LessOrEqual(t, edarR, mddR+1e-8)

	rdarR, err := e.RDaRCompounded(ctx, x, 0.05, 0.3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rdarR, edarR-1e-8)
}

func TestEvaluator_ConeAndScalarFormsAgree(t *testing.T) {
	ctx := context.Background()
	x := sampleReturns(15, 8)
	cone := barrierEvaluator(t)
	scalar := scalarEvaluator(t)

	erm, err := cone.SolveERM(ctx, x, 0.1)
	require.NoError(t, err)
	require.Equal(t, "barrier", erm.Solver)
	want, err := scalar.EVaR(ctx, x, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, want, erm.Value, 1e-5)
	assert.Greater(t, erm.Z, 0.0)

	rrm, err := cone.SolveRRM(ctx, x, 0.1, 0.3)
	require.NoError(t, err)
	require.Equal(t, "barrier", rrm.Solver)
	want, err = scalar.RVaR(ctx, x, 0.1, 0.3)
	require.NoError(t, err)
	assert.InDelta(t, want, rrm.Value, 1e-5)
}

func TestEvaluator_RelaxedBarrierMatchesScalarSolution(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()
	reg, err := optimization.LoadRegistry(strings.NewReader(`
solvers:
  - name: barrier
    solver: barrier
    check_sol: {allow_local: true, allow_almost: true}
`), optimization.DefaultCatalog(), log)
	require.NoError(t, err)
	relaxed := NewEvaluator(optimization.NewRunner(log), reg)

	rng := rand.New(rand.NewSource(42))
	x := make([]float64, 150)
	for i := range x {
		x[i] = rng.NormFloat64()*0.02 + 0.0005
	}

	want, err := scalarEvaluator(t).EVaR(ctx, x, 0.05)
	require.NoError(t, err)
	got, err := relaxed.SolveERM(ctx, x, 0.05)
	require.NoError(t, err)

	// Either the barrier declines, or what it returns is the optimum.
	if got.Solver != "" {
		assert.InDelta(t, want, got.Value, 1e-4*math.Abs(want), "status %s", got.Status)
	} else {
		assert.True(t, math.IsNaN(got.Value))
	}
}

func TestEvaluator_BarrierHandlesLongSeries(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()
	reg, err := optimization.NewRegistry(optimization.SolverConfig{
		Name:   "barrier",
		Solver: optimization.NewBarrierSolver(log),
		Check:  optimization.AcceptanceCriteria{AllowAlmost: true},
	})
	require.NoError(t, err)
	e := NewEvaluator(optimization.NewRunner(log, optimization.WithAttemptTimeout(20*time.Second)), reg)

	x := sampleReturns(400, 11)
	got, err := e.SolveRRM(ctx, x, 0.05, 0.3)
	require.NoError(t, err)
	require.Len(t, got.Attempts, 1)
	assert.NotEqual(t, optimization.StatusTimeout, got.Attempts[0].Status)

	want, err := scalarEvaluator(t).RVaR(ctx, x, 0.05, 0.3)
	require.NoError(t, err)
	if got.Solver != "" {
		assert.InDelta(t, want, got.Value, 1e-4*math.Abs(want))
	}
}

func TestEvaluator_EmptyRegistryYieldsNaN(t *testing.T) {
	reg, err := optimization.NewRegistry()
	require.NoError(t, err)
	e := NewEvaluator(optimization.NewRunner(zerolog.Nop()), reg)

	res, err := e.SolveERM(context.Background(), sampleReturns(20, 1), 0.05)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Value))
	assert.True(t, math.IsNaN(res.Z))
	assert.Empty(t, res.Solver)

	v, err := e.RDaR(context.Background(), sampleReturns(20, 1), 0.05, 0.3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestEvaluator_DomainErrors(t *testing.T) {
	ctx := context.Background()
	e := scalarEvaluator(t)
	x := sampleReturns(20, 2)

	calls := map[string]func() (float64, error){
		"EVaR empty":         func() (float64, error) { return e.EVaR(ctx, nil, 0.05) },
		"EVaR alpha":         func() (float64, error) { return e.EVaR(ctx, x, 0) },
		"EDaR empty":         func() (float64, error) { return e.EDaR(ctx, nil, 0.05) },
		"EDaR_r alpha":       func() (float64, error) { return e.EDaRCompounded(ctx, x, 1) },
		"RVaR kappa":         func() (float64, error) { return e.RVaR(ctx, x, 0.05, 1) },
		"RDaR kappa":         func() (float64, error) { return e.RDaR(ctx, x, 0.05, 0) },
		"RDaR_r empty":       func() (float64, error) { return e.RDaRCompounded(ctx, nil, 0.05, 0.3) },
		"RVaR alpha":         func() (float64, error) { return e.RVaR(ctx, x, -0.1, 0.3) },
		"EDaR_r empty slice": func() (float64, error) { return e.EDaRCompounded(ctx, []float64{}, 0.05) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			v, err := call()
			assert.ErrorIs(t, err, formulas.ErrDomain)
			assert.True(t, math.IsNaN(v))
		})
	}
}

func TestEvaluator_DoesNotMutateInput(t *testing.T) {
	x := sampleReturns(30, 12)
	orig := append([]float64(nil), x...)
	e := scalarEvaluator(t)

	_, err := e.EVaR(context.Background(), x, 0.05)
	require.NoError(t, err)
	_, err = e.RDaR(context.Background(), x, 0.05, 0.3)
	require.NoError(t, err)
	assert.Equal(t, orig, x)
}
