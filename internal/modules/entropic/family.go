package entropic

import (
	"context"
	"math"

	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/aristath/riskengine/pkg/formulas"
)

// Result is an optimised entropic or relativistic risk.
// Value and Z are NaN when no solver was accepted.
type Result struct {
	Value    float64
	Z        float64
	Solver   string
	Status   optimization.Status
	Attempts []optimization.Attempt
}

// Evaluator solves the entropic family through a solver registry.
type Evaluator struct {
	runner   *optimization.Runner
	registry *optimization.Registry
}

// NewEvaluator creates an evaluator.
func NewEvaluator(runner *optimization.Runner, registry *optimization.Registry) *Evaluator {
	return &Evaluator{runner: runner, registry: registry}
}

// SolveERM minimises ERM(x, z, α) over z > 0.
func (e *Evaluator) SolveERM(ctx context.Context, x []float64, alpha float64) (Result, error) {
	problem, err := FormulateERM(x, alpha)
	if err != nil {
		return Result{Value: math.NaN(), Z: math.NaN()}, err
	}
	return e.solve(ctx, problem), nil
}

// SolveRRM minimises RRM(x, z, α, κ) over z > 0.
func (e *Evaluator) SolveRRM(ctx context.Context, x []float64, alpha, kappa float64) (Result, error) {
	problem, err := FormulateRRM(x, alpha, kappa)
	if err != nil {
		return Result{Value: math.NaN(), Z: math.NaN()}, err
	}
	return e.solve(ctx, problem), nil
}

func (e *Evaluator) solve(ctx context.Context, problem *optimization.Problem) Result {
	out := e.runner.Run(ctx, e.registry, problem)
	res := Result{
		Value:    out.Value,
		Z:        math.NaN(),
		Solver:   out.Solver,
		Status:   out.Solution.Status,
		Attempts: out.Attempts,
	}
	if !out.Accepted() {
		return res
	}
	switch sol := out.Solution; sol.Form {
	case optimization.FormCone:
		if len(sol.X) > varZ {
			res.Z = sol.X[varZ]
		}
	case optimization.FormScalar:
		if len(sol.X) > 0 {
			res.Z = math.Exp(sol.X[0])
		}
	}
	return res
}

// EVaR is the Entropic Value at Risk of returns x.
func (e *Evaluator) EVaR(ctx context.Context, x []float64, alpha float64) (float64, error) {
	r, err := e.SolveERM(ctx, x, alpha)
	return r.Value, err
}

// EDaR is the Entropic Drawdown at Risk of uncompounded cumulative returns.
func (e *Evaluator) EDaR(ctx context.Context, x []float64, alpha float64) (float64, error) {
	dd, err := drawdownReturns(x, formulas.Uncompounded)
	if err != nil {
		return math.NaN(), err
	}
	return e.EVaR(ctx, dd, alpha)
}

// EDaRCompounded is EDaR over compounded cumulative returns.
func (e *Evaluator) EDaRCompounded(ctx context.Context, x []float64, alpha float64) (float64, error) {
	dd, err := drawdownReturns(x, formulas.Compounded)
	if err != nil {
		return math.NaN(), err
	}
	return e.EVaR(ctx, dd, alpha)
}

// RVaR is the Relativistic Value at Risk of returns x.
func (e *Evaluator) RVaR(ctx context.Context, x []float64, alpha, kappa float64) (float64, error) {
	r, err := e.SolveRRM(ctx, x, alpha, kappa)
	return r.Value, err
}

// RDaR is the Relativistic Drawdown at Risk of uncompounded cumulative returns.
func (e *Evaluator) RDaR(ctx context.Context, x []float64, alpha, kappa float64) (float64, error) {
	dd, err := drawdownReturns(x, formulas.Uncompounded)
	if err != nil {
		return math.NaN(), err
	}
	return e.RVaR(ctx, dd, alpha, kappa)
}

// RDaRCompounded is RDaR over compounded cumulative returns.
func (e *Evaluator) RDaRCompounded(ctx context.Context, x []float64, alpha, kappa float64) (float64, error) {
	dd, err := drawdownReturns(x, formulas.Compounded)
	if err != nil {
		return math.NaN(), err
	}
	return e.RVaR(ctx, dd, alpha, kappa)
}

// drawdownReturns expresses the drawdown path as returns: a drawdown of d
// is a loss of d.
func drawdownReturns(x []float64, mode formulas.Accumulation) ([]float64, error) {
	if len(x) == 0 {
		return nil, &formulas.DomainError{Param: "returns", Value: 0, Reason: "need at least 1 observation"}
	}
	dd := formulas.Drawdowns(x, mode)
	for i := range dd {
		dd[i] = -dd[i]
	}
	return dd, nil
}
