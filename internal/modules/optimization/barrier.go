package optimization

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

const (
	barrierDefaultMaxIter = 1000
	barrierDefaultTol     = 1e-8
	barrierDefaultMu      = 10.0
	barrierDefaultT0      = 0.0 // derive from ν and the starting objective

	// Centering stops once λ²/2 falls below this.
	newtonTol = 1e-10
	// Inside λ < 0.25 a full Newton step stays in the domain.
	fullStepDecrement = 0.0625
	maxCenteringSteps = 200
	// Relaxed tolerances are this factor looser than tol.
	almostFactor = 1e3
)

// BarrierSolver is a primal log-barrier interior-point method for programs
// over nonnegative, exponential and power cones.
type BarrierSolver struct {
	log zerolog.Logger
}

// NewBarrierSolver creates a barrier backend.
func NewBarrierSolver(log zerolog.Logger) *BarrierSolver {
	return &BarrierSolver{log: log.With().Str("backend", "barrier").Logger()}
}

type barrierSettings struct {
	maxIter int
	tol     float64
	mu      float64
	t0      float64
	verbose bool
}

func parseBarrierSettings(p Parameters) (barrierSettings, error) {
	if err := p.checkKeys("max_iter", "tol", "mu", "t0", "verbose"); err != nil {
		return barrierSettings{}, err
	}
	var (
		cfg barrierSettings
		err error
	)
	if cfg.maxIter, err = p.Int("max_iter", barrierDefaultMaxIter); err != nil {
		return cfg, err
	}
	if cfg.tol, err = p.Float("tol", barrierDefaultTol); err != nil {
		return cfg, err
	}
	if cfg.mu, err = p.Float("mu", barrierDefaultMu); err != nil {
		return cfg, err
	}
	if cfg.t0, err = p.Float("t0", barrierDefaultT0); err != nil {
		return cfg, err
	}
	if cfg.verbose, err = p.Bool("verbose", false); err != nil {
		return cfg, err
	}
	switch {
	case cfg.maxIter <= 0:
		return cfg, fmt.Errorf("max_iter must be positive, got %d", cfg.maxIter)
	case !(cfg.tol > 0):
		return cfg, fmt.Errorf("tol must be positive, got %v", cfg.tol)
	case !(cfg.mu > 1):
		return cfg, fmt.Errorf("mu must exceed 1, got %v", cfg.mu)
	case !(cfg.t0 >= 0):
		return cfg, fmt.Errorf("t0 must be non-negative, got %v", cfg.t0)
	}
	return cfg, nil
}

// ValidateParameters implements ParameterValidator.
func (s *BarrierSolver) ValidateParameters(params Parameters) error {
	_, err := parseBarrierSettings(params)
	return err
}

// Solve follows the central path of the cone program from its interior start.
func (s *BarrierSolver) Solve(ctx context.Context, problem *Problem, params Parameters) (Solution, error) {
	if problem == nil || problem.Cone == nil {
		return Solution{Status: StatusUnsupported, Objective: math.NaN()}, ErrUnsupportedProblem
	}
	cfg, err := parseBarrierSettings(params)
	if err != nil {
		return Solution{Status: StatusFailed, Objective: math.NaN()}, err
	}
	prog := problem.Cone
	if err := prog.Validate(); err != nil {
		return Solution{Status: StatusFailed, Objective: math.NaN()}, err
	}

	x := append([]float64(nil), prog.Start...)
	nu := prog.BarrierParameter()
	tau := cfg.t0
	if tau == 0 {
		tau = nu / math.Max(math.Abs(prog.Value(x)), 1e-3)
	}
	iters := 0
	sys := newNewtonSystem(prog)

	// The duality gap bound ν/τ only holds on the central path, so relaxed
	// statuses are reported from the last point where centering converged.
	var (
		centred    []float64
		centredTau float64
	)
	result := func(v []float64, status Status) Solution {
		return Solution{
			Status:     status,
			Objective:  prog.Value(v),
			X:          v,
			Form:       FormCone,
			Iterations: iters,
		}
	}
	fallback := func(otherwise Status) Solution {
		if centred != nil {
			obj := prog.Value(centred)
			if nu/centredTau <= almostFactor*cfg.tol*math.Max(1, math.Abs(obj)) {
				return result(centred, StatusAlmostOptimal)
			}
		}
		return result(x, otherwise)
	}

	for {
		converged, stalled := false, false
		for step := 0; step < maxCenteringSteps; step++ {
			if err := ctx.Err(); err != nil {
				return result(x, StatusTimeout), err
			}
			if iters >= cfg.maxIter {
				return fallback(StatusIterationLimit), nil
			}
			iters++

			f, ok := sys.evaluate(prog, x, tau)
			if !ok {
				return fallback(StatusNumericalError), nil
			}
			dx, err := sys.direction()
			if err != nil {
				return fallback(StatusNumericalError), nil
			}
			dec := -floats.Dot(sys.grad, dx)
			if dec/2 <= newtonTol {
				converged = true
				break
			}
			t := lineSearch(prog, x, dx, tau, f, dec)
			if t == 0 {
				stalled = true
				break
			}
			floats.AddScaled(x, t, dx)
		}

		obj := prog.Value(x)
		gap := nu / tau
		if cfg.verbose {
			s.log.Info().
				Int("iter", iters).
				Float64("tau", tau).
				Float64("gap", gap).
				Float64("objective", obj).
				Bool("centred", converged).
				Msg("barrier step")
		}
		if stalled {
			return fallback(StatusNumericalError), nil
		}
		if converged {
			centred = append(centred[:0], x...)
			centredTau = tau
			if gap <= cfg.tol*math.Max(1, math.Abs(obj)) {
				return result(x, StatusOptimal), nil
			}
		}
		tau *= cfg.mu
	}
}

// penalised returns τ·cᵀv + Φ(v), or ok=false outside the domain.
func penalised(prog *Program, v []float64, tau float64) (float64, bool) {
	f := tau * floats.Dot(prog.Objective, v)
	var s [3]float64
	for _, c := range prog.Cones {
		for r, row := range c.Rows {
			s[r] = row.Eval(v)
		}
		b, ok := coneBarrier(c, s, nil, nil)
		if !ok {
			return 0, false
		}
		f += b
	}
	return f, true
}

// lineSearch returns a step length keeping v + t·dx interior with sufficient
// decrease, or 0 when no usable step exists.
func lineSearch(prog *Program, v, dx []float64, tau, f, dec float64) float64 {
	trial := make([]float64, len(v))
	t := 1.0
	for t > 1e-14 {
		floats.AddScaledTo(trial, v, t, dx)
		ft, ok := penalised(prog, trial, tau)
		if ok {
			if dec < fullStepDecrement && t == 1 {
				return t
			}
			if ft <= f-0.25*t*dec {
				return t
			}
		}
		t *= 0.5
	}
	return 0
}
