package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Unconstrained methods available to ScalarSolver.
const (
	MethodNelderMead = "nelder-mead"
	MethodBFGS       = "bfgs"
	MethodLBFGS      = "lbfgs"
)

const (
	scalarDefaultMaxIter = 1000
	scalarDefaultGradTol = 1e-9
)

// ScalarSolver minimises the smooth reformulation of a problem with one of
// gonum's unconstrained methods.
type ScalarSolver struct {
	method string
	log    zerolog.Logger
}

// NewScalarSolver creates a backend for the named method.
func NewScalarSolver(method string, log zerolog.Logger) (*ScalarSolver, error) {
	switch method {
	case MethodNelderMead, MethodBFGS, MethodLBFGS:
	default:
		return nil, fmt.Errorf("unknown scalar method %q", method)
	}
	return &ScalarSolver{
		method: method,
		log:    log.With().Str("backend", method).Logger(),
	}, nil
}

type scalarSettings struct {
	maxIter int
	gradTol float64
	verbose bool
}

func parseScalarSettings(p Parameters) (scalarSettings, error) {
	if err := p.checkKeys("max_iter", "grad_tol", "verbose"); err != nil {
		return scalarSettings{}, err
	}
	var (
		cfg scalarSettings
		err error
	)
	if cfg.maxIter, err = p.Int("max_iter", scalarDefaultMaxIter); err != nil {
		return cfg, err
	}
	if cfg.gradTol, err = p.Float("grad_tol", scalarDefaultGradTol); err != nil {
		return cfg, err
	}
	if cfg.verbose, err = p.Bool("verbose", false); err != nil {
		return cfg, err
	}
	if cfg.maxIter <= 0 {
		return cfg, fmt.Errorf("max_iter must be positive, got %d", cfg.maxIter)
	}
	if !(cfg.gradTol > 0) {
		return cfg, fmt.Errorf("grad_tol must be positive, got %v", cfg.gradTol)
	}
	return cfg, nil
}

// ValidateParameters implements ParameterValidator.
func (s *ScalarSolver) ValidateParameters(params Parameters) error {
	_, err := parseScalarSettings(params)
	return err
}

func (s *ScalarSolver) newMethod() optimize.Method {
	switch s.method {
	case MethodBFGS:
		return &optimize.BFGS{}
	case MethodLBFGS:
		return &optimize.LBFGS{}
	default:
		return &optimize.NelderMead{}
	}
}

// Solve minimises problem.Scalar from its start point.
func (s *ScalarSolver) Solve(ctx context.Context, problem *Problem, params Parameters) (Solution, error) {
	if problem == nil || problem.Scalar == nil {
		return Solution{Status: StatusUnsupported, Objective: math.NaN()}, ErrUnsupportedProblem
	}
	cfg, err := parseScalarSettings(params)
	if err != nil {
		return Solution{Status: StatusFailed, Objective: math.NaN()}, err
	}
	sp := problem.Scalar
	if sp.Func == nil || sp.Dim <= 0 || len(sp.Start) != sp.Dim {
		return Solution{Status: StatusFailed, Objective: math.NaN()}, fmt.Errorf("malformed scalar problem %q", problem.Name)
	}
	if err := ctx.Err(); err != nil {
		return Solution{Status: StatusTimeout, Objective: math.NaN()}, err
	}

	grad := sp.Grad
	if grad == nil {
		grad = func(dst, x []float64) {
			fd.Gradient(dst, sp.Func, x, &fd.Settings{Formula: fd.Central})
		}
	}

	settings := &optimize.Settings{
		MajorIterations:   cfg.maxIter,
		GradientThreshold: cfg.gradTol,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-14,
			Iterations: 50,
		},
	}
	if deadline, ok := ctx.Deadline(); ok {
		settings.Runtime = time.Until(deadline)
		if settings.Runtime <= 0 {
			return Solution{Status: StatusTimeout, Objective: math.NaN()}, context.DeadlineExceeded
		}
	}
	if cfg.verbose {
		settings.Recorder = &logRecorder{log: s.log}
	}

	res, err := optimize.Minimize(optimize.Problem{Func: sp.Func, Grad: grad}, append([]float64(nil), sp.Start...), settings, s.newMethod())
	if res == nil {
		if err == nil {
			err = fmt.Errorf("%s returned no result", s.method)
		}
		return Solution{Status: StatusNumericalError, Objective: math.NaN()}, err
	}

	sol := Solution{
		Status:     scalarStatus(res.Status, sp.Convex),
		Objective:  res.F,
		X:          res.X,
		Form:       FormScalar,
		Iterations: res.MajorIterations,
	}
	if err != nil && sol.Status != StatusNumericalError {
		// Minimize reports method failures both ways; the status is authoritative.
		s.log.Debug().Err(err).Str("status", res.Status.String()).Msg("optimizer returned error")
	}
	return sol, nil
}

func scalarStatus(st optimize.Status, convex bool) Status {
	switch st {
	case optimize.GradientThreshold:
		if convex {
			return StatusOptimal
		}
		return StatusLocallyOptimal
	case optimize.FunctionConvergence, optimize.StepConvergence, optimize.MethodConverge:
		if convex {
			return StatusAlmostOptimal
		}
		return StatusAlmostLocallyOptimal
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit:
		return StatusIterationLimit
	case optimize.RuntimeLimit:
		return StatusTimeout
	default:
		return StatusNumericalError
	}
}

// logRecorder reports major iterations through zerolog.
type logRecorder struct {
	log zerolog.Logger
}

func (r *logRecorder) Init() error { return nil }

func (r *logRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration == 0 {
		return nil
	}
	r.log.Info().
		Int("iter", stats.MajorIterations).
		Int("evals", stats.FuncEvaluations).
		Float64("objective", loc.F).
		Msg("scalar step")
	return nil
}
