package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Attempt records one backend invocation.
type Attempt struct {
	Solver    string
	Status    Status
	Accepted  bool
	Objective float64
	Duration  time.Duration
	Err       error
}

// Outcome is the result of running a problem through a registry.
// Value is NaN when no attempt was accepted.
type Outcome struct {
	Value    float64
	Solver   string
	Solution Solution
	Attempts []Attempt
}

// Accepted reports whether some solver produced an accepted solution.
func (o Outcome) Accepted() bool {
	return o.Solver != ""
}

// Runner tries the solvers of a registry in order and returns the first
// accepted solution.
type Runner struct {
	log     zerolog.Logger
	timeout time.Duration
	metrics *Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAttemptTimeout bounds each individual attempt. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMetrics records every attempt in m.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a runner.
func NewRunner(log zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{log: log.With().Str("component", "solver_runner").Logger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run solves problem with each solver of reg in turn. Failures, panics and
// rejected statuses move on to the next solver; later solvers are not
// attempted once one is accepted. When ctx is cancelled the remaining
// solvers are recorded with StatusNotAttempted.
func (r *Runner) Run(ctx context.Context, reg *Registry, problem *Problem) Outcome {
	out := Outcome{Value: math.NaN()}
	name := ""
	if problem != nil {
		name = problem.Name
	}
	if reg.Len() == 0 {
		r.log.Warn().Str("problem", name).Msg("empty solver registry, no solution")
		return out
	}

	for i, cfg := range reg.configs {
		if err := ctx.Err(); err != nil {
			for _, rest := range reg.configs[i:] {
				out.Attempts = append(out.Attempts, Attempt{
					Solver:    rest.Name,
					Status:    StatusNotAttempted,
					Objective: math.NaN(),
					Err:       err,
				})
			}
			r.log.Warn().Err(err).
				Str("problem", name).
				Int("skipped", len(reg.configs)-i).
				Msg("evaluation cancelled")
			return out
		}

		sol, att := r.attempt(ctx, cfg, problem)
		out.Attempts = append(out.Attempts, att)
		r.metrics.observe(att)

		ev := r.log.Debug()
		if att.Err != nil {
			ev = r.log.Warn().Err(att.Err)
		}
		ev.Str("problem", name).
			Str("solver", cfg.Name).
			Str("status", att.Status.String()).
			Bool("accepted", att.Accepted).
			Float64("objective", att.Objective).
			Dur("duration", att.Duration).
			Msg("solver attempt")

		if att.Accepted {
			out.Value = sol.Objective
			out.Solver = cfg.Name
			out.Solution = sol
			return out
		}
	}

	r.log.Warn().
		Str("problem", name).
		Int("attempts", len(out.Attempts)).
		Msg("no solver produced an accepted solution")
	return out
}

type solveResult struct {
	sol Solution
	err error
}

func (r *Runner) attempt(ctx context.Context, cfg SolverConfig, problem *Problem) (Solution, Attempt) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if r.timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan solveResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- solveResult{
					sol: Solution{Status: StatusFailed, Objective: math.NaN()},
					err: fmt.Errorf("solver %q panicked: %v", cfg.Name, p),
				}
			}
		}()
		sol, err := cfg.Solver.Solve(actx, problem, cfg.Params.Clone())
		done <- solveResult{sol: sol, err: err}
	}()

	var res solveResult
	select {
	case res = <-done:
	case <-actx.Done():
		select {
		case res = <-done:
		default:
			res = solveResult{sol: Solution{Status: StatusTimeout, Objective: math.NaN()}, err: actx.Err()}
		}
	}

	att := Attempt{
		Solver:    cfg.Name,
		Status:    res.sol.Status,
		Objective: res.sol.Objective,
		Duration:  time.Since(start),
		Err:       res.err,
	}
	if res.err != nil {
		switch {
		case errors.Is(res.err, context.DeadlineExceeded):
			att.Status = StatusTimeout
		case errors.Is(res.err, ErrUnsupportedProblem):
			att.Status = StatusUnsupported
		case att.Status != StatusTimeout:
			att.Status = StatusFailed
		}
	}
	att.Accepted = res.err == nil && cfg.Check.Accepts(att.Status) && res.sol.finite()
	return res.sol, att
}
