package optimization

import (
	"context"
	"errors"
)

// ErrUnsupportedProblem is returned by a backend that finds no representation
// of the problem it can solve.
var ErrUnsupportedProblem = errors.New("problem representation not supported by backend")

// Backend solves one problem attempt with the given parameters.
type Backend interface {
	Solve(ctx context.Context, problem *Problem, params Parameters) (Solution, error)
}

// ParameterValidator is implemented by backends that can check their
// parameters up front, when the registry is built.
type ParameterValidator interface {
	ValidateParameters(params Parameters) error
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, problem *Problem, params Parameters) (Solution, error)

// Solve calls f.
func (f BackendFunc) Solve(ctx context.Context, problem *Problem, params Parameters) (Solution, error) {
	return f(ctx, problem, params)
}
