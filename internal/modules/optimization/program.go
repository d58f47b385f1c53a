package optimization

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProgram is returned when a program is structurally inconsistent.
var ErrInvalidProgram = errors.New("invalid cone program")

// Term is one coefficient of an affine expression.
type Term struct {
	Var  int
	Coef float64
}

// AffineExpr is Σ Coef·v[Var] + Constant.
type AffineExpr struct {
	Terms    []Term
	Constant float64
}

// Eval evaluates the expression at v.
func (e AffineExpr) Eval(v []float64) float64 {
	s := e.Constant
	for _, t := range e.Terms {
		s += t.Coef * v[t.Var]
	}
	return s
}

// Var builds the expression coef·v[i].
func Var(i int, coef float64) AffineExpr {
	return AffineExpr{Terms: []Term{{Var: i, Coef: coef}}}
}

// ConeKind identifies the convex cone an affine row tuple must lie in.
type ConeKind int

const (
	// Nonnegative: s ≥ 0 (one row).
	Nonnegative ConeKind = iota
	// Exponential: cl{(a, b, c) : b > 0, c ≥ b·exp(a/b)} (three rows).
	Exponential
	// Power: {(x, y, z) : x^p·y^(1-p) ≥ |z|, x, y ≥ 0} with p = Cone.Exponent (three rows).
	Power
)

func (k ConeKind) String() string {
	switch k {
	case Nonnegative:
		return "nonnegative"
	case Exponential:
		return "exponential"
	case Power:
		return "power"
	default:
		return fmt.Sprintf("cone(%d)", int(k))
	}
}

func (k ConeKind) rows() int {
	if k == Nonnegative {
		return 1
	}
	return 3
}

// Cone constrains the tuple of affine rows to a cone of the given kind.
type Cone struct {
	Kind     ConeKind
	Exponent float64 // power cones only, in (0, 1)
	Rows     []AffineExpr
}

// Program is a conic program in standard primal form:
//
//	minimise  Objective·v + Offset
//	s.t.      (Rows_k(v)) ∈ K_k  for every cone k
//
// Start must lie strictly inside every cone.
type Program struct {
	NumVars   int
	Objective []float64
	Offset    float64
	Cones     []Cone
	Start     []float64
}

// Validate checks sizes, variable references, exponents and the interior start.
func (p *Program) Validate() error {
	if p.NumVars <= 0 {
		return fmt.Errorf("%w: no variables", ErrInvalidProgram)
	}
	if len(p.Objective) != p.NumVars {
		return fmt.Errorf("%w: objective has %d coefficients for %d variables", ErrInvalidProgram, len(p.Objective), p.NumVars)
	}
	if len(p.Start) != p.NumVars {
		return fmt.Errorf("%w: start has %d entries for %d variables", ErrInvalidProgram, len(p.Start), p.NumVars)
	}
	for k, c := range p.Cones {
		if len(c.Rows) != c.Kind.rows() {
			return fmt.Errorf("%w: cone %d (%s) has %d rows", ErrInvalidProgram, k, c.Kind, len(c.Rows))
		}
		if c.Kind == Power && !(c.Exponent > 0 && c.Exponent < 1) {
			return fmt.Errorf("%w: cone %d has power exponent %v", ErrInvalidProgram, k, c.Exponent)
		}
		for _, row := range c.Rows {
			for _, t := range row.Terms {
				if t.Var < 0 || t.Var >= p.NumVars {
					return fmt.Errorf("%w: cone %d references variable %d", ErrInvalidProgram, k, t.Var)
				}
			}
		}
	}
	if !p.interior(p.Start) {
		return fmt.Errorf("%w: start is not strictly interior", ErrInvalidProgram)
	}
	return nil
}

// Value evaluates the objective at v.
func (p *Program) Value(v []float64) float64 {
	s := p.Offset
	for i, c := range p.Objective {
		s += c * v[i]
	}
	return s
}

// BarrierParameter is ν, the sum of the barrier parameters of all cones.
func (p *Program) BarrierParameter() float64 {
	nu := 0.0
	for _, c := range p.Cones {
		if c.Kind == Nonnegative {
			nu++
		} else {
			nu += 3
		}
	}
	return nu
}

func (p *Program) interior(v []float64) bool {
	var s [3]float64
	for _, c := range p.Cones {
		for r, row := range c.Rows {
			s[r] = row.Eval(v)
		}
		if _, ok := coneBarrier(c, s, nil, nil); !ok {
			return false
		}
	}
	return true
}

// ScalarProblem is a smooth unconstrained reformulation of the same problem,
// used by derivative-based and direct-search backends.
type ScalarProblem struct {
	Dim    int
	Func   func(x []float64) float64
	Grad   func(grad, x []float64)
	Start  []float64
	Convex bool // stationary points are global minima
}

// Problem carries every representation a formulator can offer. Backends use
// the representation they understand and report StatusUnsupported otherwise.
type Problem struct {
	Name   string
	Cone   *Program
	Scalar *ScalarProblem
}

// Form names the representation a solution was computed from.
type Form string

const (
	FormCone   Form = "cone"
	FormScalar Form = "scalar"
)

// Solution is the outcome of one backend attempt.
type Solution struct {
	Status     Status
	Objective  float64
	X          []float64
	Form       Form
	Iterations int
}

// finite reports whether the objective is a usable number.
func (s Solution) finite() bool {
	return !math.IsNaN(s.Objective) && !math.IsInf(s.Objective, 0)
}
