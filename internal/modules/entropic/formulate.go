package entropic

import (
	"math"

	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/aristath/riskengine/pkg/formulas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Both programs keep t and z in the first two variables.
const (
	varT = 0
	varZ = 1
)

// startScale is the initial z: the sample deviation, floored so that
// constant series still start strictly inside every cone.
func startScale(x []float64) float64 {
	sd := 0.0
	if len(x) > 1 {
		sd = stat.StdDev(x, nil)
	}
	return math.Max(sd, 1e-4)
}

// FormulateERM builds the entropic problem for returns x. Variables are
// (t, z, u_1..u_T):
//
//	minimise   t + z·ln(1/(αT))
//	s.t.       z - Σu_i ≥ 0
//	           (-x_i - t, z, u_i) ∈ K_exp
//
// The scalar form minimises ERM(x, e^s, α) over s.
func FormulateERM(x []float64, alpha float64) (*optimization.Problem, error) {
	if err := checkInputs(x, alpha); err != nil {
		return nil, err
	}
	xs := append([]float64(nil), x...)
	n := len(xs)
	z0 := startScale(xs)

	prog := &optimization.Program{
		NumVars:   2 + n,
		Objective: make([]float64, 2+n),
		Start:     make([]float64, 2+n),
	}
	prog.Objective[varT] = 1
	prog.Objective[varZ] = math.Log(1 / (alpha * float64(n)))

	budget := optimization.AffineExpr{Terms: []optimization.Term{{Var: varZ, Coef: 1}}}
	for i := range xs {
		budget.Terms = append(budget.Terms, optimization.Term{Var: 2 + i, Coef: -1})
	}
	prog.Cones = append(prog.Cones, optimization.Cone{
		Kind: optimization.Nonnegative,
		Rows: []optimization.AffineExpr{budget},
	})
	for i, xi := range xs {
		prog.Cones = append(prog.Cones, optimization.Cone{
			Kind: optimization.Exponential,
			Rows: []optimization.AffineExpr{
				{Terms: []optimization.Term{{Var: varT, Coef: -1}}, Constant: -xi},
				optimization.Var(varZ, 1),
				optimization.Var(2+i, 1),
			},
		})
	}

	// Σ exp((-x_i - t)/z) = 1/4 at the start, so Σu_i = z/2.
	shifted := make([]float64, n)
	for i, xi := range xs {
		shifted[i] = -xi / z0
	}
	t0 := z0 * (floats.LogSumExp(shifted) + math.Log(4))
	prog.Start[varT] = t0
	prog.Start[varZ] = z0
	for i, xi := range xs {
		prog.Start[2+i] = 2 * z0 * math.Exp((-xi-t0)/z0)
	}

	scalar := &optimization.ScalarProblem{
		Dim: 1,
		Func: func(v []float64) float64 {
			val, _ := entropic(xs, math.Exp(v[0]), alpha, make([]float64, n))
			return val
		},
		Grad: func(grad, v []float64) {
			z := math.Exp(v[0])
			_, dz := entropic(xs, z, alpha, make([]float64, n))
			grad[0] = dz * z
		},
		Start:  []float64{math.Log(z0)},
		Convex: true,
	}

	return &optimization.Problem{Name: "erm", Cone: prog, Scalar: scalar}, nil
}

// FormulateRRM builds the relativistic problem for returns x. Variables are
// (t, z, ψ_1..ψ_T, θ_1..θ_T, ε_1..ε_T, ω_1..ω_T):
//
//	minimise   t + z·ln_κ(1/(αT)) + Σ(ψ_i + θ_i)
//	s.t.       (z(1+κ)/(2κ), ψ_i(1+κ)/κ, ε_i) ∈ P^(1/(1+κ))
//	           (ω_i/(1-κ), θ_i/κ, -z/(2κ))    ∈ P^(1-κ)
//	           x_i + t - ε_i - ω_i ≥ 0
//
// The scalar form minimises RRM(x, e^s, α, κ) over s.
func FormulateRRM(x []float64, alpha, kappa float64) (*optimization.Problem, error) {
	if err := checkInputs(x, alpha); err != nil {
		return nil, err
	}
	if err := formulas.CheckKappa(kappa); err != nil {
		return nil, err
	}
	xs := append([]float64(nil), x...)
	n := len(xs)
	z0 := startScale(xs)
	c := LnKappa(1/(alpha*float64(n)), kappa)

	psi := func(i int) int { return 2 + i }
	theta := func(i int) int { return 2 + n + i }
	eps := func(i int) int { return 2 + 2*n + i }
	omega := func(i int) int { return 2 + 3*n + i }

	nv := 2 + 4*n
	prog := &optimization.Program{
		NumVars:   nv,
		Objective: make([]float64, nv),
		Start:     make([]float64, nv),
	}
	prog.Objective[varT] = 1
	prog.Objective[varZ] = c

	omega0 := (1 - kappa) * z0 / kappa
	xmin := floats.Min(xs)
	prog.Start[varT] = omega0 - xmin + z0
	prog.Start[varZ] = z0

	for i, xi := range xs {
		prog.Objective[psi(i)] = 1
		prog.Objective[theta(i)] = 1

		prog.Cones = append(prog.Cones,
			optimization.Cone{
				Kind:     optimization.Power,
				Exponent: 1 / (1 + kappa),
				Rows: []optimization.AffineExpr{
					optimization.Var(varZ, (1+kappa)/(2*kappa)),
					optimization.Var(psi(i), (1+kappa)/kappa),
					optimization.Var(eps(i), 1),
				},
			},
			optimization.Cone{
				Kind:     optimization.Power,
				Exponent: 1 - kappa,
				Rows: []optimization.AffineExpr{
					optimization.Var(omega(i), 1/(1-kappa)),
					optimization.Var(theta(i), 1/kappa),
					optimization.Var(varZ, -1/(2*kappa)),
				},
			},
			optimization.Cone{
				Kind: optimization.Nonnegative,
				Rows: []optimization.AffineExpr{{
					Terms: []optimization.Term{
						{Var: varT, Coef: 1},
						{Var: eps(i), Coef: -1},
						{Var: omega(i), Coef: -1},
					},
					Constant: xi,
				}},
			},
		)

		prog.Start[psi(i)] = z0
		prog.Start[theta(i)] = z0
		prog.Start[omega(i)] = omega0
	}

	kernel := newRelativistic(kappa)
	scalar := &optimization.ScalarProblem{
		Dim: 1,
		Func: func(v []float64) float64 {
			val, _, _ := kernel.value(xs, math.Exp(v[0]), c)
			return val
		},
		Grad: func(grad, v []float64) {
			z := math.Exp(v[0])
			_, _, dz := kernel.value(xs, z, c)
			grad[0] = dz * z
		},
		Start:  []float64{math.Log(z0)},
		Convex: true,
	}

	return &optimization.Problem{Name: "rrm", Cone: prog, Scalar: scalar}, nil
}
