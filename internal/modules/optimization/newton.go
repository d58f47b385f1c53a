package optimization

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// A variable touched by this many cones or more is eliminated last,
	// through the Schur complement.
	hubMinCones = 3
	// Nonnegative rows with at least this many terms enter the Newton
	// system as rank-one updates instead of coupling every variable.
	wideMinTerms = 4
)

var errNotPositiveDefinite = errors.New("newton system is not positive definite")

// newtonSystem holds the gradient and Hessian of τ·cᵀv + Φ(v) in block form
// and solves H·dx = -g in time linear in the number of cones for programs
// where a few variables are shared by every cone.
//
// The variables split into hubs (shared by many cones) and local variables,
// which group into small independent components. Writing H = B + Σ d_k a_k a_kᵀ,
// where the sum runs over wide nonnegative rows, B is
//
//	[ B_hh  B_hl ]
//	[ B_lh  B_ll ]   with B_ll block diagonal,
//
// so B is solved through the h×h Schur complement of B_ll and the wide rows
// are added back with the Woodbury identity.
type newtonSystem struct {
	n      int
	hubs   []int
	hubPos []int // -1 for local variables
	comps  [][]int
	compOf []int
	posIn  []int
	isWide []bool
	wide   [][]Term

	grad   []float64
	hubH   []float64   // h×h
	blocks [][]float64 // k×k per component
	cross  [][]float64 // k×h per component, B_lh
	wideD  []float64

	chols []mat.Cholesky
	elim  []*mat.Dense // B_ll⁻¹·B_lh per component
	schur mat.Cholesky
	dx    []float64
}

func newNewtonSystem(prog *Program) *newtonSystem {
	n := prog.NumVars
	s := &newtonSystem{
		n:      n,
		hubPos: make([]int, n),
		compOf: make([]int, n),
		posIn:  make([]int, n),
		isWide: make([]bool, len(prog.Cones)),
		grad:   make([]float64, n),
		dx:     make([]float64, n),
	}

	vars := make([][]int, len(prog.Cones))
	for k, c := range prog.Cones {
		vars[k] = coneVars(c)
		s.isWide[k] = c.Kind == Nonnegative && len(c.Rows[0].Terms) >= wideMinTerms
	}

	// A wide row may only skip B when every variable it touches is held in
	// B by some other cone; otherwise B would be singular.
	touches := s.countNarrow(vars)
	for k := range prog.Cones {
		if !s.isWide[k] {
			continue
		}
		for _, v := range vars[k] {
			if touches[v] == 0 {
				s.isWide[k] = false
				break
			}
		}
	}
	touches = s.countNarrow(vars)

	for v := range s.hubPos {
		s.hubPos[v] = -1
		if touches[v] >= hubMinCones {
			s.hubPos[v] = len(s.hubs)
			s.hubs = append(s.hubs, v)
		}
	}

	// Union local variables that share a narrow cone.
	parent := make([]int, n)
	for v := range parent {
		parent[v] = v
	}
	var find func(int) int
	find = func(v int) int {
		for parent[v] != v {
			parent[v] = parent[parent[v]]
			v = parent[v]
		}
		return v
	}
	for k, vs := range vars {
		if s.isWide[k] {
			continue
		}
		root := -1
		for _, v := range vs {
			if s.hubPos[v] >= 0 {
				continue
			}
			if root < 0 {
				root = find(v)
				continue
			}
			parent[find(v)] = root
		}
	}

	index := make(map[int]int)
	for v := 0; v < n; v++ {
		s.compOf[v] = -1
		if s.hubPos[v] >= 0 {
			continue
		}
		r := find(v)
		c, ok := index[r]
		if !ok {
			c = len(s.comps)
			index[r] = c
			s.comps = append(s.comps, nil)
		}
		s.compOf[v] = c
		s.posIn[v] = len(s.comps[c])
		s.comps[c] = append(s.comps[c], v)
	}

	h := len(s.hubs)
	s.hubH = make([]float64, h*h)
	s.blocks = make([][]float64, len(s.comps))
	s.cross = make([][]float64, len(s.comps))
	s.chols = make([]mat.Cholesky, len(s.comps))
	s.elim = make([]*mat.Dense, len(s.comps))
	for c, vs := range s.comps {
		k := len(vs)
		s.blocks[c] = make([]float64, k*k)
		s.cross[c] = make([]float64, k*h)
	}
	for k, c := range prog.Cones {
		if s.isWide[k] {
			s.wide = append(s.wide, c.Rows[0].Terms)
		}
	}
	s.wideD = make([]float64, len(s.wide))
	return s
}

func (s *newtonSystem) countNarrow(vars [][]int) []int {
	touches := make([]int, s.n)
	for k, vs := range vars {
		if s.isWide[k] {
			continue
		}
		for _, v := range vs {
			touches[v]++
		}
	}
	return touches
}

// coneVars lists the distinct variables a cone's rows reference.
func coneVars(c Cone) []int {
	var vs []int
	for _, row := range c.Rows {
		for _, t := range row.Terms {
			seen := false
			for _, v := range vs {
				if v == t.Var {
					seen = true
					break
				}
			}
			if !seen {
				vs = append(vs, t.Var)
			}
		}
	}
	return vs
}

// evaluate fills the gradient and the Hessian blocks at v and returns the
// penalised objective, or ok=false outside the domain.
func (s *newtonSystem) evaluate(prog *Program, v []float64, tau float64) (float64, bool) {
	for i := range s.grad {
		s.grad[i] = tau * prog.Objective[i]
	}
	zero(s.hubH)
	for c := range s.comps {
		zero(s.blocks[c])
		zero(s.cross[c])
	}
	f := tau * floats.Dot(prog.Objective, v)

	var (
		sv   [3]float64
		g    [3]float64
		hess [3][3]float64
		wide int
	)
	for k, c := range prog.Cones {
		for r, row := range c.Rows {
			sv[r] = row.Eval(v)
		}
		b, ok := coneBarrier(c, sv, &g, &hess)
		if !ok {
			return 0, false
		}
		f += b
		for r, row := range c.Rows {
			for _, t := range row.Terms {
				s.grad[t.Var] += g[r] * t.Coef
			}
		}
		if s.isWide[k] {
			s.wideD[wide] = hess[0][0]
			wide++
			continue
		}
		for r, rowR := range c.Rows {
			for q, rowQ := range c.Rows {
				if hess[r][q] == 0 {
					continue
				}
				for _, tr := range rowR.Terms {
					for _, tq := range rowQ.Terms {
						s.add(tr.Var, tq.Var, hess[r][q]*tr.Coef*tq.Coef)
					}
				}
			}
		}
	}
	return f, !math.IsNaN(f) && !math.IsInf(f, 0)
}

// add accumulates H[i][j]. The hub-row, local-column half is implied by
// symmetry and skipped.
func (s *newtonSystem) add(i, j int, val float64) {
	h := len(s.hubs)
	hi, hj := s.hubPos[i], s.hubPos[j]
	switch {
	case hi >= 0 && hj >= 0:
		s.hubH[hi*h+hj] += val
	case hi < 0 && hj >= 0:
		s.cross[s.compOf[i]][s.posIn[i]*h+hj] += val
	case hi < 0 && hj < 0:
		c := s.compOf[i]
		k := len(s.comps[c])
		s.blocks[c][s.posIn[i]*k+s.posIn[j]] += val
	}
}

// direction solves H·dx = -g, shifting the diagonal of B when it is not
// numerically positive definite.
func (s *newtonSystem) direction() ([]float64, error) {
	maxDiag := 0.0
	h := len(s.hubs)
	for a := 0; a < h; a++ {
		maxDiag = math.Max(maxDiag, math.Abs(s.hubH[a*h+a]))
	}
	for c, vs := range s.comps {
		k := len(vs)
		for p := 0; p < k; p++ {
			maxDiag = math.Max(maxDiag, math.Abs(s.blocks[c][p*k+p]))
		}
	}

	rhs := make([]float64, s.n)
	for i, g := range s.grad {
		rhs[i] = -g
	}
	reg := 0.0
	for attempt := 0; attempt < 5; attempt++ {
		if err := s.factorize(reg); err == nil {
			if err := s.solve(rhs, s.dx); err == nil && allFinite(s.dx) {
				return s.dx, nil
			}
		}
		if reg == 0 {
			reg = 1e-12 * math.Max(maxDiag, 1)
		} else {
			reg *= 100
		}
	}
	return nil, fmt.Errorf("newton system: %w", errNotPositiveDefinite)
}

// factorize prepares B + reg·I for solves.
func (s *newtonSystem) factorize(reg float64) error {
	h := len(s.hubs)
	schur := make([]float64, h*h)
	copy(schur, s.hubH)
	for a := 0; a < h; a++ {
		schur[a*h+a] += reg
	}

	for c, vs := range s.comps {
		k := len(vs)
		block := make([]float64, k*k)
		copy(block, s.blocks[c])
		for p := 0; p < k; p++ {
			block[p*k+p] += reg
		}
		if !s.chols[c].Factorize(mat.NewSymDense(k, block)) {
			return errNotPositiveDefinite
		}
		if h == 0 {
			continue
		}
		var w mat.Dense
		if err := s.chols[c].SolveTo(&w, mat.NewDense(k, h, s.cross[c])); !usableSolve(err) {
			return err
		}
		s.elim[c] = &w
		// S -= B_hl·B_ll⁻¹·B_lh
		for a := 0; a < h; a++ {
			for b := a; b < h; b++ {
				sum := 0.0
				for p := 0; p < k; p++ {
					sum += s.cross[c][p*h+a] * w.At(p, b)
				}
				schur[a*h+b] -= sum
			}
		}
	}
	if h == 0 {
		return nil
	}
	for a := 0; a < h; a++ {
		for b := 0; b < a; b++ {
			schur[a*h+b] = schur[b*h+a]
		}
	}
	if !s.schur.Factorize(mat.NewSymDense(h, schur)) {
		return errNotPositiveDefinite
	}
	return nil
}

// solve computes out = H⁻¹·r with the factors from factorize.
func (s *newtonSystem) solve(r, out []float64) error {
	if err := s.solveB(r, out); err != nil {
		return err
	}
	m := len(s.wide)
	if m == 0 {
		return nil
	}

	// H⁻¹r = B⁻¹r - B⁻¹U (D⁻¹ + UᵀB⁻¹U)⁻¹ UᵀB⁻¹r
	ys := make([][]float64, m)
	u := make([]float64, s.n)
	for k, terms := range s.wide {
		zero(u)
		for _, t := range terms {
			u[t.Var] += t.Coef
		}
		ys[k] = make([]float64, s.n)
		if err := s.solveB(u, ys[k]); err != nil {
			return err
		}
	}
	small := mat.NewDense(m, m, nil)
	proj := mat.NewVecDense(m, nil)
	for k, terms := range s.wide {
		small.Set(k, k, 1/s.wideD[k])
		for j := range s.wide {
			small.Set(k, j, small.At(k, j)+sparseDot(terms, ys[j]))
		}
		proj.SetVec(k, sparseDot(terms, out))
	}
	var coef mat.VecDense
	if err := coef.SolveVec(small, proj); !usableSolve(err) {
		return err
	}
	for k := range s.wide {
		floats.AddScaled(out, -coef.AtVec(k), ys[k])
	}
	return nil
}

// solveB computes out = B⁻¹·r by eliminating the local components first.
func (s *newtonSystem) solveB(r, out []float64) error {
	h := len(s.hubs)
	rh := make([]float64, h)
	for a, v := range s.hubs {
		rh[a] = r[v]
	}

	local := make([]*mat.VecDense, len(s.comps))
	for c, vs := range s.comps {
		k := len(vs)
		rc := mat.NewVecDense(k, nil)
		for p, v := range vs {
			rc.SetVec(p, r[v])
		}
		zc := mat.NewVecDense(k, nil)
		if err := s.chols[c].SolveVecTo(zc, rc); !usableSolve(err) {
			return err
		}
		local[c] = zc
		for a := 0; a < h; a++ {
			for p := 0; p < k; p++ {
				rh[a] -= s.cross[c][p*h+a] * zc.AtVec(p)
			}
		}
	}

	if h > 0 {
		yh := mat.NewVecDense(h, nil)
		if err := s.schur.SolveVecTo(yh, mat.NewVecDense(h, rh)); !usableSolve(err) {
			return err
		}
		for a, v := range s.hubs {
			out[v] = yh.AtVec(a)
		}
	}
	for c, vs := range s.comps {
		for p, v := range vs {
			val := local[c].AtVec(p)
			for a, hv := range s.hubs {
				val -= s.elim[c].At(p, a) * out[hv]
			}
			out[v] = val
		}
	}
	return nil
}

// usableSolve accepts solutions gonum flags as ill-conditioned; near the end
// of the central path the barrier Hessian always is.
func usableSolve(err error) bool {
	if err == nil {
		return true
	}
	var cond mat.Condition
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}

func sparseDot(terms []Term, v []float64) float64 {
	sum := 0.0
	for _, t := range terms {
		sum += t.Coef * v[t.Var]
	}
	return sum
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
