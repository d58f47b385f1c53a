package entropic

import (
	"math"

	"github.com/aristath/riskengine/pkg/formulas"
	"gonum.org/v1/gonum/floats"
)

// LnKappa is the Kaniadakis κ-logarithm (y^κ - y^-κ)/(2κ). It tends to ln y as κ → 0.
func LnKappa(y, kappa float64) float64 {
	return math.Sinh(kappa*math.Log(y)) / kappa
}

// relativistic holds the constants of the per-observation penalty
//
//	φ(d) = min_{ω>0} a·(ω-d)₊^p + b·ω^-q,  p = 1+1/κ, q = (1-κ)/κ,
//
// obtained by minimising the two power cones of the relativistic program
// over (ψ, θ, ε, ω) at unit z. Constants are kept in logs: for small κ
// a underflows and b overflows.
type relativistic struct {
	p, q     float64
	la, lb   float64 // ln a, ln b
	lap, lbq float64 // ln(a·p), ln(b·q)
}

func newRelativistic(kappa float64) relativistic {
	p := 1 + 1/kappa
	q := (1 - kappa) / kappa
	la := math.Log(kappa/(1+kappa)) - math.Log((1+kappa)/(2*kappa))/kappa
	lb := math.Log(kappa) - math.Log(2*kappa)/kappa + q*math.Log(1-kappa)
	return relativistic{
		p: p, q: q,
		la: la, lb: lb,
		lap: la + math.Log(p),
		lbq: lb + math.Log(q),
	}
}

// penalty returns φ(d) with its first and second derivatives.
//
// At the optimum ω = d + s with s > max(0, -d) the root of
//
//	h(s) = ln(a·p) + (p-1)·ln s - ln(b·q) + (q+1)·ln(d+s),
//
// which is increasing and concave, so Newton from the left of the root
// converges monotonically.
func (r relativistic) penalty(d float64) (phi, dphi, d2phi float64) {
	lo := math.Max(0, -d)
	h := func(s float64) (float64, float64) {
		v := r.lap + (r.p-1)*math.Log(s) - r.lbq + (r.q+1)*math.Log(d+s)
		return v, (r.p-1)/s + (r.q+1)/(d+s)
	}

	delta := math.Max(1, math.Abs(d))
	s := lo + delta
	for i := 0; i < 200; i++ {
		if v, _ := h(s); v < 0 {
			break
		}
		delta /= 8
		s = lo + delta
	}

	for i := 0; i < 200; i++ {
		v, dv := h(s)
		step := -v / dv
		next := s + step
		if !(next > lo) {
			break
		}
		s = next
		if math.Abs(step) <= 1e-13*s {
			break
		}
	}

	ls := math.Log(s)
	w := d + s
	phi = math.Exp(r.la+r.p*ls) + math.Exp(r.lb-r.q*math.Log(w))
	dphi = -math.Exp(r.lap + (r.p-1)*ls)

	hs := (r.p-1)/s + (r.q+1)/w
	hd := (r.q + 1) / w
	d2phi = math.Exp(r.lap+(r.p-2)*ls) * (r.p - 1) * hd / hs
	return phi, dphi, d2phi
}

// value minimises t + z·c + z·Σφ((t + x_i)/z) over t for fixed z. It
// returns the minimum, the minimising t and the derivative in z.
func (r relativistic) value(x []float64, z, c float64) (val, t, dz float64) {
	// g(t) = 1 + Σφ'(d_i) increases from -∞ to 1.
	g := func(t float64) (float64, float64) {
		gv, gd := 1.0, 0.0
		for _, xi := range x {
			_, d1, d2 := r.penalty((t + xi) / z)
			gv += d1
			gd += d2 / z
		}
		return gv, gd
	}

	t0 := -floats.Min(x)
	lo, hi := t0, t0
	if v, _ := g(t0); v < 0 {
		for step := z; ; step *= 2 {
			hi = t0 + step
			if v, _ := g(hi); v >= 0 || step > 1e12*z {
				break
			}
		}
	} else {
		for step := z; ; step *= 2 {
			lo = t0 - step
			if v, _ := g(lo); v <= 0 || step > 1e12*z {
				break
			}
		}
	}

	t = (lo + hi) / 2
	for i := 0; i < 200; i++ {
		v, dv := g(t)
		if v < 0 {
			lo = t
		} else {
			hi = t
		}
		if math.Abs(v) < 1e-13 || hi-lo <= 1e-14*(z+math.Abs(t)) {
			break
		}
		next := t - v/dv
		if !(next > lo && next < hi) {
			next = (lo + hi) / 2
		}
		t = next
	}

	sum, dsum := 0.0, 0.0
	for _, xi := range x {
		d := (t + xi) / z
		phi, d1, _ := r.penalty(d)
		sum += phi
		dsum += phi - d*d1
	}
	return t + z*c + z*sum, t, c + dsum
}

// RRM is the relativistic risk of returns x at a fixed positive z: the
// relativistic cone program with z held fixed and all other variables
// minimised out. Minimising over z gives the Relativistic Value at Risk.
func RRM(x []float64, z, alpha, kappa float64) (float64, error) {
	if err := checkInputs(x, alpha); err != nil {
		return math.NaN(), err
	}
	if err := formulas.CheckKappa(kappa); err != nil {
		return math.NaN(), err
	}
	if !(z > 0) || math.IsInf(z, 1) {
		return math.NaN(), &formulas.DomainError{Param: "z", Value: z, Reason: "must be positive and finite"}
	}
	c := LnKappa(1/(alpha*float64(len(x))), kappa)
	v, _, _ := newRelativistic(kappa).value(x, z, c)
	return v, nil
}
