package optimization

import "math"

// coneBarrier evaluates the logarithmic barrier of cone c at the row values s.
// grad and hess are filled when non-nil. ok is false outside the open cone.
func coneBarrier(c Cone, s [3]float64, grad *[3]float64, hess *[3][3]float64) (float64, bool) {
	switch c.Kind {
	case Nonnegative:
		return nonnegBarrier(s[0], grad, hess)
	case Exponential:
		return expBarrier(s, grad, hess)
	case Power:
		return powBarrier(c.Exponent, s, grad, hess)
	}
	return 0, false
}

func nonnegBarrier(x float64, grad *[3]float64, hess *[3][3]float64) (float64, bool) {
	if !(x > 0) {
		return 0, false
	}
	if grad != nil {
		*grad = [3]float64{-1 / x}
	}
	if hess != nil {
		*hess = [3][3]float64{{1 / (x * x)}}
	}
	return -math.Log(x), true
}

// expBarrier is -ln(b·ln(c/b) - a) - ln b - ln c.
func expBarrier(s [3]float64, grad *[3]float64, hess *[3][3]float64) (float64, bool) {
	a, b, c := s[0], s[1], s[2]
	if !(b > 0) || !(c > 0) {
		return 0, false
	}
	lr := math.Log(c / b)
	psi := b*lr - a
	if !(psi > 0) || math.IsInf(psi, 0) {
		return 0, false
	}
	val := -math.Log(psi) - math.Log(b) - math.Log(c)
	if grad == nil && hess == nil {
		return val, true
	}

	dpsi := [3]float64{-1, lr - 1, b / c}
	if grad != nil {
		*grad = [3]float64{
			-dpsi[0] / psi,
			-dpsi[1]/psi - 1/b,
			-dpsi[2]/psi - 1/c,
		}
	}
	if hess != nil {
		d2psi := [3][3]float64{
			{0, 0, 0},
			{0, -1 / b, 1 / c},
			{0, 1 / c, -b / (c * c)},
		}
		diag := [3]float64{0, 1 / (b * b), 1 / (c * c)}
		psi2 := psi * psi
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				hess[i][j] = dpsi[i]*dpsi[j]/psi2 - d2psi[i][j]/psi
			}
			hess[i][i] += diag[i]
		}
	}
	return val, true
}

// powBarrier is -ln(x^(2p)·y^(2(1-p)) - z²) - (1-p)·ln x - p·ln y.
func powBarrier(p float64, s [3]float64, grad *[3]float64, hess *[3][3]float64) (float64, bool) {
	x, y, z := s[0], s[1], s[2]
	if !(x > 0) || !(y > 0) {
		return 0, false
	}
	q := 1 - p
	pw := math.Exp(2*p*math.Log(x) + 2*q*math.Log(y))
	phi := pw - z*z
	if !(phi > 0) || math.IsInf(phi, 0) {
		return 0, false
	}
	val := -math.Log(phi) - q*math.Log(x) - p*math.Log(y)
	if grad == nil && hess == nil {
		return val, true
	}

	dphi := [3]float64{2 * p * pw / x, 2 * q * pw / y, -2 * z}
	if grad != nil {
		*grad = [3]float64{
			-dphi[0]/phi - q/x,
			-dphi[1]/phi - p/y,
			-dphi[2] / phi,
		}
	}
	if hess != nil {
		d2phi := [3][3]float64{
			{2 * p * (2*p - 1) * pw / (x * x), 4 * p * q * pw / (x * y), 0},
			{4 * p * q * pw / (x * y), 2 * q * (2*q - 1) * pw / (y * y), 0},
			{0, 0, -2},
		}
		diag := [3]float64{q / (x * x), p / (y * y), 0}
		phi2 := phi * phi
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				hess[i][j] = dphi[i]*dphi[j]/phi2 - d2phi[i][j]/phi
			}
			hess[i][i] += diag[i]
		}
	}
	return val, true
}
