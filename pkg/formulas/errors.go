package formulas

import (
	"errors"
	"fmt"
)

// ErrDomain is matched by every input validation failure in this package.
var ErrDomain = errors.New("input outside domain")

// DomainError describes a parameter that falls outside its admissible range.
type DomainError struct {
	Param  string
	Value  interface{}
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Param, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrDomain) match any DomainError.
func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}

func domainErr(param string, value interface{}, reason string) error {
	return &DomainError{Param: param, Value: value, Reason: reason}
}

// CheckAlpha validates a significance level in the open interval (0, 1).
func CheckAlpha(name string, alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return domainErr(name, alpha, "must lie in (0, 1)")
	}
	return nil
}

// CheckKappa validates a relativistic deformation parameter in (0, 1).
func CheckKappa(kappa float64) error {
	if !(kappa > 0 && kappa < 1) {
		return domainErr("kappa", kappa, "must lie in (0, 1)")
	}
	return nil
}

func checkReturns(x []float64, minLen int) error {
	if len(x) < minLen {
		return domainErr("returns", len(x), fmt.Sprintf("need at least %d observations", minLen))
	}
	return nil
}
