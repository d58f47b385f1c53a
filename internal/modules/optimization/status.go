package optimization

// Status is the termination status reported by a solver backend.
type Status int

const (
	StatusUnknown Status = iota
	// StatusOptimal certifies a globally optimal solution within tolerance.
	StatusOptimal
	// StatusLocallyOptimal is a stationary point of a problem not known to be convex.
	StatusLocallyOptimal
	// StatusAlmostOptimal met relaxed convergence tolerances.
	StatusAlmostOptimal
	// StatusAlmostLocallyOptimal met relaxed tolerances on a problem not known to be convex.
	StatusAlmostLocallyOptimal
	StatusInfeasible
	StatusIterationLimit
	StatusNumericalError
	StatusTimeout
	// StatusUnsupported means the backend cannot handle the problem representation.
	StatusUnsupported
	// StatusFailed marks a backend that returned an error or panicked.
	StatusFailed
	// StatusNotAttempted marks a solver skipped because the evaluation was cancelled.
	StatusNotAttempted
)

var statusNames = map[Status]string{
	StatusUnknown:              "unknown",
	StatusOptimal:              "optimal",
	StatusLocallyOptimal:       "locally_optimal",
	StatusAlmostOptimal:        "almost_optimal",
	StatusAlmostLocallyOptimal: "almost_locally_optimal",
	StatusInfeasible:           "infeasible",
	StatusIterationLimit:       "iteration_limit",
	StatusNumericalError:       "numerical_error",
	StatusTimeout:              "timeout",
	StatusUnsupported:          "unsupported",
	StatusFailed:               "failed",
	StatusNotAttempted:         "not_attempted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// AcceptanceCriteria relaxes which statuses count as a usable solution.
// The zero value accepts only StatusOptimal.
type AcceptanceCriteria struct {
	AllowLocal  bool `yaml:"allow_local" json:"allow_local"`
	AllowAlmost bool `yaml:"allow_almost" json:"allow_almost"`
}

// Accepts reports whether a solution with status s is usable.
func (c AcceptanceCriteria) Accepts(s Status) bool {
	switch s {
	case StatusOptimal:
		return true
	case StatusLocallyOptimal:
		return c.AllowLocal
	case StatusAlmostOptimal:
		return c.AllowAlmost
	case StatusAlmostLocallyOptimal:
		return c.AllowLocal && c.AllowAlmost
	default:
		return false
	}
}
