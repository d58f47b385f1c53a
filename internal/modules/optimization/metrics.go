package optimization

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records solver attempts. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the solver collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "solver",
				Name:      "attempts_total",
				Help:      "Solver attempts by backend, termination status and acceptance",
			},
			[]string{"solver", "status", "accepted"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "riskengine",
				Subsystem: "solver",
				Name:      "attempt_duration_seconds",
				Help:      "Wall time of individual solver attempts",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"solver"},
		),
	}
	for _, c := range []prometheus.Collector{m.attempts, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(a Attempt) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(a.Solver, a.Status.String(), strconv.FormatBool(a.Accepted)).Inc()
	m.duration.WithLabelValues(a.Solver).Observe(a.Duration.Seconds())
}
