package di

import (
	"github.com/aristath/riskengine/internal/modules/entropic"
	"github.com/aristath/riskengine/internal/modules/optimization"
	optimizerhandlers "github.com/aristath/riskengine/internal/modules/optimization/handlers"
	"github.com/aristath/riskengine/internal/modules/risk"
	riskhandlers "github.com/aristath/riskengine/internal/modules/risk/handlers"
	"github.com/prometheus/client_golang/prometheus"
)

// Container holds every long-lived component of the engine. All members
// are safe for concurrent use once Wire returns.
type Container struct {
	// Metrics
	Prometheus *prometheus.Registry
	Metrics    *optimization.Metrics

	// Solvers
	Registry *optimization.Registry
	Runner   *optimization.Runner

	// Services
	Evaluator   *entropic.Evaluator
	RiskService *risk.Service

	// Handlers
	RiskHandler      *riskhandlers.Handler
	OptimizerHandler *optimizerhandlers.Handler
}
