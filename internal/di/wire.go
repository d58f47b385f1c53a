// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/entropic"
	"github.com/aristath/riskengine/internal/modules/optimization"
	optimizerhandlers "github.com/aristath/riskengine/internal/modules/optimization/handlers"
	"github.com/aristath/riskengine/internal/modules/risk"
	riskhandlers "github.com/aristath/riskengine/internal/modules/risk/handlers"
	"github.com/aristath/riskengine/pkg/embedded"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize metrics
// 2. Initialize solvers
// 3. Initialize services and handlers
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// Step 1: Initialize metrics
	if err := InitializeMetrics(container); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Step 2: Initialize solvers
	if err := InitializeSolvers(container, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to initialize solvers: %w", err)
	}

	// Step 3: Initialize services
	InitializeServices(container, cfg, log)

	log.Info().
		Strs("solvers", container.Registry.Names()).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// InitializeMetrics creates a private prometheus registry carrying the
// process collectors and the solver metrics.
func InitializeMetrics(container *Container) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}
	metrics, err := optimization.NewMetrics(reg)
	if err != nil {
		return err
	}
	container.Prometheus = reg
	container.Metrics = metrics
	return nil
}

// InitializeSolvers loads the solver registry, from SOLVER_REGISTRY_FILE
// when set and from the embedded default otherwise, and builds the fallback
// runner.
func InitializeSolvers(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.SolverRegistryFile != "" {
		reg, err := optimization.LoadRegistryFile(cfg.SolverRegistryFile, optimization.DefaultCatalog(), log)
		if err != nil {
			return err
		}
		container.Registry = reg
		log.Info().Str("file", cfg.SolverRegistryFile).Int("solvers", reg.Len()).Msg("Loaded solver registry")
	} else {
		reg, err := optimization.LoadRegistry(embedded.SolversReader(), optimization.DefaultCatalog(), log)
		if err != nil {
			return fmt.Errorf("embedded solver registry: %w", err)
		}
		container.Registry = reg
	}

	opts := []optimization.RunnerOption{optimization.WithMetrics(container.Metrics)}
	if cfg.SolverAttemptTimeout > 0 {
		opts = append(opts, optimization.WithAttemptTimeout(cfg.SolverAttemptTimeout))
	}
	container.Runner = optimization.NewRunner(log, opts...)
	return nil
}

// InitializeServices creates the evaluator, the risk service and the HTTP
// handlers.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.Evaluator = entropic.NewEvaluator(container.Runner, container.Registry)
	container.RiskService = risk.NewService(container.Evaluator, risk.Levels{
		Alpha: cfg.DefaultAlpha,
		Kappa: cfg.DefaultKappa,
	}, log)
	container.RiskHandler = riskhandlers.NewHandler(container.RiskService, log)
	defaults := container.RiskService.Defaults()
	container.OptimizerHandler = optimizerhandlers.NewHandler(container.Evaluator, container.Registry,
		optimizerhandlers.Defaults{Alpha: defaults.Alpha, Kappa: defaults.Kappa}, log)
}
