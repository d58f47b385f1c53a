package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/riskengine/internal/modules/entropic"
	"github.com/aristath/riskengine/internal/modules/optimization"
	optimizerhandlers "github.com/aristath/riskengine/internal/modules/optimization/handlers"
	"github.com/aristath/riskengine/internal/modules/risk"
	riskhandlers "github.com/aristath/riskengine/internal/modules/risk/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	promReg := prometheus.NewRegistry()
	metrics, err := optimization.NewMetrics(promReg)
	require.NoError(t, err)

	registry := optimization.DefaultRegistry(log)
	runner := optimization.NewRunner(log, optimization.WithMetrics(metrics))
	evaluator := entropic.NewEvaluator(runner, registry)
	service := risk.NewService(evaluator, risk.Levels{}, log)

	return New(Config{
		Log:              log,
		Port:             0,
		DevMode:          true,
		RiskHandler:      riskhandlers.NewHandler(service, log),
		OptimizerHandler: optimizerhandlers.NewHandler(evaluator, registry, optimizerhandlers.Defaults{Alpha: 0.05, Kappa: 0.3}, log),
		Gatherer:         promReg,
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "riskengine", body["service"])
	assert.Equal(t, "dev", body["version"])
}

func TestOptimizerRoutesMounted(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/optimizer/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Solvers []string `json:"solvers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"barrier", "lbfgs", "nelder-mead"}, body.Data.Solvers)
}

func TestMetricsExposeSolverAttempts(t *testing.T) {
	s := newTestServer(t)

	payload := []byte(`{"returns": [0.01, -0.02, 0.015, -0.03, 0.005, 0.002, -0.011]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/risk/measures/EVaR", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "riskengine_solver_attempts_total"))
	assert.True(t, strings.Contains(string(body), "riskengine_solver_attempt_duration_seconds"))
}

func TestRiskRoutesMounted(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk/measures", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/risk/measures/VaR", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
