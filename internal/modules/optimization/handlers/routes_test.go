package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/riskengine/internal/modules/entropic"
	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var returns = []float64{0.012, -0.004, 0.021, -0.035, 0.008, -0.011, 0.017, -0.002, 0.005, -0.027}

var testDefaults = Defaults{Alpha: 0.05, Kappa: 0.3}

func newRouter(t *testing.T, reg *optimization.Registry) *chi.Mux {
	t.Helper()
	return newRouterWithDefaults(t, reg, testDefaults)
}

func newRouterWithDefaults(t *testing.T, reg *optimization.Registry, defaults Defaults) *chi.Mux {
	t.Helper()
	log := zerolog.Nop()
	if reg == nil {
		reg = optimization.DefaultRegistry(log)
	}
	handler := NewHandler(entropic.NewEvaluator(optimization.NewRunner(log), reg), reg, defaults, log)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

type solveResponse struct {
	Data struct {
		Value     *float64 `json:"value"`
		Z         *float64 `json:"z"`
		Available bool     `json:"available"`
		Solver    string   `json:"solver"`
		Status    string   `json:"status"`
		Attempts  []struct {
			Solver   string `json:"solver"`
			Status   string `json:"status"`
			Accepted bool   `json:"accepted"`
			Error    string `json:"error"`
		} `json:"attempts"`
	} `json:"data"`
}

func post(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
	return rec
}

func TestRegisterRoutes(t *testing.T) {
	router := newRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/optimizer/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Solvers  []string `json:"solvers"`
			Backends []string `json:"backends"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"barrier", "lbfgs", "nelder-mead"}, body.Data.Solvers)
	assert.ElementsMatch(t, []string{"barrier", "bfgs", "lbfgs", "nelder-mead"}, body.Data.Backends)

	// Routes outside the /optimizer prefix are not registered.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/erm", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSolveERM(t *testing.T) {
	router := newRouter(t, nil)

	rec := post(t, router, "/optimizer/erm", map[string]interface{}{"returns": returns, "alpha": 0.1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp solveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Available)
	require.NotNil(t, resp.Data.Value)
	require.NotNil(t, resp.Data.Z)
	assert.Greater(t, *resp.Data.Z, 0.0)
	assert.NotEmpty(t, resp.Data.Solver)
	require.NotEmpty(t, resp.Data.Attempts)
	last := resp.Data.Attempts[len(resp.Data.Attempts)-1]
	assert.True(t, last.Accepted)
	assert.Equal(t, resp.Data.Solver, last.Solver)

	direct, err := entropic.ERM(returns, *resp.Data.Z, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, direct, *resp.Data.Value, 1e-6)
}

func TestHandleSolveRRM_ReportsFailedAttempts(t *testing.T) {
	log := zerolog.Nop()
	broken := optimization.BackendFunc(func(context.Context, *optimization.Problem, optimization.Parameters) (optimization.Solution, error) {
		return optimization.Solution{}, errors.New("no licence")
	})
	reg, err := optimization.NewRegistry(
		optimization.SolverConfig{Name: "broken", Solver: broken},
		optimization.SolverConfig{
			Name:   "nelder-mead",
			Solver: optimization.DefaultCatalog()[optimization.MethodNelderMead](log),
			Check:  optimization.AcceptanceCriteria{AllowAlmost: true},
		},
	)
	require.NoError(t, err)
	router := newRouter(t, reg)

	rec := post(t, router, "/optimizer/rrm", map[string]interface{}{"returns": returns})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp solveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Attempts, 2)
	assert.Equal(t, "broken", resp.Data.Attempts[0].Solver)
	assert.False(t, resp.Data.Attempts[0].Accepted)
	assert.Contains(t, resp.Data.Attempts[0].Error, "no licence")
	assert.Equal(t, "nelder-mead", resp.Data.Solver)
}

func TestHandleSolve_Errors(t *testing.T) {
	router := newRouter(t, nil)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"empty returns", "/optimizer/erm", map[string]interface{}{"returns": []float64{}}, http.StatusBadRequest},
		{"kappa out of range", "/optimizer/rrm", map[string]interface{}{"returns": returns, "kappa": 1.5}, http.StatusBadRequest},
		{"explicit zero alpha", "/optimizer/erm", map[string]interface{}{"returns": returns, "alpha": 0}, http.StatusBadRequest},
		{"explicit zero kappa", "/optimizer/rrm", map[string]interface{}{"returns": returns, "kappa": 0}, http.StatusBadRequest},
		{"unknown field", "/optimizer/erm", map[string]interface{}{"returns": returns, "beta": 0.1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, router, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/optimizer/erm", bytes.NewBufferString("[")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	huge := bytes.NewBufferString(`{"returns": [`)
	for huge.Len() < maxBodyBytes {
		huge.WriteString("0.001, ")
	}
	huge.WriteString("0.001]}")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/optimizer/erm", huge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleSolveERM_UsesInjectedDefaults(t *testing.T) {
	router := newRouterWithDefaults(t, nil, Defaults{Alpha: 0.2, Kappa: 0.3})

	rec := post(t, router, "/optimizer/erm", map[string]interface{}{"returns": returns})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp solveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Value)
	require.NotNil(t, resp.Data.Z)

	direct, err := entropic.ERM(returns, *resp.Data.Z, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, direct, *resp.Data.Value, 1e-6)

	wrongLevel, err := entropic.ERM(returns, *resp.Data.Z, 0.05)
	require.NoError(t, err)
	assert.Greater(t, math.Abs(wrongLevel-*resp.Data.Value), 1e-4)
}
