// Package handlers provides HTTP handlers for the entropic optimiser.
package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/aristath/riskengine/internal/modules/entropic"
	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 8 << 20

// Defaults are the levels used when a request omits alpha or kappa.
type Defaults struct {
	Alpha float64
	Kappa float64
}

// Handler exposes the solver registry and the raw ERM/RRM optimisations,
// including the optimal z and the attempt log.
type Handler struct {
	evaluator *entropic.Evaluator
	registry  *optimization.Registry
	defaults  Defaults
	log       zerolog.Logger
}

// NewHandler creates a new optimiser handler
func NewHandler(evaluator *entropic.Evaluator, registry *optimization.Registry, defaults Defaults, log zerolog.Logger) *Handler {
	return &Handler{
		evaluator: evaluator,
		registry:  registry,
		defaults:  defaults,
		log:       log.With().Str("handler", "optimizer").Logger(),
	}
}

type solveRequest struct {
	Returns []float64 `json:"returns"`
	Alpha   float64   `json:"alpha"`
	Kappa   float64   `json:"kappa"`
}

type attemptView struct {
	Solver     string   `json:"solver"`
	Status     string   `json:"status"`
	Accepted   bool     `json:"accepted"`
	Objective  *float64 `json:"objective"`
	DurationMs float64  `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// HandleGetStatus handles GET /api/optimizer/
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.registry != nil {
		names = h.registry.Names()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"solvers":  names,
			"backends": optimization.DefaultCatalog().Kinds(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSolveERM handles POST /api/optimizer/erm
func (h *Handler) HandleSolveERM(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.evaluator.SolveERM(r.Context(), req.Returns, req.Alpha)
	h.respond(w, res, err)
}

// HandleSolveRRM handles POST /api/optimizer/rrm
func (h *Handler) HandleSolveRRM(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.evaluator.SolveRRM(r.Context(), req.Returns, req.Alpha, req.Kappa)
	h.respond(w, res, err)
}

// decode reads a solve request. Fields absent from the body keep the
// handler defaults; explicit values are passed through for validation.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (solveRequest, bool) {
	req := solveRequest{Alpha: h.defaults.Alpha, Kappa: h.defaults.Kappa}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return req, false
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *Handler) respond(w http.ResponseWriter, res entropic.Result, err error) {
	if err != nil {
		if errors.Is(err, formulas.ErrDomain) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Optimisation failed")
		http.Error(w, "Optimisation failed", http.StatusInternalServerError)
		return
	}

	attempts := make([]attemptView, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		v := attemptView{
			Solver:     a.Solver,
			Status:     a.Status.String(),
			Accepted:   a.Accepted,
			Objective:  finite(a.Objective),
			DurationMs: float64(a.Duration) / float64(time.Millisecond),
		}
		if a.Err != nil {
			v.Error = a.Err.Error()
		}
		attempts = append(attempts, v)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"value":     finite(res.Value),
			"z":         finite(res.Z),
			"available": res.Solver != "",
			"solver":    res.Solver,
			"status":    res.Status.String(),
			"attempts":  attempts,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
