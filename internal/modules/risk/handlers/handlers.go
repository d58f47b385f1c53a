// Package handlers provides HTTP handlers for risk measure evaluation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/riskengine/internal/modules/risk"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	maxBodyBytes = 8 << 20
)

// Handler handles risk measure HTTP requests
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

// NewHandler creates a new risk measure handler
func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// EvaluateRequest is the body of the evaluation endpoints. Either Returns or
// Assets is set; an asset panel is combined with params.weights.
type EvaluateRequest struct {
	Returns  []float64   `json:"returns,omitempty" msgpack:"returns,omitempty"`
	Assets   risk.Panel  `json:"assets,omitempty" msgpack:"assets,omitempty"`
	Shrink   bool        `json:"shrink,omitempty" msgpack:"shrink,omitempty"`
	Params   risk.Params `json:"params" msgpack:"params"`
	Measures []string    `json:"measures,omitempty" msgpack:"measures,omitempty"`
}

// MeasureResult reports one evaluation. Value is null when no solver
// produced an accepted solution or when the request lacks the inputs listed
// in Missing.
type MeasureResult struct {
	Measure   risk.Measure `json:"measure" msgpack:"measure"`
	Value     *float64     `json:"value" msgpack:"value"`
	Available bool         `json:"available" msgpack:"available"`
	Missing   []string     `json:"missing,omitempty" msgpack:"missing,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp    string `json:"timestamp" msgpack:"timestamp"`
	EvaluationID string `json:"evaluation_id,omitempty" msgpack:"evaluation_id,omitempty"`
}

type envelope struct {
	Data     interface{} `json:"data" msgpack:"data"`
	Metadata Metadata    `json:"metadata" msgpack:"metadata"`
}

func newMetadata(withID bool) Metadata {
	md := Metadata{Timestamp: time.Now().Format(time.RFC3339)}
	if withID {
		md.EvaluationID = uuid.New().String()
	}
	return md
}

func newResult(m risk.Measure, v float64) MeasureResult {
	res := MeasureResult{Measure: m}
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		res.Value = &v
		res.Available = true
	}
	return res
}

// HandleListMeasures handles GET /api/risk/measures
func (h *Handler) HandleListMeasures(w http.ResponseWriter, r *http.Request) {
	d := h.service.Defaults()
	h.write(w, r, http.StatusOK, envelope{
		Data: map[string]interface{}{
			"measures": risk.Catalogue(),
			"defaults": map[string]interface{}{
				"alpha":   d.Alpha,
				"kappa":   d.Kappa,
				"alpha_i": d.AlphaI,
				"a_sim":   d.ASim,
			},
		},
		Metadata: newMetadata(false),
	})
}

// HandleEvaluate handles POST /api/risk/measures/{measure}
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request, name string) {
	m, err := risk.ParseMeasure(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	req, x, err := h.decode(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	v, err := h.service.Calculate(r.Context(), m, x, req.Params)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, r, http.StatusOK, envelope{Data: newResult(m, v), Metadata: newMetadata(true)})
}

// HandleEvaluateBatch handles POST /api/risk/measures. An empty measures
// list evaluates the whole catalogue; entries whose required inputs are
// absent are reported unavailable instead of failing the batch.
func (h *Handler) HandleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	req, x, err := h.decode(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	var (
		measures []risk.Measure
		skipped  = map[risk.Measure][]string{}
	)
	if len(req.Measures) == 0 {
		for _, info := range risk.Catalogue() {
			if missing := req.Params.Missing(info); len(missing) > 0 {
				skipped[info.Measure] = missing
				continue
			}
			measures = append(measures, info.Measure)
		}
	} else {
		for _, name := range req.Measures {
			m, err := risk.ParseMeasure(name)
			if err != nil {
				h.fail(w, err)
				return
			}
			measures = append(measures, m)
		}
	}

	values, err := h.service.CalculateAll(r.Context(), measures, x, req.Params)
	if err != nil {
		h.fail(w, err)
		return
	}
	results := make([]MeasureResult, 0, len(measures)+len(skipped))
	if len(req.Measures) == 0 {
		for _, info := range risk.Catalogue() {
			if missing, ok := skipped[info.Measure]; ok {
				results = append(results, MeasureResult{Measure: info.Measure, Missing: missing})
				continue
			}
			results = append(results, newResult(info.Measure, values[info.Measure]))
		}
	} else {
		for _, m := range measures {
			results = append(results, newResult(m, values[m]))
		}
	}
	h.write(w, r, http.StatusOK, envelope{
		Data:     map[string]interface{}{"results": results},
		Metadata: newMetadata(true),
	})
}

// decode reads the request body and resolves the return series.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (EvaluateRequest, []float64, error) {
	var req EvaluateRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var err error
	if isMsgpack(r.Header.Get("Content-Type")) {
		err = msgpack.NewDecoder(body).Decode(&req)
	} else {
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		err = dec.Decode(&req)
	}
	if err != nil {
		return req, nil, &requestError{fmt.Errorf("failed to decode request: %w", err)}
	}

	if req.Assets == nil {
		return req, req.Returns, nil
	}
	if req.Returns != nil {
		return req, nil, &requestError{errors.New("returns and assets are mutually exclusive")}
	}
	x, err := req.Assets.PortfolioReturns(req.Params.Weights)
	if err != nil {
		return req, nil, err
	}
	if req.Params.Covariance == nil && len(req.Assets) > 1 {
		cov, err := req.Assets.Covariance(req.Shrink)
		if err != nil {
			return req, nil, err
		}
		req.Params.Covariance = cov
	}
	return req, x, nil
}

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.Is(err, risk.ErrUnknownMeasure):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, formulas.ErrDomain), errors.As(err, &reqErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Msg("Risk evaluation interrupted")
		http.Error(w, "Evaluation interrupted", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg("Risk evaluation failed")
		http.Error(w, "Failed to evaluate risk measure", http.StatusInternalServerError)
	}
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if acceptsMsgpack(r.Header.Get("Accept")) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		if err := msgpack.NewEncoder(w).Encode(data); err != nil {
			h.log.Error().Err(err).Msg("Failed to encode msgpack response")
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func isMsgpack(header string) bool {
	if header == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(header)
	return err == nil && (mt == contentTypeMsgpack || mt == "application/x-msgpack")
}

// acceptsMsgpack reports whether any media range in an Accept header asks
// for msgpack.
func acceptsMsgpack(header string) bool {
	for _, part := range strings.Split(header, ",") {
		if isMsgpack(strings.TrimSpace(part)) {
			return true
		}
	}
	return false
}
