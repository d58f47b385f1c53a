package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/riskengine/internal/modules/entropic"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

type calcFunc func(ctx context.Context, x []float64, p Params, l Levels) (float64, error)

// Service evaluates catalogue measures. Closed form measures are computed
// directly; the entropic family goes through the evaluator.
type Service struct {
	evaluator *entropic.Evaluator
	defaults  Levels
	calcs     map[Measure]calcFunc
	log       zerolog.Logger
}

// NewService creates a risk service. Zero levels in defaults take the
// values of DefaultLevels.
func NewService(evaluator *entropic.Evaluator, defaults Levels, log zerolog.Logger) *Service {
	s := &Service{
		evaluator: evaluator,
		defaults:  defaults.withDefaults(DefaultLevels()),
		log:       log.With().Str("component", "risk_service").Logger(),
	}
	s.calcs = s.dispatch()
	return s
}

// Defaults returns the levels applied to unset parameters.
func (s *Service) Defaults() Levels {
	return s.defaults
}

// Calculate evaluates measure m on returns x. Errors are domain errors or
// ErrUnknownMeasure; an optimised measure with no accepted solver yields
// NaN and no error.
func (s *Service) Calculate(ctx context.Context, m Measure, x []float64, p Params) (float64, error) {
	calc, ok := s.calcs[m]
	if !ok {
		return math.NaN(), fmt.Errorf("%w: %q", ErrUnknownMeasure, m)
	}
	if err := ctx.Err(); err != nil {
		return math.NaN(), err
	}

	start := time.Now()
	v, err := calc(ctx, x, p, p.levels(s.defaults))
	if err != nil {
		s.log.Debug().Err(err).Str("measure", string(m)).Msg("Risk measure rejected input")
		return math.NaN(), err
	}
	s.log.Debug().
		Str("measure", string(m)).
		Int("observations", len(x)).
		Float64("value", v).
		Dur("duration", time.Since(start)).
		Msg("Risk measure evaluated")
	return v, nil
}

// CalculateAll evaluates measures in order and stops at the first error.
func (s *Service) CalculateAll(ctx context.Context, measures []Measure, x []float64, p Params) (map[Measure]float64, error) {
	out := make(map[Measure]float64, len(measures))
	for _, m := range measures {
		v, err := s.Calculate(ctx, m, x, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		out[m] = v
	}
	return out, nil
}

func (s *Service) dispatch() map[Measure]calcFunc {
	plain := func(f func([]float64) (float64, error)) calcFunc {
		return func(_ context.Context, x []float64, _ Params, _ Levels) (float64, error) { return f(x) }
	}
	atAlpha := func(f func([]float64, float64) (float64, error)) calcFunc {
		return func(_ context.Context, x []float64, _ Params, l Levels) (float64, error) { return f(x, l.Alpha) }
	}
	atTarget := func(f func([]float64, float64) (float64, error)) calcFunc {
		return func(_ context.Context, x []float64, p Params, _ Levels) (float64, error) { return f(x, p.Target) }
	}
	entropicAt := func(f func(context.Context, []float64, float64) (float64, error)) calcFunc {
		return func(ctx context.Context, x []float64, _ Params, l Levels) (float64, error) { return f(ctx, x, l.Alpha) }
	}
	relativisticAt := func(f func(context.Context, []float64, float64, float64) (float64, error)) calcFunc {
		return func(ctx context.Context, x []float64, _ Params, l Levels) (float64, error) {
			return f(ctx, x, l.Alpha, l.Kappa)
		}
	}

	return map[Measure]calcFunc{
		SD: func(_ context.Context, x []float64, p Params, _ Levels) (float64, error) {
			w, cov, err := quadraticInputs(x, p)
			if err != nil {
				return 0, err
			}
			return formulas.SD(w, cov)
		},
		Variance: func(_ context.Context, x []float64, p Params, _ Levels) (float64, error) {
			w, cov, err := quadraticInputs(x, p)
			if err != nil {
				return 0, err
			}
			return formulas.Variance(w, cov)
		},
		MAD: func(_ context.Context, x []float64, p Params, _ Levels) (float64, error) {
			return formulas.MAD(x, p.ObservationWeights)
		},
		SSD: func(_ context.Context, x []float64, p Params, _ Levels) (float64, error) {
			return formulas.SSD(x, p.Target, p.ObservationWeights)
		},
		FLPM:  atTarget(formulas.FLPM),
		SLPM:  atTarget(formulas.SLPM),
		Kurt:  plain(formulas.Kurt),
		SKurt: plain(formulas.SKurt),
		Skew: func(_ context.Context, _ []float64, p Params, _ Levels) (float64, error) {
			if p.Coskewness == nil {
				return 0, &formulas.DomainError{Param: "coskewness", Value: nil, Reason: "required"}
			}
			return formulas.Skew(p.Weights, p.Coskewness)
		},
		SSkew: func(_ context.Context, _ []float64, p Params, _ Levels) (float64, error) {
			if p.SemiCoskewness == nil {
				return 0, &formulas.DomainError{Param: "semi_coskewness", Value: nil, Reason: "required"}
			}
			return formulas.SSkew(p.Weights, p.SemiCoskewness)
		},
		VaR:  atAlpha(formulas.VaR),
		CVaR: atAlpha(formulas.CVaR),
		RCVaR: func(_ context.Context, x []float64, _ Params, l Levels) (float64, error) {
			return formulas.RCVaR(x, l.Alpha, l.Beta)
		},
		WR:  plain(formulas.WR),
		RG:  plain(formulas.RG),
		GMD: plain(formulas.GMD),
		OWA: func(_ context.Context, x []float64, p Params, _ Levels) (float64, error) {
			w := p.OWAWeights
			if w == nil {
				w = formulas.OWAGMDWeights(len(x))
			}
			return formulas.OWA(x, w)
		},
		TG: func(_ context.Context, x []float64, _ Params, l Levels) (float64, error) {
			return formulas.TG(x, l.lossTail())
		},
		RTG: func(_ context.Context, x []float64, _ Params, l Levels) (float64, error) {
			return formulas.RTG(x, formulas.TailGiniRange{
				Losses: l.lossTail(),
				Gains:  formulas.TailGini{AlphaI: l.BetaI, Alpha: l.Beta, Sims: l.BSim},
			})
		},
		MDD:            plain(formulas.MDD),
		MDDCompounded:  plain(formulas.MDDCompounded),
		ADD:            plain(formulas.ADD),
		ADDCompounded:  plain(formulas.ADDCompounded),
		UCI:            plain(formulas.UCI),
		UCICompounded:  plain(formulas.UCICompounded),
		DaR:            atAlpha(formulas.DaR),
		DaRCompounded:  atAlpha(formulas.DaRCompounded),
		CDaR:           atAlpha(formulas.CDaR),
		CDaRCompounded: atAlpha(formulas.CDaRCompounded),
		DVar:           plain(formulas.DVar),
		EVaR:           entropicAt(s.evaluator.EVaR),
		EDaR:           entropicAt(s.evaluator.EDaR),
		EDaRCompounded: entropicAt(s.evaluator.EDaRCompounded),
		RVaR:           relativisticAt(s.evaluator.RVaR),
		RDaR:           relativisticAt(s.evaluator.RDaR),
		RDaRCompounded: relativisticAt(s.evaluator.RDaRCompounded),
	}
}

func (l Levels) lossTail() formulas.TailGini {
	return formulas.TailGini{AlphaI: l.AlphaI, Alpha: l.Alpha, Sims: l.ASim}
}

// quadraticInputs returns the weights and covariance for SD and Variance.
// Without a covariance the series is treated as a single asset held in
// full, so the result is its sample variance.
func quadraticInputs(x []float64, p Params) ([]float64, [][]float64, error) {
	if p.Covariance != nil {
		return p.Weights, p.Covariance, nil
	}
	if len(x) < 2 {
		return nil, nil, &formulas.DomainError{Param: "returns", Value: len(x), Reason: "need at least 2 observations"}
	}
	return []float64{1}, [][]float64{{stat.Variance(x, nil)}}, nil
}
