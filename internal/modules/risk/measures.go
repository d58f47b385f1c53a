// Package risk evaluates the catalogue of portfolio risk measures.
package risk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMeasure is returned for measure names outside the catalogue.
var ErrUnknownMeasure = errors.New("unknown risk measure")

// Measure names a risk measure.
type Measure string

// Catalogue of supported measures. The _r suffix marks compounded
// cumulative returns.
const (
	SD             Measure = "SD"
	Variance       Measure = "Variance"
	MAD            Measure = "MAD"
	SSD            Measure = "SSD"
	FLPM           Measure = "FLPM"
	SLPM           Measure = "SLPM"
	Kurt           Measure = "Kurt"
	SKurt          Measure = "SKurt"
	Skew           Measure = "Skew"
	SSkew          Measure = "SSkew"
	VaR            Measure = "VaR"
	CVaR           Measure = "CVaR"
	RCVaR          Measure = "RCVaR"
	WR             Measure = "WR"
	RG             Measure = "RG"
	GMD            Measure = "GMD"
	OWA            Measure = "OWA"
	TG             Measure = "TG"
	RTG            Measure = "RTG"
	MDD            Measure = "MDD"
	MDDCompounded  Measure = "MDD_r"
	ADD            Measure = "ADD"
	ADDCompounded  Measure = "ADD_r"
	UCI            Measure = "UCI"
	UCICompounded  Measure = "UCI_r"
	DaR            Measure = "DaR"
	DaRCompounded  Measure = "DaR_r"
	CDaR           Measure = "CDaR"
	CDaRCompounded Measure = "CDaR_r"
	DVar           Measure = "DVar"
	EVaR           Measure = "EVaR"
	EDaR           Measure = "EDaR"
	EDaRCompounded Measure = "EDaR_r"
	RVaR           Measure = "RVaR"
	RDaR           Measure = "RDaR"
	RDaRCompounded Measure = "RDaR_r"
)

// Info describes a catalogue entry.
type Info struct {
	Measure     Measure  `json:"measure" msgpack:"measure"`
	Description string   `json:"description" msgpack:"description"`
	Params      []string `json:"params,omitempty" msgpack:"params,omitempty"`
	// Requires lists the inputs that have no default.
	Requires []string `json:"requires,omitempty" msgpack:"requires,omitempty"`
	// Optimised measures go through the solver registry and may be
	// unavailable when no solver is accepted.
	Optimised bool `json:"optimised" msgpack:"optimised"`
}

var catalogue = []Info{
	{SD, "standard deviation of portfolio returns", []string{"weights", "covariance"}, nil, false},
	{Variance, "variance of portfolio returns", []string{"weights", "covariance"}, nil, false},
	{MAD, "mean absolute deviation", []string{"observation_weights"}, nil, false},
	{SSD, "semi standard deviation", []string{"target", "observation_weights"}, nil, false},
	{FLPM, "first lower partial moment", []string{"target"}, nil, false},
	{SLPM, "second lower partial moment", []string{"target"}, nil, false},
	{Kurt, "square root kurtosis", nil, nil, false},
	{SKurt, "square root semi kurtosis", nil, nil, false},
	{Skew, "quadratic skewness", []string{"weights", "coskewness"}, []string{"weights", "coskewness"}, false},
	{SSkew, "quadratic semi skewness", []string{"weights", "semi_coskewness"}, []string{"weights", "semi_coskewness"}, false},
	{VaR, "value at risk", []string{"alpha"}, nil, false},
	{CVaR, "conditional value at risk", []string{"alpha"}, nil, false},
	{RCVaR, "conditional value at risk range", []string{"alpha", "beta"}, nil, false},
	{WR, "worst realisation", nil, nil, false},
	{RG, "range", nil, nil, false},
	{GMD, "gini mean difference", nil, nil, false},
	{OWA, "ordered weight array", []string{"owa_weights"}, nil, false},
	{TG, "tail gini", []string{"alpha_i", "alpha", "a_sim"}, nil, false},
	{RTG, "tail gini range", []string{"alpha_i", "alpha", "a_sim", "beta_i", "beta", "b_sim"}, nil, false},
	{MDD, "maximum drawdown of uncompounded returns", nil, nil, false},
	{MDDCompounded, "maximum drawdown of compounded returns", nil, nil, false},
	{ADD, "average drawdown of uncompounded returns", nil, nil, false},
	{ADDCompounded, "average drawdown of compounded returns", nil, nil, false},
	{UCI, "ulcer index of uncompounded returns", nil, nil, false},
	{UCICompounded, "ulcer index of compounded returns", nil, nil, false},
	{DaR, "drawdown at risk of uncompounded returns", []string{"alpha"}, nil, false},
	{DaRCompounded, "drawdown at risk of compounded returns", []string{"alpha"}, nil, false},
	{CDaR, "conditional drawdown at risk of uncompounded returns", []string{"alpha"}, nil, false},
	{CDaRCompounded, "conditional drawdown at risk of compounded returns", []string{"alpha"}, nil, false},
	{DVar, "brownian distance variance", nil, nil, false},
	{EVaR, "entropic value at risk", []string{"alpha"}, nil, true},
	{EDaR, "entropic drawdown at risk of uncompounded returns", []string{"alpha"}, nil, true},
	{EDaRCompounded, "entropic drawdown at risk of compounded returns", []string{"alpha"}, nil, true},
	{RVaR, "relativistic value at risk", []string{"alpha", "kappa"}, nil, true},
	{RDaR, "relativistic drawdown at risk of uncompounded returns", []string{"alpha", "kappa"}, nil, true},
	{RDaRCompounded, "relativistic drawdown at risk of compounded returns", []string{"alpha", "kappa"}, nil, true},
}

// Catalogue lists every measure in a stable order.
func Catalogue() []Info {
	out := make([]Info, len(catalogue))
	copy(out, catalogue)
	return out
}

// ParseMeasure resolves a measure name, ignoring case.
func ParseMeasure(name string) (Measure, error) {
	for _, info := range catalogue {
		if strings.EqualFold(string(info.Measure), name) {
			return info.Measure, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMeasure, name)
}

// Params carries the optional inputs of every measure. Nil scalar levels
// fall back to the service defaults; explicit values, zero included, are
// validated as given.
type Params struct {
	Alpha  *float64 `json:"alpha,omitempty" msgpack:"alpha,omitempty"`
	Beta   *float64 `json:"beta,omitempty" msgpack:"beta,omitempty"`
	Kappa  *float64 `json:"kappa,omitempty" msgpack:"kappa,omitempty"`
	Target float64  `json:"target,omitempty" msgpack:"target,omitempty"`

	AlphaI *float64 `json:"alpha_i,omitempty" msgpack:"alpha_i,omitempty"`
	ASim   *int     `json:"a_sim,omitempty" msgpack:"a_sim,omitempty"`
	BetaI  *float64 `json:"beta_i,omitempty" msgpack:"beta_i,omitempty"`
	BSim   *int     `json:"b_sim,omitempty" msgpack:"b_sim,omitempty"`

	ObservationWeights []float64 `json:"observation_weights,omitempty" msgpack:"observation_weights,omitempty"`
	OWAWeights         []float64 `json:"owa_weights,omitempty" msgpack:"owa_weights,omitempty"`

	// Asset level inputs for the quadratic measures.
	Weights        []float64   `json:"weights,omitempty" msgpack:"weights,omitempty"`
	Covariance     [][]float64 `json:"covariance,omitempty" msgpack:"covariance,omitempty"`
	Coskewness     [][]float64 `json:"coskewness,omitempty" msgpack:"coskewness,omitempty"`
	SemiCoskewness [][]float64 `json:"semi_coskewness,omitempty" msgpack:"semi_coskewness,omitempty"`
}

// Missing lists the inputs of info.Requires that p does not supply.
func (p Params) Missing(info Info) []string {
	var out []string
	for _, name := range info.Requires {
		var ok bool
		switch name {
		case "weights":
			ok = p.Weights != nil
		case "covariance":
			ok = p.Covariance != nil
		case "coskewness":
			ok = p.Coskewness != nil
		case "semi_coskewness":
			ok = p.SemiCoskewness != nil
		}
		if !ok {
			out = append(out, name)
		}
	}
	return out
}

// levels resolves the scalar levels of p against d. Beta, BetaI and BSim
// mirror the loss side when unset.
func (p Params) levels(d Levels) Levels {
	l := Levels{
		Alpha:  floatOr(p.Alpha, d.Alpha),
		Kappa:  floatOr(p.Kappa, d.Kappa),
		AlphaI: floatOr(p.AlphaI, d.AlphaI),
		ASim:   intOr(p.ASim, d.ASim),
	}
	l.Beta = floatOr(p.Beta, l.Alpha)
	l.BetaI = floatOr(p.BetaI, l.AlphaI)
	l.BSim = intOr(p.BSim, l.ASim)
	return l
}

// Levels are resolved scalar parameters.
type Levels struct {
	Alpha  float64 `json:"alpha" msgpack:"alpha"`
	Beta   float64 `json:"beta,omitempty" msgpack:"beta,omitempty"`
	Kappa  float64 `json:"kappa" msgpack:"kappa"`
	AlphaI float64 `json:"alpha_i" msgpack:"alpha_i"`
	ASim   int     `json:"a_sim" msgpack:"a_sim"`
	BetaI  float64 `json:"beta_i,omitempty" msgpack:"beta_i,omitempty"`
	BSim   int     `json:"b_sim,omitempty" msgpack:"b_sim,omitempty"`
}

// DefaultLevels returns α = 0.05, κ = 0.3 and a 100 level Tail Gini
// starting at 0.0001.
func DefaultLevels() Levels {
	return Levels{Alpha: 0.05, Kappa: 0.3, AlphaI: 0.0001, ASim: 100}
}

// withDefaults fills the zero loss side fields of l from d.
func (l Levels) withDefaults(d Levels) Levels {
	if l.Alpha == 0 {
		l.Alpha = d.Alpha
	}
	if l.Kappa == 0 {
		l.Kappa = d.Kappa
	}
	if l.AlphaI == 0 {
		l.AlphaI = d.AlphaI
	}
	if l.ASim == 0 {
		l.ASim = d.ASim
	}
	return l
}

func floatOr(v *float64, d float64) float64 {
	if v == nil {
		return d
	}
	return *v
}

func intOr(v *int, d int) int {
	if v == nil {
		return d
	}
	return *v
}
