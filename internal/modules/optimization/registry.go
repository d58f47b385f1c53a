package optimization

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRegistry is returned when a solver registry cannot be built.
var ErrInvalidRegistry = errors.New("invalid solver registry")

// SolverConfig is one entry of a registry: a named backend, the statuses it
// may return and be trusted with, and its parameters.
type SolverConfig struct {
	Name   string
	Solver Backend
	Check  AcceptanceCriteria
	Params Parameters
}

// Registry is an ordered, validated list of solver configurations.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	configs []SolverConfig
}

// NewRegistry validates configs and returns them as a registry, in order.
// An empty registry is valid; every evaluation against it yields NaN.
func NewRegistry(configs ...SolverConfig) (*Registry, error) {
	seen := make(map[string]bool, len(configs))
	out := make([]SolverConfig, 0, len(configs))
	for i, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidRegistry, i)
		}
		if seen[cfg.Name] {
			return nil, fmt.Errorf("%w: duplicate solver name %q", ErrInvalidRegistry, cfg.Name)
		}
		seen[cfg.Name] = true
		if cfg.Solver == nil {
			return nil, fmt.Errorf("%w: solver %q has no backend", ErrInvalidRegistry, cfg.Name)
		}
		if cfg.Params == nil {
			cfg.Params = Parameters{}
		} else {
			cfg.Params = cfg.Params.Clone()
		}
		if v, ok := cfg.Solver.(ParameterValidator); ok {
			if err := v.ValidateParameters(cfg.Params); err != nil {
				return nil, fmt.Errorf("%w: solver %q: %v", ErrInvalidRegistry, cfg.Name, err)
			}
		}
		out = append(out, cfg)
	}
	return &Registry{configs: out}, nil
}

// Len is the number of configured solvers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.configs)
}

// Names lists solver names in attempt order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.configs))
	for i, c := range r.configs {
		names[i] = c.Name
	}
	return names
}

// Factory builds a backend for a registry file entry.
type Factory func(log zerolog.Logger) Backend

// Catalog maps the backend names usable in registry files to factories.
type Catalog map[string]Factory

// DefaultCatalog offers the barrier backend and the gonum methods.
func DefaultCatalog() Catalog {
	scalar := func(method string) Factory {
		return func(log zerolog.Logger) Backend {
			s, _ := NewScalarSolver(method, log)
			return s
		}
	}
	return Catalog{
		"barrier": func(log zerolog.Logger) Backend {
			return NewBarrierSolver(log)
		},
		MethodNelderMead: scalar(MethodNelderMead),
		MethodBFGS:       scalar(MethodBFGS),
		MethodLBFGS:      scalar(MethodLBFGS),
	}
}

// Kinds lists the catalog's backend names, sorted.
func (c Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

type registryFile struct {
	Solvers []registryEntry `yaml:"solvers"`
}

type registryEntry struct {
	Name   string             `yaml:"name"`
	Solver string             `yaml:"solver"`
	Check  AcceptanceCriteria `yaml:"check_sol"`
	Params Parameters         `yaml:"params"`
}

// LoadRegistry reads a YAML registry document:
//
//	solvers:
//	  - name: primary
//	    solver: barrier
//	    check_sol: {allow_local: false, allow_almost: true}
//	    params: {max_iter: 500}
//
// Unknown fields and unknown backend names are rejected.
func LoadRegistry(r io.Reader, catalog Catalog, log zerolog.Logger) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidRegistry)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}

	configs := make([]SolverConfig, 0, len(file.Solvers))
	for i, e := range file.Solvers {
		if e.Solver == "" {
			return nil, fmt.Errorf("%w: entry %d (%q) has no solver", ErrInvalidRegistry, i, e.Name)
		}
		factory, ok := catalog[e.Solver]
		if !ok {
			return nil, fmt.Errorf("%w: entry %q uses unknown solver %q (known: %v)", ErrInvalidRegistry, e.Name, e.Solver, catalog.Kinds())
		}
		configs = append(configs, SolverConfig{
			Name:   e.Name,
			Solver: factory(log),
			Check:  e.Check,
			Params: e.Params,
		})
	}
	return NewRegistry(configs...)
}

// LoadRegistryFile is LoadRegistry on the file at path.
func LoadRegistryFile(path string, catalog Catalog, log zerolog.Logger) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open solver registry: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f, catalog, log)
}

// DefaultRegistry tries the barrier method strictly first, then L-BFGS on
// the smooth form, then Nelder-Mead with relaxed acceptance.
func DefaultRegistry(log zerolog.Logger) *Registry {
	catalog := DefaultCatalog()
	reg, err := NewRegistry(
		SolverConfig{
			Name:   "barrier",
			Solver: catalog["barrier"](log),
		},
		SolverConfig{
			Name:   MethodLBFGS,
			Solver: catalog[MethodLBFGS](log),
			Check:  AcceptanceCriteria{AllowLocal: true},
		},
		SolverConfig{
			Name:   MethodNelderMead,
			Solver: catalog[MethodNelderMead](log),
			Check:  AcceptanceCriteria{AllowLocal: true, AllowAlmost: true},
		},
	)
	if err != nil {
		panic(err) // static configuration
	}
	return reg
}
