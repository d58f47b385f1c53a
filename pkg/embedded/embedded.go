// Package embedded provides embedded static assets for the application.
package embedded

import (
	"bytes"
	_ "embed"
	"io"
)

// Solvers is the solver registry used when SOLVER_REGISTRY_FILE is unset.
// It also serves as the reference layout for custom registry files.
//
//go:embed solvers.yaml
var Solvers []byte

// SolversReader returns a fresh reader over Solvers.
func SolversReader() io.Reader {
	return bytes.NewReader(Solvers)
}
