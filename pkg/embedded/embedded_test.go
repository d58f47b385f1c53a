package embedded

import (
	"testing"

	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolvers_MatchesDefaultRegistry(t *testing.T) {
	log := zerolog.Nop()

	reg, err := optimization.LoadRegistry(SolversReader(), optimization.DefaultCatalog(), log)
	require.NoError(t, err)

	assert.Equal(t, optimization.DefaultRegistry(log).Names(), reg.Names())
}
