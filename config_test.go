package rdmesim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReactionExprAppliesLeadingNumericMultiplier(t *testing.T) {
	reactants, products, multiplier, err := parseReactionExpr("2 A -> B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, reactants)
	assert.Equal(t, []string{"B"}, products)
	assert.EqualValues(t, 2, multiplier)
}

func TestParseReactionExprNoMultiplierDefaultsToOne(t *testing.T) {
	reactants, products, multiplier, err := parseReactionExpr("A + B -> C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, reactants)
	assert.Equal(t, []string{"C"}, products)
	assert.EqualValues(t, 1, multiplier)
}

func TestParseReactionExprRejectsMissingArrow(t *testing.T) {
	_, _, _, err := parseReactionExpr("A + B")
	require.Error(t, err)
	assert.True(t, IsKind(err, ParseError))
}

// TestLoadSceneAppliesReactionMultiplier builds a minimal scene JSON with a
// "2 R -> P" reaction at declared rate 1.5 and checks the resulting
// ReactionNetwork was registered at rate 3.0 (1.5 * 2), not the bare 1.5 a
// caller that dropped the multiplier would have produced.
func TestLoadSceneAppliesReactionMultiplier(t *testing.T) {
	scene := `{
		"parameters": {"dimensions": [2,1,1], "lattice_resolution": [2,1,1], "tau": 1e-3, "lambda": 1},
		"regions": [{"name": "bulk", "type": "cube", "p0": [0,0,0], "pf": [2,1,1], "base_diffusion_rate": 0}],
		"particles": [
			{"name": "R", "to_region": "bulk", "count": 10},
			{"name": "P", "to_region": "bulk", "count": 0}
		],
		"reactions": {"2 R -> P": 1.5}
	}`
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(scene), 0o644))

	sim, err := LoadScene(path, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, sim.Rxn.NumReactions())
	assert.EqualValues(t, 3.0, sim.Rxn.Rate(0))
}

func TestValidateSceneRejectsUnknownRegionType(t *testing.T) {
	scene := `{
		"parameters": {"dimensions": [1,1,1], "lattice_resolution": [1,1,1], "tau": 1e-3, "lambda": 1},
		"regions": [{"name": "bad", "type": "dodecahedron"}],
		"particles": [],
		"reactions": {}
	}`
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(scene), 0o644))

	err := ValidateScene(path)
	require.Error(t, err)
	assert.True(t, IsKind(err, ParseError))
}
