package rdmesim

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareLattice(t *testing.T, res [3]int) *Lattice {
	t.Helper()
	params, err := NewLatticeParameters(mgl32.Vec3{float32(res[0]), float32(res[1]), float32(res[2])}, res, 1e-3, 1)
	require.NoError(t, err)
	diff := newDiffusionTensor()
	rng := rand.New(rand.NewSource(1))
	regions := NewRegionMap(params, diff, rng)
	return NewLattice(params, regions, rng)
}

func TestAddReactionRejectsMoreThanThreeReactants(t *testing.T) {
	lat := newBareLattice(t, [3]int{2, 2, 2})
	lat.DeclareSpecies("A")
	lat.DeclareSpecies("B")
	lat.DeclareSpecies("C")
	lat.DeclareSpecies("D")
	rxn := NewReactionNetwork(lat)

	err := rxn.AddReaction([]string{"A", "B", "C", "D"}, nil, 1.0)
	require.Error(t, err)
	assert.True(t, IsKind(err, Arity))
}

func TestAddReactionRejectsUnknownSpecies(t *testing.T) {
	lat := newBareLattice(t, [3]int{2, 2, 2})
	rxn := NewReactionNetwork(lat)

	err := rxn.AddReaction([]string{"ghost"}, nil, 1.0)
	require.Error(t, err)
	assert.True(t, IsKind(err, UnknownSpecies))
}

func TestReactionStoichiometryBalance(t *testing.T) {
	lat := newBareLattice(t, [3]int{2, 2, 2})
	lat.DeclareSpecies("A")
	lat.DeclareSpecies("B")
	lat.DeclareSpecies("C")
	rxn := NewReactionNetwork(lat)

	require.NoError(t, rxn.AddReaction([]string{"A", "B"}, []string{"C"}, 5.82))
	row := rxn.StoichiometryRow(0)
	assert.EqualValues(t, -1, row[1]) // A
	assert.EqualValues(t, -1, row[2]) // B
	assert.EqualValues(t, 1, row[3])  // C
}

func TestMaxReactionsIsEnforced(t *testing.T) {
	lat := newBareLattice(t, [3]int{2, 2, 2})
	lat.DeclareSpecies("A")
	rxn := NewReactionNetwork(lat)

	for i := 0; i < MaxReactions; i++ {
		require.NoError(t, rxn.AddReaction([]string{"A"}, nil, 1.0))
	}
	err := rxn.AddReaction([]string{"A"}, nil, 1.0)
	require.Error(t, err)
}
