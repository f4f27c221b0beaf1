package rdmesim

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLattice(t *testing.T, res [3]int) (*LatticeParameters, *DiffusionTensor, *RegionMap, *Lattice) {
	t.Helper()
	params, err := NewLatticeParameters(mgl32.Vec3{float32(res[0]), float32(res[1]), float32(res[2])}, res, 1e-3, 1)
	require.NoError(t, err)
	diff := newDiffusionTensor()
	rng := rand.New(rand.NewSource(1))
	regions := NewRegionMap(params, diff, rng)
	lat := NewLattice(params, regions, rng)
	return params, diff, regions, lat
}

func TestLatticeInvariantsAfterSeeding(t *testing.T) {
	_, _, _, lat := newTestLattice(t, [3]int{4, 4, 4})
	lat.DeclareSpecies("A")

	require.NoError(t, lat.SeedCount("background", "A", 30))

	assert.True(t, lat.CheckI1())
	assert.True(t, lat.CheckI2I3())
	assert.EqualValues(t, 30, lat.TotalConcentration(1))
}

func TestSeedCountSumsToN(t *testing.T) {
	_, _, _, lat := newTestLattice(t, [3]int{4, 4, 4})
	lat.DeclareSpecies("A")

	require.NoError(t, lat.SeedCount("background", "A", 50))
	assert.EqualValues(t, 50, lat.TotalConcentration(1))
}

func TestSiteCapacityOneSaturates(t *testing.T) {
	params, err := NewLatticeParameters(mgl32.Vec3{1, 1, 1}, [3]int{1, 1, 1}, 1e-3, 1)
	require.NoError(t, err)
	diff := newDiffusionTensor()
	rng := rand.New(rand.NewSource(1))
	regions := NewRegionMap(params, diff, rng)
	lat := &Lattice{
		params:        params,
		regions:       regions,
		siteCap:       1,
		slots:         make([]uint32, 1*1),
		occ:           make([]uint32, 1),
		conc:          make([]uint32, 1),
		reserv:        make([]uint32, 1),
		lock:          make([]uint32, 1),
		rng:           rng,
		numSpecies:    1,
		speciesByName: map[string]int{"void": 0},
		speciesNames:  []string{"void"},
	}
	lat.DeclareSpecies("A")

	require.NoError(t, lat.SeedCount("background", "A", 1))
	err = lat.SeedCount("background", "A", 1)
	require.Error(t, err)
	assert.True(t, IsKind(err, RegionSaturated))
}

func TestEmptyReactionZeroDiffusionIsNoOp(t *testing.T) {
	params, diff, regions, front := newTestLattice(t, [3]int{4, 4, 4})
	back := NewLattice(params, regions, rand.New(rand.NewSource(2)))
	front.DeclareSpecies("A")
	back.DeclareSpecies("A")

	require.NoError(t, front.SeedCount("background", "A", 20))
	back.CopyFrom(front)

	rxn := NewReactionNetwork(front)
	rng := rand.New(rand.NewSource(3))
	for k := 0; k < 20; k++ {
		stepRDME(front, back, regions, diff, rng)
		stepCME(back, rxn, params.Tau, rng, nil)
		front.CopyFrom(back)
	}

	assert.True(t, front.Equal(back))
	assert.EqualValues(t, 20, front.TotalConcentration(1))
}

func TestReservoirSeedingPinsConcentration(t *testing.T) {
	_, _, regions, lat := newTestLattice(t, [3]int{4, 4, 4})
	lat.DeclareSpecies("Iex")
	_ = regions

	require.NoError(t, lat.SeedReservoir("background", "Iex"))
	speciesID, err := lat.SpeciesID("Iex")
	require.NoError(t, err)
	for v := 0; v < lat.params.VoxelCount(); v++ {
		assert.EqualValues(t, 1, lat.concAt(v, speciesID))
		assert.EqualValues(t, speciesID, lat.reserv[v])
	}

	err = lat.SeedReservoir("background", "Iex")
	assert.NoError(t, err) // same species, not a conflict
}

func TestCannotFitRandomWalk(t *testing.T) {
	// A 2x2x2 grid cannot hold even one boundary-aware seed point for a worm
	// of radius 1 (its (2*1+1)^3 = 3^3 neighbourhood never fits inside a
	// grid only 2 voxels wide on every axis), so the walk must fail
	// immediately with CannotFit.
	_, _, _, lat := newTestLattice(t, [3]int{2, 2, 2})
	lat.DeclareSpecies("worm")

	err := lat.RandomWalk("background", "worm", 100, 1, 1, 0)
	require.Error(t, err)
	assert.True(t, IsKind(err, CannotFit))
}
