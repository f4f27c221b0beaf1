package rdmesim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffusionTensorAddRegionPreservesExistingRates(t *testing.T) {
	d := newDiffusionTensor()
	d.AddSpecies() // species 1 alongside void

	r0 := d.AddRegion(0.5)
	assert.Equal(t, float32(0.5), d.Rate(r0, r0, 1))

	r1 := d.AddRegion(0.25)
	assert.Equal(t, float32(0.5), d.Rate(r0, r0, 1), "growing the tensor corrupted an existing rate")
	assert.Equal(t, float32(0.25), d.Rate(r1, r1, 1))
	assert.Zero(t, d.Rate(r0, r1, 1), "cross-region rate should default to 0")
}

func TestDiffusionTensorRemoveRegionShiftsIndices(t *testing.T) {
	d := newDiffusionTensor()
	d.AddSpecies()
	r0 := d.AddRegion(1)
	r1 := d.AddRegion(2)
	r2 := d.AddRegion(3)
	d.SetRate(r0, r2, 1, 9)

	d.RemoveRegion(r1)

	assert.Equal(t, 2, d.NumRegions())
	// r2 shifted down to index 1 after r1's removal; r0 stays at 0.
	assert.Equal(t, float32(9), d.Rate(0, 1, 1), "expected preserved cross rate at shifted index")
}
