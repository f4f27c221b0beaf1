package rdmesim

// DiffusionTensor holds the (Rg, Rg, S+1) hop-rate tensor indexed by
// (from-region, to-region, species). Diagonal entries (a==b) are
// intra-region diffusion; off-diagonal entries gate cross-region hops.
//
// Grounded on original_source/src/simulation.rs's Matrix<T>::add_uniform_column
// / matrix_to_matrix growth algorithm: adding a region or a species grows the
// tensor by copying the old block into a larger zero-initialised one rather
// than recomputing it.
type DiffusionTensor struct {
	numRegions  int
	numSpecies  int // S+1, including the void slot at species 0
	data        []float32
	defaultRate []float32 // not written or read; AddRegion seeds the diagonal from its baseRate argument
}

func newDiffusionTensor() *DiffusionTensor {
	return &DiffusionTensor{numRegions: 0, numSpecies: 1, data: nil}
}

func (d *DiffusionTensor) index(a, b, s int) int {
	return (a*d.numRegions+b)*d.numSpecies + s
}

// Rate returns diffusion[a,b,s].
func (d *DiffusionTensor) Rate(a, b, s int) float32 {
	if a < 0 || a >= d.numRegions || b < 0 || b >= d.numRegions || s < 0 || s >= d.numSpecies {
		return 0
	}
	return d.data[d.index(a, b, s)]
}

// SetRate writes diffusion[a,b,s].
func (d *DiffusionTensor) SetRate(a, b, s int, rate float32) {
	d.data[d.index(a, b, s)] = rate
}

// AddRegion grows the tensor by one row and one column (dims 0 and 1),
// writing diag[newRegion,newRegion,s] = baseRate for every already-declared
// species except void, whose entry stays 0.
func (d *DiffusionTensor) AddRegion(baseRate float32) int {
	newN := d.numRegions + 1
	newData := make([]float32, newN*newN*d.numSpecies)
	for a := 0; a < d.numRegions; a++ {
		for b := 0; b < d.numRegions; b++ {
			for s := 0; s < d.numSpecies; s++ {
				newData[(a*newN+b)*d.numSpecies+s] = d.data[d.index(a, b, s)]
			}
		}
	}
	newRegion := d.numRegions
	d.numRegions = newN
	d.data = newData
	for s := 1; s < d.numSpecies; s++ {
		d.data[d.index(newRegion, newRegion, s)] = baseRate
	}
	return newRegion
}

// AddSpecies grows the tensor by one species slab (dim 2), all zero.
func (d *DiffusionTensor) AddSpecies() int {
	newS := d.numSpecies + 1
	newData := make([]float32, d.numRegions*d.numRegions*newS)
	for a := 0; a < d.numRegions; a++ {
		for b := 0; b < d.numRegions; b++ {
			for s := 0; s < d.numSpecies; s++ {
				newData[(a*d.numRegions+b)*newS+s] = d.data[(a*d.numRegions+b)*d.numSpecies+s]
			}
		}
	}
	newSpecies := d.numSpecies
	d.numSpecies = newS
	d.data = newData
	return newSpecies
}

// RemoveRegion deletes region index `del` along dims 0 and 1, shifting every
// region with a larger index down by one. Used by RegionMap.Join.
func (d *DiffusionTensor) RemoveRegion(del int) {
	newN := d.numRegions - 1
	newData := make([]float32, newN*newN*d.numSpecies)
	shift := func(r int) int {
		if r > del {
			return r - 1
		}
		return r
	}
	for a := 0; a < d.numRegions; a++ {
		if a == del {
			continue
		}
		for b := 0; b < d.numRegions; b++ {
			if b == del {
				continue
			}
			for s := 0; s < d.numSpecies; s++ {
				newData[(shift(a)*newN+shift(b))*d.numSpecies+s] = d.data[d.index(a, b, s)]
			}
		}
	}
	d.numRegions = newN
	d.data = newData
}

// NumRegions is the current region count the tensor is sized for.
func (d *DiffusionTensor) NumRegions() int { return d.numRegions }

// NumSpecies is S+1, the current species-slab count.
func (d *DiffusionTensor) NumSpecies() int { return d.numSpecies }

// Flatten returns the tensor as a row-major float32 slice, ready for device
// upload (matches original_source's Matrix<T>::add_buffer flattening idiom).
func (d *DiffusionTensor) Flatten() []float32 {
	out := make([]float32, len(d.data))
	copy(out, d.data)
	return out
}
