package rdmesim

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// maxSeedRetries bounds the rejection-sampling loop in SeedCount before it
// fails with RegionSaturated.
const maxSeedRetries = 100

// Lattice is the host-side representation of the five per-voxel arrays:
// slot tokens, occupancy, the concentration histogram, the reservoir mask,
// and the advisory lock. Two Lattice instances serve as a step's read and
// write buffers; CopyFrom is the host-side barrier that restores I6 between
// steps.
type Lattice struct {
	params   *LatticeParameters
	regions  *RegionMap
	siteCap  int
	slots    []uint32 // voxel*siteCap + slot
	occ      []uint32 // per voxel
	conc     []uint32 // voxel*numSpecies + species (species 0 == void, always 0)
	reserv   []uint32 // per voxel: species id or 0
	lock     []uint32 // per voxel advisory lock
	rng      *rand.Rand
	numSpecies int // S+1
	speciesByName map[string]int
	speciesNames  []string
}

// NewLattice allocates an empty lattice over params/regions with only the
// void species declared.
func NewLattice(params *LatticeParameters, regions *RegionMap, rng *rand.Rand) *Lattice {
	n := params.VoxelCount()
	return &Lattice{
		params:        params,
		regions:       regions,
		siteCap:       SiteCapacity,
		slots:         make([]uint32, n*SiteCapacity),
		occ:           make([]uint32, n),
		conc:          make([]uint32, n), // one void slab to start
		reserv:        make([]uint32, n),
		lock:          make([]uint32, n),
		rng:           rng,
		numSpecies:    1,
		speciesByName: map[string]int{"void": 0},
		speciesNames:  []string{"void"},
	}
}

// NumSpecies is S+1, including the void slot.
func (l *Lattice) NumSpecies() int { return l.numSpecies }

// SpeciesID resolves a declared species name, UnknownSpecies if never
// declared via DeclareSpecies.
func (l *Lattice) SpeciesID(name string) (int, error) {
	id, ok := l.speciesByName[name]
	if !ok {
		return 0, newErr(UnknownSpecies, "species %q not declared", name)
	}
	return id, nil
}

// DeclareSpecies grows the concentration histogram by one slab and returns
// the new species id. Idempotent: redeclaring an existing name returns its
// existing id.
func (l *Lattice) DeclareSpecies(name string) int {
	if id, ok := l.speciesByName[name]; ok {
		return id
	}
	n := l.params.VoxelCount()
	newS := l.numSpecies + 1
	newConc := make([]uint32, n*newS)
	for v := 0; v < n; v++ {
		copy(newConc[v*newS:v*newS+l.numSpecies], l.conc[v*l.numSpecies:(v+1)*l.numSpecies])
	}
	l.conc = newConc
	id := l.numSpecies
	l.numSpecies = newS
	l.speciesByName[name] = id
	l.speciesNames = append(l.speciesNames, name)
	return id
}

func (l *Lattice) concAt(voxel, species int) uint32 { return l.conc[voxel*l.numSpecies+species] }
func (l *Lattice) setConcAt(voxel, species int, v uint32) {
	l.conc[voxel*l.numSpecies+species] = v
}

// insert places one token of `species` into voxel `idx`. Returns SiteFull if
// occupancy is already at SiteCapacity.
func (l *Lattice) insert(idx, species int) error {
	o := l.occ[idx]
	if int(o) >= l.siteCap {
		return newErr(SiteFull, "voxel %d at capacity", idx)
	}
	l.slots[idx*l.siteCap+int(o)] = uint32(species)
	l.occ[idx] = o + 1
	l.setConcAt(idx, species, l.concAt(idx, species)+1)
	return nil
}

// SeedCount draws N voxels uniformly (with replacement) from region's index
// buffer and inserts one token each, retrying on SiteFull up to
// maxSeedRetries consecutive failures before returning RegionSaturated.
func (l *Lattice) SeedCount(regionName, species string, n int) error {
	regionID, err := l.regions.RegionID(regionName)
	if err != nil {
		return err
	}
	speciesID, err := l.SpeciesID(species)
	if err != nil {
		return err
	}
	idxBuf := l.regions.IndexBuffer(regionID)
	if len(idxBuf) == 0 {
		return newErr(RegionSaturated, "region %q has no voxels", regionName)
	}
	for placed := 0; placed < n; {
		fails := 0
		for {
			v := idxBuf[l.rng.Intn(len(idxBuf))]
			if err := l.insert(v, speciesID); err == nil {
				placed++
				break
			}
			fails++
			if fails >= maxSeedRetries {
				return newErr(RegionSaturated, "region %q saturated after %d attempts", regionName, fails)
			}
		}
	}
	return nil
}

// SeedConcentration computes N = floor(c * volume(region)) and delegates to
// SeedCount.
func (l *Lattice) SeedConcentration(regionName, species string, c float32) error {
	regionID, err := l.regions.RegionID(regionName)
	if err != nil {
		return err
	}
	n := int(math.Floor(float64(c) * float64(l.regions.Volume(regionID))))
	return l.SeedCount(regionName, species, n)
}

// FillRegion places exactly one token of species in every voxel of region.
func (l *Lattice) FillRegion(regionName, species string) error {
	regionID, err := l.regions.RegionID(regionName)
	if err != nil {
		return err
	}
	speciesID, err := l.SpeciesID(species)
	if err != nil {
		return err
	}
	for _, v := range l.regions.IndexBuffer(regionID) {
		if err := l.insert(v, speciesID); err != nil {
			return err
		}
	}
	return nil
}

// SeedReservoir marks every voxel of region as a Dirichlet source for
// species: one token is inserted (so I1/I2 hold exactly as for any other
// slot) and the reservoir mask pins it so RDME never moves it and CME never
// decrements it (I5). Overwriting an existing reservoir of a different
// species is a ReservoirConflict; reseeding the same species is a no-op.
func (l *Lattice) SeedReservoir(regionName, species string) error {
	regionID, err := l.regions.RegionID(regionName)
	if err != nil {
		return err
	}
	speciesID, err := l.SpeciesID(species)
	if err != nil {
		return err
	}
	for _, v := range l.regions.IndexBuffer(regionID) {
		if l.reserv[v] != 0 && l.reserv[v] != uint32(speciesID) {
			return newErr(ReservoirConflict, "voxel %d already reserved for species %d", v, l.reserv[v])
		}
		if l.reserv[v] == uint32(speciesID) {
			continue
		}
		if err := l.insert(v, speciesID); err != nil {
			return err
		}
		l.reserv[v] = uint32(speciesID)
	}
	return nil
}

// randomUnitVector draws a direction uniformly on the unit sphere.
func (l *Lattice) randomUnitVector() mgl32.Vec3 {
	for {
		v := mgl32.Vec3{
			float32(l.rng.Float64()*2 - 1),
			float32(l.rng.Float64()*2 - 1),
			float32(l.rng.Float64()*2 - 1),
		}
		if n := v.Len(); n > 1e-6 && n <= 1 {
			return v.Mul(1 / n)
		}
	}
}

// RandomWalk places a chain of blocks ("worm") of total real length
// totalLength, each block blockLength long, starting from a boundary-aware
// random seed point. Each block is a straight one-voxel-wide line of tokens
// along a random direction; blocks are not swept into cylinders, and radius
// only sets the clearance the seed point must have. On overrun (a block
// exits the region or a voxel is full) it pops up to stepBackwards trailing
// blocks, restoring their tokens, and retries with a fresh direction. Fails
// with CannotFit if the total length is not reached within the retry
// budget.
func (l *Lattice) RandomWalk(regionName, species string, totalLength, blockLength float32, radius int, stepBackwards int) error {
	regionID, err := l.regions.RegionID(regionName)
	if err != nil {
		return err
	}
	speciesID, err := l.SpeciesID(species)
	if err != nil {
		return err
	}
	vs := l.params.VoxelSize()
	avgVoxel := (vs[0] + vs[1] + vs[2]) / 3

	ci, cj, ck, ok := l.regions.boundaryAwareRandomPoint(regionID, radius)
	if !ok {
		return newErr(CannotFit, "no boundary-aware seed point found in %q", regionName)
	}

	type block struct {
		voxels []int
		end    [3]int
	}
	var blocks []block
	placed := float32(0)
	maxAttempts := 500
	cur := [3]int{ci, cj, ck}

	for attempt := 0; attempt < maxAttempts && placed < totalLength; attempt++ {
		dir := l.randomUnitVector()
		steps := int(blockLength / avgVoxel)
		if steps < 1 {
			steps = 1
		}
		var candidate []int
		pos := cur
		failed := false
		for s := 0; s < steps; s++ {
			next := [3]int{
				pos[0] + int(math.Round(float64(dir[0]))),
				pos[1] + int(math.Round(float64(dir[1]))),
				pos[2] + int(math.Round(float64(dir[2]))),
			}
			if next == pos {
				next[s%3] += 1
			}
			if !l.params.InBounds(next[0], next[1], next[2]) {
				failed = true
				break
			}
			idx := l.params.Index(next[0], next[1], next[2])
			if int(l.regions.Label(idx)) != regionID {
				failed = true
				break
			}
			if l.insert(idx, speciesID) != nil {
				failed = true
				break
			}
			candidate = append(candidate, idx)
			pos = next
		}
		if failed {
			for _, v := range candidate {
				l.removeOne(v, speciesID)
			}
			popped := 0
			for popped < stepBackwards && len(blocks) > 0 {
				last := blocks[len(blocks)-1]
				for _, v := range last.voxels {
					l.removeOne(v, speciesID)
				}
				placed -= blockLength
				cur = last.end
				blocks = blocks[:len(blocks)-1]
				popped++
			}
			if len(blocks) > 0 {
				cur = blocks[len(blocks)-1].end
			} else {
				cur = [3]int{ci, cj, ck}
			}
			continue
		}
		blocks = append(blocks, block{voxels: candidate, end: pos})
		cur = pos
		placed += blockLength
	}
	if placed < totalLength {
		return newErr(CannotFit, "random walk placed %.2f of %.2f required length", placed, totalLength)
	}
	return nil
}

// removeOne removes a single token of species from voxel idx, undoing one
// insert for RandomWalk backtracking. No-op if the species is absent.
func (l *Lattice) removeOne(idx, species int) {
	o := int(l.occ[idx])
	for s := 0; s < o; s++ {
		if l.slots[idx*l.siteCap+s] == uint32(species) {
			for t := s; t < o-1; t++ {
				l.slots[idx*l.siteCap+t] = l.slots[idx*l.siteCap+t+1]
			}
			l.slots[idx*l.siteCap+o-1] = 0
			l.occ[idx] = uint32(o - 1)
			l.setConcAt(idx, species, l.concAt(idx, species)-1)
			return
		}
	}
}

// TotalConcentration sums the concentration histogram for a species over
// the whole volume.
func (l *Lattice) TotalConcentration(species int) uint64 {
	var total uint64
	n := l.params.VoxelCount()
	for v := 0; v < n; v++ {
		total += uint64(l.concAt(v, species))
	}
	return total
}

// CheckI1 verifies sum_s concentration[v,s] == occupancy[v] for every voxel.
func (l *Lattice) CheckI1() bool {
	n := l.params.VoxelCount()
	for v := 0; v < n; v++ {
		var sum uint32
		for s := 0; s < l.numSpecies; s++ {
			sum += l.concAt(v, s)
		}
		if sum != l.occ[v] {
			return false
		}
	}
	return true
}

// CheckI2I3 verifies slot density (I2) and the capacity bound (I3).
func (l *Lattice) CheckI2I3() bool {
	n := l.params.VoxelCount()
	for v := 0; v < n; v++ {
		o := l.occ[v]
		if int(o) > l.siteCap {
			return false
		}
		for s := 0; s < int(o); s++ {
			if l.slots[v*l.siteCap+s] == 0 {
				return false
			}
		}
		for s := int(o); s < l.siteCap; s++ {
			if l.slots[v*l.siteCap+s] != 0 {
				return false
			}
		}
	}
	return true
}

// CopyFrom overwrites l's slots/occupancy/concentration/reservoir with
// src's, implementing the host-side post-step barrier that restores I6.
// The lock array is not copied: it is transient per-step kernel state.
func (l *Lattice) CopyFrom(src *Lattice) {
	copy(l.slots, src.slots)
	copy(l.occ, src.occ)
	copy(l.conc, src.conc)
	copy(l.reserv, src.reserv)
}

// Equal reports whether l and other hold byte-identical slot/occupancy
// state, used to assert I6 at step boundaries.
func (l *Lattice) Equal(other *Lattice) bool {
	if len(l.slots) != len(other.slots) || len(l.occ) != len(other.occ) {
		return false
	}
	for i := range l.slots {
		if l.slots[i] != other.slots[i] {
			return false
		}
	}
	for i := range l.occ {
		if l.occ[i] != other.occ[i] {
			return false
		}
	}
	return true
}

// Occupancy returns the occupancy array (device upload shape).
func (l *Lattice) Occupancy() []uint32 { return l.occ }

// Slots returns the flat slot array (device upload shape).
func (l *Lattice) Slots() []uint32 { return l.slots }

// Concentration returns the flat concentration histogram (device upload shape).
func (l *Lattice) Concentration() []uint32 { return l.conc }

// Reservoir returns the per-voxel reservoir mask (device upload shape).
func (l *Lattice) Reservoir() []uint32 { return l.reserv }

// Lock returns the per-voxel advisory lock array (device upload shape).
func (l *Lattice) Lock() []uint32 { return l.lock }
