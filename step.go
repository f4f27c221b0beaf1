package rdmesim

import (
	"math"
	"math/rand"
)

// sixNeighbors returns the linear indices (and validity) of the six
// face-adjacent voxels of idx, in a shuffled order so no axis is favored
// when a token tests candidates one at a time.
func sixNeighbors(p *LatticeParameters, idx int, rng *rand.Rand) []int {
	i, j, k := p.Coords(idx)
	offsets := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	order := rng.Perm(6)
	out := make([]int, 0, 6)
	for _, o := range order {
		d := offsets[o]
		ni, nj, nk := i+d[0], j+d[1], k+d[2]
		if p.InBounds(ni, nj, nk) {
			out = append(out, p.Index(ni, nj, nk))
		}
	}
	return out
}

// stepRDME is the host-side reference implementation of the RDME kernel
// contract (§4.4.1): for every token in `front`, attempt one hop into
// `back`, which starts as a copy of front. Tokens of a matching reservoir
// species never move (I5). Since this reference runs single-threaded there
// is no destination-voxel race to arbitrate — the try-lock discipline in
// the WGSL kernel exists only to serialize true GPU concurrency and has no
// CPU-side analogue here (see DESIGN.md).
func stepRDME(front, back *Lattice, regions *RegionMap, diff *DiffusionTensor, rng *rand.Rand) {
	params := front.params
	n := params.VoxelCount()
	order := rng.Perm(n)
	lambda2 := params.Lambda * params.Lambda
	for _, v := range order {
		o := int(front.occ[v])
		if o == 0 {
			continue
		}
		myRegion := int(regions.Label(v))
		isReservoirVoxel := front.reserv[v] != 0
		for slot := 0; slot < o; slot++ {
			species := int(front.slots[v*front.siteCap+slot])
			if species == 0 {
				continue
			}
			if isReservoirVoxel && front.reserv[v] == uint32(species) {
				continue
			}
			for _, nb := range sixNeighbors(params, v, rng) {
				toRegion := int(regions.Label(nb))
				rate := diff.Rate(myRegion, toRegion, species)
				p := 6 * rate * params.Tau / lambda2
				if float32(rng.Float64()) >= p {
					continue
				}
				if int(back.occ[nb]) >= back.siteCap {
					break // destination full: the token stays for this step
				}
				back.removeOne(v, species)
				if err := back.insert(nb, species); err == nil {
					break
				}
			}
		}
	}
}

// stepCME is the host-side reference implementation of the CME kernel
// contract (§4.4.2): independently per voxel, compute reaction
// propensities from the concentration histogram, fire at most one reaction
// per step per voxel, and reconcile the slot array from the updated
// histogram (the normative dense-rewrite in §4.4.2.4).
func stepCME(lat *Lattice, rxn *ReactionNetwork, tau float32, rng *rand.Rand, onFire func(species int, delta int32)) {
	n := lat.params.VoxelCount()
	numReactions := rxn.NumReactions()
	if numReactions == 0 {
		return
	}
	propensities := make([]float32, numReactions)
	for v := 0; v < n; v++ {
		isReservoirVoxel := lat.reserv[v] != 0
		reservoirSpecies := int(lat.reserv[v])

		// A reservoir species' concentration cell is pinned to 1 at seed time
		// and I5 forbids ever decrementing it below that, so reading it
		// directly already gives the "always available" reactant count a
		// reservoir is supposed to present to propensity evaluation — no
		// special-casing needed here.
		countOf := func(species int) float32 {
			return float32(lat.concAt(v, species))
		}

		var a0 float32
		for j := 0; j < numReactions; j++ {
			idx := rxn.ReactantIndex(j)
			combinatorial := float32(1)
			counts := map[int]int{}
			for _, sp32 := range idx {
				sp := int(sp32)
				if sp == 0 {
					continue
				}
				c := countOf(sp)
				dup := counts[sp]
				combinatorial *= maxf(c-float32(dup), 0) / float32(dup+1)
				counts[sp] = dup + 1
			}
			a := rxn.Rate(j) * combinatorial
			propensities[j] = a
			a0 += a
		}
		if a0 <= 0 {
			continue
		}
		fireProb := 1 - expNeg(a0*tau)
		if float32(rng.Float64()) >= fireProb {
			continue
		}
		pick := float32(rng.Float64()) * a0
		var running float32
		chosen := -1
		for j := 0; j < numReactions; j++ {
			running += propensities[j]
			if pick < running {
				chosen = j
				break
			}
		}
		if chosen < 0 {
			continue
		}
		row := rxn.StoichiometryRow(chosen)
		for s, delta := range row {
			if delta == 0 {
				continue
			}
			if isReservoirVoxel && s == reservoirSpecies {
				continue // I5
			}
			updated := int32(lat.concAt(v, s)) + delta
			if updated < 0 {
				updated = 0
			}
			if updated > int32(lat.siteCap) {
				updated = int32(lat.siteCap)
			}
			lat.setConcAt(v, s, uint32(updated))
			if onFire != nil {
				onFire(s, delta)
			}
		}
		reconcileSlots(lat, v)
	}
}

// reconcileSlots rewrites voxel v's dense slot array from its concentration
// histogram, restoring I1/I2 after a reaction mutates the histogram
// in-place (§4.4.2.4). Species 0 (void) is never written. Tokens that do not
// fit in SiteCapacity slots are dropped from the histogram too, so I1 holds.
func reconcileSlots(lat *Lattice, v int) {
	occ := 0
	for s := 1; s < lat.numSpecies; s++ {
		c := int(lat.concAt(v, s))
		written := 0
		for ; written < c && occ < lat.siteCap; written++ {
			lat.slots[v*lat.siteCap+occ] = uint32(s)
			occ++
		}
		if written < c {
			lat.setConcAt(v, s, uint32(written))
		}
	}
	for s := occ; s < lat.siteCap; s++ {
		lat.slots[v*lat.siteCap+s] = 0
	}
	lat.occ[v] = uint32(occ)
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// expNeg is e^-x via the standard library, kept as a named wrapper so the
// Bernoulli-fire formula in stepCME reads identically to §4.4.2.3.
func expNeg(x float32) float32 {
	return float32(math.Exp(-float64(x)))
}
