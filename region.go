package rdmesim

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/rdmesim/voxelrt/rt/volume"
)

// RegionKind tags the closed set of region-descriptor variants. A tagged
// enum (rather than open polymorphism) keeps painting/volume-computation
// switches exhaustive — see design notes.
type RegionKind int

const (
	RegionCube RegionKind = iota
	RegionSphere
	RegionSemiSphere
	RegionCylinder
	RegionSphericalShell
	RegionCylindricalShell
	RegionCapsid
	RegionSparse
)

// RegionDescriptor is a closed tagged variant of the geometric primitives
// painting can target. Only the fields relevant to Kind are populated.
type RegionDescriptor struct {
	Kind RegionKind

	P0, Pf mgl32.Vec3 // Cube, Cylinder, CylindricalShell
	Center mgl32.Vec3 // Sphere, SemiSphere, Capsid
	Radius float32    // Sphere, SemiSphere, Cylinder

	Dir mgl32.Vec3 // SemiSphere, Capsid

	Inner, Outer float32 // SphericalShell, CylindricalShell, Capsid
	TotalLength  float32 // Capsid

	MaxVolume int // Sparse
}

// contains tests whether the voxel center (real-world coordinates) lies
// inside the primitive. Painting iterates a bounding sub-box and calls this
// per voxel, following the teacher's volume/primitives.go idiom of a
// +0.5-sampled voxel center tested against real-world bounds.
func (r RegionDescriptor) contains(x mgl32.Vec3) bool {
	switch r.Kind {
	case RegionCube:
		return volume.ContainsCube(x, r.P0, r.Pf)
	case RegionSphere:
		return volume.ContainsSphere(x, r.Center, r.Radius)
	case RegionSemiSphere:
		return volume.ContainsSemiSphere(x, r.Center, r.Dir, r.Radius)
	case RegionCylinder:
		return volume.ContainsCylinder(x, r.P0, r.Pf, r.Radius)
	case RegionSphericalShell:
		return volume.ContainsSphericalShell(x, r.Center, r.Inner, r.Outer)
	case RegionCylindricalShell:
		if !volume.ContainsCylinder(x, r.P0, r.Pf, r.Outer) {
			return false
		}
		return !volume.ContainsCylinder(x, r.P0, r.Pf, r.Inner)
	default:
		return false
	}
}

// capsidCylinder derives the Capsid's outer/inner cylinder segment
// between the two cap centers, stepping each endpoint in by Outer/Inner
// along Dir so the cylinder meets the semisphere caps flush.
func capsidCylinder(c RegionDescriptor, radius float32) (p0, pf mgl32.Vec3) {
	half := c.Dir.Normalize().Mul(c.TotalLength/2 - radius)
	return c.Center.Sub(half), c.Center.Add(half)
}

// capsidCaps places the two outward-facing semisphere caps of the given
// radius at the ends of capsidCylinder(c, radius).
func capsidCaps(c RegionDescriptor, radius float32) (cap1, cap2 RegionDescriptor) {
	half := c.Dir.Normalize().Mul(c.TotalLength/2 - radius)
	dir := c.Dir.Normalize()
	cap1 = RegionDescriptor{Kind: RegionSemiSphere, Center: c.Center.Add(half), Radius: radius, Dir: dir}
	cap2 = RegionDescriptor{Kind: RegionSemiSphere, Center: c.Center.Sub(half), Radius: radius, Dir: dir.Mul(-1)}
	return
}

type regionEntry struct {
	name   string
	desc   RegionDescriptor
	volume int
}

// RegionMap owns the per-voxel region label tensor, the region descriptor
// table, per-region volume accounting, and (after PrepareRegions) the
// region-to-voxel index buffer.
type RegionMap struct {
	params *LatticeParameters
	labels []uint32
	regs   []regionEntry
	byName map[string]int
	index  [][]int // built by PrepareRegions; nil before that
	diff   *DiffusionTensor
	rng    *rand.Rand
}

// NewRegionMap allocates a RegionMap whose single default region ("background")
// covers the whole volume.
func NewRegionMap(params *LatticeParameters, diff *DiffusionTensor, rng *rand.Rand) *RegionMap {
	n := params.VoxelCount()
	rm := &RegionMap{
		params: params,
		labels: make([]uint32, n),
		byName: make(map[string]int),
		diff:   diff,
		rng:    rng,
	}
	rm.regs = append(rm.regs, regionEntry{name: "background", volume: n})
	rm.byName["background"] = 0
	diff.AddRegion(0)
	return rm
}

func (rm *RegionMap) voxelCenter(i, j, k int) mgl32.Vec3 {
	vs := rm.params.VoxelSize()
	return mgl32.Vec3{
		(float32(i) + 0.5) * vs[0],
		(float32(j) + 0.5) * vs[1],
		(float32(k) + 0.5) * vs[2],
	}
}

// RegionID resolves a declared region name to its label, UnknownRegion if
// never declared.
func (rm *RegionMap) RegionID(name string) (int, error) {
	id, ok := rm.byName[name]
	if !ok {
		return 0, newErr(UnknownRegion, "region %q not declared", name)
	}
	return id, nil
}

// Volume returns the live voxel count for a region id.
func (rm *RegionMap) Volume(id int) int { return rm.regs[id].volume }

// NumRegions is the current region count.
func (rm *RegionMap) NumRegions() int { return len(rm.regs) }

// Label returns the region id owning linear voxel idx.
func (rm *RegionMap) Label(idx int) uint32 { return rm.labels[idx] }

// boundingBox clamps the primitive's natural extent to the grid, in voxel
// index space, inclusive lo, exclusive hi.
func (rm *RegionMap) boundingBox(d RegionDescriptor) (lo, hi [3]int) {
	vs := rm.params.VoxelSize()
	var rlo, rhi mgl32.Vec3
	switch d.Kind {
	case RegionCube:
		rlo, rhi = d.P0, d.Pf
	case RegionSphere, RegionSemiSphere:
		r := mgl32.Vec3{d.Radius, d.Radius, d.Radius}
		rlo, rhi = d.Center.Sub(r), d.Center.Add(r)
	case RegionCylinder:
		r := mgl32.Vec3{d.Radius, d.Radius, d.Radius}
		lo3 := mgl32.Vec3{min32(d.P0[0], d.Pf[0]), min32(d.P0[1], d.Pf[1]), min32(d.P0[2], d.Pf[2])}
		hi3 := mgl32.Vec3{max32(d.P0[0], d.Pf[0]), max32(d.P0[1], d.Pf[1]), max32(d.P0[2], d.Pf[2])}
		rlo, rhi = lo3.Sub(r), hi3.Add(r)
	case RegionSphericalShell:
		r := mgl32.Vec3{d.Outer, d.Outer, d.Outer}
		rlo, rhi = d.Center.Sub(r), d.Center.Add(r)
	case RegionCylindricalShell:
		r := mgl32.Vec3{d.Outer, d.Outer, d.Outer}
		lo3 := mgl32.Vec3{min32(d.P0[0], d.Pf[0]), min32(d.P0[1], d.Pf[1]), min32(d.P0[2], d.Pf[2])}
		hi3 := mgl32.Vec3{max32(d.P0[0], d.Pf[0]), max32(d.P0[1], d.Pf[1]), max32(d.P0[2], d.Pf[2])}
		rlo, rhi = lo3.Sub(r), hi3.Add(r)
	default:
		rlo, rhi = mgl32.Vec3{0, 0, 0}, rm.params.Dimensions
	}
	for d := 0; d < 3; d++ {
		l := int(rlo[d]/vs[d]) - 1
		h := int(rhi[d]/vs[d]) + 1
		if l < 0 {
			l = 0
		}
		if h > rm.params.Resolution[d] {
			h = rm.params.Resolution[d]
		}
		lo[d], hi[d] = l, h
	}
	return
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// paint repaints every voxel in the descriptor's bounding box that the
// inclusion test accepts, with label `id`, updating volume accounting on
// both the overwritten and the new region. A non-negative limit stops
// painting once that many voxels have been painted. Returns the count painted.
func (rm *RegionMap) paint(id int, d RegionDescriptor, limit int) int {
	lo, hi := rm.boundingBox(d)
	painted := 0
	for i := lo[0]; i < hi[0]; i++ {
		for j := lo[1]; j < hi[1]; j++ {
			for k := lo[2]; k < hi[2]; k++ {
				if limit >= 0 && painted >= limit {
					return painted
				}
				if !d.contains(rm.voxelCenter(i, j, k)) {
					continue
				}
				idx := rm.params.Index(i, j, k)
				old := rm.labels[idx]
				if int(old) == id {
					continue
				}
				rm.regs[old].volume--
				rm.labels[idx] = uint32(id)
				rm.regs[id].volume++
				painted++
			}
		}
	}
	return painted
}

// AddRegion paints a non-composite primitive (Cube/Sphere/SemiSphere/
// Cylinder/SphericalShell/CylindricalShell) under a new name, growing the
// diffusion tensor by one region slab seeded with baseDiffusionRate on the
// diagonal for every already-declared species.
func (rm *RegionMap) AddRegion(name string, desc RegionDescriptor, baseDiffusionRate float32) (int, error) {
	if _, exists := rm.byName[name]; exists {
		return 0, newErr(ParseError, "region %q already declared", name)
	}
	id := rm.diff.AddRegion(baseDiffusionRate)
	rm.regs = append(rm.regs, regionEntry{name: name, desc: desc})
	rm.byName[name] = id
	rm.paint(id, desc, -1)
	rm.index = nil
	return id, nil
}

// boundaryAwareRandomPoint samples a uniformly random voxel from parent's
// index buffer whose (2*fitRadius+1)^3 neighbourhood lies entirely inside
// the grid and entirely within parent, checked via the label tensor. Up to
// 10 retries; shared by AddSparseRegion and Lattice.RandomWalk.
func (rm *RegionMap) boundaryAwareRandomPoint(parent, fitRadius int) (i, j, k int, ok bool) {
	idxBuf := rm.IndexBuffer(parent)
	if len(idxBuf) == 0 {
		return 0, 0, 0, false
	}
	for attempt := 0; attempt < 10; attempt++ {
		v := idxBuf[rm.rng.Intn(len(idxBuf))]
		ci, cj, ck := rm.params.Coords(v)
		good := true
	check:
		for di := -fitRadius; di <= fitRadius && good; di++ {
			for dj := -fitRadius; dj <= fitRadius && good; dj++ {
				for dk := -fitRadius; dk <= fitRadius; dk++ {
					ni, nj, nk := ci+di, cj+dj, ck+dk
					if !rm.params.InBounds(ni, nj, nk) {
						good = false
						break check
					}
					if int(rm.labels[rm.params.Index(ni, nj, nk)]) != parent {
						good = false
						break check
					}
				}
			}
		}
		if good {
			return ci, cj, ck, true
		}
	}
	return 0, 0, 0, false
}

// AddSparseRegion scatters basis spheres (radius in real-world units) inside
// parentName, overwrite-and-decrement on collision, until maxVolume voxels
// have been claimed or placement fails; the last sphere is cut short so the
// region never exceeds maxVolume voxels. Each sphere's center is drawn via
// the boundary-aware sampler so it never bleeds outside its parent.
func (rm *RegionMap) AddSparseRegion(name, parentName string, radius float32, maxVolume int, baseDiffusionRate float32) (int, error) {
	parent, err := rm.RegionID(parentName)
	if err != nil {
		return 0, err
	}
	if _, exists := rm.byName[name]; exists {
		return 0, newErr(ParseError, "region %q already declared", name)
	}
	id := rm.diff.AddRegion(baseDiffusionRate)
	rm.regs = append(rm.regs, regionEntry{name: name, desc: RegionDescriptor{Kind: RegionSparse, Radius: radius, MaxVolume: maxVolume}})
	rm.byName[name] = id

	vs := rm.params.VoxelSize()
	fitRadius := volume.BoundingRadius(radius, (vs[0]+vs[1]+vs[2])/3)
	placed := 0
	for placed < maxVolume {
		ci, cj, ck, ok := rm.boundaryAwareRandomPoint(parent, fitRadius)
		if !ok {
			break
		}
		sphere := RegionDescriptor{Kind: RegionSphere, Center: rm.voxelCenter(ci, cj, ck), Radius: radius}
		placed += rm.paint(id, sphere, maxVolume-placed)
	}
	rm.index = nil
	return id, nil
}

// AddCapsid paints the Capsid composite: an outer/inner cylinder plus two
// outer semisphere caps joined into a "membrane" label, and two inner
// semisphere caps joined into an "interior" label — exactly two region
// labels besides background, per the capsid testable property.
func (rm *RegionMap) AddCapsid(name string, c RegionDescriptor, baseDiffusionRate float32) (membrane, interior int, err error) {
	outerCyl := RegionDescriptor{Kind: RegionCylinder, Radius: c.Outer}
	outerCyl.P0, outerCyl.Pf = capsidCylinder(c, c.Outer)
	innerCyl := RegionDescriptor{Kind: RegionCylinder, Radius: c.Inner}
	innerCyl.P0, innerCyl.Pf = capsidCylinder(c, c.Inner)

	membraneName := name + "_membrane"
	interiorName := name + "_interior"
	membrane, err = rm.AddRegion(membraneName, outerCyl, baseDiffusionRate)
	if err != nil {
		return 0, 0, err
	}
	interior, err = rm.AddRegion(interiorName, innerCyl, baseDiffusionRate)
	if err != nil {
		return 0, 0, err
	}

	cap1, cap2 := capsidCaps(c, c.Outer)
	cap1Name, cap2Name := name+"_cap1", name+"_cap2"
	cap1ID, err := rm.AddRegion(cap1Name, cap1, baseDiffusionRate)
	if err != nil {
		return 0, 0, err
	}
	cap2ID, err := rm.AddRegion(cap2Name, cap2, baseDiffusionRate)
	if err != nil {
		return 0, 0, err
	}
	if err := rm.Join(cap1Name, membraneName); err != nil {
		return 0, 0, err
	}
	if err := rm.Join(cap2Name, membraneName); err != nil {
		return 0, 0, err
	}
	_ = cap1ID
	_ = cap2ID

	inside1, inside2 := capsidCaps(c, c.Inner)
	inside1Name, inside2Name := name+"_inside1", name+"_inside2"
	if _, err = rm.AddRegion(inside1Name, inside1, baseDiffusionRate); err != nil {
		return 0, 0, err
	}
	if _, err = rm.AddRegion(inside2Name, inside2, baseDiffusionRate); err != nil {
		return 0, 0, err
	}
	if err := rm.Join(inside1Name, interiorName); err != nil {
		return 0, 0, err
	}
	if err := rm.Join(inside2Name, interiorName); err != nil {
		return 0, 0, err
	}

	membrane, _ = rm.RegionID(membraneName)
	interior, _ = rm.RegionID(interiorName)
	return membrane, interior, nil
}

// Join rewrites every voxel labelled `delete` to `keep`, shifts down every
// label greater than `delete` by one, removes the deleted region's
// diffusion slab, and folds its volume into `keep`.
func (rm *RegionMap) Join(deleteName, keepName string) error {
	del, err := rm.RegionID(deleteName)
	if err != nil {
		return err
	}
	keep, err := rm.RegionID(keepName)
	if err != nil {
		return err
	}
	if del == keep {
		return nil
	}
	shift := func(r uint32) uint32 {
		ri := int(r)
		if ri == del {
			if keep > del {
				return uint32(keep - 1)
			}
			return uint32(keep)
		}
		if ri > del {
			return r - 1
		}
		return r
	}
	for idx := range rm.labels {
		rm.labels[idx] = shift(rm.labels[idx])
	}
	keepAfterShift := keep
	if keep > del {
		keepAfterShift = keep - 1
	}
	rm.regs[keepAfterShift].volume += rm.regs[del].volume
	rm.regs = append(rm.regs[:del], rm.regs[del+1:]...)
	for name, id := range rm.byName {
		if id == del {
			delete(rm.byName, name)
			continue
		}
		if id > del {
			rm.byName[name] = id - 1
		}
	}
	rm.diff.RemoveRegion(del)
	rm.index = nil
	return nil
}

// PrepareRegions groups every voxel linear index by region label in one
// pass. Must run after all painting and before GPU upload or seeding.
func (rm *RegionMap) PrepareRegions() {
	idxs := make([][]int, len(rm.regs))
	for idx, label := range rm.labels {
		idxs[label] = append(idxs[label], idx)
	}
	rm.index = idxs
}

// IndexBuffer returns the ordered linear voxel indices owned by region id.
// PrepareRegions must have run.
func (rm *RegionMap) IndexBuffer(id int) []int {
	if rm.index == nil {
		rm.PrepareRegions()
	}
	return rm.index[id]
}

// Labels exposes the raw per-voxel label tensor (upload-ready, device byte
// layout handled by the gpu package).
func (rm *RegionMap) Labels() []uint32 { return rm.labels }
