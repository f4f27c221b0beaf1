package rdmesim

import "github.com/go-gl/mathgl/mgl32"

// SiteCapacity is the compile-time cap on tokens per voxel. The spec allows
// {8,16}; this build fixes 8, matching the reference scenarios in §8.
const SiteCapacity = 8

// MaxReactions bounds the reaction table. The spec requires ≥100.
const MaxReactions = 128

// LatticeParameters is the immutable grid geometry shared by every other
// component. It is fixed at construction and never mutated afterward.
type LatticeParameters struct {
	// Dimensions is the real-world box size (fx,fy,fz).
	Dimensions mgl32.Vec3
	// Resolution is the voxel-grid resolution R = (Rx,Ry,Rz).
	Resolution [3]int
	// Tau is the simulation time step.
	Tau float32
	// Lambda is the characteristic voxel length used to convert diffusion
	// coefficients into per-step hop probabilities.
	Lambda float32
}

// NewLatticeParameters derives VoxelSize from Dimensions/Resolution and
// validates that the resolution is non-degenerate.
func NewLatticeParameters(dims mgl32.Vec3, res [3]int, tau, lambda float32) (*LatticeParameters, error) {
	for d, r := range res {
		if r <= 0 {
			return nil, newErr(ParseError, "resolution axis %d must be positive, got %d", d, r)
		}
	}
	return &LatticeParameters{
		Dimensions: dims,
		Resolution: res,
		Tau:        tau,
		Lambda:     lambda,
	}, nil
}

// VoxelSize is the real-world size of one voxel along each axis.
func (p *LatticeParameters) VoxelSize() mgl32.Vec3 {
	return mgl32.Vec3{
		p.Dimensions[0] / float32(p.Resolution[0]),
		p.Dimensions[1] / float32(p.Resolution[1]),
		p.Dimensions[2] / float32(p.Resolution[2]),
	}
}

// VoxelCount is the total number of voxels R.x*R.y*R.z.
func (p *LatticeParameters) VoxelCount() int {
	return p.Resolution[0] * p.Resolution[1] * p.Resolution[2]
}

// Index implements the normative linearization idx = i*R.y*R.z + j*R.z + k.
func (p *LatticeParameters) Index(i, j, k int) int {
	return i*p.Resolution[1]*p.Resolution[2] + j*p.Resolution[2] + k
}

// Coords is the inverse of Index.
func (p *LatticeParameters) Coords(idx int) (i, j, k int) {
	ry, rz := p.Resolution[1], p.Resolution[2]
	k = idx % rz
	rem := idx / rz
	j = rem % ry
	i = rem / ry
	return
}

// InBounds reports whether (i,j,k) addresses a real voxel.
func (p *LatticeParameters) InBounds(i, j, k int) bool {
	return i >= 0 && i < p.Resolution[0] &&
		j >= 0 && j < p.Resolution[1] &&
		k >= 0 && k < p.Resolution[2]
}
