// Package volume provides the pure geometric inclusion tests region painting
// builds on: given a voxel's real-world center, does it lie inside a given
// primitive. These replace the teacher's XBrickMap-writing Sphere/Cube/Cone
// painters (voxel storage here is a dense region-label tensor owned by the
// caller, not a sparse brickmap) but keep the same bounding-box-then-test
// idiom and the same +0.5 voxel-center sampling convention.
package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ContainsCube reports whether p lies in [p0, pf) component-wise.
func ContainsCube(p, p0, pf mgl32.Vec3) bool {
	return p[0] >= p0[0] && p[0] < pf[0] &&
		p[1] >= p0[1] && p[1] < pf[1] &&
		p[2] >= p0[2] && p[2] < pf[2]
}

// ContainsSphere reports whether p lies strictly inside a sphere.
func ContainsSphere(p, center mgl32.Vec3, radius float32) bool {
	d := p.Sub(center)
	return d.Dot(d) < radius*radius
}

// ContainsSemiSphere reports whether p lies inside a sphere and on the
// dir-facing half.
func ContainsSemiSphere(p, center, dir mgl32.Vec3, radius float32) bool {
	if !ContainsSphere(p, center, radius) {
		return false
	}
	return p.Sub(center).Dot(dir) >= 0
}

// ContainsCylinder reports whether p lies inside the finite cylinder from p0
// to pf with the given radius: between the end caps and within radius of
// the axis.
func ContainsCylinder(p, p0, pf mgl32.Vec3, radius float32) bool {
	v := pf.Sub(p0)
	vlen2 := v.Dot(v)
	if vlen2 == 0 {
		return false
	}
	if p.Sub(pf).Dot(v) > 0 || p.Sub(p0).Dot(v) < 0 {
		return false
	}
	cross := p.Sub(p0).Cross(v)
	return cross.Dot(cross) <= radius*radius*vlen2
}

// ContainsSphericalShell reports whether p lies in the annulus between inner
// and outer radii of a sphere centered at center.
func ContainsSphericalShell(p, center mgl32.Vec3, inner, outer float32) bool {
	d := p.Sub(center)
	d2 := d.Dot(d)
	return d2 < outer*outer && d2 >= inner*inner
}

// BoundingRadius rounds a real-world radius up to the nearest voxel count
// along axis, for bounding-box iteration.
func BoundingRadius(radius, voxelSize float32) int {
	return int(math.Ceil(float64(radius / voxelSize)))
}
