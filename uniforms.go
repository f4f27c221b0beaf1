package rdmesim

import (
	"encoding/binary"
	"math"
	"time"
)

// Uniforms is the host-mirror of the per-step global the kernels read:
// frame counter, RNG time seed, and the read-only view-control fields a
// rendering collaborator would consult.
type Uniforms struct {
	ITime        uint32
	FrameNum     uint32
	Slice        uint32
	SliceAxis    uint32 // 0,1,2
	RenderingView uint32 // 0: occupancy, 1: region label, 2: reservoir mask
}

// Advance bumps the frame counter and refreshes the wall-clock time field,
// matching the scheduler step's uniform-update sub-step.
func (u *Uniforms) Advance() {
	u.FrameNum++
	u.ITime = uint32(time.Now().UnixMicro())
}

// Bytes packs Uniforms into its device-buffer byte layout.
func (u *Uniforms) Bytes() []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:], u.ITime)
	binary.LittleEndian.PutUint32(buf[4:], u.FrameNum)
	binary.LittleEndian.PutUint32(buf[8:], u.Slice)
	binary.LittleEndian.PutUint32(buf[12:], u.SliceAxis)
	binary.LittleEndian.PutUint32(buf[16:], u.RenderingView)
	return buf
}

// latticeParamsBytes packs LatticeParameters plus the three counts the
// uniform buffer's companion struct carries (site capacity, region count,
// species count) into the device's LatticeParams layout.
func latticeParamsBytes(p *LatticeParameters, siteCapacity, numRegions, numSpecies uint32) []byte {
	buf := make([]byte, 48)
	binary.LittleEndian.PutUint32(buf[0:], uint32(p.Resolution[0]))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.Resolution[1]))
	binary.LittleEndian.PutUint32(buf[8:], uint32(p.Resolution[2]))
	binary.LittleEndian.PutUint32(buf[12:], siteCapacity)
	vs := p.VoxelSize()
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(vs[0]))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(vs[1]))
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(vs[2]))
	binary.LittleEndian.PutUint32(buf[28:], numRegions)
	binary.LittleEndian.PutUint32(buf[32:], numSpecies)
	binary.LittleEndian.PutUint32(buf[36:], math.Float32bits(p.Tau))
	binary.LittleEndian.PutUint32(buf[40:], math.Float32bits(p.Lambda))
	return buf
}

// reactionParamsBytes packs the small {num_species, num_reactions} uniform.
func reactionParamsBytes(numSpecies, numReactions uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], numSpecies)
	binary.LittleEndian.PutUint32(buf[4:], numReactions)
	return buf
}
