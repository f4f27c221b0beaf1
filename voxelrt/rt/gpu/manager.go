// Package gpu owns device-buffer lifecycle, bind-group layouts/groups, and
// compute-pipeline creation for the three simulation kernels (RDME, CME,
// final-texture). Buffer growth follows the same geometric-reallocation
// discipline as the teacher engine's GpuBufferManager.ensureBuffer.
package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

const (
	HeadroomPayload = 1 * 1024 * 1024
	HeadroomTables  = 16 * 1024

	SafeBufferSizeLimit = 1024 * 1024 * 1024

	// RDMEWorkgroupX/Y/Z match original_source/src/rdme.rs's WORKGROUP_SIZE.
	RDMEWorkgroupX, RDMEWorkgroupY, RDMEWorkgroupZ = 4, 4, 4
	// CMEWorkgroupX/Y/Z match original_source/src/cme.rs's per-axis dispatch.
	CMEWorkgroupX, CMEWorkgroupY, CMEWorkgroupZ = 4, 4, 4
)

// Manager owns every device buffer, bind group, and pipeline the scheduler
// dispatches against. Buffer fields are named after the per-voxel arrays in
// the data model (§3.1 of the design): two slot/occupancy copies (ping-pong
// by frame parity), one shared concentration histogram, reservoir mask, and
// advisory lock, plus the region/reaction/diffusion tables and the
// statistics and uniform buffers.
type Manager struct {
	Device *wgpu.Device

	SlotsBuf     [2]*wgpu.Buffer
	OccupancyBuf [2]*wgpu.Buffer

	ConcentrationBuf *wgpu.Buffer
	ReservoirBuf     *wgpu.Buffer
	LockBuf          *wgpu.Buffer
	RegionLabelsBuf  *wgpu.Buffer

	DiffusionBuf     *wgpu.Buffer
	StoichiometryBuf *wgpu.Buffer
	ReactantIdxBuf   *wgpu.Buffer
	RatesBuf         *wgpu.Buffer

	LatticeParamsBuf  *wgpu.Buffer
	ReactionParamsBuf *wgpu.Buffer
	UniformsBuf       *wgpu.Buffer
	StatisticsBuf     *wgpu.Buffer

	PayloadTex  *wgpu.Texture
	PayloadView *wgpu.TextureView

	ParamsLayout     *wgpu.BindGroupLayout
	LatticeLayout    *wgpu.BindGroupLayout
	ReactionLayout   *wgpu.BindGroupLayout
	StatisticsLayout *wgpu.BindGroupLayout
	TextureLayout    *wgpu.BindGroupLayout

	ParamsGroup     *wgpu.BindGroup
	LatticeGroup    *wgpu.BindGroup
	ReactionGroup   *wgpu.BindGroup
	StatisticsGroup *wgpu.BindGroup
	TextureGroup    *wgpu.BindGroup

	RDMEPipeline         *wgpu.ComputePipeline
	CMEPipeline          *wgpu.ComputePipeline
	FinalTexturePipeline *wgpu.ComputePipeline
}

// NewManager wraps a device. The caller is expected to call the Ensure* and
// Create*Pipeline methods before the first Dispatch.
func NewManager(device *wgpu.Device) *Manager {
	return &Manager{Device: device}
}

// ensureBuffer grows or creates *buf to fit len(data)+headroom bytes,
// 4-byte aligned, writing data afterward. Growth is geometric (1.5x) so
// repeated region/species/reaction additions amortize to O(1) reallocations.
// Returns true if the buffer was (re)created.
func (m *Manager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) bool {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}

	current := *buf
	usage = usage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

	if current == nil || current.GetSize() < neededSize {
		newSize := neededSize
		if current != nil {
			if grown := uint64(float64(current.GetSize()) * 1.5); grown > newSize {
				newSize = grown
			}
		}
		if newSize > SafeBufferSizeLimit {
			fmt.Printf("WARNING: buffer %s allocation size %d exceeds safety limit %d\n", name, newSize, SafeBufferSizeLimit)
		}

		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            name,
			Size:             newSize,
			Usage:            usage,
			MappedAtCreation: false,
		})
		if err != nil {
			panic(err)
		}

		if current != nil && data == nil {
			encoder, err := m.Device.CreateCommandEncoder(nil)
			if err != nil {
				panic(err)
			}
			encoder.CopyBufferToBuffer(current, 0, newBuf, 0, current.GetSize())
			cmdBuf, err := encoder.Finish(nil)
			if err != nil {
				panic(err)
			}
			m.Device.GetQueue().Submit(cmdBuf)
		}

		if current != nil {
			current.Release()
		}
		*buf = newBuf

		if len(data) > 0 {
			m.Device.GetQueue().WriteBuffer(*buf, 0, data)
		}
		return true
	}

	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
	return false
}

// EnsureLatticeBuffers uploads both parity copies of slots/occupancy plus
// the shared concentration/reservoir/lock/region-label arrays.
func (m *Manager) EnsureLatticeBuffers(slots0, slots1 []uint32, occ0, occ1 []uint32, conc, reservoir, lock, labels []uint32) {
	m.ensureBuffer("SlotsBuf0", &m.SlotsBuf[0], uint32sToBytes(slots0), wgpu.BufferUsageStorage, HeadroomPayload)
	m.ensureBuffer("SlotsBuf1", &m.SlotsBuf[1], uint32sToBytes(slots1), wgpu.BufferUsageStorage, HeadroomPayload)
	m.ensureBuffer("OccupancyBuf0", &m.OccupancyBuf[0], uint32sToBytes(occ0), wgpu.BufferUsageStorage, HeadroomPayload)
	m.ensureBuffer("OccupancyBuf1", &m.OccupancyBuf[1], uint32sToBytes(occ1), wgpu.BufferUsageStorage, HeadroomPayload)
	m.ensureBuffer("ConcentrationBuf", &m.ConcentrationBuf, uint32sToBytes(conc), wgpu.BufferUsageStorage, HeadroomPayload)
	m.ensureBuffer("ReservoirBuf", &m.ReservoirBuf, uint32sToBytes(reservoir), wgpu.BufferUsageStorage, HeadroomTables)
	m.ensureBuffer("LockBuf", &m.LockBuf, uint32sToBytes(lock), wgpu.BufferUsageStorage, HeadroomTables)
	m.ensureBuffer("RegionLabelsBuf", &m.RegionLabelsBuf, uint32sToBytes(labels), wgpu.BufferUsageStorage, HeadroomTables)
}

// EnsureReactionBuffers uploads the diffusion tensor, stoichiometry matrix,
// reactant-index table, and rate vector.
func (m *Manager) EnsureReactionBuffers(diffusion []float32, stoich []int32, reactantIdx []int32, rates []float32) {
	m.ensureBuffer("DiffusionBuf", &m.DiffusionBuf, float32sToBytes(diffusion), wgpu.BufferUsageStorage, HeadroomTables)
	m.ensureBuffer("StoichiometryBuf", &m.StoichiometryBuf, int32sToBytes(stoich), wgpu.BufferUsageStorage, HeadroomTables)
	m.ensureBuffer("ReactantIdxBuf", &m.ReactantIdxBuf, int32sToBytes(reactantIdx), wgpu.BufferUsageStorage, HeadroomTables)
	m.ensureBuffer("RatesBuf", &m.RatesBuf, float32sToBytes(rates), wgpu.BufferUsageStorage, HeadroomTables)
}

// EnsureParamsBuffers uploads the two small uniform buffers (lattice
// geometry, reaction counts) that never grow.
func (m *Manager) EnsureParamsBuffers(latticeParams, reactionParams []byte) {
	m.ensureBuffer("LatticeParamsBuf", &m.LatticeParamsBuf, latticeParams, wgpu.BufferUsageUniform, 0)
	m.ensureBuffer("ReactionParamsBuf", &m.ReactionParamsBuf, reactionParams, wgpu.BufferUsageUniform, 0)
}

// WriteUniforms pushes the per-step uniform payload (itime, frame_num,
// slice, slice_axis, rendering_view).
func (m *Manager) WriteUniforms(data []byte) {
	m.ensureBuffer("UniformsBuf", &m.UniformsBuf, data, wgpu.BufferUsageUniform, 0)
}

// EnsureStatisticsBuffer sizes the statistics buffer to numLogged i32 slots.
// Simulation.PrepareForGPU passes the declared species count (void
// included), matching the kernels' indexing of statistics by species id.
func (m *Manager) EnsureStatisticsBuffer(numLogged int) {
	m.ensureBuffer("StatisticsBuf", &m.StatisticsBuf, make([]byte, numLogged*4), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, 0)
}

// CreatePayloadTexture (re)creates the R32F 3D volumetric output texture
// consumed by the external rendering collaborator.
func (m *Manager) CreatePayloadTexture(rx, ry, rz uint32) {
	if m.PayloadTex != nil {
		m.PayloadTex.Release()
	}
	var err error
	m.PayloadTex, err = m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "PayloadTex",
		Size:          wgpu.Extent3D{Width: rx, Height: ry, DepthOrArrayLayers: rz},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension3D,
		Format:        wgpu.TextureFormatR32Float,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		panic(err)
	}
	m.PayloadView, err = m.PayloadTex.CreateView(nil)
	if err != nil {
		panic(err)
	}
}

// CreateBindGroupLayouts builds the five read-only/read-write group
// layouts the kernels bind against: params (uniform, read-only), lattice
// (read-write per-voxel arrays), reaction (read-only tables), statistics
// (read-write counters), texture (write-only payload).
func (m *Manager) CreateBindGroupLayouts() {
	mustLayout := func(label string, entries []wgpu.BindGroupLayoutEntry) *wgpu.BindGroupLayout {
		l, err := m.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: label, Entries: entries})
		if err != nil {
			panic(err)
		}
		return l
	}
	storageEntry := func(binding uint32, readOnly bool) wgpu.BindGroupLayoutEntry {
		bufType := wgpu.BufferBindingTypeStorage
		if readOnly {
			bufType = wgpu.BufferBindingTypeReadOnlyStorage
		}
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: bufType},
		}
	}
	uniformEntry := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}
	}

	m.ParamsLayout = mustLayout("ParamsLayout", []wgpu.BindGroupLayoutEntry{
		uniformEntry(0), uniformEntry(1), uniformEntry(2),
	})
	m.LatticeLayout = mustLayout("LatticeLayout", []wgpu.BindGroupLayoutEntry{
		storageEntry(0, false), storageEntry(1, false),
		storageEntry(2, false), storageEntry(3, false),
		storageEntry(4, false), storageEntry(5, false),
		storageEntry(6, false), storageEntry(7, true),
	})
	m.ReactionLayout = mustLayout("ReactionLayout", []wgpu.BindGroupLayoutEntry{
		storageEntry(0, true), storageEntry(1, true),
		storageEntry(2, true), storageEntry(3, true),
	})
	m.StatisticsLayout = mustLayout("StatisticsLayout", []wgpu.BindGroupLayoutEntry{
		storageEntry(0, false),
	})
	m.TextureLayout = mustLayout("TextureLayout", []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageCompute,
			StorageTexture: wgpu.StorageTextureBindingLayout{
				Access:        wgpu.StorageTextureAccessWriteOnly,
				Format:        wgpu.TextureFormatR32Float,
				ViewDimension: wgpu.TextureViewDimension3D,
			},
		},
	})
}

// CreateBindGroups wires buffers into the layouts created above. frameParity
// selects which of SlotsBuf/OccupancyBuf is bound as binding 0 (input) vs 1
// (output); the kernels take their input/output roles from these bindings
// alone and use the uniforms' frame number only for RNG seeding.
func (m *Manager) CreateBindGroups(frameParity int) {
	in, out := frameParity, 1-frameParity

	bgEntryBuf := func(binding uint32, buf *wgpu.Buffer) wgpu.BindGroupEntry {
		return wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Size: wgpu.WholeSize}
	}
	mustGroup := func(layout *wgpu.BindGroupLayout, entries []wgpu.BindGroupEntry) *wgpu.BindGroup {
		g, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{Layout: layout, Entries: entries})
		if err != nil {
			panic(err)
		}
		return g
	}

	m.ParamsGroup = mustGroup(m.ParamsLayout, []wgpu.BindGroupEntry{
		bgEntryBuf(0, m.LatticeParamsBuf),
		bgEntryBuf(1, m.ReactionParamsBuf),
		bgEntryBuf(2, m.UniformsBuf),
	})
	m.LatticeGroup = mustGroup(m.LatticeLayout, []wgpu.BindGroupEntry{
		bgEntryBuf(0, m.SlotsBuf[in]),
		bgEntryBuf(1, m.SlotsBuf[out]),
		bgEntryBuf(2, m.OccupancyBuf[in]),
		bgEntryBuf(3, m.OccupancyBuf[out]),
		bgEntryBuf(4, m.ConcentrationBuf),
		bgEntryBuf(5, m.ReservoirBuf),
		bgEntryBuf(6, m.LockBuf),
		bgEntryBuf(7, m.RegionLabelsBuf),
	})
	m.ReactionGroup = mustGroup(m.ReactionLayout, []wgpu.BindGroupEntry{
		bgEntryBuf(0, m.DiffusionBuf),
		bgEntryBuf(1, m.StoichiometryBuf),
		bgEntryBuf(2, m.ReactantIdxBuf),
		bgEntryBuf(3, m.RatesBuf),
	})
	m.StatisticsGroup = mustGroup(m.StatisticsLayout, []wgpu.BindGroupEntry{
		bgEntryBuf(0, m.StatisticsBuf),
	})
	m.TextureGroup = mustGroup(m.TextureLayout, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: m.PayloadView},
	})
}

// createPipeline compiles a compute pipeline for one kernel entry point.
func (m *Manager) createPipeline(label, wgsl, entryPoint string, layouts []*wgpu.BindGroupLayout) *wgpu.ComputePipeline {
	module, err := m.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "Module",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: wgsl},
	})
	if err != nil {
		panic(err)
	}
	pipelineLayout, err := m.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + "Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		panic(err)
	}
	pipeline, err := m.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		panic(err)
	}
	return pipeline
}

// CreateRDMEPipeline compiles the particle-hopping kernel.
func (m *Manager) CreateRDMEPipeline(wgsl string) {
	m.RDMEPipeline = m.createPipeline("RDME", wgsl, "rdme",
		[]*wgpu.BindGroupLayout{m.ParamsLayout, m.LatticeLayout, m.ReactionLayout, m.StatisticsLayout})
}

// CreateCMEPipeline compiles the local-reaction kernel.
func (m *Manager) CreateCMEPipeline(wgsl string) {
	m.CMEPipeline = m.createPipeline("CME", wgsl, "cme",
		[]*wgpu.BindGroupLayout{m.ParamsLayout, m.LatticeLayout, m.ReactionLayout, m.StatisticsLayout})
}

// CreateFinalTexturePipeline compiles the texture-payload kernel.
func (m *Manager) CreateFinalTexturePipeline(wgsl string) {
	m.FinalTexturePipeline = m.createPipeline("FinalTexture", wgsl, "final_texture",
		[]*wgpu.BindGroupLayout{m.ParamsLayout, m.LatticeLayout, m.TextureLayout})
}

// DispatchRDME issues the RDME kernel over one invocation per voxel.
func (m *Manager) DispatchRDME(encoder *wgpu.CommandEncoder, rx, ry, rz uint32) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(m.RDMEPipeline)
	pass.SetBindGroup(0, m.ParamsGroup, nil)
	pass.SetBindGroup(1, m.LatticeGroup, nil)
	pass.SetBindGroup(2, m.ReactionGroup, nil)
	pass.SetBindGroup(3, m.StatisticsGroup, nil)
	pass.DispatchWorkgroups(divCeil(rx, RDMEWorkgroupX), divCeil(ry, RDMEWorkgroupY), divCeil(rz, RDMEWorkgroupZ))
	pass.End()
}

// DispatchCME issues the CME kernel over one invocation per voxel.
func (m *Manager) DispatchCME(encoder *wgpu.CommandEncoder, rx, ry, rz uint32) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(m.CMEPipeline)
	pass.SetBindGroup(0, m.ParamsGroup, nil)
	pass.SetBindGroup(1, m.LatticeGroup, nil)
	pass.SetBindGroup(2, m.ReactionGroup, nil)
	pass.SetBindGroup(3, m.StatisticsGroup, nil)
	pass.DispatchWorkgroups(divCeil(rx, CMEWorkgroupX), divCeil(ry, CMEWorkgroupY), divCeil(rz, CMEWorkgroupZ))
	pass.End()
}

// DispatchFinalTexture issues the texture-payload kernel.
func (m *Manager) DispatchFinalTexture(encoder *wgpu.CommandEncoder, rx, ry, rz uint32) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(m.FinalTexturePipeline)
	pass.SetBindGroup(0, m.ParamsGroup, nil)
	pass.SetBindGroup(1, m.LatticeGroup, nil)
	pass.SetBindGroup(2, m.TextureGroup, nil)
	pass.DispatchWorkgroups(divCeil(rx, RDMEWorkgroupX), divCeil(ry, RDMEWorkgroupY), divCeil(rz, RDMEWorkgroupZ))
	pass.End()
}

// SetupPipelines performs the one-time device setup a Manager needs before
// its first Dispatch*: the payload texture, all five bind group layouts,
// the bind groups wired against frameParity (fixed for this build — see
// Simulation.Step, which never swaps its front index), and the three
// compute pipelines compiled from the given WGSL sources. Must run after
// the Ensure*Buffers calls that create the buffers these bind groups
// reference.
func (m *Manager) SetupPipelines(rx, ry, rz uint32, frameParity int, rdmeWGSL, cmeWGSL, finalTextureWGSL string) {
	m.CreatePayloadTexture(rx, ry, rz)
	m.CreateBindGroupLayouts()
	m.CreateBindGroups(frameParity)
	m.CreateRDMEPipeline(rdmeWGSL)
	m.CreateCMEPipeline(cmeWGSL)
	m.CreateFinalTexturePipeline(finalTextureWGSL)
}

// CopyLatticeState copies the kernel output parity back into the input
// parity, the host-side barrier that restores I6 between steps.
func (m *Manager) CopyLatticeState(encoder *wgpu.CommandEncoder, frameParity int, latticeBytes, occBytes uint64) {
	in, out := frameParity, 1-frameParity
	encoder.CopyBufferToBuffer(m.SlotsBuf[out], 0, m.SlotsBuf[in], 0, latticeBytes)
	encoder.CopyBufferToBuffer(m.OccupancyBuf[out], 0, m.OccupancyBuf[in], 0, occBytes)
}

func divCeil(n, d uint32) uint32 { return (n + d - 1) / d }

func uint32sToBytes(xs []uint32) []byte {
	buf := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func int32sToBytes(xs []int32) []byte {
	buf := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func float32sToBytes(xs []float32) []byte {
	buf := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
