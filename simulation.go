package rdmesim

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/gekko3d/rdmesim/stats"
	"github.com/gekko3d/rdmesim/voxelrt/rt/gpu"
	"github.com/gekko3d/rdmesim/voxelrt/rt/shaders"
)

// Simulation is the top-level builder and owner of every other component:
// the lattice geometry, the two ping-ponged Lattice buffers, the region
// map, the diffusion tensor, the reaction network, the optional GPU
// manager, the statistics group, and the step profiler. Grounded on
// original_source/src/simulation.rs's Simulation struct and its builder
// methods, which this mirrors one-for-one.
type Simulation struct {
	ID uuid.UUID

	Params  *LatticeParameters
	Regions *RegionMap
	Diff    *DiffusionTensor
	Rxn     *ReactionNetwork
	Stats   *stats.Group
	Profile *Profiler
	Logger  Logger

	lattices [2]*Lattice
	front    int // index into lattices of the current-read buffer

	rng *rand.Rand

	gpu       *gpu.Manager
	uniforms  Uniforms
	writeFreq uint32
	frame     uint32
}

// SimulationConfig collects the construction-time parameters a builder
// cannot derive from defaults.
type SimulationConfig struct {
	Params        *LatticeParameters
	Seed          int64
	WriteFreq     uint32 // 0 disables periodic statistics draining
	LoggedSpecies []string
	Logger        Logger
}

// NewSimulation wires LatticeParameters, a seeded RNG, two ping-ponged
// Lattice instances sharing one RegionMap/DiffusionTensor, an empty
// ReactionNetwork, a StatisticsGroup, and a Profiler. The GPU manager is
// not created here: call AttachGPU once a device is available.
func NewSimulation(cfg SimulationConfig) *Simulation {
	rng := rand.New(rand.NewSource(cfg.Seed))
	diff := newDiffusionTensor()
	regions := NewRegionMap(cfg.Params, diff, rng)
	front := NewLattice(cfg.Params, regions, rng)
	back := NewLattice(cfg.Params, regions, rng)
	rxn := NewReactionNetwork(front)

	logger := cfg.Logger
	if logger == nil {
		logger = NewDefaultLogger("rdmesim", false)
	}

	return &Simulation{
		ID:        uuid.New(),
		Params:    cfg.Params,
		Regions:   regions,
		Diff:      diff,
		Rxn:       rxn,
		Stats:     stats.NewGroup(cfg.LoggedSpecies),
		Profile:   NewProfiler(),
		Logger:    logger,
		lattices:  [2]*Lattice{front, back},
		front:     0,
		rng:       rng,
		writeFreq: cfg.WriteFreq,
	}
}

// Lattice returns the current-read buffer, the one seeding/reaction/region
// builder calls should target.
func (s *Simulation) Lattice() *Lattice { return s.lattices[s.front] }

// DeclareSpecies declares a species against both the front lattice and the
// diffusion tensor in lockstep (the two live in separate structs and must
// never drift apart in species count), then mirrors the declaration into
// the back buffer so both sides of the ping-pong stay congruent.
func (s *Simulation) DeclareSpecies(name string) int {
	id := s.lattices[s.front].DeclareSpecies(name)
	back := s.lattices[1-s.front]
	if back.NumSpecies() <= id {
		back.DeclareSpecies(name)
	}
	if s.Diff.NumSpecies() <= id {
		s.Diff.AddSpecies()
	}
	return id
}

// AddRegion paints a non-composite primitive region. See RegionMap.AddRegion.
func (s *Simulation) AddRegion(name string, desc RegionDescriptor, baseDiffusionRate float32) (int, error) {
	return s.Regions.AddRegion(name, desc, baseDiffusionRate)
}

// AddSparseRegion scatters a sparse basis-sphere region. See
// RegionMap.AddSparseRegion.
func (s *Simulation) AddSparseRegion(name, parentName string, radius float32, maxVolume int, baseDiffusionRate float32) (int, error) {
	return s.Regions.AddSparseRegion(name, parentName, radius, maxVolume, baseDiffusionRate)
}

// AddCapsid paints the Capsid composite. See RegionMap.AddCapsid.
func (s *Simulation) AddCapsid(name string, desc RegionDescriptor, baseDiffusionRate float32) (membrane, interior int, err error) {
	return s.Regions.AddCapsid(name, desc, baseDiffusionRate)
}

// SetDiffusionRate overrides diffusion[a,b,species] directly, used for
// per-particle diffusion tuning once a region pair and species are known
// (supplements the uniform base-rate painting path — see SPEC_FULL.md §3.4).
func (s *Simulation) SetDiffusionRate(fromRegion, toRegion, species string, rate float32) error {
	a, err := s.Regions.RegionID(fromRegion)
	if err != nil {
		return err
	}
	b, err := s.Regions.RegionID(toRegion)
	if err != nil {
		return err
	}
	sp, err := s.Lattice().SpeciesID(species)
	if err != nil {
		return err
	}
	s.Diff.SetRate(a, b, sp, rate)
	return nil
}

// AddReaction registers a reaction. See ReactionNetwork.AddReaction.
func (s *Simulation) AddReaction(reactants, products []string, rate float32) error {
	return s.Rxn.AddReaction(reactants, products, rate)
}

// SeedCount, SeedConcentration, FillRegion, SeedReservoir, and RandomWalk
// forward to the front Lattice; they must be called before PrepareForGPU
// mirrors the initial state into the back buffer.
func (s *Simulation) SeedCount(region, species string, n int) error {
	return s.Lattice().SeedCount(region, species, n)
}

func (s *Simulation) SeedConcentration(region, species string, c float32) error {
	return s.Lattice().SeedConcentration(region, species, c)
}

func (s *Simulation) FillRegion(region, species string) error {
	return s.Lattice().FillRegion(region, species)
}

func (s *Simulation) SeedReservoir(region, species string) error {
	return s.Lattice().SeedReservoir(region, species)
}

func (s *Simulation) RandomWalk(region, species string, totalLength, blockLength float32, radius int, stepBackwards int) error {
	return s.Lattice().RandomWalk(region, species, totalLength, blockLength, radius, stepBackwards)
}

// PrepareRegions finalizes the region-to-voxel index buffers. Must run
// after all region painting and before any seeding call.
func (s *Simulation) PrepareRegions() {
	s.Regions.PrepareRegions()
}

// PrepareForGPU mirrors the front lattice's freshly-seeded initial state
// into the back buffer so both ping-pong halves start congruent (I6 holds
// trivially before the first step), and, if a GPU manager is attached,
// uploads every buffer the kernels read.
func (s *Simulation) PrepareForGPU() {
	s.lattices[1-s.front].CopyFrom(s.lattices[s.front])
	if s.gpu == nil {
		return
	}
	front, back := s.lattices[s.front], s.lattices[1-s.front]
	s.gpu.EnsureLatticeBuffers(front.Slots(), back.Slots(), front.Occupancy(), back.Occupancy(),
		front.Concentration(), front.Reservoir(), front.Lock(), s.Regions.Labels())
	s.gpu.EnsureReactionBuffers(s.Diff.Flatten(), s.Rxn.FlattenStoichiometry(), s.Rxn.FlattenReactantIndex(), s.Rxn.FlattenRates())
	s.gpu.EnsureParamsBuffers(
		latticeParamsBytes(s.Params, uint32(SiteCapacity), uint32(s.Regions.NumRegions()), uint32(front.NumSpecies())),
		reactionParamsBytes(uint32(front.NumSpecies()), uint32(s.Rxn.NumReactions())),
	)
	s.gpu.EnsureStatisticsBuffer(len(s.lattices[s.front].speciesNames))
	// CreateBindGroups below binds the uniforms buffer by reference, so it
	// must already exist; WriteUniforms lazily creates/fills it.
	s.gpu.WriteUniforms(s.uniforms.Bytes())

	res := s.Params.Resolution
	s.gpu.SetupPipelines(uint32(res[0]), uint32(res[1]), uint32(res[2]), s.front,
		shaders.RDMEWGSL, shaders.CMEWGSL, shaders.FinalTextureWGSL)
}

// AttachGPU binds a device-backed Manager for accelerated dispatch and
// final-texture rendering. Optional: Step runs the CPU reference engine
// regardless, since that is the authoritative model the statistics and
// invariant checks are defined against (see DESIGN.md).
func (s *Simulation) AttachGPU(m *gpu.Manager) {
	s.gpu = m
}

// Step advances the simulation by one τ: RDME hop attempts read the front
// buffer and write the back buffer, CME reactions apply in place on the
// back buffer, and the host-side copy barrier then restores I6 by mirroring
// back into front — matching the scheduler cadence of SPEC_FULL.md §4.5.
func (s *Simulation) Step() {
	s.Profile.BeginScope("rdme")
	front, back := s.lattices[s.front], s.lattices[1-s.front]
	back.CopyFrom(front)
	stepRDME(front, back, s.Regions, s.Diff, s.rng)
	s.Profile.EndScope("rdme")

	s.Profile.BeginScope("cme")
	stepCME(back, s.Rxn, s.Params.Tau, s.rng, func(species int, delta int32) {
		name := back.speciesNames[species]
		s.Stats.Push(name, delta, s.frame)
	})
	s.Profile.EndScope("cme")

	s.Profile.BeginScope("copy_barrier")
	front.CopyFrom(back)
	s.Profile.EndScope("copy_barrier")

	s.uniforms.Advance()
	s.frame++

	if s.writeFreq > 0 && s.frame%s.writeFreq == 0 {
		s.drainStatistics()
	}
}

// drainStatistics snapshots every declared species' total concentration
// into the statistics FIFO at the write_freq cadence.
func (s *Simulation) drainStatistics() {
	front := s.lattices[s.front]
	for id, name := range front.speciesNames {
		if id == 0 {
			continue // void is never reported
		}
		s.Stats.Push(name, int32(front.TotalConcentration(id)), s.frame)
	}
}

// Frame is the current step counter.
func (s *Simulation) Frame() uint32 { return s.frame }

// Uniforms exposes the current uniform snapshot (read-only view for the
// external texture/rendering consumer).
func (s *Simulation) Uniforms() Uniforms { return s.uniforms }

// CheckI6 reports whether the two ping-pong buffers are byte-identical,
// the invariant the host-side copy barrier restores after every step.
func (s *Simulation) CheckI6() bool {
	return s.lattices[0].Equal(s.lattices[1])
}
