package rdmesim

// Scheduler drives Simulation.Step in a loop and, when a GPU device is
// attached, mirrors every CPU-reference step onto the device so the
// external volumetric-texture consumer has something to read. The CPU
// reference engine in step.go remains the single source of truth for
// concentration and statistics; the GPU path exists to exercise the kernel
// dispatch contracts and produce the render texture (see DESIGN.md).
type Scheduler struct {
	sim *Simulation
}

// NewScheduler binds a Scheduler to sim with a write_freq cadence for
// statistics export.
func NewScheduler(sim *Simulation, writeFreq uint32) *Scheduler {
	sim.writeFreq = writeFreq
	return &Scheduler{sim: sim}
}

// Run advances the simulation n steps, re-uploading lattice state to the
// device and dispatching the final-texture pass after each step if a GPU
// manager is attached.
func (sch *Scheduler) Run(n int) error {
	for i := 0; i < n; i++ {
		sch.sim.Step()
		if sch.sim.gpu != nil {
			if err := sch.mirrorToGPU(); err != nil {
				return err
			}
		}
	}
	return nil
}

// mirrorToGPU re-uploads the authoritative CPU lattice state, writes the
// current uniforms, and dispatches the texture-payload kernel in one
// command-buffer submission — the GPU side never runs the RDME/CME kernels
// itself in this build, since Step already computed the next state on the
// host; only rendering output is produced device-side.
func (sch *Scheduler) mirrorToGPU() error {
	m := sch.sim.gpu
	res := sch.sim.Params.Resolution
	rx, ry, rz := uint32(res[0]), uint32(res[1]), uint32(res[2])

	sch.sim.Profile.BeginScope("gpu_mirror")
	defer sch.sim.Profile.EndScope("gpu_mirror")

	front := sch.sim.lattices[sch.sim.front]
	m.EnsureLatticeBuffers(front.Slots(), front.Slots(), front.Occupancy(), front.Occupancy(),
		front.Concentration(), front.Reservoir(), front.Lock(), sch.sim.Regions.Labels())
	m.WriteUniforms(sch.sim.uniforms.Bytes())

	encoder, err := m.Device.CreateCommandEncoder(nil)
	if err != nil {
		return newErr(IoError, "creating command encoder: %v", err)
	}
	m.DispatchFinalTexture(encoder, rx, ry, rz)
	cmdBuf, err := encoder.Finish(nil)
	if err != nil {
		return newErr(IoError, "finishing command buffer: %v", err)
	}
	m.Device.GetQueue().Submit(cmdBuf)
	return nil
}

// Flush drains every queued statistics sample and exports it to a CSV file
// at path via the StatisticsGroup's gocsv-backed exporter.
func (sch *Scheduler) Flush(path string) error {
	samples := sch.sim.Stats.Drain()
	return sch.sim.Stats.ExportCSV(path, samples)
}
