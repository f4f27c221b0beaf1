package gpu

import "github.com/cogentcore/webgpu/wgpu"

// OpenHeadlessDevice requests an adapter/device with no compatible surface,
// the compute-only counterpart of the windowed instance/adapter/device
// sequence the teacher engine uses to back a swapchain (see
// gpu_operations.go's createGpuState). There is no window in this build, so
// CompatibleSurface is left nil: the simulator only ever dispatches compute
// passes and reads buffers/textures back, it never presents.
func OpenHeadlessDevice() (*wgpu.Device, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, err
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "rdmesim compute device",
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}
