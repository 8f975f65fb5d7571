package wgpubackend

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/cogentcore/webgpu/wgpu"
)

var nextShaderID atomic.Uint32

// Shader is a compiled WGSL shader module. One module may hold the entry
// points of several stages.
type Shader struct {
	module *wgpu.ShaderModule
	id     uint32
	name   string
}

var _ program.Shader = &Shader{}

// CompileShader creates a shader module from WGSL source on d's device.
//
// Parameters:
//   - d: the device the module is created on
//   - name: debug label
//   - source: WGSL source
//
// Returns:
//   - *Shader: the module
//   - error: the device's validation error
func CompileShader(d *BufferDevice, name, source string) (*Shader, error) {
	module, err := d.Device().CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpubackend: compile %q: %w", name, err)
	}
	return &Shader{module: module, id: nextShaderID.Add(1), name: name}, nil
}

// ID returns a process-unique id for the module.
func (s *Shader) ID() uint32 {
	return s.id
}

// Name returns the debug label.
func (s *Shader) Name() string {
	return s.name
}

// Module returns the underlying shader module, for pipeline creation.
func (s *Shader) Module() *wgpu.ShaderModule {
	return s.module
}

// Release frees the module.
func (s *Shader) Release() {
	if s.module != nil {
		s.module.Release()
		s.module = nil
	}
}
