package program

import "sync/atomic"

// HeadlessProgram is a Program without a backend object. It counts
// activations and records the uniforms bound to it.
type HeadlessProgram struct {
	key         uint32
	shaders     Stages
	activations atomic.Int64
	uniforms    map[string]any
}

var (
	_ Program       = &HeadlessProgram{}
	_ UniformBinder = &HeadlessProgram{}
)

// Key returns the cache key the program was linked under.
func (p *HeadlessProgram) Key() uint32 {
	return p.key
}

// Shaders returns the linked shaders.
func (p *HeadlessProgram) Shaders() Stages {
	return p.shaders
}

// Activate counts an activation.
func (p *HeadlessProgram) Activate() {
	p.activations.Add(1)
}

// Activations returns the number of Activate calls.
func (p *HeadlessProgram) Activations() int64 {
	return p.activations.Load()
}

// Release drops the recorded uniforms.
func (p *HeadlessProgram) Release() {
	p.uniforms = nil
}

// BindUniform records the value. Only float32, int32 and uint32 scalars and
// slices of them are accepted; anything else panics like a type-checked
// backend would.
func (p *HeadlessProgram) BindUniform(name string, value any) {
	switch value.(type) {
	case float32, int32, uint32, []float32, []int32, []uint32:
	default:
		panic("unsupported uniform type")
	}
	if p.uniforms == nil {
		p.uniforms = make(map[string]any)
	}
	p.uniforms[name] = value
}

// Uniform returns a recorded uniform value.
func (p *HeadlessProgram) Uniform(name string) (any, bool) {
	v, ok := p.uniforms[name]
	return v, ok
}

// HeadlessLinker links HeadlessPrograms. Used by the memory backend.
var HeadlessLinker = LinkerFunc(func(key uint32, shaders Stages) (Program, error) {
	return &HeadlessProgram{key: key, shaders: shaders}, nil
})

// HeadlessShader is a Shader that is only an id.
type HeadlessShader struct {
	ShaderID   uint32
	ShaderName string
}

// ID returns the shader id.
func (s *HeadlessShader) ID() uint32 {
	return s.ShaderID
}

// Name returns the shader name.
func (s *HeadlessShader) Name() string {
	return s.ShaderName
}
