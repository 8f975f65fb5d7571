package glbackend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"
)

var (
	// ErrCompileFailed is returned when a shader does not compile.
	ErrCompileFailed = errors.New("glbackend: shader compilation failed")

	// ErrLinkFailed is returned when a program does not link.
	ErrLinkFailed = errors.New("glbackend: program link failed")
)

var shaderTypes = [program.NumStages]uint32{
	program.StageVertex:   gl.VERTEX_SHADER,
	program.StageFragment: gl.FRAGMENT_SHADER,
	program.StageGeometry: gl.GEOMETRY_SHADER,
	program.StageDomain:   gl.TESS_EVALUATION_SHADER,
	program.StageHull:     gl.TESS_CONTROL_SHADER,
	program.StageCompute:  gl.COMPUTE_SHADER,
}

// Shader is a compiled GL shader object.
type Shader struct {
	handle uint32
	name   string
	stage  program.Stage
}

var _ program.Shader = &Shader{}

// CompileShader compiles GLSL source for one stage.
//
// Parameters:
//   - stage: the pipeline stage
//   - name: debug name
//   - source: GLSL source
//
// Returns:
//   - *Shader: the compiled shader
//   - error: ErrCompileFailed with the info log
func CompileShader(stage program.Stage, name, source string) (*Shader, error) {
	if stage < 0 || stage >= program.NumStages {
		return nil, fmt.Errorf("glbackend: compile %q: invalid stage %d", name, stage)
	}
	handle := gl.CreateShader(shaderTypes[stage])
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(handle, 1, csources, nil)
	free()
	gl.CompileShader(handle)

	var status int32
	gl.GetShaderiv(handle, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(handle, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(handle, n, nil, gl.Str(log))
		gl.DeleteShader(handle)
		return nil, fmt.Errorf("%w: %s %q: %s", ErrCompileFailed, stage, name, strings.TrimRight(log, "\x00"))
	}
	return &Shader{handle: handle, name: name, stage: stage}, nil
}

// ID returns the GL shader object.
func (s *Shader) ID() uint32 {
	return s.handle
}

// Name returns the debug name.
func (s *Shader) Name() string {
	return s.name
}

// Stage returns the stage the shader was compiled for.
func (s *Shader) Stage() program.Stage {
	return s.stage
}

// Release deletes the shader object. Programs already linked keep working.
func (s *Shader) Release() {
	if s.handle != 0 {
		gl.DeleteShader(s.handle)
		s.handle = 0
	}
}

// Linker links GL programs for a program.Manager.
type Linker struct {
	logger *zap.Logger
}

var _ program.Linker = &Linker{}

// NewLinker creates a Linker.
//
// Parameters:
//   - logger: receives link failures; nil discards them
//
// Returns:
//   - *Linker: the linker
func NewLinker(logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{logger: logger}
}

// Link attaches every bound shader, links, and detaches them again. A failed
// link is logged with the program info log and returns ErrLinkFailed.
func (l *Linker) Link(key uint32, shaders program.Stages) (program.Program, error) {
	handle := gl.CreateProgram()
	var names []string
	for _, s := range shaders {
		if s == nil {
			continue
		}
		gl.AttachShader(handle, s.ID())
		names = append(names, s.Name())
	}
	gl.LinkProgram(handle)
	for _, s := range shaders {
		if s != nil {
			gl.DetachShader(handle, s.ID())
		}
	}

	var status int32
	gl.GetProgramiv(handle, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(handle, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(handle, n, nil, gl.Str(log))
		gl.DeleteProgram(handle)

		err := fmt.Errorf("%w: %s", ErrLinkFailed, strings.TrimRight(log, "\x00"))
		l.logger.Error("program link failed",
			zap.Uint32("key", key),
			zap.Strings("shaders", names),
			zap.Error(err))
		return nil, err
	}

	return &Program{
		mu:        &sync.Mutex{},
		handle:    handle,
		key:       key,
		logger:    l.logger,
		locations: make(map[string]int32),
	}, nil
}

// Program is a linked GL program object.
type Program struct {
	mu        *sync.Mutex
	handle    uint32
	key       uint32
	logger    *zap.Logger
	locations map[string]int32
}

var (
	_ program.Program       = &Program{}
	_ program.UniformBinder = &Program{}
)

// Key returns the cache key the program was linked under.
func (p *Program) Key() uint32 {
	return p.key
}

// Handle returns the GL program object.
func (p *Program) Handle() uint32 {
	return p.handle
}

// Activate makes the program current.
func (p *Program) Activate() {
	gl.UseProgram(p.handle)
}

// Release deletes the program object.
func (p *Program) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != 0 {
		gl.DeleteProgram(p.handle)
		p.handle = 0
	}
	clear(p.locations)
}

// BindUniform uploads a scalar or array uniform with glProgramUniform, so
// the program need not be current. Uniforms the linker optimized away are
// skipped. Unsupported value types panic.
func (p *Program) BindUniform(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	loc, ok := p.locations[name]
	if !ok {
		loc = gl.GetUniformLocation(p.handle, gl.Str(name+"\x00"))
		p.locations[name] = loc
		if loc < 0 {
			p.logger.Debug("uniform not active", zap.String("name", name), zap.Uint32("key", p.key))
		}
	}
	if loc < 0 {
		return
	}

	switch v := value.(type) {
	case float32:
		gl.ProgramUniform1f(p.handle, loc, v)
	case int32:
		gl.ProgramUniform1i(p.handle, loc, v)
	case uint32:
		gl.ProgramUniform1ui(p.handle, loc, v)
	case []float32:
		if len(v) > 0 {
			gl.ProgramUniform1fv(p.handle, loc, int32(len(v)), &v[0])
		}
	case []int32:
		if len(v) > 0 {
			gl.ProgramUniform1iv(p.handle, loc, int32(len(v)), &v[0])
		}
	case []uint32:
		if len(v) > 0 {
			gl.ProgramUniform1uiv(p.handle, loc, int32(len(v)), &v[0])
		}
	default:
		panic(fmt.Sprintf("glbackend: uniform %q: unsupported type %T", name, value))
	}
}
