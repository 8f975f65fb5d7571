package program

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// managerImpl is the implementation of the Manager interface.
type managerImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	linker   Linker
	active   Stages
	program  Program
	programs map[uint32]Program
}

// Manager caches linked programs by the shaders bound to each stage. The
// active program is resolved lazily: changing a stage only forgets the
// active program, and the next ActiveProgram call looks it up or links it.
// Cached programs live until Release.
type Manager interface {
	// ActiveProgram returns the program for the bound shaders, linking it on
	// first use, and activates it.
	//
	// Returns:
	//   - Program: the active program, or nil when no shader is bound
	//   - error: error if linking fails; nothing is cached in that case
	ActiveProgram() (Program, error)

	// SetActive binds a shader to a stage. The active program is cleared only
	// when the stage's shader actually changes.
	//
	// Parameters:
	//   - stage: the stage to bind
	//   - s: the shader, or nil to unbind
	SetActive(stage Stage, s Shader)

	// SetActiveVertex binds the vertex shader.
	SetActiveVertex(s Shader)

	// SetActiveFragment binds the fragment shader.
	SetActiveFragment(s Shader)

	// SetActiveGeometry binds the geometry shader.
	SetActiveGeometry(s Shader)

	// SetActiveHull binds the hull (tessellation control) shader.
	SetActiveHull(s Shader)

	// SetActiveDomain binds the domain (tessellation evaluation) shader.
	SetActiveDomain(s Shader)

	// SetActiveCompute binds the compute shader.
	SetActiveCompute(s Shader)

	// ActiveShader returns the shader bound to a stage.
	ActiveShader(stage Stage) Shader

	// NumPrograms returns the number of cached programs.
	NumPrograms() int

	// Release releases every cached program and empties the cache.
	Release()
}

var _ Manager = &managerImpl{}

// NewManager creates a Manager that links programs with linker.
//
// Parameters:
//   - linker: links shaders into programs on cache misses
//   - options: functional options to configure the manager
//
// Returns:
//   - Manager: the manager
func NewManager(linker Linker, options ...ManagerBuilderOption) Manager {
	if linker == nil {
		panic("program: NewManager: linker must not be nil")
	}
	m := &managerImpl{
		mu:       &sync.Mutex{},
		logger:   zap.NewNop(),
		linker:   linker,
		programs: make(map[uint32]Program),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *managerImpl) ActiveProgram() (Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.program != nil {
		return m.program, nil
	}

	key := Key(m.active)
	if key == 0 {
		return nil, nil
	}

	p, ok := m.programs[key]
	if !ok {
		linked, err := m.linker.Link(key, m.active)
		if err != nil {
			return nil, fmt.Errorf("program: link %08x: %w", key, err)
		}
		m.programs[key] = linked
		m.logger.Debug("program linked", zap.Uint32("key", key), zap.Int("cached", len(m.programs)))
		p = linked
	}

	m.program = p
	p.Activate()
	return p, nil
}

func (m *managerImpl) SetActive(stage Stage, s Shader) {
	if stage < 0 || stage >= NumStages {
		panic(fmt.Sprintf("program: SetActive: invalid stage %d", stage))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[stage] != s {
		m.active[stage] = s
		m.program = nil
	}
}

func (m *managerImpl) SetActiveVertex(s Shader) {
	m.SetActive(StageVertex, s)
}

func (m *managerImpl) SetActiveFragment(s Shader) {
	m.SetActive(StageFragment, s)
}

func (m *managerImpl) SetActiveGeometry(s Shader) {
	m.SetActive(StageGeometry, s)
}

func (m *managerImpl) SetActiveHull(s Shader) {
	m.SetActive(StageHull, s)
}

func (m *managerImpl) SetActiveDomain(s Shader) {
	m.SetActive(StageDomain, s)
}

func (m *managerImpl) SetActiveCompute(s Shader) {
	m.SetActive(StageCompute, s)
}

func (m *managerImpl) ActiveShader(stage Stage) Shader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[stage]
}

func (m *managerImpl) NumPrograms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.programs)
}

func (m *managerImpl) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, p := range m.programs {
		p.Release()
		delete(m.programs, key)
	}
	m.program = nil
}
