package program

// Stage identifies a programmable pipeline stage. The declaration order is
// the order shader IDs are folded into program keys.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageGeometry
	StageDomain
	StageHull
	StageCompute

	// NumStages is the number of stages.
	NumStages
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageGeometry:
		return "geometry"
	case StageDomain:
		return "domain"
	case StageHull:
		return "hull"
	case StageCompute:
		return "compute"
	}
	return "unknown"
}

// Shader is a compiled shader object for one stage.
type Shader interface {
	// ID returns the backend object id. IDs are unique among live shaders.
	ID() uint32

	// Name returns the shader's debug name.
	Name() string
}

// Stages holds the shader bound to each stage, nil for unused stages.
type Stages [NumStages]Shader

// Program is a linked set of shaders.
type Program interface {
	// Key returns the cache key the program was linked under.
	Key() uint32

	// Activate makes the program current for subsequent draws.
	Activate()

	// Release frees the backend program object.
	Release()
}

// Linker links the shaders of every stage into a Program.
type Linker interface {
	Link(key uint32, shaders Stages) (Program, error)
}

// LinkerFunc adapts a function to the Linker interface.
type LinkerFunc func(key uint32, shaders Stages) (Program, error)

// Link calls f.
func (f LinkerFunc) Link(key uint32, shaders Stages) (Program, error) {
	return f(key, shaders)
}
