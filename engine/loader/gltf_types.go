package loader

// gltfDocument is the subset of a glTF 2.0 document needed to place shadow
// casters: the node hierarchy, mesh primitives and position accessors.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html
type gltfDocument struct {
	// Asset contains metadata about the glTF asset.
	Asset gltfAsset `json:"asset"`

	// Scene is the index of the default scene.
	Scene *int `json:"scene,omitempty"`

	// Scenes is an array of scenes.
	Scenes []gltfScene `json:"scenes,omitempty"`

	// Nodes is an array of nodes (transform hierarchy).
	Nodes []gltfNode `json:"nodes,omitempty"`

	// Meshes is an array of meshes.
	Meshes []gltfMesh `json:"meshes,omitempty"`

	// Accessors is an array of accessors.
	Accessors []gltfAccessor `json:"accessors,omitempty"`

	// BufferViews is an array of buffer views.
	BufferViews []gltfBufferView `json:"bufferViews,omitempty"`

	// Buffers is an array of buffers.
	Buffers []gltfBuffer `json:"buffers,omitempty"`
}

// gltfAsset contains metadata about the glTF asset.
type gltfAsset struct {
	// Version is the glTF version (required, must be "2.0").
	Version string `json:"version"`

	// Generator is the tool that generated this asset.
	Generator string `json:"generator,omitempty"`
}

// gltfScene lists the root nodes of a scene.
type gltfScene struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"`
}

// gltfNode is a node in the node hierarchy. Matrix, when present, replaces
// the TRS properties.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-node
type gltfNode struct {
	Name     string `json:"name,omitempty"`
	Children []int  `json:"children,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`

	// Matrix is a 4x4 transformation matrix (column-major).
	Matrix *[16]float32 `json:"matrix,omitempty"`

	// Translation is the node's translation (x, y, z).
	Translation *[3]float32 `json:"translation,omitempty"`

	// Rotation is the node's rotation as a quaternion (x, y, z, w).
	Rotation *[4]float32 `json:"rotation,omitempty"`

	// Scale is the node's scale (x, y, z).
	Scale *[3]float32 `json:"scale,omitempty"`

	// Extras carries application data. A "render_queue" number overrides
	// the loader's default queue for the node's caster.
	Extras *gltfNodeExtras `json:"extras,omitempty"`
}

// gltfNodeExtras is the application data lumen reads from node extras.
type gltfNodeExtras struct {
	RenderQueue *uint8 `json:"render_queue,omitempty"`
	CastShadows *bool  `json:"cast_shadows,omitempty"`
}

// gltfMesh is a set of primitives.
type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
}

// gltfPrimitive is one piece of mesh geometry.
type gltfPrimitive struct {
	// Attributes maps attribute semantics to accessor indices.
	Attributes map[string]int `json:"attributes"`
}

// gltfAccessor describes typed data in a buffer view.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-accessor
type gltfAccessor struct {
	BufferView    *int   `json:"bufferView,omitempty"`
	ByteOffset    int    `json:"byteOffset,omitempty"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`

	// Min and Max bound the accessor values. Required on POSITION.
	Min []float32 `json:"min,omitempty"`
	Max []float32 `json:"max,omitempty"`
}

// gltfBufferView is a slice of a buffer.
type gltfBufferView struct {
	Buffer     int  `json:"buffer"`
	ByteOffset int  `json:"byteOffset,omitempty"`
	ByteLength int  `json:"byteLength"`
	ByteStride *int `json:"byteStride,omitempty"`
}

// gltfBuffer points to binary data.
type gltfBuffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`

	// Data holds the loaded bytes. Not part of the JSON.
	Data []byte `json:"-"`
}

const (
	gltfAttributePosition  = "POSITION"
	gltfAccessorTypeVec3   = "VEC3"
	gltfComponentTypeFloat = 5126
)

// gltfGLBHeader is the header of a GLB file (12 bytes).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
type gltfGLBHeader struct {
	Magic   uint32 // Must be 0x46546C67 ("glTF" in ASCII)
	Version uint32 // Must be 2
	Length  uint32 // Total file length
}

// gltfGLBChunkHeader is the header of a GLB chunk (8 bytes).
type gltfGLBChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32 // 0x4E4F534A for JSON, 0x004E4942 for BIN
}

// GLB magic number and chunk type constants
const (
	gltfGLBMagic     = 0x46546C67 // "glTF" in little-endian ASCII
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON" in little-endian ASCII
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0" in little-endian ASCII
)
