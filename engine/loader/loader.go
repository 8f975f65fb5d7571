// Package loader imports shadow casters from glTF 2.0 scenes. Each node that
// references a mesh becomes one caster whose bounds enclose the node's mesh
// primitives in world space.
package loader

import (
	"fmt"
	"io"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu     *sync.RWMutex
	logger *zap.Logger

	renderQueue     uint8
	visibilityFlags uint32

	casterCache map[string][]scene.Caster
}

// Loader imports and caches the shadow casters of glTF and GLB files.
type Loader interface {
	// Load imports the casters of a .gltf or .glb file and caches them by
	// path. A cached path is returned without reading the file again.
	//
	// Parameters:
	//   - path: the file path
	//
	// Returns:
	//   - []scene.Caster: one caster per mesh node
	//   - error: a read, parse or accessor error
	Load(path string) ([]scene.Caster, error)

	// LoadReader imports casters from r and caches them under name.
	//
	// Parameters:
	//   - name: the cache key
	//   - r: the glTF JSON or GLB data
	//   - isGLB: true if r holds GLB data
	//
	// Returns:
	//   - []scene.Caster: one caster per mesh node
	//   - error: a read, parse or accessor error
	LoadReader(name string, r io.Reader, isGLB bool) ([]scene.Caster, error)

	// Get returns the cached casters of name, or nil.
	Get(name string) []scene.Caster
}

var _ Loader = &loader{}

// NewLoader creates a Loader.
//
// Parameters:
//   - options: functional options to configure the loader
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:              &sync.RWMutex{},
		logger:          zap.NewNop(),
		visibilityFlags: light.DefaultVisibilityFlags,
		casterCache:     make(map[string][]scene.Caster),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) ([]scene.Caster, error) {
	if c := l.Get(path); c != nil {
		return c, nil
	}
	p := &gltfParser{}
	if err := p.parseFile(path); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return l.extract(path, p)
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) ([]scene.Caster, error) {
	if c := l.Get(name); c != nil {
		return c, nil
	}
	p := &gltfParser{}
	if err := p.parseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	return l.extract(name, p)
}

func (l *loader) Get(name string) []scene.Caster {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.casterCache[name]
}

// extract walks the scene graph of p and caches the casters under name.
func (l *loader) extract(name string, p *gltfParser) ([]scene.Caster, error) {
	doc := p.document
	roots, err := sceneRoots(doc)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}

	casters := make([]scene.Caster, 0, len(doc.Nodes))
	visited := make([]bool, len(doc.Nodes))
	var walk func(idx int, parent mgl32.Mat4) error
	walk = func(idx int, parent mgl32.Mat4) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", idx)
		}
		if visited[idx] {
			return fmt.Errorf("node %d is reached twice", idx)
		}
		visited[idx] = true

		node := &doc.Nodes[idx]
		world := parent.Mul4(nodeMatrix(node))
		if node.Mesh != nil {
			c, ok, err := l.nodeCaster(p, node, world)
			if err != nil {
				return fmt.Errorf("node %d (%s): %w", idx, node.Name, err)
			}
			if ok {
				casters = append(casters, c)
			}
		}
		for _, child := range node.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root, mgl32.Ident4()); err != nil {
			return nil, fmt.Errorf("loader: %s: %w", name, err)
		}
	}

	l.mu.Lock()
	l.casterCache[name] = casters
	l.mu.Unlock()
	l.logger.Debug("casters loaded", zap.String("name", name), zap.Int("casters", len(casters)))
	return casters, nil
}

// nodeCaster merges the position bounds of every primitive of the node's
// mesh. Nodes opting out through extras report false.
func (l *loader) nodeCaster(p *gltfParser, node *gltfNode, world mgl32.Mat4) (scene.Caster, bool, error) {
	rq := l.renderQueue
	if node.Extras != nil {
		if node.Extras.CastShadows != nil && !*node.Extras.CastShadows {
			return scene.Caster{}, false, nil
		}
		if node.Extras.RenderQueue != nil {
			rq = *node.Extras.RenderQueue
		}
	}

	doc := p.document
	if *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
		return scene.Caster{}, false, fmt.Errorf("mesh index %d out of range", *node.Mesh)
	}
	local := common.NullAabb()
	for _, prim := range doc.Meshes[*node.Mesh].Primitives {
		acc, ok := prim.Attributes[gltfAttributePosition]
		if !ok {
			continue
		}
		lo, hi, err := p.positionBounds(acc)
		if err != nil {
			return scene.Caster{}, false, err
		}
		local = local.MergePoint(mgl32.Vec3(lo)).MergePoint(mgl32.Vec3(hi))
	}
	if local.IsNull() {
		return scene.Caster{}, false, nil
	}
	return scene.Caster{
		Bounds:          local.Transform(world),
		RenderQueue:     rq,
		VisibilityFlags: l.visibilityFlags,
	}, true, nil
}

// sceneRoots returns the root nodes of the default scene. Documents without
// scenes use every node that is nobody's child.
func sceneRoots(doc *gltfDocument) ([]int, error) {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil {
			s = *doc.Scene
		}
		if s < 0 || s >= len(doc.Scenes) {
			return nil, fmt.Errorf("scene index %d out of range", s)
		}
		return doc.Scenes[s].Nodes, nil
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

// nodeMatrix returns the node's local transform: its matrix, or T * R * S.
func nodeMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if n.Translation != nil {
		t := n.Translation
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if n.Rotation != nil {
		r := n.Rotation
		m = m.Mul4(mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize().Mat4())
	}
	if n.Scale != nil {
		s := n.Scale
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}
