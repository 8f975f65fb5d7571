// Package shadow implements the shadow node: it picks the lights that cast
// shadows this frame, fits a camera to each of their shadow maps and tells
// material passes which shadow maps and lights to use.
package shadow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/Carmen-Shannon/oxy-lumen/internal/bitvec"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// mapCamera is the per-shadow-map camera state.
type mapCamera struct {
	camera camera.Camera
	// setup indexes nodeImpl.setups; maps sharing a setup share the index.
	setup       int
	minDistance float32
	maxDistance float32
	// viewportSize is the size recorded by scene passes, per light type.
	viewportSize       [light.NumLightTypes]common.Vec2
	idxToLocalTexture  int
	idxToContiguousTex int
}

// nodeImpl is the implementation of the Node interface.
type nodeImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	def     *NodeDefinition
	scene   scene.Scene
	buffers buffer.Manager

	cameras []mapCamera
	setups  []CameraSetup

	slots      light.LightList
	affected   bitvec.V
	numActive  int
	castersBox common.Aabb
	sortedIdx  []int
	lightList  light.LightList
	lastCamera camera.Camera
	lastFrame  int64

	localTextures [][]*buffer.Texture
	contiguous    []*buffer.Texture
	targetWidth   int
	targetHeight  int

	passes   []*Pass
	executor PassExecutor
}

// Node is a shadow node built from a NodeDefinition. It owns one camera per
// shadow map and the shadow map textures, and assigns shadow-casting lights
// to its light slots once per camera per frame. Thread-safe for concurrent
// access.
type Node interface {
	// Name returns the definition name.
	Name() string

	// Definition returns the definition the node was built from.
	Definition() *NodeDefinition

	// BuildClosestLightList assigns lights to the shadow-casting slots. Calls
	// repeated with the same camera in the same frame do nothing.
	//
	// Parameters:
	//   - cam: the viewer; its last viewport supplies the visibility mask
	//   - lodCam: the camera used for level of detail
	BuildClosestLightList(cam, lodCam camera.Camera)

	// Update assigns lights, places every shadow camera and runs the
	// registered scene passes with the scene in the render-to-texture stage.
	//
	// Parameters:
	//   - cam: the viewer
	//   - lodCam: the camera used for level of detail
	Update(cam, lodCam camera.Camera)

	// PostInitializePass records the viewport size of a scene pass rendering
	// one of the shadow maps and hands it the shadow camera. Panics with
	// ErrViewportMismatch when another pass recorded a different size for the
	// same map and light type.
	//
	// Parameters:
	//   - pass: the pass; ignored unless it is a scene pass for a valid map
	PostInitializePass(pass *Pass)

	// ValidatePass reports whether PostInitializePass would accept pass.
	//
	// Parameters:
	//   - pass: the pass to check
	//
	// Returns:
	//   - error: ErrViewportMismatch, or nil
	ValidatePass(pass *Pass) error

	// SetShadowMapsToPass builds the light list for one draw of rend with a
	// material pass, shadow-casting lights first, and binds the pass's shadow
	// texture units.
	//
	// Parameters:
	//   - rend: the renderable; its lights are closest first
	//   - pass: the material pass to bind shadow textures on
	//   - params: receives the shadow camera of every bound unit; may be nil
	//   - startLight: lights already handled by previous iterations of the pass
	//
	// Returns:
	//   - light.LightList: the lights for this draw; valid until the next call
	SetShadowMapsToPass(rend *scene.Renderable, pass *MaterialPass, params ProjectorSetter, startLight int) light.LightList

	// IsShadowMapIdxInValidRange reports whether idx names a shadow map.
	IsShadowMapIdxInValidRange(idx int) bool

	// IsShadowMapIdxActive reports whether a light occupies the slot feeding
	// the shadow map. Out of range indices report true.
	IsShadowMapIdxActive(idx int) bool

	// ShadowMapLightTypeMask returns 1 << type of the light feeding the map,
	// or 0 when the map is inactive.
	ShadowMapLightTypeMask(idx int) uint8

	// ViewProjectionMatrix returns the matrix taking world space to the
	// shadow map's UV rectangle.
	ViewProjectionMatrix(idx int) mgl32.Mat4

	// MinMaxDepthRangeFor returns the depth range of the shadow map rendered
	// by cam, or the default range when cam is not one of the node's cameras.
	MinMaxDepthRangeFor(cam camera.Camera) (minDepth, maxDepth float32)

	// MinMaxDepthRange returns the depth range of a shadow map.
	MinMaxDepthRange(idx int) (minDepth, maxDepth float32)

	// PssmSplits returns the split distances of a PSSM shadow map, or nil
	// when the map is not PSSM or not active.
	PssmSplits(idx int) []float32

	// IndexToContiguousShadowMapTex maps a shadow map to its texture in
	// ContiguousShadowMapTextures.
	IndexToContiguousShadowMapTex(idx int) int

	// ShadowMapCamera returns the camera rendering a shadow map.
	ShadowMapCamera(idx int) camera.Camera

	// ContiguousShadowMapTextures returns the distinct shadow map textures in
	// first-use order.
	ContiguousShadowMapTextures() []*buffer.Texture

	// LocalTextures returns the render targets of a named texture.
	LocalTextures(name string) []*buffer.Texture

	// CastersBox returns the bounds of the shadow casters found by the last
	// light assignment.
	CastersBox() common.Aabb

	// NumActiveShadowCastingLights returns how many slots hold a light.
	NumActiveShadowCastingLights() int

	// ShadowCastingLights returns a copy of the slots.
	ShadowCastingLights() light.LightList

	// AffectedLights returns, per global light index, whether the light was
	// assigned to a slot.
	AffectedLights() []bool

	// FinalTargetResized recreates the textures sized from the final target
	// and rebuilds the contiguous texture list.
	//
	// Parameters:
	//   - width: final target width in pixels
	//   - height: final target height in pixels
	FinalTargetResized(width, height int)

	// Release destroys the node's cameras.
	//
	// Returns:
	//   - error: errors from the scene, joined
	Release() error
}

var _ Node = &nodeImpl{}
var _ scene.ShadowNode = &nodeImpl{}

// NewNode builds a shadow node. The definition is validated, the shadow
// cameras are created in sc and the shadow map textures are described.
//
// Parameters:
//   - def: the node definition
//   - sc: the scene supplying lights, casters and cameras
//   - buffers: supplies the null shadow texture for unused units
//   - options: builder options
//
// Returns:
//   - Node: the node
//   - error: a validation error, ErrInvalidMrtIndex or ErrTechniqueNotImplemented
func NewNode(def *NodeDefinition, sc scene.Scene, buffers buffer.Manager, options ...NodeBuilderOption) (Node, error) {
	if def == nil || sc == nil || buffers == nil {
		panic("shadow: NewNode needs a definition, a scene and a buffer manager")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	n := &nodeImpl{
		mu:           &sync.Mutex{},
		logger:       zap.NewNop(),
		def:          def,
		scene:        sc,
		buffers:      buffers,
		lastFrame:    -1,
		castersBox:   common.NullAabb(),
		targetWidth:  light.ShadowMapResolution,
		targetHeight: light.ShadowMapResolution,
		executor:     func(*Pass) {},
	}
	for _, opt := range options {
		opt(n)
	}
	n.createLocalTextures()

	n.cameras = make([]mapCamera, 0, len(def.ShadowMaps))
	for i, sm := range def.ShadowMaps {
		cam := sc.CreateCamera(camera.WithName(fmt.Sprintf("ShadowNode %s Camera %d", def.Name, i)))
		mc := mapCamera{
			camera:            cam,
			minDistance:       light.DefaultMinDepth,
			maxDistance:       light.DefaultMaxDepth,
			idxToLocalTexture: def.TextureIndex(sm.Texture),
		}
		for t := range mc.viewportSize {
			mc.viewportSize[t] = common.UnsetViewportSize
		}
		n.cameras = append(n.cameras, mc)

		textures := n.localTextures[mc.idxToLocalTexture]
		if sm.MrtIndex < 0 || sm.MrtIndex >= len(textures) {
			err := fmt.Errorf("node %q: shadow map %d: texture %q has %d targets, index %d: %w",
				def.Name, i, sm.Texture, len(textures), sm.MrtIndex, ErrInvalidMrtIndex)
			return nil, errors.Join(err, n.releaseCameras())
		}

		if sm.SharesSetupWith != NoSharedSetup {
			n.cameras[i].setup = n.cameras[sm.SharesSetupWith].setup
			continue
		}
		setup, err := newCameraSetup(sm)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("node %q: shadow map %d: %w", def.Name, i, err), n.releaseCameras())
		}
		n.cameras[i].setup = len(n.setups)
		n.setups = append(n.setups, setup)
	}
	n.rebuildContiguousTextures()

	n.slots = make(light.LightList, def.NumLights())
	n.logger.Debug("shadow node created",
		zap.String("node", def.Name),
		zap.Int("shadowMaps", len(n.cameras)),
		zap.Int("lightSlots", len(n.slots)),
		zap.Int("setups", len(n.setups)),
		zap.Int("textures", len(n.contiguous)))
	return n, nil
}

func newCameraSetup(sm ShadowMapDefinition) (CameraSetup, error) {
	switch sm.Technique {
	case TechniqueUniform:
		return NewUniformSetup(), nil
	case TechniqueFocused:
		return NewFocusedSetup(), nil
	case TechniquePSSM:
		return NewPSSMSetup(sm.NumSplits, sm.SplitPadding), nil
	}
	return nil, ErrTechniqueNotImplemented
}

func (n *nodeImpl) Name() string {
	return n.def.Name
}

func (n *nodeImpl) Definition() *NodeDefinition {
	return n.def
}

func (n *nodeImpl) Release() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.releaseCameras()
	n.cameras = nil
	n.setups = nil
	n.passes = nil
	return err
}

// releaseCameras destroys every shadow camera created so far.
// Caller must hold the mutex, or own n exclusively.
func (n *nodeImpl) releaseCameras() error {
	var errs []error
	for _, mc := range n.cameras {
		if err := n.scene.DestroyCamera(mc.camera); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
