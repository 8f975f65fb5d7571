package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"go.uber.org/zap"
)

var (
	// ErrCameraNotOwned is returned when destroying a camera created by another scene.
	ErrCameraNotOwned = errors.New("scene: camera not owned by this scene")

	// ErrLightNotOwned is returned when removing a light that was never added.
	ErrLightNotOwned = errors.New("scene: light not owned by this scene")
)

// RenderStage tells listeners what kind of rendering is in progress.
type RenderStage int

const (
	// RenderStageNormal is regular rendering to the final target.
	RenderStageNormal RenderStage = iota
	// RenderStageRenderToTexture is set while shadow maps are being prepared.
	RenderStageRenderToTexture
)

// DefaultRenderQueueMax is one past the highest render queue id.
const DefaultRenderQueueMax = 255

// Caster is a shadow-casting object as seen by the lighting code: a world
// bounding box, the render queue it draws in and its visibility flags.
type Caster struct {
	Bounds          common.Aabb
	RenderQueue     uint8
	VisibilityFlags uint32
}

// Renderable is a drawable as seen by the per-draw light assignment: the
// lights affecting it, closest first.
type Renderable struct {
	Lights light.LightList
}

// ShadowNode identifies the shadow node currently in use by a scene. Forward
// plus grids are keyed on it, so switching nodes invalidates them.
type ShadowNode interface {
	Name() string
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu     *sync.Mutex
	logger *zap.Logger

	name            string
	lights          []light.Light
	globalLightList light.LightListInfo
	visibilityMask  uint32
	casters         []Caster
	cameras         []camera.Camera
	frameCount      uint64
	shadowNode      ShadowNode
	renderStage     RenderStage
}

// Scene is the minimal scene manager the lighting compositor runs against.
// It owns lights, casters and cameras, keeps the frame counter and knows the
// shadow node in use. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// AddLight registers a light. Adding the same light twice is a no-op.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight unregisters a light.
	//
	// Parameters:
	//   - l: the light to remove
	//
	// Returns:
	//   - error: ErrLightNotOwned if the light was never added
	RemoveLight(l light.Light) error

	// Lights returns a copy of the registered lights in insertion order.
	Lights() []light.Light

	// UpdateGlobalLightList rebuilds the frame-global light list from the
	// registered lights. Directional lights are placed first and every light
	// is given its global index.
	//
	// Returns:
	//   - light.LightListInfo: the new global list
	UpdateGlobalLightList() light.LightListInfo

	// GlobalLightList returns the list built by the last UpdateGlobalLightList.
	GlobalLightList() light.LightListInfo

	// VisibilityMask returns the scene-wide visibility mask.
	VisibilityMask() uint32

	// SetVisibilityMask sets the scene-wide visibility mask.
	SetVisibilityMask(mask uint32)

	// AddCaster registers a shadow caster.
	//
	// Parameters:
	//   - c: the caster
	AddCaster(c Caster)

	// ClearCasters removes every caster.
	ClearCasters()

	// CalculateCurrentCastersBox merges the bounds of every caster whose
	// render queue lies in [minRq, maxRq) and whose visibility flags share a
	// bit with viewportMask.
	//
	// Parameters:
	//   - viewportMask: the visibility mask of the viewport being rendered
	//   - minRq: the first render queue considered
	//   - maxRq: one past the last render queue considered
	//
	// Returns:
	//   - common.Aabb: the merged box, null when nothing matches
	CalculateCurrentCastersBox(viewportMask uint32, minRq, maxRq uint8) common.Aabb

	// FrameCount returns the number of frames advanced so far.
	FrameCount() uint64

	// AdvanceFrame increments the frame counter.
	AdvanceFrame()

	// CurrentShadowNode returns the shadow node in use, or nil.
	CurrentShadowNode() ShadowNode

	// SetCurrentShadowNode sets the shadow node in use.
	SetCurrentShadowNode(node ShadowNode)

	// CreateCamera creates a camera owned by the scene.
	//
	// Parameters:
	//   - options: camera builder options
	//
	// Returns:
	//   - camera.Camera: the new camera
	CreateCamera(options ...camera.CameraBuilderOption) camera.Camera

	// DestroyCamera releases a camera created by CreateCamera.
	//
	// Parameters:
	//   - cam: the camera to destroy
	//
	// Returns:
	//   - error: ErrCameraNotOwned if the camera belongs elsewhere
	DestroyCamera(cam camera.Camera) error

	// Cameras returns a copy of the owned cameras.
	Cameras() []camera.Camera

	// RenderStage returns the current render stage.
	RenderStage() RenderStage

	// SetRenderStage sets the current render stage.
	SetRenderStage(stage RenderStage)
}

var _ Scene = &scene{}

// NewScene creates an empty Scene with every user visibility bit enabled.
//
// Parameters:
//   - name: the scene's identifier
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		name:           name,
		visibilityMask: light.DefaultVisibilityFlags,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.lights, l) {
		return
	}
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.Index(s.lights, l)
	if idx < 0 {
		return fmt.Errorf("remove light %q: %w", l.Name(), ErrLightNotOwned)
	}
	s.lights = slices.Delete(s.lights, idx, idx+1)
	l.SetGlobalIndex(-1)
	return nil
}

func (s *scene) Lights() []light.Light {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lights)
}

func (s *scene) UpdateGlobalLightList() light.LightListInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalLightList = light.NewLightListInfo(s.lights)
	return s.globalLightList
}

func (s *scene) GlobalLightList() light.LightListInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalLightList
}

func (s *scene) VisibilityMask() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibilityMask
}

func (s *scene) SetVisibilityMask(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibilityMask = mask
}

func (s *scene) AddCaster(c Caster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casters = append(s.casters, c)
}

func (s *scene) ClearCasters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casters = s.casters[:0]
}

func (s *scene) CalculateCurrentCastersBox(viewportMask uint32, minRq, maxRq uint8) common.Aabb {
	s.mu.Lock()
	defer s.mu.Unlock()
	box := common.NullAabb()
	for _, c := range s.casters {
		if c.RenderQueue < minRq || c.RenderQueue >= maxRq {
			continue
		}
		if c.VisibilityFlags&viewportMask == 0 {
			continue
		}
		box = box.Merge(c.Bounds)
	}
	return box
}

func (s *scene) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

func (s *scene) AdvanceFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
}

func (s *scene) CurrentShadowNode() ShadowNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadowNode
}

func (s *scene) SetCurrentShadowNode(node ShadowNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shadowNode != node && node != nil {
		s.logger.Debug("shadow node changed", zap.String("scene", s.name), zap.String("node", node.Name()))
	}
	s.shadowNode = node
}

func (s *scene) CreateCamera(options ...camera.CameraBuilderOption) camera.Camera {
	cam := camera.NewCamera(options...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, cam)
	return cam
}

func (s *scene) DestroyCamera(cam camera.Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.Index(s.cameras, cam)
	if idx < 0 {
		return fmt.Errorf("destroy camera %q: %w", cam.Name(), ErrCameraNotOwned)
	}
	s.cameras = slices.Delete(s.cameras, idx, idx+1)
	return nil
}

func (s *scene) Cameras() []camera.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cameras)
}

func (s *scene) RenderStage() RenderStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderStage
}

func (s *scene) SetRenderStage(stage RenderStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderStage = stage
}
