package shadow

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"go.uber.org/zap"
)

// PassType is the kind of a compositor pass inside the node.
type PassType int

const (
	// PassScene renders scene objects into a shadow map.
	PassScene PassType = iota
	// PassClear clears a shadow map.
	PassClear
	// PassQuad draws a full-screen quad, e.g. to blur a shadow map.
	PassQuad
)

// Pass is a compositor pass rendering into one of the node's shadow maps.
type Pass struct {
	Name string
	Type PassType
	// ShadowMapIdx is the shadow map the pass renders into.
	ShadowMapIdx int
	// ViewportSize is the pass viewport in pixels.
	ViewportSize common.Vec2
	// SupportedLightTypes is a mask of 1 << light.LightType the pass renders for.
	SupportedLightTypes uint8

	// CustomCamera and CustomCullCamera are set by PostInitializePass to the
	// shadow camera of ShadowMapIdx.
	CustomCamera     camera.Camera
	CustomCullCamera camera.Camera
}

// PassExecutor renders one pass. Update calls it for every registered pass
// while the scene is in the render-to-texture stage.
type PassExecutor func(pass *Pass)

// ShadowTextureUnit is a shadow texture slot of a material pass.
type ShadowTextureUnit struct {
	Texture *buffer.Texture
	// ShadowMapIdx is the shadow map bound to the unit, or -1.
	ShadowMapIdx int
}

// MaterialPass is the part of a material pass the shadow node fills in.
type MaterialPass struct {
	// MaxSimultaneousLights is the number of lights one iteration handles.
	MaxSimultaneousLights int
	// ShadowTextureUnits are the pass's shadow content texture units.
	ShadowTextureUnits []ShadowTextureUnit
}

// ProjectorSetter receives the camera projecting each shadow texture unit.
type ProjectorSetter interface {
	SetTextureProjector(cam camera.Camera, index int)
}

// AutoParamSource collects texture projectors for shader parameter binding.
type AutoParamSource struct {
	projectors []camera.Camera
}

var _ ProjectorSetter = &AutoParamSource{}

func (a *AutoParamSource) SetTextureProjector(cam camera.Camera, index int) {
	if index >= len(a.projectors) {
		a.projectors = slices.Grow(a.projectors, index+1-len(a.projectors))[:index+1]
	}
	a.projectors[index] = cam
}

// TextureProjector returns the projector of a unit, or nil.
func (a *AutoParamSource) TextureProjector(index int) camera.Camera {
	if index < 0 || index >= len(a.projectors) {
		return nil
	}
	return a.projectors[index]
}

func (n *nodeImpl) PostInitializePass(pass *Pass) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkPass(pass); err != nil {
		panic(err)
	}

	if !slices.Contains(n.passes, pass) {
		n.passes = append(n.passes, pass)
	}
	if pass.Type != PassScene || pass.ShadowMapIdx < 0 || pass.ShadowMapIdx >= len(n.cameras) {
		return
	}

	mc := &n.cameras[pass.ShadowMapIdx]
	for types := uint32(pass.SupportedLightTypes); types != 0; types &= types - 1 {
		if t := common.Ctz(types); t < uint32(light.NumLightTypes) {
			mc.viewportSize[t] = pass.ViewportSize
		}
	}
	pass.CustomCamera = mc.camera
	pass.CustomCullCamera = mc.camera
	n.logger.Debug("shadow pass initialized",
		zap.String("node", n.def.Name),
		zap.String("pass", pass.Name),
		zap.Int("shadowMap", pass.ShadowMapIdx))
}

func (n *nodeImpl) ValidatePass(pass *Pass) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.checkPass(pass)
}

// checkPass reports a viewport size conflict between pass and the sizes
// recorded so far. Caller must hold the mutex.
func (n *nodeImpl) checkPass(pass *Pass) error {
	if pass.Type != PassScene || pass.ShadowMapIdx < 0 || pass.ShadowMapIdx >= len(n.cameras) {
		return nil
	}
	mc := &n.cameras[pass.ShadowMapIdx]
	for types := uint32(pass.SupportedLightTypes); types != 0; types &= types - 1 {
		t := common.Ctz(types)
		if t >= uint32(light.NumLightTypes) {
			break
		}
		recorded := mc.viewportSize[t]
		if recorded.X() >= 0 && recorded != pass.ViewportSize {
			return fmt.Errorf("node %q: pass %q: shadow map %d, %s lights: %v against %v: %w",
				n.def.Name, pass.Name, pass.ShadowMapIdx, light.LightType(t), pass.ViewportSize, recorded, ErrViewportMismatch)
		}
	}
	return nil
}

func (n *nodeImpl) SetShadowMapsToPass(rend *scene.Renderable, pass *MaterialPass, params ProjectorSetter, startLight int) light.LightList {
	n.mu.Lock()
	defer n.mu.Unlock()

	lightsPerPass := pass.MaxSimultaneousLights
	n.lightList = n.lightList[:0]

	numSlots := len(n.slots)
	start := min(startLight, numSlots)
	end := min(startLight+lightsPerPass, numSlots)
	n.lightList = append(n.lightList, n.slots[start:end]...)

	skip := max(startLight-len(n.lightList), 0)
	left := max(lightsPerPass-(end-start), 0)
	if rend != nil {
		for _, lc := range rend.Lights {
			if left == 0 {
				break
			}
			if n.affected.IsSet(lc.GlobalIndex) {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			n.lightList = append(n.lightList, lc)
			left--
		}
	}

	null := n.buffers.NullShadowTexture()
	for u := range pass.ShadowTextureUnits {
		idx := start + u
		if idx >= len(n.cameras) {
			pass.ShadowTextureUnits[u] = ShadowTextureUnit{Texture: null, ShadowMapIdx: -1}
			if params != nil {
				params.SetTextureProjector(nil, u)
			}
			continue
		}
		mc := n.cameras[idx]
		pass.ShadowTextureUnits[u] = ShadowTextureUnit{Texture: n.contiguous[mc.idxToContiguousTex], ShadowMapIdx: idx}
		if params != nil {
			params.SetTextureProjector(mc.camera, u)
		}
	}
	return n.lightList
}
