package shadow

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

func (n *nodeImpl) IsShadowMapIdxInValidRange(idx int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inRange(idx)
}

func (n *nodeImpl) IsShadowMapIdxActive(idx int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.isActive(idx)
}

func (n *nodeImpl) ShadowMapLightTypeMask(idx int) uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inRange(idx) {
		return 0
	}
	slot := n.slots[n.def.ShadowMaps[idx].Light]
	if slot.IsEmpty() {
		return 0
	}
	return slot.Light.Type().Mask()
}

func (n *nodeImpl) ViewProjectionMatrix(idx int) mgl32.Mat4 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inRange(idx) {
		return mgl32.Ident4()
	}
	sm := n.def.ShadowMaps[idx]
	clipToImage := common.ClipToImageSpace(sm.UvOffset, sm.UvLength)
	return clipToImage.Mul4(n.cameras[idx].camera.ViewProjectionMatrix())
}

func (n *nodeImpl) MinMaxDepthRangeFor(cam camera.Camera) (float32, float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, mc := range n.cameras {
		if mc.camera == cam {
			return mc.minDistance, mc.maxDistance
		}
	}
	return light.DefaultMinDepth, light.DefaultMaxDepth
}

func (n *nodeImpl) MinMaxDepthRange(idx int) (float32, float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inRange(idx) {
		return light.DefaultMinDepth, light.DefaultMaxDepth
	}
	return n.cameras[idx].minDistance, n.cameras[idx].maxDistance
}

func (n *nodeImpl) PssmSplits(idx int) []float32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inRange(idx) || n.def.ShadowMaps[idx].Technique != TechniquePSSM || !n.isActive(idx) {
		return nil
	}
	pssm, ok := n.setups[n.cameras[idx].setup].(*PSSMSetup)
	if !ok {
		return nil
	}
	return pssm.SplitPoints()
}

func (n *nodeImpl) IndexToContiguousShadowMapTex(idx int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inRange(idx) {
		return -1
	}
	return n.cameras[idx].idxToContiguousTex
}

func (n *nodeImpl) ShadowMapCamera(idx int) camera.Camera {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inRange(idx) {
		return nil
	}
	return n.cameras[idx].camera
}

func (n *nodeImpl) CastersBox() common.Aabb {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.castersBox
}

func (n *nodeImpl) NumActiveShadowCastingLights() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.numActive
}

func (n *nodeImpl) ShadowCastingLights() light.LightList {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.slots)
}

func (n *nodeImpl) AffectedLights() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]bool, n.affected.Len())
	for i := range out {
		out[i] = n.affected.IsSet(i)
	}
	return out
}

// inRange reports whether idx names a shadow map. Caller must hold the mutex.
func (n *nodeImpl) inRange(idx int) bool {
	return idx >= 0 && idx < len(n.def.ShadowMaps) && idx < len(n.cameras)
}

// isActive reports whether a light feeds the shadow map. Caller must hold
// the mutex.
func (n *nodeImpl) isActive(idx int) bool {
	if !n.inRange(idx) {
		return true
	}
	return !n.slots[n.def.ShadowMaps[idx].Light].IsEmpty()
}
