package shadow

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"go.uber.org/zap"
)

func (n *nodeImpl) Update(cam, lodCam camera.Camera) {
	passes, executor := n.prepareShadowCameras(cam, lodCam)

	previous := n.scene.RenderStage()
	n.scene.SetRenderStage(scene.RenderStageRenderToTexture)
	defer n.scene.SetRenderStage(previous)

	for _, p := range passes {
		executor(p)
	}
}

// prepareShadowCameras assigns lights and places the camera of every active
// shadow map. It returns the passes to render, so they run without the lock.
func (n *nodeImpl) prepareShadowCameras(cam, lodCam camera.Camera) ([]*Pass, PassExecutor) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.buildClosestLightList(cam, lodCam)

	for i, sm := range n.def.ShadowMaps {
		slot := n.slots[sm.Light]
		if slot.IsEmpty() {
			continue
		}
		l := slot.Light
		mc := &n.cameras[i]
		tex := mc.camera

		tex.SetLodCamera(lodCam)
		if l.Type() != light.LightTypePoint {
			tex.SetOrientation(l.Orientation())
		}
		if l.Type() != light.LightTypeDirectional {
			tex.SetPosition(l.Position())
		}

		setup := n.setups[mc.setup]
		if pssm, ok := setup.(*PSSMSetup); ok && sm.Technique == TechniquePSSM {
			splits := pssm.SplitPoints()
			if len(splits) != sm.NumSplits+1 || splits[0] != cam.Near() || splits[sm.NumSplits] != l.ShadowFarDistance() {
				pssm.CalculateSplitPoints(sm.NumSplits, cam.Near(), l.ShadowFarDistance(), sm.PssmLambda)
			}
		}

		setup.ShadowCamera(SetupContext{
			Viewer:       cam,
			Light:        l,
			ShadowCamera: tex,
			Split:        sm.Split,
			ViewportSize: mc.viewportSize[l.Type()],
			CastersBox:   n.castersBox,
		})
		mc.minDistance = setup.MinDistance()
		mc.maxDistance = setup.MaxDistance()
	}

	if ce := n.logger.Check(zap.DebugLevel, "shadow cameras updated"); ce != nil {
		ce.Write(zap.String("node", n.def.Name), zap.Int("passes", len(n.passes)))
	}
	return slices.Clone(n.passes), n.executor
}
