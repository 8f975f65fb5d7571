package shadow

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"go.uber.org/zap"
)

func (n *nodeImpl) ContiguousShadowMapTextures() []*buffer.Texture {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.contiguous)
}

func (n *nodeImpl) LocalTextures(name string) []*buffer.Texture {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx := n.def.TextureIndex(name)
	if idx < 0 {
		return nil
	}
	return slices.Clone(n.localTextures[idx])
}

func (n *nodeImpl) FinalTargetResized(width, height int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	n.targetWidth, n.targetHeight = width, height
	for i, td := range n.def.Textures {
		if td.IsTargetRelative() {
			n.localTextures[i] = n.newTextures(td)
		}
	}
	n.rebuildContiguousTextures()
	n.logger.Debug("shadow textures resized",
		zap.String("node", n.def.Name),
		zap.Int("width", width),
		zap.Int("height", height))
}

// createLocalTextures describes every render target of the definition.
func (n *nodeImpl) createLocalTextures() {
	n.localTextures = make([][]*buffer.Texture, len(n.def.Textures))
	for i, td := range n.def.Textures {
		n.localTextures[i] = n.newTextures(td)
	}
}

func (n *nodeImpl) newTextures(td TextureDefinition) []*buffer.Texture {
	w, h := td.Width, td.Height
	if td.IsTargetRelative() {
		w = max(int(float32(n.targetWidth)*td.WidthFactor), 1)
		h = max(int(float32(n.targetHeight)*td.HeightFactor), 1)
	}
	out := make([]*buffer.Texture, td.MRTCount)
	for mrt := range out {
		name := fmt.Sprintf("%s/%s", n.def.Name, td.Name)
		if td.MRTCount > 1 {
			name = fmt.Sprintf("%s#%d", name, mrt)
		}
		out[mrt] = buffer.NewTexture(name, w, h)
	}
	return out
}

// rebuildContiguousTextures lists the distinct textures the shadow maps render
// into, in first-use order, and points every map at its entry.
func (n *nodeImpl) rebuildContiguousTextures() {
	n.contiguous = n.contiguous[:0]
	for i := range n.cameras {
		mc := &n.cameras[i]
		tex := n.localTextures[mc.idxToLocalTexture][n.def.ShadowMaps[i].MrtIndex]
		k := slices.Index(n.contiguous, tex)
		if k < 0 {
			k = len(n.contiguous)
			n.contiguous = append(n.contiguous, tex)
		}
		mc.idxToContiguousTex = k
	}
}
