package shadow

import (
	"container/heap"
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"go.uber.org/zap"
)

func (n *nodeImpl) BuildClosestLightList(cam, lodCam camera.Camera) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.buildClosestLightList(cam, lodCam)
}

// buildClosestLightList fills the slots. Directional lights take the first
// slots accepting them; the remaining slots go to the closest visible
// shadow-casting lights. Caller must hold the mutex.
func (n *nodeImpl) buildClosestLightList(cam, _ camera.Camera) {
	frame := int64(n.scene.FrameCount())
	if n.lastCamera == cam && n.lastFrame == frame {
		return
	}
	n.lastCamera = cam
	n.lastFrame = frame

	vpMask := light.DefaultVisibilityFlags
	if vp, ok := cam.LastViewport(); ok {
		vpMask = vp.VisibilityMask
	}
	combined := vpMask & n.scene.VisibilityMask() & light.UserFlagsMask

	clear(n.slots)
	n.numActive = 0

	global := n.scene.GlobalLightList()
	n.affected.Reset(global.Len())

	numSlots := len(n.slots)
	beg, next := 0, 0
	n.findNextEmpty(light.LightTypeDirectional.Mask(), &beg, &next)

	idx := 0
	for ; idx < global.Len() && next < numSlots; idx++ {
		l := global.Lights[idx]
		if l.Type() != light.LightTypeDirectional {
			break
		}
		mask := global.VisibilityMask[idx]
		if mask&combined != 0 && mask&light.LayerShadowCaster != 0 {
			n.occupy(next, l, idx)
			n.findNextEmpty(light.LightTypeDirectional.Mask(), &beg, &next)
		}
	}
	// Directional lights that found no slot stay unshadowed.
	for idx < global.Len() && global.Lights[idx].Type() == light.LightTypeDirectional {
		idx++
	}

	camPos := cam.Position()
	less := func(a, b int) bool {
		ma, mb := global.VisibilityMask[a], global.VisibilityMask[b]
		va, vb := ma&combined != 0, mb&combined != 0
		if va != vb {
			return va
		}
		ca, cb := ma&light.LayerShadowCaster != 0, mb&light.LayerShadowCaster != 0
		if ca != cb {
			return ca
		}
		return global.BoundingSphere[a].Distance(camPos) < global.BoundingSphere[b].Distance(camPos)
	}
	n.sortedIdx = partialSortIndices(n.sortedIdx[:0], idx, global.Len(), numSlots-beg, less)

	for _, i := range n.sortedIdx {
		mask := global.VisibilityMask[i]
		if mask&combined == 0 || mask&light.LayerShadowCaster == 0 || beg >= numSlots {
			break
		}
		l := global.Lights[i]
		n.findNextEmpty(l.Type().Mask(), &beg, &next)
		if next < numSlots {
			n.occupy(next, l, i)
		}
	}

	n.castersBox = n.scene.CalculateCurrentCastersBox(vpMask, n.def.MinRq, n.def.MaxRq)

	if ce := n.logger.Check(zap.DebugLevel, "shadow lights assigned"); ce != nil {
		ce.Write(
			zap.String("node", n.def.Name),
			zap.String("camera", cam.Name()),
			zap.Int64("frame", frame),
			zap.Int("lights", global.Len()),
			zap.Int("active", n.numActive))
	}
}

// occupy puts the light at global index idx into slot.
func (n *nodeImpl) occupy(slot int, l light.Light, idx int) {
	n.slots[slot] = light.LightClosest{Light: l, GlobalIndex: idx}
	n.affected.Set(idx)
	n.numActive++
}

// findNextEmpty scans the slots from *beg. *beg becomes the lowest empty
// slot seen, or len(slots) if none; *next becomes the first empty slot
// accepting typeMask, or len(slots) if none.
func (n *nodeImpl) findNextEmpty(typeMask uint8, beg, next *int) {
	newBeg := len(n.slots)
	i := *beg
	for ; i < len(n.slots); i++ {
		if !n.slots[i].IsEmpty() {
			continue
		}
		newBeg = min(newBeg, i)
		if n.def.LightTypesMask[i]&typeMask != 0 {
			*beg = newBeg
			*next = i
			return
		}
	}
	*beg = newBeg
	*next = i
}

// partialSortIndices appends to dst the k smallest indices of [from, to)
// under less, in ascending order.
func partialSortIndices(dst []int, from, to, k int, less func(a, b int) bool) []int {
	if k <= 0 || from >= to {
		return dst
	}
	h := &indexHeap{less: less, idx: make([]int, 0, k+1)}
	for i := from; i < to; i++ {
		if h.Len() < k {
			heap.Push(h, i)
			continue
		}
		if less(i, h.idx[0]) {
			h.idx[0] = i
			heap.Fix(h, 0)
		}
	}
	start := len(dst)
	dst = append(dst, h.idx...)
	slices.SortFunc(dst[start:], func(a, b int) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	return dst
}

// indexHeap is a max-heap of light indices under less.
type indexHeap struct {
	less func(a, b int) bool
	idx  []int
}

func (h *indexHeap) Len() int           { return len(h.idx) }
func (h *indexHeap) Less(i, j int) bool { return h.less(h.idx[j], h.idx[i]) }
func (h *indexHeap) Swap(i, j int)      { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *indexHeap) Push(x any)         { h.idx = append(h.idx, x.(int)) }

func (h *indexHeap) Pop() any {
	last := h.idx[len(h.idx)-1]
	h.idx = h.idx[:len(h.idx)-1]
	return last
}
