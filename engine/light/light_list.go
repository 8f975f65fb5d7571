package light

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/common"
)

// LightListInfo is the frame-global light array. Directional lights always
// come first. VisibilityMask and BoundingSphere are parallel to Lights.
type LightListInfo struct {
	Lights         []Light
	VisibilityMask []uint32
	BoundingSphere []common.Sphere
}

// NewLightListInfo builds the global list from lights. Directional lights are
// moved to the front, preserving relative order within each group, and every
// light is told its global index.
//
// Parameters:
//   - lights: the lights to list; the slice itself is not modified
//
// Returns:
//   - LightListInfo: the global list
func NewLightListInfo(lights []Light) LightListInfo {
	sorted := slices.Clone(lights)
	slices.SortStableFunc(sorted, func(a, b Light) int {
		ad := a.Type() == LightTypeDirectional
		bd := b.Type() == LightTypeDirectional
		switch {
		case ad && !bd:
			return -1
		case !ad && bd:
			return 1
		}
		return 0
	})

	info := LightListInfo{
		Lights:         sorted,
		VisibilityMask: make([]uint32, len(sorted)),
		BoundingSphere: make([]common.Sphere, len(sorted)),
	}
	for i, l := range sorted {
		l.SetGlobalIndex(i)
		info.VisibilityMask[i] = l.VisibilityMask()
		info.BoundingSphere[i] = l.BoundingSphere()
	}
	return info
}

// Len returns the number of listed lights.
func (li *LightListInfo) Len() int {
	return len(li.Lights)
}

// NumDirectional returns the length of the leading directional section.
func (li *LightListInfo) NumDirectional() int {
	n := 0
	for n < len(li.Lights) && li.Lights[n].Type() == LightTypeDirectional {
		n++
	}
	return n
}

// LightClosest is one shadow-casting slot or one entry of a per-draw light
// list. A nil Light means the entry is empty.
type LightClosest struct {
	Light       Light
	GlobalIndex int
	SplitIndex  int
}

// IsEmpty reports whether no light occupies the entry.
func (lc LightClosest) IsEmpty() bool {
	return lc.Light == nil
}

// LightList is an ordered list of lights affecting a renderable or a pass.
type LightList []LightClosest
