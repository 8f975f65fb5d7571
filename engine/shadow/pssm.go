package shadow

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/chewxy/math32"
)

// Initial split layout of a PSSM setup before the first update replaces it
// with the viewer's near plane and the light's shadow far distance.
const (
	initialSplitNear   = 0.1
	initialSplitFar    = 100
	initialSplitLambda = 0.95
)

// PSSMSetup is a focused setup over one of several depth slices of the view
// frustum. Shadow maps sharing a PSSMSetup share its split points.
type PSSMSetup struct {
	FocusedSetup
	splits  []float32
	padding float32
}

var _ CameraSetup = &PSSMSetup{}

// NewPSSMSetup creates a setup with numSplits splits over the initial range.
//
// Parameters:
//   - numSplits: the number of depth slices, at least 1
//   - padding: the overlap added on both sides of every slice
//
// Returns:
//   - *PSSMSetup: the setup
func NewPSSMSetup(numSplits int, padding float32) *PSSMSetup {
	s := &PSSMSetup{FocusedSetup: *NewFocusedSetup(), padding: padding}
	s.CalculateSplitPoints(numSplits, initialSplitNear, initialSplitFar, initialSplitLambda)
	return s
}

// CalculateSplitPoints places numSplits+1 split distances between near and
// far, blending a logarithmic and a linear distribution by lambda.
//
// Parameters:
//   - numSplits: the number of slices, at least 1
//   - near: the first split distance
//   - far: the last split distance
//   - lambda: 1 for fully logarithmic, 0 for fully linear
func (s *PSSMSetup) CalculateSplitPoints(numSplits int, near, far, lambda float32) {
	if numSplits < 1 {
		panic(fmt.Sprintf("shadow: pssm needs at least one split, got %d", numSplits))
	}

	s.splits = slices.Grow(s.splits[:0], numSplits+1)[:numSplits+1]
	s.splits[0] = near
	s.splits[numSplits] = far

	n := float32(numSplits)
	for i := 1; i < numSplits; i++ {
		frac := float32(i) / n
		logSplit := near * math32.Pow(far/near, frac)
		linSplit := near + (far-near)*frac
		s.splits[i] = lambda*logSplit + (1-lambda)*linSplit
	}
}

// SplitPoints returns a copy of the split distances.
func (s *PSSMSetup) SplitPoints() []float32 {
	return slices.Clone(s.splits)
}

// NumSplits returns the number of slices.
func (s *PSSMSetup) NumSplits() int {
	return len(s.splits) - 1
}

// SetSplitPadding sets the overlap added on both sides of every slice.
func (s *PSSMSetup) SetSplitPadding(padding float32) {
	s.padding = padding
}

// SplitPadding returns the slice overlap.
func (s *PSSMSetup) SplitPadding() float32 {
	return s.padding
}

func (s *PSSMSetup) ShadowCamera(ctx SetupContext) {
	if ctx.Light.Type() != light.LightTypeDirectional {
		s.FocusedSetup.ShadowCamera(ctx)
		return
	}

	k := min(max(ctx.Split, 0), s.NumSplits()-1)
	near := max(s.splits[k]-s.padding, ctx.Viewer.Near())
	far := s.splits[k+1] + s.padding
	s.focus(ctx, near, far)
}
