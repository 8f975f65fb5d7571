package probe

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeNDF(t *testing.T) {
	p := NewProbe(WithArea(mgl32.Vec3{}, mgl32.Vec3{10, 10, 10}, mgl32.QuatIdent()))

	for _, tt := range []struct {
		pos  mgl32.Vec3
		want float32
	}{
		{mgl32.Vec3{0, 0, 0}, 0},
		{mgl32.Vec3{5, 0, 0}, 0},
		{mgl32.Vec3{0, -5, 5}, 0},
		{mgl32.Vec3{7.5, 0, 0}, 0.5},
		{mgl32.Vec3{10, 0, 0}, 1},
		{mgl32.Vec3{7.5, -9, 0}, 0.8},
		{mgl32.Vec3{0, 0, 15}, 2},
	} {
		assert.InDelta(t, tt.want, p.NDF(tt.pos), 1e-5, "%v", tt.pos)
	}
}

func TestProbeNDFWithoutFalloff(t *testing.T) {
	p := NewProbe(WithArea(mgl32.Vec3{}, mgl32.Vec3{2, 2, 2}, mgl32.QuatIdent()), WithInnerRegion(1))
	assert.Zero(t, p.NDF(mgl32.Vec3{2, 0, 0}))
	assert.Equal(t, float32(1), p.NDF(mgl32.Vec3{2.5, 0, 0}))
}

func TestProbeLocalSpace(t *testing.T) {
	q := mgl32.QuatRotate(math32.Pi/2, mgl32.Vec3{0, 1, 0})
	p := NewProbe(WithArea(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{10, 1, 1}, q))

	local := p.ToLocal(mgl32.Vec3{1, 0, -5})
	assert.InDeltaSlice(t, []float32{5, 0, 0}, local[:], 1e-5)
	assert.True(t, p.AreaLS().Contains(local))

	local = p.ToLocal(mgl32.Vec3{6, 0, 0})
	assert.InDeltaSlice(t, []float32{0, 0, 5}, local[:], 1e-5)
	assert.False(t, p.AreaLS().Contains(local))
}

func TestProbeSetters(t *testing.T) {
	p := NewProbe(WithName("hall"))
	assert.Equal(t, "hall", p.Name())
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0.5}, p.InnerRegion())

	tex := buffer.NewTexture("hall_cube", 128, 128)
	p.SetTexture(tex)
	p.SetInnerRegion(mgl32.Vec3{0.2, 0.3, 0.4})
	p.SetArea(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{4, 5, 6}, mgl32.QuatIdent())

	assert.Same(t, tex, p.Texture())
	assert.Equal(t, mgl32.Vec3{0.2, 0.3, 0.4}, p.InnerRegion())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, p.Center())
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, p.HalfSize())
	require.InDelta(t, 1, p.Orientation().W, 1e-6)
}
