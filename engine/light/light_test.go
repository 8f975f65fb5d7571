package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypePoint)

	assert.Equal(t, LightTypePoint, l.Type())
	assert.Equal(t, -1, l.GlobalIndex())
	assert.True(t, l.Visible())
	assert.True(t, l.CastsShadows())
	assert.Equal(t, DefaultShadowFarDistance, l.ShadowFarDistance())
	assert.InDelta(t, -1.0, l.Direction().Y(), 1e-5)
}

func TestVisibilityMask(t *testing.T) {
	l := NewLight(LightTypeSpot, WithVisibilityFlags(0x3), WithCastsShadows(false))
	assert.Equal(t, uint32(0x3)|LayerVisibility, l.VisibilityMask())

	l.SetCastsShadows(true)
	assert.Equal(t, uint32(0x3)|LayerVisibility|LayerShadowCaster, l.VisibilityMask())

	l.SetVisible(false)
	assert.Equal(t, LayerShadowCaster, l.VisibilityMask(), "hidden lights keep only the caster layer")

	l.SetVisibilityFlags(0xFFFFFFFF)
	l.SetVisible(true)
	assert.Equal(t, UserFlagsMask|LayerVisibility|LayerShadowCaster, l.VisibilityMask())
}

func TestBoundingSphere(t *testing.T) {
	p := NewLight(LightTypePoint, WithPosition(1, 2, 3), WithAttenuation(7, 1, 0, 0))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, p.BoundingSphere().Center)
	assert.Equal(t, float32(7), p.BoundingSphere().Radius)

	d := NewLight(LightTypeDirectional, WithAttenuation(7, 1, 0, 0))
	assert.Zero(t, d.BoundingSphere().Radius)
}

func TestLightListInfoPutsDirectionalFirst(t *testing.T) {
	p0 := NewLight(LightTypePoint, WithName("p0"))
	d0 := NewLight(LightTypeDirectional, WithName("d0"))
	s0 := NewLight(LightTypeSpot, WithName("s0"))
	d1 := NewLight(LightTypeDirectional, WithName("d1"))

	info := NewLightListInfo([]Light{p0, d0, s0, d1})

	require.Equal(t, 4, info.Len())
	names := make([]string, 0, 4)
	for i, l := range info.Lights {
		names = append(names, l.Name())
		assert.Equal(t, i, l.GlobalIndex())
		assert.Equal(t, l.VisibilityMask(), info.VisibilityMask[i])
	}
	assert.Equal(t, []string{"d0", "d1", "p0", "s0"}, names)
	assert.Equal(t, 2, info.NumDirectional())
}

func TestLightClosestEmpty(t *testing.T) {
	assert.True(t, LightClosest{}.IsEmpty())
	assert.False(t, LightClosest{Light: NewLight(LightTypePoint)}.IsEmpty())
}

func TestGPULightSize(t *testing.T) {
	var g GPULight
	assert.Equal(t, NumBytesPerLight, g.Size())
	assert.Len(t, g.Marshal(), 96)
}

func relEqual(t *testing.T, want, got float32) {
	t.Helper()
	tol := float32(1e-5) * math32.Max(1, math32.Abs(want))
	assert.InDelta(t, want, got, float64(tol))
}

func TestGPULightRoundTrip(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{3, 4, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})

	l := NewLight(LightTypeSpot,
		WithPosition(2, 5, -1),
		WithDirection(0.2, -1, 0.1),
		WithDiffuse(0.5, 0.25, 1),
		WithSpecular(1, 1, 0.5),
		WithPowerScale(3),
		WithAttenuation(25, 1, 0.045, 0.0075),
		WithSpotlightRange(30, 50, 1.5),
	)

	buf := make([]byte, NumBytesPerLight)
	MarshalLightBuffer([]Light{l}, view, buf)

	var got GPULight
	require.NoError(t, got.Unmarshal(buf))

	wantPos := mgl32.TransformCoordinate(l.Position(), view)
	for i := range 3 {
		relEqual(t, wantPos[i], got.Position[i])
	}
	assert.Equal(t, float32(LightTypeSpot), got.LightType)

	relEqual(t, 1.5, got.Diffuse[0])
	relEqual(t, 0.75, got.Diffuse[1])
	relEqual(t, 3, got.Diffuse[2])
	relEqual(t, 1.5, got.Specular[2])

	relEqual(t, 25, got.Attenuation[0])
	relEqual(t, 0.045, got.Attenuation[1])
	relEqual(t, 0.0075, got.Attenuation[2])
	relEqual(t, 1.0/25, got.Attenuation[3])

	wantDir := view.Mat3().Mul3x1(l.Direction())
	for i := range 3 {
		relEqual(t, wantDir[i], got.SpotDirection[i])
	}

	cosIn := math32.Cos(mgl32.DegToRad(30) * 0.5)
	cosOut := math32.Cos(mgl32.DegToRad(50) * 0.5)
	relEqual(t, 1/(cosIn-cosOut), got.SpotParams[0])
	relEqual(t, cosOut, got.SpotParams[1])
	relEqual(t, 1.5, got.SpotParams[2])
}

func TestGPULightUnmarshalShort(t *testing.T) {
	var g GPULight
	assert.Error(t, g.Unmarshal(make([]byte, 10)))
}
