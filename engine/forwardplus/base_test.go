package forwardplus

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedNode string

func (n namedNode) Name() string { return string(n) }

func newTestBase(t *testing.T) (*Base, scene.Scene, buffer.Manager, *buffer.MemoryDevice) {
	t.Helper()
	dev := buffer.NewMemoryDevice(true)
	mgr := buffer.NewManager(dev)
	sc := scene.NewScene("forward")
	return NewBase(sc, mgr), sc, mgr, dev
}

func TestGridCacheUpToDate(t *testing.T) {
	b, _, mgr, _ := newTestBase(t)
	cam := camera.NewCamera()

	g, upToDate := b.GetCachedGridFor(cam)
	require.NotNil(t, g)
	assert.False(t, upToDate, "a new entry is never up to date")

	again, upToDate := b.GetCachedGridFor(cam)
	assert.Same(t, g, again)
	assert.True(t, upToDate)

	mgr.AdvanceFrame()
	peeked, upToDate := b.PeekCachedGridFor(cam)
	assert.Same(t, g, peeked)
	assert.False(t, upToDate, "peeking does not stamp")

	_, upToDate = b.GetCachedGridFor(cam)
	assert.False(t, upToDate)
	_, upToDate = b.PeekCachedGridFor(cam)
	assert.True(t, upToDate)
	assert.Equal(t, mgr.FrameCount(), g.LastFrame)
}

func TestPeekDoesNotInsert(t *testing.T) {
	b, _, _, _ := newTestBase(t)
	cam := camera.NewCamera()

	g, upToDate := b.PeekCachedGridFor(cam)
	assert.Nil(t, g)
	assert.False(t, upToDate)
	assert.Empty(t, b.cache)
}

func TestGridCacheKey(t *testing.T) {
	b, sc, _, _ := newTestBase(t)
	cam := camera.NewCamera()
	g, _ := b.GetCachedGridFor(cam)

	sc.SetCurrentShadowNode(namedNode("sun"))
	withNode, upToDate := b.GetCachedGridFor(cam)
	assert.NotSame(t, g, withNode)
	assert.False(t, upToDate, "switching shadow nodes invalidates the grid")

	sc.SetCurrentShadowNode(nil)
	back, upToDate := b.GetCachedGridFor(cam)
	assert.Same(t, g, back, "the entry of the previous node is kept")
	assert.True(t, upToDate)

	cam.SetAspect(1 + 1e-7)
	near, _ := b.GetCachedGridFor(cam)
	assert.Same(t, g, near, "aspect ratios within epsilon share an entry")

	cam.SetAspect(1.5)
	wide, upToDate := b.GetCachedGridFor(cam)
	assert.NotSame(t, g, wide)
	assert.False(t, upToDate)

	cam.EnableReflection(mgl32.Vec3{0, 1, 0}, 0)
	reflected, _ := b.GetCachedGridFor(cam)
	assert.NotSame(t, wide, reflected)

	other, _ := b.GetCachedGridFor(camera.NewCamera())
	assert.NotSame(t, g, other)
	assert.Len(t, b.cache, 5)
}

func TestBuffersRequireCollectedGrid(t *testing.T) {
	b, _, _, _ := newTestBase(t)
	cam := camera.NewCamera()

	_, err := b.GridBuffer(cam)
	assert.ErrorIs(t, err, ErrGridNotUpToDate)
	_, err = b.GlobalLightListBuffer(cam)
	assert.ErrorIs(t, err, ErrGridNotUpToDate)

	b.GetCachedGridFor(cam)
	_, err = b.GridBuffer(cam)
	assert.ErrorIs(t, err, ErrGridNotUpToDate, "an entry without buffers is not usable")
}

func TestFillGlobalLightListBuffer(t *testing.T) {
	b, _, mgr, dev := newTestBase(t)
	cam := camera.NewCamera(camera.WithPosition(1, 2, 3), camera.WithLookAt(0, 0, -10))
	buf, err := mgr.CreateBuffer(buffer.TypeDynamicPersistent, 4, light.NumBytesPerLight, nil)
	require.NoError(t, err)
	dev.ResetCalls()

	require.NoError(t, b.FillGlobalLightListBuffer(cam, buf))
	assert.Empty(t, dev.Calls(), "an empty light list maps nothing")

	b.currentLights = []light.Light{
		light.NewLight(light.LightTypePoint,
			light.WithPosition(4, 0, -6),
			light.WithDiffuse(1, 0.5, 0.25),
			light.WithPowerScale(2),
			light.WithAttenuation(12, 1, 0.1, 0.01)),
		light.NewLight(light.LightTypeSpot,
			light.WithPosition(-2, 5, -8),
			light.WithDirection(0, -1, -1),
			light.WithSpotlightRange(20, 40, 1.5)),
	}
	require.NoError(t, b.FillGlobalLightListBuffer(cam, buf))

	var flushed, unmapped bool
	for _, c := range dev.Calls() {
		switch c.Op {
		case buffer.OpFlush:
			flushed = true
			assert.Equal(t, 2*light.NumBytesPerLight, c.Length, "only the written lights are flushed")
		case buffer.OpUnmap:
			unmapped = true
		}
	}
	assert.True(t, flushed)
	assert.False(t, unmapped, "persistent mappings stay alive")
	assert.Equal(t, buffer.MappingPersistentIncoherent, buf.MappingState())

	contents := dev.Contents(buf)[buf.FinalStart()*buf.BytesPerElement():]
	for i, l := range b.currentLights {
		want := light.ToGPULight(l, cam.ViewMatrix())
		var got light.GPULight
		require.NoError(t, got.Unmarshal(contents[i*light.NumBytesPerLight:]))
		assert.InDeltaSlice(t, want.Position[:], got.Position[:], 1e-5)
		assert.InDeltaSlice(t, want.Diffuse[:], got.Diffuse[:], 1e-5)
		assert.InDeltaSlice(t, want.Attenuation[:], got.Attenuation[:], 1e-5)
		assert.InDeltaSlice(t, want.SpotDirection[:], got.SpotDirection[:], 1e-5)
		assert.InDeltaSlice(t, want.SpotParams[:], got.SpotParams[:], 1e-5)
		assert.Equal(t, float32(l.Type()), got.LightType)
	}
}

func TestFillRejectsWrongStride(t *testing.T) {
	b, _, mgr, _ := newTestBase(t)
	b.currentLights = []light.Light{light.NewLight(light.LightTypePoint)}
	buf, err := mgr.CreateBuffer(buffer.TypeDynamic, 4, 16, nil)
	require.NoError(t, err)
	assert.Error(t, b.FillGlobalLightListBuffer(camera.NewCamera(), buf))
	assert.Equal(t, buffer.MappingUnmapped, buf.MappingState())
}

func TestBasePassProperties(t *testing.T) {
	b := NewBase(scene.NewScene("props"), nil, WithDebugMode(true), WithFadeAttenuationRange(false))
	p := b.PassProperties()

	for name, want := range map[string]int{
		PropForwardPlus:               1,
		PropForwardPlusDebug:          1,
		PropForwardPlusFadeAttenRange: 0,
		PropVPos:                      1,
	} {
		got, ok := p.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}
