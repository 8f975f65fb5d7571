package forwardplus

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointLight(x, y, z, lightRange float32, opts ...light.LightBuilderOption) light.Light {
	opts = append([]light.LightBuilderOption{
		light.WithPosition(x, y, z),
		light.WithAttenuation(lightRange, 1, 0, 0),
	}, opts...)
	return light.NewLight(light.LightTypePoint, opts...)
}

// clusteredScene lights a camera at the origin looking down -Z: one light at
// depth 10, one at depth 50, plus lights that must never be collected.
func clusteredScene(t *testing.T, options ...ClusteredBuilderOption) (*Clustered, camera.Camera, buffer.Manager, *buffer.MemoryDevice) {
	t.Helper()
	sc := scene.NewScene("clustered", scene.WithLights(
		light.NewLight(light.LightTypeDirectional),
		pointLight(0, 0, -10, 2),
		pointLight(0, 0, -50, 2),
		pointLight(0, 0, 20, 2),
		pointLight(0, 0, -20, 2, light.WithVisible(false)),
	))
	sc.UpdateGlobalLightList()

	dev := buffer.NewMemoryDevice(true)
	mgr := buffer.NewManager(dev)
	options = append([]ClusteredBuilderOption{
		WithGridSize(4, 4, 8),
		WithDepthRange(1, 100),
		WithLightsPerCell(8),
		WithMaxLights(16),
		WithWorkers(2),
	}, options...)
	return NewClustered(sc, mgr, options...), camera.NewCamera(), mgr, dev
}

func TestSliceBounds(t *testing.T) {
	assert.InDeltaSlice(t, []float32{0, 1, 10, 100}, sliceBounds(3, 1, 100), 1e-4)
	assert.Equal(t, []float32{0, 50}, sliceBounds(1, 3, 50))
}

func TestSliceForDepth(t *testing.T) {
	c, _, _, _ := clusteredScene(t)
	assert.Equal(t, 0, c.SliceForDepth(0.5))
	assert.Equal(t, 1, c.SliceForDepth(1))
	assert.Equal(t, 4, c.SliceForDepth(10))
	assert.Equal(t, 6, c.SliceForDepth(50))
	assert.Equal(t, 7, c.SliceForDepth(1000))
}

func TestCollectLightsAssignsCells(t *testing.T) {
	c, cam, _, dev := clusteredScene(t)
	require.NoError(t, c.CollectLights(cam))

	lights := c.CurrentLights()
	require.Len(t, lights, 2, "directional, hidden and off-screen lights are skipped")
	assert.Equal(t, float32(-10), lights[0].Position().Z())
	assert.Equal(t, float32(-50), lights[1].Position().Z())

	near, far := c.SliceForDepth(10), c.SliceForDepth(50)
	assert.Equal(t, []uint16{0}, c.CellLights(1, 1, near))
	assert.Equal(t, []uint16{0}, c.CellLights(2, 2, near))
	assert.Equal(t, []uint16{1}, c.CellLights(1, 2, far))
	assert.Empty(t, c.CellLights(0, 0, near), "the corner tile misses a light on the axis")
	assert.Empty(t, c.CellLights(3, 3, near))
	for y := range 4 {
		for x := range 4 {
			assert.Empty(t, c.CellLights(x, y, 0))
		}
	}
	assert.Nil(t, c.CellLights(4, 0, 0))

	grid, err := c.GridBuffer(cam)
	require.NoError(t, err)
	cell := c.cellIndex(1, 1, near)
	off := grid.FinalStart()*grid.BytesPerElement() + cell*grid.BytesPerElement()
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(dev.Contents(grid)[off:]), "the uploaded cell starts with its count")

	list, err := c.GlobalLightListBuffer(cam)
	require.NoError(t, err)
	var first light.GPULight
	require.NoError(t, first.Unmarshal(dev.Contents(list)[list.FinalStart()*list.BytesPerElement():]))
	assert.InDeltaSlice(t, []float32{0, 0, -10}, first.Position[:], 1e-5)
	assert.Equal(t, float32(light.LightTypePoint), first.LightType)
}

func TestCollectLightsUsesCache(t *testing.T) {
	c, cam, mgr, _ := clusteredScene(t)
	require.NoError(t, c.CollectLights(cam))
	grid, err := c.GridBuffer(cam)
	require.NoError(t, err)
	frame := grid.CurrentFrame()

	require.NoError(t, c.CollectLights(cam))
	assert.Equal(t, uint64(1), c.CacheHits())
	assert.Equal(t, frame, grid.CurrentFrame(), "a cache hit writes nothing")

	mgr.AdvanceFrame()
	_, err = c.GridBuffer(cam)
	assert.ErrorIs(t, err, ErrGridNotUpToDate)

	require.NoError(t, c.CollectLights(cam))
	assert.Equal(t, uint64(1), c.CacheHits())
	again, err := c.GridBuffer(cam)
	require.NoError(t, err)
	assert.Same(t, grid, again, "buffers are reused across frames")
	assert.NotEqual(t, frame, again.CurrentFrame())
}

func TestCellCapacityIsNotAnError(t *testing.T) {
	c, cam, _, _ := clusteredScene(t, WithLightsPerCell(1))
	c.scene.AddLight(pointLight(0.1, 0, -10, 2))
	c.scene.UpdateGlobalLightList()

	require.NoError(t, c.CollectLights(cam))
	assert.Equal(t, 3, c.NumCollectedLights())
	assert.Len(t, c.CellLights(1, 1, c.SliceForDepth(10)), 1)
}

func TestMaxLightsTruncates(t *testing.T) {
	c, cam, _, _ := clusteredScene(t, WithMaxLights(1))
	require.NoError(t, c.CollectLights(cam))
	assert.Equal(t, 1, c.NumCollectedLights())
}

func TestClusteredPassProperties(t *testing.T) {
	c, _, _, _ := clusteredScene(t, WithBaseOptions(WithDebugMode(true)))
	p := c.PassProperties()

	for name, want := range map[string]any{
		PropForwardPlus:            1,
		PropForwardPlusDebug:       1,
		PropForwardClustered:       1,
		PropClusteredWidth:         4,
		PropClusteredHeight:        4,
		PropClusteredNumSlices:     8,
		PropClusteredLightsPerCell: 8,
		PropClusteredMinDistance:   float32(1),
		PropClusteredMaxDistance:   float32(100),
	} {
		got, ok := p.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestReleaseDestroysBuffers(t *testing.T) {
	c, cam, mgr, _ := clusteredScene(t)
	require.NoError(t, c.CollectLights(cam))
	grid, err := c.GridBuffer(cam)
	require.NoError(t, err)
	require.Equal(t, buffer.MappingPersistentIncoherent, grid.MappingState())

	require.NoError(t, c.Release())
	assert.Equal(t, buffer.MappingUnmapped, grid.MappingState())
	assert.ErrorIs(t, mgr.DestroyBuffer(grid), buffer.ErrBufferNotOwned, "the buffer was already destroyed")

	_, err = c.GridBuffer(cam)
	assert.ErrorIs(t, err, ErrGridNotUpToDate)
}

func TestChangeDevice(t *testing.T) {
	c, cam, _, _ := clusteredScene(t)
	require.NoError(t, c.CollectLights(cam))
	old, err := c.GridBuffer(cam)
	require.NoError(t, err)

	require.NoError(t, c.ChangeDevice(nil))
	assert.Error(t, c.CollectLights(cam), "no device to allocate from")

	mgr := buffer.NewManager(buffer.NewMemoryDevice(false))
	require.NoError(t, c.ChangeDevice(mgr))
	require.NoError(t, c.CollectLights(cam))
	grid, err := c.GridBuffer(cam)
	require.NoError(t, err)
	assert.NotSame(t, old, grid)
	require.NoError(t, mgr.DestroyBuffer(grid), "the new manager owns the rebuilt grid")
}

func TestNewClusteredPanicsOnBadLayout(t *testing.T) {
	sc := scene.NewScene("bad")
	assert.Panics(t, func() { NewClustered(sc, nil, WithGridSize(0, 1, 1)) })
	assert.Panics(t, func() { NewClustered(sc, nil, WithDepthRange(5, 5)) })
	assert.Panics(t, func() { NewClustered(sc, nil, WithLightsPerCell(0)) })
	assert.Panics(t, func() { NewClustered(sc, nil, WithMaxLights(1<<17)) })
	assert.Panics(t, func() { NewClustered(nil, nil) })
}
