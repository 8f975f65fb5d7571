package probe

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeAtNDF creates a probe whose normalized distance at the origin is ndf.
func probeAtNDF(c Collector, name string, ndf float32) Probe {
	return c.CreateProbe(
		WithName(name),
		WithArea(mgl32.Vec3{ndf * 10, 0, 0}, mgl32.Vec3{10, 10, 10}, mgl32.QuatIdent()),
		WithInnerRegion(0),
	)
}

func newTestCollector() Collector {
	blend := buffer.NewTexture("blend", 256, 256)
	blend.NumMipmaps = 5
	return NewCollector(blend)
}

func names(probes [MaxCubeProbes]Probe) []string {
	out := make([]string, len(probes))
	for i, p := range probes {
		out[i] = p.Name()
	}
	return out
}

func TestUpdateKeepsLowestNDFs(t *testing.T) {
	c := newTestCollector()
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		probeAtNDF(c, name, float32(name[0]-'a'+1)/10)
	}
	c.CreateProbe(WithName("far"), WithArea(mgl32.Vec3{50, 0, 0}, mgl32.Vec3{1, 1, 1}, mgl32.QuatIdent()))

	c.Update(mgl32.Vec3{})

	assert.Equal(t, MaxCubeProbes, c.NumCollected())
	assert.Equal(t, []string{"a", "d", "c", "b"}, names(c.CollectedProbes()), "the highest NDF is replaced in place")
}

func TestUpdateTieBreakPicksLastIndex(t *testing.T) {
	c := newTestCollector()
	probeAtNDF(c, "first", 0.5)
	probeAtNDF(c, "second", 0.5)
	probeAtNDF(c, "third", 0.2)
	probeAtNDF(c, "fourth", 0.3)
	probeAtNDF(c, "new", 0.1)

	c.Update(mgl32.Vec3{})
	assert.Equal(t, []string{"first", "new", "third", "fourth"}, names(c.CollectedProbes()))
}

func TestUpdateDropsWorseProbeWhenFull(t *testing.T) {
	c := newTestCollector()
	for _, name := range []string{"a", "b", "c", "d"} {
		probeAtNDF(c, name, 0.1)
	}
	probeAtNDF(c, "late", 0.2)

	c.Update(mgl32.Vec3{})
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(c.CollectedProbes()))
}

func TestUpdateEarlyOutInsideInnerRegion(t *testing.T) {
	c := newTestCollector()
	probeAtNDF(c, "edge", 0.4)
	probeAtNDF(c, "mid", 0.3)
	c.CreateProbe(WithName("room"), WithArea(mgl32.Vec3{}, mgl32.Vec3{5, 5, 5}, mgl32.QuatIdent()))
	probeAtNDF(c, "after", 0.1)

	c.Update(mgl32.Vec3{})

	require.Equal(t, 1, c.NumCollected())
	collected := c.CollectedProbes()
	assert.Equal(t, "room", collected[0].Name())
	for _, p := range collected[1:] {
		assert.Same(t, c.BlankProbe(), p)
	}
	assert.Equal(t, [MaxCubeProbes]float32{1, 0, 0, 0}, c.BlendFactors())
}

func TestUpdateWithoutProbes(t *testing.T) {
	c := newTestCollector()
	c.Update(mgl32.Vec3{})

	assert.Zero(t, c.NumCollected())
	assert.Equal(t, [MaxCubeProbes]float32{}, c.BlendFactors())
	for _, p := range c.CollectedProbes() {
		assert.Same(t, c.BlankProbe(), p)
	}
}

func TestBlendFactors(t *testing.T) {
	c := newTestCollector()
	probeAtNDF(c, "near", 0.2)
	probeAtNDF(c, "far", 0.6)
	c.Update(mgl32.Vec3{})

	w := c.BlendFactors()
	assert.InDelta(t, 6.0/7, w[0], 1e-5)
	assert.InDelta(t, 1.0/7, w[1], 1e-5)
	assert.Zero(t, w[2])
	assert.Zero(t, w[3])

	weights, ok := c.Params().Get(ParamWeights)
	require.True(t, ok)
	assert.InDeltaSlice(t, w[:], weights, 1e-6)
	packed, ok := c.Params().Get(ParamPacked3x3Mat)
	require.True(t, ok)
	assert.Len(t, packed, 9*(MaxCubeProbes-1))
}

func TestBlendFactorsEqualNDFs(t *testing.T) {
	c := newTestCollector()
	for _, name := range []string{"a", "b", "c"} {
		probeAtNDF(c, name, 0.5)
	}
	c.Update(mgl32.Vec3{})

	w := c.BlendFactors()
	for i := range 3 {
		assert.InDelta(t, 1.0/3, w[i], 1e-5)
	}
}

func TestSingleProbeGetsFullWeight(t *testing.T) {
	c := newTestCollector()
	probeAtNDF(c, "only", 0.7)
	c.Update(mgl32.Vec3{})

	assert.Equal(t, 1, c.NumCollected())
	assert.Equal(t, [MaxCubeProbes]float32{1, 0, 0, 0}, c.BlendFactors())
	assert.Panics(t, func() { c.CalculateBlendFactors(MaxCubeProbes + 1) })
}

func TestRelativeOrientations(t *testing.T) {
	c := newTestCollector()
	q := mgl32.QuatRotate(0.5, mgl32.Vec3{0, 0, 1})
	c.CreateProbe(WithName("turned"), WithArea(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{10, 10, 10}, q), WithInnerRegion(0))
	probeAtNDF(c, "straight", 0.2)
	c.Update(mgl32.Vec3{})

	rel := c.RelativeOrientations()
	want := q.Inverse().Mat4().Mat3()
	assert.InDeltaSlice(t, want[:], rel[0][:], 1e-5)
	ident := mgl32.Ident3()
	assert.InDeltaSlice(t, want[:], rel[1][:], 1e-5, "unrotated probes share the inverse of the first")
	assert.NotEqual(t, ident, rel[0])
}

func TestPassPreExecute(t *testing.T) {
	c := newTestCollector()
	p := probeAtNDF(c, "hall", 0.5)
	tex := buffer.NewTexture("hall_cube", 64, 64)
	tex.NumMipmaps = 8
	p.SetTexture(tex)
	c.Update(mgl32.Vec3{})
	assert.True(t, c.RequiresTrilinear())

	assert.Equal(t, [MaxCubeProbes]float32{}, c.PassPreExecute())
	mips := c.PassPreExecute()
	assert.InDelta(t, 1.5, mips[0], 1e-6)
	assert.InDelta(t, 1.0/6, mips[1], 1e-6)

	lod, ok := c.Params().Get(ParamLodLevel)
	require.True(t, ok)
	assert.InDeltaSlice(t, mips[:], lod, 1e-6)

	c.Update(mgl32.Vec3{})
	assert.Equal(t, [MaxCubeProbes]float32{}, c.PassPreExecute(), "update restarts at the top mip")
}

func TestDestroyProbe(t *testing.T) {
	c := newTestCollector()
	a := c.CreateProbe(WithName("a"))
	b := c.CreateProbe(WithName("b"))
	foreign := NewProbe()

	assert.ErrorIs(t, c.DestroyProbe(foreign), ErrProbeNotOwned)
	assert.Len(t, c.Probes(), 2)

	require.NoError(t, c.DestroyProbe(a))
	assert.Equal(t, []Probe{b}, c.Probes())
	assert.ErrorIs(t, c.DestroyProbe(a), ErrProbeNotOwned)

	c.CreateProbe()
	c.DestroyAllProbes()
	assert.Empty(t, c.Probes())
}

func TestNewCollectorRequiresBlendTarget(t *testing.T) {
	assert.Panics(t, func() { NewCollector(nil) })

	blank := NewProbe(WithName("custom_blank"))
	c := NewCollector(buffer.NewTexture("blend", 1, 1), WithBlankProbe(blank), WithLogger(nil))
	assert.Same(t, blank, c.BlankProbe())
	assert.Same(t, blank, c.CollectedProbes()[0])
}
