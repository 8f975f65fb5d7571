package forwardplus

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Default clustered grid layout.
const (
	DefaultGridWidth     = 16
	DefaultGridHeight    = 8
	DefaultNumSlices     = 24
	DefaultLightsPerCell = 96
	DefaultMinDistance   = 3
	DefaultMaxDistance   = 200
	DefaultMaxLights     = 1024
)

// Pass property names set by the clustered variant.
const (
	PropForwardClustered       = "forward_clustered"
	PropClusteredWidth         = "fwd_clustered_width"
	PropClusteredHeight        = "fwd_clustered_height"
	PropClusteredNumSlices     = "fwd_clustered_num_slices"
	PropClusteredLightsPerCell = "fwd_clustered_lights_per_cell"
	PropClusteredMinDistance   = "fwd_clustered_min_distance"
	PropClusteredMaxDistance   = "fwd_clustered_max_distance"
)

// maxLightIndex bounds the light list so indices fit a cell entry.
const maxLightIndex = 1 << 16

// Clustered is forward plus over a froxel grid: width x height screen tiles
// times numSlices exponential depth slices. Each cell holds a light count
// followed by up to lightsPerCell uint16 indices into the global light list.
type Clustered struct {
	*Base

	width         int
	height        int
	numSlices     int
	lightsPerCell int
	minDistance   float32
	maxDistance   float32
	maxLights     int

	workers     int
	pool        worker.DynamicWorkerPool
	baseOptions []BaseBuilderOption

	sliceBounds []float32
	cells       []uint16
	spheres     []viewSphere
	cacheHits   uint64
}

// viewSphere is a light's influence in view space with depth along +Z.
type viewSphere struct {
	center mgl32.Vec3
	radius float32
}

// NewClustered creates a clustered forward-plus builder.
//
// Parameters:
//   - sc: the scene whose lights are collected
//   - buffers: the buffer manager grids are allocated from
//   - options: functional options to configure the grid
//
// Returns:
//   - *Clustered: the new builder
func NewClustered(sc scene.Scene, buffers buffer.Manager, options ...ClusteredBuilderOption) *Clustered {
	c := &Clustered{
		width:         DefaultGridWidth,
		height:        DefaultGridHeight,
		numSlices:     DefaultNumSlices,
		lightsPerCell: DefaultLightsPerCell,
		minDistance:   DefaultMinDistance,
		maxDistance:   DefaultMaxDistance,
		maxLights:     DefaultMaxLights,
		workers:       max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(c)
	}

	switch {
	case c.width < 1 || c.height < 1 || c.numSlices < 1:
		panic(fmt.Sprintf("forwardplus: grid must have at least one cell, got %dx%dx%d", c.width, c.height, c.numSlices))
	case c.lightsPerCell < 1 || c.lightsPerCell >= maxLightIndex:
		panic(fmt.Sprintf("forwardplus: lights per cell must be in [1, %d), got %d", maxLightIndex, c.lightsPerCell))
	case c.minDistance <= 0 || c.maxDistance <= c.minDistance:
		panic(fmt.Sprintf("forwardplus: invalid depth range [%v, %v]", c.minDistance, c.maxDistance))
	case c.maxLights < 1 || c.maxLights > maxLightIndex:
		panic(fmt.Sprintf("forwardplus: max lights must be in [1, %d], got %d", maxLightIndex, c.maxLights))
	}

	c.Base = NewBase(sc, buffers, c.baseOptions...)
	c.sliceBounds = sliceBounds(c.numSlices, c.minDistance, c.maxDistance)
	c.pool = worker.NewDynamicWorkerPool(c.workers, 256, 1*time.Second)
	return c
}

// CollectLights gathers the lights visible to cam, assigns them to grid cells
// and writes the grid and light list buffers. Work is skipped when cam was
// already collected this frame.
//
// Parameters:
//   - cam: the camera being rendered
//
// Returns:
//   - error: error if the buffers cannot be created or written
func (c *Clustered) CollectLights(cam camera.Camera) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	grid, upToDate := c.getCachedGridFor(cam)
	if upToDate && grid.GridBuffer != nil {
		c.cacheHits++
		return nil
	}
	if c.buffers == nil {
		return fmt.Errorf("forwardplus: collect lights for %q: no buffer manager", cam.Name())
	}

	c.gatherLights(cam)
	if err := c.ensureBuffers(grid); err != nil {
		return err
	}
	c.buildGrid(cam)
	if err := c.uploadGrid(grid.GridBuffer); err != nil {
		return err
	}
	if err := c.fillGlobalLightListBuffer(cam, grid.GlobalLightListBuffer); err != nil {
		return err
	}

	c.logger.Debug("forward plus lights collected",
		zap.String("camera", cam.Name()),
		zap.Int("lights", len(c.currentLights)),
		zap.Uint64("frame", grid.LastFrame))
	return nil
}

// CellLights returns the light list indices of one cell as last built.
// Tile (0, 0) is the bottom-left corner of the screen.
//
// Parameters:
//   - x: tile column
//   - y: tile row
//   - slice: depth slice
//
// Returns:
//   - []uint16: indices into CurrentLights, nil for cells outside the grid
func (c *Clustered) CellLights(x, y, slice int) []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x < 0 || x >= c.width || y < 0 || y >= c.height || slice < 0 || slice >= c.numSlices {
		return nil
	}
	idx := c.cellIndex(x, y, slice) * c.cellStride()
	if idx >= len(c.cells) {
		return nil
	}
	n := int(c.cells[idx])
	return append([]uint16(nil), c.cells[idx+1:idx+1+n]...)
}

// SliceForDepth returns the depth slice containing a view-space distance.
// Distances past the far bound map to the last slice.
func (c *Clustered) SliceForDepth(depth float32) int {
	for k := 1; k < len(c.sliceBounds)-1; k++ {
		if depth < c.sliceBounds[k] {
			return k - 1
		}
	}
	return c.numSlices - 1
}

// GridDimensions returns the number of tiles and slices.
func (c *Clustered) GridDimensions() (width, height, numSlices int) {
	return c.width, c.height, c.numSlices
}

// NumCollectedLights returns the size of the last collected light list.
func (c *Clustered) NumCollectedLights() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.currentLights)
}

// CacheHits returns how many CollectLights calls were served from the cache.
func (c *Clustered) CacheHits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheHits
}

// PassProperties returns the forward-plus properties plus the grid layout.
//
// Returns:
//   - *program.Params: the properties, one entry per name
func (c *Clustered) PassProperties() *program.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.passProperties()
	p.Set(PropForwardClustered, 1)
	p.Set(PropClusteredWidth, c.width)
	p.Set(PropClusteredHeight, c.height)
	p.Set(PropClusteredNumSlices, c.numSlices)
	p.Set(PropClusteredLightsPerCell, c.lightsPerCell)
	p.Set(PropClusteredMinDistance, c.minDistance)
	p.Set(PropClusteredMaxDistance, c.maxDistance)
	return p
}

// gatherLights lists the visible positional lights touching the frustum of
// cam, up to maxLights. Caller must hold the mutex.
func (c *Clustered) gatherLights(cam camera.Camera) {
	vpMask := light.DefaultVisibilityFlags
	if vp, ok := cam.LastViewport(); ok {
		vpMask = vp.VisibilityMask
	}
	combined := vpMask & c.scene.VisibilityMask() & light.UserFlagsMask
	frustum := cam.Frustum()
	global := c.scene.GlobalLightList()

	c.currentLights = c.currentLights[:0]
	dropped := 0
	for i := global.NumDirectional(); i < global.Len(); i++ {
		mask := global.VisibilityMask[i]
		if mask&light.LayerVisibility == 0 || mask&combined == 0 {
			continue
		}
		if !frustum.IntersectsSphere(global.BoundingSphere[i]) {
			continue
		}
		if len(c.currentLights) == c.maxLights {
			dropped++
			continue
		}
		c.currentLights = append(c.currentLights, global.Lights[i])
	}
	if dropped > 0 {
		c.logger.Debug("forward plus light list full",
			zap.Int("max", c.maxLights),
			zap.Int("dropped", dropped))
	}
}

// ensureBuffers creates the entry's buffers on first use. Caller must hold
// the mutex.
func (c *Clustered) ensureBuffers(g *CachedGrid) error {
	if g.GridBuffer == nil {
		buf, err := c.buffers.CreateBuffer(buffer.TypeDynamicPersistent, c.numCells(), c.cellStride()*2, nil)
		if err != nil {
			return fmt.Errorf("forwardplus: create grid buffer: %w", err)
		}
		g.GridBuffer = buf
	}
	if g.GlobalLightListBuffer == nil {
		buf, err := c.buffers.CreateBuffer(buffer.TypeDynamicPersistent, c.maxLights, light.NumBytesPerLight, nil)
		if err != nil {
			return fmt.Errorf("forwardplus: create light list buffer: %w", err)
		}
		g.GlobalLightListBuffer = buf
	}
	return nil
}

// buildGrid assigns the current lights to cells, one pool task per depth
// slice. Slices write disjoint cell ranges. Caller must hold the mutex.
func (c *Clustered) buildGrid(cam camera.Camera) {
	stride := c.cellStride()
	sliceLen := c.width * c.height * stride
	need := sliceLen * c.numSlices
	if cap(c.cells) < need {
		c.cells = make([]uint16, need)
	} else {
		c.cells = c.cells[:need]
		clear(c.cells)
	}

	view := cam.ViewMatrix()
	c.spheres = c.spheres[:0]
	for _, l := range c.currentLights {
		p := mgl32.TransformCoordinate(l.Position(), view)
		c.spheres = append(c.spheres, viewSphere{
			center: mgl32.Vec3{p.X(), p.Y(), -p.Z()},
			radius: l.AttenuationRange(),
		})
	}
	proj := newTileProjection(cam)

	var wg sync.WaitGroup
	for k := range c.numSlices {
		wg.Add(1)
		slice := k
		c.pool.SubmitTask(worker.Task{
			ID: slice,
			Do: func() (any, error) {
				defer wg.Done()
				c.buildSlice(slice, proj, c.cells[slice*sliceLen:(slice+1)*sliceLen])
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// buildSlice fills the cells of one depth slice.
func (c *Clustered) buildSlice(k int, proj tileProjection, cells []uint16) {
	d0, d1 := c.sliceBounds[k], c.sliceBounds[k+1]
	stride := c.cellStride()
	w, h := float32(c.width), float32(c.height)

	for li, s := range c.spheres {
		dz := axisDistance(s.center.Z(), d0, d1)
		if dz > s.radius {
			continue
		}
		r2 := s.radius * s.radius
		for y := range c.height {
			ylo, yhi := proj.extent(-1+2*float32(y)/h, -1+2*float32(y+1)/h, d0, d1, proj.tanY, proj.halfH)
			dy := axisDistance(s.center.Y(), ylo, yhi)
			if dy*dy+dz*dz > r2 {
				continue
			}
			for x := range c.width {
				xlo, xhi := proj.extent(-1+2*float32(x)/w, -1+2*float32(x+1)/w, d0, d1, proj.tanX, proj.halfW)
				dx := axisDistance(s.center.X(), xlo, xhi)
				if dx*dx+dy*dy+dz*dz > r2 {
					continue
				}
				cell := cells[(y*c.width+x)*stride : (y*c.width+x+1)*stride]
				if int(cell[0]) < c.lightsPerCell {
					cell[1+cell[0]] = uint16(li)
					cell[0]++
				}
			}
		}
	}
}

// uploadGrid copies the CPU grid into buf. Caller must hold the mutex.
func (c *Clustered) uploadGrid(buf *buffer.Buffer) (err error) {
	m, err := buf.MapScoped(0, c.numCells())
	if err != nil {
		return fmt.Errorf("forwardplus: upload grid: %w", err)
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()
	copy(m.Data, common.SliceToBytes(c.cells))
	return nil
}

func (c *Clustered) numCells() int {
	return c.width * c.height * c.numSlices
}

// cellStride is the number of uint16 entries per cell, count included.
func (c *Clustered) cellStride() int {
	return c.lightsPerCell + 1
}

func (c *Clustered) cellIndex(x, y, slice int) int {
	return (slice*c.height+y)*c.width + x
}

// tileProjection maps NDC tile bounds to view-space extents at a depth.
type tileProjection struct {
	ortho        bool
	tanX, tanY   float32
	halfW, halfH float32
}

func newTileProjection(cam camera.Camera) tileProjection {
	if cam.ProjectionType() == camera.ProjectionOrthographic {
		w, h := cam.OrthoWindow()
		return tileProjection{ortho: true, halfW: w * 0.5, halfH: h * 0.5}
	}
	tanY := math32.Tan(cam.Fov() * 0.5)
	return tileProjection{tanX: tanY * cam.Aspect(), tanY: tanY}
}

// extent returns the view-space range covered by the NDC interval
// [ndc0, ndc1] between the depths d0 and d1.
func (p tileProjection) extent(ndc0, ndc1, d0, d1, tan, half float32) (lo, hi float32) {
	if p.ortho {
		return ndc0 * half, ndc1 * half
	}
	s0, s1 := d0*tan, d1*tan
	return min(ndc0*s0, ndc0*s1), max(ndc1*s0, ndc1*s1)
}

// axisDistance returns how far v lies outside [lo, hi].
func axisDistance(v, lo, hi float32) float32 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}

// sliceBounds returns numSlices+1 depth bounds. The first slice starts at
// the eye and ends at minDistance; the rest grow exponentially to
// maxDistance.
func sliceBounds(numSlices int, minDistance, maxDistance float32) []float32 {
	bounds := make([]float32, numSlices+1)
	if numSlices == 1 {
		bounds[1] = maxDistance
		return bounds
	}
	ratio := maxDistance / minDistance
	for i := 1; i <= numSlices; i++ {
		bounds[i] = minDistance * math32.Pow(ratio, float32(i-1)/float32(numSlices-1))
	}
	bounds[numSlices] = maxDistance
	return bounds
}
