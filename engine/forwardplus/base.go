// Package forwardplus assigns lights to screen-space grids so a forward
// renderer shades each pixel with only the lights reaching it. Grids and the
// view-space light list are cached per camera and rebuilt once per frame.
package forwardplus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

// ErrGridNotUpToDate is returned when reading grid buffers for a camera whose
// lights were not collected this frame.
var ErrGridNotUpToDate = errors.New("forwardplus: grid not up to date, collect lights first")

// aspectEpsilon is the aspect ratio difference under which two cameras share
// a cache entry.
const aspectEpsilon = 1e-6

// Pass property names set for the shader generator.
const (
	PropForwardPlus               = "forward_plus"
	PropForwardPlusDebug          = "forward_plus_debug"
	PropForwardPlusFadeAttenRange = "forward_plus_fade_attenuation_range"
	PropVPos                      = "vpos"
)

// CachedGrid is the per-camera state of a forward-plus grid. Entries are
// keyed on the camera, its reflection flag, its aspect ratio and the shadow
// node in use.
type CachedGrid struct {
	Camera      camera.Camera
	Reflection  bool
	AspectRatio float32
	ShadowNode  scene.ShadowNode
	LastFrame   uint64

	GridBuffer            *buffer.Buffer
	GlobalLightListBuffer *buffer.Buffer
}

// matches reports whether the entry belongs to cam under the given shadow node.
func (g *CachedGrid) matches(cam camera.Camera, shadowNode scene.ShadowNode) bool {
	return g.Camera == cam &&
		g.Reflection == cam.IsReflected() &&
		math32.Abs(g.AspectRatio-cam.Aspect()) < aspectEpsilon &&
		g.ShadowNode == shadowNode
}

// Base holds what every forward-plus variant shares: the grid cache, the
// current light list and the GPU buffers written from it. Safe for
// concurrent use.
type Base struct {
	mu     *sync.Mutex
	logger *zap.Logger

	scene   scene.Scene
	buffers buffer.Manager

	cache         []*CachedGrid
	currentLights []light.Light

	debugMode            bool
	fadeAttenuationRange bool
}

// NewBase creates the shared forward-plus state.
//
// Parameters:
//   - sc: the scene whose lights and shadow node are used
//   - buffers: the buffer manager grids are allocated from
//   - options: functional options to configure the base
//
// Returns:
//   - *Base: the new base
func NewBase(sc scene.Scene, buffers buffer.Manager, options ...BaseBuilderOption) *Base {
	if sc == nil {
		panic("forwardplus: scene must not be nil")
	}
	b := &Base{
		mu:                   &sync.Mutex{},
		logger:               zap.NewNop(),
		scene:                sc,
		buffers:              buffers,
		fadeAttenuationRange: true,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// GetCachedGridFor finds the cache entry for cam and stamps it with the
// current frame, creating an empty entry on a miss.
//
// Parameters:
//   - cam: the camera being rendered
//
// Returns:
//   - *CachedGrid: the entry for cam
//   - bool: true if the entry was already stamped this frame
func (b *Base) GetCachedGridFor(cam camera.Camera) (*CachedGrid, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getCachedGridFor(cam)
}

// PeekCachedGridFor finds the cache entry for cam without stamping or
// inserting.
//
// Parameters:
//   - cam: the camera being rendered
//
// Returns:
//   - *CachedGrid: the entry for cam, or nil
//   - bool: true if the entry is up to date this frame
func (b *Base) PeekCachedGridFor(cam camera.Camera) (*CachedGrid, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peekCachedGridFor(cam)
}

// GridBuffer returns the cell buffer built for cam this frame.
//
// Parameters:
//   - cam: the camera being rendered
//
// Returns:
//   - *buffer.Buffer: the grid buffer
//   - error: ErrGridNotUpToDate if lights were not collected for cam this frame
func (b *Base) GridBuffer(cam camera.Camera) (*buffer.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.peekCachedGridFor(cam)
	if !ok || g.GridBuffer == nil {
		return nil, fmt.Errorf("grid buffer for %q: %w", cam.Name(), ErrGridNotUpToDate)
	}
	return g.GridBuffer, nil
}

// GlobalLightListBuffer returns the view-space light list written for cam
// this frame.
//
// Parameters:
//   - cam: the camera being rendered
//
// Returns:
//   - *buffer.Buffer: the light list buffer
//   - error: ErrGridNotUpToDate if lights were not collected for cam this frame
func (b *Base) GlobalLightListBuffer(cam camera.Camera) (*buffer.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.peekCachedGridFor(cam)
	if !ok || g.GlobalLightListBuffer == nil {
		return nil, fmt.Errorf("light list buffer for %q: %w", cam.Name(), ErrGridNotUpToDate)
	}
	return g.GlobalLightListBuffer, nil
}

// CurrentLights returns a copy of the lights last collected.
func (b *Base) CurrentLights() []light.Light {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]light.Light(nil), b.currentLights...)
}

// FillGlobalLightListBuffer writes the current light list into buf in the
// view space of cam. Nothing is mapped when the list is empty.
//
// Parameters:
//   - cam: the camera whose view matrix is applied
//   - buf: a dynamic buffer of light.NumBytesPerLight sized elements
//
// Returns:
//   - error: error if mapping or flushing fails
func (b *Base) FillGlobalLightListBuffer(cam camera.Camera, buf *buffer.Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fillGlobalLightListBuffer(cam, buf)
}

// PassProperties returns the shader generator properties of forward plus.
//
// Returns:
//   - *program.Params: the properties, one entry per name
func (b *Base) PassProperties() *program.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.passProperties()
}

// Release unmaps and destroys every cached buffer. Cache entries survive
// without buffers.
//
// Returns:
//   - error: every unmap or destroy failure, joined
func (b *Base) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releaseBuffers()
}

// ChangeDevice releases every cached buffer through the current manager and
// switches to buffers. A nil manager detaches the base until the next change.
//
// Parameters:
//   - buffers: the new buffer manager, or nil
//
// Returns:
//   - error: every unmap or destroy failure, joined
func (b *Base) ChangeDevice(buffers buffer.Manager) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.releaseBuffers()
	b.buffers = buffers
	return err
}

// frameCount returns the buffer manager's frame. Caller must hold the mutex.
func (b *Base) frameCount() uint64 {
	if b.buffers == nil {
		return 0
	}
	return b.buffers.FrameCount()
}

// getCachedGridFor is GetCachedGridFor. Caller must hold the mutex.
func (b *Base) getCachedGridFor(cam camera.Camera) (*CachedGrid, bool) {
	frame := b.frameCount()
	shadowNode := b.scene.CurrentShadowNode()
	for _, g := range b.cache {
		if g.matches(cam, shadowNode) {
			upToDate := g.LastFrame == frame
			g.LastFrame = frame
			return g, upToDate
		}
	}

	g := &CachedGrid{
		Camera:      cam,
		Reflection:  cam.IsReflected(),
		AspectRatio: cam.Aspect(),
		ShadowNode:  shadowNode,
		LastFrame:   frame,
	}
	b.cache = append(b.cache, g)
	b.logger.Debug("forward plus grid cached",
		zap.String("camera", cam.Name()),
		zap.Int("entries", len(b.cache)))
	return g, false
}

// peekCachedGridFor is PeekCachedGridFor. Caller must hold the mutex.
func (b *Base) peekCachedGridFor(cam camera.Camera) (*CachedGrid, bool) {
	shadowNode := b.scene.CurrentShadowNode()
	for _, g := range b.cache {
		if g.matches(cam, shadowNode) {
			return g, g.LastFrame == b.frameCount()
		}
	}
	return nil, false
}

// fillGlobalLightListBuffer is FillGlobalLightListBuffer. Caller must hold
// the mutex.
func (b *Base) fillGlobalLightListBuffer(cam camera.Camera, buf *buffer.Buffer) (err error) {
	n := len(b.currentLights)
	if n == 0 {
		return nil
	}
	if buf.BytesPerElement() != light.NumBytesPerLight {
		return fmt.Errorf("forwardplus: light list %q has %d byte elements, want %d",
			buf.Name(), buf.BytesPerElement(), light.NumBytesPerLight)
	}

	m, err := buf.MapScoped(0, n)
	if err != nil {
		return fmt.Errorf("forwardplus: fill light list: %w", err)
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()

	light.MarshalLightBuffer(b.currentLights, cam.ViewMatrix(), m.Data)
	m.SetFlushRange(0, n)
	return nil
}

func (b *Base) passProperties() *program.Params {
	p := program.NewParams()
	p.Set(PropForwardPlus, 1)
	p.Set(PropForwardPlusDebug, boolProperty(b.debugMode))
	p.Set(PropForwardPlusFadeAttenRange, boolProperty(b.fadeAttenuationRange))
	p.Set(PropVPos, 1)
	return p
}

// releaseBuffers unmaps and destroys every cached buffer. Caller must hold
// the mutex.
func (b *Base) releaseBuffers() error {
	var errs error
	for _, g := range b.cache {
		errs = errors.Join(errs,
			b.destroyBuffer(g.GridBuffer),
			b.destroyBuffer(g.GlobalLightListBuffer))
		g.GridBuffer = nil
		g.GlobalLightListBuffer = nil
	}
	return errs
}

// destroyBuffer unmaps buf if it is mapped, then destroys it even when the
// unmap fails.
func (b *Base) destroyBuffer(buf *buffer.Buffer) (err error) {
	if buf == nil || b.buffers == nil {
		return nil
	}
	defer func() {
		err = errors.Join(err, b.buffers.DestroyBuffer(buf))
	}()
	if buf.MappingState() != buffer.MappingUnmapped {
		return buf.Unmap(buffer.UnmapAll, 0, 0)
	}
	return nil
}

func boolProperty(v bool) int {
	if v {
		return 1
	}
	return 0
}
