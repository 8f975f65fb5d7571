package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/forwardplus"
	"github.com/Carmen-Shannon/oxy-lumen/engine/probe"
	"github.com/Carmen-Shannon/oxy-lumen/engine/profiler"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/Carmen-Shannon/oxy-lumen/engine/shadow"
	"github.com/Carmen-Shannon/oxy-lumen/engine/window"
	"go.uber.org/zap"
)

// ErrQuit is returned by Run when Quit stopped the loop.
var ErrQuit = errors.New("engine: compositor quit")

// compositor implements the Compositor interface.
type compositor struct {
	mu     *sync.Mutex
	logger *zap.Logger

	scene     scene.Scene
	buffers   buffer.Manager
	node      shadow.Node
	clustered *forwardplus.Clustered
	programs  program.Manager
	probes    probe.Collector
	window    window.Window

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderCallback   func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	framesRendered uint64

	quitChannel chan struct{}
	quitOnce    sync.Once
}

// Compositor runs the per-frame lighting work: it refreshes the scene's
// light list, assigns shadow casters and places their cameras, builds the
// forward-plus light grid, blends cubemap probes and advances the buffer
// frame. Only the scene and buffer manager are required; every other stage
// is skipped when not configured.
type Compositor interface {
	// RenderFrame runs one frame for cam. The buffer manager and scene always
	// advance to the next frame, even when a stage fails.
	//
	// Parameters:
	//   - cam: the viewer
	//
	// Returns:
	//   - error: the errors of every failed stage, joined
	RenderFrame(cam camera.Camera) error

	// Run renders frames until ctx is done, Quit is called, the window closes
	// or frames have been rendered. It must run on the thread owning the GL
	// context when the GL backend is used.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//   - cam: the viewer
	//   - frames: number of frames to render, 0 for no limit
	//
	// Returns:
	//   - error: the first frame error, ErrQuit, or ctx.Err()
	Run(ctx context.Context, cam camera.Camera, frames int) error

	// Resize propagates a final target size to the shadow node and the
	// aspect ratio of the scene's cameras.
	//
	// Parameters:
	//   - width: target width in pixels
	//   - height: target height in pixels
	Resize(width, height int)

	// SetRenderCallback registers the function called after each frame.
	//
	// Parameters:
	//   - callback: receives the frame delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit caps the frame rate. Pass 0 to uncap.
	//
	// Parameters:
	//   - fps: maximum frames per second
	SetRenderFrameLimit(fps float64)

	// EnableProfiler enables periodic frame stats.
	EnableProfiler()

	// DisableProfiler disables periodic frame stats.
	DisableProfiler()

	// FramesRendered returns the number of completed RenderFrame calls.
	FramesRendered() uint64

	// Scene returns the scene the compositor lights.
	Scene() scene.Scene

	// ShadowNode returns the shadow node, or nil.
	ShadowNode() shadow.Node

	// Clustered returns the forward-plus light grid, or nil.
	Clustered() *forwardplus.Clustered

	// Quit stops Run. Safe to call multiple times.
	Quit()

	// Release frees the grid buffers, the shadow node cameras, the cached
	// programs and the buffer manager.
	//
	// Returns:
	//   - error: release errors, joined
	Release() error
}

var _ Compositor = &compositor{}

// NewCompositor creates a Compositor for sc whose buffers come from buffers.
//
// Parameters:
//   - sc: the scene; must not be nil
//   - buffers: the buffer manager; must not be nil
//   - options: functional options adding the optional stages
//
// Returns:
//   - Compositor: the compositor
func NewCompositor(sc scene.Scene, buffers buffer.Manager, options ...CompositorBuilderOption) Compositor {
	if sc == nil || buffers == nil {
		panic("engine: NewCompositor: scene and buffer manager are required")
	}
	c := &compositor{
		mu:          &sync.Mutex{},
		logger:      zap.NewNop(),
		scene:       sc,
		buffers:     buffers,
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.profiler == nil {
		c.profiler = profiler.NewProfiler(profiler.WithLogger(c.logger))
	}
	if c.node != nil {
		sc.SetCurrentShadowNode(c.node)
	}
	if c.window != nil {
		c.window.SetResizeCallback(c.Resize)
	}
	return c
}

func (c *compositor) RenderFrame(cam camera.Camera) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	lights := c.scene.UpdateGlobalLightList()

	if c.node != nil {
		c.scene.SetCurrentShadowNode(c.node)
		c.node.Update(cam, cam)
	}

	if c.clustered != nil {
		if err := c.clustered.CollectLights(cam); err != nil {
			errs = errors.Join(errs, fmt.Errorf("engine: collect lights: %w", err))
		}
	}

	if c.probes != nil {
		c.probes.Update(cam.Position())
	}

	if c.programs != nil {
		p, err := c.programs.ActiveProgram()
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("engine: active program: %w", err))
		} else if binder, ok := p.(program.UniformBinder); ok && c.probes != nil {
			c.probes.Params().Bind(binder, c.logger)
		}
	}

	c.buffers.AdvanceFrame()
	c.scene.AdvanceFrame()
	c.framesRendered++

	if c.profilingEnabled {
		stats := profiler.LightingStats{}
		if c.node != nil {
			stats.ActiveCasters = c.node.NumActiveShadowCastingLights()
		}
		if c.clustered != nil {
			stats.CollectedLights = c.clustered.NumCollectedLights()
			stats.CacheHits = c.clustered.CacheHits()
		}
		c.profiler.RecordLighting(stats)
		c.profiler.Tick()
	}

	if errs != nil {
		c.logger.Warn("frame incomplete",
			zap.Uint64("frame", c.framesRendered),
			zap.Int("lights", lights.Len()),
			zap.Error(errs))
	}
	return errs
}

func (c *compositor) Run(ctx context.Context, cam camera.Camera, frames int) (err error) {
	// A panicking stage stops the loop instead of the process.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("render loop recovered from panic", zap.Any("panic", r))
			err = fmt.Errorf("engine: render loop panic: %v", r)
		}
	}()

	lastRender := time.Now()
	for n := 0; frames <= 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quitChannel:
			return ErrQuit
		default:
		}
		if c.window != nil && !c.window.PollEvents() {
			return nil
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := c.RenderFrame(cam); err != nil {
			return err
		}
		if c.renderCallback != nil {
			c.renderCallback(dt)
		}

		if c.renderFrameLimit > 0 {
			if remaining := c.renderFrameLimit - time.Since(lastRender); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
	return nil
}

func (c *compositor) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Shadow cameras keep the aspect of their shadow maps.
	shadowCams := make(map[camera.Camera]struct{})
	if c.node != nil {
		c.node.FinalTargetResized(width, height)
		for i := 0; c.node.IsShadowMapIdxInValidRange(i); i++ {
			shadowCams[c.node.ShadowMapCamera(i)] = struct{}{}
		}
	}
	for _, cam := range c.scene.Cameras() {
		if _, ok := shadowCams[cam]; !ok {
			cam.SetAspect(float32(width) / float32(height))
		}
	}
	c.logger.Debug("final target resized", zap.Int("width", width), zap.Int("height", height))
}

func (c *compositor) SetRenderCallback(callback func(deltaTime float32)) {
	c.renderCallback = callback
}

func (c *compositor) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		c.renderFrameLimit = 0
		return
	}
	c.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (c *compositor) EnableProfiler() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profilingEnabled = true
}

func (c *compositor) DisableProfiler() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profilingEnabled = false
}

func (c *compositor) FramesRendered() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framesRendered
}

func (c *compositor) Scene() scene.Scene {
	return c.scene
}

func (c *compositor) ShadowNode() shadow.Node {
	return c.node
}

func (c *compositor) Clustered() *forwardplus.Clustered {
	return c.clustered
}

func (c *compositor) Quit() {
	c.quitOnce.Do(func() {
		close(c.quitChannel)
	})
}

func (c *compositor) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	if c.clustered != nil {
		errs = errors.Join(errs, c.clustered.Release())
	}
	if c.node != nil {
		if c.scene.CurrentShadowNode() == c.node {
			c.scene.SetCurrentShadowNode(nil)
		}
		errs = errors.Join(errs, c.node.Release())
	}
	if c.programs != nil {
		c.programs.Release()
	}
	c.buffers.Release()
	return errs
}
