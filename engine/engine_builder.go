package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-lumen/engine/forwardplus"
	"github.com/Carmen-Shannon/oxy-lumen/engine/probe"
	"github.com/Carmen-Shannon/oxy-lumen/engine/profiler"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-lumen/engine/shadow"
	"github.com/Carmen-Shannon/oxy-lumen/engine/window"
	"go.uber.org/zap"
)

// CompositorBuilderOption is a functional option for configuring a Compositor.
// Use the With* functions to create options that are applied directly to the compositor instance.
type CompositorBuilderOption func(*compositor)

// WithLogger sets the logger used by the compositor and its default profiler.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) CompositorBuilderOption {
	return func(c *compositor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithShadowNode adds the shadow stage and makes node the scene's current
// shadow node.
//
// Parameters:
//   - node: the shadow node
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithShadowNode(node shadow.Node) CompositorBuilderOption {
	return func(c *compositor) {
		c.node = node
	}
}

// WithClustered adds the forward-plus light grid stage.
//
// Parameters:
//   - clustered: the light grid
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithClustered(clustered *forwardplus.Clustered) CompositorBuilderOption {
	return func(c *compositor) {
		c.clustered = clustered
	}
}

// WithPrograms adds program activation. The probe blend parameters are
// bound to the active program when it accepts uniforms.
//
// Parameters:
//   - programs: the program cache
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithPrograms(programs program.Manager) CompositorBuilderOption {
	return func(c *compositor) {
		c.programs = programs
	}
}

// WithProbes adds the cubemap probe blending stage.
//
// Parameters:
//   - probes: the probe collector
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithProbes(probes probe.Collector) CompositorBuilderOption {
	return func(c *compositor) {
		c.probes = probes
	}
}

// WithWindow polls w between frames and forwards its resizes.
//
// Parameters:
//   - w: the window carrying the GL context
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithWindow(w window.Window) CompositorBuilderOption {
	return func(c *compositor) {
		c.window = w
	}
}

// WithProfiler replaces the default profiler and enables it.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) CompositorBuilderOption {
	return func(c *compositor) {
		c.profiler = p
		c.profilingEnabled = p != nil
	}
}

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithProfiling(enabled bool) CompositorBuilderOption {
	return func(c *compositor) {
		c.profilingEnabled = enabled
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the loop (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - CompositorBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) CompositorBuilderOption {
	return func(c *compositor) {
		if fps <= 0 {
			c.renderFrameLimit = 0
			return
		}
		c.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
