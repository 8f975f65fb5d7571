package loader

import (
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger sets the logger. A nil logger keeps the no-op default.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRenderQueue sets the render queue of imported casters. Node extras
// may override it per caster.
//
// Parameters:
//   - rq: the render queue id
//
// Returns:
//   - LoaderBuilderOption: a function that applies the render queue option to a loader
func WithRenderQueue(rq uint8) LoaderBuilderOption {
	return func(l *loader) {
		l.renderQueue = rq
	}
}

// WithVisibilityFlags sets the visibility flags of imported casters.
//
// Parameters:
//   - flags: the visibility flags
//
// Returns:
//   - LoaderBuilderOption: a function that applies the flags option to a loader
func WithVisibilityFlags(flags uint32) LoaderBuilderOption {
	return func(l *loader) {
		l.visibilityFlags = flags
	}
}

// WithCasters pre-populates the cache with casters under key.
//
// Parameters:
//   - key: the cache key
//   - casters: the casters to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the casters option to a loader
func WithCasters(key string, casters []scene.Caster) LoaderBuilderOption {
	return func(l *loader) {
		l.casterCache[key] = casters
	}
}
