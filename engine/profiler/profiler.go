package profiler

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LightingStats are the per-frame lighting counters reported with the frame
// stats. Values are those of the last recorded frame.
type LightingStats struct {
	// ActiveCasters is the number of shadow-casting lights given a slot.
	ActiveCasters int

	// CollectedLights is the number of lights written to the light list.
	CollectedLights int

	// CacheHits counts forward-plus grid cache hits since start.
	CacheHits uint64
}

// Profiler tracks frame rate, memory and lighting statistics. Stats are
// logged through zap once per interval.
type Profiler struct {
	mu     *sync.Mutex
	logger *zap.Logger
	now    func() time.Time

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	lighting LightingStats
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordLighting stores the lighting counters of the current frame.
func (p *Profiler) RecordLighting(stats LightingStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lighting = stats
}

// Tick should be called once per frame. It logs FPS, heap usage, allocation
// rate, GC pauses and the lighting counters when the update interval has
// elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	seconds := elapsed.Seconds()
	var fps float64
	if seconds > 0 {
		fps = float64(p.frameCount) / seconds
	}

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	var allocRateMB float64
	if seconds > 0 {
		allocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds
	}

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("frame stats",
		zap.Float64("fps", fps),
		zap.Int("frames", p.frameCount),
		zap.Float64("heapMB", allocMB),
		zap.Float64("allocRateMBs", allocRateMB),
		zap.Uint32("gc", gcCount),
		zap.Uint64("gcLastPauseUs", lastPauseUs),
		zap.Uint64("gcMaxPauseUs", maxPauseUs),
		zap.Float64("sysMB", sysMB),
		zap.Int("activeCasters", p.lighting.ActiveCasters),
		zap.Int("collectedLights", p.lighting.CollectedLights),
		zap.Uint64("gridCacheHits", p.lighting.CacheHits))

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
