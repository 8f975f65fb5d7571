package probe

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrProbeNotOwned is returned when destroying a probe the collector did not
// create or already destroyed.
var ErrProbeNotOwned = errors.New("probe: probe does not belong to this collector, or was already freed")

// MaxCubeProbes is the number of probes blended at once.
const MaxCubeProbes = 4

// Blend shader parameter names.
const (
	ParamWeights      = "weights"
	ParamPacked3x3Mat = "packed3x3Mat"
	ParamLodLevel     = "lodLevel"
)

// collectorImpl is the implementation of the Collector interface.
type collectorImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	probes       []Probe
	blank        Probe
	blendCubemap *buffer.Texture

	collected         [MaxCubeProbes]Probe
	ndfs              [MaxCubeProbes]float32
	blendFactors      [MaxCubeProbes]float32
	numCollected      int
	requiresTrilinear bool
	currentMip        int

	params *program.Params
}

// Collector owns cubemap probes and picks the ones to blend for a camera
// position. Thread-safe for concurrent access.
type Collector interface {
	// CreateProbe creates a probe owned by the collector.
	//
	// Parameters:
	//   - options: probe builder options
	//
	// Returns:
	//   - Probe: the new probe
	CreateProbe(options ...ProbeBuilderOption) Probe

	// DestroyProbe releases a probe created by CreateProbe. The probe list is
	// left untouched on error.
	//
	// Parameters:
	//   - p: the probe to destroy
	//
	// Returns:
	//   - error: ErrProbeNotOwned if the probe belongs elsewhere
	DestroyProbe(p Probe) error

	// DestroyAllProbes releases every owned probe.
	DestroyAllProbes()

	// Probes returns a copy of the owned probes.
	Probes() []Probe

	// Update collects up to MaxCubeProbes probes whose areas contain camPos,
	// keeping the ones with the lowest normalized distance, and recomputes
	// the blend weights. A camera inside a probe's inner region uses that
	// probe alone. Unused entries hold the blank probe.
	//
	// Parameters:
	//   - camPos: world-space camera position
	Update(camPos mgl32.Vec3)

	// CalculateBlendFactors recomputes the weights of the first numProbes
	// collected probes from their normalized distances.
	//
	// Parameters:
	//   - numProbes: number of collected probes, at most MaxCubeProbes
	CalculateBlendFactors(numProbes int)

	// CollectedProbes returns the probes picked by the last Update.
	CollectedProbes() [MaxCubeProbes]Probe

	// NumCollected returns how many entries of CollectedProbes are real probes.
	NumCollected() int

	// BlendFactors returns the weight of each collected probe. Weights sum to
	// one whenever a probe was collected.
	BlendFactors() [MaxCubeProbes]float32

	// RelativeOrientations returns the rotation of probes 1 to 3 relative to
	// probe 0, as the blend shader samples them.
	RelativeOrientations() [MaxCubeProbes - 1]mgl32.Mat3

	// RequiresTrilinear reports whether a collected probe has a different mip
	// count than the blend target.
	RequiresTrilinear() bool

	// PassPreExecute returns the mip level to sample from each collected
	// probe for the next blend pass, then advances to the next target mip.
	//
	// Returns:
	//   - [MaxCubeProbes]float32: per-probe source mip level
	PassPreExecute() [MaxCubeProbes]float32

	// Params returns the blend shader parameters set by Update and
	// PassPreExecute.
	Params() *program.Params

	// BlankProbe returns the probe standing in for unused entries.
	BlankProbe() Probe
}

var _ Collector = &collectorImpl{}

// NewCollector creates a Collector blending into blendCubemap.
//
// Parameters:
//   - blendCubemap: the target the collected probes are blended into
//   - options: functional options to configure the collector
//
// Returns:
//   - Collector: the new collector
func NewCollector(blendCubemap *buffer.Texture, options ...CollectorBuilderOption) Collector {
	if blendCubemap == nil {
		panic("probe: blend cubemap must not be nil")
	}
	c := &collectorImpl{
		mu:           &sync.Mutex{},
		logger:       zap.NewNop(),
		blendCubemap: blendCubemap,
		params:       program.NewParams(),
	}
	for _, option := range options {
		option(c)
	}
	if c.blank == nil {
		c.blank = NewProbe(WithName("blank"), WithTexture(buffer.NewTexture("blank_probe", 1, 1)))
	}
	for i := range c.collected {
		c.collected[i] = c.blank
	}
	return c
}

func (c *collectorImpl) CreateProbe(options ...ProbeBuilderOption) Probe {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := NewProbe(options...)
	c.probes = append(c.probes, p)
	return p
}

func (c *collectorImpl) DestroyProbe(p Probe) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := slices.Index(c.probes, p)
	if idx < 0 {
		return fmt.Errorf("destroy probe: %w", ErrProbeNotOwned)
	}
	last := len(c.probes) - 1
	c.probes[idx] = c.probes[last]
	c.probes[last] = nil
	c.probes = c.probes[:last]
	return nil
}

func (c *collectorImpl) DestroyAllProbes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.probes)
	c.probes = c.probes[:0]
}

func (c *collectorImpl) Probes() []Probe {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.probes)
}

func (c *collectorImpl) Update(camPos mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentMip = 0
	for i := range MaxCubeProbes {
		c.collected[i] = nil
		c.ndfs[i] = math.MaxFloat32
	}

	n := 0
	for _, p := range c.probes {
		posLS := p.ToLocal(camPos)
		if !p.AreaLS().Contains(posLS) {
			continue
		}
		ndf := p.NDF(posLS)
		if ndf <= 0 {
			// Inside the inner region: this probe alone.
			c.ndfs[0] = ndf
			c.collected[0] = p
			n = 1
			break
		}

		idx := n
		if n >= MaxCubeProbes {
			// Replace the highest NDF above ndf, which may be none. Ties go
			// to the last index.
			highest := float32(-1)
			idx = MaxCubeProbes
			for i := range MaxCubeProbes {
				if ndf < c.ndfs[i] && c.ndfs[i] >= highest {
					highest = c.ndfs[i]
					idx = i
				}
			}
		}
		if idx < MaxCubeProbes {
			c.ndfs[idx] = ndf
			c.collected[idx] = p
			if n < MaxCubeProbes {
				n++
			}
		}
	}

	for i := n; i < MaxCubeProbes; i++ {
		c.collected[i] = c.blank
	}
	c.numCollected = n
	c.calculateBlendFactors(n)

	blendMips := c.blendCubemap.NumMipmaps
	c.requiresTrilinear = false
	for i := range n {
		if numMipmaps(c.collected[i].Texture()) != blendMips {
			c.requiresTrilinear = true
		}
	}

	rel := c.relativeOrientations()
	packed := make([]float32, 0, 9*len(rel))
	for _, m := range rel {
		packed = append(packed, m[:]...)
	}
	c.params.Set(ParamWeights, slices.Clone(c.blendFactors[:]))
	c.params.Set(ParamPacked3x3Mat, packed)

	c.logger.Debug("probes collected",
		zap.Int("probes", len(c.probes)),
		zap.Int("collected", n),
		zap.Bool("trilinear", c.requiresTrilinear))
}

func (c *collectorImpl) CalculateBlendFactors(numProbes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calculateBlendFactors(numProbes)
}

func (c *collectorImpl) CollectedProbes() [MaxCubeProbes]Probe {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collected
}

func (c *collectorImpl) NumCollected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numCollected
}

func (c *collectorImpl) BlendFactors() [MaxCubeProbes]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blendFactors
}

func (c *collectorImpl) RelativeOrientations() [MaxCubeProbes - 1]mgl32.Mat3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relativeOrientations()
}

func (c *collectorImpl) RequiresTrilinear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requiresTrilinear
}

func (c *collectorImpl) PassPreExecute() [MaxCubeProbes]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var mips [MaxCubeProbes]float32
	blendLevels := float32(c.blendCubemap.NumMipmaps) + 1
	for i, p := range c.collected {
		mips[i] = float32(c.currentMip) * (float32(numMipmaps(p.Texture())) + 1) / blendLevels
	}
	c.params.Set(ParamLodLevel, slices.Clone(mips[:]))
	c.currentMip++
	return mips
}

func (c *collectorImpl) Params() *program.Params {
	return c.params
}

func (c *collectorImpl) BlankProbe() Probe {
	return c.blank
}

// calculateBlendFactors modulates each probe's normalized NDF weight, which
// is zero at the boundary, with its reverse NDF weight, which is one at the
// centre, then renormalizes. Caller must hold the mutex.
func (c *collectorImpl) calculateBlendFactors(numProbes int) {
	if numProbes < 0 || numProbes > MaxCubeProbes {
		panic(fmt.Sprintf("probe: cannot blend %d probes, max is %d", numProbes, MaxCubeProbes))
	}
	clear(c.blendFactors[:])
	switch numProbes {
	case 0:
		return
	case 1:
		c.blendFactors[0] = 1
		return
	}

	var sumNdf float32
	for i := range numProbes {
		sumNdf += c.ndfs[i]
	}
	var invSumNdf, invRevSumNdf float32
	if sumNdf > 0 {
		invSumNdf = 1 / sumNdf
	}
	if rev := float32(numProbes) - sumNdf; rev > 0 {
		invRevSumNdf = 1 / rev
	}

	var sumBlend float32
	for i := range numProbes {
		f := 1 - c.ndfs[i]*invSumNdf
		f *= (1 - c.ndfs[i]) * invRevSumNdf
		c.blendFactors[i] = f
		sumBlend += f
	}
	if sumBlend <= 0 {
		sumBlend = 1
	}
	for i := range numProbes {
		c.blendFactors[i] /= sumBlend
	}
}

// relativeOrientations rotates probes 1 to 3 into the space of probe 0.
// Caller must hold the mutex.
func (c *collectorImpl) relativeOrientations() [MaxCubeProbes - 1]mgl32.Mat3 {
	var out [MaxCubeProbes - 1]mgl32.Mat3
	invFirst := c.collected[0].Orientation().Inverse()
	for i := 1; i < MaxCubeProbes; i++ {
		out[i-1] = invFirst.Mul(c.collected[i].Orientation()).Mat4().Mat3()
	}
	return out
}

func numMipmaps(tex *buffer.Texture) int {
	if tex == nil {
		return 0
	}
	return tex.NumMipmaps
}
