package light

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// NumBytesPerLight is the size of one light in the forward-plus global light
// list: six padded vec3 fields of four float32 each.
const NumBytesPerLight = 6 * 4 * 4

// GPULightSource is the canonical WGSL definition of the forward-plus Light
// struct. Matches GPULight layout exactly (96 bytes, std430 aligned).
//
//go:embed assets/forward_plus_light.wgsl
var GPULightSource string

// GPULightSourceGLSL is the GLSL counterpart of GPULightSource, laid out for
// std430 buffers.
//
//go:embed assets/forward_plus_light.glsl
var GPULightSourceGLSL string

// GPULight is the GPU-aligned representation of a single light in the
// forward-plus global light list. All spatial fields are in view space.
// Size: 96 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position      [3]float32 // offset  0: view-space position
	LightType     float32    // offset 12: 0 = directional, 1 = point, 2 = spot
	Diffuse       [3]float32 // offset 16: diffuse * power scale
	_pad0         float32    // offset 28
	Specular      [3]float32 // offset 32: specular * power scale
	_pad1         float32    // offset 44
	Attenuation   [4]float32 // offset 48: range, linear, quadratic, 1/range
	SpotDirection [3]float32 // offset 64: view-space spot direction
	_pad2         float32    // offset 76
	SpotParams    [3]float32 // offset 80: 1/(cos(in/2)-cos(out/2)), cos(out/2), falloff
	_pad3         float32    // offset 92
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, NumBytesPerLight)
	g.MarshalInto(buf)
	return buf
}

// MarshalInto writes the light into dst, which must hold at least
// NumBytesPerLight bytes. Padding words are written as zero.
//
// Parameters:
//   - dst: destination, typically a mapped GPU buffer region
func (g *GPULight) MarshalInto(dst []byte) {
	words := [24]float32{
		g.Position[0], g.Position[1], g.Position[2], g.LightType,
		g.Diffuse[0], g.Diffuse[1], g.Diffuse[2], 0,
		g.Specular[0], g.Specular[1], g.Specular[2], 0,
		g.Attenuation[0], g.Attenuation[1], g.Attenuation[2], g.Attenuation[3],
		g.SpotDirection[0], g.SpotDirection[1], g.SpotDirection[2], 0,
		g.SpotParams[0], g.SpotParams[1], g.SpotParams[2], 0,
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(w))
	}
}

// Unmarshal reads a light previously written by Marshal.
//
// Parameters:
//   - src: at least NumBytesPerLight bytes
//
// Returns:
//   - error: error if src is too short
func (g *GPULight) Unmarshal(src []byte) error {
	if len(src) < NumBytesPerLight {
		return fmt.Errorf("light: need %d bytes to unmarshal, got %d", NumBytesPerLight, len(src))
	}
	f := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	g.Position = [3]float32{f(0), f(1), f(2)}
	g.LightType = f(3)
	g.Diffuse = [3]float32{f(4), f(5), f(6)}
	g.Specular = [3]float32{f(8), f(9), f(10)}
	g.Attenuation = [4]float32{f(12), f(13), f(14), f(15)}
	g.SpotDirection = [3]float32{f(16), f(17), f(18)}
	g.SpotParams = [3]float32{f(20), f(21), f(22)}
	return nil
}

// ToGPULight converts a Light into its view-space GPU representation.
//
// Parameters:
//   - l: the Light to convert
//   - view: the camera view matrix
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light, view mgl32.Mat4) GPULight {
	pos := mgl32.TransformCoordinate(l.Position(), view)
	dir := view.Mat3().Mul3x1(l.Direction())
	diffuse := l.Diffuse().Mul(l.PowerScale())
	specular := l.Specular().Mul(l.PowerScale())

	attenRange := l.AttenuationRange()
	cosInner := math32.Cos(l.SpotInner() * 0.5)
	cosOuter := math32.Cos(l.SpotOuter() * 0.5)

	return GPULight{
		Position:  pos,
		LightType: float32(l.Type()),
		Diffuse:   diffuse,
		Specular:  specular,
		Attenuation: [4]float32{
			attenRange,
			l.AttenuationLinear(),
			l.AttenuationQuadratic(),
			1.0 / attenRange,
		},
		SpotDirection: dir,
		SpotParams: [3]float32{
			1.0 / (cosInner - cosOuter),
			cosOuter,
			l.SpotFalloff(),
		},
	}
}

// MarshalLightBuffer writes every light of lights into dst in view space.
// dst must hold len(lights) * NumBytesPerLight bytes.
//
// Parameters:
//   - lights: the lights to write, in list order
//   - view: the camera view matrix
//   - dst: destination bytes
func MarshalLightBuffer(lights []Light, view mgl32.Mat4, dst []byte) {
	for i, l := range lights {
		g := ToGPULight(l, view)
		g.MarshalInto(dst[i*NumBytesPerLight:])
	}
}
