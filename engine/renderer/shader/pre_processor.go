// pre_processor.go implements the lumen shader pre-processor. It scans GLSL or
// WGSL source for @lumen: annotations, replaces them with generated code, and
// collects the binding declarations so buffers can be matched to slots
// without string lookups in the shader source.
package shader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
)

// Language is the shading language a PreProcessor emits.
type Language int

const (
	// LanguageGLSL emits GLSL 4.3 declarations for the GL backend.
	LanguageGLSL Language = iota

	// LanguageWGSL emits WGSL declarations for the WebGPU backend.
	LanguageWGSL
)

// String returns the language name.
func (l Language) String() string {
	switch l {
	case LanguageGLSL:
		return "glsl"
	case LanguageWGSL:
		return "wgsl"
	}
	return fmt.Sprintf("language(%d)", int(l))
}

// registryEntry pairs an embedded struct source with the type name emitted in
// binding declarations. Scalar types have no source.
type registryEntry struct {
	Source string
	Type   string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	language       Language
	structRegistry map[AnnotationArg]registryEntry

	// declarations holds the binding annotations of the last Process call.
	declarations []Annotation
}

// PreProcessor expands @lumen: annotations in shader source.
type PreProcessor interface {
	// Process replaces every annotation in source. include annotations become
	// the registered struct source, defines annotations become one constant
	// per entry of defines, and binding annotations become buffer
	// declarations. The declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the annotated shader source
	//   - defines: pass properties expanded by defines annotations; may be nil
	//
	// Returns:
	//   - string: the processed source
	//   - error: a malformed annotation, or a declaration the language cannot express
	Process(source string, defines *program.Params) (string, error)

	// Declarations returns the binding annotations collected by the last
	// Process call, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations of the last call
	Declarations() []Annotation

	// Language returns the language the pre-processor emits.
	Language() Language
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor emitting the given language.
//
// Parameters:
//   - language: LanguageGLSL or LanguageWGSL
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(language Language) PreProcessor {
	p := &preProcessor{language: language}
	switch language {
	case LanguageGLSL:
		p.structRegistry = map[AnnotationArg]registryEntry{
			AnnotationArgLight: {Source: light.GPULightSourceGLSL, Type: "Light"},
			AnnotationArgIndex: {Type: "uint"},
		}
	case LanguageWGSL:
		p.structRegistry = map[AnnotationArg]registryEntry{
			AnnotationArgLight: {Source: light.GPULightSource, Type: "Light"},
			AnnotationArgIndex: {Type: "u32"},
		}
	default:
		panic(fmt.Sprintf("shader: unknown language %d", int(language)))
	}
	return p
}

func (p *preProcessor) Process(source string, defines *program.Params) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			out = append(out, strings.TrimRight(p.structRegistry[a.Args[0]].Source, "\n"))
		case annotationTypeDefines:
			if defines == nil {
				continue
			}
			for _, name := range defines.Names() {
				v, _ := defines.Get(name)
				c, err := p.constant(name, v)
				if err != nil {
					return "", fmt.Errorf("line %d: %w", a.Line, err)
				}
				out = append(out, c)
			}
		case AnnotationTypeBinding:
			decl, err := p.binding(a)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", a.Line, err)
			}
			out = append(out, decl)
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) Language() Language {
	return p.language
}

// binding renders one binding annotation.
func (p *preProcessor) binding(a *Annotation) (string, error) {
	space, name := a.Args[0], string(a.Args[1])
	elem, isArray := a.ElementType()
	typ := p.structRegistry[elem].Type

	if p.language == LanguageWGSL {
		if isArray {
			typ = fmt.Sprintf("array<%s>", typ)
		}
		var addr string
		switch space {
		case annotationArgStorageTypeUniform:
			addr = "var<uniform>"
		case annotationArgStorageTypeRead:
			addr = "var<storage, read>"
		default:
			addr = "var<storage, read_write>"
		}
		return fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addr, name, typ), nil
	}

	if *a.Group != 0 {
		return "", fmt.Errorf("glsl has no bind groups, %q is in group %d", name, *a.Group)
	}
	member := name
	if isArray {
		member += "[]"
	}
	switch space {
	case annotationArgStorageTypeUniform:
		if isArray {
			return "", fmt.Errorf("uniform block %q cannot hold an unsized array", name)
		}
		return fmt.Sprintf("layout(std140, binding = %d) uniform %s_block { %s %s; };", *a.Binding, name, typ, member), nil
	case annotationArgStorageTypeRead:
		return fmt.Sprintf("layout(std430, binding = %d) readonly buffer %s_block { %s %s; };", *a.Binding, name, typ, member), nil
	}
	return fmt.Sprintf("layout(std430, binding = %d) buffer %s_block { %s %s; };", *a.Binding, name, typ, member), nil
}

// constant renders one pass property.
func (p *preProcessor) constant(name string, value any) (string, error) {
	var lit, wgslType string
	switch v := value.(type) {
	case bool:
		lit, wgslType = strconv.FormatBool(v), "bool"
		if p.language == LanguageGLSL {
			lit = strconv.Itoa(boolToInt(v))
		}
	case int:
		lit, wgslType = strconv.Itoa(v), "i32"
	case int32:
		lit, wgslType = strconv.FormatInt(int64(v), 10), "i32"
	case uint32:
		lit, wgslType = strconv.FormatUint(uint64(v), 10)+"u", "u32"
	case float32:
		lit, wgslType = floatLiteral(float64(v)), "f32"
	case float64:
		lit, wgslType = floatLiteral(v), "f32"
	default:
		return "", fmt.Errorf("property %q has unsupported type %T", name, value)
	}

	if p.language == LanguageWGSL {
		return fmt.Sprintf("const %s: %s = %s;", name, wgslType, lit), nil
	}
	return fmt.Sprintf("#define %s %s", name, lit), nil
}

// floatLiteral formats v so both languages parse it as a float.
func floatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 32)
	if !math.IsInf(v, 0) && !math.IsNaN(v) && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
