// annotations.go defines the annotation syntax understood by the lumen shader
// pre-processor. Annotations are single-line comments prefixed with @lumen:
// that inject the GPU struct definitions shared with Go, declare the buffers
// the lighting code fills, and expand pass properties into constants.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a comment line.
const annotationPrefix = "@lumen:"

// AnnotationType identifies the kind of annotation parsed from a comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the source of a registered struct.
	//
	// Syntax: //@lumen:include <struct_type>
	//
	// Example: //@lumen:include light
	annotationTypeInclude AnnotationType = "include"

	// annotationTypeDefines expands the pass properties handed to Process
	// into one constant per property, in name order.
	//
	// Syntax: //@lumen:defines
	annotationTypeDefines AnnotationType = "defines"

	// AnnotationTypeBinding declares a buffer binding and records it in the
	// declarations list so the caller can match buffers to binding slots.
	//
	// Syntax: //@lumen:binding <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@lumen:binding 0 0 storage_read lights array<light>
	AnnotationTypeBinding AnnotationType = "binding"
)

// Annotation is a single parsed @lumen: annotation.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = struct type key
	//   - binding: [0] = address space, [1] = var name, [2] = type key
	Args []AnnotationArg

	// Line is the 1-based source line the annotation was found on.
	Line int

	// Group and Binding are set for binding annotations only.
	Group   *int
	Binding *int
}

// AnnotationArg is a typed argument of an annotation.
type AnnotationArg string

// Type arguments. Struct types can be included; every type can be bound,
// optionally wrapped in array<>.
const (
	// AnnotationArgLight is the forward-plus Light struct.
	AnnotationArgLight AnnotationArg = "light"

	// AnnotationArgIndex is a bare 32-bit unsigned word. Grid cells are
	// packed two 16-bit light indices per word.
	AnnotationArgIndex AnnotationArg = "index"
)

// Address space arguments of binding annotations.
const (
	annotationArgStorageTypeUniform   AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgLight,
}

var validBindingTypes = []AnnotationArg{
	AnnotationArgLight,
	AnnotationArgIndex,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// ElementType returns the type key of a binding annotation with any array<>
// wrapper removed, and whether it was wrapped.
func (a Annotation) ElementType() (AnnotationArg, bool) {
	if len(a.Args) < 3 {
		return "", false
	}
	inner, ok := strings.CutPrefix(string(a.Args[2]), "array<")
	if !ok {
		return a.Args[2], false
	}
	return AnnotationArg(strings.TrimSuffix(inner, ">")), true
}

// parseAnnotation parses line. It returns nil without error when the line
// carries no annotation.
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @lumen annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @lumen include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @lumen include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil

	case annotationTypeDefines:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @lumen defines annotation takes no arguments", lineNum)
		}
		return &Annotation{Type: annotationTypeDefines, Line: lineNum}, nil

	case AnnotationTypeBinding:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @lumen binding annotation requires five arguments (group, binding, address space, name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil || group < 0 {
			return nil, fmt.Errorf("line %d: invalid group number %q in @lumen binding annotation", lineNum, args[1])
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil || binding < 0 {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @lumen binding annotation", lineNum, args[2])
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @lumen binding annotation", lineNum, args[3])
		}
		a := &Annotation{
			Type:    AnnotationTypeBinding,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}
		elem, _ := a.ElementType()
		if !slices.Contains(validBindingTypes, elem) {
			return nil, fmt.Errorf("line %d: unknown type %q in @lumen binding annotation", lineNum, args[5])
		}
		return a, nil
	}
	return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
}
