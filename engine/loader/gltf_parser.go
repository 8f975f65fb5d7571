package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Common errors returned by the parser
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
)

// gltfParser loads glTF JSON or GLB data and reads position accessors.
type gltfParser struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

// parseFile loads a glTF or GLB file. GLB is detected from the extension or
// the magic number.
func (p *gltfParser) parseFile(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".glb" || (len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

// parseReader parses a document from r. External buffer URIs resolve against
// the working directory.
func (p *gltfParser) parseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if isGLB {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

func (p *gltfParser) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	return p.setDocument(&doc)
}

// parseGLB parses a GLB binary container.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParser) parseGLB(data []byte) error {
	if len(data) < 12 {
		return errors.New("GLB file too small")
	}
	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var chunkHeader gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunkHeader.ChunkLength) > int64(r.Len()) {
			return fmt.Errorf("chunk of %d bytes exceeds the file", chunkHeader.ChunkLength)
		}

		chunkData := make([]byte, chunkHeader.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return fmt.Errorf("failed to read chunk data: %w", err)
		}

		switch chunkHeader.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = chunkData
		case gltfGLBChunkBIN:
			p.glbBinaryChunk = chunkData
		}
	}
	if jsonData == nil {
		return errMissingJSONChunk
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	return p.setDocument(&doc)
}

func (p *gltfParser) setDocument(doc *gltfDocument) error {
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	p.document = doc
	return nil
}

// buffer returns the bytes of buffer i, loading them on first use. Buffers
// are only needed for position accessors without bounds.
func (p *gltfParser) buffer(i int) ([]byte, error) {
	if i < 0 || i >= len(p.document.Buffers) {
		return nil, fmt.Errorf("buffer index %d out of range", i)
	}
	buf := &p.document.Buffers[i]
	if buf.Data != nil {
		return buf.Data, nil
	}

	switch {
	case buf.URI == "" && i == 0 && p.glbBinaryChunk != nil:
		buf.Data = p.glbBinaryChunk
	case buf.URI == "":
		return nil, fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
	case strings.HasPrefix(buf.URI, "data:"):
		data, err := loadDataURI(buf.URI)
		if err != nil {
			return nil, fmt.Errorf("buffer %d: %w", i, err)
		}
		buf.Data = data
	default:
		data, err := os.ReadFile(filepath.Join(p.baseDir, buf.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to load buffer file %q: %w", buf.URI, err)
		}
		buf.Data = data
	}

	if len(buf.Data) < buf.ByteLength {
		return nil, fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
	}
	return buf.Data, nil
}

// loadDataURI decodes a base64 data URI.
// Format: data:[<mediatype>][;base64],<data>
func loadDataURI(uri string) ([]byte, error) {
	header, dataStr, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errInvalidBufferURI
	}
	if !strings.Contains(header, "base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", header)
	}
	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// positionBounds returns the min and max of a VEC3 FLOAT accessor, from its
// declared bounds when present and from its data otherwise.
func (p *gltfParser) positionBounds(accessorIndex int) (lo, hi [3]float32, err error) {
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return lo, hi, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != gltfAccessorTypeVec3 || acc.ComponentType != gltfComponentTypeFloat {
		return lo, hi, fmt.Errorf("accessor %d is not VEC3 FLOAT: type=%s, componentType=%d", accessorIndex, acc.Type, acc.ComponentType)
	}
	if len(acc.Min) == 3 && len(acc.Max) == 3 {
		return [3]float32(acc.Min), [3]float32(acc.Max), nil
	}

	positions, err := p.readVec3Accessor(acc)
	if err != nil {
		return lo, hi, fmt.Errorf("accessor %d: %w", accessorIndex, err)
	}
	if len(positions) == 0 {
		return lo, hi, fmt.Errorf("accessor %d has no positions", accessorIndex)
	}
	lo, hi = positions[0], positions[0]
	for _, v := range positions[1:] {
		for k := range 3 {
			lo[k] = min(lo[k], v[k])
			hi[k] = max(hi[k], v[k])
		}
	}
	return lo, hi, nil
}

func (p *gltfParser) readVec3Accessor(acc *gltfAccessor) ([][3]float32, error) {
	if acc.BufferView == nil {
		return nil, errors.New("accessor has no bufferView")
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, fmt.Errorf("bufferView index %d out of range", *acc.BufferView)
	}
	bv := &p.document.BufferViews[*acc.BufferView]
	data, err := p.buffer(bv.Buffer)
	if err != nil {
		return nil, err
	}

	const elementSize = 12
	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	start := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 && start+(acc.Count-1)*stride+elementSize > len(data) {
		return nil, errBufferSizeMismatch
	}

	result := make([][3]float32, acc.Count)
	for i := range result {
		off := start + i*stride
		for k := range 3 {
			result[i][k] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4*k:]))
		}
	}
	return result, nil
}
