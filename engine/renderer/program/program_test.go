package program

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLinker(links *int) Linker {
	return LinkerFunc(func(key uint32, shaders Stages) (Program, error) {
		*links++
		return HeadlessLinker.Link(key, shaders)
	})
}

func TestSuperFastHash(t *testing.T) {
	assert.Zero(t, SuperFastHash(nil, 123))

	a := SuperFastHash([]byte{1, 0, 0, 0}, 0)
	assert.NotZero(t, a)
	assert.Equal(t, a, SuperFastHash([]byte{1, 0, 0, 0}, 0))
	assert.NotEqual(t, a, SuperFastHash([]byte{2, 0, 0, 0}, 0))
	assert.NotEqual(t, a, SuperFastHash([]byte{1, 0, 0, 0}, 7))

	// Every tail length takes its own branch.
	for n := 1; n <= 7; n++ {
		assert.NotZero(t, SuperFastHash([]byte("abcdefg")[:n], 0), "length %d", n)
	}
}

func TestSuperFastHashKnownAnswers(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		seed uint32
		want uint32
	}{
		{name: "tail 1", data: []byte("a"), want: 0x115ea782},
		{name: "tail 2", data: []byte("ab"), want: 0x516b8b44},
		{name: "tail 3", data: []byte("abc"), want: 0xd2be198a},
		{name: "one block", data: []byte("abcd"), want: 0xdad8b8db},
		{name: "block and tail 1", data: []byte("abcde"), want: 0x51ed072e},
		{name: "block and tail 2", data: []byte("abcdef"), want: 0x963b9dda},
		{name: "block and tail 3", data: []byte("abcdefg"), want: 0xf071c3ed},
		{name: "signed tail byte of 3", data: []byte{0x01, 0x02, 0xff}, want: 0x994a9cb8},
		{name: "signed single byte", data: []byte{0x80}, want: 0xf30533c4},
		{name: "seeded", data: []byte{0x10, 0x20, 0x30, 0x40, 0xfe, 0xdc, 0xba}, seed: 0x9e3779b9, want: 0xb1bda6b8},
		{name: "shader id", data: []byte{1, 0, 0, 0}, want: 0x192bda6b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuperFastHash(tt.data, tt.seed))
		})
	}

	v := &HeadlessShader{ShaderID: 1}
	f := &HeadlessShader{ShaderID: 2}
	assert.Equal(t, uint32(0x1dd09f46), Key(Stages{StageVertex: v, StageFragment: f}))
}

func TestKeyIsStageOrderSensitive(t *testing.T) {
	v := &HeadlessShader{ShaderID: 1}
	f := &HeadlessShader{ShaderID: 2}

	assert.Zero(t, Key(Stages{}))
	assert.NotEqual(t, Key(Stages{StageVertex: v, StageFragment: f}), Key(Stages{StageVertex: f, StageFragment: v}))
}

func TestActiveProgramCache(t *testing.T) {
	links := 0
	m := NewManager(countingLinker(&links))

	v1 := &HeadlessShader{ShaderID: 1, ShaderName: "v1"}
	f1 := &HeadlessShader{ShaderID: 2, ShaderName: "f1"}
	f2 := &HeadlessShader{ShaderID: 3, ShaderName: "f2"}

	m.SetActiveVertex(v1)
	m.SetActiveFragment(f1)
	p1, err := m.ActiveProgram()
	require.NoError(t, err)
	require.NotNil(t, p1)

	m.SetActiveFragment(f2)
	p2, err := m.ActiveProgram()
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)

	m.SetActiveFragment(f1)
	p3, err := m.ActiveProgram()
	require.NoError(t, err)
	assert.Same(t, p1, p3)

	assert.Equal(t, 2, links)
	assert.Equal(t, 2, m.NumPrograms())
	assert.Equal(t, int64(2), p1.(*HeadlessProgram).Activations())
}

func TestSetActiveSameShaderKeepsProgram(t *testing.T) {
	m := NewManager(HeadlessLinker)
	v := &HeadlessShader{ShaderID: 9}
	m.SetActiveVertex(v)

	p, err := m.ActiveProgram()
	require.NoError(t, err)

	m.SetActiveVertex(v)
	again, err := m.ActiveProgram()
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, int64(1), p.(*HeadlessProgram).Activations(), "cached active program is returned without reactivation")
}

func TestNoShadersYieldsNilProgram(t *testing.T) {
	links := 0
	m := NewManager(countingLinker(&links))

	p, err := m.ActiveProgram()
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Zero(t, links)
}

func TestLinkFailureIsNotCached(t *testing.T) {
	fail := errors.New("link failed")
	m := NewManager(LinkerFunc(func(uint32, Stages) (Program, error) {
		return nil, fail
	}))
	m.SetActiveCompute(&HeadlessShader{ShaderID: 4})

	_, err := m.ActiveProgram()
	assert.ErrorIs(t, err, fail)
	assert.Zero(t, m.NumPrograms())
}

func TestRelease(t *testing.T) {
	m := NewManager(HeadlessLinker)
	m.SetActiveVertex(&HeadlessShader{ShaderID: 1})
	_, err := m.ActiveProgram()
	require.NoError(t, err)

	m.Release()
	assert.Zero(t, m.NumPrograms())
}

func TestParamsBindSkipsRejectedValues(t *testing.T) {
	p := &HeadlessProgram{}
	params := NewParams()
	params.Set("a_scale", float32(2))
	params.Set("b_bad", "not a uniform")
	params.Set("c_count", int32(3))

	assert.Equal(t, 2, params.Bind(p, nil))
	v, ok := p.Uniform("a_scale")
	require.True(t, ok)
	assert.Equal(t, float32(2), v)
	_, ok = p.Uniform("b_bad")
	assert.False(t, ok)
}
