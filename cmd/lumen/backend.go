package main

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/glbackend"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/wgpubackend"
	"github.com/Carmen-Shannon/oxy-lumen/engine/window"
	"go.uber.org/zap"
)

// backend is the device-specific part of a run.
type backend struct {
	kind     string
	logger   *zap.Logger
	buffers  buffer.Manager
	programs program.Manager
	window   window.Window

	wgpuDevice  *wgpubackend.BufferDevice
	glShaders   []*glbackend.Shader
	wgpuShaders []*wgpubackend.Shader
}

// newBackend builds the buffer manager and program cache for cfg.Backend.
// The gl backend opens a window first since every GL call needs its context.
func newBackend(cfg *Config, log *zap.Logger) (*backend, error) {
	b := &backend{kind: cfg.Backend, logger: log}
	var device buffer.Device
	linker := program.Linker(program.HeadlessLinker)

	switch cfg.Backend {
	case BackendMemory:
		device = buffer.NewMemoryDevice(true)

	case BackendGL:
		w, err := window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithVisible(cfg.Window.Visible),
		)
		if err != nil {
			return nil, fmt.Errorf("gl backend: %w", err)
		}
		b.window = w
		dev, err := glbackend.NewBufferDevice(glbackend.WithLogger(log))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("gl backend: %w", err), b.close())
		}
		device = dev
		linker = glbackend.NewLinker(log)

	case BackendWGPU:
		dev, err := wgpubackend.NewBufferDevice(wgpubackend.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("wgpu backend: %w", err)
		}
		b.wgpuDevice = dev
		device = dev

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	b.buffers = buffer.NewManager(device, buffer.WithLogger(log))
	b.programs = program.NewManager(linker, program.WithLogger(log))
	return b, nil
}

// loadShaders pre-processes the lit shaders with the grid's pass properties
// and binds them to the program cache. The memory backend only checks that
// the sources expand.
func (b *backend) loadShaders(props *program.Params) error {
	switch b.kind {
	case BackendWGPU:
		src, err := b.expand(shader.LanguageWGSL, "lit.wgsl", props)
		if err != nil {
			return err
		}
		s, err := wgpubackend.CompileShader(b.wgpuDevice, "lit.wgsl", src)
		if err != nil {
			return err
		}
		b.wgpuShaders = append(b.wgpuShaders, s)
		b.programs.SetActiveVertex(s)
		b.programs.SetActiveFragment(s)
		return nil
	}

	for id, src := range []struct {
		stage program.Stage
		file  string
	}{
		{program.StageVertex, "lit.vert"},
		{program.StageFragment, "lit.frag"},
	} {
		code, err := b.expand(shader.LanguageGLSL, src.file, props)
		if err != nil {
			return err
		}
		if b.kind != BackendGL {
			b.programs.SetActive(src.stage, &program.HeadlessShader{ShaderID: uint32(id + 1), ShaderName: src.file})
			continue
		}
		s, err := glbackend.CompileShader(src.stage, src.file, code)
		if err != nil {
			return err
		}
		b.glShaders = append(b.glShaders, s)
		b.programs.SetActive(src.stage, s)
	}
	return nil
}

func (b *backend) expand(language shader.Language, file string, props *program.Params) (string, error) {
	data, err := assets.ReadFile("assets/" + file)
	if err != nil {
		return "", err
	}
	pp := shader.NewPreProcessor(language)
	src, err := pp.Process(string(data), props)
	if err != nil {
		return "", fmt.Errorf("%s: %w", file, err)
	}
	for _, d := range pp.Declarations() {
		b.logger.Debug("shader binding",
			zap.String("shader", file),
			zap.Stringer("language", language),
			zap.Int("binding", *d.Binding),
			zap.String("name", string(d.Args[1])))
	}
	return src, nil
}

// close releases what the compositor does not own: the shader objects and
// the window.
func (b *backend) close() error {
	for _, s := range b.glShaders {
		s.Release()
	}
	for _, s := range b.wgpuShaders {
		s.Release()
	}
	if b.window != nil {
		return b.window.Close()
	}
	return nil
}
