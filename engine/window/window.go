package window

import (
	"fmt"
)

// Window owns a platform window whose only job is to carry an OpenGL
// context for the GL backend. It is hidden unless WithVisible is set.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// MakeContextCurrent binds the window's GL context to the calling thread.
	MakeContextCurrent()

	// SwapBuffers presents the back buffer of a visible window.
	SwapBuffers()

	// PollEvents processes pending window events without blocking.
	//
	// Returns:
	//   - bool: false once the window was asked to close
	PollEvents() bool

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// Close destroys the window and its context.
	//
	// Returns:
	//   - error: error if the window was never created
	Close() error

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int

	// GLVersion returns the requested context version.
	GLVersion() (major, minor int)
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title string

	// width and height track the framebuffer size, which differs from the
	// requested size on high-DPI displays.
	width  int
	height int

	visible  bool
	glMajor  int
	glMinor  int
	debugCtx bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	onResize func(width, height int)
}

var _ Window = &engineWindow{}

// NewWindow creates a window with a GL 4.3 core context made current on the
// calling thread, which is locked to its OS thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
//   - error: error if GLFW or the context cannot be initialized
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:   "lumen",
		width:   1280,
		height:  720,
		glMajor: 4,
		glMinor: 3,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("window: create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) MakeContextCurrent() {
	platformMakeContextCurrent(w)
}

func (w *engineWindow) SwapBuffers() {
	platformSwapBuffers(w)
}

func (w *engineWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

func (w *engineWindow) GLVersion() (int, int) {
	return w.glMajor, w.glMinor
}
