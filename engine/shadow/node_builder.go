package shadow

import "go.uber.org/zap"

// NodeBuilderOption is a functional option for configuring a Node.
type NodeBuilderOption func(*nodeImpl)

// WithLogger sets the logger used by the node.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) NodeBuilderOption {
	return func(n *nodeImpl) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithPassExecutor sets the function that renders a registered scene pass
// during Update.
//
// Parameters:
//   - executor: called once per registered pass; nil keeps the no-op default
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithPassExecutor(executor PassExecutor) NodeBuilderOption {
	return func(n *nodeImpl) {
		if executor != nil {
			n.executor = executor
		}
	}
}

// WithFinalTargetSize sets the final target size that textures without an
// explicit size are scaled from until FinalTargetResized is called.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithFinalTargetSize(width, height int) NodeBuilderOption {
	return func(n *nodeImpl) {
		if width > 0 && height > 0 {
			n.targetWidth = width
			n.targetHeight = height
		}
	}
}
