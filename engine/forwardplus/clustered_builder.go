package forwardplus

// ClusteredBuilderOption is a functional option for configuring a Clustered.
type ClusteredBuilderOption func(*Clustered)

// WithGridSize sets the number of screen tiles and depth slices.
//
// Parameters:
//   - width: tiles across the screen
//   - height: tiles down the screen
//   - numSlices: depth slices
//
// Returns:
//   - ClusteredBuilderOption: option function to apply
func WithGridSize(width, height, numSlices int) ClusteredBuilderOption {
	return func(c *Clustered) {
		c.width = width
		c.height = height
		c.numSlices = numSlices
	}
}

// WithLightsPerCell sets how many lights one cell can reference. Lights past
// the limit are left out of the cell.
//
// Parameters:
//   - n: the cell capacity
//
// Returns:
//   - ClusteredBuilderOption: option function to apply
func WithLightsPerCell(n int) ClusteredBuilderOption {
	return func(c *Clustered) {
		c.lightsPerCell = n
	}
}

// WithDepthRange sets where the exponential depth slices start and end.
//
// Parameters:
//   - minDistance: end of the first slice
//   - maxDistance: end of the last slice
//
// Returns:
//   - ClusteredBuilderOption: option function to apply
func WithDepthRange(minDistance, maxDistance float32) ClusteredBuilderOption {
	return func(c *Clustered) {
		c.minDistance = minDistance
		c.maxDistance = maxDistance
	}
}

// WithMaxLights sets the capacity of the global light list buffer.
//
// Parameters:
//   - n: the number of lights, at most 65536
//
// Returns:
//   - ClusteredBuilderOption: option function to apply
func WithMaxLights(n int) ClusteredBuilderOption {
	return func(c *Clustered) {
		c.maxLights = n
	}
}

// WithWorkers sets the number of worker goroutines building grid slices.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - ClusteredBuilderOption: option function to apply
func WithWorkers(n int) ClusteredBuilderOption {
	return func(c *Clustered) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithBaseOptions forwards options to the embedded Base.
//
// Parameters:
//   - options: base options such as WithLogger
//
// Returns:
//   - ClusteredBuilderOption: option function to apply
func WithBaseOptions(options ...BaseBuilderOption) ClusteredBuilderOption {
	return func(c *Clustered) {
		c.baseOptions = append(c.baseOptions, options...)
	}
}
