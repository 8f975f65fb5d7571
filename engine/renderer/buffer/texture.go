package buffer

// Texture is a GPU texture as seen by the lighting code. Shadow nodes compare
// textures by pointer to find shared render targets.
type Texture struct {
	Name   string
	Width  int
	Height int

	// NumMipmaps is the number of mip levels below the base level.
	NumMipmaps int

	// Handle is the backend object, if any.
	Handle any
}

// NewTexture describes a texture of the given size.
func NewTexture(name string, width, height int) *Texture {
	return &Texture{Name: name, Width: width, Height: height}
}
