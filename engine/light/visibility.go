package light

// Visibility mask layout. The two highest bits are reserved layers; the rest
// are free for user-defined culling groups matched against viewport and scene
// masks.
const (
	// LayerVisibility is set in a light's mask while the light is shown.
	LayerVisibility uint32 = 1 << 30

	// LayerShadowCaster is set in a light's mask while it casts shadows.
	LayerShadowCaster uint32 = 1 << 31

	// UserFlagsMask selects the user-defined bits of a visibility mask.
	UserFlagsMask = ^(LayerVisibility | LayerShadowCaster)

	// DefaultVisibilityFlags enables every user bit.
	DefaultVisibilityFlags = UserFlagsMask
)
