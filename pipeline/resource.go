package pipeline

import (
	"fmt"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

// Format is the storage format of a texture or attachment.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatRG16F
	FormatR32F
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRG16F:
		return "RG16F"
	case FormatR32F:
		return "R32F"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Channels is the number of meaningful components.
func (f Format) Channels() int {
	switch f {
	case FormatRG16F:
		return 2
	case FormatR32F:
		return 1
	}
	return 4
}

// Filter selects texture minification/magnification.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
	// FilterTrilinear is linear filtering across a mip chain.
	FilterTrilinear
)

// Wrap selects the addressing mode outside [0,1].
type Wrap int

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// TextureSpec describes a 2D texture. Samples > 1 makes it multisampled;
// Levels > 1 allocates a mip chain.
type TextureSpec struct {
	Name    string
	Width   int
	Height  int
	Format  Format
	Filter  Filter
	Wrap    Wrap
	Levels  int
	Samples int
}

// CubemapSpec describes a cubemap of square faces.
type CubemapSpec struct {
	Name   string
	Size   int
	Format Format
	Filter Filter
	Levels int
}

// AttachmentSpec is one color attachment of a render target.
type AttachmentSpec struct {
	Format Format
	Filter Filter
	Wrap   Wrap
}

// TargetSpec describes a render target. Cube targets own cubemap color
// attachments of Width x Width faces, with Levels mips.
type TargetSpec struct {
	Name         string
	Width        int
	Height       int
	Samples      int
	Color        []AttachmentSpec
	DepthStencil bool
	Cube         bool
	Levels       int
}

// SampleCount is Samples clamped to at least one.
func (s TargetSpec) SampleCount() int {
	if s.Samples < 1 {
		return 1
	}
	return s.Samples
}

// MipSize is the edge length of mip level of a dimension.
func MipSize(size, level int) int {
	s := size >> level
	if s < 1 {
		return 1
	}
	return s
}

// Target is an allocated render target. Color handles are owned by the
// target until detached. Impl carries the device's own state.
type Target struct {
	Spec     TargetSpec
	Color    []core.Handle
	Complete bool
	Impl     any
}

// Size returns the target's dimensions.
func (t *Target) Size() (int, int) {
	return t.Spec.Width, t.Spec.Height
}

// Matches reports whether the target was allocated at w x h.
func (t *Target) Matches(w, h int) bool {
	return t != nil && t.Spec.Width == w && t.Spec.Height == h
}

// Detach transfers ownership of color attachment i to the caller; freeing
// the target afterwards leaves that texture alive.
func (t *Target) Detach(i int) core.Handle {
	h := t.Color[i]
	t.Color[i] = 0
	return h
}

// Image is a readback of one texture level, rows bottom to top.
type Image struct {
	Width  int
	Height int
	Pix    []core.Color
}

// At returns the texel at x, y with y = 0 the bottom row.
func (im Image) At(x, y int) core.Color {
	return im.Pix[y*im.Width+x]
}

// Resources is the Resource Layer: allocation of textures, cubemaps and
// render targets with explicit format, filter and wrap policy.
type Resources interface {
	// NewTexture allocates a 2D texture; pix, when non-nil, fills level 0
	// bottom row first.
	NewTexture(spec TextureSpec, pix []core.Color) (core.Handle, error)
	NewCubemap(spec CubemapSpec) (core.Handle, error)
	// NewTarget always returns the target; an incomplete one comes back
	// with Complete = false and an error wrapping ErrIncomplete.
	NewTarget(spec TargetSpec) (*Target, error)
	FreeTarget(t *Target)
	FreeTexture(h core.Handle)
	ReadTexture(h core.Handle, level int) (Image, error)
	ReadCubeFace(h core.Handle, face math.CubeFace, level int) (Image, error)
}

// HDRAttachments are the two shading outputs: full color and bright channel.
func HDRAttachments() []AttachmentSpec {
	return []AttachmentSpec{
		{Format: FormatRGBA16F, Filter: FilterLinear, Wrap: WrapClamp},
		{Format: FormatRGBA16F, Filter: FilterLinear, Wrap: WrapClamp},
	}
}

// G-buffer attachment indices.
const (
	GPosition = iota // rgb world position, a bloom flag
	GNormal          // rgb world normal, a bloom brightness
	GAlbedo          // rgb albedo, a shadow darkness
	GMaterial        // r roughness, g metalness, b ao, a shadow bias
	GEmissive        // rgb emissive, a coverage
	GBufferAttachments
)

// GBufferSpec lays out the deferred geometry buffer.
func GBufferSpec(w, h int) TargetSpec {
	color := make([]AttachmentSpec, GBufferAttachments)
	for i := range color {
		color[i] = AttachmentSpec{Format: FormatRGBA16F, Filter: FilterNearest, Wrap: WrapClamp}
	}
	return TargetSpec{Name: "gbuffer", Width: w, Height: h, Samples: 1, Color: color, DepthStencil: true}
}
