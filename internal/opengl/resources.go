package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// texture is the bookkeeping for one GL texture name. The name itself is
// the core.Handle handed out.
type texture struct {
	name    string
	target  uint32
	width   int
	height  int
	levels  int
	samples int
	format  pipeline.Format
}

// fbo is the device state behind a pipeline.Target.
type fbo struct {
	id  uint32
	rbo uint32
}

// resources is the OpenGL Resource Layer.
type resources struct {
	textures map[core.Handle]*texture
	// material maps uploaded on first draw, freed with the device.
	uploaded []*scene.Texture
}

func newResources() *resources {
	return &resources{textures: map[core.Handle]*texture{}}
}

// ── Formats ──────────────────────────────────────────────────────────────────

// glFormat returns the internal format, pixel format and pixel type.
func glFormat(f pipeline.Format) (int32, uint32, uint32) {
	switch f {
	case pipeline.FormatRGBA16F:
		return gl.RGBA16F, gl.RGBA, gl.FLOAT
	case pipeline.FormatRG16F:
		return gl.RG16F, gl.RG, gl.FLOAT
	case pipeline.FormatR32F:
		return gl.R32F, gl.RED, gl.FLOAT
	}
	return gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE
}

func glFilter(f pipeline.Filter, levels int) (minFilter, magFilter int32) {
	switch f {
	case pipeline.FilterNearest:
		return gl.NEAREST, gl.NEAREST
	case pipeline.FilterTrilinear:
		if levels > 1 {
			return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
		}
	}
	return gl.LINEAR, gl.LINEAR
}

func glWrap(w pipeline.Wrap) int32 {
	if w == pipeline.WrapRepeat {
		return gl.REPEAT
	}
	return gl.CLAMP_TO_EDGE
}

// ── Textures ─────────────────────────────────────────────────────────────────

func (r *resources) NewTexture(spec pipeline.TextureSpec, pix []core.Color) (core.Handle, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return 0, fmt.Errorf("texture %q: size %dx%d", spec.Name, spec.Width, spec.Height)
	}
	levels := max(spec.Levels, 1)
	samples := max(spec.Samples, 1)
	if pix != nil && len(pix) != spec.Width*spec.Height {
		return 0, fmt.Errorf("texture %q: %d texels for %dx%d", spec.Name, len(pix), spec.Width, spec.Height)
	}
	internal, format, typ := glFormat(spec.Format)

	var id uint32
	gl.GenTextures(1, &id)
	t := &texture{
		name: spec.Name, target: gl.TEXTURE_2D, width: spec.Width, height: spec.Height,
		levels: levels, samples: samples, format: spec.Format,
	}
	if samples > 1 {
		t.target = gl.TEXTURE_2D_MULTISAMPLE
		gl.BindTexture(t.target, id)
		gl.TexImage2DMultisample(t.target, int32(samples), uint32(internal), int32(spec.Width), int32(spec.Height), true)
		gl.BindTexture(t.target, 0)
		r.textures[core.Handle(id)] = t
		return core.Handle(id), nil
	}

	gl.BindTexture(gl.TEXTURE_2D, id)
	for l := 0; l < levels; l++ {
		var data unsafe.Pointer
		if l == 0 && pix != nil {
			// Host texels are RGBA float; GL converts on upload.
			data = gl.Ptr(pix)
			format, typ = gl.RGBA, gl.FLOAT
		}
		gl.TexImage2D(gl.TEXTURE_2D, int32(l), internal,
			int32(pipeline.MipSize(spec.Width, l)), int32(pipeline.MipSize(spec.Height, l)),
			0, format, typ, data)
		format, typ = formatOf(spec.Format)
	}
	minF, magF := glFilter(spec.Filter, levels)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minF)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magF)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, glWrap(spec.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, glWrap(spec.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(levels-1))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	r.textures[core.Handle(id)] = t
	return core.Handle(id), nil
}

func formatOf(f pipeline.Format) (uint32, uint32) {
	_, format, typ := glFormat(f)
	return format, typ
}

func (r *resources) NewCubemap(spec pipeline.CubemapSpec) (core.Handle, error) {
	if spec.Size <= 0 {
		return 0, fmt.Errorf("cubemap %q: size %d", spec.Name, spec.Size)
	}
	levels := max(spec.Levels, 1)
	internal, format, typ := glFormat(spec.Format)

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, id)
	for f := 0; f < math.CubeFaceCount; f++ {
		for l := 0; l < levels; l++ {
			s := int32(pipeline.MipSize(spec.Size, l))
			gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(f), int32(l), internal, s, s, 0, format, typ, nil)
		}
	}
	minF, magF := glFilter(spec.Filter, levels)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MIN_FILTER, minF)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAG_FILTER, magF)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAX_LEVEL, int32(levels-1))
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)

	r.textures[core.Handle(id)] = &texture{
		name: spec.Name, target: gl.TEXTURE_CUBE_MAP, width: spec.Size, height: spec.Size,
		levels: levels, samples: 1, format: spec.Format,
	}
	return core.Handle(id), nil
}

func (r *resources) FreeTexture(h core.Handle) {
	if _, ok := r.textures[h]; !ok {
		return
	}
	id := uint32(h)
	gl.DeleteTextures(1, &id)
	delete(r.textures, h)
}

func (r *resources) tex(h core.Handle) (*texture, error) {
	t, ok := r.textures[h]
	if !ok {
		return nil, fmt.Errorf("no texture %d", h)
	}
	return t, nil
}

// ── Render targets ───────────────────────────────────────────────────────────

func (r *resources) NewTarget(spec pipeline.TargetSpec) (*pipeline.Target, error) {
	t := &pipeline.Target{Spec: spec}
	samples := spec.SampleCount()
	for i, a := range spec.Color {
		var h core.Handle
		var err error
		name := fmt.Sprintf("%s/%d", spec.Name, i)
		if spec.Cube {
			h, err = r.NewCubemap(pipeline.CubemapSpec{Name: name, Size: spec.Width, Format: a.Format, Filter: a.Filter, Levels: spec.Levels})
		} else {
			h, err = r.NewTexture(pipeline.TextureSpec{
				Name: name, Width: spec.Width, Height: spec.Height, Format: a.Format,
				Filter: a.Filter, Wrap: a.Wrap, Levels: spec.Levels, Samples: samples,
			}, nil)
		}
		if err != nil {
			r.FreeTarget(t)
			return nil, fmt.Errorf("target %q: %w", spec.Name, err)
		}
		t.Color = append(t.Color, h)
	}

	f := &fbo{}
	t.Impl = f
	gl.GenFramebuffers(1, &f.id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)
	if spec.DepthStencil {
		gl.GenRenderbuffers(1, &f.rbo)
		gl.BindRenderbuffer(gl.RENDERBUFFER, f.rbo)
		w, h := int32(spec.Width), int32(spec.Height)
		if spec.Cube {
			h = w
		}
		if samples > 1 {
			gl.RenderbufferStorageMultisample(gl.RENDERBUFFER, int32(samples), gl.DEPTH24_STENCIL8, w, h)
		} else {
			gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH24_STENCIL8, w, h)
		}
		gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT, gl.RENDERBUFFER, f.rbo)
	}
	r.attach(t, math.FacePosX, 0)
	if len(t.Color) == 0 {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	t.Complete = status == gl.FRAMEBUFFER_COMPLETE
	if !t.Complete {
		logger.Log.Warn("render target incomplete",
			zap.String("target", spec.Name), zap.String("status", fmt.Sprintf("0x%X", status)))
		return t, fmt.Errorf("%s (status 0x%X): %w", spec.Name, status, pipeline.ErrIncomplete)
	}
	return t, nil
}

// attach binds every color attachment of t to its framebuffer, at face
// and level for cube targets, and sets the draw buffers. The framebuffer
// must be bound.
func (r *resources) attach(t *pipeline.Target, face math.CubeFace, level int) {
	bufs := make([]uint32, len(t.Color))
	for i, h := range t.Color {
		att := gl.COLOR_ATTACHMENT0 + uint32(i)
		bufs[i] = att
		tx, ok := r.textures[h]
		if !ok {
			continue
		}
		switch tx.target {
		case gl.TEXTURE_CUBE_MAP:
			gl.FramebufferTexture2D(gl.FRAMEBUFFER, att, gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(face), uint32(h), int32(level))
		default:
			gl.FramebufferTexture2D(gl.FRAMEBUFFER, att, tx.target, uint32(h), 0)
		}
	}
	if len(bufs) > 0 {
		gl.DrawBuffers(int32(len(bufs)), &bufs[0])
	}
}

// bind makes t the draw framebuffer with a viewport of its level size.
func (r *resources) bind(t *pipeline.Target, face math.CubeFace, level int) {
	f := t.Impl.(*fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)
	if t.Spec.Cube {
		r.attach(t, face, level)
		s := int32(pipeline.MipSize(t.Spec.Width, level))
		gl.Viewport(0, 0, s, s)
		return
	}
	gl.Viewport(0, 0, int32(t.Spec.Width), int32(t.Spec.Height))
}

func (r *resources) FreeTarget(t *pipeline.Target) {
	if t == nil {
		return
	}
	for _, h := range t.Color {
		if h.Valid() {
			r.FreeTexture(h)
		}
	}
	t.Color = nil
	if f, ok := t.Impl.(*fbo); ok {
		if f.rbo != 0 {
			gl.DeleteRenderbuffers(1, &f.rbo)
		}
		if f.id != 0 {
			gl.DeleteFramebuffers(1, &f.id)
		}
	}
	t.Impl = nil
	t.Complete = false
}

// ── Readback ─────────────────────────────────────────────────────────────────

func (r *resources) ReadTexture(h core.Handle, level int) (pipeline.Image, error) {
	t, err := r.tex(h)
	if err != nil {
		return pipeline.Image{}, err
	}
	if t.target != gl.TEXTURE_2D {
		return pipeline.Image{}, fmt.Errorf("texture %q is not a single-sampled 2D texture", t.name)
	}
	return r.read(t, gl.TEXTURE_2D, uint32(h), gl.TEXTURE_2D, level)
}

func (r *resources) ReadCubeFace(h core.Handle, face math.CubeFace, level int) (pipeline.Image, error) {
	t, err := r.tex(h)
	if err != nil {
		return pipeline.Image{}, err
	}
	if t.target != gl.TEXTURE_CUBE_MAP {
		return pipeline.Image{}, fmt.Errorf("texture %q is not a cubemap", t.name)
	}
	return r.read(t, gl.TEXTURE_CUBE_MAP, uint32(h), gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(face), level)
}

func (r *resources) read(t *texture, bindTarget, id, imageTarget uint32, level int) (pipeline.Image, error) {
	if level < 0 || level >= t.levels {
		return pipeline.Image{}, fmt.Errorf("texture %q has no level %d", t.name, level)
	}
	w, h := pipeline.MipSize(t.width, level), pipeline.MipSize(t.height, level)
	pix := make([]core.Color, w*h)
	gl.BindTexture(bindTarget, id)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.GetTexImage(imageTarget, int32(level), gl.RGBA, gl.FLOAT, gl.Ptr(pix))
	gl.BindTexture(bindTarget, 0)
	return pipeline.Image{Width: w, Height: h, Pix: pix}, nil
}

// ── Material maps ────────────────────────────────────────────────────────────

// uploadMaterialTexture uploads a material map on first use. Rows are
// flipped so v = 0 samples the bottom of the image, and color maps use an
// sRGB internal format so sampling returns linear values.
func (r *resources) uploadMaterialTexture(tex *scene.Texture) (uint32, error) {
	if tex.GPU.Valid() {
		return uint32(tex.GPU), nil
	}
	if len(tex.Pixels) != tex.Width*tex.Height*4 || tex.Width == 0 {
		return 0, fmt.Errorf("texture %q has no pixel data", tex.Name)
	}
	row := tex.Width * 4
	flipped := make([]byte, len(tex.Pixels))
	for y := 0; y < tex.Height; y++ {
		copy(flipped[(tex.Height-1-y)*row:], tex.Pixels[y*row:(y+1)*row])
	}
	internal := int32(gl.RGBA8)
	if tex.SRGB {
		internal = gl.SRGB8_ALPHA8
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(tex.Width), int32(tex.Height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&flipped[0]))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	tex.GPU = core.Handle(id)
	r.uploaded = append(r.uploaded, tex)
	return id, nil
}

// destroy frees every texture still alive, material maps included.
func (r *resources) destroy() {
	for h := range r.textures {
		id := uint32(h)
		gl.DeleteTextures(1, &id)
	}
	r.textures = map[core.Handle]*texture{}
	for _, tex := range r.uploaded {
		id := uint32(tex.GPU)
		gl.DeleteTextures(1, &id)
		tex.GPU = 0
	}
	r.uploaded = nil
}
