package software

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// texture is a 2D texture, multisampled texture or cubemap held in host
// memory. data is indexed [face][level]; multisampled levels hold
// samples consecutive values per texel.
type texture struct {
	name    string
	width   int
	height  int
	format  pipeline.Format
	filter  pipeline.Filter
	wrap    pipeline.Wrap
	samples int
	cube    bool
	data    [][][]core.Color
}

func newTexture(name string, w, h int, format pipeline.Format, filter pipeline.Filter, wrap pipeline.Wrap, levels, samples int, cube bool) *texture {
	levels = max(levels, 1)
	samples = max(samples, 1)
	faces := 1
	if cube {
		faces = math.CubeFaceCount
	}
	t := &texture{
		name: name, width: w, height: h, format: format, filter: filter,
		wrap: wrap, samples: samples, cube: cube,
		data: make([][][]core.Color, faces),
	}
	for f := range t.data {
		t.data[f] = make([][]core.Color, levels)
		for l := range t.data[f] {
			t.data[f][l] = make([]core.Color, pipeline.MipSize(w, l)*pipeline.MipSize(h, l)*samples)
		}
	}
	return t
}

func (t *texture) levels() int { return len(t.data[0]) }

func (t *texture) levelSize(level int) (int, int) {
	return pipeline.MipSize(t.width, level), pipeline.MipSize(t.height, level)
}

// store converts c to the texture's format before writing.
func (t *texture) store(c core.Color) core.Color {
	switch t.format {
	case pipeline.FormatRGBA8:
		q := func(v float32) float32 { return math32.Floor(math.Saturate(v)*255+0.5) / 255 }
		return core.Color{R: q(c.R), G: q(c.G), B: q(c.B), A: q(c.A)}
	case pipeline.FormatRG16F:
		return core.Color{R: c.R, G: c.G, A: 1}
	case pipeline.FormatR32F:
		return core.Color{R: c.R, A: 1}
	}
	return c
}

func (t *texture) set(face, level, x, y, sample int, c core.Color) {
	w, _ := t.levelSize(level)
	t.data[face][level][(y*w+x)*t.samples+sample] = t.store(c)
}

func (t *texture) get(face, level, x, y, sample int) core.Color {
	w, _ := t.levelSize(level)
	return t.data[face][level][(y*w+x)*t.samples+sample]
}

// add accumulates c, as additive blending does.
func (t *texture) add(face, level, x, y, sample int, c core.Color) {
	t.set(face, level, x, y, sample, t.get(face, level, x, y, sample).Add(c))
}

func (t *texture) fill(c core.Color) {
	c = t.store(c)
	for f := range t.data {
		for l := range t.data[f] {
			for i := range t.data[f][l] {
				t.data[f][l][i] = c
			}
		}
	}
}

// texel fetches with the texture's wrap mode.
func (t *texture) texel(face, level, x, y int) core.Color {
	w, h := t.levelSize(level)
	if t.wrap == pipeline.WrapRepeat && !t.cube {
		x, y = repeat(x, w), repeat(y, h)
	} else {
		x, y = min(max(x, 0), w-1), min(max(y, 0), h-1)
	}
	return t.get(face, level, x, y, 0)
}

func repeat(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// bilinear filters level at texture coordinates u, v (v = 0 bottom row).
func (t *texture) bilinear(face, level int, u, v float32) core.Color {
	w, h := t.levelSize(level)
	if t.filter == pipeline.FilterNearest {
		return t.texel(face, level, int(math32.Floor(u*float32(w))), int(math32.Floor(v*float32(h))))
	}
	x := u*float32(w) - 0.5
	y := v*float32(h) - 0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	bottom := t.texel(face, level, ix, iy).Scale(1 - fx).Add(t.texel(face, level, ix+1, iy).Scale(fx))
	top := t.texel(face, level, ix, iy+1).Scale(1 - fx).Add(t.texel(face, level, ix+1, iy+1).Scale(fx))
	return bottom.Scale(1 - fy).Add(top.Scale(fy))
}

// filtered samples face at lod, blending mip levels for trilinear textures.
func (t *texture) filtered(face int, u, v, lod float32) core.Color {
	if t.filter != pipeline.FilterTrilinear || t.levels() == 1 {
		return t.bilinear(face, 0, u, v)
	}
	lod = math.Clamp(lod, 0, float32(t.levels()-1))
	l0 := int(math32.Floor(lod))
	l1 := min(l0+1, t.levels()-1)
	f := lod - float32(l0)
	return t.bilinear(face, l0, u, v).Scale(1 - f).Add(t.bilinear(face, l1, u, v).Scale(f))
}

func (t *texture) sample2D(u, v, lod float32) core.Color {
	return t.filtered(0, u, v, lod)
}

func (t *texture) sampleCube(dir math.Vec3, lod float32) core.Color {
	face, u, v := math.CubeFaceUV(dir)
	return t.filtered(int(face), u, v, lod)
}

// target is the device state behind a pipeline.Target: per-sample depth
// as distance along the view ray, and an 8-bit stencil.
type target struct {
	width   int
	height  int
	samples int
	depth   []float32
	stencil []uint8
}

func (t *target) index(x, y, s int) int { return (y*t.width+x)*t.samples + s }

func (t *target) clearDepthStencil() {
	for i := range t.depth {
		t.depth[i] = math32.Inf(1)
	}
	clear(t.stencil)
}

// resources is the software Resource Layer.
type resources struct {
	next     core.Handle
	textures map[core.Handle]*texture
	fail     map[string]bool
}

func newResources() *resources {
	return &resources{textures: map[core.Handle]*texture{}, fail: map[string]bool{}}
}

func (r *resources) add(t *texture) core.Handle {
	r.next++
	r.textures[r.next] = t
	return r.next
}

func (r *resources) tex(h core.Handle) (*texture, error) {
	t, ok := r.textures[h]
	if !ok {
		return nil, fmt.Errorf("software: unknown texture %d", h)
	}
	return t, nil
}

// mustTex is for handles the device created itself.
func (r *resources) mustTex(h core.Handle) *texture {
	t, err := r.tex(h)
	if err != nil {
		panic(err)
	}
	return t
}

func (r *resources) NewTexture(spec pipeline.TextureSpec, pix []core.Color) (core.Handle, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return 0, fmt.Errorf("texture %q: invalid size %dx%d", spec.Name, spec.Width, spec.Height)
	}
	t := newTexture(spec.Name, spec.Width, spec.Height, spec.Format, spec.Filter, spec.Wrap, spec.Levels, spec.Samples, false)
	if pix != nil {
		if len(pix) != spec.Width*spec.Height {
			return 0, fmt.Errorf("texture %q: %d texels for %dx%d", spec.Name, len(pix), spec.Width, spec.Height)
		}
		for i, c := range pix {
			for s := 0; s < t.samples; s++ {
				t.data[0][0][i*t.samples+s] = t.store(c)
			}
		}
	}
	return r.add(t), nil
}

func (r *resources) NewCubemap(spec pipeline.CubemapSpec) (core.Handle, error) {
	if spec.Size <= 0 {
		return 0, fmt.Errorf("cubemap %q: invalid size %d", spec.Name, spec.Size)
	}
	t := newTexture(spec.Name, spec.Size, spec.Size, spec.Format, spec.Filter, pipeline.WrapClamp, spec.Levels, 1, true)
	return r.add(t), nil
}

// failing reports whether a test forced targets of this name incomplete.
// "table/environment" matches both its full name and "environment".
func (r *resources) failing(name string) bool {
	if r.fail[name] {
		return true
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return r.fail[name[i+1:]]
	}
	return false
}

func (r *resources) NewTarget(spec pipeline.TargetSpec) (*pipeline.Target, error) {
	w, h := spec.Width, spec.Height
	if spec.Cube {
		h = w
	}
	out := &pipeline.Target{Spec: spec}
	if w <= 0 || h <= 0 {
		return out, fmt.Errorf("target %q %dx%d: %w", spec.Name, w, h, pipeline.ErrIncomplete)
	}
	samples := spec.SampleCount()
	for _, a := range spec.Color {
		t := newTexture(spec.Name, w, h, a.Format, a.Filter, a.Wrap, spec.Levels, samples, spec.Cube)
		out.Color = append(out.Color, r.add(t))
	}
	tg := &target{
		width: w, height: h, samples: samples,
		depth:   make([]float32, w*h*samples),
		stencil: make([]uint8, w*h*samples),
	}
	tg.clearDepthStencil()
	out.Impl = tg

	if r.failing(spec.Name) {
		logger.Log.Warn("render target incomplete", zap.String("target", spec.Name))
		return out, fmt.Errorf("target %q: %w", spec.Name, pipeline.ErrIncomplete)
	}
	out.Complete = true
	return out, nil
}

func (r *resources) FreeTarget(t *pipeline.Target) {
	if t == nil {
		return
	}
	for _, h := range t.Color {
		r.FreeTexture(h)
	}
	t.Color = nil
	t.Impl = nil
	t.Complete = false
}

func (r *resources) FreeTexture(h core.Handle) {
	delete(r.textures, h)
}

func (r *resources) read(h core.Handle, face, level int) (pipeline.Image, error) {
	t, err := r.tex(h)
	if err != nil {
		return pipeline.Image{}, err
	}
	if level < 0 || level >= t.levels() {
		return pipeline.Image{}, fmt.Errorf("texture %q: no level %d", t.name, level)
	}
	w, hh := t.levelSize(level)
	im := pipeline.Image{Width: w, Height: hh, Pix: make([]core.Color, w*hh)}
	for y := 0; y < hh; y++ {
		for x := 0; x < w; x++ {
			im.Pix[y*w+x] = t.get(face, level, x, y, 0)
		}
	}
	return im, nil
}

// ReadTexture reads level of a 2D texture; multisampled textures return
// sample 0.
func (r *resources) ReadTexture(h core.Handle, level int) (pipeline.Image, error) {
	t, err := r.tex(h)
	if err != nil {
		return pipeline.Image{}, err
	}
	if t.cube {
		return pipeline.Image{}, fmt.Errorf("texture %q is a cubemap", t.name)
	}
	return r.read(h, 0, level)
}

func (r *resources) ReadCubeFace(h core.Handle, face math.CubeFace, level int) (pipeline.Image, error) {
	t, err := r.tex(h)
	if err != nil {
		return pipeline.Image{}, err
	}
	if !t.cube {
		return pipeline.Image{}, fmt.Errorf("texture %q is not a cubemap", t.name)
	}
	return r.read(h, int(face), level)
}
