package software

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// surfel is a shaded surface point: the fragment-stage inputs of the
// GLSL programs.
type surfel struct {
	item      *pipeline.DrawItem
	pos       math.Vec3
	n         math.Vec3
	v         math.Vec3
	albedo    math.Vec3
	alpha     float32
	roughness float32
	metalness float32
	ao        float32
	emissive  math.Vec3
}

func hitUV(h *hit) (float32, float32) {
	uv := bary(h, h.body.uv).Mul(h.body.item.Object.UVScale)
	return uv.X, uv.Y
}

// opaque rejects cut-out texels of opacity-mapped objects.
func opaque(h *hit) bool {
	it := h.body.item
	if !it.Object.OpacityMap || it.Material.Albedo == nil {
		return true
	}
	u, v := hitUV(h)
	return it.Material.Albedo.Sample(u, v).A*it.Material.BaseColor.A >= 0.5
}

// surface evaluates the material at a hit seen from eye.
func surface(h *hit, eye math.Vec3) surfel {
	it := h.body.item
	o := it.Object
	u, v := hitUV(h)
	m := it.Material.Evaluate(u, v)

	n := bary(h, h.body.nrm).Normalize()
	if !h.front {
		n = n.Negate()
	}
	if o.NormalMap && it.Material.Normal != nil {
		t := bary(h, h.body.tan).Normalize()
		b := bary(h, h.body.bit).Normalize()
		tn := math.Vec3{X: m.Normal.R*2 - 1, Y: m.Normal.G*2 - 1, Z: m.Normal.B*2 - 1}
		n = t.Mul(tn.X).Add(b.Mul(tn.Y)).Add(n.Mul(tn.Z)).Normalize()
	}

	s := surfel{
		item:      it,
		pos:       bary(h, h.body.pos),
		n:         n,
		albedo:    m.Albedo.RGB(),
		alpha:     o.Alpha,
		roughness: math.Clamp(m.Roughness, 0.04, 1),
		metalness: m.Metalness,
		ao:        m.AO,
	}
	s.v = eye.Sub(s.pos).Normalize()
	if o.Emissive {
		s.emissive = m.Emissive.RGB().Mul(o.EmissiveFactor)
	}
	return s
}

// shader holds the textures a lighting computation reads.
type shader struct {
	res    *resources
	lights pipeline.LightBlock
	shadow pipeline.ShadowInfo
	brdf   *texture
}

// direct sums the light block's contribution at s. Only the shadow light
// is shadow tested, and only for objects that receive shadows.
func (sh *shader) direct(s surfel, receive bool, darkness, bias float32) math.Vec3 {
	var lo math.Vec3
	for i := range sh.lights.Lights {
		lo = lo.Add(sh.light(i, s, receive, darkness, bias))
	}
	return lo
}

func (sh *shader) light(i int, s surfel, receive bool, darkness, bias float32) math.Vec3 {
	l := sh.lights.Lights[i]
	d := l.Position.Sub(s.pos)
	dist := d.Length()
	if dist == 0 {
		return math.Vec3{}
	}
	radiance := l.Radiance.Mul(pipeline.Attenuation(dist))
	c := pipeline.DirectLight(s.n, s.v, d.Div(dist), radiance, s.albedo, s.roughness, s.metalness)
	if receive && sh.shadow.Enabled && sh.shadow.Light == i {
		c = c.Mul(sh.shadowFactor(s.pos, darkness, bias))
	}
	return c
}

func (sh *shader) shadowFactor(pos math.Vec3, darkness, bias float32) float32 {
	m, err := sh.res.tex(sh.shadow.Map)
	if err != nil {
		return 1
	}
	d := pos.Sub(sh.shadow.Position)
	stored := m.sampleCube(d, 0).R
	return pipeline.ShadowFactor(d.Length(), stored, bias, darkness)
}

// ambient is the IBL term from probe, with the reflection vector parallax
// corrected against box when one is given.
func (sh *shader) ambient(s surfel, probe scene.Probe, box *scene.AABB, capture math.Vec3) math.Vec3 {
	irrTex, err1 := sh.res.tex(probe.Irradiance)
	preTex, err2 := sh.res.tex(probe.Prefiltered)
	if err1 != nil || err2 != nil || sh.brdf == nil {
		return math.Vec3{}
	}
	r := s.v.Negate().Reflect(s.n)
	if box != nil {
		r = pipeline.ParallaxCorrect(s.pos, r, box.Min, box.Max, capture)
	}
	nDotV := math32.Max(s.n.Dot(s.v), 0)
	irradiance := irrTex.sampleCube(s.n, 0).RGB()
	prefiltered := preTex.sampleCube(r, s.roughness*float32(preTex.levels()-1)).RGB()
	lut := sh.brdf.sample2D(nDotV, s.roughness, 0)
	return pipeline.AmbientLight(s.n, s.v, s.albedo, irradiance, prefiltered, [2]float32{lut.R, lut.G}, s.roughness, s.metalness, s.ao)
}

// forward is the complete forward fragment: direct, ambient and emissive,
// with its bright-channel output.
func (sh *shader) forward(s surfel) (core.Color, core.Color) {
	o := s.item.Object
	c := sh.direct(s, o.ReceiveShadow, o.ShadowDarkness, o.ShadowBias)
	var box *scene.AABB
	if o.ParallaxCubemap {
		b := o.ProbeBox()
		box = &b
	}
	c = c.Add(sh.ambient(s, s.item.Probe, box, o.CapturePosition())).Add(s.emissive)
	bright := pipeline.BrightOutput(c, o.Bloom, o.BloomBrightness)
	return core.ColorFromRGB(c, s.alpha), core.ColorFromRGB(bright, 1)
}

// background samples the environment behind everything.
func background(res *resources, env core.Handle, sky scene.Sky, dir math.Vec3) core.Color {
	if t, err := res.tex(env); err == nil {
		return core.ColorFromRGB(t.sampleCube(dir, 0).RGB(), 1)
	}
	return core.ColorFromRGB(sky.Sample(dir), 1)
}
