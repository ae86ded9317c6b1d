package software

import (
	"fmt"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// deferredPipeline runs the geometry pass, then one stencil/lighting pair
// per light.
type deferredPipeline struct {
	res    *resources
	cfg    *config.Config
	volume *scene.Mesh
}

func (p *deferredPipeline) Kind() config.PipelineType { return config.PipelineDeferred }

func (p *deferredPipeline) Destroy() {}

// gbuffer is the software view of the G-buffer target.
type gbuffer struct {
	tg  *target
	att [pipeline.GBufferAttachments]*texture
}

func (p *deferredPipeline) gbuffer(f *pipeline.Frame) (*gbuffer, error) {
	t := f.Targets.GBuffer
	if t == nil {
		return nil, fmt.Errorf("deferred: frame has no G-buffer")
	}
	if !t.Matches(f.View.Width, f.View.Height) {
		return nil, fmt.Errorf("%w: gbuffer", pipeline.ErrTargetMismatch)
	}
	if !t.Complete {
		return nil, fmt.Errorf("deferred: gbuffer: %w", pipeline.ErrIncomplete)
	}
	g := &gbuffer{tg: t.Impl.(*target)}
	for i := range g.att {
		g.att[i] = p.res.mustTex(t.Color[i])
	}
	return g, nil
}

func (p *deferredPipeline) Render(f *pipeline.Frame) error {
	hdr, tg, color, bright, err := p.res.frameState(f)
	if err != nil {
		return err
	}
	color.fill(core.ColorClear)
	bright.fill(core.ColorClear)
	tg.clearDepthStencil()
	if !hdr.Complete {
		return fmt.Errorf("deferred: %w", pipeline.ErrIncomplete)
	}
	g, err := p.gbuffer(f)
	if err != nil {
		return err
	}

	seq := pipeline.NewVolumeSequence()
	cam := newCamera(f.View)
	sh := p.res.newShader(f)

	p.geometry(f, g, cam)
	if err := seq.EndGeometry(); err != nil {
		return err
	}

	// Depth blit: the stencil and lamp passes test against scene depth.
	copy(tg.depth, g.tg.depth)
	p.ambient(f, g, sh, tg, color, bright, cam)

	for i, l := range f.Lights.Lights {
		if err := seq.BeginStencil(i); err != nil {
			return err
		}
		vol := p.volumeBody(l)
		p.stencil(vol, tg, cam)
		if err := seq.BeginLighting(i); err != nil {
			return err
		}
		p.light(i, vol, g, sh, tg, color, bright, cam)
		if err := seq.EndLighting(); err != nil {
			return err
		}
	}
	if err := seq.Finish(); err != nil {
		return err
	}

	parallelRows(tg.height, func(y int) {
		for x := 0; x < tg.width; x++ {
			origin, dir, _ := cam.ray(float32(x)+0.5, float32(y)+0.5)
			drawLamps(f.Lamps, origin, dir, tg, x, y, 0, color, bright)
		}
	})
	return nil
}

// geometry rasterizes surface attributes into the G-buffer; it is the
// only pass that writes depth.
func (p *deferredPipeline) geometry(f *pipeline.Frame, g *gbuffer, cam camera) {
	for _, a := range g.att {
		a.fill(core.ColorClear)
	}
	g.tg.clearDepthStencil()
	w := newWorld(f.Items, nil)

	parallelRows(g.tg.height, func(y int) {
		for x := 0; x < g.tg.width; x++ {
			origin, dir, far := cam.ray(float32(x)+0.5, float32(y)+0.5)
			h, ok := w.nearest(origin, dir, query{tMax: far, accept: opaque})
			if !ok {
				continue
			}
			s := surface(&h, f.View.Position)
			o := s.item.Object
			var bloom, darkness float32
			if o.Bloom {
				bloom = 1
			}
			if o.ReceiveShadow {
				darkness = o.ShadowDarkness
			}
			g.att[pipeline.GPosition].set(0, 0, x, y, 0, core.ColorFromRGB(s.pos, bloom))
			g.att[pipeline.GNormal].set(0, 0, x, y, 0, core.ColorFromRGB(s.n, o.BloomBrightness))
			g.att[pipeline.GAlbedo].set(0, 0, x, y, 0, core.ColorFromRGB(s.albedo, darkness))
			g.att[pipeline.GMaterial].set(0, 0, x, y, 0, core.Color{R: s.roughness, G: s.metalness, B: s.ao, A: o.ShadowBias})
			g.att[pipeline.GEmissive].set(0, 0, x, y, 0, core.ColorFromRGB(s.emissive, 1))
			g.tg.depth[g.tg.index(x, y, 0)] = h.t
		}
	})
}

// surfel reads one G-buffer texel back into a surface point.
func (g *gbuffer) surfel(x, y int, eye math.Vec3) (surfel, float32, float32, float32, float32) {
	pos := g.att[pipeline.GPosition].get(0, 0, x, y, 0)
	nrm := g.att[pipeline.GNormal].get(0, 0, x, y, 0)
	alb := g.att[pipeline.GAlbedo].get(0, 0, x, y, 0)
	mat := g.att[pipeline.GMaterial].get(0, 0, x, y, 0)
	s := surfel{
		pos:       pos.RGB(),
		n:         nrm.RGB().Normalize(),
		albedo:    alb.RGB(),
		roughness: mat.R,
		metalness: mat.G,
		ao:        mat.B,
	}
	s.v = eye.Sub(s.pos).Normalize()
	return s, pos.A, nrm.A, alb.A, mat.A
}

// ambient is the full-screen pass adding the global probe's IBL term and
// emission to covered pixels, and the sky to the rest.
func (p *deferredPipeline) ambient(f *pipeline.Frame, g *gbuffer, sh *shader, tg *target, color, bright *texture, cam camera) {
	parallelRows(tg.height, func(y int) {
		for x := 0; x < tg.width; x++ {
			em := g.att[pipeline.GEmissive].get(0, 0, x, y, 0)
			if em.A == 0 {
				_, dir, _ := cam.ray(float32(x)+0.5, float32(y)+0.5)
				color.set(0, 0, x, y, 0, background(p.res, f.Global.Environment, f.Sky, dir))
				continue
			}
			s, bloom, brightness, _, _ := g.surfel(x, y, f.View.Position)
			c := sh.ambient(s, f.Global, nil, math.Vec3{}).Add(em.RGB())
			color.add(0, 0, x, y, 0, core.ColorFromRGB(c, 1))
			bright.add(0, 0, x, y, 0, core.ColorFromRGB(pipeline.BrightOutput(c, bloom > 0, brightness), 0))
		}
	})
}

// volumeBody places the light volume mesh at the light, scaled to its radius.
func (p *deferredPipeline) volumeBody(l pipeline.GPULight) *body {
	return newBody(nil, p.volume, l.VolumeModel(), pipeline.CullNone)
}

// stencil clears the stencil and marks pixels whose scene point lies
// inside the volume: back faces behind the scene increment, front faces
// behind it decrement.
func (p *deferredPipeline) stencil(vol *body, tg *target, cam camera) {
	clear(tg.stencil)
	st := pipeline.StateStencil
	parallelRows(tg.height, func(y int) {
		for x := 0; x < tg.width; x++ {
			origin, dir, _ := cam.ray(float32(x)+0.5, float32(y)+0.5)
			i := tg.index(x, y, 0)
			vol.all(origin, dir, func(t float32, front bool) {
				if t < tg.depth[i] {
					return
				}
				if front {
					tg.stencil[i] = st.StencilFrontDepthFail.Apply(tg.stencil[i])
				} else {
					tg.stencil[i] = st.StencilBackDepthFail.Apply(tg.stencil[i])
				}
			})
		}
	})
}

// light accumulates light i where the stencil is set and a back face of
// the volume covers the pixel. Depth is not tested.
func (p *deferredPipeline) light(i int, vol *body, g *gbuffer, sh *shader, tg *target, color, bright *texture, cam camera) {
	l := sh.lights.Lights[i]
	parallelRows(tg.height, func(y int) {
		for x := 0; x < tg.width; x++ {
			if tg.stencil[tg.index(x, y, 0)] == 0 {
				continue
			}
			origin, dir, _ := cam.ray(float32(x)+0.5, float32(y)+0.5)
			covered := false
			vol.all(origin, dir, func(_ float32, front bool) { covered = covered || !front })
			if !covered {
				continue
			}
			s, bloom, brightness, darkness, bias := g.surfel(x, y, cam.view.Position)
			if s.pos.Distance(l.Position) > l.Radius {
				continue
			}
			c := sh.light(i, s, darkness > 0, darkness, bias)
			color.add(0, 0, x, y, 0, core.ColorFromRGB(c, 0))
			bright.add(0, 0, x, y, 0, core.ColorFromRGB(pipeline.BrightOutput(c, bloom > 0, brightness), 0))
		}
	})
}
