package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/pipeline"
)

// deferredPipeline runs the geometry pass, the full-screen ambient pass,
// then one stencil/lighting pair per light over the light's volume.
type deferredPipeline struct {
	dev *Device
	cfg *config.Config
}

func (p *deferredPipeline) Kind() config.PipelineType { return config.PipelineDeferred }

func (p *deferredPipeline) Destroy() {}

func gbufferTarget(f *pipeline.Frame) (*pipeline.Target, error) {
	g := f.Targets.GBuffer
	if g == nil {
		return nil, fmt.Errorf("deferred: frame has no G-buffer")
	}
	if !g.Matches(f.View.Width, f.View.Height) {
		return nil, fmt.Errorf("%w: gbuffer", pipeline.ErrTargetMismatch)
	}
	if !g.Complete {
		return nil, fmt.Errorf("deferred: gbuffer: %w", pipeline.ErrIncomplete)
	}
	return g, nil
}

func (p *deferredPipeline) Render(f *pipeline.Frame) error {
	hdr, err := frameTarget(f)
	if err != nil {
		return err
	}
	if !hdr.Complete {
		return fmt.Errorf("deferred: %w", pipeline.ErrIncomplete)
	}
	d := p.dev
	d.res.bind(hdr, 0, 0)
	clearTarget(core.ColorClear)
	g, err := gbufferTarget(f)
	if err != nil {
		return err
	}

	seq := pipeline.NewVolumeSequence()
	vp := f.View.ViewProjection()
	w, h := int32(f.View.Width), int32(f.View.Height)

	// ── Geometry ─────────────────────────────────────────────────────────────
	d.res.bind(g, 0, 0)
	clearTarget(core.ColorClear)
	d.drawSurfaces(surfacePass{
		flat:     d.progs.gbuffer,
		patch:    d.progs.gbufferPatch,
		viewProj: vp,
		eye:      f.View.Position,
	}, f.Items)
	if err := seq.EndGeometry(); err != nil {
		return err
	}

	// Depth blit: the stencil and lamp passes test against scene depth.
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, g.Impl.(*fbo).id)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, hdr.Impl.(*fbo).id)
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, gl.DEPTH_BUFFER_BIT, gl.NEAREST)
	d.res.bind(hdr, 0, 0)
	for i, tex := range g.Color {
		bindTexture(int32(i), gl.TEXTURE_2D, tex, true)
	}

	// ── Ambient ──────────────────────────────────────────────────────────────
	apply(seq.State())
	amb := d.progs.ambient
	amb.use()
	amb.setVec3("eyePos", f.View.Position)
	amb.setMat4("invViewProj", vp.Inverse())
	amb.setBool("parallax", false)
	d.bindProbe(amb, f.Global, f.BRDF)
	d.bindSky(amb, f.Global.Environment, f.Sky)
	d.drawFullscreen()

	// ── Light volumes ────────────────────────────────────────────────────────
	d.lights.upload(f.Lights)
	for i, l := range f.Lights.Lights {
		model := l.VolumeModel()

		if err := seq.BeginStencil(i); err != nil {
			return err
		}
		gl.StencilMask(0xFF)
		gl.Clear(gl.STENCIL_BUFFER_BIT)
		apply(seq.State())
		st := d.progs.stencil
		st.use()
		st.setMat4("viewProj", vp)
		st.setMat4("model", model)
		d.meshes.draw(d.volume, false)

		if err := seq.BeginLighting(i); err != nil {
			return err
		}
		apply(seq.State())
		lp := d.progs.light
		lp.use()
		lp.setMat4("viewProj", vp)
		lp.setMat4("model", model)
		lp.setVec3("eyePos", f.View.Position)
		lp.setInt("lightIndex", int32(i))
		d.bindShadow(lp, f.Shadow)
		d.meshes.draw(d.volume, false)
		if err := seq.EndLighting(); err != nil {
			return err
		}
	}
	if err := seq.Finish(); err != nil {
		return err
	}

	d.drawLamps(f.Lamps, vp)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}
