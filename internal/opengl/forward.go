package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// forwardPipeline shades every object in one pass into the (possibly
// multisampled) HDR target.
type forwardPipeline struct {
	dev *Device
	cfg *config.Config
}

func (p *forwardPipeline) Kind() config.PipelineType { return config.PipelineForward }

func (p *forwardPipeline) Destroy() {}

// frameTarget validates the HDR target of a frame against its view.
func frameTarget(f *pipeline.Frame) (*pipeline.Target, error) {
	if f.Targets == nil || f.Targets.HDR == nil {
		return nil, fmt.Errorf("frame has no HDR target")
	}
	hdr := f.Targets.HDR
	if !hdr.Matches(f.View.Width, f.View.Height) {
		return nil, fmt.Errorf("%w: hdr %dx%d, view %dx%d", pipeline.ErrTargetMismatch,
			hdr.Spec.Width, hdr.Spec.Height, f.View.Width, f.View.Height)
	}
	if _, ok := hdr.Impl.(*fbo); !ok {
		return nil, fmt.Errorf("hdr target not allocated by the OpenGL device")
	}
	return hdr, nil
}

// clearTarget clears every color attachment of the bound framebuffer to c,
// depth to the far plane and stencil to zero.
func clearTarget(c core.Color) {
	gl.ColorMask(true, true, true, true)
	gl.DepthMask(true)
	gl.StencilMask(0xFF)
	gl.ClearColor(c.R, c.G, c.B, c.A)
	gl.ClearDepth(1)
	gl.ClearStencil(0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT)
}

func (p *forwardPipeline) Render(f *pipeline.Frame) error {
	hdr, err := frameTarget(f)
	if err != nil {
		return err
	}
	if !hdr.Complete {
		return fmt.Errorf("forward: %w", pipeline.ErrIncomplete)
	}
	d := p.dev
	d.res.bind(hdr, 0, 0)
	clearTarget(core.ColorClear)
	enable(gl.MULTISAMPLE, f.Targets.Samples > 1)

	vp := f.View.ViewProjection()
	d.lights.upload(f.Lights)

	// Sky first, at the far plane, without depth.
	d.drawSky(f.View.View, f.View.Projection, f.Global.Environment, f.Sky)

	d.drawSurfaces(surfacePass{
		flat:     d.progs.forward,
		patch:    d.progs.forwardPatch,
		viewProj: vp,
		eye:      f.View.Position,
		perProgram: func(pr *program) {
			d.bindShadow(pr, f.Shadow)
		},
		perItem: func(pr *program, it *pipeline.DrawItem) {
			d.bindProbe(pr, it.Probe, f.BRDF)
			bindParallax(pr, it.Object)
		},
	}, f.Items)

	d.drawLamps(f.Lamps, vp)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

// drawLamps depth-tests each lamp sphere against the scene and writes the
// light's color into both outputs.
func (d *Device) drawLamps(lamps []pipeline.Lamp, vp math.Mat4) {
	if len(lamps) == 0 {
		return
	}
	apply(pipeline.StateLamp)
	p := d.progs.lamp
	p.use()
	p.setMat4("viewProj", vp)
	for _, l := range lamps {
		p.setMat4("model", math.Mat4Scale(math.Splat(l.Radius)).Mul(math.Mat4Translation(l.Position)))
		p.setVec3("lampColor", l.Color)
		d.meshes.draw(d.lamp, false)
	}
}
