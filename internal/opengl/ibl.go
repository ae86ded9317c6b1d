package opengl

import (
	"errors"
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// baker captures environments into cube targets and convolves them with
// the irradiance and prefilter programs.
type baker struct {
	dev  *Device
	cfg  config.IBL
	brdf core.Handle
}

func (b *baker) Destroy() {
	if b.brdf.Valid() {
		b.dev.res.FreeTexture(b.brdf)
		b.brdf = 0
	}
}

func (b *baker) BRDFLUT() (core.Handle, error) {
	if b.brdf.Valid() {
		return b.brdf, nil
	}
	d := b.dev
	n := b.cfg.BRDFSize
	t, err := d.res.NewTarget(pipeline.TargetSpec{
		Name: "brdf_lut", Width: n, Height: n, Samples: 1,
		Color: []pipeline.AttachmentSpec{{Format: pipeline.FormatRG16F, Filter: pipeline.FilterLinear}},
	})
	if t == nil || !t.Complete {
		d.res.FreeTarget(t)
		return 0, fmt.Errorf("brdf lut: %w", err)
	}
	d.res.bind(t, 0, 0)
	apply(pipeline.StatePost)
	p := d.progs.brdf
	p.use()
	p.setInt("sampleCount", int32(b.cfg.BRDFSamples))
	d.drawFullscreen()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	b.brdf = t.Detach(0)
	d.res.FreeTarget(t)
	return b.brdf, nil
}

func (b *baker) Bake(req pipeline.BakeRequest) (scene.Probe, error) {
	d := b.dev
	var errs []error
	targets := make([]*pipeline.Target, 3)
	for i, spec := range pipeline.ProbeTargetSpecs(req.Name, b.cfg) {
		t, err := d.res.NewTarget(spec)
		if t == nil || len(t.Color) == 0 {
			for _, done := range targets[:i] {
				d.res.FreeTarget(done)
			}
			return scene.Probe{}, fmt.Errorf("bake %s: %w", req.Name, err)
		}
		if err != nil {
			errs = append(errs, err)
		}
		targets[i] = t
	}
	env, irr, pre := targets[0], targets[1], targets[2]
	release := func() {
		for _, t := range targets {
			d.res.FreeTarget(t)
		}
	}

	convert := req.Equirect.Valid()
	if convert {
		if _, err := d.res.tex(req.Equirect); err != nil {
			release()
			return scene.Probe{}, fmt.Errorf("bake %s: equirect: %w", req.Name, err)
		}
	} else {
		d.lights.upload(req.Lights)
	}

	capture := pipeline.NewCubeCapture(req.Position, b.cfg.CaptureNear, b.cfg.CaptureFar)
	if err := capture.Begin(); err != nil {
		release()
		return scene.Probe{}, err
	}
	for capture.Next() {
		switch {
		case !env.Complete:
		case convert:
			b.convertFace(req.Equirect, capture.Face(), env)
		default:
			b.captureFace(req, capture, env)
		}
	}
	if err := capture.Finish(); err != nil {
		release()
		return scene.Probe{}, err
	}
	if err := capture.Require(); err != nil {
		release()
		return scene.Probe{}, err
	}
	if irr.Complete {
		b.convolve(env.Color[0], irr)
	}
	if pre.Complete {
		b.prefilter(env.Color[0], pre)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	probe := scene.Probe{
		Environment: env.Detach(0),
		Irradiance:  irr.Detach(0),
		Prefiltered: pre.Detach(0),
		Degraded:    len(errs) > 0,
	}
	release()
	if probe.Degraded {
		err := errors.Join(errs...)
		logger.Log.Warn("probe bake degraded", zap.String("probe", req.Name), zap.Error(err))
		return probe, err
	}
	return probe, nil
}

// captureFace renders one face with direct lighting and emission only,
// over the background.
func (b *baker) captureFace(req pipeline.BakeRequest, c *pipeline.CubeCapture, env *pipeline.Target) {
	d := b.dev
	d.res.bind(env, c.Face(), 0)
	clearTarget(core.ColorClear)
	d.drawSky(c.View(), c.Projection(), req.Background, req.Sky)
	d.drawSurfaces(surfacePass{
		flat:     d.progs.capture,
		viewProj: c.ViewProjection(),
		eye:      req.Position,
		perProgram: func(p *program) {
			p.setBool("shadowEnabled", false)
		},
	}, req.Items)
}

// convertFace projects the equirectangular map onto one environment face.
func (b *baker) convertFace(equirect core.Handle, face math.CubeFace, env *pipeline.Target) {
	d := b.dev
	d.res.bind(env, face, 0)
	clearTarget(core.ColorClear)
	apply(pipeline.StatePost)
	p := d.progs.equirect
	p.use()
	p.setMat4("skyVP", convolutionViewProjection(face))
	bindTexture(unitEquirect, gl.TEXTURE_2D, equirect, true)
	d.sky.draw()
}

// convolutionViewProjection looks from the cube's centre through face.
func convolutionViewProjection(face math.CubeFace) math.Mat4 {
	return math.CubeFaceView(math.Vec3{}, face).Mul(math.CubeFaceProjection(0.1, 10))
}

// convolve integrates cosine-weighted radiance over the hemisphere around
// each texel direction.
func (b *baker) convolve(env core.Handle, irr *pipeline.Target) {
	d := b.dev
	p := d.progs.irradiance
	p.use()
	p.setFloat("sampleDelta", b.cfg.IrradianceSampleDelta)
	bindTexture(unitEnvironment, gl.TEXTURE_CUBE_MAP, env, true)
	for f := 0; f < math.CubeFaceCount; f++ {
		face := math.CubeFace(f)
		d.res.bind(irr, face, 0)
		apply(pipeline.StatePost)
		p.setMat4("skyVP", convolutionViewProjection(face))
		d.sky.draw()
	}
}

// prefilter importance-samples the GGX lobe of increasing roughness into
// each mip level.
func (b *baker) prefilter(env core.Handle, pre *pipeline.Target) {
	d := b.dev
	levels := max(pre.Spec.Levels, 1)
	p := d.progs.prefilter
	p.use()
	p.setInt("sampleCount", int32(b.cfg.PrefilterSamples))
	bindTexture(unitEnvironment, gl.TEXTURE_CUBE_MAP, env, true)
	for level := 0; level < levels; level++ {
		roughness := float32(0)
		if levels > 1 {
			roughness = float32(level) / float32(levels-1)
		}
		p.setFloat("roughness", roughness)
		for f := 0; f < math.CubeFaceCount; f++ {
			face := math.CubeFace(f)
			d.res.bind(pre, face, level)
			apply(pipeline.StatePost)
			p.setMat4("skyVP", convolutionViewProjection(face))
			d.sky.draw()
		}
	}
}
