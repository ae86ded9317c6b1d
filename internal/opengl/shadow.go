package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// shadowCaster renders distance-to-light into an R32F cubemap, one face
// at a time, with its own depth buffer.
type shadowCaster struct {
	dev    *Device
	cfg    config.Shadow
	target *pipeline.Target
}

// newShadowCaster allocates the cube target. An incomplete target is kept
// and reported; Cast then leaves the map cleared to the far distance.
func newShadowCaster(d *Device, cfg config.Shadow) (*shadowCaster, error) {
	t, err := d.res.NewTarget(pipeline.TargetSpec{
		Name:         "shadow",
		Width:        cfg.Size,
		Height:       cfg.Size,
		Cube:         true,
		Levels:       1,
		Color:        []pipeline.AttachmentSpec{{Format: pipeline.FormatR32F, Filter: pipeline.FilterNearest}},
		DepthStencil: true,
	})
	if t == nil || len(t.Color) == 0 {
		return nil, fmt.Errorf("shadow map: %w", err)
	}
	sc := &shadowCaster{dev: d, cfg: cfg, target: t}
	if t.Complete {
		sc.clearFaces()
	}
	return sc, err
}

func (sc *shadowCaster) Map() core.Handle { return sc.target.Color[0] }

func (sc *shadowCaster) Far() float32 { return sc.cfg.Far }

func (sc *shadowCaster) Destroy() {
	sc.dev.res.FreeTarget(sc.target)
}

// clearFaces sets every texel to the far distance: nothing occludes.
func (sc *shadowCaster) clearFaces() {
	for f := 0; f < math.CubeFaceCount; f++ {
		sc.dev.res.bind(sc.target, math.CubeFace(f), 0)
		clearTarget(core.Color{R: sc.cfg.Far})
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (sc *shadowCaster) Cast(light math.Vec3, items []pipeline.DrawItem) (core.Handle, error) {
	if !sc.target.Complete {
		return sc.Map(), fmt.Errorf("shadow map: %w", pipeline.ErrIncomplete)
	}
	casters := make([]pipeline.DrawItem, 0, len(items))
	for _, it := range items {
		if it.Object.GenerateShadow {
			casters = append(casters, it)
		}
	}

	d := sc.dev
	state := pipeline.StateShadow
	c := pipeline.NewCubeCapture(light, sc.cfg.Near, sc.cfg.Far)
	if err := c.Begin(); err != nil {
		return 0, err
	}
	for c.Next() {
		d.res.bind(sc.target, c.Face(), 0)
		clearTarget(core.Color{R: sc.cfg.Far})
		d.drawSurfaces(surfacePass{
			flat:     d.progs.shadow,
			viewProj: c.ViewProjection(),
			eye:      light,
			state:    &state,
			perProgram: func(p *program) {
				p.setVec3("lightPos", light)
			},
		}, casters)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return sc.Map(), c.Finish()
}
