package software

import (
	"fmt"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// shadowCaster renders distance-to-light into a cube target by casting a
// ray per texel from the light.
type shadowCaster struct {
	res    *resources
	cfg    config.Shadow
	target *pipeline.Target
}

func newShadowCaster(res *resources, cfg config.Shadow) (*shadowCaster, error) {
	t, err := res.NewTarget(pipeline.TargetSpec{
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
	sc := &shadowCaster{res: res, cfg: cfg, target: t}
	res.mustTex(t.Color[0]).fill(core.Color{R: cfg.Far})
	return sc, err
}

func (sc *shadowCaster) Map() core.Handle { return sc.target.Color[0] }

func (sc *shadowCaster) Far() float32 { return sc.cfg.Far }

func (sc *shadowCaster) Destroy() {
	sc.res.FreeTarget(sc.target)
}

func (sc *shadowCaster) Cast(light math.Vec3, items []pipeline.DrawItem) (core.Handle, error) {
	m := sc.res.mustTex(sc.Map())
	m.fill(core.Color{R: sc.cfg.Far})
	if !sc.target.Complete {
		return sc.Map(), fmt.Errorf("shadow map: %w", pipeline.ErrIncomplete)
	}

	w := newWorld(items, func(it *pipeline.DrawItem) bool { return it.Object.GenerateShadow })
	cull := pipeline.StateShadow.Cull
	c := pipeline.NewCubeCapture(light, sc.cfg.Near, sc.cfg.Far)
	if err := c.Begin(); err != nil {
		return 0, err
	}
	size := sc.cfg.Size
	for c.Next() {
		face := int(c.Face())
		cam := newCamera(c.FaceView(size))
		parallelRows(size, func(y int) {
			for x := 0; x < size; x++ {
				origin, dir, far := cam.ray(float32(x)+0.5, float32(y)+0.5)
				h, ok := w.nearest(origin, dir, query{tMax: far, cull: &cull, accept: opaque})
				if !ok {
					continue
				}
				d := origin.Add(dir.Mul(h.t)).Distance(light)
				m.set(face, 0, x, y, 0, core.Color{R: d})
			}
		})
	}
	return sc.Map(), c.Finish()
}
