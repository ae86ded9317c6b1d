package software

import (
	"fmt"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// forwardPipeline shades every object in one pass per sample.
type forwardPipeline struct {
	res *resources
	cfg *config.Config
}

func (p *forwardPipeline) Kind() config.PipelineType { return config.PipelineForward }

func (p *forwardPipeline) Destroy() {}

// frameState resolves the HDR target of a frame.
func (r *resources) frameState(f *pipeline.Frame) (*pipeline.Target, *target, *texture, *texture, error) {
	if f.Targets == nil || f.Targets.HDR == nil {
		return nil, nil, nil, nil, fmt.Errorf("frame has no HDR target")
	}
	hdr := f.Targets.HDR
	if !hdr.Matches(f.View.Width, f.View.Height) {
		return nil, nil, nil, nil, fmt.Errorf("%w: hdr %dx%d, view %dx%d", pipeline.ErrTargetMismatch,
			hdr.Spec.Width, hdr.Spec.Height, f.View.Width, f.View.Height)
	}
	tg, ok := hdr.Impl.(*target)
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("hdr target not allocated by the software device")
	}
	color, err := r.tex(hdr.Color[0])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	bright, err := r.tex(hdr.Color[1])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return hdr, tg, color, bright, nil
}

func (r *resources) newShader(f *pipeline.Frame) *shader {
	sh := &shader{res: r, lights: f.Lights, shadow: f.Shadow}
	if t, err := r.tex(f.BRDF); err == nil {
		sh.brdf = t
	}
	return sh
}

func (p *forwardPipeline) Render(f *pipeline.Frame) error {
	hdr, tg, color, bright, err := p.res.frameState(f)
	if err != nil {
		return err
	}
	color.fill(core.ColorClear)
	bright.fill(core.ColorClear)
	tg.clearDepthStencil()
	if !hdr.Complete {
		return fmt.Errorf("forward: %w", pipeline.ErrIncomplete)
	}

	w := newWorld(f.Items, nil)
	sh := p.res.newShader(f)
	cam := newCamera(f.View)
	offsets := sampleOffsets(tg.samples)
	q := query{accept: opaque}

	parallelRows(tg.height, func(y int) {
		for x := 0; x < tg.width; x++ {
			for s, off := range offsets {
				origin, dir, far := cam.ray(float32(x)+off[0], float32(y)+off[1])

				// Sky first, at the far plane, without depth.
				color.set(0, 0, x, y, s, background(p.res, f.Global.Environment, f.Sky, dir))

				q := q
				q.tMax = far
				h, ok := w.nearest(origin, dir, q)
				if ok {
					c, b := sh.forward(surface(&h, f.View.Position))
					color.set(0, 0, x, y, s, c)
					bright.set(0, 0, x, y, s, b)
					tg.depth[tg.index(x, y, s)] = h.t
				}
				drawLamps(f.Lamps, origin, dir, tg, x, y, s, color, bright)
			}
		}
	})
	return nil
}

// drawLamps depth-tests each lamp sphere against the sample and writes the
// light's color into both outputs.
func drawLamps(lamps []pipeline.Lamp, origin, dir math.Vec3, tg *target, x, y, s int, color, bright *texture) {
	for _, l := range lamps {
		t, ok := raySphere(origin, dir, l.Position, l.Radius)
		i := tg.index(x, y, s)
		if !ok || t >= tg.depth[i] {
			continue
		}
		tg.depth[i] = t
		c := core.ColorFromRGB(l.Color, 1)
		color.set(0, 0, x, y, s, c)
		bright.set(0, 0, x, y, s, c)
	}
}
