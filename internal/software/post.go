package software

import (
	"fmt"

	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// postChain resolves, blurs and tone maps on the CPU.
type postChain struct {
	res *resources
	cfg *config.Config
}

func (p *postChain) Destroy() {}

// source is a color input that may still be multisampled; reads then
// fetch sample 0.
type source struct {
	tex *texture
}

func (s source) at(x, y int) core.Color { return s.tex.texel(0, 0, x, y) }

func (s source) sample(u, v float32) core.Color { return s.tex.bilinear(0, 0, u, v) }

func (p *postChain) skip(res *pipeline.PostResult, stage string, t *pipeline.Target) {
	res.Skipped = append(res.Skipped, stage)
	logger.Log.Warn("post stage skipped", zap.String("stage", stage), zap.String("target", t.Spec.Name))
}

func (p *postChain) Run(ft *pipeline.FrameTargets) (pipeline.PostResult, error) {
	var out pipeline.PostResult
	if ft == nil || ft.HDR == nil {
		return out, fmt.Errorf("post: no HDR target")
	}
	hdr := ft.HDR
	color := source{p.res.mustTex(hdr.Color[0])}
	bright := source{p.res.mustTex(hdr.Color[1])}
	out.Output = hdr.Color[0]

	// 1. MSAA resolve.
	if ft.Samples > 1 && ft.Resolved != nil {
		if ft.Resolved.Complete {
			for i := range 2 {
				p.resolve(p.res.mustTex(hdr.Color[i]), p.res.mustTex(ft.Resolved.Color[i]))
			}
			color = source{p.res.mustTex(ft.Resolved.Color[0])}
			bright = source{p.res.mustTex(ft.Resolved.Color[1])}
			out.Output = ft.Resolved.Color[0]
		} else {
			p.skip(&out, "resolve", ft.Resolved)
		}
	}

	// 2. Blur.
	var bloom *source
	if p.cfg.Bloom {
		bloom = &bright
		out.Bloom = hdr.Color[1]
		if ft.Resolved != nil && ft.Resolved.Complete {
			out.Bloom = ft.Resolved.Color[1]
		}
		switch {
		case ft.Ping[0] == nil || ft.Ping[1] == nil:
		case !ft.Ping[0].Complete || !ft.Ping[1].Complete:
			p.skip(&out, "blur", ft.Ping[0])
		default:
			last := p.blur(bright, ft.Ping)
			if last >= 0 {
				bloom = &source{p.res.mustTex(ft.Ping[last].Color[0])}
				out.Bloom = ft.Ping[last].Color[0]
			}
		}
	}

	// 3. Composite.
	if ft.Final == nil || !ft.Final.Complete {
		if ft.Final != nil {
			p.skip(&out, "composite", ft.Final)
		}
		return out, nil
	}
	final := p.res.mustTex(ft.Final.Color[0])
	parallelRows(final.height, func(y int) {
		for x := 0; x < final.width; x++ {
			c := color.at(x, y).RGB()
			if bloom != nil {
				u := (float32(x) + 0.5) / float32(final.width)
				v := (float32(y) + 0.5) / float32(final.height)
				c = c.Add(bloom.sample(u, v).RGB())
			}
			final.set(0, 0, x, y, 0, core.ColorFromRGB(pipeline.ToneMap(c, p.cfg.Exposure, p.cfg.Gamma), 1))
		}
	})
	out.Output = ft.Final.Color[0]
	return out, nil
}

// resolve averages every sample of src into dst, accumulating in float64.
func (p *postChain) resolve(src, dst *texture) {
	n := src.samples
	parallelRows(src.height, func(y int) {
		for x := 0; x < src.width; x++ {
			var r, g, b, a float64
			for s := 0; s < n; s++ {
				c := src.get(0, 0, x, y, s)
				r += float64(c.R)
				g += float64(c.G)
				b += float64(c.B)
				a += float64(c.A)
			}
			k := float64(n)
			dst.set(0, 0, x, y, 0, core.Color{R: float32(r / k), G: float32(g / k), B: float32(b / k), A: float32(a / k)})
		}
	})
}

// blur runs the ping-pong passes over bright and returns the index of the
// buffer written last, or -1 when no pass ran. Pass i writes buffer
// (i+1) mod 2, alternating vertical and horizontal taps starting vertical.
func (p *postChain) blur(bright source, ping [2]*pipeline.Target) int {
	last := -1
	src := bright
	for i := 0; i < p.cfg.BlurPassCount; i++ {
		dstIdx := (i + 1) % 2
		dst := p.res.mustTex(ping[dstIdx].Color[0])
		horizontal := i%2 == 1
		p.blurPass(src, dst, horizontal)
		src = source{dst}
		last = dstIdx
	}
	return last
}

func (p *postChain) blurPass(src source, dst *texture, horizontal bool) {
	step := math.Vec2{Y: p.cfg.BlurOffsetFactor / float32(src.tex.height)}
	if horizontal {
		step = math.Vec2{X: p.cfg.BlurOffsetFactor / float32(src.tex.width)}
	}
	w := pipeline.BlurWeights
	parallelRows(dst.height, func(y int) {
		for x := 0; x < dst.width; x++ {
			uv := math.Vec2{X: (float32(x) + 0.5) / float32(dst.width), Y: (float32(y) + 0.5) / float32(dst.height)}
			c := src.sample(uv.X, uv.Y).RGB().Mul(w[0])
			for k := 1; k < len(w); k++ {
				o := step.Mul(float32(k))
				a := src.sample(uv.X+o.X, uv.Y+o.Y).RGB()
				b := src.sample(uv.X-o.X, uv.Y-o.Y).RGB()
				c = c.Add(a.Add(b).Mul(w[k]))
			}
			dst.set(0, 0, x, y, 0, core.ColorFromRGB(c, 1))
		}
	})
}
