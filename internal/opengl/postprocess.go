package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/pipeline"
)

// postChain resolves the HDR outputs, blurs the bright channel through the
// ping-pong buffers and tone maps the composite into the final target.
type postChain struct {
	dev *Device
	cfg *config.Config
}

func (p *postChain) Destroy() {}

// source is a post input; multisampled inputs are read at sample 0.
type source struct {
	tex          core.Handle
	multisampled bool
}

func (p *postChain) sourceOf(h core.Handle) source {
	t, err := p.dev.res.tex(h)
	return source{tex: h, multisampled: err == nil && t.samples > 1}
}

// bindSource binds s to the image samplers of pr.
func bindSource(pr *program, s source) {
	pr.setBool("imageMultisampled", s.multisampled)
	bindTexture(samplerUnits["image"], gl.TEXTURE_2D, s.tex, !s.multisampled)
	bindTexture(samplerUnits["imageMS"], gl.TEXTURE_2D_MULTISAMPLE, s.tex, s.multisampled)
}

func (p *postChain) skip(res *pipeline.PostResult, stage string, t *pipeline.Target) {
	res.Skipped = append(res.Skipped, stage)
	logger.Log.Warn("post stage skipped", zap.String("stage", stage), zap.String("target", t.Spec.Name))
}

func (p *postChain) Run(ft *pipeline.FrameTargets) (pipeline.PostResult, error) {
	var out pipeline.PostResult
	if ft == nil || ft.HDR == nil {
		return out, fmt.Errorf("post: no HDR target")
	}
	d := p.dev
	hdr := ft.HDR
	color := p.sourceOf(hdr.Color[0])
	bright := p.sourceOf(hdr.Color[1])
	out.Output = hdr.Color[0]
	apply(pipeline.StatePost)

	// ── Step 1: MSAA resolve ─────────────────────────────────────────────────
	if ft.Samples > 1 && ft.Resolved != nil {
		if ft.Resolved.Complete {
			d.res.bind(ft.Resolved, 0, 0)
			r := d.progs.resolve
			r.use()
			r.setInt("samples", int32(ft.Samples))
			bindTexture(samplerUnits["colorMS"], gl.TEXTURE_2D_MULTISAMPLE, hdr.Color[0], true)
			bindTexture(samplerUnits["brightMS"], gl.TEXTURE_2D_MULTISAMPLE, hdr.Color[1], true)
			d.drawFullscreen()
			color = source{tex: ft.Resolved.Color[0]}
			bright = source{tex: ft.Resolved.Color[1]}
			out.Output = ft.Resolved.Color[0]
		} else {
			p.skip(&out, "resolve", ft.Resolved)
		}
	}

	// ── Step 2: ping-pong blur ───────────────────────────────────────────────
	var bloom *source
	if p.cfg.Bloom {
		bloom = &bright
		out.Bloom = bright.tex
		switch {
		case ft.Ping[0] == nil || ft.Ping[1] == nil:
		case !ft.Ping[0].Complete || !ft.Ping[1].Complete:
			p.skip(&out, "blur", ft.Ping[0])
		default:
			if last := p.blur(bright, ft.Ping); last >= 0 {
				bloom = &source{tex: ft.Ping[last].Color[0]}
				out.Bloom = ft.Ping[last].Color[0]
			}
		}
	}

	// ── Step 3: composite ────────────────────────────────────────────────────
	if ft.Final == nil || !ft.Final.Complete {
		if ft.Final != nil {
			p.skip(&out, "composite", ft.Final)
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		return out, nil
	}
	d.res.bind(ft.Final, 0, 0)
	c := d.progs.composite
	c.use()
	c.setFloat("exposure", p.cfg.Exposure)
	c.setFloat("gamma", p.cfg.Gamma)
	bindSource(c, color)
	c.setBool("hasBloom", bloom != nil)
	if bloom != nil {
		c.setBool("bloomMultisampled", bloom.multisampled)
		bindTexture(samplerUnits["bloomTex"], gl.TEXTURE_2D, bloom.tex, !bloom.multisampled)
		bindTexture(samplerUnits["bloomMS"], gl.TEXTURE_2D_MULTISAMPLE, bloom.tex, bloom.multisampled)
	}
	d.drawFullscreen()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	out.Output = ft.Final.Color[0]
	return out, nil
}

// blur runs the ping-pong passes over bright and returns the index of the
// buffer written last, or -1 when no pass ran. Pass i writes buffer
// (i+1) mod 2, alternating vertical and horizontal taps starting vertical.
func (p *postChain) blur(bright source, ping [2]*pipeline.Target) int {
	d := p.dev
	b := d.progs.blur
	b.use()
	last := -1
	src := bright
	for i := 0; i < p.cfg.BlurPassCount; i++ {
		dstIdx := (i + 1) % 2
		dst := ping[dstIdx]
		w, h := p.sourceSize(src)
		if i%2 == 1 {
			b.setVec2("blurStep", p.cfg.BlurOffsetFactor/float32(w), 0)
		} else {
			b.setVec2("blurStep", 0, p.cfg.BlurOffsetFactor/float32(h))
		}
		d.res.bind(dst, 0, 0)
		bindSource(b, src)
		d.drawFullscreen()
		src = source{tex: dst.Color[0]}
		last = dstIdx
	}
	return last
}

func (p *postChain) sourceSize(s source) (int, int) {
	t, err := p.dev.res.tex(s.tex)
	if err != nil {
		return 1, 1
	}
	return t.width, t.height
}
