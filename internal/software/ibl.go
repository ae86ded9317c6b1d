package software

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// baker captures environments by ray casting and integrates them the way
// the GPU convolution programs do.
type baker struct {
	res  *resources
	cfg  config.IBL
	brdf core.Handle
}

func (b *baker) Destroy() {
	if b.brdf.Valid() {
		b.res.FreeTexture(b.brdf)
		b.brdf = 0
	}
}

func (b *baker) BRDFLUT() (core.Handle, error) {
	if b.brdf.Valid() {
		return b.brdf, nil
	}
	n := b.cfg.BRDFSize
	pix := make([]core.Color, n*n)
	parallelRows(n, func(y int) {
		for x := 0; x < n; x++ {
			nDotV := (float32(x) + 0.5) / float32(n)
			roughness := (float32(y) + 0.5) / float32(n)
			ab := pipeline.IntegrateBRDF(nDotV, roughness, b.cfg.BRDFSamples)
			pix[y*n+x] = core.Color{R: ab[0], G: ab[1], A: 1}
		}
	})
	h, err := b.res.NewTexture(pipeline.TextureSpec{
		Name: "brdf_lut", Width: n, Height: n, Format: pipeline.FormatRG16F, Filter: pipeline.FilterLinear,
	}, pix)
	if err != nil {
		return 0, fmt.Errorf("brdf lut: %w", err)
	}
	b.brdf = h
	return h, nil
}

func (b *baker) Bake(req pipeline.BakeRequest) (scene.Probe, error) {
	var errs []error
	targets := make([]*pipeline.Target, 3)
	for i, spec := range pipeline.ProbeTargetSpecs(req.Name, b.cfg) {
		t, err := b.res.NewTarget(spec)
		if t == nil || len(t.Color) == 0 {
			for _, done := range targets[:i] {
				b.res.FreeTarget(done)
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
			b.res.FreeTarget(t)
		}
	}

	var equirect *texture
	if req.Equirect.Valid() {
		t, err := b.res.tex(req.Equirect)
		if err != nil {
			release()
			return scene.Probe{}, fmt.Errorf("bake %s: equirect: %w", req.Name, err)
		}
		equirect = t
	}

	capture := pipeline.NewCubeCapture(req.Position, b.cfg.CaptureNear, b.cfg.CaptureFar)
	if err := capture.Begin(); err != nil {
		release()
		return scene.Probe{}, err
	}
	for capture.Next() {
		switch {
		case !env.Complete:
		case equirect != nil:
			convertFace(equirect, capture.Face(), b.res.mustTex(env.Color[0]))
		default:
			b.captureFace(req, capture, b.res.mustTex(env.Color[0]))
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
	envTex := b.res.mustTex(env.Color[0])
	if irr.Complete {
		b.convolve(envTex, b.res.mustTex(irr.Color[0]))
	}
	if pre.Complete {
		b.prefilter(envTex, b.res.mustTex(pre.Color[0]))
	}

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

// captureFace renders one face with direct lighting only.
func (b *baker) captureFace(req pipeline.BakeRequest, c *pipeline.CubeCapture, env *texture) {
	size := env.width
	cam := newCamera(c.FaceView(size))
	w := newWorld(req.Items, nil)
	sh := &shader{res: b.res, lights: req.Lights}
	face := int(c.Face())
	parallelRows(size, func(y int) {
		for x := 0; x < size; x++ {
			origin, dir, far := cam.ray(float32(x)+0.5, float32(y)+0.5)
			h, ok := w.nearest(origin, dir, query{tMax: far, accept: opaque})
			if !ok {
				env.set(face, 0, x, y, 0, background(b.res, req.Background, req.Sky, dir))
				continue
			}
			s := surface(&h, req.Position)
			col := sh.direct(s, false, 0, 0).Add(s.emissive)
			env.set(face, 0, x, y, 0, core.ColorFromRGB(col, 1))
		}
	})
}

// convertFace fills one environment face from an equirectangular map.
func convertFace(src *texture, face math.CubeFace, env *texture) {
	size := env.width
	parallelRows(size, func(y int) {
		for x := 0; x < size; x++ {
			u, v := pipeline.EquirectUV(texelDir(face, x, y, size))
			env.set(int(face), 0, x, y, 0, core.ColorFromRGB(src.sample2D(u, v, 0).RGB(), 1))
		}
	})
}

// texelDir is the world direction through the centre of a cube texel.
func texelDir(face math.CubeFace, x, y, size int) math.Vec3 {
	u := (float32(x) + 0.5) / float32(size)
	v := (float32(y) + 0.5) / float32(size)
	return math.CubeFaceDirection(face, u, v).Normalize()
}

// convolve integrates cosine-weighted radiance over the hemisphere around
// each texel direction with a fixed angular step.
func (b *baker) convolve(env, irr *texture) {
	delta := b.cfg.IrradianceSampleDelta
	size := irr.width
	for f := 0; f < math.CubeFaceCount; f++ {
		parallelRows(size, func(y int) {
			for x := 0; x < size; x++ {
				n := texelDir(math.CubeFace(f), x, y, size)
				right, up := pipeline.TangentFrame(n)
				var sum math.Vec3
				count := 0
				for phi := float32(0); phi < 2*math.Pi; phi += delta {
					sp, cp := math32.Sincos(phi)
					for theta := float32(0); theta < 0.5*math.Pi; theta += delta {
						st, ct := math32.Sincos(theta)
						dir := right.Mul(st * cp).Add(up.Mul(st * sp)).Add(n.Mul(ct))
						sum = sum.Add(env.sampleCube(dir, 0).RGB().Mul(ct * st))
						count++
					}
				}
				irr.set(f, 0, x, y, 0, core.ColorFromRGB(sum.Mul(math.Pi/float32(count)), 1))
			}
		})
	}
}

// prefilter importance-samples the GGX lobe of increasing roughness into
// each mip level.
func (b *baker) prefilter(env, pre *texture) {
	levels := pre.levels()
	samples := uint32(b.cfg.PrefilterSamples)
	for level := 0; level < levels; level++ {
		roughness := float32(0)
		if levels > 1 {
			roughness = float32(level) / float32(levels-1)
		}
		size, _ := pre.levelSize(level)
		for f := 0; f < math.CubeFaceCount; f++ {
			parallelRows(size, func(y int) {
				for x := 0; x < size; x++ {
					n := texelDir(math.CubeFace(f), x, y, size)
					if roughness == 0 {
						pre.set(f, level, x, y, 0, core.ColorFromRGB(env.sampleCube(n, 0).RGB(), 1))
						continue
					}
					var sum math.Vec3
					var weight float32
					for i := uint32(0); i < samples; i++ {
						x0, x1 := pipeline.Hammersley(i, samples)
						h := pipeline.ImportanceSampleGGX(x0, x1, n, roughness)
						l := h.Mul(2 * n.Dot(h)).Sub(n).Normalize()
						if nDotL := n.Dot(l); nDotL > 0 {
							sum = sum.Add(env.sampleCube(l, 0).RGB().Mul(nDotL))
							weight += nDotL
						}
					}
					if weight > 0 {
						sum = sum.Div(weight)
					}
					pre.set(f, level, x, y, 0, core.ColorFromRGB(sum, 1))
				}
			})
		}
	}
}
