package pipeline

import (
	"errors"
	"fmt"

	"walkthrough-renderer/config"
)

// FrameTargets is every surface-sized render target of one frame. The
// orchestrator owns them; passes borrow them for the duration of a draw.
type FrameTargets struct {
	Width   int
	Height  int
	Samples int

	// HDR receives the shading outputs: color 0 full color, color 1 bright.
	HDR *Target
	// Resolved holds the single-sample copy of HDR; nil without MSAA.
	Resolved *Target
	// GBuffer is allocated for the deferred pipeline only.
	GBuffer *Target
	Ping    [2]*Target
	Final   *Target
}

// FrameTargetSpecs returns the specs for a surface of w x h. Deferred
// shading always renders single-sampled.
func FrameTargetSpecs(cfg *config.Config, w, h int) []TargetSpec {
	samples := cfg.Samples()
	deferred := cfg.PipelineType == config.PipelineDeferred
	if deferred {
		samples = 1
	}
	specs := []TargetSpec{
		{Name: "hdr", Width: w, Height: h, Samples: samples, Color: HDRAttachments(), DepthStencil: true},
	}
	if samples > 1 {
		specs = append(specs, TargetSpec{Name: "resolved", Width: w, Height: h, Samples: 1, Color: HDRAttachments()})
	}
	if deferred {
		specs = append(specs, GBufferSpec(w, h))
	}
	bw, bh := BloomSize(cfg, w, h)
	for _, name := range []string{"ping0", "ping1"} {
		specs = append(specs, TargetSpec{
			Name: name, Width: bw, Height: bh, Samples: 1,
			Color: []AttachmentSpec{{Format: FormatRGBA16F, Filter: FilterLinear, Wrap: WrapClamp}},
		})
	}
	specs = append(specs, TargetSpec{
		Name: "final", Width: w, Height: h, Samples: 1,
		Color: []AttachmentSpec{{Format: FormatRGBA8, Filter: FilterLinear, Wrap: WrapClamp}},
	})
	return specs
}

// ProbeTargetSpecs lays out the three cube targets of one bake:
// environment (with a depth buffer for the capture), irradiance and the
// mipmapped prefiltered specular map.
func ProbeTargetSpecs(name string, cfg config.IBL) []TargetSpec {
	cube := func(kind string, size, levels int, filter Filter) TargetSpec {
		return TargetSpec{
			Name: name + "/" + kind, Width: size, Height: size, Cube: true, Levels: levels,
			Color: []AttachmentSpec{{Format: FormatRGBA16F, Filter: filter}},
		}
	}
	// Captures rasterize opaque geometry, so only the environment needs depth.
	env := cube("environment", cfg.EnvironmentSize, 1, FilterLinear)
	env.DepthStencil = true
	return []TargetSpec{
		env,
		cube("irradiance", cfg.IrradianceSize, 1, FilterLinear),
		cube("prefiltered", cfg.PrefilterSize, cfg.PrefilterMips, FilterTrilinear),
	}
}

// BloomSize is the ping-pong buffer size for a w x h surface.
func BloomSize(cfg *config.Config, w, h int) (int, int) {
	bw := int(float32(w) * cfg.BloomDownsample)
	bh := int(float32(h) * cfg.BloomDownsample)
	return max(bw, 1), max(bh, 1)
}

// AllocFrameTargets allocates every frame target. Incomplete targets are
// kept and reported together; the post chain skips the stages they feed.
func AllocFrameTargets(res Resources, cfg *config.Config, w, h int) (*FrameTargets, error) {
	ft := &FrameTargets{Width: w, Height: h, Samples: 1}
	var errs []error
	for _, spec := range FrameTargetSpecs(cfg, w, h) {
		t, err := res.NewTarget(spec)
		if t == nil {
			ft.Free(res)
			return nil, fmt.Errorf("allocate %s: %w", spec.Name, err)
		}
		if err != nil {
			errs = append(errs, err)
		}
		switch spec.Name {
		case "hdr":
			ft.HDR = t
			ft.Samples = spec.SampleCount()
		case "resolved":
			ft.Resolved = t
		case "gbuffer":
			ft.GBuffer = t
		case "ping0":
			ft.Ping[0] = t
		case "ping1":
			ft.Ping[1] = t
		case "final":
			ft.Final = t
		}
	}
	return ft, errors.Join(errs...)
}

// All lists the allocated targets.
func (ft *FrameTargets) All() []*Target {
	var out []*Target
	for _, t := range []*Target{ft.HDR, ft.Resolved, ft.GBuffer, ft.Ping[0], ft.Ping[1], ft.Final} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Check verifies every surface-sized target matches w x h.
func (ft *FrameTargets) Check(w, h int) error {
	for _, t := range []*Target{ft.HDR, ft.Resolved, ft.GBuffer, ft.Final} {
		if t != nil && !t.Matches(w, h) {
			tw, th := t.Size()
			return fmt.Errorf("%w: %s is %dx%d, surface is %dx%d", ErrTargetMismatch, t.Spec.Name, tw, th, w, h)
		}
	}
	return nil
}

// Free releases every target.
func (ft *FrameTargets) Free(res Resources) {
	for _, t := range ft.All() {
		res.FreeTarget(t)
	}
	*ft = FrameTargets{}
}
