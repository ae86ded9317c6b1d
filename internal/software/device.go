// Package software is a CPU reference implementation of the rendering
// device. It ray casts each pixel through the same pass structure the
// OpenGL device rasterizes, so pass ordering, stencil masking and post
// processing can be exercised without a GPU.
package software

import (
	"fmt"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// Device is the software rendering device.
type Device struct {
	res *resources
}

func New() *Device {
	return &Device{res: newResources()}
}

func (d *Device) Name() string { return "software" }

func (d *Device) Resources() pipeline.Resources { return d.res }

// FailTargets makes later allocations of the named targets incomplete.
// A name matches a target's full name or its last path segment.
func (d *Device) FailTargets(names ...string) {
	for _, n := range names {
		d.res.fail[n] = true
	}
}

// Fill sets every texel and sample of h to c.
func (d *Device) Fill(h core.Handle, c core.Color) error {
	t, err := d.res.tex(h)
	if err != nil {
		return err
	}
	t.fill(c)
	return nil
}

// SetSample writes one sample of a 2D texture.
func (d *Device) SetSample(h core.Handle, x, y, sample int, c core.Color) error {
	t, err := d.res.tex(h)
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || x >= t.width || y >= t.height || sample < 0 || sample >= t.samples {
		return fmt.Errorf("texel %d,%d sample %d outside %q", x, y, sample, t.name)
	}
	t.set(0, 0, x, y, sample, c)
	return nil
}

// Textures counts live textures.
func (d *Device) Textures() int { return len(d.res.textures) }

func (d *Device) NewBaker(cfg *config.Config) (pipeline.Baker, error) {
	return &baker{res: d.res, cfg: cfg.IBL}, nil
}

func (d *Device) NewShadowCaster(cfg *config.Config) (pipeline.ShadowCaster, error) {
	sc, err := newShadowCaster(d.res, cfg.Shadow)
	if sc == nil {
		return nil, err
	}
	return sc, err
}

func (d *Device) NewLighting(cfg *config.Config) (pipeline.LightingPipeline, error) {
	switch cfg.PipelineType {
	case config.PipelineForward:
		return &forwardPipeline{res: d.res, cfg: cfg}, nil
	case config.PipelineDeferred:
		return &deferredPipeline{res: d.res, cfg: cfg, volume: scene.CreateSphere(1, 16, 8)}, nil
	}
	return nil, fmt.Errorf("unknown pipeline type %q", cfg.PipelineType)
}

func (d *Device) NewPostChain(cfg *config.Config) (pipeline.PostChain, error) {
	return &postChain{res: d.res, cfg: cfg}, nil
}

// Destroy drops every texture the device still holds.
func (d *Device) Destroy() {
	d.res.textures = map[core.Handle]*texture{}
}
