// Package renderer is the orchestrator of the rendering core. It owns the
// device passes, every render target and every baked probe, runs the bakes
// during Init and sequences shadow, lighting and post passes each frame.
package renderer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// Renderer drives one pipeline.Device for one scene.
type Renderer struct {
	dev   pipeline.Device
	res   pipeline.Resources
	cfg   config.Config
	Scene *scene.Scene

	// FrustumCulling skips objects whose bounds lie outside the view.
	FrustumCulling bool

	baker    pipeline.Baker
	shadow   pipeline.ShadowCaster
	lighting pipeline.LightingPipeline
	post     pipeline.PostChain

	targets *pipeline.FrameTargets
	width   int
	height  int

	global scene.Probe
	brdf   core.Handle
	baked  []scene.Probe
	ready  bool

	// envs holds one global probe per scene environment, in scene order.
	envs []scene.Probe

	output pipeline.PostResult
	// warned records objects whose missing probe was already logged.
	warned map[string]bool

	// Per-frame stats (populated during RenderFrame)
	lastObjects   int
	lastTriangles int
	lastCulled    int
	lastLights    int
}

// New builds the passes for cfg.PipelineType on dev. Targets are sized
// width x height; nothing is baked until Init.
func New(dev pipeline.Device, cfg config.Config, s *scene.Scene, width, height int) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("surface %dx%d: %w", width, height, pipeline.ErrTargetMismatch)
	}
	if cfg.Environment != "" {
		i := s.EnvironmentIndex(cfg.Environment)
		if i < 0 {
			return nil, fmt.Errorf("config: unknown environment %q", cfg.Environment)
		}
		s.Environment = i
	}

	r := &Renderer{
		dev:            dev,
		res:            dev.Resources(),
		cfg:            cfg.Clone(),
		Scene:          s,
		FrustumCulling: true,
		width:          width,
		height:         height,
		warned:         make(map[string]bool),
	}
	if r.cfg.PipelineType == config.PipelineDeferred && r.cfg.Samples() > 1 {
		logger.Log.Info("multisampling disabled for deferred pipeline",
			zap.Int("nb_multi_sample", r.cfg.NbMultiSample))
	}

	var err error
	if r.baker, err = dev.NewBaker(&r.cfg); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("baker: %w", err)
	}
	if r.lighting, err = dev.NewLighting(&r.cfg); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("lighting: %w", err)
	}
	if r.post, err = dev.NewPostChain(&r.cfg); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("post chain: %w", err)
	}
	sc, err := dev.NewShadowCaster(&r.cfg)
	if sc == nil {
		r.Destroy()
		return nil, fmt.Errorf("shadow caster: %w", err)
	}
	r.shadow = sc
	if err != nil {
		logger.Log.Warn("shadow map incomplete, shadows degraded", zap.Error(err))
	}

	logger.Log.Info("renderer created",
		zap.String("device", dev.Name()),
		zap.String("pipeline", string(r.lighting.Kind())),
		zap.Int("width", width), zap.Int("height", height))
	return r, nil
}

// Config returns the configuration the renderer was built with.
func (r *Renderer) Config() config.Config { return r.cfg }

// Kind is the lighting architecture chosen at construction.
func (r *Renderer) Kind() config.PipelineType { return r.lighting.Kind() }

// ── Initialization ──────────────────────────────────────────────────────────

// Init computes the BRDF lookup table, bakes the global probes (one per
// scene environment, or the procedural sky when there are none), bakes a
// probe for every object with NeedsIBL and allocates the frame targets.
// Bakes that degrade are logged and kept; only a bake that yields no
// handles at all fails Init.
func (r *Renderer) Init() error {
	if r.ready {
		return nil
	}
	brdf, err := r.baker.BRDFLUT()
	if err != nil {
		return fmt.Errorf("brdf lut: %w", err)
	}
	r.brdf = brdf

	if len(r.Scene.Environments) == 0 {
		global, err := r.bake(pipeline.BakeRequest{Name: "global", Sky: r.Scene.Sky})
		if err != nil {
			return err
		}
		r.global = global
	} else {
		for _, env := range r.Scene.Environments {
			p, err := r.bakeEnvironment(env)
			if err != nil {
				return err
			}
			r.envs = append(r.envs, p)
		}
		r.global = r.envs[r.Scene.Environment]
	}

	lights := pipeline.NewLightBlock(r.Scene.Lights, r.cfg.LightIntensityMultiplier)
	for _, o := range r.Scene.Objects {
		if !o.NeedsIBL {
			continue
		}
		p, err := r.bake(pipeline.BakeRequest{
			Name:       o.ID,
			Position:   o.CapturePosition(),
			Items:      r.captureItems(o),
			Lights:     lights,
			Sky:        r.Scene.Sky,
			Background: r.global.Environment,
		})
		if err != nil {
			return err
		}
		if err := o.SetProbe(p); err != nil {
			return err
		}
	}

	if err := r.allocTargets(r.width, r.height); err != nil {
		if r.targets == nil {
			return err
		}
		logger.Log.Warn("frame targets incomplete, frames will degrade", zap.Error(err))
	}
	r.ready = true
	logger.Log.Info("initialization complete",
		zap.Int("probes", len(r.baked)), zap.Int("objects", len(r.Scene.Objects)))
	return nil
}

// bake runs one probe bake and takes ownership of its handles.
func (r *Renderer) bake(req pipeline.BakeRequest) (scene.Probe, error) {
	p, err := r.baker.Bake(req)
	if p.Empty() {
		if err == nil {
			err = pipeline.ErrIncomplete
		}
		return p, fmt.Errorf("bake %q: %w", req.Name, err)
	}
	if err != nil {
		logger.Log.Warn("probe bake degraded", zap.String("probe", req.Name), zap.Error(err))
	}
	r.baked = append(r.baked, p)
	return p, nil
}

// bakeEnvironment uploads env as a float texture, converts it into a
// probe and frees the upload.
func (r *Renderer) bakeEnvironment(env *scene.Environment) (scene.Probe, error) {
	h, err := r.res.NewTexture(pipeline.TextureSpec{
		Name: "equirect/" + env.Name, Width: env.Width, Height: env.Height,
		Format: pipeline.FormatRGBA16F, Filter: pipeline.FilterLinear, Wrap: pipeline.WrapClamp,
	}, env.Texels)
	if err != nil {
		return scene.Probe{}, fmt.Errorf("environment %q: %w", env.Name, err)
	}
	defer r.res.FreeTexture(h)
	return r.bake(pipeline.BakeRequest{Name: "environment/" + env.Name, Sky: r.Scene.Sky, Equirect: h})
}

// captureItems lists what a capture from o sees: every other non-wall
// object plus the walls o includes.
func (r *Renderer) captureItems(o *scene.Object) []pipeline.DrawItem {
	var items []pipeline.DrawItem
	for _, other := range r.Scene.Objects {
		if other == o {
			continue
		}
		if other.Wall && !o.IncludesWall(other) {
			continue
		}
		items = append(items, pipeline.DrawItem{
			Object:   other,
			Material: r.Scene.Material(other.MaterialID),
			Probe:    r.global,
			Variant:  pipeline.VariantFor(other),
		})
	}
	return items
}

func (r *Renderer) allocTargets(w, h int) error {
	t, err := pipeline.AllocFrameTargets(r.res, &r.cfg, w, h)
	r.targets = t
	r.width, r.height = w, h
	return err
}

// ── Frame ───────────────────────────────────────────────────────────────────

// RenderFrame draws one frame from cam and runs the post chain. The
// presented texture is returned in the result and kept for Output.
// Incomplete targets degrade the frame without failing it.
func (r *Renderer) RenderFrame(cam *scene.Camera) (pipeline.PostResult, error) {
	if !r.ready {
		return pipeline.PostResult{}, pipeline.ErrNotBaked
	}
	if r.targets == nil {
		return pipeline.PostResult{}, fmt.Errorf("frame targets: %w", pipeline.ErrIncomplete)
	}
	if err := r.targets.Check(r.width, r.height); err != nil {
		return pipeline.PostResult{}, err
	}

	view := pipeline.ViewFromCamera(cam, r.width, r.height)
	items, err := r.drawItems(view)
	if err != nil {
		return pipeline.PostResult{}, err
	}

	lights := pipeline.NewLightBlock(r.Scene.Lights, r.cfg.LightIntensityMultiplier)
	frame := &pipeline.Frame{
		View:    view,
		Items:   items,
		Lights:  lights,
		Shadow:  r.castShadow(),
		Global:  r.global,
		BRDF:    r.brdf,
		Sky:     r.Scene.Sky,
		Targets: r.targets,
	}
	if r.cfg.Lamp.Visible {
		frame.Lamps = pipeline.NewLamps(r.Scene.Lights, r.cfg.Lamp.Scale)
	}
	r.lastLights = len(lights.Lights)

	if err := r.lighting.Render(frame); err != nil {
		if !errors.Is(err, pipeline.ErrIncomplete) {
			return pipeline.PostResult{}, fmt.Errorf("%s pass: %w", r.lighting.Kind(), err)
		}
		logger.Log.Warn("lighting pass skipped", zap.Error(err))
	}

	result, err := r.post.Run(r.targets)
	if err != nil {
		if !errors.Is(err, pipeline.ErrIncomplete) {
			return result, fmt.Errorf("post chain: %w", err)
		}
		logger.Log.Warn("post chain degraded", zap.Error(err))
	}
	r.output = result
	return result, nil
}

// drawItems resolves every visible object. An object whose probe is
// missing is an ordering error: returned in debug mode, otherwise logged
// once and drawn with the global probe.
func (r *Renderer) drawItems(view pipeline.View) ([]pipeline.DrawItem, error) {
	frustum := scene.FrustumFromVP(view.ViewProjection())
	items := make([]pipeline.DrawItem, 0, len(r.Scene.Objects))
	r.lastObjects, r.lastTriangles, r.lastCulled = 0, 0, 0

	for _, o := range r.Scene.Objects {
		if r.FrustumCulling {
			if b := o.Bounds(); b.Valid() && !b.IntersectsFrustum(&frustum) {
				r.lastCulled++
				continue
			}
		}
		item, err := pipeline.NewDrawItem(r.Scene, o, r.global)
		if err != nil {
			if r.cfg.Debug {
				return nil, err
			}
			if !r.warned[o.ID] {
				logger.Log.Error("drawing with global probe", zap.String("object", o.ID), zap.Error(err))
				r.warned[o.ID] = true
			}
		}
		items = append(items, item)
		r.lastObjects++
		r.lastTriangles += o.Mesh.TriangleCount()
	}
	return items, nil
}

// castShadow renders the shadow cubemap for the scene's shadow light from
// every shadow-generating object, visible or not.
func (r *Renderer) castShadow() pipeline.ShadowInfo {
	idx := r.Scene.ShadowLight
	if idx < 0 || idx >= len(r.Scene.Lights) || idx >= pipeline.MaxLights {
		return pipeline.ShadowInfo{}
	}
	var casters []pipeline.DrawItem
	for _, o := range r.Scene.Objects {
		if !o.GenerateShadow {
			continue
		}
		casters = append(casters, pipeline.DrawItem{
			Object:   o,
			Material: r.Scene.Material(o.MaterialID),
			Variant:  pipeline.VariantFor(o),
		})
	}

	pos := r.Scene.Lights[idx].Position
	m, err := r.shadow.Cast(pos, casters)
	if err != nil {
		logger.Log.Warn("shadow cast degraded", zap.Int("light", idx), zap.Error(err))
		// An incomplete map was never rendered; receivers draw unshadowed.
		if !m.Valid() || errors.Is(err, pipeline.ErrIncomplete) {
			return pipeline.ShadowInfo{}
		}
	}
	return pipeline.ShadowInfo{
		Enabled:  true,
		Light:    idx,
		Position: pos,
		Map:      m,
		Far:      r.shadow.Far(),
	}
}

// SetShadowLight selects which light casts shadows; -1 disables shadows.
// The cubemap is re-rendered in full on the next frame.
func (r *Renderer) SetShadowLight(i int) error {
	if i < -1 || i >= len(r.Scene.Lights) {
		return fmt.Errorf("shadow light %d out of range (%d lights)", i, len(r.Scene.Lights))
	}
	r.Scene.ShadowLight = i
	return nil
}

// SetEnvironment switches the global probe and background to scene
// environment i. Object probes keep the environment they were baked with.
func (r *Renderer) SetEnvironment(i int) error {
	if !r.ready {
		return pipeline.ErrNotBaked
	}
	if i < 0 || i >= len(r.envs) {
		return fmt.Errorf("environment %d out of range (%d environments)", i, len(r.envs))
	}
	r.Scene.Environment = i
	r.global = r.envs[i]
	logger.Log.Info("environment selected", zap.String("environment", r.Scene.Environments[i].Name))
	return nil
}

// SetBloom turns the bright-pass blur on or off from the next frame.
func (r *Renderer) SetBloom(on bool) { r.cfg.Bloom = on }

// SetExposure sets the tone-mapping exposure, clamped to [MinExposure,
// MaxExposure], and returns the value in use.
func (r *Renderer) SetExposure(e float32) float32 {
	r.cfg.Exposure = math.Clamp(e, MinExposure, MaxExposure)
	return r.cfg.Exposure
}

// Exposure bounds accepted by SetExposure.
const (
	MinExposure = 0.01
	MaxExposure = 2
)

// SetLampsVisible shows or hides the light markers.
func (r *Renderer) SetLampsVisible(on bool) { r.cfg.Lamp.Visible = on }

// ── Surface ─────────────────────────────────────────────────────────────────

// Resize reallocates every surface-sized target at w x h. Probes and the
// shadow cubemap keep their fixed sizes.
func (r *Renderer) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("resize %dx%d: %w", w, h, pipeline.ErrTargetMismatch)
	}
	if w == r.width && h == r.height && r.targets != nil {
		return nil
	}
	if r.targets != nil {
		r.targets.Free(r.res)
		r.targets = nil
	}
	r.output = pipeline.PostResult{}
	if !r.ready {
		r.width, r.height = w, h
		return nil
	}
	err := r.allocTargets(w, h)
	if err != nil {
		logger.Log.Warn("frame targets incomplete after resize", zap.Int("width", w), zap.Int("height", h), zap.Error(err))
	}
	return err
}

// Size is the current surface size.
func (r *Renderer) Size() (w, h int) { return r.width, r.height }

// Resources is the device's Resource Layer, for reading textures back.
func (r *Renderer) Resources() pipeline.Resources { return r.res }

// Targets exposes the frame targets for inspection.
func (r *Renderer) Targets() *pipeline.FrameTargets { return r.targets }

// Output is the texture presented by the last frame, zero before the first.
func (r *Renderer) Output() core.Handle { return r.output.Output }

// Probe returns the baked handle triple of object id.
func (r *Renderer) Probe(id string) (scene.Probe, bool) {
	o := r.Scene.Object(id)
	if o == nil {
		return scene.Probe{}, false
	}
	return o.Probe()
}

// GlobalProbe is the sky probe shared by objects without their own.
func (r *Renderer) GlobalProbe() scene.Probe { return r.global }

// BRDFLUT is the shared split-sum lookup texture.
func (r *Renderer) BRDFLUT() core.Handle { return r.brdf }

// DrawStats returns per-frame statistics from the most recent RenderFrame.
func (r *Renderer) DrawStats() (objects, triangles, culled, lights int) {
	return r.lastObjects, r.lastTriangles, r.lastCulled, r.lastLights
}

// ── Cleanup ─────────────────────────────────────────────────────────────────

// Destroy frees every target and probe the renderer owns, then the passes.
// The device itself belongs to the caller.
func (r *Renderer) Destroy() {
	if r.targets != nil {
		r.targets.Free(r.res)
		r.targets = nil
	}
	for _, p := range r.baked {
		for _, h := range p.Handles() {
			if h.Valid() {
				r.res.FreeTexture(h)
			}
		}
	}
	r.baked = nil
	r.envs = nil
	for _, o := range r.Scene.Objects {
		if o.NeedsIBL {
			_ = o.SetProbe(scene.Probe{})
		}
	}
	r.global = scene.Probe{}
	if r.lighting != nil {
		r.lighting.Destroy()
	}
	if r.post != nil {
		r.post.Destroy()
	}
	if r.shadow != nil {
		r.shadow.Destroy()
	}
	if r.baker != nil {
		r.baker.Destroy()
	}
	r.brdf = 0
	r.ready = false
}
