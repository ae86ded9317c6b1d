// Package pipeline holds the backend-neutral contracts of the rendering
// core: resource specs and render targets, the pass interfaces a device
// implements, the phase objects that order cube captures and light volume
// passes, render-state tables and the shading reference math.
package pipeline

import (
	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/scene"
)

// BakeRequest asks for one probe captured at Position. Background is the
// environment cubemap drawn behind the scene; zero draws Sky directly.
//
// Equirect, when set, is a float 2D texture in equirectangular layout. The
// environment is then converted from it face by face instead of captured,
// and Position, Items and Lights are ignored.
type BakeRequest struct {
	Name       string
	Position   math.Vec3
	Items      []DrawItem
	Lights     LightBlock
	Sky        scene.Sky
	Background core.Handle
	Equirect   core.Handle
}

// Baker is the Environment Capture & IBL Baker.
type Baker interface {
	// BRDFLUT computes the split-sum lookup texture on first use and
	// returns the same handle afterwards.
	BRDFLUT() (core.Handle, error)
	// Bake captures the environment, or converts it from req.Equirect, and
	// derives irradiance and prefiltered specular cubemaps. When an
	// intermediate target is incomplete the probe is still returned, marked
	// Degraded, with an error wrapping ErrIncomplete. The caller owns the
	// returned handles.
	Bake(req BakeRequest) (scene.Probe, error)
	Destroy()
}

// ShadowCaster is the omnidirectional shadow caster for one light at a time.
type ShadowCaster interface {
	// Cast renders the distance from light to the nearest shadow-casting
	// surface into every texel of the shadow cubemap.
	Cast(light math.Vec3, items []DrawItem) (core.Handle, error)
	Map() core.Handle
	Far() float32
	Destroy()
}

// LightingPipeline draws a frame into Frame.Targets.HDR: color 0 receives
// full color and color 1 the bright channel.
type LightingPipeline interface {
	Kind() config.PipelineType
	Render(f *Frame) error
	Destroy()
}

// PostResult is the outcome of the post-process chain.
type PostResult struct {
	// Output is the texture to present.
	Output core.Handle
	// Bloom is the blurred bright channel, zero when bloom was skipped.
	Bloom core.Handle
	// Skipped names every stage passed through because a target failed.
	Skipped []string
}

// PostChain resolves, blurs and composites the HDR outputs.
type PostChain interface {
	Run(t *FrameTargets) (PostResult, error)
	Destroy()
}

// Device is a rendering backend.
type Device interface {
	Name() string
	Resources() Resources
	NewBaker(cfg *config.Config) (Baker, error)
	NewShadowCaster(cfg *config.Config) (ShadowCaster, error)
	// NewLighting builds the pipeline named by cfg.PipelineType.
	NewLighting(cfg *config.Config) (LightingPipeline, error)
	NewPostChain(cfg *config.Config) (PostChain, error)
	Destroy()
}
