package pipeline

import (
	"fmt"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/scene"
)

// View is the camera state the core reads each frame.
type View struct {
	Position   math.Vec3
	View       math.Mat4
	Projection math.Mat4
	Near       float32
	Far        float32
	Width      int
	Height     int
}

// ViewFromCamera snapshots cam for a w x h surface.
func ViewFromCamera(cam *scene.Camera, w, h int) View {
	return View{
		Position:   cam.Position,
		View:       cam.ViewMatrix(),
		Projection: cam.ProjectionMatrix(),
		Near:       cam.NearPlane,
		Far:        cam.FarPlane,
		Width:      w,
		Height:     h,
	}
}

// ViewProjection composes view then projection.
func (v View) ViewProjection() math.Mat4 {
	return v.View.Mul(v.Projection)
}

// Ray returns the world-space ray through normalized device coordinates
// (ndcX, ndcY), starting on the near plane.
func (v View) Ray(ndcX, ndcY float32) (origin, dir math.Vec3) {
	inv := v.ViewProjection().Inverse()
	near := unproject(inv, ndcX, ndcY, -1)
	far := unproject(inv, ndcX, ndcY, 1)
	return near, far.Sub(near).Normalize()
}

func unproject(inv math.Mat4, x, y, z float32) math.Vec3 {
	return inv.MulVec(math.Vec4{X: x, Y: y, Z: z, W: 1}).ToVec3DivW()
}

// MaxLights is the capacity of the light block.
const MaxLights = 32

// GPULight is one entry of the light block: radiance already carries the
// renderer's intensity multiplier.
type GPULight struct {
	Position math.Vec3
	Radiance math.Vec3
	Radius   float32
}

// volumePadding grows the light volume mesh so its flat faces enclose the
// sphere of the light's radius.
const volumePadding = 1.1

// VolumeModel places the unit light volume mesh at the light, scaled to
// its radius.
func (l GPULight) VolumeModel() math.Mat4 {
	return math.Mat4Scale(math.Splat(l.Radius * volumePadding)).Mul(math.Mat4Translation(l.Position))
}

// LightBlock is the point-light array bound once per pass and iterated by
// the shaders.
type LightBlock struct {
	Lights []GPULight
}

// NewLightBlock converts scene lights, scaling by multiplier. Lights past
// MaxLights are dropped.
func NewLightBlock(lights []*scene.PointLight, multiplier float32) LightBlock {
	n := min(len(lights), MaxLights)
	b := LightBlock{Lights: make([]GPULight, n)}
	for i := 0; i < n; i++ {
		l := lights[i]
		b.Lights[i] = GPULight{
			Position: l.Position,
			Radiance: l.Radiance(multiplier),
			Radius:   l.Radius(multiplier),
		}
	}
	return b
}

// Lamp is the emissive marker sphere drawn at a light's position.
type Lamp struct {
	Position math.Vec3
	Color    math.Vec3
	Radius   float32
}

// NewLamps places one lamp of the given radius on each light.
func NewLamps(lights []*scene.PointLight, radius float32) []Lamp {
	lamps := make([]Lamp, len(lights))
	for i, l := range lights {
		lamps[i] = Lamp{Position: l.Position, Color: l.Color.RGB(), Radius: radius}
	}
	return lamps
}

// ShadowInfo describes the active shadow light for the lighting passes.
type ShadowInfo struct {
	Enabled bool
	// Light indexes the light block entry the shadow map belongs to.
	Light    int
	Position math.Vec3
	Map      core.Handle
	Far      float32
}

// DrawItem is one object resolved for drawing: its material, the probe
// it shades with and the program variant selected for it.
type DrawItem struct {
	Object   *scene.Object
	Material *scene.Material
	Probe    scene.Probe
	Variant  ShadingVariant
}

// NewDrawItem resolves o against s. Objects that need IBL use their own
// probe, which must be baked; the rest use global.
func NewDrawItem(s *scene.Scene, o *scene.Object, global scene.Probe) (DrawItem, error) {
	item := DrawItem{
		Object:   o,
		Material: s.Material(o.MaterialID),
		Probe:    global,
		Variant:  VariantFor(o),
	}
	if o.NeedsIBL {
		p, ok := o.Probe()
		if !ok {
			return item, fmt.Errorf("object %q: %w", o.ID, ErrProbeMissing)
		}
		item.Probe = p
	}
	return item, nil
}

// Frame is everything a lighting pipeline needs to draw one frame.
type Frame struct {
	View    View
	Items   []DrawItem
	Lights  LightBlock
	Shadow  ShadowInfo
	Global  scene.Probe
	BRDF    core.Handle
	Sky     scene.Sky // drawn when the global probe has no environment cubemap
	Lamps   []Lamp
	Targets *FrameTargets
}
