package scene

import (
	"errors"
	"fmt"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

var (
	// ErrPartialProbe is returned when a probe has some but not all of its handles.
	ErrPartialProbe = errors.New("probe handles must be all present or all absent")
	// ErrInvalidObject wraps every ObjectConfig validation failure.
	ErrInvalidObject = errors.New("invalid object")
)

// ObjectConfig carries every per-object setting as a named field.
// Start from DefaultObjectConfig and override what differs.
type ObjectConfig struct {
	ID         string    `yaml:"id"`
	MaterialID string    `yaml:"material"`
	Position   math.Vec3 `yaml:"position"`
	Rotation   math.Vec3 `yaml:"rotation"` // Euler angles, degrees
	Scale      math.Vec3 `yaml:"scale"`
	// IBLPosition is the capture viewpoint; nil means Position.
	IBLPosition *math.Vec3 `yaml:"ibl_position"`
	UVScale     float32    `yaml:"uv_scale"`
	Alpha       float32    `yaml:"alpha"`

	GenerateShadow  bool `yaml:"generate_shadow"`
	ReceiveShadow   bool `yaml:"receive_shadow"`
	Bloom           bool `yaml:"bloom"`
	OpacityMap      bool `yaml:"opacity_map"`
	NormalMap       bool `yaml:"normal_map"`
	HeightMap       bool `yaml:"height_map"`
	Emissive        bool `yaml:"emissive"`
	ParallaxCubemap bool `yaml:"parallax_cubemap"`
	NeedsIBL        bool `yaml:"needs_ibl"`

	// Wall marks room geometry; probe captures include walls only when
	// IncludeWalls is set, and then only those named in WallFilter (all
	// walls when WallFilter is empty).
	Wall         bool     `yaml:"wall"`
	IncludeWalls bool     `yaml:"include_walls"`
	WallFilter   []string `yaml:"wall_filter"`

	ShadowDarkness     float32 `yaml:"shadow_darkness"`
	ShadowBias         float32 `yaml:"shadow_bias"`
	BloomBrightness    float32 `yaml:"bloom_brightness"`
	DisplacementFactor float32 `yaml:"displacement_factor"`
	TessellationFactor float32 `yaml:"tessellation_factor"`
	EmissiveFactor     float32 `yaml:"emissive_factor"`

	// ProbeBox bounds the room used for parallax-corrected reflections.
	ProbeBoxMin math.Vec3 `yaml:"probe_box_min"`
	ProbeBoxMax math.Vec3 `yaml:"probe_box_max"`
}

func DefaultObjectConfig() ObjectConfig {
	return ObjectConfig{
		MaterialID:         "default",
		Scale:              math.Vec3One,
		UVScale:            1,
		Alpha:              1,
		GenerateShadow:     true,
		ReceiveShadow:      true,
		NeedsIBL:           true,
		ShadowDarkness:     0.75,
		ShadowBias:         0.05,
		BloomBrightness:    1,
		DisplacementFactor: 0.05,
		TessellationFactor: 1,
		EmissiveFactor:     1,
	}
}

// Validate checks the flag and tunable combinations once, at construction.
func (c ObjectConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.ID != "", "id must be set")
	check(c.Alpha >= 0 && c.Alpha <= 1, "alpha %v out of [0,1]", c.Alpha)
	check(c.Scale.X != 0 && c.Scale.Y != 0 && c.Scale.Z != 0, "scale %v has a zero axis", c.Scale)
	check(c.UVScale > 0, "uv_scale %v must be > 0", c.UVScale)
	check(c.ShadowDarkness >= 0 && c.ShadowDarkness <= 1, "shadow_darkness %v out of [0,1]", c.ShadowDarkness)
	check(c.ShadowBias >= 0, "shadow_bias %v must be >= 0", c.ShadowBias)
	check(c.BloomBrightness >= 0, "bloom_brightness %v must be >= 0", c.BloomBrightness)
	check(c.EmissiveFactor >= 0, "emissive_factor %v must be >= 0", c.EmissiveFactor)
	check(!c.HeightMap || c.TessellationFactor > 0, "height_map needs tessellation_factor > 0")
	check(!c.ParallaxCubemap || (AABB{Min: c.ProbeBoxMin, Max: c.ProbeBoxMax}).Valid(),
		"parallax_cubemap needs probe_box_min < probe_box_max")
	check(len(c.WallFilter) == 0 || c.IncludeWalls, "wall_filter without include_walls")
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidObject, c.ID, errors.Join(errs...))
}

// Probe is the cached result of one IBL bake: environment, irradiance and
// prefiltered-specular cubemaps. Degraded marks a bake whose intermediate
// targets failed; its handles are still usable but may be black.
type Probe struct {
	Environment core.Handle
	Irradiance  core.Handle
	Prefiltered core.Handle
	Degraded    bool
}

// Handles returns the triple in its fixed order.
func (p Probe) Handles() [3]core.Handle {
	return [3]core.Handle{p.Environment, p.Irradiance, p.Prefiltered}
}

// Baked reports whether all three handles are present.
func (p Probe) Baked() bool {
	return p.Environment.Valid() && p.Irradiance.Valid() && p.Prefiltered.Valid()
}

// Empty reports whether no handle is present.
func (p Probe) Empty() bool {
	return !p.Environment.Valid() && !p.Irradiance.Valid() && !p.Prefiltered.Valid()
}

// Validate enforces the all-or-none rule and that baked handles are distinct.
func (p Probe) Validate() error {
	if p.Empty() {
		return nil
	}
	if !p.Baked() {
		return ErrPartialProbe
	}
	if p.Environment == p.Irradiance || p.Environment == p.Prefiltered || p.Irradiance == p.Prefiltered {
		return fmt.Errorf("probe handles not distinct: %v", p.Handles())
	}
	return nil
}

// Object is a drawable scene object. Configuration is fixed by NewObject;
// only the transform may change afterwards, between frames.
type Object struct {
	ObjectConfig
	Mesh *Mesh

	model  math.Mat4
	normal math.Mat4
	probe  Probe
}

// NewObject validates cfg and binds it to mesh.
func NewObject(cfg ObjectConfig, mesh *Mesh) (*Object, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mesh == nil {
		return nil, fmt.Errorf("%w %q: nil mesh", ErrInvalidObject, cfg.ID)
	}
	cfg.WallFilter = append([]string(nil), cfg.WallFilter...)
	o := &Object{ObjectConfig: cfg, Mesh: mesh}
	o.updateMatrices()
	return o, nil
}

// SetTransform moves the object; used by door and animation scripts.
func (o *Object) SetTransform(position, rotation math.Vec3) {
	o.Position = position
	o.Rotation = rotation
	o.updateMatrices()
}

func (o *Object) updateMatrices() {
	rot := math.QuaternionFromEuler(math.Vec3{
		X: math.Radians(o.Rotation.X),
		Y: math.Radians(o.Rotation.Y),
		Z: math.Radians(o.Rotation.Z),
	})
	o.model = math.Mat4TRS(o.Position, rot, o.Scale)
	o.normal = o.model.NormalMatrix()
}

// ModelMatrix is the object-to-world transform.
func (o *Object) ModelMatrix() math.Mat4 { return o.model }

// NormalMatrix carries object-space normals to world space.
func (o *Object) NormalMatrix() math.Mat4 { return o.normal }

// CapturePosition is where the object's environment is captured from.
func (o *Object) CapturePosition() math.Vec3 {
	if o.IBLPosition != nil {
		return *o.IBLPosition
	}
	return o.Position
}

// Bounds is the world-space AABB of the object's mesh.
func (o *Object) Bounds() AABB {
	return ComputeAABB(o.Mesh, o.model)
}

// ProbeBox is the parallax-correction volume.
func (o *Object) ProbeBox() AABB {
	return AABB{Min: o.ProbeBoxMin, Max: o.ProbeBoxMax}
}

// SetProbe caches a bake result. Partial or aliased triples are rejected.
func (o *Object) SetProbe(p Probe) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("object %q: %w", o.ID, err)
	}
	o.probe = p
	return nil
}

// Probe returns the cached bake and whether one exists.
func (o *Object) Probe() (Probe, bool) {
	return o.probe, o.probe.Baked()
}

// IncludesWall reports whether wall w belongs in this object's captures.
func (o *Object) IncludesWall(w *Object) bool {
	if !o.IncludeWalls {
		return false
	}
	if len(o.WallFilter) == 0 {
		return true
	}
	for _, id := range o.WallFilter {
		if id == w.ID {
			return true
		}
	}
	return false
}
