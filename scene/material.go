package scene

import "walkthrough-renderer/core"

// Material is the fixed ordered set of PBR maps an object references by
// material id. Constant values stand in for any map that is absent.
type Material struct {
	Name string

	Albedo    *Texture
	Normal    *Texture
	Height    *Texture
	AO        *Texture
	Roughness *Texture
	Metalness *Texture
	Emissive  *Texture

	BaseColor      core.Color // multiplied with the albedo map
	RoughnessValue float32
	MetalnessValue float32
	AOValue        float32
	EmissiveColor  core.Color // multiplied with the emissive map
}

// Texture unit of each material slot, shared by every shading program.
const (
	UnitAlbedo    = 0
	UnitNormal    = 1
	UnitHeight    = 2
	UnitAO        = 3
	UnitRoughness = 4
	UnitMetalness = 5
	UnitEmissive  = 6
)

// DefaultMaterial returns a white dielectric of medium roughness.
func DefaultMaterial() *Material {
	return &Material{
		Name:           "default",
		BaseColor:      core.ColorWhite,
		RoughnessValue: 0.5,
		AOValue:        1,
		EmissiveColor:  core.ColorWhite,
	}
}

// NewMaterial creates a constant-valued material.
func NewMaterial(name string, albedo core.Color, metalness, roughness float32) *Material {
	m := DefaultMaterial()
	m.Name = name
	m.BaseColor = albedo
	m.MetalnessValue = metalness
	m.RoughnessValue = roughness
	return m
}

// Textures returns the maps in unit order; absent maps are nil.
func (m *Material) Textures() [7]*Texture {
	return [7]*Texture{m.Albedo, m.Normal, m.Height, m.AO, m.Roughness, m.Metalness, m.Emissive}
}

// Surface is a material evaluated at one texture coordinate, in linear space.
type Surface struct {
	Albedo    core.Color
	Normal    core.Color // tangent-space, [0,1] encoded; zero when no map
	Height    float32
	AO        float32
	Roughness float32
	Metalness float32
	Emissive  core.Color
}

// Evaluate samples every map at uv, falling back to the constants.
func (m *Material) Evaluate(u, v float32) Surface {
	s := Surface{
		Albedo:    m.BaseColor,
		AO:        m.AOValue,
		Roughness: m.RoughnessValue,
		Metalness: m.MetalnessValue,
		Emissive:  m.EmissiveColor,
	}
	if m.Albedo != nil {
		a := m.Albedo.Sample(u, v)
		s.Albedo = core.Color{R: a.R * s.Albedo.R, G: a.G * s.Albedo.G, B: a.B * s.Albedo.B, A: a.A * s.Albedo.A}
	}
	if m.Normal != nil {
		s.Normal = m.Normal.Sample(u, v)
	}
	if m.Height != nil {
		s.Height = m.Height.Sample(u, v).R
	}
	if m.AO != nil {
		s.AO = m.AO.Sample(u, v).R
	}
	if m.Roughness != nil {
		s.Roughness = m.Roughness.Sample(u, v).R
	}
	if m.Metalness != nil {
		s.Metalness = m.Metalness.Sample(u, v).R
	}
	if m.Emissive != nil {
		e := m.Emissive.Sample(u, v)
		s.Emissive = core.Color{R: e.R * s.Emissive.R, G: e.G * s.Emissive.G, B: e.B * s.Emissive.B, A: 1}
	}
	return s
}
