package scene

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

// PointLight is an omnidirectional light with inverse-square falloff.
type PointLight struct {
	Position  math.Vec3  `yaml:"position"`
	Color     core.Color `yaml:"color"`
	Intensity float32    `yaml:"intensity"`
	// MaxDistance is the radius of the deferred light volume. Zero derives
	// it from the light's radiance.
	MaxDistance float32 `yaml:"max_distance"`
}

// minRadianceCutoff is the radiance below which a light no longer matters
// to an 8-bit display.
const minRadianceCutoff = 5.0 / 256.0

func NewPointLight(position math.Vec3, color core.Color, intensity float32) *PointLight {
	return &PointLight{Position: position, Color: color, Intensity: intensity}
}

// Radiance is the light's color scaled by its intensity and the renderer's
// intensity multiplier.
func (l *PointLight) Radiance(multiplier float32) math.Vec3 {
	return l.Color.RGB().Mul(l.Intensity * multiplier)
}

// Radius returns the influence radius used for the deferred light volume.
func (l *PointLight) Radius(multiplier float32) float32 {
	if l.MaxDistance > 0 {
		return l.MaxDistance
	}
	peak := l.Radiance(multiplier).MaxComponent()
	if peak <= 0 {
		return 0
	}
	return math32.Sqrt(peak / minRadianceCutoff)
}
