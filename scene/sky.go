package scene

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

// Sky is the procedural gradient baked into the global probe and drawn as
// the background.
type Sky struct {
	Zenith    core.Color `yaml:"zenith"`
	Horizon   core.Color `yaml:"horizon"`
	Ground    core.Color `yaml:"ground"`
	Intensity float32    `yaml:"intensity"`
}

func DefaultSky() Sky {
	return Sky{
		Zenith:    core.Color{R: 0.18, G: 0.36, B: 0.78, A: 1},
		Horizon:   core.Color{R: 0.70, G: 0.80, B: 0.95, A: 1},
		Ground:    core.Color{R: 0.25, G: 0.22, B: 0.20, A: 1},
		Intensity: 1,
	}
}

// Sample returns the sky radiance along dir. Above the horizon it eases
// from horizon to zenith; below, it fades quickly to the ground color.
func (s Sky) Sample(dir math.Vec3) math.Vec3 {
	t := dir.Normalize().Y
	var c math.Vec3
	if t >= 0 {
		c = s.Horizon.RGB().Lerp(s.Zenith.RGB(), math32.Pow(t, 0.4))
	} else {
		c = s.Horizon.RGB().Lerp(s.Ground.RGB(), math32.Min(-t*3, 1))
	}
	return c.Mul(s.Intensity)
}
