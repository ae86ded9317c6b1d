package core

import (
	"walkthrough-renderer/math"
)

// Handle is an opaque texture name issued by a rendering device.
// Zero means "absent".
type Handle uint32

// Valid reports whether h names an allocated texture.
func (h Handle) Valid() bool { return h != 0 }

// Color is a linear RGBA value. Components may exceed 1 in HDR targets.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
	// ColorClear is the cleared state of every accumulation target.
	ColorClear = Color{0, 0, 0, 0}
)

func (c Color) Add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B, c.A + o.A}
}

func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A * s}
}

// RGB drops alpha.
func (c Color) RGB() math.Vec3 {
	return math.Vec3{X: c.R, Y: c.G, Z: c.B}
}

// ColorFromRGB builds an opaque color from a vector.
func ColorFromRGB(v math.Vec3, a float32) Color {
	return Color{v.X, v.Y, v.Z, a}
}

type Vertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	UV        math.Vec2
	Color     Color
	Tangent   math.Vec3
	Bitangent math.Vec3
}
