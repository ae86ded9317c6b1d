package math

import "github.com/chewxy/math32"

// Pi in float32.
const Pi = math32.Pi

func Radians(deg float32) float32 {
	return deg * Pi / 180
}

func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Saturate clamps x to [0,1].
func Saturate(x float32) float32 {
	return Clamp(x, 0, 1)
}

func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func Degrees(rad float32) float32 {
	return rad * 180 / Pi
}
