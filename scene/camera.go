package scene

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/math"
)

// Camera is a first-person camera driven by yaw and pitch in degrees.
type Camera struct {
	Position    math.Vec3
	Yaw         float32
	Pitch       float32
	FOV         float32 // vertical, radians
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32
	MoveSpeed   float32
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
		Yaw:         -90,
		MoveSpeed:   3,
	}
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
	}
}

// Front is the unit view direction.
func (c *Camera) Front() math.Vec3 {
	sy, cy := math32.Sincos(math.Radians(c.Yaw))
	sp, cp := math32.Sincos(math.Radians(c.Pitch))
	return math.Vec3{X: cy * cp, Y: sp, Z: sy * cp}.Normalize()
}

func (c *Camera) Right() math.Vec3 {
	return c.Front().Cross(math.Vec3Up).Normalize()
}

// Look turns the camera by yaw and pitch offsets; pitch stays within ±89°.
func (c *Camera) Look(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = math.Clamp(c.Pitch+dPitch, -89, 89)
}

// Move translates along the view direction and the right vector.
func (c *Camera) Move(forward, right, dt float32) {
	step := c.MoveSpeed * dt
	c.Position = c.Position.Add(c.Front().Mul(forward * step)).Add(c.Right().Mul(right * step))
}

func (c *Camera) ViewMatrix() math.Mat4 {
	return math.Mat4LookAt(c.Position, c.Position.Add(c.Front()), math.Vec3Up)
}

func (c *Camera) ProjectionMatrix() math.Mat4 {
	return math.Mat4Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane)
}

// ViewProjectionMatrix composes view then projection (row-vector order).
func (c *Camera) ViewProjectionMatrix() math.Mat4 {
	return c.ViewMatrix().Mul(c.ProjectionMatrix())
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target math.Vec3) {
	d := target.Sub(c.Position).Normalize()
	c.Pitch = math.Clamp(math.Degrees(math32.Asin(d.Y)), -89, 89)
	c.Yaw = math.Degrees(math32.Atan2(d.Z, d.X))
}
