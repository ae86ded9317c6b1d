package main

import (
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/scene"
)

// collBox is an axis-aligned rectangle in XZ the player cannot walk through.
type collBox struct {
	minX, maxX, minZ, maxZ float32
}

const playerRadius = float32(0.35) // player XZ footprint radius

// resolvePlayerCollision pushes pos outside every overlapping collBox.
func resolvePlayerCollision(pos math.Vec3, boxes []collBox) math.Vec3 {
	for _, b := range boxes {
		eMinX := b.minX - playerRadius
		eMaxX := b.maxX + playerRadius
		eMinZ := b.minZ - playerRadius
		eMaxZ := b.maxZ + playerRadius

		if pos.X <= eMinX || pos.X >= eMaxX || pos.Z <= eMinZ || pos.Z >= eMaxZ {
			continue
		}

		dLeft := pos.X - eMinX
		dRight := eMaxX - pos.X
		dFront := pos.Z - eMinZ
		dBack := eMaxZ - pos.Z

		// Push along the axis of minimum penetration
		switch {
		case dLeft <= dRight && dLeft <= dFront && dLeft <= dBack:
			pos.X = eMinX
		case dRight <= dLeft && dRight <= dFront && dRight <= dBack:
			pos.X = eMaxX
		case dFront <= dLeft && dFront <= dRight && dFront <= dBack:
			pos.Z = eMinZ
		default:
			pos.Z = eMaxZ
		}
	}
	return pos
}

// obstacles collects the XZ footprint of every non-wall object that reaches
// the band between the floor and eye level. Walls enclose the rooms, so
// pushing out of their bounds would eject the player from the room.
func obstacles(s *scene.Scene, floorY, eyeY float32) []collBox {
	var boxes []collBox
	for _, o := range s.Objects {
		if o.Wall {
			continue
		}
		b := o.Bounds()
		if !b.Valid() || b.Max.Y < floorY+0.3 || b.Min.Y > eyeY {
			continue
		}
		boxes = append(boxes, collBox{minX: b.Min.X, maxX: b.Max.X, minZ: b.Min.Z, maxZ: b.Max.Z})
	}
	return boxes
}

// CameraController walks the camera with WASD, looks with a right-mouse
// drag or the arrow keys and keeps the eye at a fixed height above the
// floor, with jumping. The cursor is captured while the drag lasts.
type CameraController struct {
	moveSpeed  float32
	lookSpeed  float32
	lastMouseX float64
	lastMouseY float64
	firstMouse bool
	captured   bool

	// Physics
	velocityY      float32
	onGround       bool
	groundY        float32 // eye height when standing
	jumpKeyWasDown bool

	CollBoxes []collBox
}

const (
	gravity   = -18.0 // m/s²
	jumpSpeed = 5.0

	turnRate     = 90.0 // degrees per second for the arrow keys
	sprintFactor = 2.0
)

// NewCameraController keeps the eye at the height the camera starts at.
func NewCameraController(cam *scene.Camera) *CameraController {
	return &CameraController{
		moveSpeed:  cam.MoveSpeed,
		lookSpeed:  0.15,
		firstMouse: true,
		onGround:   true,
		groundY:    cam.Position.Y,
	}
}

// input is what one controller step reads from the window.
type input struct {
	forward, right float32
	turnX, turnY   float32
	jump           bool
	sprint         bool
	look           bool
	mouseX, mouseY float64
}

func readInput(w *core.Window) input {
	var in input
	if w.IsKeyPressed(core.KeyW) {
		in.forward++
	}
	if w.IsKeyPressed(core.KeyS) {
		in.forward--
	}
	if w.IsKeyPressed(core.KeyD) {
		in.right++
	}
	if w.IsKeyPressed(core.KeyA) {
		in.right--
	}
	if w.IsKeyPressed(core.KeyRight) {
		in.turnX++
	}
	if w.IsKeyPressed(core.KeyLeft) {
		in.turnX--
	}
	if w.IsKeyPressed(core.KeyUp) {
		in.turnY++
	}
	if w.IsKeyPressed(core.KeyDown) {
		in.turnY--
	}
	in.jump = w.IsKeyPressed(core.KeySpace)
	in.sprint = w.IsKeyPressed(core.KeyLeftShift)
	in.look = w.IsMouseButtonPressed(core.MouseButtonRight)
	in.mouseX, in.mouseY = w.GetCursorPos()
	return in
}

func (cc *CameraController) Update(window *core.Window, camera *scene.Camera, deltaTime float32) {
	if cc.step(readInput(window), camera, deltaTime) {
		window.CaptureCursor(cc.captured)
	}
}

// step advances the camera by one frame of input and reports whether the
// cursor capture state changed.
func (cc *CameraController) step(in input, camera *scene.Camera, deltaTime float32) bool {
	// Cap deltaTime to avoid huge physics steps on first frames or hitches
	if deltaTime > 0.05 {
		deltaTime = 0.05
	}

	captureChanged := in.look != cc.captured
	cc.captured = in.look

	if in.turnX != 0 || in.turnY != 0 {
		camera.Look(in.turnX*turnRate*deltaTime, in.turnY*turnRate*deltaTime)
	}
	if in.look {
		if cc.firstMouse {
			cc.lastMouseX, cc.lastMouseY = in.mouseX, in.mouseY
			cc.firstMouse = false
		}
		camera.Look(float32(in.mouseX-cc.lastMouseX)*cc.lookSpeed, float32(cc.lastMouseY-in.mouseY)*cc.lookSpeed)
		cc.lastMouseX, cc.lastMouseY = in.mouseX, in.mouseY
	} else {
		cc.firstMouse = true
	}

	// Horizontal move direction (ignore pitch so walking stays level)
	front := camera.Front()
	moveForward := math.Vec3{X: front.X, Z: front.Z}.Normalize()
	right := camera.Right()
	right.Y = 0
	right = right.Normalize()

	step := cc.moveSpeed * deltaTime
	if in.sprint {
		step *= sprintFactor
	}
	newPos := camera.Position.
		Add(moveForward.Mul(in.forward * step)).
		Add(right.Mul(in.right * step))

	if in.jump && !cc.jumpKeyWasDown && cc.onGround {
		cc.velocityY = jumpSpeed
		cc.onGround = false
	}
	cc.jumpKeyWasDown = in.jump

	if !cc.onGround {
		cc.velocityY += gravity * deltaTime
	}
	newPos.Y += cc.velocityY * deltaTime
	if newPos.Y <= cc.groundY {
		newPos.Y = cc.groundY
		cc.velocityY = 0
		cc.onGround = true
	}

	camera.Position = resolvePlayerCollision(newPos, cc.CollBoxes)
	return captureChanged
}

// lookedAt returns the nearest object whose bounds the ray from origin
// along dir enters, or nil. Boxes containing the origin count from their
// exit distance.
func lookedAt(s *scene.Scene, origin, dir math.Vec3) (*scene.Object, float32) {
	var best *scene.Object
	bestT := float32(0)
	for _, o := range s.Objects {
		b := o.Bounds()
		tNear, tFar, ok := b.IntersectRay(origin, dir)
		if !ok {
			continue
		}
		t := tNear
		if t < 0 {
			t = tFar
		}
		if best == nil || t < bestT {
			best, bestT = o, t
		}
	}
	return best, bestT
}
