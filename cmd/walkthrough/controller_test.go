package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

func TestResolvePlayerCollision(t *testing.T) {
	boxes := []collBox{{minX: -1, maxX: 1, minZ: -1, maxZ: 1}}

	tests := []struct {
		name string
		pos  math.Vec3
		want math.Vec3
	}{
		{"outside", math.Vec3{X: 5, Z: 0}, math.Vec3{X: 5, Z: 0}},
		{"pushed left", math.Vec3{X: -0.9, Z: 0}, math.Vec3{X: -1 - playerRadius, Z: 0}},
		{"pushed right", math.Vec3{X: 0.9, Z: 0.1}, math.Vec3{X: 1 + playerRadius, Z: 0.1}},
		{"pushed back", math.Vec3{X: 0.1, Z: 1.2}, math.Vec3{X: 0.1, Z: 1 + playerRadius}},
	}
	for _, tt := range tests {
		got := resolvePlayerCollision(tt.pos, boxes)
		if got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestControllerStaysOnGround(t *testing.T) {
	cam := scene.NewCamera(math.Radians(45), 1, 0.1, 100)
	cam.Position = math.Vec3{Y: 1.6}
	cc := NewCameraController(cam)

	cc.step(input{forward: 1}, cam, 0.05)
	if cam.Position.Y != 1.6 {
		t.Errorf("walking: expected eye height 1.6, got %v", cam.Position.Y)
	}
	// Default yaw -90 looks down -Z.
	if cam.Position.Z >= 0 {
		t.Errorf("walking forward: expected negative Z, got %v", cam.Position.Z)
	}

	cc.step(input{jump: true}, cam, 0.02)
	if cam.Position.Y <= 1.6 {
		t.Errorf("jump: expected to rise above 1.6, got %v", cam.Position.Y)
	}
	for i := 0; i < 100; i++ {
		cc.step(input{jump: true}, cam, 0.05)
	}
	if cam.Position.Y != 1.6 || !cc.onGround {
		t.Errorf("landing: expected grounded at 1.6, got %v (onGround %v)", cam.Position.Y, cc.onGround)
	}
}

func TestControllerLookClampsPitch(t *testing.T) {
	cam := scene.NewCamera(math.Radians(45), 1, 0.1, 100)
	cc := NewCameraController(cam)

	cc.step(input{look: true, mouseX: 0, mouseY: 0}, cam, 0.01)
	cc.step(input{look: true, mouseX: 0, mouseY: -10000}, cam, 0.01)
	if cam.Pitch != 89 {
		t.Errorf("pitch: expected clamp at 89, got %v", cam.Pitch)
	}
}

func TestControllerArrowKeysTurn(t *testing.T) {
	cam := scene.NewCamera(math.Radians(45), 1, 0.1, 100)
	cc := NewCameraController(cam)
	yaw, pitch := cam.Yaw, cam.Pitch

	cc.step(input{turnX: 1, turnY: -1}, cam, 0.05)
	if got := cam.Yaw - yaw; math32.Abs(got-turnRate*0.05) > 1e-4 {
		t.Errorf("yaw: expected +%v, got %+v", turnRate*0.05, got)
	}
	if got := cam.Pitch - pitch; math32.Abs(got+turnRate*0.05) > 1e-4 {
		t.Errorf("pitch: expected -%v, got %+v", turnRate*0.05, got)
	}
}

func TestControllerSprint(t *testing.T) {
	walk := func(sprint bool) float32 {
		cam := scene.NewCamera(math.Radians(45), 1, 0.1, 100)
		cam.Position = math.Vec3{Y: 1.6}
		cc := NewCameraController(cam)
		cc.step(input{forward: 1, sprint: sprint}, cam, 0.05)
		return -cam.Position.Z
	}
	if w, s := walk(false), walk(true); math32.Abs(s-sprintFactor*w) > 1e-4 {
		t.Errorf("sprint: expected %v, got %v", sprintFactor*w, s)
	}
}

func TestControllerCapturesCursorWhileLooking(t *testing.T) {
	cam := scene.NewCamera(math.Radians(45), 1, 0.1, 100)
	cc := NewCameraController(cam)

	steps := []struct {
		look    bool
		changed bool
	}{
		{false, false},
		{true, true},
		{true, false},
		{false, true},
		{false, false},
	}
	for i, st := range steps {
		if got := cc.step(input{look: st.look}, cam, 0.01); got != st.changed {
			t.Errorf("step %d: expected capture change %v, got %v", i, st.changed, got)
		}
		if cc.captured != st.look {
			t.Errorf("step %d: expected captured %v, got %v", i, st.look, cc.captured)
		}
	}
}

func TestFrameSkippable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{pipeline.ErrTargetMismatch, true},
		{fmt.Errorf("forward: %w", pipeline.ErrIncomplete), true},
		{fmt.Errorf("frame: %w", pipeline.ErrNotBaked), false},
		{errors.New("context lost"), false},
	}
	for _, tt := range tests {
		if got := frameSkippable(tt.err); got != tt.want {
			t.Errorf("frameSkippable(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
}

func TestEnvironmentName(t *testing.T) {
	s := scene.NewScene()
	if got := environmentName(s); got != "sky" {
		t.Errorf("no environments: expected sky, got %s", got)
	}
	for _, name := range []string{"ridge", "pines"} {
		env := &scene.Environment{Name: name, Width: 2, Height: 1, Texels: make([]core.Color, 2)}
		if err := s.AddEnvironment(env); err != nil {
			t.Fatalf("AddEnvironment: %v", err)
		}
	}
	s.Environment = 1
	if got := environmentName(s); got != "pines" {
		t.Errorf("selected: expected pines, got %s", got)
	}
}

func TestObstaclesSkipWalls(t *testing.T) {
	s := scene.NewScene()
	s.AddMaterial(scene.NewMaterial("m", core.ColorWhite, 0, 0.5))
	room := scene.DefaultObjectConfig()
	room.ID, room.MaterialID, room.Wall = "room", "m", true
	table := scene.DefaultObjectConfig()
	table.ID, table.MaterialID = "table", "m"
	table.Position = math.Vec3{Y: 0.5}

	for _, c := range []scene.ObjectConfig{room, table} {
		o, err := scene.NewObject(c, scene.CreateCube(1))
		if err != nil {
			t.Fatalf("object %s: %v", c.ID, err)
		}
		if err := s.AddObject(o); err != nil {
			t.Fatalf("add %s: %v", c.ID, err)
		}
	}

	boxes := obstacles(s, 0, 1.7)
	if len(boxes) != 1 {
		t.Fatalf("obstacles: expected 1, got %d", len(boxes))
	}
	if boxes[0].minX != -0.5 || boxes[0].maxX != 0.5 {
		t.Errorf("table footprint: expected [-0.5, 0.5], got [%v, %v]", boxes[0].minX, boxes[0].maxX)
	}
}

func TestLookedAtPrefersNearest(t *testing.T) {
	s := scene.NewScene()
	s.AddMaterial(scene.NewMaterial("m", core.ColorWhite, 0, 0.5))
	for _, c := range []struct {
		id string
		z  float32
	}{{"far", -10}, {"near", -4}, {"behind", 5}} {
		cfg := scene.DefaultObjectConfig()
		cfg.ID, cfg.MaterialID = c.id, "m"
		cfg.Position = math.Vec3{Z: c.z}
		o, err := scene.NewObject(cfg, scene.CreateCube(1))
		if err != nil {
			t.Fatalf("object %s: %v", c.id, err)
		}
		if err := s.AddObject(o); err != nil {
			t.Fatalf("add %s: %v", c.id, err)
		}
	}

	o, dist := lookedAt(s, math.Vec3{}, math.Vec3{Z: -1})
	if o == nil || o.ID != "near" {
		t.Fatalf("looked at: expected near, got %v", o)
	}
	if dist != 3.5 {
		t.Errorf("distance: expected 3.5, got %v", dist)
	}
}
