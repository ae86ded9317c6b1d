package pipeline

import (
	"fmt"

	"walkthrough-renderer/math"
)

// ── Cube capture ─────────────────────────────────────────────────────────────

// CapturePhase names the states of a six-face capture.
type CapturePhase int

const (
	CaptureIdle CapturePhase = iota
	CaptureRendering
	CaptureCaptured
	CaptureComplete
)

func (p CapturePhase) String() string {
	return [...]string{"idle", "rendering", "captured", "complete"}[p]
}

// CubeCapture sequences rendering the six faces of a cubemap from one eye:
//
//	c := NewCubeCapture(eye, near, far)
//	c.Begin()
//	for c.Next() { draw(c.Face(), c.ViewProjection()) }
//	c.Finish()
//
// Consumers of the cubemap call Require before reading it.
type CubeCapture struct {
	Eye  math.Vec3
	Near float32
	Far  float32

	phase CapturePhase
	face  math.CubeFace
	proj  math.Mat4
}

func NewCubeCapture(eye math.Vec3, near, far float32) *CubeCapture {
	return &CubeCapture{Eye: eye, Near: near, Far: far, face: -1, proj: math.CubeFaceProjection(near, far)}
}

func (c *CubeCapture) Phase() CapturePhase { return c.phase }

// Begin starts the face loop.
func (c *CubeCapture) Begin() error {
	if c.phase != CaptureIdle {
		return fmt.Errorf("%w: capture begin in phase %s", ErrPhaseOrder, c.phase)
	}
	c.phase = CaptureRendering
	return nil
}

// Next advances to the next face and reports whether one remains.
func (c *CubeCapture) Next() bool {
	if c.phase != CaptureRendering {
		return false
	}
	if int(c.face)+1 >= math.CubeFaceCount {
		c.phase = CaptureCaptured
		return false
	}
	c.face++
	return true
}

// Face is the face being rendered.
func (c *CubeCapture) Face() math.CubeFace { return c.face }

func (c *CubeCapture) View() math.Mat4 { return math.CubeFaceView(c.Eye, c.face) }

func (c *CubeCapture) Projection() math.Mat4 { return c.proj }

func (c *CubeCapture) ViewProjection() math.Mat4 { return c.View().Mul(c.proj) }

// FaceView is the current face as a View of size x size.
func (c *CubeCapture) FaceView(size int) View {
	return View{
		Position:   c.Eye,
		View:       c.View(),
		Projection: c.proj,
		Near:       c.Near,
		Far:        c.Far,
		Width:      size,
		Height:     size,
	}
}

// Finish closes the capture once all six faces were rendered.
func (c *CubeCapture) Finish() error {
	if c.phase != CaptureCaptured {
		return fmt.Errorf("%w: capture finish in phase %s after face %s", ErrPhaseOrder, c.phase, c.face)
	}
	c.phase = CaptureComplete
	return nil
}

// Require fails unless the capture is complete.
func (c *CubeCapture) Require() error {
	if c.phase != CaptureComplete {
		return fmt.Errorf("%w: cubemap read in phase %s", ErrPhaseOrder, c.phase)
	}
	return nil
}

// ── Light volume sequence ────────────────────────────────────────────────────

// VolumePhase names the states of the deferred per-frame sequence.
type VolumePhase int

const (
	PhaseGeometry VolumePhase = iota
	PhaseReady
	PhaseStencil
	PhaseLighting
	PhaseDone
)

func (p VolumePhase) String() string {
	return [...]string{"geometry", "ready", "stencil", "lighting", "done"}[p]
}

// VolumeSequence enforces the deferred pass order: one geometry pass, then
// any number of stencil/lighting pairs, one light at a time, then Finish.
type VolumeSequence struct {
	phase VolumePhase
	light int
	lit   int
}

func NewVolumeSequence() *VolumeSequence {
	return &VolumeSequence{light: -1}
}

func (s *VolumeSequence) Phase() VolumePhase { return s.phase }

// LightsProcessed counts completed stencil/lighting pairs.
func (s *VolumeSequence) LightsProcessed() int { return s.lit }

// State is the render state for the current phase.
func (s *VolumeSequence) State() RenderState {
	switch s.phase {
	case PhaseGeometry:
		return StateGeometry
	case PhaseStencil:
		return StateStencil
	case PhaseLighting:
		return StateLighting
	}
	return StateAmbient
}

func (s *VolumeSequence) expect(want VolumePhase, op string) error {
	if s.phase != want {
		return fmt.Errorf("%w: %s in phase %s", ErrPhaseOrder, op, s.phase)
	}
	return nil
}

// EndGeometry closes the single geometry pass of the frame.
func (s *VolumeSequence) EndGeometry() error {
	if err := s.expect(PhaseGeometry, "end geometry"); err != nil {
		return err
	}
	s.phase = PhaseReady
	return nil
}

// BeginStencil starts masking light's volume. The stencil is cleared first.
func (s *VolumeSequence) BeginStencil(light int) error {
	if err := s.expect(PhaseReady, "stencil"); err != nil {
		return err
	}
	s.phase = PhaseStencil
	s.light = light
	return nil
}

// BeginLighting shades the light whose volume was just masked.
func (s *VolumeSequence) BeginLighting(light int) error {
	if err := s.expect(PhaseStencil, "lighting"); err != nil {
		return err
	}
	if light != s.light {
		return fmt.Errorf("%w: lighting light %d after stencil of light %d", ErrPhaseOrder, light, s.light)
	}
	s.phase = PhaseLighting
	return nil
}

// EndLighting returns to the ready state for the next light.
func (s *VolumeSequence) EndLighting() error {
	if err := s.expect(PhaseLighting, "end lighting"); err != nil {
		return err
	}
	s.phase = PhaseReady
	s.light = -1
	s.lit++
	return nil
}

// Finish ends the frame's light loop; stencil and blending are off afterwards.
func (s *VolumeSequence) Finish() error {
	if err := s.expect(PhaseReady, "finish"); err != nil {
		return err
	}
	s.phase = PhaseDone
	return nil
}
