package pipeline

import "errors"

var (
	// ErrIncomplete reports a render target that failed its completeness check.
	ErrIncomplete = errors.New("render target incomplete")
	// ErrProbeMissing reports an object that needs IBL drawn before its bake.
	ErrProbeMissing = errors.New("object needs IBL but has no baked probe")
	// ErrPhaseOrder reports a phase object driven out of order.
	ErrPhaseOrder = errors.New("pass phase out of order")
	// ErrTargetMismatch reports frame targets whose size differs from the surface.
	ErrTargetMismatch = errors.New("render target size does not match surface")
	// ErrNotBaked reports a frame requested before initialization finished.
	ErrNotBaked = errors.New("renderer not initialized")
)
