package pipeline

// CullMode selects which triangle facing is discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// DepthFunc is the depth comparison.
type DepthFunc int

const (
	DepthLess DepthFunc = iota
	DepthLEqual
	DepthAlways
)

// StencilFunc is the stencil comparison against the reference 0.
type StencilFunc int

const (
	StencilAlways StencilFunc = iota
	StencilNotEqual
)

// StencilOp is applied to the stencil value on depth failure.
type StencilOp int

const (
	StencilKeep StencilOp = iota
	StencilIncrWrap
	StencilDecrWrap
)

// Apply runs op on an 8-bit stencil value.
func (op StencilOp) Apply(v uint8) uint8 {
	switch op {
	case StencilIncrWrap:
		return v + 1
	case StencilDecrWrap:
		return v - 1
	}
	return v
}

// RenderState is the fixed-function state of one pass, as data.
type RenderState struct {
	DepthTest  bool
	DepthWrite bool
	DepthFunc  DepthFunc
	Cull       CullMode
	// Additive enables ONE, ONE blending.
	Additive   bool
	ColorWrite bool

	StencilTest bool
	StencilFunc StencilFunc
	// Ops on depth failure, per facing; depth pass and stencil fail keep.
	StencilBackDepthFail  StencilOp
	StencilFrontDepthFail StencilOp
}

var (
	// StateOpaque draws closed geometry with back faces culled.
	StateOpaque = RenderState{DepthTest: true, DepthWrite: true, DepthFunc: DepthLess, Cull: CullBack, ColorWrite: true}
	// StateTwoSided draws planar geometry from both sides.
	StateTwoSided = RenderState{DepthTest: true, DepthWrite: true, DepthFunc: DepthLess, Cull: CullNone, ColorWrite: true}
	// StateSky draws the background at the far plane without writing depth.
	StateSky = RenderState{DepthTest: true, DepthFunc: DepthLEqual, Cull: CullNone, ColorWrite: true}
	// StateShadow renders distance-to-light from every facing.
	StateShadow = RenderState{DepthTest: true, DepthWrite: true, DepthFunc: DepthLess, Cull: CullNone, ColorWrite: true}
	// StateGeometry is the deferred G-buffer pass, the only pass writing depth.
	StateGeometry = StateOpaque
	// StateAmbient adds the IBL and emissive terms over the whole screen.
	StateAmbient = RenderState{Cull: CullNone, Additive: true, ColorWrite: true}
	// StateStencil marks a light volume: back faces increment and front
	// faces decrement where they lie behind the scene.
	StateStencil = RenderState{
		DepthTest: true, DepthFunc: DepthLess, Cull: CullNone,
		StencilTest: true, StencilFunc: StencilAlways,
		StencilBackDepthFail: StencilIncrWrap, StencilFrontDepthFail: StencilDecrWrap,
	}
	// StateLighting accumulates one light where the stencil is set, drawing
	// volume back faces so the camera may sit inside the volume.
	StateLighting = RenderState{
		Cull: CullFront, Additive: true, ColorWrite: true,
		StencilTest: true, StencilFunc: StencilNotEqual,
	}
	// StateLamp draws the light markers over the shaded frame.
	StateLamp = StateOpaque
	// StatePost is used by every full-screen post stage.
	StatePost = RenderState{Cull: CullNone, ColorWrite: true}
)

// SurfaceState is the opaque state for a mesh: closed meshes cull back faces.
func SurfaceState(closed bool) RenderState {
	if closed {
		return StateOpaque
	}
	return StateTwoSided
}
