package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/pipeline"
)

// apply sets the fixed-function state of a pass.
func apply(s pipeline.RenderState) {
	enable(gl.DEPTH_TEST, s.DepthTest)
	gl.DepthMask(s.DepthWrite)
	switch s.DepthFunc {
	case pipeline.DepthLEqual:
		gl.DepthFunc(gl.LEQUAL)
	case pipeline.DepthAlways:
		gl.DepthFunc(gl.ALWAYS)
	default:
		gl.DepthFunc(gl.LESS)
	}

	switch s.Cull {
	case pipeline.CullNone:
		gl.Disable(gl.CULL_FACE)
	case pipeline.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}

	enable(gl.BLEND, s.Additive)
	if s.Additive {
		gl.BlendEquation(gl.FUNC_ADD)
		gl.BlendFunc(gl.ONE, gl.ONE)
	}
	gl.ColorMask(s.ColorWrite, s.ColorWrite, s.ColorWrite, s.ColorWrite)

	enable(gl.STENCIL_TEST, s.StencilTest)
	if !s.StencilTest {
		return
	}
	switch s.StencilFunc {
	case pipeline.StencilNotEqual:
		gl.StencilFunc(gl.NOTEQUAL, 0, 0xFF)
	default:
		gl.StencilFunc(gl.ALWAYS, 0, 0)
	}
	gl.StencilOpSeparate(gl.BACK, gl.KEEP, stencilOp(s.StencilBackDepthFail), gl.KEEP)
	gl.StencilOpSeparate(gl.FRONT, gl.KEEP, stencilOp(s.StencilFrontDepthFail), gl.KEEP)
}

func stencilOp(op pipeline.StencilOp) uint32 {
	switch op {
	case pipeline.StencilIncrWrap:
		return gl.INCR_WRAP
	case pipeline.StencilDecrWrap:
		return gl.DECR_WRAP
	}
	return gl.KEEP
}

func enable(c uint32, on bool) {
	if on {
		gl.Enable(c)
	} else {
		gl.Disable(c)
	}
}
