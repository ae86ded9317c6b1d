package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// skybox is the unit cube drawn around the eye. The sky pass draws it at
// the far plane; the convolution passes draw it once per cube face.
type skybox struct {
	vao uint32
	vbo uint32
}

// 36 positions (xyz) for a unit cube, CCW winding from the outside.
// Face culling is disabled during draw so the inside faces are seen.
var skyboxVerts = []float32{
	// -Z face
	-1, -1, -1, 1, 1, -1, 1, -1, -1,
	1, 1, -1, -1, -1, -1, -1, 1, -1,
	// +Z face
	-1, -1, 1, 1, -1, 1, 1, 1, 1,
	1, 1, 1, -1, 1, 1, -1, -1, 1,
	// -X face
	-1, 1, 1, -1, 1, -1, -1, -1, -1,
	-1, -1, -1, -1, -1, 1, -1, 1, 1,
	// +X face
	1, 1, 1, 1, -1, -1, 1, 1, -1,
	1, -1, -1, 1, 1, 1, 1, -1, 1,
	// -Y face
	-1, -1, -1, 1, -1, -1, 1, -1, 1,
	1, -1, 1, -1, -1, 1, -1, -1, -1,
	// +Y face
	-1, 1, -1, 1, 1, 1, 1, 1, -1,
	1, 1, 1, -1, 1, -1, -1, 1, 1,
}

func newSkybox() *skybox {
	sb := &skybox{}
	gl.GenVertexArrays(1, &sb.vao)
	gl.GenBuffers(1, &sb.vbo)
	gl.BindVertexArray(sb.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, sb.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(skyboxVerts)*4, gl.Ptr(skyboxVerts), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 12, gl.PtrOffset(0))
	gl.BindVertexArray(0)
	return sb
}

// skyViewProjection strips the view's translation so the cube stays
// centred on the eye.
func skyViewProjection(view, proj math.Mat4) math.Mat4 {
	return view.WithoutTranslation().Mul(proj)
}

func (sb *skybox) draw() {
	gl.BindVertexArray(sb.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 36)
	gl.BindVertexArray(0)
}

// drawSky renders the background: the environment cubemap when env is
// valid, the procedural gradient otherwise. Depth LEQUAL lets the far-plane
// fragments pass against the cleared depth without writing it.
func (d *Device) drawSky(view, proj math.Mat4, env core.Handle, sky scene.Sky) {
	apply(pipeline.StateSky)
	p := d.progs.sky
	p.use()
	p.setMat4("skyVP", skyViewProjection(view, proj))
	d.bindSky(p, env, sky)
	d.sky.draw()
}

// bindSky sets the sky uniforms shared by the sky and ambient programs.
func (d *Device) bindSky(p *program, env core.Handle, sky scene.Sky) {
	_, err := d.res.tex(env)
	p.setBool("hasEnvironment", err == nil)
	bindTexture(unitEnvironment, gl.TEXTURE_CUBE_MAP, env, err == nil)
	p.setVec3("skyZenith", sky.Zenith.RGB())
	p.setVec3("skyHorizon", sky.Horizon.RGB())
	p.setVec3("skyGround", sky.Ground.RGB())
	p.setFloat("skyIntensity", sky.Intensity)
}

func (sb *skybox) destroy() {
	gl.DeleteVertexArrays(1, &sb.vao)
	gl.DeleteBuffers(1, &sb.vbo)
}
