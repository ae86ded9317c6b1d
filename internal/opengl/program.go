package opengl

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/math"
)

// program is a linked GL program with its uniform locations cached by name.
type program struct {
	id   uint32
	name string
	locs map[string]int32
}

// stage is one shader stage of a program.
type stage struct {
	kind uint32
	src  string
}

func vertexStage(src string) stage   { return stage{gl.VERTEX_SHADER, src} }
func fragmentStage(src string) stage { return stage{gl.FRAGMENT_SHADER, src} }

// newProgram links a vertex/fragment pair.
func newProgram(name, vertSrc, fragSrc string) (*program, error) {
	return linkProgram(name, vertexStage(vertSrc), fragmentStage(fragSrc))
}

// newPatchProgram links the displacement variant: vertex, tessellation
// control, tessellation evaluation and fragment stages.
func newPatchProgram(name, vertSrc, tcsSrc, tesSrc, fragSrc string) (*program, error) {
	return linkProgram(name,
		vertexStage(vertSrc),
		stage{gl.TESS_CONTROL_SHADER, tcsSrc},
		stage{gl.TESS_EVALUATION_SHADER, tesSrc},
		fragmentStage(fragSrc),
	)
}

func linkProgram(name string, stages ...stage) (*program, error) {
	shaders := make([]uint32, 0, len(stages))
	defer func() {
		for _, s := range shaders {
			gl.DeleteShader(s)
		}
	}()
	for _, st := range stages {
		s, err := compileShader(st.src, st.kind)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", name, stageName(st.kind), err)
		}
		shaders = append(shaders, s)
	}

	prog := gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(prog, s)
	}
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return nil, fmt.Errorf("%s: link failed: %v", name, log)
	}
	for _, s := range shaders {
		gl.DetachShader(prog, s)
	}
	return &program{id: prog, name: name, locs: map[string]int32{}}, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", log)
	}
	return shader, nil
}

func stageName(kind uint32) string {
	switch kind {
	case gl.VERTEX_SHADER:
		return "vertex"
	case gl.TESS_CONTROL_SHADER:
		return "tess control"
	case gl.TESS_EVALUATION_SHADER:
		return "tess evaluation"
	case gl.FRAGMENT_SHADER:
		return "fragment"
	}
	return fmt.Sprintf("stage 0x%X", kind)
}

func (p *program) use() { gl.UseProgram(p.id) }

// loc looks a uniform up once; -1 (inactive) is cached too and silently
// ignored by the setters.
func (p *program) loc(name string) int32 {
	if l, ok := p.locs[name]; ok {
		return l
	}
	l := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.locs[name] = l
	return l
}

func (p *program) setInt(name string, v int32) { gl.Uniform1i(p.loc(name), v) }

func (p *program) setBool(name string, v bool) {
	var i int32
	if v {
		i = 1
	}
	gl.Uniform1i(p.loc(name), i)
}

func (p *program) setFloat(name string, v float32) { gl.Uniform1f(p.loc(name), v) }

func (p *program) setVec2(name string, x, y float32) { gl.Uniform2f(p.loc(name), x, y) }

func (p *program) setVec3(name string, v math.Vec3) { gl.Uniform3f(p.loc(name), v.X, v.Y, v.Z) }

// setMat4 uploads a row-vector matrix; its memory layout is already the
// column-major layout GLSL expects.
func (p *program) setMat4(name string, m math.Mat4) {
	gl.UniformMatrix4fv(p.loc(name), 1, false, &m[0][0])
}

// samplers binds sampler uniforms to fixed texture units.
func (p *program) samplers(units map[string]int32) {
	p.use()
	for name, unit := range units {
		p.setInt(name, unit)
	}
}

// bindLights attaches the program's Lights block, if it has one, to the
// light buffer binding point.
func (p *program) bindLights() {
	idx := gl.GetUniformBlockIndex(p.id, gl.Str("Lights\x00"))
	if idx != gl.INVALID_INDEX {
		gl.UniformBlockBinding(p.id, idx, lightBinding)
	}
}

func (p *program) destroy() {
	if p != nil && p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}
