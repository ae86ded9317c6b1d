package opengl

import (
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"walkthrough-renderer/core"
	"walkthrough-renderer/scene"
)

// gpuMesh holds the OpenGL buffer objects for an uploaded mesh.
type gpuMesh struct {
	vao        uint32
	vbo        uint32
	ebo        uint32
	indexCount int32
	vertCount  int32
	hasIndices bool
}

// meshes uploads scene meshes on first draw and keeps them until Destroy.
type meshes struct {
	gpu map[*scene.Mesh]*gpuMesh
}

func newMeshes() *meshes {
	return &meshes{gpu: map[*scene.Mesh]*gpuMesh{}}
}

func (m *meshes) ensureUploaded(mesh *scene.Mesh) *gpuMesh {
	if g, ok := m.gpu[mesh]; ok {
		return g
	}
	if len(mesh.Vertices) == 0 {
		return nil
	}

	stride := int32(unsafe.Sizeof(core.Vertex{}))

	g := &gpuMesh{
		indexCount: int32(len(mesh.Indices)),
		vertCount:  int32(len(mesh.Vertices)),
		hasIndices: len(mesh.Indices) > 0,
	}

	gl.GenVertexArrays(1, &g.vao)
	gl.GenBuffers(1, &g.vbo)
	gl.BindVertexArray(g.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*int(stride), gl.Ptr(mesh.Vertices), gl.STATIC_DRAW)

	var v core.Vertex
	attribs := []struct {
		size   int32
		offset uintptr
	}{
		{3, unsafe.Offsetof(v.Position)},
		{3, unsafe.Offsetof(v.Normal)},
		{2, unsafe.Offsetof(v.UV)},
		{4, unsafe.Offsetof(v.Color)},
		{3, unsafe.Offsetof(v.Tangent)},
		{3, unsafe.Offsetof(v.Bitangent)},
	}
	for i, a := range attribs {
		gl.EnableVertexAttribArray(uint32(i))
		gl.VertexAttribPointer(uint32(i), a.size, gl.FLOAT, false, stride, gl.PtrOffset(int(a.offset)))
	}

	if g.hasIndices {
		gl.GenBuffers(1, &g.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)

	m.gpu[mesh] = g
	mesh.GPUData = g
	return g
}

// draw issues the mesh as triangles, or as three-vertex patches for the
// tessellated program.
func (m *meshes) draw(mesh *scene.Mesh, patches bool) {
	g := m.ensureUploaded(mesh)
	if g == nil {
		return
	}
	mode := uint32(gl.TRIANGLES)
	if patches {
		gl.PatchParameteri(gl.PATCH_VERTICES, 3)
		mode = gl.PATCHES
	}
	gl.BindVertexArray(g.vao)
	if g.hasIndices {
		gl.DrawElements(mode, g.indexCount, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(mode, 0, g.vertCount)
	}
	gl.BindVertexArray(0)
}

func (m *meshes) destroy() {
	for mesh, g := range m.gpu {
		if g.ebo != 0 {
			gl.DeleteBuffers(1, &g.ebo)
		}
		gl.DeleteBuffers(1, &g.vbo)
		gl.DeleteVertexArrays(1, &g.vao)
		mesh.GPUData = nil
	}
	m.gpu = map[*scene.Mesh]*gpuMesh{}
}
