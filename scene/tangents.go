package scene

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

// ComputeTangents fills the tangent frame normal mapping and displacement
// read in tangent space. Triangles with zero UV area contribute nothing;
// vertices left without a tangent get one perpendicular to their normal.
func ComputeTangents(m *Mesh) {
	for i := range m.Vertices {
		m.Vertices[i].Tangent = math.Vec3{}
		m.Vertices[i].Bitangent = math.Vec3{}
	}

	for tri := 0; tri < m.TriangleCount(); tri++ {
		i0, i1, i2 := m.Triangle(tri)
		t, b, ok := triangleTangents(m.Vertices[i0], m.Vertices[i1], m.Vertices[i2])
		if !ok {
			continue
		}
		for _, i := range [3]uint32{i0, i1, i2} {
			m.Vertices[i].Tangent = m.Vertices[i].Tangent.Add(t)
			m.Vertices[i].Bitangent = m.Vertices[i].Bitangent.Add(b)
		}
	}

	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Tangent = orthogonalTangent(v.Normal, v.Tangent)
		if v.Bitangent.LengthSqr() < 1e-8 {
			v.Bitangent = v.Normal.Cross(v.Tangent)
		}
		v.Bitangent = v.Bitangent.Normalize()
	}
}

// triangleTangents solves the edge/UV system of one triangle.
func triangleTangents(v0, v1, v2 core.Vertex) (t, b math.Vec3, ok bool) {
	e1 := v1.Position.Sub(v0.Position)
	e2 := v2.Position.Sub(v0.Position)
	du1, dv1 := v1.UV.X-v0.UV.X, v1.UV.Y-v0.UV.Y
	du2, dv2 := v2.UV.X-v0.UV.X, v2.UV.Y-v0.UV.Y

	det := du1*dv2 - du2*dv1
	if det == 0 {
		return t, b, false
	}
	r := 1 / det
	t = e1.Mul(dv2 * r).Sub(e2.Mul(dv1 * r))
	b = e2.Mul(du1 * r).Sub(e1.Mul(du2 * r))
	return t, b, true
}

// orthogonalTangent removes the normal component of t (Gram-Schmidt) and
// falls back to an arbitrary perpendicular when nothing is left.
func orthogonalTangent(n, t math.Vec3) math.Vec3 {
	t = t.Sub(n.Mul(n.Dot(t)))
	if t.LengthSqr() >= 1e-8 {
		return t.Normalize()
	}
	axis := math.Vec3{X: 1}
	if math32.Abs(n.X) >= 0.9 {
		axis = math.Vec3{Y: 1}
	}
	return axis.Sub(n.Mul(n.Dot(axis))).Normalize()
}
