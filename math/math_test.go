package math

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	// Addition
	result := v1.Add(v2)
	expected := NewVec3(5, 7, 9)
	if result != expected {
		t.Errorf("Add: expected %v, got %v", expected, result)
	}

	// Subtraction
	result = v2.Sub(v1)
	expected = NewVec3(3, 3, 3)
	if result != expected {
		t.Errorf("Sub: expected %v, got %v", expected, result)
	}

	// Scalar multiplication
	result = v1.Mul(2)
	expected = NewVec3(2, 4, 6)
	if result != expected {
		t.Errorf("Mul: expected %v, got %v", expected, result)
	}

	// Dot product
	dot := v1.Dot(v2)
	expectedDot := float32(32) // 1*4 + 2*5 + 3*6
	if dot != expectedDot {
		t.Errorf("Dot: expected %v, got %v", expectedDot, dot)
	}

	// Cross product (Right x Up = Front in right-handed system)
	cross := Vec3Right.Cross(Vec3Up)
	if cross != Vec3Front {
		t.Errorf("Cross: expected %v, got %v", Vec3Front, cross)
	}
}

func TestVec4AddSub(t *testing.T) {
	a := NewVec4(1, 2, 3, 4)
	b := NewVec4(0.5, 1, 1.5, 2)
	if got, want := a.Add(b), NewVec4(1.5, 3, 4.5, 6); got != want {
		t.Errorf("Add: expected %v, got %v", want, got)
	}
	if got, want := a.Sub(b), NewVec4(0.5, 1, 1.5, 2); got != want {
		t.Errorf("Sub: expected %v, got %v", want, got)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := NewVec3(3, 0, 0)
	normalized := v.Normalize()
	expected := NewVec3(1, 0, 0)

	if normalized != expected {
		t.Errorf("Normalize: expected %v, got %v", expected, normalized)
	}

	// Check length is 1
	length := normalized.Length()
	if math.Abs(float64(length-1)) > 0.0001 {
		t.Errorf("Normalize: expected length 1, got %v", length)
	}
}

func TestMat4Identity(t *testing.T) {
	m := Mat4Identity()

	// Check diagonal is 1
	for i := 0; i < 4; i++ {
		if m[i][i] != 1 {
			t.Errorf("Identity: expected diagonal to be 1, got %v", m[i][i])
		}
	}

	// Check non-diagonal is 0
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i != j && m[i][j] != 0 {
				t.Errorf("Identity: expected non-diagonal to be 0, got %v", m[i][j])
			}
		}
	}
}

func TestMat4Multiplication(t *testing.T) {
	m1 := Mat4Identity()
	m2 := Mat4Identity()

	result := m1.Mul(m2)

	// Identity * Identity = Identity
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			expected := float32(0)
			if i == j {
				expected = 1
			}
			if result[i][j] != expected {
				t.Errorf("Mul: expected [%d][%d] = %v, got %v", i, j, expected, result[i][j])
			}
		}
	}
}

func TestMat4Translation(t *testing.T) {
	translation := NewVec3(1, 2, 3)
	m := Mat4Translation(translation)

	// Check translation components
	if m[3][0] != 1 || m[3][1] != 2 || m[3][2] != 3 {
		t.Errorf("Translation: expected (1,2,3), got (%v,%v,%v)", m[3][0], m[3][1], m[3][2])
	}

	// Test transforming a point
	point := NewVec4(0, 0, 0, 1)
	result := point.MulMat(m)

	if result.ToVec3() != translation {
		t.Errorf("Translation: expected %v, got %v", translation, result.ToVec3())
	}
}

func TestQuaternionRotation(t *testing.T) {
	// 90 degree rotation around Y axis
	q := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/2))

	// Rotate the X unit vector 90 degrees around Y should give Z
	result := q.RotateVector(Vec3Right)

	// Check that result is approximately -Z (due to coordinate system)
	tolerance := float32(0.001)
	if math.Abs(float64(result.X-0)) > float64(tolerance) ||
		math.Abs(float64(result.Y-0)) > float64(tolerance) ||
		math.Abs(float64(result.Z+1)) > float64(tolerance) {
		t.Errorf("Quaternion rotation: expected approximately (0,0,-1), got (%v,%v,%v)", result.X, result.Y, result.Z)
	}
}

func TestMat4Perspective(t *testing.T) {
	fov := float32(math.Pi / 4) // 45 degrees
	aspect := float32(16.0 / 9.0)
	near := float32(0.1)
	far := float32(100.0)

	m := Mat4Perspective(fov, aspect, near, far)

	// Check aspect ratio affects the matrix
	if m[0][0] == 0 {
		t.Error("Perspective: expected non-zero X scale")
	}
	if m[1][1] == 0 {
		t.Error("Perspective: expected non-zero Y scale")
	}
}

func TestMat4LookAt(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	target := NewVec3(0, 0, 0)
	up := Vec3Up

	m := Mat4LookAt(eye, target, up)

	// The view matrix should transform the eye position to origin
	point := eye.ToVec4(1)
	result := m.MulVec(point)

	tolerance := float32(0.001)
	if math.Abs(float64(result.X)) > float64(tolerance) ||
		math.Abs(float64(result.Y)) > float64(tolerance) ||
		math.Abs(float64(result.Z)) > float64(tolerance) {
		t.Errorf("LookAt: expected eye to transform to origin, got (%v,%v,%v)", result.X, result.Y, result.Z)
	}
}

func approxEqual(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func mat4ApproxEqual(a, b Mat4, eps float32) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if !approxEqual(a[i][j], b[i][j], eps) {
				return false
			}
		}
	}
	return true
}

func TestMat4LookAtMatchesMgl(t *testing.T) {
	eye := NewVec3(1, 2, 3)
	target := NewVec3(-2, 0.5, 4)
	m := Mat4LookAt(eye, target, Vec3Up)
	g := Mat4FromMgl(mgl32.LookAtV(
		mgl32.Vec3{eye.X, eye.Y, eye.Z},
		mgl32.Vec3{target.X, target.Y, target.Z},
		mgl32.Vec3{0, 1, 0},
	))
	if !mat4ApproxEqual(m, g, 1e-5) {
		t.Errorf("LookAt: expected %v, got %v", g, m)
	}
}

func TestMat4PerspectiveMatchesMgl(t *testing.T) {
	m := Mat4Perspective(Radians(60), 1.5, 0.1, 50)
	g := Mat4FromMgl(mgl32.Perspective(mgl32.DegToRad(60), 1.5, 0.1, 50))
	if !mat4ApproxEqual(m, g, 1e-5) {
		t.Errorf("Perspective: expected %v, got %v", g, m)
	}
}

func TestMat4Inverse(t *testing.T) {
	m := Mat4TRS(NewVec3(3, -1, 2), QuaternionFromAxisAngle(Vec3Up, 0.7), NewVec3(2, 2, 2))
	id := m.Mul(m.Inverse())
	if !mat4ApproxEqual(id, Mat4Identity(), 1e-5) {
		t.Errorf("Inverse: expected identity, got %v", id)
	}

	p := NewVec3(0.5, 0.25, -1)
	back := m.Inverse().MulPoint(m.MulPoint(p))
	if back.Distance(p) > 1e-4 {
		t.Errorf("Inverse: expected %v, got %v", p, back)
	}
}

func TestQuaternionMatrixAgreesWithRotateVector(t *testing.T) {
	q := QuaternionFromEuler(NewVec3(0.3, -1.1, 0.4))
	v := NewVec3(1, 2, 3)
	a := q.RotateVector(v)
	b := q.ToMat4().MulDir(v)
	if a.Distance(b) > 1e-4 {
		t.Errorf("ToMat4: expected %v, got %v", a, b)
	}
}

func TestCubeFaceUVRoundTrip(t *testing.T) {
	for face := FacePosX; face <= FaceNegZ; face++ {
		for _, uv := range [][2]float32{{0.5, 0.5}, {0.1, 0.9}, {0.8, 0.2}, {0.99, 0.01}} {
			dir := CubeFaceDirection(face, uv[0], uv[1])
			gotFace, u, v := CubeFaceUV(dir)
			if gotFace != face {
				t.Errorf("face %v: expected face %v, got %v", face, face, gotFace)
				continue
			}
			if !approxEqual(u, uv[0], 1e-5) || !approxEqual(v, uv[1], 1e-5) {
				t.Errorf("face %v: expected uv %v, got (%v, %v)", face, uv, u, v)
			}
		}
	}
}

// Projecting a face's sample direction through that face's capture camera
// must land on the same normalized device coordinates as the texel.
func TestCubeFaceViewsMatchSampling(t *testing.T) {
	eye := NewVec3(2, 1, -3)
	proj := CubeFaceProjection(0.1, 10)
	for face := FacePosX; face <= FaceNegZ; face++ {
		vp := CubeFaceView(eye, face).Mul(proj)
		for _, uv := range [][2]float32{{0.5, 0.5}, {0.25, 0.75}, {0.9, 0.3}} {
			p := eye.Add(CubeFaceDirection(face, uv[0], uv[1]))
			ndc := vp.MulPoint(p)
			if !approxEqual(ndc.X, 2*uv[0]-1, 1e-4) || !approxEqual(ndc.Y, 2*uv[1]-1, 1e-4) {
				t.Errorf("face %v uv %v: expected ndc (%v, %v), got (%v, %v)",
					face, uv, 2*uv[0]-1, 2*uv[1]-1, ndc.X, ndc.Y)
			}
		}
	}
}

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Mat4Identity()
	m2 := Mat4Identity()

	for i := 0; i < b.N; i++ {
		_ = m1.Mul(m2)
	}
}
