package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CubeFace indexes the six cubemap faces in GL order (+X, -X, +Y, -Y, +Z, -Z).
type CubeFace int

const (
	FacePosX CubeFace = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// CubeFaceCount is the number of faces in a cubemap.
const CubeFaceCount = 6

var faceNames = [CubeFaceCount]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}

func (f CubeFace) String() string {
	if f < 0 || f >= CubeFaceCount {
		return "invalid"
	}
	return faceNames[f]
}

// cubeTargets and cubeUps are the look directions and up vectors of the six
// capture cameras. Rendering with these views lands texel rows in the order
// GL samples a cubemap.
var (
	cubeTargets = [CubeFaceCount]mgl32.Vec3{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
	}
	cubeUps = [CubeFaceCount]mgl32.Vec3{
		{0, -1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}, {0, -1, 0},
	}
)

// CubeFaceView returns the view matrix looking from eye through face.
func CubeFaceView(eye Vec3, face CubeFace) Mat4 {
	e := mgl32.Vec3{eye.X, eye.Y, eye.Z}
	return Mat4FromMgl(mgl32.LookAtV(e, e.Add(cubeTargets[face]), cubeUps[face]))
}

// CubeFaceProjection is the square 90 degree projection shared by all faces.
func CubeFaceProjection(near, far float32) Mat4 {
	return Mat4FromMgl(mgl32.Perspective(mgl32.DegToRad(90), 1, near, far))
}

// CubeFaceDirection maps face texture coordinates u, v in [0,1] to the
// unnormalized world direction GL samples for that texel.
func CubeFaceDirection(face CubeFace, u, v float32) Vec3 {
	sc := 2*u - 1
	tc := 2*v - 1
	switch face {
	case FacePosX:
		return Vec3{1, -tc, -sc}
	case FaceNegX:
		return Vec3{-1, -tc, sc}
	case FacePosY:
		return Vec3{sc, 1, tc}
	case FaceNegY:
		return Vec3{sc, -1, -tc}
	case FacePosZ:
		return Vec3{sc, -tc, 1}
	default:
		return Vec3{-sc, -tc, -1}
	}
}

// CubeFaceUV is the inverse of CubeFaceDirection: it selects the major axis
// face for dir and returns texture coordinates in [0,1].
func CubeFaceUV(dir Vec3) (face CubeFace, u, v float32) {
	ax, ay, az := math32.Abs(dir.X), math32.Abs(dir.Y), math32.Abs(dir.Z)
	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir.X >= 0 {
			face, sc, tc = FacePosX, -dir.Z, -dir.Y
		} else {
			face, sc, tc = FaceNegX, dir.Z, -dir.Y
		}
	case ay >= az:
		ma = ay
		if dir.Y >= 0 {
			face, sc, tc = FacePosY, dir.X, dir.Z
		} else {
			face, sc, tc = FaceNegY, dir.X, -dir.Z
		}
	default:
		ma = az
		if dir.Z >= 0 {
			face, sc, tc = FacePosZ, dir.X, -dir.Y
		} else {
			face, sc, tc = FaceNegZ, -dir.X, -dir.Y
		}
	}
	if ma == 0 {
		return FacePosX, 0.5, 0.5
	}
	u = 0.5 * (sc/ma + 1)
	v = 0.5 * (tc/ma + 1)
	return face, u, v
}
