package scene

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

func approx(a, b, eps float32) bool {
	d := a - b
	return d < eps && d > -eps
}

func testObject(t *testing.T, id string) *Object {
	t.Helper()
	cfg := DefaultObjectConfig()
	cfg.ID = id
	o, err := NewObject(cfg, CreateCube(1))
	if err != nil {
		t.Fatalf("NewObject(%s): %v", id, err)
	}
	return o
}

func TestObjectConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ObjectConfig)
	}{
		{"missing id", func(c *ObjectConfig) { c.ID = "" }},
		{"alpha", func(c *ObjectConfig) { c.Alpha = 1.5 }},
		{"zero scale", func(c *ObjectConfig) { c.Scale = math.Vec3{X: 1, Y: 0, Z: 1} }},
		{"darkness", func(c *ObjectConfig) { c.ShadowDarkness = -0.1 }},
		{"tessellation", func(c *ObjectConfig) { c.HeightMap = true; c.TessellationFactor = 0 }},
		{"probe box", func(c *ObjectConfig) { c.ParallaxCubemap = true }},
		{"wall filter", func(c *ObjectConfig) { c.WallFilter = []string{"w1"} }},
	}
	for _, c := range cases {
		cfg := DefaultObjectConfig()
		cfg.ID = "obj"
		c.mutate(&cfg)
		_, err := NewObject(cfg, CreateCube(1))
		if !errors.Is(err, ErrInvalidObject) {
			t.Errorf("%s: expected ErrInvalidObject, got %v", c.name, err)
		}
	}

	cfg := DefaultObjectConfig()
	cfg.ID = "ok"
	if _, err := NewObject(cfg, nil); !errors.Is(err, ErrInvalidObject) {
		t.Errorf("nil mesh: expected ErrInvalidObject, got %v", err)
	}
}

func TestProbeAllOrNone(t *testing.T) {
	o := testObject(t, "table")
	if _, ok := o.Probe(); ok {
		t.Errorf("fresh object: expected no probe")
	}
	if err := o.SetProbe(Probe{Environment: 1, Irradiance: 2}); !errors.Is(err, ErrPartialProbe) {
		t.Errorf("partial probe: expected ErrPartialProbe, got %v", err)
	}
	if err := o.SetProbe(Probe{Environment: 1, Irradiance: 1, Prefiltered: 2}); err == nil {
		t.Errorf("aliased probe: expected error")
	}
	if err := o.SetProbe(Probe{Environment: 1, Irradiance: 2, Prefiltered: 3}); err != nil {
		t.Fatalf("full probe: %v", err)
	}
	p, ok := o.Probe()
	if !ok || p.Handles() != [3]core.Handle{1, 2, 3} {
		t.Errorf("Probe: expected [1 2 3], got %v (ok=%v)", p.Handles(), ok)
	}
}

func TestCapturePosition(t *testing.T) {
	cfg := DefaultObjectConfig()
	cfg.ID = "floor"
	cfg.Position = math.Vec3{X: 1, Y: 0, Z: 2}
	o, _ := NewObject(cfg, CreatePlane(10, 10, 1))
	if o.CapturePosition() != cfg.Position {
		t.Errorf("CapturePosition: expected %v, got %v", cfg.Position, o.CapturePosition())
	}
	eye := math.Vec3{X: 1, Y: 1.5, Z: 2}
	cfg.IBLPosition = &eye
	o, _ = NewObject(cfg, CreatePlane(10, 10, 1))
	if o.CapturePosition() != eye {
		t.Errorf("CapturePosition: expected %v, got %v", eye, o.CapturePosition())
	}
	if o.Mesh.Closed {
		t.Errorf("plane: expected open mesh")
	}
}

func TestSetTransformUpdatesBounds(t *testing.T) {
	o := testObject(t, "box")
	o.SetTransform(math.Vec3{X: 5}, math.Vec3{})
	b := o.Bounds()
	if !approx(b.Min.X, 4.5, 1e-5) || !approx(b.Max.X, 5.5, 1e-5) {
		t.Errorf("Bounds: expected x in [4.5,5.5], got %v", b)
	}
}

func TestIncludesWall(t *testing.T) {
	wallA := testObject(t, "wallA")
	wallA.Wall = true
	wallB := testObject(t, "wallB")
	wallB.Wall = true

	o := testObject(t, "table")
	if o.IncludesWall(wallA) {
		t.Errorf("include_walls off: expected wall excluded")
	}
	o.IncludeWalls = true
	if !o.IncludesWall(wallA) || !o.IncludesWall(wallB) {
		t.Errorf("empty filter: expected all walls included")
	}
	o.WallFilter = []string{"wallB"}
	if o.IncludesWall(wallA) || !o.IncludesWall(wallB) {
		t.Errorf("filter [wallB]: expected only wallB")
	}
}

func TestSceneValidate(t *testing.T) {
	s := NewScene()
	o := testObject(t, "a")
	o.MaterialID = "missing"
	if err := s.AddObject(o); err != nil {
		t.Fatal(err)
	}
	if err := s.AddObject(testObject(t, "a")); err == nil {
		t.Errorf("duplicate id: expected error")
	}
	if err := s.Validate(); err == nil {
		t.Errorf("unknown material: expected error")
	}
	s.AddMaterial(NewMaterial("missing", core.ColorWhite, 0, 0.5))
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	o.HeightMap = true
	if err := s.Validate(); err == nil {
		t.Errorf("height_map without map: expected error")
	}
}

func TestLightRadius(t *testing.T) {
	l := NewPointLight(math.Vec3{}, core.ColorWhite, 1)
	r := l.Radius(100)
	want := float32(71.55418)
	if !approx(r, want, 1e-3) {
		t.Errorf("Radius: expected %v, got %v", want, r)
	}
	l.MaxDistance = 4
	if l.Radius(100) != 4 {
		t.Errorf("Radius with MaxDistance: expected 4, got %v", l.Radius(100))
	}
	rad := l.Radiance(100)
	if rad != (math.Vec3{X: 100, Y: 100, Z: 100}) {
		t.Errorf("Radiance: expected 100, got %v", rad)
	}
}

func TestSkyGradient(t *testing.T) {
	sky := DefaultSky()
	up := sky.Sample(math.Vec3Up)
	if !approx(up.X, sky.Zenith.R, 1e-5) || !approx(up.Z, sky.Zenith.B, 1e-5) {
		t.Errorf("zenith: expected %v, got %v", sky.Zenith, up)
	}
	down := sky.Sample(math.Vec3Down)
	if !approx(down.Y, sky.Ground.G, 1e-5) {
		t.Errorf("ground: expected %v, got %v", sky.Ground, down)
	}
	side := sky.Sample(math.Vec3Right)
	if !approx(side.X, sky.Horizon.R, 1e-5) {
		t.Errorf("horizon: expected %v, got %v", sky.Horizon, side)
	}
}

func TestTextureSample(t *testing.T) {
	tex := NewSolidTexture("grey", 128, 128, 128, 255)
	c := tex.Sample(0.3, 0.9)
	if !approx(c.R, 128.0/255, 1e-5) {
		t.Errorf("solid: expected %v, got %v", 128.0/255, c.R)
	}
	tex.SRGB = true
	c = tex.Sample(0.3, 0.9)
	if !approx(c.R, 0.21586, 1e-3) {
		t.Errorf("srgb: expected 0.21586, got %v", c.R)
	}

	// 2x1: left black, right white; the midpoint between texel centres is grey.
	tex = &Texture{Width: 2, Height: 1, Pixels: []byte{0, 0, 0, 255, 255, 255, 255, 255}}
	c = tex.Sample(0.5, 0.5)
	if !approx(c.R, 0.5, 1e-5) {
		t.Errorf("bilinear: expected 0.5, got %v", c.R)
	}
}

func TestMaterialEvaluateFallsBackToConstants(t *testing.T) {
	m := NewMaterial("metal", core.Color{R: 0.9, G: 0.6, B: 0.2, A: 1}, 1, 0.3)
	s := m.Evaluate(0.5, 0.5)
	if s.Albedo != m.BaseColor || s.Metalness != 1 || s.Roughness != 0.3 || s.AO != 1 {
		t.Errorf("Evaluate: expected constants, got %+v", s)
	}
	m.Roughness = NewSolidTexture("r", 51, 0, 0, 255)
	s = m.Evaluate(0.5, 0.5)
	if !approx(s.Roughness, 0.2, 1e-5) {
		t.Errorf("roughness map: expected 0.2, got %v", s.Roughness)
	}
}

func TestPrimitiveWindingFacesOutward(t *testing.T) {
	for _, m := range []*Mesh{CreateSphere(1, 16, 8), CreateCube(2), CreatePlane(2, 2, 2)} {
		for i := 0; i < m.TriangleCount(); i++ {
			a, b, c := m.Triangle(i)
			p0, p1, p2 := m.Vertices[a].Position, m.Vertices[b].Position, m.Vertices[c].Position
			n := p1.Sub(p0).Cross(p2.Sub(p0))
			if n.LengthSqr() < 1e-12 {
				continue // degenerate pole triangle
			}
			avg := m.Vertices[a].Normal.Add(m.Vertices[b].Normal).Add(m.Vertices[c].Normal)
			if n.Dot(avg) <= 0 {
				t.Errorf("%s triangle %d: winding faces inward", m.Name, i)
				break
			}
		}
	}
}

func TestFrustumCulling(t *testing.T) {
	view := math.Mat4LookAt(math.Vec3{Z: 5}, math.Vec3{}, math.Vec3Up)
	proj := math.Mat4Perspective(math.Radians(60), 1, 0.1, 50)
	f := FrustumFromVP(view.Mul(proj))

	inside := AABB{Min: math.Vec3{X: -0.5, Y: -0.5, Z: -0.5}, Max: math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}}
	if !inside.IntersectsFrustum(&f) {
		t.Errorf("box at origin: expected visible")
	}
	behind := AABB{Min: math.Vec3{X: -0.5, Y: -0.5, Z: 9}, Max: math.Vec3{X: 0.5, Y: 0.5, Z: 10}}
	if behind.IntersectsFrustum(&f) {
		t.Errorf("box behind camera: expected culled")
	}
	left := AABB{Min: math.Vec3{X: -40, Y: -0.5, Z: -0.5}, Max: math.Vec3{X: -39, Y: 0.5, Z: 0.5}}
	if left.IntersectsFrustum(&f) {
		t.Errorf("box far left: expected culled")
	}
}

func TestAABBIntersectRay(t *testing.T) {
	box := AABB{Min: math.Vec3{X: -1, Y: -1, Z: -1}, Max: math.Vec3{X: 1, Y: 1, Z: 1}}
	tn, tf, ok := box.IntersectRay(math.Vec3{Z: 5}, math.Vec3{Z: -1})
	if !ok || !approx(tn, 4, 1e-5) || !approx(tf, 6, 1e-5) {
		t.Errorf("IntersectRay: expected (4, 6, true), got (%v, %v, %v)", tn, tf, ok)
	}
	if _, _, ok := box.IntersectRay(math.Vec3{Z: 5}, math.Vec3{Z: 1}); ok {
		t.Errorf("ray pointing away: expected miss")
	}
	_, tf, ok = box.IntersectRay(math.Vec3{}, math.Vec3{X: 1})
	if !ok || !approx(tf, 1, 1e-5) {
		t.Errorf("ray from inside: expected exit at 1, got %v (ok=%v)", tf, ok)
	}
}

func TestCameraLookAt(t *testing.T) {
	c := NewCamera(math.Radians(45), 1, 0.1, 100)
	c.Position = math.Vec3{X: 0, Y: 0, Z: 5}
	c.LookAt(math.Vec3{})
	f := c.Front()
	if !approx(f.Z, -1, 1e-4) {
		t.Errorf("Front: expected (0,0,-1), got %v", f)
	}
	p := c.ViewMatrix().MulPoint(math.Vec3{})
	if !approx(p.Z, -5, 1e-4) {
		t.Errorf("view space origin: expected z=-5, got %v", p)
	}
}

func TestLoadOBJ(t *testing.T) {
	dir := t.TempDir()
	mtl := "newmtl red\nKd 1 0 0\nPr 0.25\nPm 1\n"
	obj := "mtllib quad.mtl\no quad\nusemtl red\nv 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 1 1\nvt 0 1\nf 1/1 2/2 3/3 4/4\n"
	if err := os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(mtl), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(path, []byte(obj), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := LoadOBJ(path)
	if err != nil {
		t.Fatalf("LoadOBJ: %v", err)
	}
	if len(res.Meshes) != 1 {
		t.Fatalf("meshes: expected 1, got %d", len(res.Meshes))
	}
	m := res.Meshes[0]
	if m.TriangleCount() != 2 || len(m.Vertices) != 4 {
		t.Errorf("quad: expected 2 triangles over 4 vertices, got %d over %d", m.TriangleCount(), len(m.Vertices))
	}
	if res.MeshMaterial[0] != "red" {
		t.Errorf("material: expected red, got %q", res.MeshMaterial[0])
	}
	red := res.Materials["red"]
	if red == nil || red.BaseColor.R != 1 || red.RoughnessValue != 0.25 || red.MetalnessValue != 1 {
		t.Errorf("mtl: unexpected material %+v", red)
	}
	if n := m.Vertices[0].Normal; !approx(n.Z, 1, 1e-5) {
		t.Errorf("generated normal: expected +Z, got %v", n)
	}
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	layout := `
camera:
  position: {x: 0, y: 1.7, z: 4}
  yaw: -90
  fov: 60
materials:
  - name: oak
    base_color: {r: 0.6, g: 0.4, b: 0.2, a: 1}
    roughness_value: 0.7
templates:
  table:
    material: oak
    scale: {x: 1, y: 0.1, z: 1}
    bloom: true
    bloom_brightness: 2
objects:
  - id: floor
    mesh: plane
    mesh_size: 10
    wall: false
    needs_ibl: false
  - id: wall_north
    mesh: cube
    wall: true
    position: {x: 0, y: 1, z: -5}
  - id: table1
    template: table
    position: {x: -1.5, y: 1, z: 2}
    include_walls: true
    wall_filter: [wall_north]
  - id: table2
    template: table
    position: {x: 1.5, y: 1, z: 2}
    bloom: false
lights:
  - position: {x: 0, y: 2.5, z: 0}
    intensity: 0.1
  - position: {x: 3, y: 2.5, z: 0}
    color: {r: 1, g: 0.8, b: 0.6, a: 1}
    intensity: 0.2
    max_distance: 6
shadow_light: 1
`
	path := filepath.Join(dir, "walkthrough.yaml")
	if err := os.WriteFile(path, []byte(layout), 0644); err != nil {
		t.Fatal(err)
	}

	l, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	s := l.Scene
	if len(s.Objects) != 4 || len(s.Lights) != 2 {
		t.Fatalf("scene: expected 4 objects and 2 lights, got %d and %d", len(s.Objects), len(s.Lights))
	}
	if s.ShadowLight != 1 {
		t.Errorf("ShadowLight: expected 1, got %d", s.ShadowLight)
	}
	t1, t2 := s.Object("table1"), s.Object("table2")
	if t1.MaterialID != "oak" || !t1.Bloom || t1.BloomBrightness != 2 || t1.Scale.Y != 0.1 {
		t.Errorf("table1: template not applied: %+v", t1.ObjectConfig)
	}
	if t2.Bloom {
		t.Errorf("table2: expected override bloom=false")
	}
	if !t2.NeedsIBL || t2.ShadowDarkness != 0.75 {
		t.Errorf("table2: expected defaults kept, got needs_ibl=%v darkness=%v", t2.NeedsIBL, t2.ShadowDarkness)
	}
	if !t1.IncludesWall(s.Object("wall_north")) {
		t.Errorf("table1: expected wall_north in captures")
	}
	if s.Object("floor").NeedsIBL || s.Object("floor").Mesh.Closed {
		t.Errorf("floor: expected open plane without IBL")
	}
	if s.Lights[0].Color != core.ColorWhite {
		t.Errorf("light color default: expected white, got %v", s.Lights[0].Color)
	}
	if s.Material("oak").RoughnessValue != 0.7 {
		t.Errorf("oak roughness: expected 0.7, got %v", s.Material("oak").RoughnessValue)
	}
	if !approx(l.Camera.FOV, math.Radians(60), 1e-6) || l.Camera.Position.Y != 1.7 {
		t.Errorf("camera: unexpected %+v", l.Camera)
	}
}

// radianceFile builds a two-row 8 x 2 RGBE image: the first row run-length
// encoded at (1, 0.5, 0), the second flat at 0.5 grey.
func radianceFile() []byte {
	b := []byte("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 2 +X 8\n")
	b = append(b, 2, 2, 0, 8)
	for _, v := range []byte{128, 64, 0, 129} {
		b = append(b, 128+8, v)
	}
	for i := 0; i < 8; i++ {
		b = append(b, 128, 128, 128, 128)
	}
	return b
}

func TestReadRadianceHDR(t *testing.T) {
	w, h, texels, err := readRadianceHDR(bytes.NewReader(radianceFile()))
	if err != nil {
		t.Fatalf("readRadianceHDR: %v", err)
	}
	if w != 8 || h != 2 {
		t.Fatalf("size: expected 8x2, got %dx%d", w, h)
	}
	if got := texels[3]; got.R != 1 || got.G != 0.5 || got.B != 0 {
		t.Errorf("run-length row: expected (1, 0.5, 0), got %v", got)
	}
	if got := texels[8+7]; got.R != 0.5 || got.G != 0.5 || got.B != 0.5 {
		t.Errorf("flat row: expected 0.5 grey, got %v", got)
	}

	if _, _, _, err := readRadianceHDR(strings.NewReader("P6\n")); err == nil {
		t.Errorf("non-Radiance input: expected error")
	}
	bad := bytes.Replace(radianceFile(), []byte("-Y 2 +X 8"), []byte("+Y 2 +X 8"), 1)
	if _, _, _, err := readRadianceHDR(bytes.NewReader(bad)); err == nil {
		t.Errorf("bottom-up orientation: expected error")
	}
}

func TestLoadLayoutEnvironments(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ridge.hdr"), radianceFile(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pines.hdr"), radianceFile(), 0644); err != nil {
		t.Fatal(err)
	}
	layout := `
environments:
  - path: ridge.hdr
  - name: pines
    path: pines.hdr
    intensity: 2
environment: pines
`
	path := filepath.Join(dir, "walkthrough.yaml")
	if err := os.WriteFile(path, []byte(layout), 0644); err != nil {
		t.Fatal(err)
	}
	l, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	s := l.Scene
	if len(s.Environments) != 2 || s.Environments[0].Name != "ridge" {
		t.Fatalf("environments: unexpected %d, first %q", len(s.Environments), s.Environments[0].Name)
	}
	if s.Environment != 1 {
		t.Errorf("selected: expected 1, got %d", s.Environment)
	}
	// Bottom row first: the flat grey row comes first, scaled by intensity.
	pines := s.Environments[1]
	if got := pines.Texels[0]; got.R != 1 || got.G != 1 {
		t.Errorf("bottom row: expected grey 1, got %v", got)
	}
	if got := pines.Texels[8]; got.R != 2 || got.G != 1 || got.B != 0 {
		t.Errorf("top row: expected (2, 1, 0), got %v", got)
	}

	bad := strings.Replace(layout, "environment: pines", "environment: dunes", 1)
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLayout(path); err == nil {
		t.Errorf("unknown environment: expected error")
	}
}
