package pipeline

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/scene"
)

func approx(a, b, eps float32) bool {
	return math32.Abs(a-b) <= eps
}

func TestCubeCaptureVisitsSixFaces(t *testing.T) {
	c := NewCubeCapture(math.Vec3{Y: 1}, 0.1, 10)
	if err := c.Require(); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("Require before capture: expected ErrPhaseOrder, got %v", err)
	}
	if c.Next() {
		t.Errorf("Next before Begin: expected false")
	}
	if err := c.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("Finish mid-capture: expected ErrPhaseOrder, got %v", err)
	}
	var faces []math.CubeFace
	for c.Next() {
		faces = append(faces, c.Face())
	}
	if len(faces) != 6 || faces[0] != math.FacePosX || faces[5] != math.FaceNegZ {
		t.Errorf("faces: expected +X..-Z, got %v", faces)
	}
	if err := c.Begin(); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("second Begin: expected ErrPhaseOrder, got %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Errorf("Finish: %v", err)
	}
	if err := c.Require(); err != nil {
		t.Errorf("Require after Finish: %v", err)
	}
}

func TestCubeCaptureCentreRayMatchesFace(t *testing.T) {
	c := NewCubeCapture(math.Vec3{X: 1, Y: 2, Z: 3}, 0.1, 10)
	c.Begin()
	for c.Next() {
		_, dir := c.FaceView(8).Ray(0, 0)
		face, _, _ := math.CubeFaceUV(dir)
		if face != c.Face() {
			t.Errorf("face %s: centre ray %v lands on %s", c.Face(), dir, face)
		}
	}
}

func TestVolumeSequenceOrder(t *testing.T) {
	s := NewVolumeSequence()
	if err := s.BeginStencil(0); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("stencil before geometry: expected ErrPhaseOrder, got %v", err)
	}
	if s.State() != StateGeometry {
		t.Errorf("geometry state: expected StateGeometry")
	}
	if err := s.EndGeometry(); err != nil {
		t.Fatal(err)
	}
	if err := s.EndGeometry(); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("second geometry pass: expected ErrPhaseOrder, got %v", err)
	}
	if err := s.BeginLighting(0); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("lighting without stencil: expected ErrPhaseOrder, got %v", err)
	}
	for light := 0; light < 3; light++ {
		if err := s.BeginStencil(light); err != nil {
			t.Fatal(err)
		}
		if s.State().StencilBackDepthFail != StencilIncrWrap || s.State().StencilFrontDepthFail != StencilDecrWrap {
			t.Errorf("stencil state: unexpected %+v", s.State())
		}
		if err := s.BeginLighting(light + 1); !errors.Is(err, ErrPhaseOrder) {
			t.Errorf("lighting other light: expected ErrPhaseOrder, got %v", err)
		}
		if err := s.BeginLighting(light); err != nil {
			t.Fatal(err)
		}
		st := s.State()
		if st.Cull != CullFront || st.DepthTest || !st.Additive || st.StencilFunc != StencilNotEqual {
			t.Errorf("lighting state: unexpected %+v", st)
		}
		if err := s.Finish(); !errors.Is(err, ErrPhaseOrder) {
			t.Errorf("finish mid-light: expected ErrPhaseOrder, got %v", err)
		}
		if err := s.EndLighting(); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Finish(); err != nil {
		t.Fatal(err)
	}
	if s.LightsProcessed() != 3 || s.Phase() != PhaseDone {
		t.Errorf("terminal: expected 3 lights in done, got %d in %s", s.LightsProcessed(), s.Phase())
	}
}

func TestStencilOpWraps(t *testing.T) {
	if StencilDecrWrap.Apply(0) != 255 {
		t.Errorf("decr wrap: expected 255, got %d", StencilDecrWrap.Apply(0))
	}
	if StencilIncrWrap.Apply(255) != 0 {
		t.Errorf("incr wrap: expected 0, got %d", StencilIncrWrap.Apply(255))
	}
	if StencilKeep.Apply(7) != 7 {
		t.Errorf("keep: expected 7, got %d", StencilKeep.Apply(7))
	}
}

func TestTessellationLevel(t *testing.T) {
	cases := []struct {
		distance, factor, want float32
	}{
		{1, 1, 175},
		{2, 1, 175},
		{3, 1, 80},
		{5, 1, 20},
		{7.5, 1, 10},
		{30, 1, 5},
		{3, 0.5, 40},
		{30, 0.1, 1},
	}
	for _, c := range cases {
		if got := TessellationLevel(c.distance, c.factor); got != c.want {
			t.Errorf("TessellationLevel(%v, %v): expected %v, got %v", c.distance, c.factor, c.want, got)
		}
	}
}

func TestVariantFor(t *testing.T) {
	cfg := scene.DefaultObjectConfig()
	cfg.ID = "floor"
	o, _ := scene.NewObject(cfg, scene.CreatePlane(1, 1, 1))
	if VariantFor(o) != VariantFlat {
		t.Errorf("no height map: expected flat")
	}
	o.HeightMap = true
	if VariantFor(o) != VariantDisplacement {
		t.Errorf("height map: expected displacement")
	}
}

func TestToneMap(t *testing.T) {
	if got := ToneMap(math.Vec3{}, 1, 2.2); got != (math.Vec3{}) {
		t.Errorf("black: expected 0, got %v", got)
	}
	got := ToneMap(math.Splat(1), 1, 1)
	want := 1 - math32.Exp(-1)
	if !approx(got.X, want, 1e-6) {
		t.Errorf("exposure 1, gamma 1: expected %v, got %v", want, got.X)
	}
	bright := ToneMap(math.Splat(1000), 1, 2.2)
	if !approx(bright.Y, 1, 1e-6) {
		t.Errorf("saturation: expected 1, got %v", bright.Y)
	}
}

func TestBrightOutput(t *testing.T) {
	c := math.Vec3{X: 1, Y: 2, Z: 3}
	if got := BrightOutput(c, false, 5); got != (math.Vec3{}) {
		t.Errorf("bloom off: expected 0, got %v", got)
	}
	if got := BrightOutput(c, true, 2); got != (math.Vec3{X: 2, Y: 4, Z: 6}) {
		t.Errorf("bloom on: expected (2,4,6), got %v", got)
	}
}

func TestBlurWeightsNormalized(t *testing.T) {
	sum := BlurWeights[0]
	for _, w := range BlurWeights[1:] {
		sum += 2 * w
	}
	if !approx(sum, 1, 1e-3) {
		t.Errorf("blur weights: expected sum 1, got %v", sum)
	}
}

func TestShadowFactor(t *testing.T) {
	if f := ShadowFactor(5.02, 5, 0.05, 0.75); f != 1 {
		t.Errorf("within bias: expected lit, got %v", f)
	}
	if f := ShadowFactor(8, 5, 0.05, 0.75); !approx(f, 0.25, 1e-6) {
		t.Errorf("occluded: expected 0.25, got %v", f)
	}
}

func TestEquirectUV(t *testing.T) {
	tests := []struct {
		name string
		dir  math.Vec3
		u, v float32
	}{
		{"+X", math.Vec3{X: 1}, 0.5, 0.5},
		{"+Z", math.Vec3{Z: 2}, 0.75, 0.5},
		{"-Z", math.Vec3{Z: -1}, 0.25, 0.5},
		{"up", math.Vec3Up, 0.5, 1},
		{"down", math.Vec3Down, 0.5, 0},
	}
	for _, tt := range tests {
		u, v := EquirectUV(tt.dir)
		if !approx(u, tt.u, 1e-5) || !approx(v, tt.v, 1e-5) {
			t.Errorf("%s: expected (%v, %v), got (%v, %v)", tt.name, tt.u, tt.v, u, v)
		}
	}
}

func TestIntegrateBRDFRange(t *testing.T) {
	for _, r := range []float32{0.1, 0.5, 1} {
		for _, nv := range []float32{0.1, 0.5, 1} {
			ab := IntegrateBRDF(nv, r, 64)
			if ab[0] < 0 || ab[1] < 0 || ab[0]+ab[1] > 1.1 {
				t.Errorf("IntegrateBRDF(%v, %v): out of range %v", nv, r, ab)
			}
		}
	}
	smooth := IntegrateBRDF(1, 0.05, 256)
	if smooth[0] < 0.9 {
		t.Errorf("smooth head-on: expected scale near 1, got %v", smooth[0])
	}
}

func TestDirectLightFacingAway(t *testing.T) {
	n := math.Vec3Up
	got := DirectLight(n, n, math.Vec3Down, math.Splat(10), math.Vec3One, 0.5, 0)
	if got != (math.Vec3{}) {
		t.Errorf("light below surface: expected 0, got %v", got)
	}
	lit := DirectLight(n, n, n, math.Splat(1), math.Vec3One, 1, 0)
	if lit.X <= 0 {
		t.Errorf("light above surface: expected positive, got %v", lit)
	}
}

func TestFrameTargetSpecs(t *testing.T) {
	cfg := config.Default()
	specs := FrameTargetSpecs(&cfg, 800, 600)
	names := map[string]TargetSpec{}
	for _, s := range specs {
		names[s.Name] = s
	}
	if names["hdr"].Samples != 2 || len(names["hdr"].Color) != 2 {
		t.Errorf("forward hdr: expected 2 samples with 2 outputs, got %+v", names["hdr"])
	}
	if _, ok := names["resolved"]; !ok {
		t.Errorf("forward MSAA: expected resolved target")
	}
	if names["ping0"].Width != 400 || names["ping1"].Height != 300 {
		t.Errorf("ping: expected 400x300, got %dx%d", names["ping0"].Width, names["ping1"].Height)
	}

	cfg.PipelineType = config.PipelineDeferred
	specs = FrameTargetSpecs(&cfg, 800, 600)
	names = map[string]TargetSpec{}
	for _, s := range specs {
		names[s.Name] = s
	}
	if names["hdr"].SampleCount() != 1 {
		t.Errorf("deferred hdr: expected single sample, got %d", names["hdr"].Samples)
	}
	if _, ok := names["resolved"]; ok {
		t.Errorf("deferred: expected no resolved target")
	}
	g := names["gbuffer"]
	if len(g.Color) != GBufferAttachments || !g.DepthStencil || g.Color[GPosition].Filter != FilterNearest {
		t.Errorf("gbuffer: unexpected %+v", g)
	}
}

func TestProbeTargetSpecsDepth(t *testing.T) {
	specs := ProbeTargetSpecs("obj", config.Default().IBL)
	if len(specs) != 3 {
		t.Fatalf("expected 3 probe targets, got %d", len(specs))
	}
	env, irr, pre := specs[0], specs[1], specs[2]
	if !env.DepthStencil || !env.Cube {
		t.Errorf("environment: expected depth-tested cube target, got %+v", env)
	}
	if !SurfaceState(false).DepthTest {
		t.Errorf("surface state: expected depth test for captures")
	}
	if irr.DepthStencil || pre.DepthStencil {
		t.Errorf("convolution targets: expected no depth, got irradiance %v prefiltered %v", irr.DepthStencil, pre.DepthStencil)
	}
	if pre.Levels != config.Default().IBL.PrefilterMips {
		t.Errorf("prefiltered: expected %d levels, got %d", config.Default().IBL.PrefilterMips, pre.Levels)
	}
}

func TestLightBlock(t *testing.T) {
	lights := []*scene.PointLight{
		scene.NewPointLight(math.Vec3{Y: 5}, core.ColorWhite, 1),
		scene.NewPointLight(math.Vec3{X: 2}, core.Color{R: 1, A: 1}, 0.5),
	}
	b := NewLightBlock(lights, 100)
	if len(b.Lights) != 2 {
		t.Fatalf("lights: expected 2, got %d", len(b.Lights))
	}
	if b.Lights[1].Radiance != (math.Vec3{X: 50}) {
		t.Errorf("radiance: expected (50,0,0), got %v", b.Lights[1].Radiance)
	}
	if b.Lights[0].Position != (math.Vec3{Y: 5}) {
		t.Errorf("position: expected (0,5,0), got %v", b.Lights[0].Position)
	}

	many := make([]*scene.PointLight, MaxLights+4)
	for i := range many {
		many[i] = scene.NewPointLight(math.Vec3{}, core.ColorWhite, 1)
	}
	if n := len(NewLightBlock(many, 1).Lights); n != MaxLights {
		t.Errorf("capacity: expected %d, got %d", MaxLights, n)
	}
}

func TestNewDrawItemRequiresProbe(t *testing.T) {
	s := scene.NewScene()
	cfg := scene.DefaultObjectConfig()
	cfg.ID = "table"
	o, _ := scene.NewObject(cfg, scene.CreateCube(1))
	global := scene.Probe{Environment: 1, Irradiance: 2, Prefiltered: 3}

	if _, err := NewDrawItem(s, o, global); !errors.Is(err, ErrProbeMissing) {
		t.Errorf("unbaked: expected ErrProbeMissing, got %v", err)
	}
	own := scene.Probe{Environment: 4, Irradiance: 5, Prefiltered: 6}
	o.SetProbe(own)
	item, err := NewDrawItem(s, o, global)
	if err != nil || item.Probe != own {
		t.Errorf("baked: expected own probe, got %+v (%v)", item.Probe, err)
	}
	o.NeedsIBL = false
	item, _ = NewDrawItem(s, o, global)
	if item.Probe != global || item.Material.Name != "default" {
		t.Errorf("no IBL: expected global probe and default material, got %+v", item)
	}
}

func TestViewRayThroughCentre(t *testing.T) {
	cam := scene.NewCamera(math.Radians(60), 1, 0.1, 100)
	cam.Position = math.Vec3{Z: 5}
	cam.LookAt(math.Vec3{})
	v := ViewFromCamera(cam, 64, 64)
	origin, dir := v.Ray(0, 0)
	if !approx(dir.Z, -1, 1e-3) || !approx(origin.Z, 4.9, 1e-3) {
		t.Errorf("centre ray: expected origin z 4.9 dir -Z, got %v %v", origin, dir)
	}
	_, right := v.Ray(1, 0)
	if right.X <= 0 {
		t.Errorf("ndc x=1: expected ray to the right, got %v", right)
	}
}

func TestFrameTargetsCheck(t *testing.T) {
	ft := &FrameTargets{HDR: &Target{Spec: TargetSpec{Name: "hdr", Width: 800, Height: 600}}}
	if err := ft.Check(800, 600); err != nil {
		t.Errorf("Check: %v", err)
	}
	if err := ft.Check(1920, 1080); !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("Check resized: expected ErrTargetMismatch, got %v", err)
	}
}
