package renderer

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/software"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

func testConfig(kind config.PipelineType) config.Config {
	cfg := config.Default()
	cfg.PipelineType = kind
	cfg.MultiSample = false
	cfg.IBL = config.IBL{
		EnvironmentSize:       8,
		IrradianceSize:        4,
		PrefilterSize:         8,
		PrefilterMips:         2,
		BRDFSize:              16,
		IrradianceSampleDelta: 0.5,
		PrefilterSamples:      16,
		BRDFSamples:           16,
		CaptureNear:           0.1,
		CaptureFar:            100,
	}
	cfg.Shadow.Size = 8
	cfg.Lamp.Visible = false
	return cfg
}

// quadScene is one flat unshadowed quad at y = 0 under a light at (0,5,0).
func quadScene(t *testing.T, needsIBL bool) *scene.Scene {
	t.Helper()
	s := scene.NewScene()
	oc := scene.DefaultObjectConfig()
	oc.ID = "floor"
	oc.NeedsIBL = needsIBL
	oc.GenerateShadow = false
	oc.ReceiveShadow = false
	// Off-centre so the centre ray does not graze the quad's diagonal.
	oc.Position = math.Vec3{X: 0.3, Z: 0.1}
	o, err := scene.NewObject(oc, scene.CreatePlane(4, 4, 1))
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := s.AddObject(o); err != nil {
		t.Fatal(err)
	}
	s.AddLight(scene.NewPointLight(math.Vec3{Y: 5}, core.ColorWhite, 1))
	return s
}

func addBall(t *testing.T, s *scene.Scene, id string, pos math.Vec3) *scene.Object {
	t.Helper()
	oc := scene.DefaultObjectConfig()
	oc.ID = id
	oc.Position = pos
	o, err := scene.NewObject(oc, scene.CreateSphere(0.3, 8, 4))
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if err := s.AddObject(o); err != nil {
		t.Fatal(err)
	}
	return o
}

func testCamera(w, h int) *scene.Camera {
	cam := scene.NewCamera(math.Radians(60), float32(w)/float32(h), 0.1, 100)
	cam.Position = math.Vec3{Y: 2, Z: 2}
	cam.LookAt(math.Vec3{})
	return cam
}

func newRenderer(t *testing.T, dev *software.Device, cfg config.Config, s *scene.Scene, w, h int) *Renderer {
	t.Helper()
	r, err := New(dev, cfg, s, w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func TestRenderBeforeInit(t *testing.T) {
	dev := software.New()
	r, err := New(dev, testConfig(config.PipelineForward), quadScene(t, false), 8, 6)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Destroy()
	if _, err := r.RenderFrame(testCamera(8, 6)); !errors.Is(err, pipeline.ErrNotBaked) {
		t.Errorf("RenderFrame: expected ErrNotBaked, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(config.PipelineForward)
	cfg.PipelineType = "raytraced"
	if _, err := New(software.New(), cfg, quadScene(t, false), 8, 6); err == nil {
		t.Error("New: expected error for unknown pipeline type")
	}
	if _, err := New(software.New(), testConfig(config.PipelineForward), quadScene(t, false), 0, 6); err == nil {
		t.Error("New: expected error for empty surface")
	}
}

func TestInitBakesDistinctProbes(t *testing.T) {
	dev := software.New()
	s := quadScene(t, false)
	addBall(t, s, "ball-a", math.Vec3{X: -1, Y: 0.3})
	addBall(t, s, "ball-b", math.Vec3{X: 1, Y: 0.3})
	r := newRenderer(t, dev, testConfig(config.PipelineForward), s, 8, 6)
	defer r.Destroy()

	seen := map[core.Handle]string{}
	for _, id := range []string{"ball-a", "ball-b"} {
		p, ok := r.Probe(id)
		if !ok {
			t.Fatalf("Probe(%s): expected baked probe", id)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("Probe(%s): %v", id, err)
		}
		for _, h := range p.Handles() {
			if !h.Valid() {
				t.Errorf("Probe(%s): expected non-null handles, got %v", id, p.Handles())
			}
			if other, dup := seen[h]; dup {
				t.Errorf("Probe(%s): handle %v shared with %s", id, h, other)
			}
			seen[h] = id
		}
	}
	if _, ok := r.Probe("floor"); ok {
		t.Error("Probe(floor): expected no probe for an object without needs_ibl")
	}
	if !r.GlobalProbe().Baked() {
		t.Error("GlobalProbe: expected baked sky probe")
	}
	if !r.BRDFLUT().Valid() {
		t.Error("BRDFLUT: expected a handle")
	}
}

func TestDegradedBakeDoesNotAbortInit(t *testing.T) {
	dev := software.New()
	dev.FailTargets("ball/irradiance")
	s := quadScene(t, false)
	addBall(t, s, "ball", math.Vec3{Y: 0.3})
	r := newRenderer(t, dev, testConfig(config.PipelineForward), s, 8, 6)
	defer r.Destroy()

	p, ok := r.Probe("ball")
	if !ok || !p.Degraded {
		t.Fatalf("Probe(ball): expected degraded baked probe, got %+v", p)
	}
	if r.GlobalProbe().Degraded {
		t.Error("GlobalProbe: expected only the failing bake to degrade")
	}
	if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Errorf("RenderFrame: %v", err)
	}
}

func TestForwardDeferredEquivalence(t *testing.T) {
	const w, h = 16, 12
	render := func(kind config.PipelineType) core.Color {
		dev := software.New()
		r := newRenderer(t, dev, testConfig(kind), quadScene(t, false), w, h)
		defer r.Destroy()
		if _, err := r.RenderFrame(testCamera(w, h)); err != nil {
			t.Fatalf("%s: RenderFrame: %v", kind, err)
		}
		im, err := dev.Resources().ReadTexture(r.Targets().HDR.Color[0], 0)
		if err != nil {
			t.Fatalf("%s: ReadTexture: %v", kind, err)
		}
		return im.At(w/2, h/2)
	}

	fwd := render(config.PipelineForward)
	def := render(config.PipelineDeferred)
	if fwd.R <= 0 {
		t.Fatalf("forward: expected a lit quad, got %v", fwd)
	}
	for i, pair := range [][2]float32{{fwd.R, def.R}, {fwd.G, def.G}, {fwd.B, def.B}} {
		if math32.Abs(pair[0]-pair[1]) > 1e-3*(1+pair[0]) {
			t.Errorf("channel %d: expected forward %v to match deferred %v", i, pair[0], pair[1])
		}
	}
}

func TestResizeReallocatesTargets(t *testing.T) {
	dev := software.New()
	cfg := testConfig(config.PipelineForward)
	r := newRenderer(t, dev, cfg, quadScene(t, false), 800, 600)
	defer r.Destroy()

	if err := r.Resize(1920, 1080); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	ft := r.Targets()
	for _, tg := range []*pipeline.Target{ft.HDR, ft.Final} {
		if w, h := tg.Size(); w != 1920 || h != 1080 {
			t.Errorf("%s: expected 1920x1080, got %dx%d", tg.Spec.Name, w, h)
		}
	}
	for _, tg := range ft.Ping {
		if w, h := tg.Size(); w != 960 || h != 540 {
			t.Errorf("%s: expected 960x540, got %dx%d", tg.Spec.Name, w, h)
		}
	}
	if err := ft.Check(1920, 1080); err != nil {
		t.Errorf("Check: %v", err)
	}
	if w, h := r.Size(); w != 1920 || h != 1080 {
		t.Errorf("Size: expected 1920x1080, got %dx%d", w, h)
	}
}

func TestFramesRenderAfterResize(t *testing.T) {
	for _, kind := range []config.PipelineType{config.PipelineForward, config.PipelineDeferred} {
		dev := software.New()
		r := newRenderer(t, dev, testConfig(kind), quadScene(t, false), 8, 6)
		if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
			t.Fatalf("%s: RenderFrame: %v", kind, err)
		}
		if err := r.Resize(19, 11); err != nil {
			t.Fatalf("%s: Resize: %v", kind, err)
		}
		res, err := r.RenderFrame(testCamera(19, 11))
		if err != nil {
			t.Fatalf("%s: RenderFrame after resize: %v", kind, err)
		}
		im, err := dev.Resources().ReadTexture(res.Output, 0)
		if err != nil {
			t.Fatalf("%s: ReadTexture: %v", kind, err)
		}
		if im.Width != 19 || im.Height != 11 {
			t.Errorf("%s: expected 19x11 output, got %dx%d", kind, im.Width, im.Height)
		}
		if r.Output() != res.Output {
			t.Errorf("%s: Output: expected %v, got %v", kind, res.Output, r.Output())
		}
		r.Destroy()
	}
}

func TestProbeMissing(t *testing.T) {
	for _, debug := range []bool{false, true} {
		dev := software.New()
		cfg := testConfig(config.PipelineForward)
		cfg.Debug = debug
		s := quadScene(t, false)
		r := newRenderer(t, dev, cfg, s, 8, 6)

		// Added after Init, so it was never baked.
		addBall(t, s, "late", math.Vec3{Y: 0.3})
		_, err := r.RenderFrame(testCamera(8, 6))
		if debug && !errors.Is(err, pipeline.ErrProbeMissing) {
			t.Errorf("debug: expected ErrProbeMissing, got %v", err)
		}
		if !debug && err != nil {
			t.Errorf("release: expected fallback to the global probe, got %v", err)
		}
		r.Destroy()
	}
}

func TestSetShadowLight(t *testing.T) {
	dev := software.New()
	s := quadScene(t, false)
	r := newRenderer(t, dev, testConfig(config.PipelineForward), s, 8, 6)
	defer r.Destroy()

	if err := r.SetShadowLight(1); err == nil {
		t.Error("SetShadowLight(1): expected out of range error")
	}
	if err := r.SetShadowLight(-1); err != nil {
		t.Errorf("SetShadowLight(-1): %v", err)
	}
	if s.ShadowLight != -1 {
		t.Errorf("ShadowLight: expected -1, got %d", s.ShadowLight)
	}
	if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Errorf("RenderFrame without shadows: %v", err)
	}
}

func TestFrustumCullingStats(t *testing.T) {
	dev := software.New()
	s := quadScene(t, false)
	behind := addBall(t, s, "behind", math.Vec3{Y: 2, Z: 10})
	behind.NeedsIBL = false
	r := newRenderer(t, dev, testConfig(config.PipelineForward), s, 8, 6)
	defer r.Destroy()

	if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	objects, triangles, culled, lights := r.DrawStats()
	if objects != 1 || culled != 1 {
		t.Errorf("DrawStats: expected 1 drawn and 1 culled, got %d and %d", objects, culled)
	}
	if triangles != 2 {
		t.Errorf("DrawStats: expected 2 triangles, got %d", triangles)
	}
	if lights != 1 {
		t.Errorf("DrawStats: expected 1 light, got %d", lights)
	}
}

func TestIncompleteFinalTargetPresentsHDR(t *testing.T) {
	dev := software.New()
	dev.FailTargets("final")
	r := newRenderer(t, dev, testConfig(config.PipelineForward), quadScene(t, false), 8, 6)
	defer r.Destroy()

	res, err := r.RenderFrame(testCamera(8, 6))
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if res.Output != r.Targets().HDR.Color[0] {
		t.Errorf("Output: expected HDR color %v, got %v", r.Targets().HDR.Color[0], res.Output)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "composite" {
		t.Errorf("Skipped: expected [composite], got %v", res.Skipped)
	}
}

func TestDestroyFreesEverything(t *testing.T) {
	dev := software.New()
	s := quadScene(t, false)
	addBall(t, s, "ball", math.Vec3{Y: 0.3})
	r := newRenderer(t, dev, testConfig(config.PipelineDeferred), s, 8, 6)
	if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	r.Destroy()
	if n := dev.Textures(); n != 0 {
		t.Errorf("Destroy: expected 0 live textures, got %d", n)
	}
	if _, ok := s.Object("ball").Probe(); ok {
		t.Error("Destroy: expected the object probe to be cleared")
	}
}

func TestForwardShadowTest(t *testing.T) {
	const w, h = 16, 12
	render := func(kind config.PipelineType, receive, occluded bool) core.Color {
		dev := software.New()
		cfg := testConfig(kind)
		cfg.Shadow.Size = 32
		s := quadScene(t, false)
		s.Object("floor").ReceiveShadow = receive
		if occluded {
			// Between the light and the floor, above the camera's centre ray.
			oc := scene.DefaultObjectConfig()
			oc.ID = "occluder"
			oc.Position = math.Vec3{Y: 2.5}
			oc.NeedsIBL = false
			o, err := scene.NewObject(oc, scene.CreateCube(1))
			if err != nil {
				t.Fatalf("NewObject: %v", err)
			}
			if err := s.AddObject(o); err != nil {
				t.Fatal(err)
			}
		}
		r := newRenderer(t, dev, cfg, s, w, h)
		defer r.Destroy()
		if _, err := r.RenderFrame(testCamera(w, h)); err != nil {
			t.Fatalf("%s: RenderFrame: %v", kind, err)
		}
		im, err := dev.Resources().ReadTexture(r.Targets().HDR.Color[0], 0)
		if err != nil {
			t.Fatalf("%s: ReadTexture: %v", kind, err)
		}
		return im.At(w/2, h/2)
	}
	near := func(a, b float32) bool { return math32.Abs(a-b) <= 1e-3*(1+a) }

	tests := []struct {
		name     string
		receive  bool
		occluded bool
		shadowed bool
	}{
		{"receiver in the open", true, false, false},
		{"receiver under occluder", true, true, true},
		{"non-receiver under occluder", false, true, false},
	}
	results := map[config.PipelineType]core.Color{}
	for _, kind := range []config.PipelineType{config.PipelineForward, config.PipelineDeferred} {
		lit := render(kind, true, false)
		if lit.R <= 0 {
			t.Fatalf("%s: expected a lit floor, got %v", kind, lit)
		}
		for _, tt := range tests {
			got := render(kind, tt.receive, tt.occluded)
			switch {
			case tt.shadowed && got.R >= 0.9*lit.R:
				t.Errorf("%s %s: expected darker than %v, got %v", kind, tt.name, lit.R, got.R)
			case !tt.shadowed && !near(got.R, lit.R):
				t.Errorf("%s %s: expected unshadowed %v, got %v", kind, tt.name, lit.R, got.R)
			}
			if tt.shadowed {
				results[kind] = got
			}
		}
	}
	fwd, def := results[config.PipelineForward], results[config.PipelineDeferred]
	if !near(fwd.R, def.R) || !near(fwd.G, def.G) || !near(fwd.B, def.B) {
		t.Errorf("shadowed floor: expected forward %v to match deferred %v", fwd, def)
	}
}

func TestIncompleteShadowMapDisablesShadows(t *testing.T) {
	dev := software.New()
	dev.FailTargets("shadow")
	s := quadScene(t, false)
	s.Object("floor").ReceiveShadow = true
	r := newRenderer(t, dev, testConfig(config.PipelineForward), s, 8, 6)
	defer r.Destroy()

	if info := r.castShadow(); info.Enabled {
		t.Errorf("castShadow: expected shadows disabled for an incomplete map, got %+v", info)
	}
	if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Errorf("RenderFrame: %v", err)
	}
}

func uniformEnvironment(name string, c core.Color) *scene.Environment {
	texels := make([]core.Color, 8*4)
	for i := range texels {
		texels[i] = c
	}
	return &scene.Environment{Name: name, Width: 8, Height: 4, Texels: texels}
}

func TestEnvironmentProbes(t *testing.T) {
	dev := software.New()
	s := quadScene(t, false)
	for _, env := range []*scene.Environment{
		uniformEnvironment("red", core.Color{R: 1, A: 1}),
		uniformEnvironment("blue", core.Color{B: 0.5, A: 1}),
	} {
		if err := s.AddEnvironment(env); err != nil {
			t.Fatal(err)
		}
	}
	cfg := testConfig(config.PipelineForward)
	cfg.Environment = "blue"
	r := newRenderer(t, dev, cfg, s, 8, 6)

	face := func(h core.Handle) core.Color {
		im, err := dev.Resources().ReadCubeFace(h, math.FacePosX, 0)
		if err != nil {
			t.Fatalf("ReadCubeFace: %v", err)
		}
		return im.At(0, 0)
	}
	if s.Environment != 1 {
		t.Errorf("config selection: expected environment 1, got %d", s.Environment)
	}
	if c := face(r.GlobalProbe().Environment); !approx(c.B, 0.5) || c.R != 0 {
		t.Errorf("blue environment: expected (0, 0, 0.5), got %v", c)
	}

	if err := r.SetEnvironment(0); err != nil {
		t.Fatalf("SetEnvironment(0): %v", err)
	}
	if c := face(r.GlobalProbe().Environment); !approx(c.R, 1) || c.B != 0 {
		t.Errorf("red environment: expected (1, 0, 0), got %v", c)
	}
	if c := face(r.GlobalProbe().Irradiance); c.R < 0.5 || c.B != 0 {
		t.Errorf("red irradiance: expected red, got %v", c)
	}
	if err := r.SetEnvironment(2); err == nil {
		t.Error("SetEnvironment(2): expected out of range error")
	}
	if _, err := r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Errorf("RenderFrame: %v", err)
	}

	r.Destroy()
	if n := dev.Textures(); n != 0 {
		t.Errorf("Destroy: expected 0 live textures, got %d", n)
	}

	cfg.Environment = "dunes"
	if _, err := New(software.New(), cfg, s, 8, 6); err == nil {
		t.Error("New: expected error for an unknown environment")
	}
}

func approx(a, b float32) bool { return math32.Abs(a-b) < 1e-3 }

func TestRuntimeToggles(t *testing.T) {
	dev := software.New()
	r := newRenderer(t, dev, testConfig(config.PipelineForward), quadScene(t, false), 8, 6)
	defer r.Destroy()

	if got := r.SetExposure(5); got != MaxExposure {
		t.Errorf("SetExposure(5): expected %v, got %v", MaxExposure, got)
	}
	if got := r.SetExposure(0); got != MinExposure {
		t.Errorf("SetExposure(0): expected %v, got %v", MinExposure, got)
	}
	if r.Config().Exposure != MinExposure {
		t.Errorf("Config: expected exposure %v, got %v", MinExposure, r.Config().Exposure)
	}

	r.SetBloom(false)
	res, err := r.RenderFrame(testCamera(8, 6))
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if res.Bloom.Valid() {
		t.Errorf("bloom off: expected no bloom texture, got %v", res.Bloom)
	}
	r.SetBloom(true)
	if res, err = r.RenderFrame(testCamera(8, 6)); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if !res.Bloom.Valid() {
		t.Error("bloom on: expected a bloom texture")
	}

	r.SetLampsVisible(true)
	if !r.Config().Lamp.Visible {
		t.Error("SetLampsVisible: expected lamps visible")
	}
}
