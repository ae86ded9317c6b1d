// Command walkthrough opens a window on a walkthrough layout, bakes its
// probes and renders it interactively with the OpenGL device.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/internal/opengl"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/renderer"
	"walkthrough-renderer/scene"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file; defaults when empty")
	layoutPath := flag.String("layout", "walkthrough.yaml", "walkthrough layout file")
	pipelineType := flag.String("pipeline", "", "override pipeline_type (forward or deferred)")
	collide := flag.Bool("collide", true, "keep the camera out of furniture")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *pipelineType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walkthrough: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "walkthrough: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *layoutPath, *collide); err != nil {
		logger.Log.Error("walkthrough failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// loadConfig reads path over the defaults and applies the pipeline override.
func loadConfig(path, pipelineType string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if pipelineType != "" {
		cfg.PipelineType = config.PipelineType(pipelineType)
	}
	return cfg, cfg.Validate()
}

func run(cfg config.Config, layoutPath string, collide bool) error {
	layout, err := scene.LoadLayout(layoutPath)
	if err != nil {
		return err
	}

	windowConfig := core.DefaultWindowConfig()
	windowConfig.Width = cfg.Window.Width
	windowConfig.Height = cfg.Window.Height
	windowConfig.Title = cfg.Window.Title
	windowConfig.VSync = cfg.Window.VSync
	windowConfig.Resizable = cfg.Window.Resizable
	windowConfig.Fullscreen = cfg.Window.Fullscreen
	window, err := core.NewWindow(windowConfig)
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev, err := opengl.New()
	if err != nil {
		return err
	}
	defer dev.Destroy()

	width, height := window.GetFramebufferSize()
	camera := layout.Camera
	camera.UpdateAspectRatio(float32(width), float32(height))

	r, err := renderer.New(dev, cfg, layout.Scene, width, height)
	if err != nil {
		return err
	}
	defer r.Destroy()

	start := time.Now()
	if err := r.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	logger.Log.Info("probes baked", zap.Duration("elapsed", time.Since(start)))

	window.SetResizeCallback(func(w, h int) {
		camera.UpdateAspectRatio(float32(w), float32(h))
		if err := r.Resize(w, h); err != nil {
			logger.Log.Warn("resize", zap.Int("width", w), zap.Int("height", h), zap.Error(err))
		}
	})

	controller := NewCameraController(camera)
	if collide {
		controller.CollBoxes = obstacles(layout.Scene, camera.Position.Y-1.7, camera.Position.Y)
	}
	printControls(r)

	var status StatusLine
	keys := &toggles{}
	frames := 0
	lastFrame := window.Time()
	lastTitle := lastFrame
	for !window.ShouldClose() {
		window.PollEvents()
		if window.IsKeyPressed(core.KeyEscape) {
			window.Close()
		}

		now := window.Time()
		dt := float32(now - lastFrame)
		lastFrame = now

		controller.Update(window, camera, dt)
		keys.apply(window, r, camera, dt)

		result, err := r.RenderFrame(camera)
		if err != nil {
			if frameSkippable(err) {
				logger.Log.Warn("frame skipped", zap.Error(err))
				window.SwapBuffers()
				continue
			}
			return fmt.Errorf("frame: %w", err)
		}
		if result.Output.Valid() {
			fbw, fbh := window.GetFramebufferSize()
			if err := dev.Present(result.Output, fbw, fbh); err != nil {
				return err
			}
		}
		window.SwapBuffers()

		frames++
		if elapsed := now - lastTitle; elapsed >= 1 {
			objects, tris, culled, lights := r.DrawStats()
			status.Clear()
			status.Add("%s", cfg.Window.Title)
			status.Add("%s", r.Kind())
			status.Add("FPS: %d", int(float64(frames)/elapsed))
			status.Add("obj=%d tris=%d culled=%d lights=%d", objects, tris, culled, lights)
			status.Add("shadow light %d", layout.Scene.ShadowLight)
			status.Add("env %s", environmentName(layout.Scene))
			status.Add("exposure %.2f", r.Config().Exposure)
			if len(result.Skipped) > 0 {
				status.Add("skipped %v", result.Skipped)
			}
			window.SetTitle(status.String())
			frames = 0
			lastTitle = now
		}
	}
	return nil
}

// frameSkippable reports render errors the loop survives: targets that
// lag a resize or fail their completeness check recover on a later frame.
func frameSkippable(err error) bool {
	return errors.Is(err, pipeline.ErrTargetMismatch) || errors.Is(err, pipeline.ErrIncomplete)
}

// environmentName names the environment lighting the global probe.
func environmentName(s *scene.Scene) string {
	if len(s.Environments) == 0 {
		return "sky"
	}
	return s.Environments[s.Environment].Name
}

func printControls(r *renderer.Renderer) {
	fmt.Println("===========================================")
	fmt.Printf("  Walkthrough (%s pipeline)\n", r.Kind())
	fmt.Println("===========================================")
	fmt.Println("  W / S             - Move forward / backward")
	fmt.Println("  A / D             - Strafe left / right")
	fmt.Println("  Space             - Jump")
	fmt.Println("  Left Shift        - Sprint")
	fmt.Println("  Right Mouse Drag  - Look around")
	fmt.Println("  Arrow Keys        - Look around")
	fmt.Println("  Q / E             - Previous / next shadow-casting light")
	fmt.Println("  F                 - Toggle frustum culling")
	fmt.Println("  B                 - Toggle bloom")
	fmt.Println("  M                 - Toggle light markers")
	fmt.Println("  1 / 2             - Lower / raise exposure")
	fmt.Println("  PgUp / PgDn       - Previous / next environment")
	fmt.Println("  P                 - Log camera position and the object ahead")
	fmt.Println("  ESC               - Exit")
	fmt.Println("===========================================")
}

// toggles debounces the keys that act once per press.
type toggles struct {
	down map[int]bool
}

// pressed reports a key that went down since the previous frame.
func (t *toggles) pressed(w *core.Window, key int) bool {
	if t.down == nil {
		t.down = map[int]bool{}
	}
	now := w.IsKeyPressed(key)
	was := t.down[key]
	t.down[key] = now
	return now && !was
}

// exposureRate is the exposure change per second while 1 or 2 is held.
const exposureRate = 0.5

func (t *toggles) apply(w *core.Window, r *renderer.Renderer, cam *scene.Camera, dt float32) {
	n := len(r.Scene.Lights)
	if n > 0 {
		next := r.Scene.ShadowLight
		if t.pressed(w, core.KeyE) {
			next = (next + 1) % n
		}
		if t.pressed(w, core.KeyQ) {
			next = (next - 1 + n) % n
		}
		if next != r.Scene.ShadowLight {
			if err := r.SetShadowLight(next); err != nil {
				logger.Log.Warn("shadow light", zap.Error(err))
			} else {
				logger.Log.Info("shadow light", zap.Int("light", next))
			}
		}
	}
	if n := len(r.Scene.Environments); n > 1 {
		next := r.Scene.Environment
		if t.pressed(w, core.KeyPageDown) {
			next = (next + 1) % n
		}
		if t.pressed(w, core.KeyPageUp) {
			next = (next - 1 + n) % n
		}
		if next != r.Scene.Environment {
			if err := r.SetEnvironment(next); err != nil {
				logger.Log.Warn("environment", zap.Error(err))
			}
		}
	}
	if t.pressed(w, core.KeyB) {
		r.SetBloom(!r.Config().Bloom)
		logger.Log.Info("bloom", zap.Bool("enabled", r.Config().Bloom))
	}
	if t.pressed(w, core.KeyM) {
		r.SetLampsVisible(!r.Config().Lamp.Visible)
		logger.Log.Info("light markers", zap.Bool("visible", r.Config().Lamp.Visible))
	}
	var de float32
	if w.IsKeyPressed(core.Key1) {
		de -= exposureRate * dt
	}
	if w.IsKeyPressed(core.Key2) {
		de += exposureRate * dt
	}
	if de != 0 {
		r.SetExposure(r.Config().Exposure + de)
	}
	if t.pressed(w, core.KeyF) {
		r.FrustumCulling = !r.FrustumCulling
		logger.Log.Info("frustum culling", zap.Bool("enabled", r.FrustumCulling))
	}
	if t.pressed(w, core.KeyP) {
		fields := []zap.Field{
			zap.Float32("x", cam.Position.X), zap.Float32("y", cam.Position.Y), zap.Float32("z", cam.Position.Z),
			zap.Float32("yaw", cam.Yaw), zap.Float32("pitch", cam.Pitch),
		}
		if o, dist := lookedAt(r.Scene, cam.Position, cam.Front()); o != nil {
			fields = append(fields, zap.String("looking_at", o.ID), zap.Float32("distance", dist))
		}
		logger.Log.Info("camera", fields...)
	}
}
