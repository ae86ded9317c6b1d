// Command probedump bakes the probes of a walkthrough layout on the
// software device and writes them, plus one frame from the layout's
// camera, as WebP images.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/internal/software"
	"walkthrough-renderer/renderer"
	"walkthrough-renderer/scene"
)

type options struct {
	layout string
	config string
	out    string
	cell   int
	width  int
	height int
	full   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.layout, "layout", "walkthrough.yaml", "walkthrough layout file")
	flag.StringVar(&opts.config, "config", "", "YAML configuration file; defaults when empty")
	flag.StringVar(&opts.out, "out", "probes", "output directory")
	flag.IntVar(&opts.cell, "cell", 128, "edge of one face in the cross atlas")
	flag.IntVar(&opts.width, "width", 320, "frame width")
	flag.IntVar(&opts.height, "height", 180, "frame height")
	flag.BoolVar(&opts.full, "full", false, "bake at the configured probe sizes instead of preview sizes")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "probedump: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// previewIBL shrinks the bake so the CPU device finishes in seconds.
func previewIBL(cfg *config.Config) {
	cfg.IBL.EnvironmentSize = min(cfg.IBL.EnvironmentSize, 64)
	cfg.IBL.IrradianceSize = min(cfg.IBL.IrradianceSize, 16)
	cfg.IBL.PrefilterSize = min(cfg.IBL.PrefilterSize, 32)
	cfg.IBL.PrefilterMips = min(cfg.IBL.PrefilterMips, 3)
	cfg.IBL.BRDFSize = min(cfg.IBL.BRDFSize, 64)
	cfg.IBL.PrefilterSamples = min(cfg.IBL.PrefilterSamples, 64)
	cfg.IBL.BRDFSamples = min(cfg.IBL.BRDFSamples, 64)
	cfg.IBL.IrradianceSampleDelta = max(cfg.IBL.IrradianceSampleDelta, 0.1)
	cfg.Shadow.Size = min(cfg.Shadow.Size, 128)
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return cfg, err
		}
	}
	if !opts.full {
		previewIBL(&cfg)
	}
	return cfg, cfg.Validate()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if opts.cell <= 0 {
		return fmt.Errorf("cell %d: must be > 0", opts.cell)
	}
	layout, err := scene.LoadLayout(opts.layout)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.out, 0755); err != nil {
		return err
	}

	dev := software.New()
	defer dev.Destroy()
	cam := layout.Camera
	cam.UpdateAspectRatio(float32(opts.width), float32(opts.height))
	r, err := renderer.New(dev, cfg, layout.Scene, opts.width, opts.height)
	if err != nil {
		return err
	}
	defer r.Destroy()

	start := time.Now()
	if err := r.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	logger.Log.Info("probes baked", zap.Duration("elapsed", time.Since(start)))

	if err := dumpProbe(r, opts, cfg, "global", r.GlobalProbe()); err != nil {
		return err
	}
	for _, o := range layout.Scene.Objects {
		p, ok := r.Probe(o.ID)
		if !ok {
			continue
		}
		if err := dumpProbe(r, opts, cfg, o.ID, p); err != nil {
			return err
		}
	}
	return dumpFrame(r, opts, cam)
}

// dumpProbe writes the environment, irradiance and sharpest prefiltered
// level of p as cross atlases.
func dumpProbe(r *renderer.Renderer, opts options, cfg config.Config, name string, p scene.Probe) error {
	res := r.Resources()
	tm := exposureMapper(cfg.Exposure, cfg.Gamma)
	maps := []struct {
		kind string
		tex  core.Handle
	}{
		{"environment", p.Environment},
		{"irradiance", p.Irradiance},
		{"prefiltered", p.Prefiltered},
	}
	for _, m := range maps {
		if !m.tex.Valid() {
			continue
		}
		atlas, err := cubeAtlas(res, m.tex, 0, opts.cell, tm)
		if err != nil {
			return fmt.Errorf("probe %s %s: %w", name, m.kind, err)
		}
		path := filepath.Join(opts.out, fmt.Sprintf("%s_%s.webp", name, m.kind))
		if err := writeWebP(path, atlas); err != nil {
			return err
		}
		logger.Log.Info("wrote probe", zap.String("probe", name), zap.String("map", m.kind), zap.String("path", path))
	}
	return nil
}

// dumpFrame renders one frame from cam and writes the presented texture.
func dumpFrame(r *renderer.Renderer, opts options, cam *scene.Camera) error {
	result, err := r.RenderFrame(cam)
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	im, err := r.Resources().ReadTexture(result.Output, 0)
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	tm := toneMapper(displayMapper)
	if ft := r.Targets(); ft == nil || ft.Final == nil || result.Output != ft.Final.Color[0] {
		cfg := r.Config()
		tm = exposureMapper(cfg.Exposure, cfg.Gamma)
	}
	path := filepath.Join(opts.out, "frame.webp")
	if err := writeWebP(path, toNRGBA(im, tm)); err != nil {
		return err
	}
	logger.Log.Info("wrote frame", zap.String("path", path), zap.Strings("skipped", result.Skipped))
	return nil
}
