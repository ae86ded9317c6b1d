// Package config holds the renderer's recognized options and every tuned
// constant of the pipeline as named, defaulted fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

// PipelineType selects the lighting architecture at construction time.
type PipelineType string

const (
	PipelineForward  PipelineType = "forward"
	PipelineDeferred PipelineType = "deferred"
)

// Config is the full renderer configuration.
type Config struct {
	PipelineType  PipelineType `yaml:"pipeline_type"`
	MultiSample   bool         `yaml:"multi_sample"`
	NbMultiSample int          `yaml:"nb_multi_sample"`
	Bloom         bool         `yaml:"bloom"`
	BlurPassCount int          `yaml:"blur_pass_count"`
	Exposure      float32      `yaml:"exposure"`

	Gamma                    float32 `yaml:"gamma"`
	BlurOffsetFactor         float32 `yaml:"blur_offset_factor"`
	BloomDownsample          float32 `yaml:"bloom_downsample"`
	LightIntensityMultiplier float32 `yaml:"light_intensity_multiplier"`

	// Debug turns probe misuse into a returned error instead of a logged fallback.
	Debug bool `yaml:"debug"`
	// Environment names the layout environment used for the global probe;
	// empty keeps the layout's own choice.
	Environment string `yaml:"environment"`

	IBL    IBL    `yaml:"ibl"`
	Shadow Shadow `yaml:"shadow"`
	Lamp   Lamp   `yaml:"lamp"`
	Window Window `yaml:"window"`
	Log    Log    `yaml:"log"`
}

// IBL sizes and sample counts used by the probe baker.
type IBL struct {
	EnvironmentSize       int     `yaml:"environment_size"`
	IrradianceSize        int     `yaml:"irradiance_size"`
	PrefilterSize         int     `yaml:"prefilter_size"`
	PrefilterMips         int     `yaml:"prefilter_mips"`
	BRDFSize              int     `yaml:"brdf_size"`
	IrradianceSampleDelta float32 `yaml:"irradiance_sample_delta"`
	PrefilterSamples      int     `yaml:"prefilter_samples"`
	BRDFSamples           int     `yaml:"brdf_samples"`
	CaptureNear           float32 `yaml:"capture_near"`
	CaptureFar            float32 `yaml:"capture_far"`
}

type Shadow struct {
	Size int     `yaml:"size"`
	Near float32 `yaml:"near"`
	Far  float32 `yaml:"far"`
	Bias float32 `yaml:"bias"`
}

// Lamp controls the emissive spheres drawn at each light position.
type Lamp struct {
	Visible bool    `yaml:"visible"`
	Scale   float32 `yaml:"scale"`
}

type Window struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Title      string `yaml:"title"`
	VSync      bool   `yaml:"vsync"`
	Resizable  bool   `yaml:"resizable"`
	Fullscreen bool   `yaml:"fullscreen"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration the walkthrough ships with.
func Default() Config {
	return Config{
		PipelineType:  PipelineForward,
		MultiSample:   true,
		NbMultiSample: 2,
		Bloom:         true,
		BlurPassCount: 6,
		Exposure:      1.0,

		Gamma:                    2.2,
		BlurOffsetFactor:         1.2,
		BloomDownsample:          0.5,
		LightIntensityMultiplier: 100,

		IBL: IBL{
			EnvironmentSize:       512,
			IrradianceSize:        32,
			PrefilterSize:         128,
			PrefilterMips:         5,
			BRDFSize:              512,
			IrradianceSampleDelta: 0.025,
			PrefilterSamples:      1024,
			BRDFSamples:           1024,
			CaptureNear:           0.1,
			CaptureFar:            100,
		},
		Shadow: Shadow{
			Size: 1024,
			Near: 0.1,
			Far:  25,
			Bias: 0.05,
		},
		Lamp: Lamp{
			Visible: true,
			Scale:   0.06,
		},
		Window: Window{
			Width:     1280,
			Height:    720,
			Title:     "Walkthrough",
			VSync:     true,
			Resizable: true,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML file on top of Default, so keys absent from the file
// keep their default values. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory if needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	var out Config
	if err := copier.CopyWithOption(&out, &c, copier.Option{DeepCopy: true}); err != nil {
		return c
	}
	return out
}

// Samples is the effective sample count of screen targets: 1 unless MSAA is on.
func (c Config) Samples() int {
	if !c.MultiSample || c.NbMultiSample < 2 {
		return 1
	}
	return c.NbMultiSample
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.PipelineType == PipelineForward || c.PipelineType == PipelineDeferred,
		"pipeline_type %q: want forward or deferred", c.PipelineType)
	check(!c.MultiSample || c.NbMultiSample >= 1, "nb_multi_sample %d: must be >= 1", c.NbMultiSample)
	check(c.BlurPassCount >= 0, "blur_pass_count %d: must be >= 0", c.BlurPassCount)
	check(c.Exposure > 0, "exposure %v: must be > 0", c.Exposure)
	check(c.Gamma > 0, "gamma %v: must be > 0", c.Gamma)
	check(c.BloomDownsample > 0 && c.BloomDownsample <= 1, "bloom_downsample %v: must be in (0, 1]", c.BloomDownsample)
	check(c.LightIntensityMultiplier >= 0, "light_intensity_multiplier %v: must be >= 0", c.LightIntensityMultiplier)

	check(c.IBL.EnvironmentSize > 0, "ibl.environment_size %d: must be > 0", c.IBL.EnvironmentSize)
	check(c.IBL.IrradianceSize > 0, "ibl.irradiance_size %d: must be > 0", c.IBL.IrradianceSize)
	check(c.IBL.BRDFSize > 0, "ibl.brdf_size %d: must be > 0", c.IBL.BRDFSize)
	check(c.IBL.PrefilterMips >= 1, "ibl.prefilter_mips %d: must be >= 1", c.IBL.PrefilterMips)
	check(c.IBL.PrefilterMips < 1 || c.IBL.PrefilterSize>>(c.IBL.PrefilterMips-1) >= 1,
		"ibl.prefilter_size %d too small for %d mips", c.IBL.PrefilterSize, c.IBL.PrefilterMips)
	check(c.IBL.IrradianceSampleDelta > 0, "ibl.irradiance_sample_delta %v: must be > 0", c.IBL.IrradianceSampleDelta)
	check(c.IBL.PrefilterSamples > 0, "ibl.prefilter_samples %d: must be > 0", c.IBL.PrefilterSamples)
	check(c.IBL.BRDFSamples > 0, "ibl.brdf_samples %d: must be > 0", c.IBL.BRDFSamples)
	check(c.IBL.CaptureNear > 0 && c.IBL.CaptureNear < c.IBL.CaptureFar,
		"ibl capture planes %v..%v: need 0 < near < far", c.IBL.CaptureNear, c.IBL.CaptureFar)

	check(c.Shadow.Size > 0, "shadow.size %d: must be > 0", c.Shadow.Size)
	check(c.Shadow.Near > 0 && c.Shadow.Near < c.Shadow.Far,
		"shadow planes %v..%v: need 0 < near < far", c.Shadow.Near, c.Shadow.Far)
	check(c.Shadow.Bias >= 0, "shadow.bias %v: must be >= 0", c.Shadow.Bias)
	check(c.Lamp.Scale > 0, "lamp.scale %v: must be > 0", c.Lamp.Scale)

	return errors.Join(errs...)
}
