package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default: expected valid, got %v", err)
	}
	if cfg.BlurPassCount != 6 {
		t.Errorf("BlurPassCount: expected 6, got %d", cfg.BlurPassCount)
	}
	if cfg.LightIntensityMultiplier != 100 {
		t.Errorf("LightIntensityMultiplier: expected 100, got %v", cfg.LightIntensityMultiplier)
	}
}

func TestSamples(t *testing.T) {
	cases := []struct {
		on   bool
		n    int
		want int
	}{
		{false, 4, 1},
		{true, 1, 1},
		{true, 2, 2},
		{true, 8, 8},
	}
	for _, c := range cases {
		cfg := Default()
		cfg.MultiSample = c.on
		cfg.NbMultiSample = c.n
		if got := cfg.Samples(); got != c.want {
			t.Errorf("Samples(%v, %d): expected %d, got %d", c.on, c.n, c.want, got)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"pipeline", func(c *Config) { c.PipelineType = "raytraced" }, "pipeline_type"},
		{"exposure", func(c *Config) { c.Exposure = 0 }, "exposure"},
		{"blur", func(c *Config) { c.BlurPassCount = -1 }, "blur_pass_count"},
		{"downsample", func(c *Config) { c.BloomDownsample = 2 }, "bloom_downsample"},
		{"mips", func(c *Config) { c.IBL.PrefilterSize = 8; c.IBL.PrefilterMips = 5 }, "prefilter_size"},
		{"shadow planes", func(c *Config) { c.Shadow.Near = 30 }, "shadow planes"},
		{"bias", func(c *Config) { c.Shadow.Bias = -1 }, "shadow.bias"},
	}
	for _, c := range cases {
		cfg := Default()
		c.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		if !strings.Contains(err.Error(), c.field) {
			t.Errorf("%s: expected error mentioning %q, got %v", c.name, c.field, err)
		}
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.yaml")
	data := "pipeline_type: deferred\nbloom: false\nshadow:\n  size: 512\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PipelineType != PipelineDeferred {
		t.Errorf("PipelineType: expected deferred, got %s", cfg.PipelineType)
	}
	if cfg.Bloom {
		t.Errorf("Bloom: expected false")
	}
	if cfg.Shadow.Size != 512 {
		t.Errorf("Shadow.Size: expected 512, got %d", cfg.Shadow.Size)
	}
	if cfg.Shadow.Far != 25 {
		t.Errorf("Shadow.Far: expected default 25, got %v", cfg.Shadow.Far)
	}
	if cfg.IBL.IrradianceSize != 32 {
		t.Errorf("IBL.IrradianceSize: expected default 32, got %d", cfg.IBL.IrradianceSize)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("exposure: -3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("Load: expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load missing: expected error")
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "renderer.yaml")
	cfg := Default()
	cfg.Exposure = 2.5
	cfg.NbMultiSample = 4
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip: expected %+v, got %+v", cfg, got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Shadow.Bias = 0.5
	clone.Window.Title = "other"
	if cfg.Shadow.Bias != 0.05 {
		t.Errorf("original Shadow.Bias: expected 0.05, got %v", cfg.Shadow.Bias)
	}
	if cfg.Window.Title != "Walkthrough" {
		t.Errorf("original Window.Title: expected Walkthrough, got %s", cfg.Window.Title)
	}
	if clone.IBL != cfg.IBL {
		t.Errorf("clone IBL: expected %+v, got %+v", cfg.IBL, clone.IBL)
	}
}
