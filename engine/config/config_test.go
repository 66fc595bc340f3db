package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/volcano/engine/core"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Renderer.Width != 1280 || cfg.Renderer.Height != 720 {
		t.Fatalf("unexpected default resolution %dx%d", cfg.Renderer.Width, cfg.Renderer.Height)
	}
	if cfg.Renderer.MaxSync != 4 {
		t.Fatalf("unexpected default max_sync %d", cfg.Renderer.MaxSync)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg := Default()
	data := []byte(`
[renderer]
max_sync = 3
rotation_step = 0.02
clear_color = [0.0, 0.0, 0.0, 1.0]
slot_fences = true

[assets]
meshes = ["meshes/a.toml", "meshes/b.toml"]
`)
	if err := Decode(data, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Renderer.MaxSync != 3 || cfg.Renderer.RotationStep != 0.02 || !cfg.Renderer.SlotFences {
		t.Fatalf("renderer overrides not applied: %+v", cfg.Renderer)
	}
	if cfg.Renderer.ClearColor != [4]float32{0, 0, 0, 1} {
		t.Fatalf("unexpected clear color %v", cfg.Renderer.ClearColor)
	}
	if cfg.Renderer.Width != DefaultWidth {
		t.Fatalf("width should keep its default, got %d", cfg.Renderer.Width)
	}
	if len(cfg.Assets.Meshes) != 2 || cfg.Assets.Meshes[1] != "meshes/b.toml" {
		t.Fatalf("unexpected meshes %v", cfg.Assets.Meshes)
	}
	if cfg.Assets.VertexShader == "" {
		t.Fatal("shader path default lost")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Renderer.Width = 0 }},
		{"zero max sync", func(c *Config) { c.Renderer.MaxSync = 0 }},
		{"max sync too large", func(c *Config) { c.Renderer.MaxSync = 33 }},
		{"missing shader", func(c *Config) { c.Assets.FragmentShader = "" }},
		{"zero sync images", func(c *Config) { c.Frontend.SyncImages = 0 }},
		{"zero scale", func(c *Config) { c.Renderer.Scale = 0 }},
		{"negative scale", func(c *Config) { c.Renderer.Scale = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, core.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDecodeSyntaxError(t *testing.T) {
	err := Decode([]byte("[renderer\nwidth = 1"), Default())
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil || cfg.Renderer.MaxSync != DefaultMaxSync {
		t.Fatalf("empty path should return defaults, got %v %v", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "volcano.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "volcano.toml"))
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	if !cfg.Frontend.Window || cfg.Frontend.SyncImages != 3 || cfg.Frontend.Validation {
		t.Fatalf("unexpected frontend section %+v", cfg.Frontend)
	}
	if len(cfg.Assets.Meshes) != 1 || !cfg.Assets.Watch {
		t.Fatalf("unexpected assets section %+v", cfg.Assets)
	}
}
