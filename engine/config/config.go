package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/volcano/engine/core"
)

const (
	DefaultWidth        uint32  = 1280
	DefaultHeight       uint32  = 720
	DefaultMaxSync      uint32  = 4
	DefaultRotationStep float32 = 0.01
	DefaultTilt         float32 = 0.5
	DefaultScale        float32 = 1

	// MaxSyncLimit is the width of the sync index mask.
	MaxSyncLimit uint32 = 32
)

type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
	Frontend FrontendConfig `toml:"frontend"`
}

type RendererConfig struct {
	Width        uint32     `toml:"width"`
	Height       uint32     `toml:"height"`
	MaxSync      uint32     `toml:"max_sync"`
	ClearColor   [4]float32 `toml:"clear_color"`
	RotationStep float32    `toml:"rotation_step"`
	Tilt         float32    `toml:"tilt"`
	SlotFences   bool       `toml:"slot_fences"`
	// Position and Scale place the spinning model in clip space.
	Position [3]float32 `toml:"position"`
	Scale    float32    `toml:"scale"`
}

type AssetsConfig struct {
	Dir            string   `toml:"dir"`
	VertexShader   string   `toml:"vertex_shader"`
	FragmentShader string   `toml:"fragment_shader"`
	Meshes         []string `toml:"meshes"`
	BuiltinCube    bool     `toml:"builtin_cube"`
	Watch          bool     `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type FrontendConfig struct {
	// Frames to run before exiting, zero runs until interrupted.
	Frames     uint64 `toml:"frames"`
	SyncImages uint32 `toml:"sync_images"`
	Window     bool   `toml:"window"`
	Capture    string `toml:"capture"`
	// Validation enables the Khronos validation layer and debug reports.
	Validation bool `toml:"validation"`
}

func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			Width:        DefaultWidth,
			Height:       DefaultHeight,
			MaxSync:      DefaultMaxSync,
			ClearColor:   [4]float32{0.8, 0.6, 0.2, 1.0},
			RotationStep: DefaultRotationStep,
			Tilt:         DefaultTilt,
			Scale:        DefaultScale,
		},
		Assets: AssetsConfig{
			Dir:            "assets",
			VertexShader:   "shaders/volcano.vert.spv",
			FragmentShader: "shaders/volcano.frag.spv",
			BuiltinCube:    true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Frontend: FrontendConfig{
			SyncImages: 3,
		},
	}
}

// Load reads a TOML file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Decode overlays data onto cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return errors.Mark(errors.Wrapf(err, "line %d column %d", row, col), core.ErrInvalidConfig)
		}
		return errors.Mark(err, core.ErrInvalidConfig)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	r := c.Renderer
	if r.Width == 0 || r.Height == 0 {
		return errors.Mark(errors.Newf("resolution %dx%d must be non-zero", r.Width, r.Height), core.ErrInvalidConfig)
	}
	if r.MaxSync == 0 || r.MaxSync > MaxSyncLimit {
		return errors.Mark(errors.Newf("max_sync %d out of range [1, %d]", r.MaxSync, MaxSyncLimit), core.ErrInvalidConfig)
	}
	if !(r.Scale > 0) {
		return errors.Mark(errors.Newf("scale %f must be positive", r.Scale), core.ErrInvalidConfig)
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		return errors.Mark(errors.New("both shader paths are required"), core.ErrInvalidConfig)
	}
	if s := c.Frontend.SyncImages; s == 0 || s > MaxSyncLimit {
		return errors.Mark(errors.Newf("sync_images %d out of range [1, %d]", s, MaxSyncLimit), core.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) String() string {
	b, err := toml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
