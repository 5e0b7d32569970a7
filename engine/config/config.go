package config

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

type Window struct {
	Title  string `toml:"title"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

// Renderer carries the capacity budget threaded through initialization.
// No compile-time limits: tests run with small tables, the sample with
// the defaults below.
type Renderer struct {
	FramesInFlight uint32 `toml:"frames_in_flight"`
	MaxObjects     uint32 `toml:"max_objects"`
	MaxMeshes      uint32 `toml:"max_meshes"`
	MaxMaterials   uint32 `toml:"max_materials"`
	StagingBytes   uint64 `toml:"staging_bytes"`
	ShaderDir      string `toml:"shader_dir"`
	AssetDir       string `toml:"asset_dir"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
}

type Config struct {
	LogLevel string   `toml:"log_level"`
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Window: Window{
			Title:  "Ember",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Renderer: Renderer{
			FramesInFlight: 2,
			MaxObjects:     1024,
			MaxMeshes:      256,
			MaxMaterials:   64,
			StagingBytes:   64 * 1024,
			ShaderDir:      "shaders/bin",
			AssetDir:       "assets",
			VertexShader:   "object.vert.spv",
			FragmentShader: "object.frag.spv",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error,
// the defaults apply as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Renderer.FramesInFlight == 0 {
		return fmt.Errorf("frames_in_flight must be at least 1")
	}
	if c.Renderer.MaxObjects == 0 {
		return fmt.Errorf("max_objects must be at least 1")
	}
	if c.Renderer.StagingBytes == 0 {
		return fmt.Errorf("staging_bytes must be non-zero")
	}
	return nil
}
