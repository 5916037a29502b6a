package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/vkloop/engine/core"
	"github.com/spaghettifunk/vkloop/engine/renderer/vulkan"
)

type MeshKind string

const (
	MeshCube  MeshKind = "cube"
	MeshPlane MeshKind = "plane"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32        `toml:"start_height"`
	LogLevel    core.LogLevel `toml:"log_level"`

	Renderer RendererConfig `toml:"renderer"`
	Shaders  ShaderConfig   `toml:"shaders"`
}

type RendererConfig struct {
	Validation bool `toml:"validation"`
	// mailbox, fifo, fifo_relaxed or immediate. FIFO is used when the
	// surface lacks the requested mode.
	PresentMode string     `toml:"present_mode"`
	ClearColor  [4]float32 `toml:"clear_color"`
	Mesh        MeshKind   `toml:"mesh"`
}

type ShaderConfig struct {
	// Directory holding shader.vert.spv and shader.frag.spv.
	Directory string `toml:"directory"`
	HotReload bool   `toml:"hot_reload"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:        "vkloop",
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  800,
		StartHeight: 600,
		LogLevel:    core.LogLevelInfo,
		Renderer: RendererConfig{
			PresentMode: "mailbox",
			ClearColor:  [4]float32{0, 0, 0, 1},
			Mesh:        MeshCube,
		},
		Shaders: ShaderConfig{
			Directory: "shaders",
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults, unknown keys are an error.
func LoadConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config file %s not found, using defaults", path)
		return config, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.StartWidth == 0 || c.StartHeight == 0 {
		return fmt.Errorf("window size must be non-zero, got %dx%d", c.StartWidth, c.StartHeight)
	}
	if _, err := vulkan.ParsePresentMode(c.Renderer.PresentMode); err != nil {
		return err
	}
	switch c.Renderer.Mesh {
	case MeshCube, MeshPlane:
	default:
		return fmt.Errorf("unknown mesh %q", c.Renderer.Mesh)
	}
	if c.Shaders.Directory == "" {
		return errors.New("shader directory must be set")
	}
	return nil
}
