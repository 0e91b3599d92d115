// Package config handles baker configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-vat/internal/vat"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all baker settings.
type Config struct {
	Bake    BakeConfig    `yaml:"bake"`
	Source  SourceConfig  `yaml:"source"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// BakeConfig holds the frame range and timeline timing.
type BakeConfig struct {
	StartFrame int     `yaml:"start_frame"`
	EndFrame   int     `yaml:"end_frame"` // 0 bakes to the end of the source
	FPS        float64 `yaml:"fps"`  // Timeline frames per second
	Loop       bool    `yaml:"loop"` // Wrap time at the model's animation length
}

// SourceConfig selects the object to bake.
type SourceConfig struct {
	Model     string           `yaml:"model"`     // .rsm file, or archive path with grf_paths/data_dirs
	GRFPaths  []string         `yaml:"grf_paths"` // GRF archives, last wins
	DataDirs  []string         `yaml:"data_dirs"` // Loose data folders, searched before archives
	Map       string           `yaml:"map"`       // .rsw inside the archives
	Instance  string           `yaml:"instance"`  // Model instance name in the map
	OBJDir    string           `yaml:"obj_dir"`   // One OBJ file per frame
	Transform *TransformConfig `yaml:"transform,omitempty"`
}

// TransformConfig places a model or OBJ sequence in the world.
type TransformConfig struct {
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"` // Degrees
	Scale    [3]float32 `yaml:"scale"`
}

// OutputConfig holds export settings.
type OutputConfig struct {
	ExportPath    string  `yaml:"export_path"`
	GlobalScale   float32 `yaml:"global_scale"`
	Alpha         bool    `yaml:"alpha"`
	NormalsFormat string  `yaml:"normals_format"` // OPEN_EXR or TIFF
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			StartFrame: 1,
			EndFrame:   0,
			FPS:        30,
			Loop:       false,
		},
		Output: OutputConfig{
			ExportPath:    "",
			GlobalScale:   vat.DefaultGlobalScale,
			Alpha:         true,
			NormalsFormat: vat.FormatOpenEXR,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks settings that do not depend on the loaded model. The frame
// domain and export path are checked by vat.Request.Validate.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Logging.Level)
	}
	if c.Bake.EndFrame != 0 && c.Bake.EndFrame < c.Bake.StartFrame {
		return fmt.Errorf("%w: end frame %d is before start frame %d", ErrInvalid, c.Bake.EndFrame, c.Bake.StartFrame)
	}
	if c.Bake.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %g", ErrInvalid, c.Bake.FPS)
	}
	if vat.FormatExtension(c.Output.NormalsFormat) == "" {
		return fmt.Errorf("%w: normals format %q", ErrInvalid, c.Output.NormalsFormat)
	}

	s := c.Source
	kinds := 0
	if s.OBJDir != "" {
		kinds++
	}
	if s.Map != "" || s.Instance != "" {
		kinds++
		if s.Map == "" || s.Instance == "" {
			return fmt.Errorf("%w: map and instance must be set together", ErrInvalid)
		}
		if len(s.GRFPaths) == 0 && len(s.DataDirs) == 0 {
			return fmt.Errorf("%w: map source needs grf_paths or data_dirs", ErrInvalid)
		}
	}
	if s.Model != "" {
		kinds++
	}
	if kinds > 1 {
		return fmt.Errorf("%w: set only one of model, map/instance and obj_dir", ErrInvalid)
	}
	if s.Map != "" && s.Transform != nil {
		return fmt.Errorf("%w: transform does not apply to map instances", ErrInvalid)
	}
	return nil
}

// HasSource reports whether any source is configured.
func (c *Config) HasSource() bool {
	s := c.Source
	return s.Model != "" || s.Map != "" || s.Instance != "" || s.OBJDir != ""
}
