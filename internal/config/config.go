// Package config handles exporter configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/prcexport/pkg/prc"
)

// Config errors.
var (
	ErrInvalidFormat = errors.New("invalid output format")
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds all exporter settings.
type Config struct {
	Export  ExportConfig  `yaml:"export" toml:"export"`
	Source  SourceConfig  `yaml:"source" toml:"source"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ExportConfig holds tessellation settings.
type ExportConfig struct {
	CreaseAngle        float64 `yaml:"crease_angle" toml:"crease_angle"` // degrees, used when a mesh has no normals
	DropInvalidNormals bool    `yaml:"drop_invalid_normals" toml:"drop_invalid_normals"`
}

// SourceConfig holds scene source settings.
type SourceConfig struct {
	GRFPaths []string `yaml:"grf_paths" toml:"grf_paths"` // archives, highest priority first
	AnimTime float32  `yaml:"anim_time" toml:"anim_time"` // RSM keyframe time in ms
	Ground   bool     `yaml:"ground" toml:"ground"`       // include the ground mesh in map exports
}

// OutputConfig holds document settings.
type OutputConfig struct {
	Format string `yaml:"format" toml:"format"` // yaml or toml
	Path   string `yaml:"path" toml:"path"`     // empty or "-" for stdout
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			CreaseAngle:        prc.DefaultCreaseAngle,
			DropInvalidNormals: false,
		},
		Source: SourceConfig{
			GRFPaths: []string{"data.grf"},
			AnimTime: 0,
			Ground:   true,
		},
		Output: OutputConfig{
			Format: "yaml",
			Path:   "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "yaml", "yml", "toml":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}
	if c.Export.CreaseAngle < 0 || c.Export.CreaseAngle > 180 {
		return fmt.Errorf("%w: crease_angle %v outside [0, 180]", ErrInvalidConfig, c.Export.CreaseAngle)
	}
	if c.Source.AnimTime < 0 {
		return fmt.Errorf("%w: anim_time %v is negative", ErrInvalidConfig, c.Source.AnimTime)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Stdout reports whether the document goes to standard output.
func (o OutputConfig) Stdout() bool {
	return o.Path == "" || o.Path == "-"
}
