// Package config loads the YAML pipeline description used by the xstage
// command.
//
// Configuration comes from a single file named on the command line. There
// is no discovery and no environment override; the only expansion is
// ${VAR} and ${VAR:-default} in path fields.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Stage kinds understood by the pipeline registry.
const (
	KindBlur        = "blur"
	KindColorMatrix = "colormatrix"
	KindScale       = "scale"
	KindGain        = "gain"
	KindTemporal    = "temporal"
	KindDigest      = "digest"
)

// Kinds lists every stage kind.
var Kinds = []string{KindBlur, KindColorMatrix, KindScale, KindGain, KindTemporal, KindDigest}

// Payload compressions of a frame dump.
var Compressions = []string{"none", "lz4", "zstd"}

// Config is the pipeline description.
type Config struct {
	// Input describes the raw frame source.
	Input InputConfig `yaml:"input"`

	// Compute configures the shared compute context.
	Compute ComputeConfig `yaml:"compute"`

	// Output configures the frame dump.
	Output OutputConfig `yaml:"output"`

	// Stages is the chain, in processing order.
	// Default: a single temporal stage.
	Stages []StageConfig `yaml:"stages"`
}

// InputConfig describes the raw frame file.
type InputConfig struct {
	// Path is the raw frame file. Frames are stored back to back, tightly
	// packed.
	Path string `yaml:"path"`

	// Pose is an optional pose log with one record per frame.
	Pose string `yaml:"pose"`

	// Width and Height of every frame.
	// Default: 1920x1080
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Format is the pixel format name (gray8, rgba8, bgra8, nv12).
	// Default: rgba8
	Format string `yaml:"format"`

	// PoolSize is the number of input buffers in flight.
	// Default: 36
	PoolSize int `yaml:"pool_size"`

	// Loop repeats the input file this many times.
	// Default: 1
	Loop int `yaml:"loop"`
}

// ComputeConfig configures the compute context.
type ComputeConfig struct {
	// Workers is the number of queue workers. More than one loses
	// completion order.
	// Default: 1
	Workers int `yaml:"workers"`
}

// OutputConfig configures the frame dump.
type OutputConfig struct {
	// Path of the dump file.
	Path string `yaml:"path"`

	// Save enables writing the dump.
	// Default: true
	Save bool `yaml:"save"`

	// Compression of frame payloads: none, lz4 or zstd.
	// Default: lz4
	Compression string `yaml:"compression"`
}

// StageConfig configures one stage. Which fields apply depends on Kind.
type StageConfig struct {
	// Kind selects the stage implementation.
	Kind string `yaml:"kind"`

	// Name labels the stage in logs. Default: the kind.
	Name string `yaml:"name,omitempty"`

	// Capacity is the private pool size. 0 keeps the stage default.
	Capacity int `yaml:"capacity,omitempty"`

	// ConfigureAttempts makes configuration failure sticky after this many
	// attempts. 0 retries forever.
	ConfigureAttempts int `yaml:"configure_attempts,omitempty"`

	// RadiusX and RadiusY are the blur radii in pixels. RadiusY defaults
	// to RadiusX.
	RadiusX float64 `yaml:"radius_x,omitempty"`
	RadiusY float64 `yaml:"radius_y,omitempty"`

	// Radius and Stdev shape the temporal window, in frames.
	Radius int     `yaml:"radius,omitempty"`
	Stdev  float64 `yaml:"stdev,omitempty"`

	// Width, Height and Interpolation configure scaling.
	Width         int    `yaml:"width,omitempty"`
	Height        int    `yaml:"height,omitempty"`
	Interpolation string `yaml:"interpolation,omitempty"`

	// Preset and Amount select a color matrix preset. A comma separated
	// list composes presets in order, all with the same Amount.
	Preset string  `yaml:"preset,omitempty"`
	Amount float32 `yaml:"amount,omitempty"`

	// Gain is the gain kernel factor.
	Gain float32 `yaml:"gain,omitempty"`

	// Key is the hex encoded 32-byte digest key. Empty means unkeyed.
	Key string `yaml:"key,omitempty"`
}

// Label returns the configured name, or the kind.
func (s StageConfig) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// Default returns the default configuration. LoadFile starts from it.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Width:    1920,
			Height:   1080,
			Format:   "rgba8",
			PoolSize: 36,
			Loop:     1,
		},
		Compute: ComputeConfig{
			Workers: 1,
		},
		Output: OutputConfig{
			Save:        true,
			Compression: "lz4",
		},
	}
}

// DefaultStages is the chain used when the file names none.
func DefaultStages() []StageConfig {
	return []StageConfig{{Kind: KindTemporal, Radius: 2, Stdev: 1}}
}

// LoadFile loads configuration from path on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = DefaultStages()
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in paths.
func (c *Config) expandVariables() {
	c.Input.Path = expandVars(c.Input.Path)
	c.Input.Pose = expandVars(c.Input.Pose)
	c.Output.Path = expandVars(c.Output.Path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var interpolations = []string{"nearest", "approx-bilinear", "bilinear", "catmull-rom"}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if c.Input.Width <= 0 || c.Input.Height <= 0 {
		errs = append(errs, fmt.Errorf("input: size %dx%d must be positive", c.Input.Width, c.Input.Height))
	}
	if c.Input.Format == "" {
		errs = append(errs, errors.New("input.format is required"))
	}
	if c.Input.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("input.pool_size %d must be positive", c.Input.PoolSize))
	}
	if c.Input.Loop < 1 {
		errs = append(errs, fmt.Errorf("input.loop %d must be at least 1", c.Input.Loop))
	}
	if c.Compute.Workers < 0 {
		errs = append(errs, fmt.Errorf("compute.workers %d must not be negative", c.Compute.Workers))
	}
	if !slices.Contains(Compressions, c.Output.Compression) {
		errs = append(errs, fmt.Errorf("output.compression must be one of: %v", Compressions))
	}
	if c.Output.Save && c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required when output.save is set"))
	}
	if len(c.Stages) == 0 {
		errs = append(errs, errors.New("stages: at least one stage is required"))
	}
	for i, s := range c.Stages {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stages[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the fields Kind uses.
func (s StageConfig) Validate() error {
	var errs []error
	if s.Capacity < 0 {
		errs = append(errs, fmt.Errorf("capacity %d must not be negative", s.Capacity))
	}
	switch s.Kind {
	case KindBlur:
		if s.RadiusX < 0 || s.RadiusY < 0 {
			errs = append(errs, errors.New("blur radii must not be negative"))
		}
	case KindColorMatrix:
		if s.Preset == "" {
			errs = append(errs, errors.New("colormatrix needs a preset"))
		}
	case KindScale:
		if s.Width <= 0 || s.Height <= 0 {
			errs = append(errs, fmt.Errorf("scale size %dx%d must be positive", s.Width, s.Height))
		}
		if s.Interpolation != "" && !slices.Contains(interpolations, s.Interpolation) {
			errs = append(errs, fmt.Errorf("interpolation must be one of: %v", interpolations))
		}
	case KindGain:
		if s.Gain < 0 {
			errs = append(errs, fmt.Errorf("gain %v must not be negative", s.Gain))
		}
	case KindTemporal:
		if s.Radius < 0 {
			errs = append(errs, fmt.Errorf("radius %d must not be negative", s.Radius))
		}
	case KindDigest:
		if s.Key != "" {
			if key, err := hex.DecodeString(s.Key); err != nil || len(key) != 32 {
				errs = append(errs, errors.New("digest key must be 64 hex digits"))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q, want one of: %v", s.Kind, Kinds))
	}
	return errors.Join(errs...)
}
