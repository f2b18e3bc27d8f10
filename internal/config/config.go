// Package config handles TOML tool configuration with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	LogLevel string         `toml:"log_level"`
	Renderer RendererConfig `toml:"renderer"`
	Encoder  EncoderConfig  `toml:"encoder"`
	History  HistoryConfig  `toml:"history"`
}

type RendererConfig struct {
	Backend     string        `toml:"backend"`
	PyMOL       string        `toml:"pymol"`
	VMD         string        `toml:"vmd"`
	Timeout     time.Duration `toml:"timeout"`
	MaxParallel int           `toml:"max_parallel"`
}

type EncoderConfig struct {
	FFmpeg    string        `toml:"ffmpeg"`
	FFprobe   string        `toml:"ffprobe"`
	FrameRate string        `toml:"frame_rate"`
	Threads   int           `toml:"threads"`
	PadFrames *int          `toml:"pad_frames"`
	Bitrate   string        `toml:"bitrate"`
	Timeout   time.Duration `toml:"timeout"`
}

type HistoryConfig struct {
	Disabled bool   `toml:"disabled"`
	Path     string `toml:"path"` // empty = <folder>/.pdbmovie/history.db
}

const defaultPadFrames = 14

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	cfgErr := &ConfigError{Path: path, Missing: missing, Errors: cfg.Validate()}
	if cfgErr.HasErrors() {
		return nil, cfgErr
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Renderer.Backend == "" {
		c.Renderer.Backend = "pymol"
	}
	if c.Renderer.PyMOL == "" {
		c.Renderer.PyMOL = "pymol"
	}
	if c.Renderer.VMD == "" {
		c.Renderer.VMD = "vmd"
	}
	if c.Encoder.FFmpeg == "" {
		c.Encoder.FFmpeg = "ffmpeg"
	}
	if c.Encoder.FFprobe == "" {
		c.Encoder.FFprobe = "ffprobe"
	}
	if c.Encoder.FrameRate == "" {
		c.Encoder.FrameRate = "30"
	}
	if c.Encoder.Threads == 0 {
		c.Encoder.Threads = 4
	}
	if c.Encoder.PadFrames == nil {
		n := defaultPadFrames
		c.Encoder.PadFrames = &n
	}
	if c.Encoder.Bitrate == "" {
		c.Encoder.Bitrate = "6000k"
	}
}

// Pad returns the configured number of padding frames.
func (e EncoderConfig) Pad() int {
	if e.PadFrames == nil {
		return defaultPadFrames
	}
	return *e.PadFrames
}

// RendererBinary returns the configured executable for a backend name.
func (c *Config) RendererBinary(backend string) string {
	if strings.EqualFold(backend, "vmd") {
		return c.Renderer.VMD
	}
	return c.Renderer.PyMOL
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR} with environment variable values and
// reports variables that are unset and have no default.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if value, ok := os.LookupEnv(name); ok && (value != "" || !hasDefault) {
			return value
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return match
	})
	return result, missing
}
