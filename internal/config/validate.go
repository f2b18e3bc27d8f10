// internal/config/validate.go
package config

import (
	"fmt"
	"strconv"

	"github.com/vmunix/pdbmovie/internal/renderer"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level: must be one of debug, info, warn, error; got %q", c.LogLevel))
	}

	// Renderer validation
	if c.Renderer.Backend != "" {
		if _, err := renderer.Lookup(c.Renderer.Backend); err != nil {
			errs = append(errs, fmt.Sprintf("renderer.backend: %v", err))
		}
	}
	if c.Renderer.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("renderer.timeout: must not be negative, got %s", c.Renderer.Timeout))
	}
	if c.Renderer.MaxParallel < 0 {
		errs = append(errs, fmt.Sprintf("renderer.max_parallel: must not be negative, got %d", c.Renderer.MaxParallel))
	}

	// Encoder validation
	if c.Encoder.FrameRate != "" {
		if rate, err := strconv.ParseFloat(c.Encoder.FrameRate, 64); err != nil || rate <= 0 {
			errs = append(errs, fmt.Sprintf("encoder.frame_rate: must be a positive number, got %q", c.Encoder.FrameRate))
		}
	}
	if c.Encoder.Threads < 0 {
		errs = append(errs, fmt.Sprintf("encoder.threads: must not be negative, got %d", c.Encoder.Threads))
	}
	if c.Encoder.PadFrames != nil && *c.Encoder.PadFrames < 0 {
		errs = append(errs, fmt.Sprintf("encoder.pad_frames: must not be negative, got %d", *c.Encoder.PadFrames))
	}
	if c.Encoder.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("encoder.timeout: must not be negative, got %s", c.Encoder.Timeout))
	}

	return errs
}
