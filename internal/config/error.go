package config

import (
	"fmt"
	"strings"
)

// ConfigError lists every problem found while loading a config file, so a
// user can fix them in one pass.
type ConfigError struct {
	Path    string
	Missing []string // ${VAR} references with no value and no default
	Errors  []string // validation failures, "key: reason"
}

// HasErrors reports whether any problem was recorded.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing)+len(e.Errors) > 0
}

func (e *ConfigError) Error() string {
	if !e.HasErrors() {
		return ""
	}
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "config %s:", e.Path)
	} else {
		b.WriteString("config:")
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "\n  missing environment variables: %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Errors) > 0 {
		b.WriteString("\n  validation failed:")
		for _, msg := range e.Errors {
			b.WriteString("\n    - " + msg)
		}
	}
	return b.String()
}
