package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCLI executes the CLI against an isolated config and returns the exit
// code with captured output.
func runCLI(t *testing.T, configTOML string, args ...string) (int, string, string) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configTOML), 0644))

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append([]string{"--config", cfgPath}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func stubLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	orig := lookPath
	lookPath = fn
	t.Cleanup(func() { lookPath = orig })
}
