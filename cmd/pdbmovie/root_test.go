package main

import (
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "pdbmovie dev\n", out)

	code, out, _ = runCLI(t, "", "--version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "pdbmovie dev\n", out)
}

func TestRender_RequiresFolder(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "accepts 1 arg")
}

func TestRender_MissingFolder(t *testing.T) {
	code, _, stderr := runCLI(t, "", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "folder")
}

func TestRender_BadModes(t *testing.T) {
	code, _, stderr := runCLI(t, "", t.TempDir(), "--modes", "7,x")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "x")
}

func TestRender_UnknownFlag(t *testing.T) {
	code, _, _ := runCLI(t, "", t.TempDir(), "--frobnicate")
	assert.Equal(t, exitConfig, code)
}

func TestRender_InvalidConfig(t *testing.T) {
	code, _, stderr := runCLI(t, "[renderer]\nbackend = \"vdm\"\n", t.TempDir())
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, `did you mean "vmd"`)
}

func TestRender_ToolNotFound(t *testing.T) {
	stubLookPath(t, func(name string) (string, error) {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	})

	code, out, stderr := runCLI(t, "", t.TempDir(), "--modes", "7")
	assert.Equal(t, exitConfig, code)
	assert.Empty(t, out, "nothing runs when a tool is missing")
	assert.Contains(t, stderr, "executable file not found")
}

func TestRender_FailingRenderer(t *testing.T) {
	falseBin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	stubLookPath(t, func(name string) (string, error) { return falseBin, nil })
	folder := t.TempDir()

	code, out, stderr := runCLI(t, "log_level = \"error\"\n", folder, "--modes", "7", "--ecuts", "1.0", "--combi")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, out, filepath.Join(folder, "Run-1.0-mode07-pos.mpg")+"\n")
	assert.Contains(t, out, "rendering finished.\n")
	assert.Contains(t, out, "FAILED  render")
	assert.Regexp(t, `Run-1\.0-mode07-combi\.mpg\s+skipped`, out)
	assert.Contains(t, stderr, "2 failures across 2 jobs")

	// the run was recorded
	code, out, _ = runCLI(t, "", "history", folder)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Run 1 ")
	assert.Contains(t, out, "2 jobs, 2 failed")
	assert.Equal(t, 2, strings.Count(out, "failed render: "))
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := configError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom", err.Error())

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, exitConfig, ee.code)
}
