package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "pymol", cfg.Renderer.Backend)
	assert.Equal(t, "pymol", cfg.Renderer.PyMOL)
	assert.Equal(t, "vmd", cfg.Renderer.VMD)
	assert.Equal(t, "ffmpeg", cfg.Encoder.FFmpeg)
	assert.Equal(t, "30", cfg.Encoder.FrameRate)
	assert.Equal(t, 4, cfg.Encoder.Threads)
	assert.Equal(t, 14, cfg.Encoder.Pad())
	assert.Equal(t, "6000k", cfg.Encoder.Bitrate)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[renderer]
backend = "vmd"
vmd = "/opt/vmd/bin/vmd"
timeout = "10m"
max_parallel = 3

[encoder]
threads = 8
pad_frames = 0

[history]
disabled = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "vmd", cfg.Renderer.Backend)
	assert.Equal(t, "/opt/vmd/bin/vmd", cfg.RendererBinary("vmd"))
	assert.Equal(t, "pymol", cfg.RendererBinary("pymol"))
	assert.Equal(t, 10*time.Minute, cfg.Renderer.Timeout)
	assert.Equal(t, 3, cfg.Renderer.MaxParallel)
	assert.Equal(t, 8, cfg.Encoder.Threads)
	assert.Equal(t, 0, cfg.Encoder.Pad(), "explicit zero must survive defaults")
	assert.True(t, cfg.History.Disabled)
	// untouched keys keep defaults
	assert.Equal(t, "ffprobe", cfg.Encoder.FFprobe)
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("PDBMOVIE_TEST_PYMOL", "/usr/local/bin/pymol")
	path := writeConfig(t, `
[renderer]
pymol = "${PDBMOVIE_TEST_PYMOL}"
vmd = "${PDBMOVIE_TEST_UNSET_VMD:-/usr/bin/vmd}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/pymol", cfg.Renderer.PyMOL)
	assert.Equal(t, "/usr/bin/vmd", cfg.Renderer.VMD)
}

func TestLoad_MissingEnvVar(t *testing.T) {
	path := writeConfig(t, `
[encoder]
ffmpeg = "${PDBMOVIE_TEST_DEFINITELY_UNSET}"
`)

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"PDBMOVIE_TEST_DEFINITELY_UNSET"}, cfgErr.Missing)
	assert.Equal(t, path, cfgErr.Path)
}

func TestLoad_ValidationErrors(t *testing.T) {
	path := writeConfig(t, `
[renderer]
backend = "pymoll"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer.backend")
	assert.Contains(t, err.Error(), `did you mean "pymol"`)
}

func TestLoad_BadTOML(t *testing.T) {
	path := writeConfig(t, "[renderer\nbackend = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
