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
	path := filepath.Join(t.TempDir(), "configuration.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[Server]
Port = 9090
SessionTTLSeconds = 60

[Models]
Root = "/srv/models"

[ONNX]
LibraryPath = "/usr/lib/libonnxruntime.so"

[Log]
Level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, time.Minute, cfg.SessionTTL())
	assert.Equal(t, "/srv/models", cfg.Models.Root)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.ONNX.LibraryPath)
	assert.Equal(t, "float_input", cfg.ONNX.InputName)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "[Models]\nRoot = \"/from/file\"\n")
	t.Setenv("XRAY_MODEL_ROOT", "/from/env")
	t.Setenv("PORT", "7070")
	t.Setenv("XRAY_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Models.Root)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_DefaultPathMissing(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Models.Root, cfg.Models.Root)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})
	t.Run("bad toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[Server\nPort = "))
		assert.Error(t, err)
	})
	t.Run("bad port env", func(t *testing.T) {
		t.Setenv("PORT", "eighty")
		_, err := Load(writeConfig(t, ""))
		assert.ErrorContains(t, err, "invalid PORT")
	})
	t.Run("validation", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[Server]\nPort = 70000\n"))
		assert.ErrorContains(t, err, "invalid configuration")
	})
	t.Run("empty root", func(t *testing.T) {
		t.Setenv("XRAY_MODEL_ROOT", "")
		_, err := Load(writeConfig(t, ""))
		assert.ErrorContains(t, err, "Root")
	})
	t.Run("unknown log level", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[Log]\nLevel = \"loud\"\n"))
		assert.Error(t, err)
	})
}

func TestLoad_WrongKeyType(t *testing.T) {
	_, err := Load(writeConfig(t, "[Server]\nPort = \"abc\"\n"))
	assert.ErrorContains(t, err, "Server.Port")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
