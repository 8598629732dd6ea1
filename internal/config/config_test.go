package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/phonetree/internal/config"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "phonetree.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(config.EnvConfigPath, "")

	cfg, _, exists, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, 3, cfg.Tree.ContextWidth)
	assert.Equal(t, 1, cfg.Tree.CentralPosition)
	assert.Equal(t, 0.1, cfg.Shrink.ClusterThresh)
	assert.Equal(t, 100.0, cfg.Shrink.LowCount)
	assert.True(t, cfg.Prior.Log)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[io]
binary = true

[shrink]
cluster_thresh = 0.5

[logging]
level = " DEBUG "
format = "JSON"
file = "logs/run.log"
`)
	chdir(t, dir)

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.True(t, cfg.IO.Binary)
	assert.Equal(t, 0.5, cfg.Shrink.ClusterThresh)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, filepath.IsAbs(cfg.Logging.File))
	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Tree.ContextWidth)
}

func TestLoadResolution(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		envDir := t.TempDir()
		path := writeConfig(t, envDir, "[tree]\ncontext_width = 5\ncentral_position = 2\n")
		chdir(t, t.TempDir())
		t.Setenv(config.EnvConfigPath, path)

		cfg, resolved, exists, err := config.Load("")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, path, resolved)
		assert.Equal(t, 5, cfg.Tree.ContextWidth)
	})

	t.Run("project file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "[prior]\nnum_pdfs = 42\n")
		chdir(t, dir)
		t.Setenv(config.EnvConfigPath, "")

		cfg, _, exists, err := config.Load("")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, 42, cfg.Prior.NumPdfs)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "[shrink]\nclusterthresh = 1\n"},
		{"bad toml", "[shrink\n"},
		{"zero width", "[tree]\ncontext_width = 0\n"},
		{"central outside window", "[tree]\ncentral_position = 3\n"},
		{"zero prior floor", "[prior]\nfloor = 0.0\n"},
		{"negative num pdfs", "[pdfmap]\nsrc_num_pdfs = -1\n"},
		{"bad log format", "[logging]\nformat = \"xml\"\n"},
		{"bad log level", "[logging]\nlevel = \"loud\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, _, _, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEncode(t *testing.T) {
	cfg := config.Default()
	cfg.Shrink.ClusterThresh = 2.5
	text, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, text, "cluster_thresh = 2.5")

	var back config.Config
	require.NoError(t, toml.Unmarshal([]byte(text), &back))
	assert.Equal(t, cfg, back)
}

// chdir changes the working directory for the rest of the test and restores
// it on cleanup (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
