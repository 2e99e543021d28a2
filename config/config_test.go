package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scankit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "jpn+eng", cfg.Language)
	assert.Equal(t, "output.pdf", cfg.OutputName)
	assert.Greater(t, cfg.TextThreshold, 0.0)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "language: deu\ntext_threshold: 0.5\noutput_name: merged.pdf\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deu", cfg.Language)
	assert.Equal(t, 0.5, cfg.TextThreshold)
	assert.Equal(t, "merged.pdf", cfg.OutputName)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "language: eng\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eng", cfg.Language)
	assert.Equal(t, Default().TextThreshold, cfg.TextThreshold)
	assert.Equal(t, "output.pdf", cfg.OutputName)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "language: [unbalanced\n"))
		require.Error(t, err)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := Load(writeConfig(t, "text_threshold: 1.5\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "text_threshold")
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty language", func(c *Config) { c.Language = "" }, false},
		{"negative threshold", func(c *Config) { c.TextThreshold = -0.1 }, false},
		{"zero threshold", func(c *Config) { c.TextThreshold = 0 }, true},
		{"empty output name", func(c *Config) { c.OutputName = "" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
