package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should fall back to defaults without file or environment", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, 8000, cfg.Server.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.True(t, cfg.Vision.ContextEnforcement.RequireCompletionSummary)
		assert.Equal(t, 5, cfg.Vision.WorkflowHints.MaxHints)
		assert.True(t, cfg.Context.AutoCreateParents)
	})

	t.Run("Should treat a missing config file as defaults only", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Server.Port)
	})

	t.Run("Should layer the config file over defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  transport: sse
  port: 9090
database:
  driver: memory
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sse", cfg.Server.Transport)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "memory", cfg.Database.Driver)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host, "untouched keys keep their defaults")
	})

	t.Run("Should let environment variables win over the file", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9090
`)
		t.Setenv("DHAFNCK_SERVER__PORT", "9001")
		t.Setenv("DHAFNCK_VISION__CONTEXT_ENFORCEMENT__MIN_SUMMARY_LENGTH", "25")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9001, cfg.Server.Port)
		assert.Equal(t, 25, cfg.Vision.ContextEnforcement.MinSummaryLength)
	})

	t.Run("Should keep defaults when the file carries explicit nulls", func(t *testing.T) {
		path := writeConfig(t, `
server:
  host: null
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	})

	t.Run("Should reject an unknown transport", func(t *testing.T) {
		path := writeConfig(t, `
server:
  transport: carrier-pigeon
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Should reject an unknown database driver", func(t *testing.T) {
		path := writeConfig(t, `
database:
  driver: sqlite
`)
		_, err := Load(path)
		require.Error(t, err)
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
