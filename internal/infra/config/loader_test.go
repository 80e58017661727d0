package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-jar/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_Load_Defaults(t *testing.T) {
	t.Setenv(domain.HomeEnv, "")
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := NewLoaderWithGlobalDir("", t.TempDir()).Load()
	require.NoError(t, err)

	assert.Equal(t, domain.NewDefaultConfig().Worker, cfg.Worker)
	assert.Equal(t, "/data/git-jar", cfg.Root)
	assert.Empty(t, cfg.Warnings)
}

func TestLoader_Load_GlobalThenExplicit(t *testing.T) {
	t.Setenv(domain.HomeEnv, "")
	globalDir := t.TempDir()
	writeFile(t, filepath.Join(globalDir, domain.ConfigFileName), `
root = "/srv/jar"

[worker]
command = ["claude", "--print"]
timeout_seconds = 600

[session]
max_time_minutes = 30

[log]
level = "debug"
`)
	explicit := filepath.Join(t.TempDir(), "override.toml")
	writeFile(t, explicit, `
[worker]
timeout_seconds = 120

[publish]
remote = "upstream"
`)

	cfg, err := NewLoaderWithGlobalDir(explicit, globalDir).Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/jar", cfg.Root)
	assert.Equal(t, []string{"claude", "--print"}, cfg.Worker.Command)
	assert.Equal(t, 120, cfg.Worker.TimeoutSeconds)
	assert.Equal(t, domain.DefaultNestedTimeoutSeconds, cfg.Worker.NestedTimeoutSeconds)
	assert.Equal(t, "-p", cfg.Worker.PromptFlag)
	assert.Equal(t, 30, cfg.Session.MaxTimeMinutes)
	assert.Equal(t, domain.DefaultMaxIterations, cfg.Session.MaxIterations)
	assert.Equal(t, "upstream", cfg.Publish.Remote)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_Load_UnknownKeysWarn(t *testing.T) {
	t.Setenv(domain.HomeEnv, "")
	globalDir := t.TempDir()
	writeFile(t, filepath.Join(globalDir, domain.ConfigFileName), `
[worker]
timeout_seconds = 5
colour = "green"

[tui]
theme = "dark"
`)

	cfg, err := NewLoaderWithGlobalDir("", globalDir).Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Worker.TimeoutSeconds)
	require.NotEmpty(t, cfg.Warnings)
	joined := strings.Join(cfg.Warnings, "\n")
	assert.Contains(t, joined, "unknown key in config.toml: ")
	assert.Contains(t, joined, "colour")
	assert.Contains(t, joined, "tui")
}

func TestLoader_Load_Errors(t *testing.T) {
	t.Setenv(domain.HomeEnv, "")

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := NewLoaderWithGlobalDir(filepath.Join(t.TempDir(), "none.toml"), t.TempDir()).Load()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid toml", func(t *testing.T) {
		globalDir := t.TempDir()
		writeFile(t, filepath.Join(globalDir, domain.ConfigFileName), "[worker\n")
		_, err := NewLoaderWithGlobalDir("", globalDir).Load()
		assert.Error(t, err)
	})
}

func TestResolveRoot(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Run("env wins", func(t *testing.T) {
		t.Setenv(domain.HomeEnv, "/env/root")
		got, err := ResolveRoot("/configured")
		require.NoError(t, err)
		assert.Equal(t, "/env/root", got)
	})

	t.Run("tilde expansion", func(t *testing.T) {
		t.Setenv(domain.HomeEnv, "")
		got, err := ResolveRoot("~/jar-data")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "jar-data"), got)
	})

	t.Run("xdg default", func(t *testing.T) {
		t.Setenv(domain.HomeEnv, "")
		t.Setenv("XDG_DATA_HOME", "/xdg")
		got, err := ResolveRoot("")
		require.NoError(t, err)
		assert.Equal(t, "/xdg/git-jar", got)
	})
}

func TestTemplate_LoadsWithoutWarnings(t *testing.T) {
	t.Setenv(domain.HomeEnv, "")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, domain.ConfigFileName), Template())

	cfg, err := NewLoaderWithGlobalDir("", dir).Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings)
	assert.Equal(t, domain.NewDefaultConfig().Worker, cfg.Worker)
}
