package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-jar/internal/app"
	"github.com/runoshun/git-jar/internal/domain"
	"github.com/runoshun/git-jar/internal/infra/config"
)

var errNoFactory = errors.New("factory must not be called")

func failingFactory(string) (*app.Container, error) {
	return nil, errNoFactory
}

// testEnv points the data root and config home at temporary directories
// and writes a config whose worker runs script through sh.
func testEnv(t *testing.T, script string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(domain.HomeEnv, filepath.Join(home, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv(domain.StateFileEnv, "")

	configPath := filepath.Join(home, "jar.toml")
	content := fmt.Sprintf("[worker]\ncommand = [\"sh\", \"-c\", %q]\n\n[workspace]\nactor = \"tester\"\n", script)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand(app.New, "test-version")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand_Help(t *testing.T) {
	root := NewRootCommand(failingFactory, "test-version")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Jar Commands:")
	assert.Contains(t, out.String(), "run")
	assert.Contains(t, out.String(), "worker")
}

func TestNewRootCommand_ConfigTemplateWithoutContainer(t *testing.T) {
	root := NewRootCommand(failingFactory, "test-version")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "template"})

	require.NoError(t, root.Execute())
	assert.Equal(t, config.Template(), out.String())
}

func TestNewRootCommand_FactoryError(t *testing.T) {
	root := NewRootCommand(failingFactory, "test-version")
	root.SetArgs([]string{"list"})

	assert.ErrorIs(t, root.Execute(), errNoFactory)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	orig := configManagerFactory
	configManagerFactory = func() domain.ConfigManager { return config.NewManagerWithGlobalDir(dir) }
	t.Cleanup(func() { configManagerFactory = orig })

	root := NewRootCommand(failingFactory, "test-version")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), filepath.Join(dir, "config.toml"))

	root = NewRootCommand(failingFactory, "test-version")
	root.SetArgs([]string{"config", "init"})
	err := root.Execute()
	require.ErrorIs(t, err, domain.ErrConfigExists)
	assert.Contains(t, err.Error(), "--force")
}

func TestConfigShow(t *testing.T) {
	configPath := testEnv(t, "true")

	stdout, _, err := execute(t, "--config", configPath, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "[Effective Config]")
	assert.Contains(t, stdout, configPath)
	assert.Contains(t, stdout, "tester")
}

func TestConfigShow_UnknownKeyWarning(t *testing.T) {
	configPath := testEnv(t, "true")
	f, err := os.OpenFile(configPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("\n[log]\nlevle = \"debug\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, stderr, err := execute(t, "--config", configPath, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stderr, "Warning:")
	assert.Contains(t, stderr, "levle")
}

func TestRun_MissingJarIsAWarning(t *testing.T) {
	configPath := testEnv(t, "true")

	_, stderr, err := execute(t, "--config", configPath, "run", "--date", "2020-01-01")

	require.NoError(t, err)
	assert.Contains(t, stderr, "no jar found for date")
}

func TestRun_InvalidDate(t *testing.T) {
	configPath := testEnv(t, "true")

	_, _, err := execute(t, "--config", configPath, "run", "--date", "tomorrow")

	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func setupRepo(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	repo := filepath.Join(t.TempDir(), "repo")
	require.NoError(t, os.MkdirAll(repo, 0o755))
	for _, args := range [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test User"},
		{"commit", "--allow-empty", "-m", "Initial commit"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v failed: %s", args, out)
	}
	return repo
}

func TestAddListShowRun(t *testing.T) {
	repo := setupRepo(t)
	configPath := testEnv(t, `echo '<promise>I AM DONE</promise>'`)
	brief := filepath.Join(t.TempDir(), "brief.md")
	require.NoError(t, os.WriteFile(brief, []byte("# Add a README section\n"), 0o600))

	stdout, _, err := execute(t, "--config", configPath, "add", "--repo", repo, "--brief", brief, "--id", "readme", "--date", "2026-01-15")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Task successfully jarred at:")

	stdout, _, err = execute(t, "--config", configPath, "list", "--date", "2026-01-15")
	require.NoError(t, err)
	assert.Contains(t, stdout, "readme")
	assert.Contains(t, stdout, "Queued")

	stdout, _, err = execute(t, "--config", configPath, "run", "--date", "2026-01-15")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[1/1] Crunching task: readme")
	assert.Contains(t, stdout, "Task readme crunched")
	assert.Contains(t, stdout, "Processed: 1  Succeeded: 1  Failed: 0  Skipped: 0")

	stdout, _, err = execute(t, "--config", configPath, "show", "readme")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Status:    Done")
	assert.Contains(t, stdout, "# Add a README section")
	assert.Contains(t, stdout, "tester/feat/readme")

	stdout, _, err = execute(t, "--config", configPath, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "readme")
	assert.Contains(t, stdout, "success")

	stdout, _, err = execute(t, "--config", configPath, "logs", "readme")
	require.NoError(t, err)
	assert.Contains(t, stdout, "task crunched")
}

func TestWorkerSpawn(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	t.Run("success", func(t *testing.T) {
		configPath := testEnv(t, `echo '<promise>I AM DONE</promise>'`)
		ticket := filepath.Join(t.TempDir(), "t1")

		stdout, _, err := execute(t, "--config", configPath, "worker", "spawn", "--ticket-id", "t1", "--ticket-path", ticket, "do", "it")

		require.NoError(t, err)
		assert.Contains(t, stdout, "Outcome:    success")
		matches, _ := filepath.Glob(filepath.Join(ticket, "worker_session_*.log"))
		assert.Len(t, matches, 1)
	})

	t.Run("failure without marker", func(t *testing.T) {
		configPath := testEnv(t, `echo all good; exit 0`)

		stdout, _, err := execute(t, "--config", configPath, "worker", "spawn", "--ticket-id", "t1", "--ticket-path", t.TempDir(), "do it")

		assert.ErrorIs(t, err, errWorkerFailed)
		assert.Contains(t, stdout, "exit:0")
		assert.Contains(t, stdout, "Outcome:    failure")
	})
}

func TestSessionShowAndCancel(t *testing.T) {
	configPath := testEnv(t, "true")
	sessionDir := filepath.Join(t.TempDir(), "2026-01-15-s1")
	require.NoError(t, os.MkdirAll(sessionDir, 0o750))
	state := `{"version":1,"active":true,"working_dir":"/w","step":"breakdown","iteration":1,` +
		`"max_iterations":10,"max_time_minutes":60,"start_time_epoch":1,"history":[],"session_dir":"` + sessionDir + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, "state.json"), []byte(state), 0o600))

	stdout, _, err := execute(t, "--config", configPath, "session", "show", "--session", sessionDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Active:      true")
	assert.Contains(t, stdout, "time limit exceeded")

	stdout, _, err = execute(t, "--config", configPath, "session", "cancel", "--session", sessionDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session cancelled")

	stdout, _, err = execute(t, "--config", configPath, "session", "cancel", "--session", sessionDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "already inactive")
}
