package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-jar/internal/domain"
)

type fixedActor string

func (a fixedActor) Actor(context.Context) string { return string(a) }

// setupTestRepo creates a temporary git repository for testing.
func setupTestRepo(t *testing.T) (repoRoot, worktreeDir string) {
	t.Helper()

	tmpDir := t.TempDir()
	repoRoot = filepath.Join(tmpDir, "repo")
	worktreeDir = filepath.Join(tmpDir, "worktrees")
	require.NoError(t, os.MkdirAll(repoRoot, 0o755))

	testGit(t, repoRoot, "init", "-b", "main")
	testGit(t, repoRoot, "config", "user.email", "test@example.com")
	testGit(t, repoRoot, "config", "user.name", "Test User")

	// Worktrees need an initial commit
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "README.md"), []byte("# Test"), 0o644))
	testGit(t, repoRoot, "add", ".")
	testGit(t, repoRoot, "commit", "-m", "Initial commit")

	return repoRoot, worktreeDir
}

func testGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return strings.TrimSpace(string(out))
}

func newTestClient(worktreeDir string) *Client {
	return NewClient(worktreeDir, fixedActor("alice"), nil)
}

func TestClient_Create(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	ws, err := client.Create(context.Background(), domain.CreateWorkspaceRequest{
		Source: repoRoot,
		Base:   "main",
		TaskID: "add-login",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(worktreeDir, "worktree-add-login"), ws.Path)
	assert.Equal(t, "alice/feat/add-login", ws.Branch)
	assert.Equal(t, "main", ws.BaseBranch)
	assert.Equal(t, testGit(t, repoRoot, "rev-parse", "main"), ws.BaseCommit)
	assert.FileExists(t, filepath.Join(ws.Path, "README.md"))
	assert.Equal(t, "alice/feat/add-login", testGit(t, ws.Path, "rev-parse", "--abbrev-ref", "HEAD"))
}

func TestClient_Create_FixBranchType(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	ws, err := client.Create(context.Background(), domain.CreateWorkspaceRequest{
		Source: repoRoot, Base: "main", TaskID: "Bug-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice/fix/Bug-123", ws.Branch)
}

func TestClient_Create_Idempotent(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)
	req := domain.CreateWorkspaceRequest{Source: repoRoot, Base: "main", TaskID: "demo-1"}

	first, err := client.Create(context.Background(), req)
	require.NoError(t, err)

	// Leave residue: an untracked file and a commit on the task branch
	require.NoError(t, os.WriteFile(filepath.Join(first.Path, "scratch.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(first.Path, "work.txt"), []byte("y"), 0o644))
	testGit(t, first.Path, "add", "work.txt")
	testGit(t, first.Path, "commit", "-m", "partial work")

	second, err := client.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.Branch, second.Branch)
	assert.NoFileExists(t, filepath.Join(second.Path, "scratch.txt"))
	assert.NoFileExists(t, filepath.Join(second.Path, "work.txt"))
	assert.Equal(t, testGit(t, repoRoot, "rev-parse", "main"), testGit(t, second.Path, "rev-parse", "HEAD"))
}

func TestClient_Create_UnregisteredResidue(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	stale := domain.WorktreePath(worktreeDir, "demo-2")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "junk"), []byte("x"), 0o644))

	ws, err := client.Create(context.Background(), domain.CreateWorkspaceRequest{
		Source: repoRoot, Base: "main", TaskID: "demo-2",
	})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(ws.Path, "junk"))
}

func TestClient_Create_RegisteredButMissing(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)
	req := domain.CreateWorkspaceRequest{Source: repoRoot, Base: "main", TaskID: "demo-3"}

	first, err := client.Create(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(first.Path))

	second, err := client.Create(context.Background(), req)
	require.NoError(t, err)
	assert.DirExists(t, second.Path)
}

func TestClient_Create_PreconditionErrors(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	tests := []struct {
		name string
		req  domain.CreateWorkspaceRequest
	}{
		{"not a repository", domain.CreateWorkspaceRequest{Source: t.TempDir(), Base: "main", TaskID: "x"}},
		{"missing source", domain.CreateWorkspaceRequest{Source: filepath.Join(t.TempDir(), "nope"), Base: "main", TaskID: "x"}},
		{"unknown base", domain.CreateWorkspaceRequest{Source: repoRoot, Base: "does-not-exist", TaskID: "x"}},
		{"empty task id", domain.CreateWorkspaceRequest{Source: repoRoot, Base: "main"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrProvisioning)
		})
	}
}

func TestClient_Create_EscapingTaskID(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	victim := filepath.Join(filepath.Dir(worktreeDir), "victim")
	require.NoError(t, os.MkdirAll(victim, 0o755))
	precious := filepath.Join(victim, "precious.txt")
	require.NoError(t, os.WriteFile(precious, []byte("keep"), 0o644))

	for _, id := range []string{"../victim", "../../victim", "worktree-x/../../victim", ".."} {
		_, err := client.Create(context.Background(), domain.CreateWorkspaceRequest{
			Source: repoRoot, Base: "main", TaskID: id,
		})
		require.ErrorIs(t, err, domain.ErrProvisioning, id)
		assert.ErrorIs(t, err, domain.ErrInvalidTaskID, id)
	}
	assert.FileExists(t, precious)
}

func TestWithinDir(t *testing.T) {
	assert.True(t, withinDir("/data/worktrees", "/data/worktrees/worktree-demo-1"))
	assert.False(t, withinDir("/data/worktrees", "/data/worktrees"))
	assert.False(t, withinDir("/data/worktrees", "/data/victim"))
	assert.False(t, withinDir("/data/worktrees", "/data/worktrees-other/x"))
}

func TestClient_Destroy(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	ws, err := client.Create(context.Background(), domain.CreateWorkspaceRequest{
		Source: repoRoot, Base: "main", TaskID: "demo-4",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "dirty.txt"), []byte("x"), 0o644))

	client.Destroy(context.Background(), ws)

	assert.NoDirExists(t, ws.Path)
	list := testGit(t, repoRoot, "worktree", "list", "--porcelain")
	assert.NotContains(t, list, ws.Path)
}

func TestClient_Destroy_Missing(t *testing.T) {
	repoRoot, worktreeDir := setupTestRepo(t)
	client := newTestClient(worktreeDir)

	assert.NotPanics(t, func() {
		client.Destroy(context.Background(), &domain.Workspace{
			Path:   domain.WorktreePath(worktreeDir, "ghost"),
			Source: repoRoot,
			TaskID: "ghost",
		})
		client.Destroy(context.Background(), &domain.Workspace{
			Path:   filepath.Join(t.TempDir(), "gone"),
			Source: filepath.Join(t.TempDir(), "no-repo"),
		})
		client.Destroy(context.Background(), nil)
	})
}
