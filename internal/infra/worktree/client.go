// Package worktree provisions and tears down per-task git worktrees.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/runoshun/git-jar/internal/domain"
	"github.com/runoshun/git-jar/internal/infra/git"
)

// Client manages task worktrees under a single workspaces root.
type Client struct {
	identity    domain.Identity
	logger      domain.Logger
	worktreeDir string // Directory where worktrees are created
}

// NewClient creates a new worktree client.
// worktreeDir is the directory where worktrees will be created (typically <root>/worktrees).
func NewClient(worktreeDir string, identity domain.Identity, logger domain.Logger) *Client {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Client{
		worktreeDir: worktreeDir,
		identity:    identity,
		logger:      logger,
	}
}

// Ensure Client implements domain.WorkspaceProvisioner interface.
var _ domain.WorkspaceProvisioner = (*Client)(nil)

// Create provisions a fresh worktree for the task, replacing any stale worktree
// and branch left behind by an earlier run.
func (c *Client) Create(ctx context.Context, req domain.CreateWorkspaceRequest) (*domain.Workspace, error) {
	if err := domain.ValidateTaskID(req.TaskID); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
	}
	path := domain.WorktreePath(c.worktreeDir, req.TaskID)
	if !withinDir(c.worktreeDir, path) {
		return nil, fmt.Errorf("%w: worktree path %s is outside %s", domain.ErrProvisioning, path, c.worktreeDir)
	}

	baseCommit, err := resolveBase(req.Source, req.Base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
	}
	if err := c.ensureCleanSlate(ctx, req.Source, path); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
	}

	actor := domain.DefaultActor
	if c.identity != nil {
		actor = c.identity.Actor(ctx)
	}
	branch := domain.BranchName(actor, req.TaskID)

	exists, err := branchExists(ctx, req.Source, branch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
	}
	if exists {
		c.logger.Info(req.TaskID, "worktree", "deleting stale branch "+branch)
		if out, err := runGit(ctx, req.Source, "branch", "-D", branch); err != nil {
			return nil, fmt.Errorf("%w: delete branch %s: %w: %s", domain.ErrProvisioning, branch, err, out)
		}
	}

	if err := os.MkdirAll(c.worktreeDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create worktrees directory: %w", domain.ErrProvisioning, err)
	}

	args := []string{"worktree", "add", "-b", branch, path, req.Base}
	out, err := runGit(ctx, req.Source, args...)
	if err != nil {
		// Registered but directory missing: prune stale entries and retry once
		if !strings.Contains(out, "already registered") {
			return nil, fmt.Errorf("%w: create worktree: %w: %s", domain.ErrProvisioning, err, out)
		}
		if pruneOut, pruneErr := runGit(ctx, req.Source, "worktree", "prune"); pruneErr != nil {
			return nil, fmt.Errorf("%w: prune stale worktrees: %w: %s", domain.ErrProvisioning, pruneErr, pruneOut)
		}
		if out, err = runGit(ctx, req.Source, args...); err != nil {
			return nil, fmt.Errorf("%w: create worktree after prune: %w: %s", domain.ErrProvisioning, err, out)
		}
	}

	c.logger.Info(req.TaskID, "worktree", fmt.Sprintf("created %s on %s from %s", path, branch, req.Base))
	return &domain.Workspace{
		Path:       path,
		Branch:     branch,
		Source:     req.Source,
		BaseBranch: req.Base,
		BaseCommit: baseCommit,
		TaskID:     req.TaskID,
	}, nil
}

// Destroy removes the worktree. A missing worktree is not an error and
// failures are only logged.
func (c *Client) Destroy(ctx context.Context, ws *domain.Workspace) {
	if ws == nil || ws.Path == "" {
		return
	}
	if out, err := runGit(ctx, ws.Source, "worktree", "remove", "--force", ws.Path); err != nil {
		c.logger.Debug(ws.TaskID, "worktree", fmt.Sprintf("worktree remove: %v: %s", err, out))
	}
	if _, err := os.Stat(ws.Path); err == nil {
		if err := os.RemoveAll(ws.Path); err != nil {
			c.logger.Warn(ws.TaskID, "worktree", fmt.Sprintf("remove %s: %v", ws.Path, err))
		}
	}
	if out, err := runGit(ctx, ws.Source, "worktree", "prune"); err != nil {
		c.logger.Warn(ws.TaskID, "worktree", fmt.Sprintf("worktree prune: %v: %s", err, out))
	}
	c.logger.Info(ws.TaskID, "worktree", "removed "+ws.Path)
}

// ensureCleanSlate removes whatever occupies path from an earlier run and
// prunes registrations whose directories are gone.
func (c *Client) ensureCleanSlate(ctx context.Context, source, path string) error {
	if _, err := os.Stat(path); err == nil {
		if out, err := runGit(ctx, source, "worktree", "remove", "--force", path); err != nil {
			c.logger.Debug("", "worktree", fmt.Sprintf("worktree remove %s: %v: %s", path, err, out))
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove stale worktree %s: %w", path, err)
		}
	}
	if out, err := runGit(ctx, source, "worktree", "prune"); err != nil {
		return fmt.Errorf("prune worktrees: %w: %s", err, out)
	}
	return nil
}

// resolveBase checks that source is a repository and base resolves to a commit.
func resolveBase(source, base string) (string, error) {
	if source == "" {
		return "", errors.New("empty source repository")
	}
	if base == "" {
		return "", errors.New("empty base branch")
	}
	repo, err := git.Open(source)
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(base))
	if err != nil {
		return "", fmt.Errorf("resolve base %q: %w", base, err)
	}
	return hash.String(), nil
}

// branchExists checks if a branch exists in the repository.
func branchExists(ctx context.Context, dir, branch string) (bool, error) {
	//nolint:gosec // branch name is used as argument, not shell command
	cmd := exec.CommandContext(ctx, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = dir
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	// Exit code 1 means branch doesn't exist
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("check branch exists: %w", err)
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// withinDir reports whether path is a strict descendant of dir.
func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != "." && filepath.IsLocal(rel)
}
