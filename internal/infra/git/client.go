// Package git provides repository queries and the git operations that sit
// outside worktree management.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"

	"github.com/runoshun/git-jar/internal/domain"
)

// ghLoginTimeout bounds the `gh api user` lookup.
const ghLoginTimeout = 10 * time.Second

// Client provides git operations on arbitrary repositories.
type Client struct {
	loginLookup func(ctx context.Context) (string, error)
	actor       string // Configured actor override
}

// Ensure Client implements domain.Git and domain.Identity.
var (
	_ domain.Git      = (*Client)(nil)
	_ domain.Identity = (*Client)(nil)
)

// NewClient creates a new git client. A non-empty actor overrides identity lookup.
func NewClient(actor string) *Client {
	return &Client{
		actor:       actor,
		loginLookup: ghLogin,
	}
}

// Open opens the repository containing dir, including linked worktrees.
func Open(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotGitRepository, dir)
		}
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return repo, nil
}

// CurrentBranch returns the name of the checked out branch in dir.
// Uses the git CLI so that linked worktrees report their own HEAD.
func (c *Client) CurrentBranch(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Remotes returns the remote names configured for the repository at dir, sorted.
func (c *Client) Remotes(dir string) ([]string, error) {
	repo, err := Open(dir)
	if err != nil {
		return nil, err
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}
	names := make([]string, 0, len(remotes))
	for _, r := range remotes {
		names = append(names, r.Config().Name)
	}
	sort.Strings(names)
	return names, nil
}

// Push pushes branch to remote and sets upstream tracking.
// The git CLI is used because it picks up the user's credential helpers.
func (c *Client) Push(ctx context.Context, dir, remote, branch string) error {
	cmd := exec.CommandContext(ctx, "git", "push", "-u", remote, branch)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to push %s to %s: %w: %s", branch, remote, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Actor resolves the name used in task branches.
// Order: configured override, GitHub login, global git user.name, DefaultActor.
func (c *Client) Actor(ctx context.Context) string {
	if c.actor != "" {
		return domain.SanitizeActor(c.actor)
	}
	if c.loginLookup != nil {
		if login, err := c.loginLookup(ctx); err == nil {
			if login = domain.SanitizeActor(login); login != "" {
				return login
			}
		}
	}
	if name := globalUserName(); name != "" {
		return name
	}
	return domain.DefaultActor
}

func ghLogin(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, ghLoginTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "gh", "api", "user", "-q", ".login").Output()
	if err != nil {
		return "", fmt.Errorf("gh api user: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// globalUserName reads user.name from the global git configuration.
func globalUserName() string {
	cfg, err := config.LoadConfig(config.GlobalScope)
	if err != nil {
		return ""
	}
	return domain.SanitizeActor(cfg.User.Name)
}
