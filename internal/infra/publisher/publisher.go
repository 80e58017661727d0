// Package publisher hands a finished workspace off for review, either as a
// local draft or as a pushed branch with a GitHub pull request.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/runoshun/git-jar/internal/domain"
)

// Client implements domain.Publisher.
type Client struct {
	git    domain.Git
	logger domain.Logger
	// createPR opens a pull request and returns its URL.
	createPR func(ctx context.Context, dir, title, bodyFile, branch string) (string, error)
}

// New creates a new publisher.
func New(git domain.Git, logger domain.Logger) *Client {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Client{git: git, logger: logger, createPR: ghCreatePR}
}

// Ensure Client implements domain.Publisher interface.
var _ domain.Publisher = (*Client)(nil)

// Publish performs the handoff described by req.
func (c *Client) Publish(ctx context.Context, req domain.PublishRequest) (*domain.PublishResult, error) {
	title, err := readTitle(req.WorkspacePath, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
	}
	bodyFile, err := ensureBody(req.WorkspacePath, req.TaskID, req.Branch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
	}

	if req.Mode != domain.PublishPR {
		target, err := appendDraft(req.WorkspacePath, title, req.Branch, bodyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
		}
		c.logger.Info(req.TaskID, "publish", "draft appended to "+target)
		return &domain.PublishResult{Title: title}, nil
	}

	remotes, err := c.git.Remotes(req.WorkspacePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
	}
	remote, err := chooseRemote(remotes, req.Remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
	}

	c.logger.Info(req.TaskID, "publish", fmt.Sprintf("pushing %s to %s", req.Branch, remote))
	if err := c.git.Push(ctx, req.WorkspacePath, remote, req.Branch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
	}

	url, err := c.createPR(ctx, req.WorkspacePath, title, bodyFile, req.Branch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublication, err)
	}
	c.logger.Info(req.TaskID, "publish", "pull request created: "+url)

	return &domain.PublishResult{
		Title:     title,
		Remote:    remote,
		URL:       url,
		Published: true,
	}, nil
}

// chooseRemote prefers the configured remote, then origin, then the first one.
func chooseRemote(remotes []string, preferred string) (string, error) {
	if len(remotes) == 0 {
		return "", domain.ErrNoRemote
	}
	if preferred != "" {
		if slices.Contains(remotes, preferred) {
			return preferred, nil
		}
		return "", fmt.Errorf("remote %q not configured", preferred)
	}
	if slices.Contains(remotes, "origin") {
		return "origin", nil
	}
	return remotes[0], nil
}

func readTitle(dir, taskID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, domain.PRTitleFileName)) //nolint:gosec // workspace file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "feat: Autonomous task " + taskID, nil
		}
		return "", fmt.Errorf("read title: %w", err)
	}
	if title := strings.TrimSpace(string(data)); title != "" {
		return title, nil
	}
	return "feat: Autonomous task " + taskID, nil
}

// ensureBody returns the body file, writing a generic one when the worker did not.
func ensureBody(dir, taskID, branch string) (string, error) {
	path := filepath.Join(dir, domain.PRBodyFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	body := fmt.Sprintf("## Summary\n\nAutonomous implementation of task %s on branch `%s`.\n", taskID, branch)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil { //nolint:gosec // workspace file
		return "", fmt.Errorf("write generic body: %w", err)
	}
	return path, nil
}

// appendDraft appends the pull request draft to the workspace brief
// (PRD.md if present, otherwise prd.md) and returns its path.
func appendDraft(dir, title, branch, bodyFile string) (string, error) {
	body, err := os.ReadFile(bodyFile) //nolint:gosec // workspace file
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	target := filepath.Join(dir, "PRD.md")
	if _, err := os.Stat(target); err != nil {
		target = filepath.Join(dir, domain.DefaultBriefFile)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // workspace file
	if err != nil {
		return "", fmt.Errorf("open draft target: %w", err)
	}
	defer func() { _ = f.Close() }()

	draft := fmt.Sprintf("\n\n# Generated Pull Request\n\n**Title:** %s\n\n**Branch:** %s\n\n%s", title, branch, body)
	if _, err := f.WriteString(draft); err != nil {
		return "", fmt.Errorf("append draft: %w", err)
	}
	return target, nil
}

func ghCreatePR(ctx context.Context, dir, title, bodyFile, branch string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "pr", "create", "--title", title, "--body-file", bodyFile, "--head", branch)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gh pr create: %w: %s", err, strings.TrimSpace(string(out)))
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}
