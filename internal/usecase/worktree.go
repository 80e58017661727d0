package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/runoshun/git-jar/internal/domain"
)

// CreateWorktreeInput contains the parameters for provisioning a worktree by hand.
type CreateWorktreeInput struct {
	Source string // Source repository
	Base   string // Base branch (default: current branch of Source)
	TaskID string
}

// CreateWorktreeOutput contains the provisioned workspace.
type CreateWorktreeOutput struct {
	Workspace *domain.Workspace
}

// CreateWorktree is the use case for provisioning a task worktree outside a jar run.
type CreateWorktree struct {
	provisioner domain.WorkspaceProvisioner
	git         domain.Git
}

// NewCreateWorktree creates a new CreateWorktree use case.
func NewCreateWorktree(provisioner domain.WorkspaceProvisioner, git domain.Git) *CreateWorktree {
	return &CreateWorktree{provisioner: provisioner, git: git}
}

// Execute provisions a fresh worktree for the task.
func (uc *CreateWorktree) Execute(ctx context.Context, in CreateWorktreeInput) (*CreateWorktreeOutput, error) {
	if in.TaskID == "" {
		return nil, errors.New("task id is required")
	}
	source, err := filepath.Abs(in.Source)
	if err != nil {
		return nil, fmt.Errorf("resolve repository path: %w", err)
	}
	base := in.Base
	if base == "" {
		base, err = uc.git.CurrentBranch(source)
		if err != nil {
			return nil, fmt.Errorf("%w: determine base branch: %w", domain.ErrProvisioning, err)
		}
	}

	ws, err := uc.provisioner.Create(ctx, domain.CreateWorkspaceRequest{
		Source: source,
		Base:   base,
		TaskID: in.TaskID,
	})
	if err != nil {
		return nil, err
	}
	return &CreateWorktreeOutput{Workspace: ws}, nil
}

// RemoveWorktreeInput contains the parameters for removing a worktree.
type RemoveWorktreeInput struct {
	Source string // Repository the worktree belongs to
	Path   string // Worktree path
}

// RemoveWorktree is the use case for tearing a worktree down.
type RemoveWorktree struct {
	provisioner domain.WorkspaceProvisioner
}

// NewRemoveWorktree creates a new RemoveWorktree use case.
func NewRemoveWorktree(provisioner domain.WorkspaceProvisioner) *RemoveWorktree {
	return &RemoveWorktree{provisioner: provisioner}
}

// Execute removes the worktree. A missing worktree is not an error.
func (uc *RemoveWorktree) Execute(ctx context.Context, in RemoveWorktreeInput) error {
	if in.Path == "" {
		return errors.New("worktree path is required")
	}
	path, err := filepath.Abs(in.Path)
	if err != nil {
		return fmt.Errorf("resolve worktree path: %w", err)
	}
	source, err := filepath.Abs(in.Source)
	if err != nil {
		return fmt.Errorf("resolve repository path: %w", err)
	}
	uc.provisioner.Destroy(ctx, &domain.Workspace{Path: path, Source: source})
	return nil
}
