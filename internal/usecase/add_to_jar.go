package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/runoshun/git-jar/internal/domain"
)

// AddToJarInput contains the parameters for submitting a task.
// Either SessionDir or Source must be set.
type AddToJarInput struct {
	SessionDir string // Jar the brief of this session and deactivate it
	Source     string // Repository of a direct submission
	Base       string // Base branch of a direct submission (default: current branch)
	BriefPath  string // Brief file of a direct submission
	TaskID     string // Task ID of a direct submission (default: generated)
	Date       string // Target partition (default: today)
}

// AddToJarOutput contains the result of submitting a task.
type AddToJarOutput struct {
	Record *domain.TaskRecord
	Date   string
}

// AddToJar is the use case for submitting a task to the jar.
type AddToJar struct {
	jars     domain.JarStore
	sessions domain.SessionStore
	git      domain.Git
	clock    domain.Clock
	logger   domain.Logger
}

// NewAddToJar creates a new AddToJar use case.
func NewAddToJar(
	jars domain.JarStore,
	sessions domain.SessionStore,
	git domain.Git,
	clock domain.Clock,
	logger domain.Logger,
) *AddToJar {
	return &AddToJar{
		jars:     jars,
		sessions: sessions,
		git:      git,
		clock:    clock,
		logger:   logger,
	}
}

// Execute creates the task directory with its brief and record.
func (uc *AddToJar) Execute(_ context.Context, in AddToJarInput) (*AddToJarOutput, error) {
	now := uc.clock.Now()
	date := in.Date
	if date == "" {
		date = domain.Partition(now)
	}
	if err := domain.ValidatePartition(date); err != nil {
		return nil, err
	}

	if in.SessionDir != "" {
		return uc.fromSession(in.SessionDir, date)
	}
	return uc.direct(in, date)
}

// fromSession jars the brief of a planning session and deactivates the session.
func (uc *AddToJar) fromSession(sessionDir, date string) (*AddToJarOutput, error) {
	sessionDir = filepath.Clean(sessionDir)
	statePath := domain.StatePath(sessionDir)
	state, err := uc.sessions.Load(statePath)
	if err != nil {
		return nil, err
	}
	if state.WorkingDir == "" {
		return nil, fmt.Errorf("%w: working_dir not found in %s", domain.ErrMetadata, statePath)
	}

	brief, err := readBrief(filepath.Join(sessionDir, domain.DefaultBriefFile))
	if err != nil {
		return nil, err
	}

	branch, err := uc.git.CurrentBranch(state.WorkingDir)
	if err != nil {
		uc.logger.Warn("", "jar", fmt.Sprintf("cannot determine branch of %s: %v", state.WorkingDir, err))
		branch = "unknown"
	}

	rec := &domain.TaskRecord{
		CreatedAt:      uc.clock.Now(),
		TaskID:         filepath.Base(sessionDir),
		Status:         domain.StatusMarinating,
		SourceLocation: state.WorkingDir,
		BaseBranch:     branch,
		BriefPath:      domain.DefaultBriefFile,
	}
	if err := uc.jars.Create(date, rec, brief); err != nil {
		return nil, err
	}

	state.Active = false
	state.CompletionPromise = domain.PromiseJarred
	if err := uc.sessions.Save(statePath, state); err != nil {
		return nil, fmt.Errorf("deactivate session: %w", err)
	}

	uc.logger.Info(rec.TaskID, "jar", fmt.Sprintf("jarred session %s into %s", sessionDir, date))
	return &AddToJarOutput{Record: rec, Date: date}, nil
}

// direct submits a brief for a repository without a planning session.
func (uc *AddToJar) direct(in AddToJarInput, date string) (*AddToJarOutput, error) {
	if in.Source == "" {
		return nil, errors.New("either a session directory or a repository is required")
	}
	source, err := filepath.Abs(in.Source)
	if err != nil {
		return nil, fmt.Errorf("resolve repository path: %w", err)
	}

	base := in.Base
	if base == "" {
		base, err = uc.git.CurrentBranch(source)
		if err != nil {
			return nil, fmt.Errorf("determine base branch: %w", err)
		}
	}

	brief, err := readBrief(in.BriefPath)
	if err != nil {
		return nil, err
	}

	taskID := in.TaskID
	if taskID == "" {
		taskID = "task-" + uuid.NewString()[:8]
	}

	rec := &domain.TaskRecord{
		CreatedAt:      uc.clock.Now(),
		TaskID:         taskID,
		Status:         domain.StatusQueued,
		SourceLocation: source,
		BaseBranch:     base,
		BriefPath:      domain.DefaultBriefFile,
	}
	if err := uc.jars.Create(date, rec, brief); err != nil {
		return nil, err
	}

	uc.logger.Info(rec.TaskID, "jar", fmt.Sprintf("queued task for %s@%s into %s", source, base, date))
	return &AddToJarOutput{Record: rec, Date: date}, nil
}

func readBrief(path string) ([]byte, error) {
	if path == "" {
		return nil, domain.ErrEmptyBrief
	}
	brief, err := os.ReadFile(path) //nolint:gosec // user-supplied brief
	if err != nil {
		return nil, fmt.Errorf("read brief: %w", err)
	}
	if strings.TrimSpace(string(brief)) == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyBrief, path)
	}
	return brief, nil
}
