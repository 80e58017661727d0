package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runoshun/git-jar/internal/domain"
)

// SpawnWorkerInput contains the parameters for a nested worker invocation.
// Fields are ordered to minimize memory padding.
type SpawnWorkerInput struct {
	Task       string        // Task description handed to the worker
	TicketID   string        // Ticket identifier (logging only)
	TicketPath string        // Ticket directory, or a file inside it
	StateFile  string        // Enclosing state file from the environment, if any
	Dir        string        // Working directory of the worker
	Timeout    time.Duration // Requested timeout (0 = configured default)
}

// SpawnWorkerOutput contains the result of a nested worker invocation.
type SpawnWorkerOutput struct {
	Invocation *domain.WorkerInvocation
	StatePath  string // State file the budget was read from, empty if none
}

// Succeeded reports whether the worker printed the completion marker.
func (o *SpawnWorkerOutput) Succeeded() bool {
	return o.Invocation != nil && o.Invocation.Outcome.Succeeded()
}

// Clamped reports whether the enclosing budget shortened the requested timeout.
func (o *SpawnWorkerOutput) Clamped() bool {
	return o.Invocation != nil && o.Invocation.EffectiveTimeout != o.Invocation.RequestedTimeout
}

// SpawnWorker is the use case for running a worker inside an enclosing session budget.
type SpawnWorker struct {
	sessions     domain.SessionStore
	runner       domain.WorkerRunner
	configLoader domain.ConfigLoader
	logger       domain.Logger
}

// NewSpawnWorker creates a new SpawnWorker use case.
func NewSpawnWorker(
	sessions domain.SessionStore,
	runner domain.WorkerRunner,
	configLoader domain.ConfigLoader,
	logger domain.Logger,
) *SpawnWorker {
	return &SpawnWorker{
		sessions:     sessions,
		runner:       runner,
		configLoader: configLoader,
		logger:       logger,
	}
}

// Execute runs the worker with its log under the ticket directory.
// A worker that exits without the marker is reported in the output, not as an error.
func (uc *SpawnWorker) Execute(ctx context.Context, in SpawnWorkerInput) (*SpawnWorkerOutput, error) {
	if strings.TrimSpace(in.Task) == "" {
		return nil, errors.New("task description is required")
	}
	if in.TicketPath == "" {
		return nil, errors.New("ticket path is required")
	}

	cfg, err := uc.configLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ticketDir := ticketDirectory(in.TicketPath)
	if err := os.MkdirAll(ticketDir, 0o750); err != nil {
		return nil, fmt.Errorf("create ticket directory: %w", err)
	}

	requested := in.Timeout
	if requested <= 0 {
		requested = cfg.NestedTimeout()
	}

	statePath, enclosing := uc.enclosingState(in.StateFile, ticketDir)

	inv, err := uc.runner.Run(ctx, domain.WorkerRequest{
		Enclosing: enclosing,
		Command:   cfg.WorkerArgv(nestedWorkerPrompt(in.Task)),
		TaskID:    in.TicketID,
		Env:       []string{domain.StateFileEnv + "=" + domain.StatePath(ticketDir)},
		Dir:       in.Dir,
		LogPath:   domain.WorkerSessionLogPath(ticketDir, uuid.NewString()[:8]),
		Timeout:   requested,
	})
	out := &SpawnWorkerOutput{Invocation: inv, StatePath: statePath}
	if err != nil {
		return out, err
	}

	if out.Clamped() {
		uc.logger.Info(in.TicketID, "worker", fmt.Sprintf("timeout clamped to %s by %s", inv.EffectiveTimeout, statePath))
	}
	uc.logger.Info(in.TicketID, "worker", fmt.Sprintf("worker finished: outcome=%s exit=%d log=%s", inv.Outcome, inv.ExitCode, inv.LogPath))
	return out, nil
}

// enclosingState returns the first readable state of the environment file,
// the ticket's parent session and the ticket itself.
func (uc *SpawnWorker) enclosingState(envPath, ticketDir string) (string, *domain.SessionState) {
	candidates := []string{
		envPath,
		domain.StatePath(filepath.Dir(ticketDir)),
		domain.StatePath(ticketDir),
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if state := uc.sessions.Peek(path); state != nil {
			return path, state
		}
	}
	return "", nil
}

// ticketDirectory normalizes a ticket path that may point at the ticket file.
func ticketDirectory(path string) string {
	path = filepath.Clean(path)
	if strings.HasSuffix(path, ".md") {
		return filepath.Dir(path)
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return filepath.Dir(path)
	}
	return path
}

// nestedWorkerPrompt is the instruction handed to a nested worker.
func nestedWorkerPrompt(task string) string {
	return fmt.Sprintf("# TASK REQUEST\n%s\n\nImplement the request above. When it is complete, print %s",
		task, domain.CompletionMarker)
}
