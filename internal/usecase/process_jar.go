// Package usecase contains the application use cases.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runoshun/git-jar/internal/domain"
)

// Stages reported in handoff notes and task results.
const (
	StageProvision = "provision"
	StageSession   = "session"
	StageWorker    = "worker"
	StagePublish   = "publish"
)

// JarObserver receives progress notifications from ProcessJar.
type JarObserver interface {
	TaskStarted(index, total int, rec *domain.TaskRecord)
	TaskSkipped(taskID, reason string)
	TaskFinished(result TaskResult)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(int, int, *domain.TaskRecord) {}
func (nopObserver) TaskSkipped(string, string)               {}
func (nopObserver) TaskFinished(TaskResult)                  {}

// ProcessJarInput contains the parameters for draining a jar partition.
// Fields are ordered to minimize memory padding.
type ProcessJarInput struct {
	Observer           JarObserver // Optional progress observer
	Date               string      // Partition to process (YYYY-MM-DD); empty means today
	EnclosingStatePath string      // State file of the session that started the run, if any
	Publish            bool        // Push and open a pull request on success
}

// TaskResult is the outcome of one processed task.
// Fields are ordered to minimize memory padding.
type TaskResult struct {
	Err        error          // Failure cause, nil on success
	TaskID     string         // Task identifier
	Stage      string         // Stage that failed, empty on success
	Workspace  string         // Provisioned worktree path
	SessionDir string         // Session directory of the run
	PRURL      string         // Pull request URL when published
	Outcome    domain.Outcome // Worker outcome, empty if the worker never ran
	ExitCode   int            // Worker exit code
	Published  bool           // True if a pull request was opened
	Retained   bool           // True if the worktree was kept for review
}

// Succeeded reports whether the task reached done.
func (r TaskResult) Succeeded() bool {
	return r.Err == nil
}

// SkippedTask is a task directory the driver did not process.
type SkippedTask struct {
	TaskID string
	Reason string
}

// ProcessJarOutput contains the summary of a jar run.
// Fields are ordered to minimize memory padding.
type ProcessJarOutput struct {
	Results   []TaskResult  // Processed tasks in processing order
	Skipped   []SkippedTask // Ineligible or unreadable task directories
	Retained  []string      // Worktrees kept for review
	Date      string        // Processed partition
	Succeeded int
	Failed    int
}

// Processed returns the number of tasks that were picked up.
func (o *ProcessJarOutput) Processed() int {
	return len(o.Results)
}

// ProcessJar is the use case for draining one jar partition sequentially.
// Fields are ordered to minimize memory padding.
type ProcessJar struct {
	jars         domain.JarStore
	provisioner  domain.WorkspaceProvisioner
	sessions     domain.SessionStore
	runner       domain.WorkerRunner
	publisher    domain.Publisher
	history      domain.RunHistory
	configLoader domain.ConfigLoader
	clock        domain.Clock
	logger       domain.Logger
	root         string
}

// NewProcessJar creates a new ProcessJar use case.
func NewProcessJar(
	jars domain.JarStore,
	provisioner domain.WorkspaceProvisioner,
	sessions domain.SessionStore,
	runner domain.WorkerRunner,
	publisher domain.Publisher,
	history domain.RunHistory,
	configLoader domain.ConfigLoader,
	clock domain.Clock,
	logger domain.Logger,
	root string,
) *ProcessJar {
	return &ProcessJar{
		jars:         jars,
		provisioner:  provisioner,
		sessions:     sessions,
		runner:       runner,
		publisher:    publisher,
		history:      history,
		configLoader: configLoader,
		clock:        clock,
		logger:       logger,
		root:         root,
	}
}

// Execute processes every eligible task of the partition in lexicographic order.
// Per-task failures are recorded on the task and never abort the batch.
// It returns an error only when the partition cannot be listed or ctx is cancelled.
func (uc *ProcessJar) Execute(ctx context.Context, in ProcessJarInput) (*ProcessJarOutput, error) {
	cfg, err := uc.configLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	date := in.Date
	if date == "" {
		date = domain.Partition(uc.clock.Now())
	}
	if err := domain.ValidatePartition(date); err != nil {
		return nil, err
	}
	if pl, ok := uc.logger.(domain.PartitionLogger); ok {
		scoped := *uc
		scoped.logger = pl.ForPartition(date)
		uc = &scoped
	}

	observer := in.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	entries, err := uc.jars.List(date)
	if err != nil {
		return nil, fmt.Errorf("list jar %s: %w", date, err)
	}

	out := &ProcessJarOutput{Date: date}
	uc.logger.Info("", "jar", fmt.Sprintf("processing %d task directories for %s", len(entries), date))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if entry.Err != nil {
			reason := entry.Err.Error()
			out.Skipped = append(out.Skipped, SkippedTask{TaskID: entry.TaskID, Reason: reason})
			observer.TaskSkipped(entry.TaskID, reason)
			uc.logger.Warn("", "jar", fmt.Sprintf("skipping %s: %s", entry.TaskID, reason))
			continue
		}

		// The directory name is the task id; worktree, session and log paths derive from it
		rec := entry.Record
		rec.TaskID = entry.TaskID
		if !rec.Status.IsEligible() {
			reason := fmt.Sprintf("status is '%s'", rec.Status)
			out.Skipped = append(out.Skipped, SkippedTask{TaskID: rec.TaskID, Reason: reason})
			observer.TaskSkipped(rec.TaskID, reason)
			uc.logger.Debug(rec.TaskID, "jar", "skipped: "+reason)
			continue
		}

		observer.TaskStarted(i+1, len(entries), rec)
		result := uc.processTask(ctx, cfg, date, rec, in.Publish)
		observer.TaskFinished(result)

		out.Results = append(out.Results, result)
		if result.Succeeded() {
			out.Succeeded++
		} else {
			out.Failed++
		}
		if result.Retained {
			out.Retained = append(out.Retained, result.Workspace)
		}

		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			return out, ctx.Err()
		}
	}

	uc.signalEnclosing(in.EnclosingStatePath)

	uc.logger.Info("", "jar", fmt.Sprintf("jar %s complete: processed=%d succeeded=%d failed=%d skipped=%d",
		date, out.Processed(), out.Succeeded, out.Failed, len(out.Skipped)))
	return out, nil
}

// processTask drives one record through provision, session, worker and publish.
func (uc *ProcessJar) processTask(ctx context.Context, cfg *domain.Config, date string, rec *domain.TaskRecord, publish bool) TaskResult {
	result := TaskResult{TaskID: rec.TaskID}

	rec.Status = domain.StatusRunning
	rec.LastError = ""
	uc.saveRecord(rec)
	uc.logger.Info(rec.TaskID, "jar", fmt.Sprintf("crunching task (repo=%s base=%s)", rec.SourceLocation, rec.BaseBranch))

	ws, err := uc.provisioner.Create(ctx, domain.CreateWorkspaceRequest{
		Source: rec.SourceLocation,
		Base:   rec.BaseBranch,
		TaskID: rec.TaskID,
	})
	if err != nil {
		return uc.fail(rec, result, StageProvision, err)
	}
	result.Workspace = ws.Path
	rec.WorkspacePath = ws.Path
	rec.BranchName = ws.Branch
	uc.saveRecord(rec)

	state, statePath, err := uc.beginSession(cfg, date, rec, ws)
	if err != nil {
		result.Retained = true
		return uc.fail(rec, result, StageSession, err)
	}
	result.SessionDir = state.SessionDir

	state.AdvanceStep(domain.StepExecution)
	if err := uc.sessions.Save(statePath, state); err != nil {
		uc.logger.Warn(rec.TaskID, "session", "save state: "+err.Error())
	}

	inv, runErr := uc.runner.Run(ctx, domain.WorkerRequest{
		Enclosing: state,
		Command:   cfg.WorkerArgv(jarWorkerPrompt(state.SessionDir)),
		TaskID:    rec.TaskID,
		Env:       []string{domain.StateFileEnv + "=" + statePath},
		Dir:       ws.Path,
		LogPath:   filepath.Join(state.SessionDir, domain.WorkerLogFileName),
		Timeout:   cfg.WorkerTimeout(),
	})
	if inv != nil {
		result.Outcome = inv.Outcome
		result.ExitCode = inv.ExitCode
	}

	var pub *domain.PublishResult
	stage := ""
	switch {
	case runErr != nil:
		stage = StageWorker
	case !inv.Outcome.Succeeded():
		stage = StageWorker
		runErr = fmt.Errorf("worker finished without completion marker (outcome=%s, exit=%d, log=%s)",
			inv.Outcome, inv.ExitCode, inv.LogPath)
	default:
		mode := domain.PublishDraft
		if publish {
			mode = domain.PublishPR
		}
		pub, runErr = uc.publisher.Publish(ctx, domain.PublishRequest{
			WorkspacePath: ws.Path,
			Branch:        ws.Branch,
			TaskID:        rec.TaskID,
			Remote:        cfg.Publish.Remote,
			Mode:          mode,
		})
		if runErr != nil {
			stage = StagePublish
		}
	}
	if pub != nil {
		result.Published = pub.Published
		result.PRURL = pub.URL
	}

	state.End(runErr == nil)
	if err := uc.sessions.Save(statePath, state); err != nil {
		uc.logger.Warn(rec.TaskID, "session", "save state: "+err.Error())
	}

	if inv != nil {
		run := domain.NewRunRecord(date, rec.TaskID, inv, result.Published, runErr, uc.clock.Now())
		if err := uc.history.Record(ctx, run); err != nil {
			uc.logger.Warn(rec.TaskID, "history", "record run: "+err.Error())
		}
	}

	if publish && runErr == nil && result.Published {
		uc.provisioner.Destroy(ctx, ws)
		rec.WorkspacePath = ""
	} else {
		result.Retained = true
		uc.logger.Info(rec.TaskID, "workspace", "worktree kept for review: "+ws.Path)
	}

	if runErr != nil {
		return uc.fail(rec, result, stage, runErr)
	}

	rec.Status = domain.StatusDone
	uc.saveRecord(rec)
	uc.logger.Info(rec.TaskID, "jar", "task crunched")
	return result
}

// beginSession creates the session directory, copies the brief and writes state.json.
func (uc *ProcessJar) beginSession(cfg *domain.Config, date string, rec *domain.TaskRecord, ws *domain.Workspace) (*domain.SessionState, string, error) {
	sessionDir := domain.SessionDir(uc.root, date, rec.TaskID)
	if err := os.MkdirAll(sessionDir, 0o750); err != nil {
		return nil, "", fmt.Errorf("create session directory: %w", err)
	}

	brief, err := os.ReadFile(filepath.Join(rec.Dir, rec.Brief()))
	if err != nil {
		return nil, "", fmt.Errorf("read task brief: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sessionDir, domain.DefaultBriefFile), brief, 0o600); err != nil {
		return nil, "", fmt.Errorf("copy task brief: %w", err)
	}

	state := domain.BeginSession(uc.clock.Now(), domain.SessionOptions{
		WorkingDir:           ws.Path,
		SessionDir:           sessionDir,
		OriginalPrompt:       "Autonomous execution from jar",
		MaxTimeMinutes:       cfg.Session.MaxTimeMinutes,
		MaxIterations:        cfg.Session.MaxIterations,
		WorkerTimeoutSeconds: cfg.Worker.NestedTimeoutSeconds,
	})
	statePath := domain.StatePath(sessionDir)
	if err := uc.sessions.Save(statePath, state); err != nil {
		return nil, "", err
	}
	if err := uc.sessions.Register(ws.Path, sessionDir); err != nil {
		uc.logger.Warn(rec.TaskID, "session", "register session: "+err.Error())
	}
	return state, statePath, nil
}

// fail marks the record failed and writes the handoff note.
func (uc *ProcessJar) fail(rec *domain.TaskRecord, result TaskResult, stage string, err error) TaskResult {
	result.Err = err
	result.Stage = stage

	rec.Status = domain.StatusFailed
	rec.LastError = err.Error()
	uc.saveRecord(rec)

	note := domain.HandoffNote{
		Time:      uc.clock.Now(),
		TaskID:    rec.TaskID,
		Stage:     stage,
		Workspace: result.Workspace,
		Error:     err.Error(),
	}
	if werr := uc.jars.WriteHandoff(rec, note); werr != nil {
		uc.logger.Error(rec.TaskID, "jar", "write handoff: "+werr.Error())
	}
	uc.logger.Error(rec.TaskID, "jar", fmt.Sprintf("task failed at %s: %v", stage, err))
	return result
}

func (uc *ProcessJar) saveRecord(rec *domain.TaskRecord) {
	rec.UpdatedAt = uc.clock.Now()
	if err := uc.jars.Save(rec); err != nil {
		uc.logger.Error(rec.TaskID, "jar", "save record: "+err.Error())
	}
}

// signalEnclosing marks the session that started the run as jar-complete.
func (uc *ProcessJar) signalEnclosing(statePath string) {
	if statePath == "" {
		return
	}
	state := uc.sessions.Peek(statePath)
	if state == nil {
		uc.logger.Warn("", "session", "could not signal jar completion: no readable state at "+statePath)
		return
	}
	state.JarComplete = true
	state.Active = false
	if err := uc.sessions.Save(statePath, state); err != nil {
		uc.logger.Warn("", "session", "could not signal jar completion: "+err.Error())
		return
	}
	uc.logger.Info("", "session", "jar complete, session deactivated: "+statePath)
}

// jarWorkerPrompt is the instruction handed to the primary worker.
func jarWorkerPrompt(sessionDir string) string {
	return fmt.Sprintf("Implement the task described in %s. "+
		"Work only inside the current directory and commit your changes. "+
		"When the task is complete, print %s",
		filepath.Join(sessionDir, domain.DefaultBriefFile), domain.CompletionMarker)
}
