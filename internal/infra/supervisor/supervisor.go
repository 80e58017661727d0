// Package supervisor runs external worker processes under a deadline and
// classifies their outcome from the captured output.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runoshun/git-jar/internal/domain"
)

// scanChunkSize is the read size used when scanning logs for the completion marker.
const scanChunkSize = 64 * 1024

// Supervisor implements domain.WorkerRunner.
type Supervisor struct {
	clock  domain.Clock
	logger domain.Logger
}

// New creates a new Supervisor.
func New(clock domain.Clock, logger domain.Logger) *Supervisor {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Supervisor{clock: clock, logger: logger}
}

// Ensure Supervisor implements domain.WorkerRunner interface.
var _ domain.WorkerRunner = (*Supervisor)(nil)

// Run launches the worker with stdout and stderr appended to req.LogPath and
// waits for it to exit. At the deadline the whole process group is killed.
// Cancelling ctx kills the process group too; the partial invocation is
// returned together with ctx.Err().
func (s *Supervisor) Run(ctx context.Context, req domain.WorkerRequest) (*domain.WorkerInvocation, error) {
	if len(req.Command) == 0 || req.Command[0] == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrLaunch, domain.ErrEmptyCommand)
	}

	now := s.clock.Now()
	inv := &domain.WorkerInvocation{
		ID:               uuid.NewString(),
		Command:          append([]string(nil), req.Command...),
		Dir:              req.Dir,
		LogPath:          req.LogPath,
		RequestedTimeout: req.Timeout,
		EffectiveTimeout: domain.EffectiveTimeout(req.Timeout, req.Enclosing, now),
		StartedAt:        now,
		Outcome:          domain.OutcomeFailure,
		ExitCode:         -1,
	}
	if inv.EffectiveTimeout != inv.RequestedTimeout {
		s.logger.Info(req.TaskID, "supervisor", fmt.Sprintf("timeout clamped to %s by session budget (requested %s)",
			inv.EffectiveTimeout, inv.RequestedTimeout))
	}

	logFile, offset, err := openLog(req.LogPath, req.Dir, req.Command)
	if err != nil {
		inv.FinishedAt = s.clock.Now()
		return inv, fmt.Errorf("%w: %w", domain.ErrLaunch, err)
	}

	// #nosec G204 - worker command comes from configuration
	cmd := exec.Command(req.Command[0], req.Command[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), req.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_, _ = fmt.Fprintf(logFile, "[LAUNCH ERROR] %v\n", err)
		_ = logFile.Close()
		inv.FinishedAt = s.clock.Now()
		return inv, fmt.Errorf("%w: %s: %w", domain.ErrLaunch, req.Command[0], err)
	}
	s.logger.Info(req.TaskID, "supervisor", fmt.Sprintf("started worker %s (pid %d, timeout %s)",
		inv.ID, cmd.Process.Pid, inv.EffectiveTimeout))

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	var deadline <-chan time.Time
	if inv.EffectiveTimeout > 0 {
		timer := time.NewTimer(inv.EffectiveTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var timedOut bool
	var ctxErr error
	select {
	case <-done:
	case <-deadline:
		timedOut = true
		killProcessGroup(cmd)
		<-done
		_, _ = fmt.Fprintf(logFile, "\n[TIMEOUT] worker exceeded %s; process group killed\n", inv.EffectiveTimeout)
	case <-ctx.Done():
		ctxErr = ctx.Err()
		killProcessGroup(cmd)
		<-done
		_, _ = fmt.Fprintf(logFile, "\n[CANCELLED] %v\n", ctxErr)
	}
	inv.FinishedAt = s.clock.Now()

	if timedOut {
		inv.ExitCode = domain.TimeoutExitCode
	} else {
		inv.ExitCode = exitCode(cmd.ProcessState)
	}

	if err := logFile.Sync(); err != nil {
		s.logger.Warn(req.TaskID, "supervisor", fmt.Sprintf("sync worker log: %v", err))
	}
	if err := logFile.Close(); err != nil {
		s.logger.Warn(req.TaskID, "supervisor", fmt.Sprintf("close worker log: %v", err))
	}

	found, err := scanLog(req.LogPath, offset)
	if err != nil {
		s.logger.Warn(req.TaskID, "supervisor", fmt.Sprintf("scan worker log: %v", err))
	}
	inv.Outcome = domain.Classify(found, timedOut)

	s.logger.Info(req.TaskID, "supervisor", fmt.Sprintf("worker %s finished: outcome=%s exit=%d duration=%s",
		inv.ID, inv.Outcome, inv.ExitCode, inv.Duration().Round(time.Second)))

	return inv, ctxErr
}

// openLog opens the worker log for appending and writes the run header.
// It returns the file and the offset where worker output begins.
func openLog(path, dir string, command []string) (*os.File, int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, 0, fmt.Errorf("create log directory: %w", err)
	}
	// G302: worker logs are read by the user after the run
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // Log file readable by owner and group
	if err != nil {
		return nil, 0, fmt.Errorf("open worker log: %w", err)
	}
	header := fmt.Sprintf("CWD: %s\nCommand: %s\n%s\n", dir, strings.Join(command, " "), strings.Repeat("-", 40))
	if _, err := io.WriteString(f, header); err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("write worker log header: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat worker log: %w", err)
	}
	return f, info.Size(), nil
}

// scanLog reports whether the completion marker appears in the log after offset.
func scanLog(path string, offset int64) (bool, error) {
	f, err := os.Open(path) //nolint:gosec // path is our own log file
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return false, err
	}
	return containsMarker(bufio.NewReaderSize(f, scanChunkSize))
}

// containsMarker streams r looking for the completion marker, keeping enough
// overlap between chunks to catch a marker split across reads.
func containsMarker(r io.Reader) (bool, error) {
	marker := []byte(domain.CompletionMarker)
	overlap := len(marker) - 1
	buf := make([]byte, 0, scanChunkSize+overlap)
	chunk := make([]byte, scanChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, marker) {
				return true, nil
			}
			if len(buf) > overlap {
				buf = append(buf[:0], buf[len(buf)-overlap:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
