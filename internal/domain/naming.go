package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PartitionLayout is the date format used for jar partitions.
const PartitionLayout = "2006-01-02"

// File names used inside the data root.
const (
	MetaFileName       = "meta.json"
	HandoffFileName    = "handoff.md"
	StateFileName      = "state.json"
	RegistryFileName   = "current_sessions.json"
	WorkerLogFileName  = "worker.log"
	HistoryFileName    = "history.db"
	GlobalLogFileName  = "jar.log"
	PRTitleFileName    = "pr_title.txt"
	PRBodyFileName     = "pr_body.md"
	StateFileEnv       = "JAR_STATE_FILE"
	HomeEnv            = "JAR_HOME"
	workerSessionLogFn = "worker_session_"
)

// Partition formats t as a jar partition name.
func Partition(t time.Time) string {
	return t.Format(PartitionLayout)
}

// ValidatePartition checks that date is a YYYY-MM-DD partition name.
func ValidatePartition(date string) error {
	if _, err := time.Parse(PartitionLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// ValidateTaskID checks that id can name a task directory, worktree and
// session without leaving their parent directories.
func ValidateTaskID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, id)
	}
	return nil
}

// JarDir returns the directory holding all jar partitions.
func JarDir(root string) string {
	return filepath.Join(root, "jar")
}

// PartitionDir returns the directory of a single jar partition.
func PartitionDir(root, date string) string {
	return filepath.Join(JarDir(root), date)
}

// TaskDir returns the directory of a task record.
func TaskDir(root, date, taskID string) string {
	return filepath.Join(PartitionDir(root, date), taskID)
}

// WorktreesDir returns the directory holding task worktrees.
func WorktreesDir(root string) string {
	return filepath.Join(root, "worktrees")
}

// WorktreePath returns the worktree of a task inside worktreeDir: worktree-<task_id>.
func WorktreePath(worktreeDir, taskID string) string {
	return filepath.Join(worktreeDir, "worktree-"+taskID)
}

// SessionsDir returns the directory holding session state.
func SessionsDir(root string) string {
	return filepath.Join(root, "sessions")
}

// SessionDir returns the session directory of a task run: <date>-<task_id>.
func SessionDir(root, date, taskID string) string {
	return filepath.Join(SessionsDir(root), date+"-"+taskID)
}

// StatePath returns the state.json inside a session directory.
func StatePath(sessionDir string) string {
	return filepath.Join(sessionDir, StateFileName)
}

// RegistryPath returns the worktree to session registry file.
func RegistryPath(root string) string {
	return filepath.Join(SessionsDir(root), RegistryFileName)
}

// LogsDir returns the log directory.
func LogsDir(root string) string {
	return filepath.Join(root, "logs")
}

// GlobalLogPath returns the global log file.
func GlobalLogPath(root string) string {
	return filepath.Join(LogsDir(root), GlobalLogFileName)
}

// TaskLogPath returns the per-task log file.
func TaskLogPath(root, taskID string) string {
	return filepath.Join(LogsDir(root), "task-"+taskID+".log")
}

// HistoryPath returns the run history database.
func HistoryPath(root string) string {
	return filepath.Join(root, HistoryFileName)
}

// WorkerSessionLogPath returns the log of a nested worker run under a ticket directory.
func WorkerSessionLogPath(ticketDir, shortID string) string {
	return filepath.Join(ticketDir, workerSessionLogFn+shortID+".log")
}
