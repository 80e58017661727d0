// Package logging provides file-based logging for git-jar.
// It outputs logs to both a global log file (<root>/logs/jar.log)
// and task-specific log files (<root>/logs/task-<id>.log).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/runoshun/git-jar/internal/domain"
)

// Ensure Logger implements the domain logging interfaces.
var (
	_ domain.Logger          = (*Logger)(nil)
	_ domain.PartitionLogger = (*Logger)(nil)
)

// timeLayout is the timestamp format of every log line.
const timeLayout = "2006-01-02 15:04:05"

// Logger writes leveled entries to the global log and, when a task id is
// given, to that task's log. Loggers returned by ForPartition share the
// open files of their parent.
type Logger struct {
	files     *fileSet
	partition string // Jar date stamped on every entry; empty outside a batch
}

// fileSet holds the open log files shared by a Logger and its partition views.
// Fields are ordered to minimize memory padding.
type fileSet struct {
	clock  domain.Clock
	global *os.File
	tasks  map[string]*os.File
	root   string
	mu     sync.Mutex
	level  slog.Level
}

// New creates a new Logger that writes to <root>/logs.
// If root is empty, logging is disabled. A nil clock uses the wall clock.
func New(root string, level slog.Level, clock domain.Clock) *Logger {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &Logger{files: &fileSet{
		clock: clock,
		tasks: make(map[string]*os.File),
		root:  root,
		level: level,
	}}
}

// ParseLevel parses a config level ("debug", "info", "warn", "error").
// Unknown values fall back to info.
func ParseLevel(levelStr string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(levelStr))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ForPartition returns a logger that tags every entry with the jar date.
func (l *Logger) ForPartition(date string) domain.Logger {
	return &Logger{files: l.files, partition: date}
}

// Close closes all open log files. Files are reopened on the next entry.
func (l *Logger) Close() error {
	return l.files.close()
}

// Info logs an info message.
func (l *Logger) Info(taskID, category, msg string) {
	l.log(slog.LevelInfo, taskID, category, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(taskID, category, msg string) {
	l.log(slog.LevelDebug, taskID, category, msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(taskID, category, msg string) {
	l.log(slog.LevelWarn, taskID, category, msg)
}

// Error logs an error message.
func (l *Logger) Error(taskID, category, msg string) {
	l.log(slog.LevelError, taskID, category, msg)
}

func (l *Logger) log(level slog.Level, taskID, category, msg string) {
	fs := l.files
	if fs.root == "" || level < fs.level {
		return
	}
	entry := formatEntry(fs.clock.Now().Format(timeLayout), level, l.partition, taskID, category, msg)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Write failures are dropped; logging never fails a run
	if gf, err := fs.globalFile(); err == nil {
		_, _ = io.WriteString(gf, entry)
	}
	if taskID != "" {
		if tf, err := fs.taskFile(taskID); err == nil {
			_, _ = io.WriteString(tf, entry)
		}
	}
}

// formatEntry renders one log line:
//
//	[2026-03-01 09:32:51] [INFO] [jar 2026-03-01] [task-demo-1] [worker] message
//
// The jar bracket is present only for partition-scoped loggers.
func formatEntry(stamp string, level slog.Level, partition, taskID, category, msg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] ", stamp, level)
	if partition != "" {
		fmt.Fprintf(&b, "[jar %s] ", partition)
	}
	scope := "global"
	if taskID != "" {
		scope = "task-" + taskID
	}
	fmt.Fprintf(&b, "[%s] [%s] %s\n", scope, category, strings.TrimRight(msg, "\n"))
	return b.String()
}

// globalFile returns the open global log. Callers hold mu.
func (fs *fileSet) globalFile() (*os.File, error) {
	if fs.global != nil {
		return fs.global, nil
	}
	f, err := fs.open(domain.GlobalLogPath(fs.root))
	if err != nil {
		return nil, err
	}
	fs.global = f
	return f, nil
}

// taskFile returns the open log of taskID. Callers hold mu.
func (fs *fileSet) taskFile(taskID string) (*os.File, error) {
	if f, ok := fs.tasks[taskID]; ok {
		return f, nil
	}
	if domain.ValidateTaskID(taskID) != nil {
		return nil, fmt.Errorf("task log %q: %w", taskID, domain.ErrInvalidTaskID)
	}
	f, err := fs.open(domain.TaskLogPath(fs.root, taskID))
	if err != nil {
		return nil, err
	}
	fs.tasks[taskID] = f
	return f, nil
}

func (fs *fileSet) open(path string) (*os.File, error) {
	if err := os.MkdirAll(domain.LogsDir(fs.root), 0o750); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path under the data root
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func (fs *fileSet) close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var lastErr error
	if fs.global != nil {
		if err := fs.global.Close(); err != nil {
			lastErr = err
		}
		fs.global = nil
	}
	for id, f := range fs.tasks {
		if err := f.Close(); err != nil {
			lastErr = err
		}
		delete(fs.tasks, id)
	}
	return lastErr
}
