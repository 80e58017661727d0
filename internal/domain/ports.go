package domain

import (
	"context"
	"time"
)

// JarStore persists task records in date partitions.
type JarStore interface {
	// List returns every task directory in a partition, sorted by name.
	// Entries whose metadata cannot be read carry an error instead of a record.
	// Returns ErrJarNotFound if the partition does not exist.
	List(date string) ([]JarEntry, error)

	// Partitions returns the existing partition names, oldest first.
	Partitions() ([]string, error)

	// Get reads a single task record. Returns ErrTaskNotFound if it does not exist.
	Get(date, taskID string) (*TaskRecord, error)

	// Create writes a new task directory with its record and brief.
	// Returns ErrTaskExists if the partition already holds the task.
	Create(date string, record *TaskRecord, brief []byte) error

	// Save rewrites the record in record.Dir.
	Save(record *TaskRecord) error

	// WriteHandoff writes a failure note next to the record.
	WriteHandoff(record *TaskRecord, note HandoffNote) error

	// ReadHandoff reads the failure note of a record, nil if there is none.
	ReadHandoff(record *TaskRecord) (*HandoffNote, error)
}

// CreateWorkspaceRequest describes a workspace to provision.
type CreateWorkspaceRequest struct {
	Source string // Source repository
	Base   string // Base branch or revision
	TaskID string
}

// WorkspaceProvisioner creates and destroys per-task git worktrees.
type WorkspaceProvisioner interface {
	// Create provisions a fresh worktree, replacing any stale one for the same task.
	// Errors wrap ErrProvisioning.
	Create(ctx context.Context, req CreateWorkspaceRequest) (*Workspace, error)

	// Destroy removes the worktree. It never fails; problems are logged.
	Destroy(ctx context.Context, ws *Workspace)
}

// SessionStore persists session state files.
type SessionStore interface {
	// Load reads a state file. Returns ErrSessionNotFound if it does not exist.
	Load(path string) (*SessionState, error)

	// Peek reads a state file, returning nil when it is missing or unparseable.
	Peek(path string) *SessionState

	// Save writes a state file atomically.
	Save(path string, state *SessionState) error

	// Register maps a worktree path to its session directory.
	Register(worktree, sessionDir string) error

	// Lookup returns the session directory registered for a worktree.
	// Returns ErrSessionNotFound if none is registered.
	Lookup(worktree string) (string, error)
}

// WorkerRequest describes one bounded worker invocation.
// Fields are ordered to minimize memory padding.
type WorkerRequest struct {
	Enclosing *SessionState // Budget source; nil means no enclosing session
	Command   []string
	TaskID    string // Used for logging only
	Env       []string // Extra KEY=VALUE entries appended to the inherited environment
	Dir       string
	LogPath   string
	Timeout   time.Duration // Requested timeout
}

// WorkerRunner runs external worker processes under a deadline.
type WorkerRunner interface {
	// Run launches the worker and blocks until it exits or is killed.
	// A non-zero exit or a timeout is reported in the invocation, not as an error.
	// Errors wrapping ErrLaunch mean the process never started.
	Run(ctx context.Context, req WorkerRequest) (*WorkerInvocation, error)
}

// PublishMode selects how a finished workspace is handed off.
type PublishMode string

// Publish modes.
const (
	PublishDraft PublishMode = "draft"   // Write artifacts into the workspace only
	PublishPR    PublishMode = "publish" // Push and open a pull request
)

// PublishRequest describes a handoff.
type PublishRequest struct {
	WorkspacePath string
	Branch        string
	TaskID        string
	Remote        string // Preferred remote; empty picks origin or the first remote
	Mode          PublishMode
}

// PublishResult reports what the handoff did.
type PublishResult struct {
	Title     string
	Remote    string
	URL       string
	Published bool
}

// Publisher performs the publication handoff of a successful run.
type Publisher interface {
	// Publish hands the workspace off. Errors wrap ErrPublication.
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}

// Git provides read access to repositories and the few write operations
// outside worktree management.
type Git interface {
	// CurrentBranch returns the checked out branch of the repository at dir.
	CurrentBranch(dir string) (string, error)

	// Remotes returns the configured remote names of the repository at dir.
	Remotes(dir string) ([]string, error)

	// Push pushes branch to remote with upstream tracking.
	Push(ctx context.Context, dir, remote, branch string) error
}

// Identity resolves the actor used in task branch names.
type Identity interface {
	// Actor never fails; it falls back to DefaultActor.
	Actor(ctx context.Context) string
}

// HistoryFilter restricts a history query.
type HistoryFilter struct {
	TaskID string
	Date   string
	Limit  int
}

// RunHistory is the ledger of worker invocations made by the queue driver.
type RunHistory interface {
	// Record appends a run.
	Record(ctx context.Context, rec RunRecord) error

	// List returns runs matching the filter, newest first.
	List(ctx context.Context, filter HistoryFilter) ([]RunRecord, error)
}

// Logger writes to the global log and, for a non-empty task id, the task log.
type Logger interface {
	Debug(taskID, category, msg string)
	Info(taskID, category, msg string)
	Warn(taskID, category, msg string)
	Error(taskID, category, msg string)
}

// PartitionLogger is implemented by loggers that can tag entries with the
// jar date being processed.
type PartitionLogger interface {
	ForPartition(date string) Logger
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, string, string) {}
func (NopLogger) Info(string, string, string)  {}
func (NopLogger) Warn(string, string, string)  {}
func (NopLogger) Error(string, string, string) {}

// ConfigLoader loads configuration from files.
type ConfigLoader interface {
	// Load returns the merged configuration (defaults, global, explicit file).
	Load() (*Config, error)
}

// ConfigManager manages the global configuration file.
type ConfigManager interface {
	// GlobalConfigInfo describes the global config file.
	GlobalConfigInfo() ConfigInfo

	// InitGlobalConfig writes the default template and returns its path.
	// Returns ErrConfigExists unless force is set.
	InitGlobalConfig(force bool) (string, error)
}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
