// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/runoshun/git-jar/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// MockConfigLoader is a test double for domain.ConfigLoader.
type MockConfigLoader struct {
	Config  *domain.Config
	LoadErr error
}

// Load returns the configured config or a default one.
func (m *MockConfigLoader) Load() (*domain.Config, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Config == nil {
		return domain.NewDefaultConfig(), nil
	}
	return m.Config, nil
}

// MockJarStore is an in-memory domain.JarStore.
// Fields are ordered to minimize memory padding.
type MockJarStore struct {
	Tasks       map[string]map[string]*domain.TaskRecord // date -> task id -> record
	Broken      map[string]map[string]error             // date -> task id -> metadata error
	Briefs      map[string][]byte                       // task dir -> brief
	Handoffs    map[string]domain.HandoffNote           // task id -> note
	SaveHistory []domain.TaskRecord                     // every saved record, in order
	ListErr     error
	SaveErr     error
	CreateErr   error
}

// NewMockJarStore creates an empty MockJarStore.
func NewMockJarStore() *MockJarStore {
	return &MockJarStore{
		Tasks:       make(map[string]map[string]*domain.TaskRecord),
		Broken:      make(map[string]map[string]error),
		Briefs:      make(map[string][]byte),
		Handoffs:    make(map[string]domain.HandoffNote),
	}
}

// Put adds a record to a partition.
func (m *MockJarStore) Put(date string, rec *domain.TaskRecord) {
	if m.Tasks[date] == nil {
		m.Tasks[date] = make(map[string]*domain.TaskRecord)
	}
	if rec.Dir == "" {
		rec.Dir = filepath.Join("/jar", date, rec.TaskID)
	}
	m.Tasks[date][rec.TaskID] = rec
}

// PutBroken adds a task directory whose metadata cannot be read.
func (m *MockJarStore) PutBroken(date, taskID string) {
	if m.Broken[date] == nil {
		m.Broken[date] = make(map[string]error)
	}
	if m.Tasks[date] == nil {
		m.Tasks[date] = make(map[string]*domain.TaskRecord)
	}
	m.Broken[date][taskID] = fmt.Errorf("%w: %s", domain.ErrMetadata, taskID)
}

// List returns entries sorted by task id.
func (m *MockJarStore) List(date string) ([]domain.JarEntry, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	recs, ok := m.Tasks[date]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJarNotFound, date)
	}
	var entries []domain.JarEntry
	for id, rec := range recs {
		entries = append(entries, domain.JarEntry{TaskID: id, Dir: rec.Dir, Record: rec})
	}
	for id, err := range m.Broken[date] {
		entries = append(entries, domain.JarEntry{TaskID: id, Dir: filepath.Join("/jar", date, id), Err: err})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TaskID < entries[j].TaskID })
	return entries, nil
}

// Partitions returns the known partition names sorted.
func (m *MockJarStore) Partitions() ([]string, error) {
	var dates []string
	for d := range m.Tasks {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// Get returns a record.
func (m *MockJarStore) Get(date, taskID string) (*domain.TaskRecord, error) {
	rec, ok := m.Tasks[date][taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrTaskNotFound, date, taskID)
	}
	return rec, nil
}

// Create stores a new record.
func (m *MockJarStore) Create(date string, rec *domain.TaskRecord, brief []byte) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.Tasks[date][rec.TaskID]; ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrTaskExists, date, rec.TaskID)
	}
	rec.Dir = filepath.Join("/jar", date, rec.TaskID)
	m.Put(date, rec)
	m.Briefs[rec.Dir] = brief
	return nil
}

// Save records a snapshot of the saved record.
func (m *MockJarStore) Save(rec *domain.TaskRecord) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.SaveHistory = append(m.SaveHistory, *rec)
	return nil
}

// WriteHandoff stores the note by task id.
func (m *MockJarStore) WriteHandoff(rec *domain.TaskRecord, note domain.HandoffNote) error {
	m.Handoffs[rec.TaskID] = note
	return nil
}

// ReadHandoff returns the stored note, nil if none.
func (m *MockJarStore) ReadHandoff(rec *domain.TaskRecord) (*domain.HandoffNote, error) {
	note, ok := m.Handoffs[rec.TaskID]
	if !ok {
		return nil, nil
	}
	return &note, nil
}

// StatusesSaved returns the statuses saved for a task, in order.
func (m *MockJarStore) StatusesSaved(taskID string) []domain.Status {
	var statuses []domain.Status
	for _, rec := range m.SaveHistory {
		if rec.TaskID == taskID {
			statuses = append(statuses, rec.Status)
		}
	}
	return statuses
}

// MockProvisioner is a test double for domain.WorkspaceProvisioner.
// Fields are ordered to minimize memory padding.
type MockProvisioner struct {
	CreateErrs map[string]error // task id -> error
	Created    []domain.CreateWorkspaceRequest
	Destroyed  []*domain.Workspace
	Root       string
}

// Create returns a workspace under Root (or /worktrees) unless an error is configured.
func (m *MockProvisioner) Create(_ context.Context, req domain.CreateWorkspaceRequest) (*domain.Workspace, error) {
	m.Created = append(m.Created, req)
	if err := m.CreateErrs[req.TaskID]; err != nil {
		return nil, err
	}
	root := m.Root
	if root == "" {
		root = "/worktrees"
	}
	return &domain.Workspace{
		Path:       domain.WorktreePath(root, req.TaskID),
		Branch:     domain.BranchName("tester", req.TaskID),
		Source:     req.Source,
		BaseBranch: req.Base,
		BaseCommit: "0123456789abcdef0123456789abcdef01234567",
		TaskID:     req.TaskID,
	}, nil
}

// Destroy records the call.
func (m *MockProvisioner) Destroy(_ context.Context, ws *domain.Workspace) {
	m.Destroyed = append(m.Destroyed, ws)
}

// MockSessionStore is an in-memory domain.SessionStore.
type MockSessionStore struct {
	States   map[string]*domain.SessionState
	Registry map[string]string
	SaveErr  error
	mu       sync.Mutex
}

// NewMockSessionStore creates an empty MockSessionStore.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		States:   make(map[string]*domain.SessionState),
		Registry: make(map[string]string),
	}
}

// Load returns a copy of the stored state.
func (m *MockSessionStore) Load(path string) (*domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.States[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, path)
	}
	cp := *s
	return &cp, nil
}

// Peek returns a copy of the stored state or nil.
func (m *MockSessionStore) Peek(path string) *domain.SessionState {
	s, err := m.Load(path)
	if err != nil {
		return nil
	}
	return s
}

// Save stores a copy of the state.
func (m *MockSessionStore) Save(path string, state *domain.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *state
	m.States[path] = &cp
	return nil
}

// Register maps a worktree to a session directory.
func (m *MockSessionStore) Register(worktree, sessionDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Registry[worktree] = sessionDir
	return nil
}

// Lookup returns the registered session directory.
func (m *MockSessionStore) Lookup(worktree string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir, ok := m.Registry[worktree]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSessionNotFound, worktree)
	}
	return dir, nil
}

// WorkerScript describes how MockWorkerRunner answers one request.
type WorkerScript struct {
	Err      error
	Output   string // Written to the log path when non-empty
	Outcome  domain.Outcome
	ExitCode int
}

// MockWorkerRunner is a test double for domain.WorkerRunner.
// Scripts are keyed by TaskID; Default answers everything else.
type MockWorkerRunner struct {
	Scripts  map[string]WorkerScript
	Default  WorkerScript
	Requests []domain.WorkerRequest
	Clock    domain.Clock
}

// Run records the request and answers from the scripts.
func (m *MockWorkerRunner) Run(_ context.Context, req domain.WorkerRequest) (*domain.WorkerInvocation, error) {
	m.Requests = append(m.Requests, req)
	script, ok := m.Scripts[req.TaskID]
	if !ok {
		script = m.Default
	}
	now := time.Now()
	if m.Clock != nil {
		now = m.Clock.Now()
	}
	if script.Output != "" && req.LogPath != "" {
		_ = os.MkdirAll(filepath.Dir(req.LogPath), 0o750)
		_ = os.WriteFile(req.LogPath, []byte(script.Output), 0o600)
	}
	outcome := script.Outcome
	if outcome == "" {
		outcome = domain.OutcomeFailure
	}
	inv := &domain.WorkerInvocation{
		ID:               fmt.Sprintf("inv-%d", len(m.Requests)),
		Command:          req.Command,
		Dir:              req.Dir,
		LogPath:          req.LogPath,
		RequestedTimeout: req.Timeout,
		EffectiveTimeout: domain.EffectiveTimeout(req.Timeout, req.Enclosing, now),
		StartedAt:        now,
		FinishedAt:       now.Add(time.Second),
		Outcome:          outcome,
		ExitCode:         script.ExitCode,
	}
	if script.Err != nil {
		return inv, script.Err
	}
	return inv, nil
}

// MockPublisher is a test double for domain.Publisher.
type MockPublisher struct {
	Err      error
	Requests []domain.PublishRequest
}

// Publish records the request.
func (m *MockPublisher) Publish(_ context.Context, req domain.PublishRequest) (*domain.PublishResult, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if req.Mode == domain.PublishPR {
		return &domain.PublishResult{Title: "t", Remote: "origin", URL: "https://example.com/pr/1", Published: true}, nil
	}
	return &domain.PublishResult{Title: "t"}, nil
}

// PushCall records a MockGit.Push call.
type PushCall struct {
	Dir    string
	Remote string
	Branch string
}

// MockGit is a test double for domain.Git.
// Fields are ordered to minimize memory padding.
type MockGit struct {
	RemotesErr  error
	PushErr     error
	BranchErr   error
	RemoteNames []string
	PushCalls   []PushCall
	Branch      string
}

// CurrentBranch returns the configured branch, "main" by default.
func (m *MockGit) CurrentBranch(string) (string, error) {
	if m.BranchErr != nil {
		return "", m.BranchErr
	}
	if m.Branch == "" {
		return "main", nil
	}
	return m.Branch, nil
}

// Remotes returns the configured remotes.
func (m *MockGit) Remotes(string) ([]string, error) {
	if m.RemotesErr != nil {
		return nil, m.RemotesErr
	}
	return m.RemoteNames, nil
}

// Push records the call.
func (m *MockGit) Push(_ context.Context, dir, remote, branch string) error {
	m.PushCalls = append(m.PushCalls, PushCall{Dir: dir, Remote: remote, Branch: branch})
	return m.PushErr
}

// MockHistory is an in-memory domain.RunHistory.
type MockHistory struct {
	Err     error
	Records []domain.RunRecord
}

// Record appends a run.
func (m *MockHistory) Record(_ context.Context, rec domain.RunRecord) error {
	if m.Err != nil {
		return m.Err
	}
	rec.ID = int64(len(m.Records) + 1)
	m.Records = append(m.Records, rec)
	return nil
}

// List returns matching runs, newest first.
func (m *MockHistory) List(_ context.Context, filter domain.HistoryFilter) ([]domain.RunRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.RunRecord
	for i := len(m.Records) - 1; i >= 0; i-- {
		r := m.Records[i]
		if filter.TaskID != "" && r.TaskID != filter.TaskID {
			continue
		}
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// LogEntry is one line captured by MockLogger.
type LogEntry struct {
	Level     string
	Partition string // Set when logged through ForPartition
	TaskID    string
	Category  string
	Msg       string
}

// MockLogger captures log calls.
type MockLogger struct {
	Entries []LogEntry
	mu      sync.Mutex
}

func (m *MockLogger) add(partition, level, taskID, category, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, LogEntry{Level: level, Partition: partition, TaskID: taskID, Category: category, Msg: msg})
}

// ForPartition returns a view that records entries with the jar date.
func (m *MockLogger) ForPartition(date string) domain.Logger {
	return &partitionLogger{parent: m, date: date}
}

// Debug captures a debug entry.
func (m *MockLogger) Debug(taskID, category, msg string) { m.add("", "DEBUG", taskID, category, msg) }

// Info captures an info entry.
func (m *MockLogger) Info(taskID, category, msg string) { m.add("", "INFO", taskID, category, msg) }

// Warn captures a warn entry.
func (m *MockLogger) Warn(taskID, category, msg string) { m.add("", "WARN", taskID, category, msg) }

// Error captures an error entry.
func (m *MockLogger) Error(taskID, category, msg string) { m.add("", "ERROR", taskID, category, msg) }

type partitionLogger struct {
	parent *MockLogger
	date   string
}

func (p *partitionLogger) Debug(taskID, category, msg string) {
	p.parent.add(p.date, "DEBUG", taskID, category, msg)
}

func (p *partitionLogger) Info(taskID, category, msg string) {
	p.parent.add(p.date, "INFO", taskID, category, msg)
}

func (p *partitionLogger) Warn(taskID, category, msg string) {
	p.parent.add(p.date, "WARN", taskID, category, msg)
}

func (p *partitionLogger) Error(taskID, category, msg string) {
	p.parent.add(p.date, "ERROR", taskID, category, msg)
}

// MockConfigManager is a test double for domain.ConfigManager.
type MockConfigManager struct {
	InitErr    error
	Info       domain.ConfigInfo
	InitCalled bool
	InitForce  bool
}

// GlobalConfigInfo returns the configured info.
func (m *MockConfigManager) GlobalConfigInfo() domain.ConfigInfo {
	return m.Info
}

// InitGlobalConfig records the call.
func (m *MockConfigManager) InitGlobalConfig(force bool) (string, error) {
	m.InitCalled = true
	m.InitForce = force
	if m.InitErr != nil {
		return "", m.InitErr
	}
	return m.Info.Path, nil
}
