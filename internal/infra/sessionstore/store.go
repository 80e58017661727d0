// Package sessionstore persists session state files and the registry that maps
// worktrees to their sessions.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/runoshun/git-jar/internal/domain"
)

// Store implements domain.SessionStore on the local filesystem.
//
// Layout:
//
//	<root>/sessions/<date>-<task_id>/state.json
//	<root>/sessions/current_sessions.json
//	<root>/sessions/.lock
type Store struct {
	registryPath string
	lockPath     string
}

// New creates a new Store under root.
func New(root string) *Store {
	dir := domain.SessionsDir(root)
	return &Store{
		registryPath: domain.RegistryPath(root),
		lockPath:     filepath.Join(dir, ".lock"),
	}
}

// Ensure Store implements domain.SessionStore interface.
var _ domain.SessionStore = (*Store)(nil)

// Load reads a state file.
func (s *Store) Load(path string) (*domain.SessionState, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a session state file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, path)
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return &state, nil
}

// Peek reads a state file and treats a missing or corrupt file as absent.
func (s *Store) Peek(path string) *domain.SessionState {
	if path == "" {
		return nil
	}
	state, err := s.Load(path)
	if err != nil {
		return nil
	}
	return state
}

// Save writes the state atomically so readers never observe a partial file.
func (s *Store) Save(path string, state *domain.SessionState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return writeAtomic(path, append(data, '\n'), 0o600)
}

// Register maps a worktree to its session directory.
func (s *Store) Register(worktree, sessionDir string) error {
	return s.withLockWrite(func() error {
		registry, err := s.readRegistry()
		if err != nil {
			return err
		}
		registry[filepath.Clean(worktree)] = sessionDir
		data, err := json.MarshalIndent(registry, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal registry: %w", err)
		}
		return writeAtomic(s.registryPath, append(data, '\n'), 0o600)
	})
}

// Lookup returns the session directory registered for a worktree.
func (s *Store) Lookup(worktree string) (string, error) {
	var dir string
	err := s.withLock(func() error {
		registry, err := s.readRegistry()
		if err != nil {
			return err
		}
		var ok bool
		dir, ok = registry[filepath.Clean(worktree)]
		if !ok {
			return fmt.Errorf("%w: no session registered for %s", domain.ErrSessionNotFound, worktree)
		}
		return nil
	})
	return dir, err
}

// readRegistry returns an empty registry when the file is missing or corrupt.
func (s *Store) readRegistry() (map[string]string, error) {
	registry := make(map[string]string)
	data, err := os.ReadFile(s.registryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return registry, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if err := json.Unmarshal(data, &registry); err != nil {
		return make(map[string]string), nil
	}
	return registry, nil
}

func (s *Store) withLock(fn func() error) error {
	lock, err := s.acquireLock(syscall.LOCK_SH)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)
	return fn()
}

func (s *Store) withLockWrite(fn func() error) error {
	lock, err := s.acquireLock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer s.releaseLock(lock)
	return fn()
}

func (s *Store) acquireLock(lockType int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return lock, nil
}

func (s *Store) releaseLock(lock *os.File) {
	_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
	_ = lock.Close()
}

// writeAtomic writes through a temp file in the same directory and renames it
// into place.
func writeAtomic(path string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
