// Package jarstore stores task records in date-partitioned directories.
package jarstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runoshun/git-jar/internal/domain"
)

// Store implements domain.JarStore on the local filesystem.
//
// Layout:
//
//	<root>/jar/<YYYY-MM-DD>/<task_id>/
//	  meta.json   task record
//	  prd.md      task brief
//	  handoff.md  failure note (optional)
type Store struct {
	root string
}

// New creates a new Store under root.
func New(root string) *Store {
	return &Store{root: root}
}

// Ensure Store implements domain.JarStore interface.
var _ domain.JarStore = (*Store)(nil)

// List returns the task directories of a partition in lexicographic order.
func (s *Store) List(date string) ([]domain.JarEntry, error) {
	if err := domain.ValidatePartition(date); err != nil {
		return nil, err
	}
	dir := domain.PartitionDir(s.root, date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJarNotFound, date)
		}
		return nil, fmt.Errorf("read jar %s: %w", date, err)
	}

	// os.ReadDir returns entries sorted by filename
	var result []domain.JarEntry
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		taskDir := filepath.Join(dir, e.Name())
		entry := domain.JarEntry{TaskID: e.Name(), Dir: taskDir}
		entry.Record, entry.Err = readRecord(taskDir)
		result = append(result, entry)
	}
	return result, nil
}

// Partitions returns the existing partition names, oldest first.
func (s *Store) Partitions() ([]string, error) {
	entries, err := os.ReadDir(domain.JarDir(s.root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read jar directory: %w", err)
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() && domain.ValidatePartition(e.Name()) == nil {
			dates = append(dates, e.Name())
		}
	}
	return dates, nil
}

// Get reads a single task record.
func (s *Store) Get(date, taskID string) (*domain.TaskRecord, error) {
	if err := domain.ValidatePartition(date); err != nil {
		return nil, err
	}
	if err := domain.ValidateTaskID(taskID); err != nil {
		return nil, err
	}
	taskDir := domain.TaskDir(s.root, date, taskID)
	if _, err := os.Stat(taskDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrTaskNotFound, date, taskID)
		}
		return nil, fmt.Errorf("stat task directory: %w", err)
	}
	return readRecord(taskDir)
}

// Create writes a new task directory with its record and brief.
func (s *Store) Create(date string, record *domain.TaskRecord, brief []byte) error {
	if err := domain.ValidatePartition(date); err != nil {
		return err
	}
	if err := domain.ValidateTaskID(record.TaskID); err != nil {
		return err
	}
	taskDir := domain.TaskDir(s.root, date, record.TaskID)
	if _, err := os.Stat(filepath.Join(taskDir, domain.MetaFileName)); err == nil {
		return fmt.Errorf("%w: %s/%s", domain.ErrTaskExists, date, record.TaskID)
	}
	if err := os.MkdirAll(taskDir, 0o750); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(taskDir, record.Brief()), brief, 0o644); err != nil {
		return fmt.Errorf("write brief: %w", err)
	}
	record.Dir = taskDir
	return s.Save(record)
}

// Save rewrites meta.json in record.Dir.
func (s *Store) Save(record *domain.TaskRecord) error {
	if record.Dir == "" {
		return fmt.Errorf("save task %s: record has no directory", record.TaskID)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	if err := writeAtomic(filepath.Join(record.Dir, domain.MetaFileName), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save task %s: %w", record.TaskID, err)
	}
	return nil
}

// WriteHandoff writes handoff.md with YAML front matter and the error in the body.
func (s *Store) WriteHandoff(record *domain.TaskRecord, note domain.HandoffNote) error {
	front, err := yaml.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal handoff front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# Handoff: %s\n\n", note.TaskID)
	fmt.Fprintf(&buf, "The run stopped during **%s**.\n", note.Stage)
	if note.Workspace != "" {
		fmt.Fprintf(&buf, "The workspace was kept at `%s`.\n", note.Workspace)
	}
	if note.Error != "" {
		fmt.Fprintf(&buf, "\n```\n%s\n```\n", strings.TrimRight(note.Error, "\n"))
	}
	return writeAtomic(filepath.Join(record.Dir, domain.HandoffFileName), buf.Bytes(), 0o644)
}

// ReadHandoff parses handoff.md. Returns nil when the record has no note.
func (s *Store) ReadHandoff(record *domain.TaskRecord) (*domain.HandoffNote, error) {
	data, err := os.ReadFile(filepath.Join(record.Dir, domain.HandoffFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read handoff: %w", err)
	}
	front, body, ok := splitFrontMatter(data)
	if !ok {
		return nil, fmt.Errorf("handoff %s: missing front matter", record.TaskID)
	}
	var note domain.HandoffNote
	if err := yaml.Unmarshal(front, &note); err != nil {
		return nil, fmt.Errorf("decode handoff front matter: %w", err)
	}
	note.Error = extractFence(body)
	return &note, nil
}

// readRecord loads meta.json from a task directory. The directory name is
// the task id; a record carrying a different id is rejected.
func readRecord(taskDir string) (*domain.TaskRecord, error) {
	dirName := filepath.Base(taskDir)
	if err := domain.ValidateTaskID(dirName); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMetadata, err)
	}
	data, err := os.ReadFile(filepath.Join(taskDir, domain.MetaFileName)) //nolint:gosec // path built from jar root
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrMetadata, taskDir, err)
	}
	var rec domain.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrMetadata, taskDir, err)
	}
	if rec.TaskID != "" && rec.TaskID != dirName {
		return nil, fmt.Errorf("%w: %s: task_id %q does not match directory", domain.ErrMetadata, taskDir, rec.TaskID)
	}
	if rec.BriefPath != "" && !filepath.IsLocal(rec.BriefPath) {
		return nil, fmt.Errorf("%w: %s: prd_path %q leaves the task directory", domain.ErrMetadata, taskDir, rec.BriefPath)
	}
	rec.TaskID = dirName
	rec.Dir = taskDir
	return &rec, nil
}

func splitFrontMatter(data []byte) (front, body []byte, ok bool) {
	const delim = "---\n"
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, nil, false
	}
	rest := data[len(delim):]
	end := bytes.Index(rest, []byte("\n"+delim))
	if end < 0 {
		return nil, nil, false
	}
	return rest[:end+1], rest[end+1+len(delim):], true
}

func extractFence(body []byte) string {
	start := bytes.Index(body, []byte("```\n"))
	if start < 0 {
		return ""
	}
	rest := body[start+4:]
	end := bytes.Index(rest, []byte("\n```"))
	if end < 0 {
		return ""
	}
	return string(rest[:end])
}

func writeAtomic(path string, content []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
