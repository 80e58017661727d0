// Package domain contains core business entities and interfaces.
package domain

import (
	"time"
)

// DefaultBriefFile is the name of the free-text task brief stored next to a task record.
const DefaultBriefFile = "prd.md"

// TaskRecord identifies one unit of delegated work stored in the jar.
// JSON keys follow the meta.json layout written by earlier tooling.
// Fields are ordered to minimize memory padding.
type TaskRecord struct {
	CreatedAt      time.Time `json:"created_at"`               // Submission time
	UpdatedAt      time.Time `json:"updated_at,omitzero"`      // Last time the queue driver touched the record
	TaskID         string    `json:"task_id"`                  // Unique within a date partition
	Status         Status    `json:"status"`                   // Lifecycle state
	SourceLocation string    `json:"repo_path"`                // Repository to branch from
	BaseBranch     string    `json:"branch"`                   // Base branch for the worktree
	BriefPath      string    `json:"prd_path,omitempty"`       // Brief file, relative to Dir
	WorkspacePath  string    `json:"workspace_path,omitempty"` // Last provisioned worktree
	BranchName     string    `json:"branch_name,omitempty"`    // Last provisioned branch
	LastError      string    `json:"last_error,omitempty"`     // Failure of the last run
	Dir            string    `json:"-"`                        // Task directory (not persisted)
}

// Brief returns the file name of the task brief, defaulting to prd.md.
func (t *TaskRecord) Brief() string {
	if t.BriefPath == "" {
		return DefaultBriefFile
	}
	return t.BriefPath
}

// JarEntry is one task directory found in a date partition.
// Record is nil and Err is set when the metadata could not be read.
type JarEntry struct {
	Record *TaskRecord
	Err    error
	TaskID string // Directory name
	Dir    string
}

// HandoffNote describes why a task could not be completed.
// It is written next to the task record for the human who picks the task up.
// Fields are ordered to minimize memory padding.
type HandoffNote struct {
	Time      time.Time `yaml:"time"`
	TaskID    string    `yaml:"task_id"`
	Stage     string    `yaml:"stage"`
	Workspace string    `yaml:"workspace,omitempty"`
	Error     string    `yaml:"-"`
}
