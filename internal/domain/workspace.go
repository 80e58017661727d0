package domain

import "strings"

// Workspace is an isolated git worktree checked out on a branch dedicated to one task.
// Fields are ordered to minimize memory padding.
type Workspace struct {
	Path       string `json:"path"`        // Absolute worktree path
	Branch     string `json:"branch"`      // Task branch, {actor}/{type}/{task_id}
	Source     string `json:"source"`      // Source repository the worktree was added to
	BaseBranch string `json:"base_branch"` // Revision the branch was created from
	BaseCommit string `json:"base_commit"` // Resolved commit hash of BaseBranch
	TaskID     string `json:"task_id"`
}

// Branch types derived from the task id.
const (
	BranchTypeFix  = "fix"
	BranchTypeFeat = "feat"
)

// DefaultActor is used when no identity can be resolved.
const DefaultActor = "git-jar"

var fixKeywords = []string{"fix", "bug", "patch", "issue"}

// BranchType returns "fix" when the lower-cased task id contains fix, bug,
// patch or issue, and "feat" otherwise.
func BranchType(taskID string) string {
	lower := strings.ToLower(taskID)
	for _, kw := range fixKeywords {
		if strings.Contains(lower, kw) {
			return BranchTypeFix
		}
	}
	return BranchTypeFeat
}

// BranchName returns the branch dedicated to a task: {actor}/{type}/{task_id}.
func BranchName(actor, taskID string) string {
	if actor == "" {
		actor = DefaultActor
	}
	return actor + "/" + BranchType(taskID) + "/" + taskID
}

// SanitizeActor strips whitespace so a display name can be used in a ref.
func SanitizeActor(name string) string {
	return strings.Join(strings.Fields(name), "")
}
