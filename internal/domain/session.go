package domain

import (
	"time"
)

// SessionStateVersion is the current state.json format version.
const SessionStateVersion = 1

// Session steps.
const (
	StepBreakdown = "breakdown"
	StepExecution = "execution"
)

// Completion promises recorded in state.json.
const (
	PromiseDone   = "I AM DONE"
	PromiseJarred = "JARRED"
)

// Session outcomes recorded on End.
const (
	SessionOutcomeSuccess = "success"
	SessionOutcomeFailure = "failure"
)

// SessionState is the file-resident execution context shared between an
// orchestrating process and the workers it spawns.
//
// MaxTimeMinutes and StartTimeEpoch are set once by BeginSession. Consumers
// only read them to compute the remaining budget.
// Fields are ordered to minimize memory padding.
type SessionState struct {
	History              []string `json:"history"`
	WorkingDir           string   `json:"working_dir"`
	Step                 string   `json:"step"`
	CompletionPromise    string   `json:"completion_promise,omitempty"`
	OriginalPrompt       string   `json:"original_prompt,omitempty"`
	CurrentTicket        string   `json:"current_ticket,omitempty"`
	StartedAt            string   `json:"started_at"`
	SessionDir           string   `json:"session_dir"`
	Outcome              string   `json:"outcome,omitempty"`
	StartTimeEpoch       int64    `json:"start_time_epoch"`
	Version              int      `json:"version"`
	Iteration            int      `json:"iteration"`
	MaxIterations        int      `json:"max_iterations"`
	MaxTimeMinutes       int      `json:"max_time_minutes"`
	WorkerTimeoutSeconds int      `json:"worker_timeout_seconds"`
	Active               bool     `json:"active"`
	JarComplete          bool     `json:"jar_complete,omitempty"`
	Worker               bool     `json:"worker,omitempty"`
}

// SessionOptions configures BeginSession.
type SessionOptions struct {
	WorkingDir           string
	SessionDir           string
	OriginalPrompt       string
	MaxTimeMinutes       int
	MaxIterations        int
	WorkerTimeoutSeconds int
}

// BeginSession creates an active session whose budget starts at now.
func BeginSession(now time.Time, opts SessionOptions) *SessionState {
	return &SessionState{
		Version:              SessionStateVersion,
		Active:               true,
		WorkingDir:           opts.WorkingDir,
		SessionDir:           opts.SessionDir,
		Step:                 StepBreakdown,
		Iteration:            1,
		MaxIterations:        opts.MaxIterations,
		MaxTimeMinutes:       opts.MaxTimeMinutes,
		WorkerTimeoutSeconds: opts.WorkerTimeoutSeconds,
		StartTimeEpoch:       now.Unix(),
		CompletionPromise:    PromiseDone,
		OriginalPrompt:       opts.OriginalPrompt,
		History:              []string{},
		StartedAt:            now.Format(time.RFC3339),
	}
}

// HasBudget reports whether the session carries budget information.
func (s *SessionState) HasBudget() bool {
	return s != nil && s.MaxTimeMinutes > 0 && s.StartTimeEpoch > 0
}

// RemainingBudget returns max(0, max_time_minutes*60 - (now - start)).
// The second result is false when the session has no budget information.
func (s *SessionState) RemainingBudget(now time.Time) (time.Duration, bool) {
	if !s.HasBudget() {
		return 0, false
	}
	total := time.Duration(s.MaxTimeMinutes) * time.Minute
	elapsed := now.Sub(time.Unix(s.StartTimeEpoch, 0))
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// AdvanceStep moves the session to another phase.
func (s *SessionState) AdvanceStep(step string) {
	s.Step = step
	s.History = append(s.History, step)
}

// IncrementIteration bumps the advisory loop counter.
func (s *SessionState) IncrementIteration() {
	s.Iteration++
}

// End marks the session inactive and records its terminal disposition.
func (s *SessionState) End(success bool) {
	s.Active = false
	if success {
		s.Outcome = SessionOutcomeSuccess
	} else {
		s.Outcome = SessionOutcomeFailure
	}
}

// LimitReason explains why a session must stop.
type LimitReason string

// Limit reasons returned by LimitExceeded.
const (
	LimitNone       LimitReason = ""
	LimitTime       LimitReason = "time limit exceeded"
	LimitIterations LimitReason = "iteration limit exceeded"
	LimitJar        LimitReason = "jar processing complete"
)

// LimitExceeded reports whether an active session has run out of time,
// iterations, or was closed by the jar driver. Inactive sessions never
// report a limit.
func (s *SessionState) LimitExceeded(now time.Time) LimitReason {
	if s == nil || !s.Active {
		return LimitNone
	}
	if s.JarComplete {
		return LimitJar
	}
	if remaining, ok := s.RemainingBudget(now); ok && remaining <= 0 {
		return LimitTime
	}
	if s.MaxIterations > 0 && s.Iteration > s.MaxIterations {
		return LimitIterations
	}
	return LimitNone
}
