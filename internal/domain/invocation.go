package domain

import (
	"bytes"
	"time"
)

// CompletionMarker is the literal a worker prints when it has finished its task.
const CompletionMarker = "<promise>I AM DONE</promise>"

// TimeoutExitCode is recorded when the supervisor kills a worker at its deadline.
const TimeoutExitCode = 124

// MinWorkerTimeout is the floor applied when an enclosing budget clamps a timeout.
const MinWorkerTimeout = 10 * time.Second

// Outcome classifies a finished worker invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success" // Completion marker found
	OutcomeTimeout Outcome = "timeout" // Killed at the deadline, no marker
	OutcomeFailure Outcome = "failure" // Exited without the marker
)

// Succeeded returns true only for OutcomeSuccess. Timeout counts as a failure.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess
}

// WorkerInvocation is one bounded execution of an external worker process.
// Fields are ordered to minimize memory padding.
type WorkerInvocation struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	ID               string
	Dir              string
	LogPath          string
	Outcome          Outcome
	Command          []string
	RequestedTimeout time.Duration
	EffectiveTimeout time.Duration
	ExitCode         int
}

// Duration returns how long the worker ran.
func (w *WorkerInvocation) Duration() time.Duration {
	if w.FinishedAt.IsZero() {
		return 0
	}
	return w.FinishedAt.Sub(w.StartedAt)
}

// EffectiveTimeout resolves the timeout of a nested invocation.
//
// Without an active enclosing session with budget information, the requested
// timeout is used unmodified. Otherwise the requested timeout is clamped to the
// remaining budget when that is smaller, but never below MinWorkerTimeout,
// even when the request itself is below it.
// Sub-second remainders are truncated.
func EffectiveTimeout(requested time.Duration, enclosing *SessionState, now time.Time) time.Duration {
	if enclosing == nil || !enclosing.Active {
		return requested
	}
	remaining, ok := enclosing.RemainingBudget(now)
	if !ok || remaining >= requested {
		return requested
	}
	return max(MinWorkerTimeout, remaining.Truncate(time.Second))
}

// Classify maps the marker scan and the deadline kill to an Outcome.
// The marker wins over a timeout. The exit code plays no part.
func Classify(markerFound, timedOut bool) Outcome {
	switch {
	case markerFound:
		return OutcomeSuccess
	case timedOut:
		return OutcomeTimeout
	default:
		return OutcomeFailure
	}
}

// ClassifyOutput classifies a captured output buffer.
func ClassifyOutput(output []byte, timedOut bool) Outcome {
	return Classify(bytes.Contains(output, []byte(CompletionMarker)), timedOut)
}
