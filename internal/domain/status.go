package domain

// Status represents the lifecycle state of a task record in the jar.
type Status string

const (
	StatusQueued     Status = "queued"     // Submitted, ready for pickup
	StatusMarinating Status = "marinating" // Jarred from a session, ready for pickup
	StatusRunning    Status = "running"    // Picked up by the queue driver
	StatusDone       Status = "done"       // Worker finished and handoff succeeded
	StatusFailed     Status = "failed"     // Terminal failure, waits for manual re-queue
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{
		StatusQueued,
		StatusMarinating,
		StatusRunning,
		StatusDone,
		StatusFailed,
	}
}

// IsEligible returns true if a task in this status can be picked up by the queue driver.
func (s Status) IsEligible() bool {
	return s == StatusQueued || s == StatusMarinating
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusMarinating, StatusRunning, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// Display returns a human-readable representation of the status.
func (s Status) Display() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusMarinating:
		return "Marinating"
	case StatusRunning:
		return "Running"
	case StatusDone:
		return "Done"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}
