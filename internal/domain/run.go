package domain

import "time"

// RunRecord is one row of the run history ledger.
// Fields are ordered to minimize memory padding.
type RunRecord struct {
	RecordedAt   time.Time
	TaskID       string
	Date         string
	InvocationID string
	Outcome      Outcome
	Workspace    string
	Error        string
	Duration     time.Duration
	ID           int64
	ExitCode     int
	Published    bool
}

// NewRunRecord builds a ledger row from a finished invocation.
func NewRunRecord(date, taskID string, inv *WorkerInvocation, published bool, runErr error, now time.Time) RunRecord {
	rec := RunRecord{
		RecordedAt: now,
		TaskID:     taskID,
		Date:       date,
		Published:  published,
	}
	if inv != nil {
		rec.InvocationID = inv.ID
		rec.Outcome = inv.Outcome
		rec.ExitCode = inv.ExitCode
		rec.Duration = inv.Duration()
		rec.Workspace = inv.Dir
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeFailure
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}
