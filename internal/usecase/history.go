package usecase

import (
	"context"

	"github.com/runoshun/git-jar/internal/domain"
)

// ListHistoryInput contains the parameters for querying the run history.
type ListHistoryInput struct {
	TaskID string // Only runs of this task
	Date   string // Only runs of this partition
	Limit  int    // Maximum number of runs (0 = all)
}

// ListHistoryOutput contains the matching runs, newest first.
type ListHistoryOutput struct {
	Runs []domain.RunRecord
}

// ListHistory is the use case for reading the run history ledger.
type ListHistory struct {
	history domain.RunHistory
}

// NewListHistory creates a new ListHistory use case.
func NewListHistory(history domain.RunHistory) *ListHistory {
	return &ListHistory{history: history}
}

// Execute returns the runs matching the filter.
func (uc *ListHistory) Execute(ctx context.Context, in ListHistoryInput) (*ListHistoryOutput, error) {
	if in.Date != "" {
		if err := domain.ValidatePartition(in.Date); err != nil {
			return nil, err
		}
	}
	runs, err := uc.history.List(ctx, domain.HistoryFilter{
		TaskID: in.TaskID,
		Date:   in.Date,
		Limit:  in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &ListHistoryOutput{Runs: runs}, nil
}
