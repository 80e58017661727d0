package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runoshun/git-jar/internal/domain"
)

// ShowTaskInput contains the parameters for showing a task.
type ShowTaskInput struct {
	TaskID string // Task to show
	Date   string // Partition; empty searches every partition, newest first
}

// ShowTaskOutput contains the task record and its companion files.
type ShowTaskOutput struct {
	Record  *domain.TaskRecord
	Handoff *domain.HandoffNote // nil when the task never failed
	Date    string
	Brief   string
}

// ShowTask is the use case for displaying a task in the jar.
type ShowTask struct {
	jars domain.JarStore
}

// NewShowTask creates a new ShowTask use case.
func NewShowTask(jars domain.JarStore) *ShowTask {
	return &ShowTask{jars: jars}
}

// Execute finds the task and reads its brief and handoff note.
func (uc *ShowTask) Execute(_ context.Context, in ShowTaskInput) (*ShowTaskOutput, error) {
	date, rec, err := uc.find(in)
	if err != nil {
		return nil, err
	}

	brief, err := os.ReadFile(filepath.Join(rec.Dir, rec.Brief()))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read brief: %w", err)
	}

	handoff, err := uc.jars.ReadHandoff(rec)
	if err != nil {
		return nil, err
	}

	return &ShowTaskOutput{
		Record:  rec,
		Handoff: handoff,
		Date:    date,
		Brief:   string(brief),
	}, nil
}

func (uc *ShowTask) find(in ShowTaskInput) (string, *domain.TaskRecord, error) {
	if in.Date != "" {
		if err := domain.ValidatePartition(in.Date); err != nil {
			return "", nil, err
		}
		rec, err := uc.jars.Get(in.Date, in.TaskID)
		return in.Date, rec, err
	}

	dates, err := uc.jars.Partitions()
	if err != nil {
		return "", nil, fmt.Errorf("list partitions: %w", err)
	}
	for i := len(dates) - 1; i >= 0; i-- {
		rec, err := uc.jars.Get(dates[i], in.TaskID)
		if err == nil {
			return dates[i], rec, nil
		}
		if !errors.Is(err, domain.ErrTaskNotFound) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, in.TaskID)
}
