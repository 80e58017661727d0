package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/runoshun/git-jar/internal/domain"
)

// ShowLogsInput contains the parameters for showing logs.
type ShowLogsInput struct {
	TaskID string // Task log to show; empty shows the global log
	Lines  int    // Number of lines to display from the end (0 = all)
}

// ShowLogsOutput contains the result of showing logs.
type ShowLogsOutput struct {
	LogPath string // Path to the log file
	Content string // Log file content
}

// ShowLogs is the use case for viewing the driver logs.
type ShowLogs struct {
	root string
}

// NewShowLogs creates a new ShowLogs use case.
func NewShowLogs(root string) *ShowLogs {
	return &ShowLogs{root: root}
}

// Execute reads and returns the log content.
func (uc *ShowLogs) Execute(_ context.Context, in ShowLogsInput) (*ShowLogsOutput, error) {
	logPath := domain.GlobalLogPath(uc.root)
	if in.TaskID != "" {
		if err := domain.ValidateTaskID(in.TaskID); err != nil {
			return nil, err
		}
		logPath = domain.TaskLogPath(uc.root, in.TaskID)
	}

	content, err := os.ReadFile(logPath) //nolint:gosec // path under the data root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoLog, logPath)
		}
		return nil, fmt.Errorf("read log file: %w", err)
	}

	result := string(content)
	if in.Lines > 0 {
		lines := strings.Split(strings.TrimSuffix(result, "\n"), "\n")
		if len(lines) > in.Lines {
			lines = lines[len(lines)-in.Lines:]
		}
		result = strings.Join(lines, "\n") + "\n"
	}

	return &ShowLogsOutput{
		LogPath: logPath,
		Content: result,
	}, nil
}
