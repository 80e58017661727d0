package usecase

import (
	"context"
	"os"
	"testing"

	"github.com/runoshun/git-jar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowLogs_Execute(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(domain.LogsDir(root), 0o750))
	require.NoError(t, os.WriteFile(domain.GlobalLogPath(root), []byte("g1\ng2\n"), 0o600))
	require.NoError(t, os.WriteFile(domain.TaskLogPath(root, "t1"), []byte("line1\nline2\nline3\nline4\nline5\n"), 0o600))
	uc := NewShowLogs(root)

	t.Run("global", func(t *testing.T) {
		out, err := uc.Execute(context.Background(), ShowLogsInput{})
		require.NoError(t, err)
		assert.Equal(t, domain.GlobalLogPath(root), out.LogPath)
		assert.Equal(t, "g1\ng2\n", out.Content)
	})

	t.Run("task last lines", func(t *testing.T) {
		out, err := uc.Execute(context.Background(), ShowLogsInput{TaskID: "t1", Lines: 2})
		require.NoError(t, err)
		assert.Equal(t, "line4\nline5\n", out.Content)
	})

	t.Run("invalid task id", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), ShowLogsInput{TaskID: "../logs/jar"})
		assert.ErrorIs(t, err, domain.ErrInvalidTaskID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), ShowLogsInput{TaskID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNoLog)
	})
}
