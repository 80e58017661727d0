//go:build unix

package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-jar/internal/domain"
)

func TestSupervisor_Run_TimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	req := domain.WorkerRequest{
		Command: []string{"sh", "-c", "sleep 30 & echo $! > " + pidFile + "; wait"},
		Dir:     dir,
		LogPath: filepath.Join(dir, "worker.log"),
		Timeout: 500 * time.Millisecond,
	}

	inv, err := New(nil, nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTimeout, inv.Outcome)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return processGone(pid) }, 5*time.Second, 50*time.Millisecond)
}

// processGone treats zombies as gone since an orphan may wait for its reaper.
func processGone(pid int) bool {
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err == nil {
		fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
		return len(fields) > 0 && fields[0] == "Z"
	}
	return errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestExitCode_Signaled(t *testing.T) {
	dir := t.TempDir()
	req := domain.WorkerRequest{
		Command: []string{"sh", "-c", "kill -TERM $$"},
		Dir:     dir,
		LogPath: filepath.Join(dir, "worker.log"),
		Timeout: 10 * time.Second,
	}

	inv, err := New(nil, nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 128+int(syscall.SIGTERM), inv.ExitCode)
}
