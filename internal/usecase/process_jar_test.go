package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runoshun/git-jar/internal/domain"
	"github.com/runoshun/git-jar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2026-01-15"

type processJarFixture struct {
	jars        *testutil.MockJarStore
	provisioner *testutil.MockProvisioner
	sessions    *testutil.MockSessionStore
	runner      *testutil.MockWorkerRunner
	publisher   *testutil.MockPublisher
	history     *testutil.MockHistory
	clock       *testutil.MockClock
	root        string
}

func newProcessJarFixture(t *testing.T) *processJarFixture {
	t.Helper()
	clock := &testutil.MockClock{NowTime: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	return &processJarFixture{
		jars:        testutil.NewMockJarStore(),
		provisioner: &testutil.MockProvisioner{},
		sessions:    testutil.NewMockSessionStore(),
		runner:      &testutil.MockWorkerRunner{Scripts: map[string]testutil.WorkerScript{}, Clock: clock},
		publisher:   &testutil.MockPublisher{},
		history:     &testutil.MockHistory{},
		clock:       clock,
		root:        t.TempDir(),
	}
}

func (f *processJarFixture) useCase() *ProcessJar {
	return NewProcessJar(f.jars, f.provisioner, f.sessions, f.runner, f.publisher, f.history,
		&testutil.MockConfigLoader{}, f.clock, &testutil.MockLogger{}, f.root)
}

// addTask stores a record whose brief exists on disk.
func (f *processJarFixture) addTask(t *testing.T, id string, status domain.Status) *domain.TaskRecord {
	t.Helper()
	dir := filepath.Join(f.root, "jar", testDate, id)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prd.md"), []byte("# "+id+"\n"), 0o600))
	rec := &domain.TaskRecord{
		TaskID:         id,
		Status:         status,
		SourceLocation: "/repos/app",
		BaseBranch:     "main",
		Dir:            dir,
	}
	f.jars.Put(testDate, rec)
	return rec
}

func TestProcessJar_Execute_SkipsUnreadableRecord(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.addTask(t, "a-task", domain.StatusQueued)
	f.jars.PutBroken(testDate, "b-broken")
	f.addTask(t, "c-task", domain.StatusMarinating)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	assert.Equal(t, 2, out.Processed())
	assert.Equal(t, 2, out.Succeeded)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, "b-broken", out.Skipped[0].TaskID)
	assert.Equal(t, "a-task", out.Results[0].TaskID)
	assert.Equal(t, "c-task", out.Results[1].TaskID)
}

func TestProcessJar_Execute_UsesDirectoryNameAsTaskID(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	rec := f.addTask(t, "demo-1", domain.StatusQueued)
	rec.TaskID = "../../victim"

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "demo-1", out.Results[0].TaskID)
	require.Len(t, f.provisioner.Created, 1)
	assert.Equal(t, "demo-1", f.provisioner.Created[0].TaskID)
	assert.Equal(t, domain.SessionDir(f.root, testDate, "demo-1"), out.Results[0].SessionDir)
}

func TestProcessJar_Execute_LogsWithPartition(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.addTask(t, "demo-1", domain.StatusQueued)
	logger := &testutil.MockLogger{}
	uc := NewProcessJar(f.jars, f.provisioner, f.sessions, f.runner, f.publisher, f.history,
		&testutil.MockConfigLoader{}, f.clock, logger, f.root)

	_, err := uc.Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	require.NotEmpty(t, logger.Entries)
	for _, e := range logger.Entries {
		assert.Equal(t, testDate, e.Partition, e.Msg)
	}
}

func TestProcessJar_Execute_SkipsIneligibleStatus(t *testing.T) {
	f := newProcessJarFixture(t)
	f.addTask(t, "done-task", domain.StatusDone)
	f.addTask(t, "failed-task", domain.StatusFailed)
	f.addTask(t, "running-task", domain.StatusRunning)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	assert.Equal(t, 0, out.Processed())
	assert.Len(t, out.Skipped, 3)
	assert.Empty(t, f.provisioner.Created)
	assert.Contains(t, out.Skipped[0].Reason, "done")
}

func TestProcessJar_Execute_SuccessPublishAndCleanup(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.addTask(t, "demo-1", domain.StatusQueued)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate, Publish: true})

	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.True(t, res.Succeeded())
	assert.True(t, res.Published)
	assert.False(t, res.Retained)
	assert.Equal(t, "https://example.com/pr/1", res.PRURL)

	require.Len(t, f.publisher.Requests, 1)
	assert.Equal(t, domain.PublishPR, f.publisher.Requests[0].Mode)
	assert.Equal(t, "tester/feat/demo-1", f.publisher.Requests[0].Branch)
	require.Len(t, f.provisioner.Destroyed, 1)
	assert.Empty(t, out.Retained)

	assert.Equal(t,
		[]domain.Status{domain.StatusRunning, domain.StatusRunning, domain.StatusDone},
		f.jars.StatusesSaved("demo-1"))

	require.Len(t, f.history.Records, 1)
	assert.Equal(t, domain.OutcomeSuccess, f.history.Records[0].Outcome)
	assert.True(t, f.history.Records[0].Published)
}

func TestProcessJar_Execute_TimeoutDoesNotPublish(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeTimeout, ExitCode: domain.TimeoutExitCode}
	f.addTask(t, "demo-2", domain.StatusQueued)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate, Publish: true})

	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.False(t, res.Succeeded())
	assert.Equal(t, StageWorker, res.Stage)
	assert.Equal(t, domain.OutcomeTimeout, res.Outcome)
	assert.Equal(t, domain.TimeoutExitCode, res.ExitCode)
	assert.True(t, res.Retained)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, []string{res.Workspace}, out.Retained)

	assert.Empty(t, f.publisher.Requests)
	assert.Empty(t, f.provisioner.Destroyed)

	saved := f.jars.StatusesSaved("demo-2")
	assert.Equal(t, domain.StatusFailed, saved[len(saved)-1])
	note, ok := f.jars.Handoffs["demo-2"]
	require.True(t, ok)
	assert.Equal(t, StageWorker, note.Stage)
	assert.Contains(t, note.Error, "outcome=timeout")

	require.Len(t, f.history.Records, 1)
	assert.Equal(t, domain.TimeoutExitCode, f.history.Records[0].ExitCode)
}

func TestProcessJar_Execute_DraftModeRetainsWorkspace(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.addTask(t, "draft-task", domain.StatusQueued)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	require.Len(t, f.publisher.Requests, 1)
	assert.Equal(t, domain.PublishDraft, f.publisher.Requests[0].Mode)
	assert.Empty(t, f.provisioner.Destroyed)
	assert.True(t, out.Results[0].Succeeded())
	assert.True(t, out.Results[0].Retained)
	assert.Len(t, out.Retained, 1)
}

func TestProcessJar_Execute_ProvisionFailureContinues(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.provisioner.CreateErrs = map[string]error{
		"a-bad": errors.Join(domain.ErrProvisioning, errors.New("base branch not found")),
	}
	f.addTask(t, "a-bad", domain.StatusQueued)
	f.addTask(t, "b-good", domain.StatusQueued)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.ErrorIs(t, out.Results[0].Err, domain.ErrProvisioning)
	assert.Equal(t, StageProvision, out.Results[0].Stage)
	assert.False(t, out.Results[0].Retained)
	assert.True(t, out.Results[1].Succeeded())
	assert.Equal(t, StageProvision, f.jars.Handoffs["a-bad"].Stage)
	assert.Len(t, f.runner.Requests, 1)
}

func TestProcessJar_Execute_PublishFailure(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.publisher.Err = errors.Join(domain.ErrPublication, domain.ErrNoRemote)
	f.addTask(t, "pub-task", domain.StatusQueued)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate, Publish: true})

	require.NoError(t, err)
	res := out.Results[0]
	assert.ErrorIs(t, res.Err, domain.ErrPublication)
	assert.Equal(t, StagePublish, res.Stage)
	assert.True(t, res.Retained)
	assert.Empty(t, f.provisioner.Destroyed)
}

func TestProcessJar_Execute_WorkerRequest(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.addTask(t, "req-task", domain.StatusQueued)

	_, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})
	require.NoError(t, err)

	require.Len(t, f.runner.Requests, 1)
	req := f.runner.Requests[0]
	sessionDir := domain.SessionDir(f.root, testDate, "req-task")
	statePath := domain.StatePath(sessionDir)

	assert.Equal(t, []string{domain.StateFileEnv + "=" + statePath}, req.Env)
	assert.Equal(t, filepath.Join(sessionDir, domain.WorkerLogFileName), req.LogPath)
	assert.Equal(t, time.Duration(domain.DefaultWorkerTimeoutSeconds)*time.Second, req.Timeout)
	assert.Equal(t, domain.WorktreePath("/worktrees", "req-task"), req.Dir)
	require.NotNil(t, req.Enclosing)
	assert.Equal(t, domain.DefaultMaxTimeMinutes, req.Enclosing.MaxTimeMinutes)
	assert.Equal(t, "gemini", req.Command[0])

	brief, err := os.ReadFile(filepath.Join(sessionDir, "prd.md"))
	require.NoError(t, err)
	assert.Equal(t, "# req-task\n", string(brief))

	state, err := f.sessions.Load(statePath)
	require.NoError(t, err)
	assert.False(t, state.Active)
	assert.Equal(t, domain.SessionOutcomeSuccess, state.Outcome)
	assert.Equal(t, domain.StepExecution, state.Step)

	registered, err := f.sessions.Lookup(req.Dir)
	require.NoError(t, err)
	assert.Equal(t, sessionDir, registered)
}

func TestProcessJar_Execute_MissingBrief(t *testing.T) {
	f := newProcessJarFixture(t)
	rec := f.addTask(t, "no-brief", domain.StatusQueued)
	require.NoError(t, os.Remove(filepath.Join(rec.Dir, "prd.md")))

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate})

	require.NoError(t, err)
	assert.Equal(t, StageSession, out.Results[0].Stage)
	assert.True(t, out.Results[0].Retained)
	assert.Empty(t, f.runner.Requests)
}

func TestProcessJar_Execute_SignalsEnclosingSession(t *testing.T) {
	f := newProcessJarFixture(t)
	f.addTask(t, "done-task", domain.StatusDone)
	parent := domain.BeginSession(f.clock.Now(), domain.SessionOptions{MaxTimeMinutes: 60})
	require.NoError(t, f.sessions.Save("/sessions/parent/state.json", parent))

	_, err := f.useCase().Execute(context.Background(), ProcessJarInput{
		Date:               testDate,
		EnclosingStatePath: "/sessions/parent/state.json",
	})

	require.NoError(t, err)
	state, err := f.sessions.Load("/sessions/parent/state.json")
	require.NoError(t, err)
	assert.True(t, state.JarComplete)
	assert.False(t, state.Active)
}

func TestProcessJar_Execute_MissingJar(t *testing.T) {
	f := newProcessJarFixture(t)

	_, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: "2026-02-01"})

	assert.ErrorIs(t, err, domain.ErrJarNotFound)
}

func TestProcessJar_Execute_InvalidDate(t *testing.T) {
	f := newProcessJarFixture(t)

	_, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: "yesterday"})

	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestProcessJar_Execute_DefaultsToToday(t *testing.T) {
	f := newProcessJarFixture(t)
	f.addTask(t, "today", domain.StatusDone)

	out, err := f.useCase().Execute(context.Background(), ProcessJarInput{})

	require.NoError(t, err)
	assert.Equal(t, testDate, out.Date)
}

func TestProcessJar_Execute_CancelledStopsBatch(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Scripts["a-task"] = testutil.WorkerScript{Err: context.Canceled, Outcome: domain.OutcomeFailure, ExitCode: -1}
	f.addTask(t, "a-task", domain.StatusQueued)
	f.addTask(t, "b-task", domain.StatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := f.useCase().Execute(ctx, ProcessJarInput{Date: testDate})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Results)
	assert.Empty(t, f.runner.Requests)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) TaskStarted(_, _ int, rec *domain.TaskRecord) {
	o.events = append(o.events, "start:"+rec.TaskID)
}

func (o *recordingObserver) TaskSkipped(taskID, _ string) {
	o.events = append(o.events, "skip:"+taskID)
}

func (o *recordingObserver) TaskFinished(result TaskResult) {
	o.events = append(o.events, "finish:"+result.TaskID)
}

func TestProcessJar_Execute_NotifiesObserver(t *testing.T) {
	f := newProcessJarFixture(t)
	f.runner.Default = testutil.WorkerScript{Outcome: domain.OutcomeSuccess}
	f.addTask(t, "a-task", domain.StatusQueued)
	f.addTask(t, "b-task", domain.StatusDone)
	obs := &recordingObserver{}

	_, err := f.useCase().Execute(context.Background(), ProcessJarInput{Date: testDate, Observer: obs})

	require.NoError(t, err)
	assert.Equal(t, []string{"start:a-task", "finish:a-task", "skip:b-task"}, obs.events)
}
