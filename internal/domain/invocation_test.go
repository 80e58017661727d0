package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	active := func(maxMinutes int, elapsed time.Duration) *SessionState {
		return &SessionState{
			Active:         true,
			MaxTimeMinutes: maxMinutes,
			StartTimeEpoch: now.Add(-elapsed).Unix(),
		}
	}

	tests := []struct {
		name      string
		enclosing *SessionState
		requested time.Duration
		want      time.Duration
	}{
		{
			name:      "no enclosing session",
			requested: 1200 * time.Second,
			want:      1200 * time.Second,
		},
		{
			name:      "inactive session is ignored",
			enclosing: &SessionState{Active: false, MaxTimeMinutes: 1, StartTimeEpoch: now.Unix()},
			requested: 1200 * time.Second,
			want:      1200 * time.Second,
		},
		{
			name:      "missing budget fields",
			enclosing: &SessionState{Active: true},
			requested: 1200 * time.Second,
			want:      1200 * time.Second,
		},
		{
			name:      "remaining exceeds request",
			enclosing: active(60, 10*time.Minute),
			requested: 1200 * time.Second,
			want:      1200 * time.Second,
		},
		{
			name:      "clamped to remaining",
			enclosing: active(60, 55*time.Minute),
			requested: 1200 * time.Second,
			want:      300 * time.Second,
		},
		{
			name:      "floor applies",
			enclosing: active(1, 57*time.Second),
			requested: 1200 * time.Second,
			want:      MinWorkerTimeout,
		},
		{
			name:      "budget exhausted still gets floor",
			enclosing: active(1, 5*time.Minute),
			requested: 600 * time.Second,
			want:      MinWorkerTimeout,
		},
		{
			name:      "short request with smaller remainder gets floor",
			enclosing: active(1, 58*time.Second),
			requested: 5 * time.Second,
			want:      MinWorkerTimeout,
		},
		{
			name:      "short request within budget is kept",
			enclosing: active(60, time.Minute),
			requested: 5 * time.Second,
			want:      5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveTimeout(tt.requested, tt.enclosing, now))
		})
	}
}

func TestClassifyOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		timedOut bool
		want     Outcome
	}{
		{"marker present", "working\n<promise>I AM DONE</promise>\n", false, OutcomeSuccess},
		{"marker mid-line", "ok <promise>I AM DONE</promise> bye", false, OutcomeSuccess},
		{"marker wins over timeout", CompletionMarker, true, OutcomeSuccess},
		{"no marker", "all good, exiting 0\n", false, OutcomeFailure},
		{"partial marker", "<promise>I AM DONE", false, OutcomeFailure},
		{"timeout without marker", "still working", true, OutcomeTimeout},
		{"empty output", "", false, OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyOutput([]byte(tt.output), tt.timedOut)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == OutcomeSuccess, got.Succeeded())
		})
	}
}

func TestWorkerInvocation_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := &WorkerInvocation{StartedAt: start}
	assert.Zero(t, inv.Duration())

	inv.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, inv.Duration())
}
