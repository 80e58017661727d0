package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/runoshun/git-jar/internal/domain"
)

// SessionRef identifies a session by its directory or by the worktree it runs in.
type SessionRef struct {
	SessionDir string // Takes precedence when set
	Worktree   string // Looked up in the session registry
}

func resolveSession(sessions domain.SessionStore, ref SessionRef) (string, error) {
	if ref.SessionDir != "" {
		return filepath.Clean(ref.SessionDir), nil
	}
	if ref.Worktree == "" {
		return "", errors.New("session directory or worktree is required")
	}
	worktree, err := filepath.Abs(ref.Worktree)
	if err != nil {
		return "", fmt.Errorf("resolve worktree path: %w", err)
	}
	return sessions.Lookup(worktree)
}

// ShowSessionInput contains the parameters for showing a session.
type ShowSessionInput struct {
	Ref SessionRef
}

// ShowSessionOutput contains the session state and its budget.
// Fields are ordered to minimize memory padding.
type ShowSessionOutput struct {
	State     *domain.SessionState
	StatePath string
	Limit     domain.LimitReason // Empty while the session may continue
	Remaining time.Duration      // Remaining time budget
	HasBudget bool               // False when the state carries no budget
}

// ShowSession is the use case for inspecting a session budget.
type ShowSession struct {
	sessions domain.SessionStore
	clock    domain.Clock
}

// NewShowSession creates a new ShowSession use case.
func NewShowSession(sessions domain.SessionStore, clock domain.Clock) *ShowSession {
	return &ShowSession{sessions: sessions, clock: clock}
}

// Execute loads the session state and evaluates its limits.
func (uc *ShowSession) Execute(_ context.Context, in ShowSessionInput) (*ShowSessionOutput, error) {
	sessionDir, err := resolveSession(uc.sessions, in.Ref)
	if err != nil {
		return nil, err
	}
	statePath := domain.StatePath(sessionDir)
	state, err := uc.sessions.Load(statePath)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	remaining, ok := state.RemainingBudget(now)
	return &ShowSessionOutput{
		State:     state,
		StatePath: statePath,
		Limit:     state.LimitExceeded(now),
		Remaining: remaining,
		HasBudget: ok,
	}, nil
}

// CancelSessionInput contains the parameters for cancelling a session.
type CancelSessionInput struct {
	Ref SessionRef
}

// CancelSessionOutput contains the deactivated session.
type CancelSessionOutput struct {
	State     *domain.SessionState
	StatePath string
	WasActive bool
}

// CancelSession is the use case for deactivating a session.
type CancelSession struct {
	sessions domain.SessionStore
	logger   domain.Logger
}

// NewCancelSession creates a new CancelSession use case.
func NewCancelSession(sessions domain.SessionStore, logger domain.Logger) *CancelSession {
	return &CancelSession{sessions: sessions, logger: logger}
}

// Execute marks the session inactive. Cancelling an inactive session is a no-op.
func (uc *CancelSession) Execute(_ context.Context, in CancelSessionInput) (*CancelSessionOutput, error) {
	sessionDir, err := resolveSession(uc.sessions, in.Ref)
	if err != nil {
		return nil, err
	}
	statePath := domain.StatePath(sessionDir)
	state, err := uc.sessions.Load(statePath)
	if err != nil {
		return nil, err
	}

	out := &CancelSessionOutput{State: state, StatePath: statePath, WasActive: state.Active}
	if !state.Active {
		return out, nil
	}

	state.End(false)
	if err := uc.sessions.Save(statePath, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	uc.logger.Info("", "session", "session cancelled: "+sessionDir)
	return out, nil
}
