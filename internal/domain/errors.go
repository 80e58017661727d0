package domain

import "errors"

// Domain errors.
var (
	ErrProvisioning     = errors.New("workspace provisioning failed")
	ErrLaunch           = errors.New("worker process could not be started")
	ErrMetadata         = errors.New("task metadata missing or unreadable")
	ErrPublication      = errors.New("publication handoff failed")
	ErrJarNotFound      = errors.New("no jar found for date")
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskExists       = errors.New("task already exists in jar")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoRemote         = errors.New("no git remotes found")
	ErrEmptyCommand     = errors.New("worker command is empty")
	ErrEmptyBrief       = errors.New("task brief cannot be empty")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidTaskID    = errors.New("invalid task id")
	ErrInvalidDate      = errors.New("invalid jar date (expected YYYY-MM-DD)")
	ErrNotGitRepository = errors.New("not a git repository (or any of the parent directories)")
	ErrConfigExists     = errors.New("config file already exists")
	ErrNoLog            = errors.New("no log file found")
)
