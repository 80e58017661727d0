package domain

import (
	"path/filepath"
	"time"
)

// Config defaults.
const (
	DefaultWorkerTimeoutSeconds = 3600
	DefaultNestedTimeoutSeconds = 1200
	DefaultMaxTimeMinutes       = 60
	DefaultMaxIterations        = 10
	DefaultPromptFlag           = "-p"
	DefaultLogLevel             = "info"
)

// DefaultWorkerCommand is the worker launched when none is configured.
var DefaultWorkerCommand = []string{"gemini", "-s", "-y"}

// Config represents the application configuration.
// Fields are ordered to minimize memory padding.
type Config struct {
	Warnings  []string        `toml:"-"`
	Root      string          `toml:"root,omitempty"`
	Worker    WorkerConfig    `toml:"worker"`
	Session   SessionConfig   `toml:"session"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Publish   PublishConfig   `toml:"publish"`
	Log       LogConfig       `toml:"log"`
}

// WorkerConfig holds settings from the [worker] section.
type WorkerConfig struct {
	Command              []string `toml:"command,omitempty"`
	PromptFlag           string   `toml:"prompt_flag,omitempty"`
	TimeoutSeconds       int      `toml:"timeout_seconds,omitempty"`
	NestedTimeoutSeconds int      `toml:"nested_timeout_seconds,omitempty"`
}

// SessionConfig holds settings from the [session] section.
type SessionConfig struct {
	MaxTimeMinutes int `toml:"max_time_minutes,omitempty"`
	MaxIterations  int `toml:"max_iterations,omitempty"`
}

// WorkspaceConfig holds settings from the [workspace] section.
type WorkspaceConfig struct {
	Actor string `toml:"actor,omitempty"` // Overrides identity lookup
}

// PublishConfig holds settings from the [publish] section.
type PublishConfig struct {
	Remote string `toml:"remote,omitempty"` // Preferred remote
}

// LogConfig holds logging settings from the [log] section.
type LogConfig struct {
	Level string `toml:"level,omitempty"` // debug, info, warn, error
}

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			Command:              append([]string(nil), DefaultWorkerCommand...),
			PromptFlag:           DefaultPromptFlag,
			TimeoutSeconds:       DefaultWorkerTimeoutSeconds,
			NestedTimeoutSeconds: DefaultNestedTimeoutSeconds,
		},
		Session: SessionConfig{
			MaxTimeMinutes: DefaultMaxTimeMinutes,
			MaxIterations:  DefaultMaxIterations,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// WorkerTimeout returns the primary worker timeout.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}

// NestedTimeout returns the default timeout of nested worker invocations.
func (c *Config) NestedTimeout() time.Duration {
	return time.Duration(c.Worker.NestedTimeoutSeconds) * time.Second
}

// WorkerArgv builds the worker command line for a prompt.
func (c *Config) WorkerArgv(prompt string) []string {
	argv := append([]string(nil), c.Worker.Command...)
	if prompt == "" {
		return argv
	}
	if c.Worker.PromptFlag != "" {
		argv = append(argv, c.Worker.PromptFlag)
	}
	return append(argv, prompt)
}

// ConfigFileName is the name of configuration files.
const ConfigFileName = "config.toml"

// GlobalConfigDir returns the global configuration directory under configHome.
func GlobalConfigDir(configHome string) string {
	return filepath.Join(configHome, "git-jar")
}

// ConfigInfo describes a configuration file on disk.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}
