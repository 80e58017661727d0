// Package app provides the dependency injection container for the application.
package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/runoshun/git-jar/internal/domain"
	"github.com/runoshun/git-jar/internal/infra/config"
	"github.com/runoshun/git-jar/internal/infra/git"
	"github.com/runoshun/git-jar/internal/infra/history"
	"github.com/runoshun/git-jar/internal/infra/jarstore"
	"github.com/runoshun/git-jar/internal/infra/logging"
	"github.com/runoshun/git-jar/internal/infra/publisher"
	"github.com/runoshun/git-jar/internal/infra/sessionstore"
	"github.com/runoshun/git-jar/internal/infra/supervisor"
	"github.com/runoshun/git-jar/internal/infra/worktree"
	"github.com/runoshun/git-jar/internal/usecase"
)

// Config holds the application paths.
type Config struct {
	Root        string // Data root (jar, sessions, worktrees, logs, history)
	WorktreeDir string // Path to the worktrees directory
	HistoryPath string // Path to the run history database
}

// newConfig derives the application paths from the data root.
func newConfig(root string) Config {
	return Config{
		Root:        root,
		WorktreeDir: domain.WorktreesDir(root),
		HistoryPath: domain.HistoryPath(root),
	}
}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Jars          domain.JarStore
	Provisioner   domain.WorkspaceProvisioner
	Sessions      domain.SessionStore
	Runner        domain.WorkerRunner
	Publisher     domain.Publisher
	History       domain.RunHistory
	Git           domain.Git
	Clock         domain.Clock
	ConfigLoader  domain.ConfigLoader
	ConfigManager domain.ConfigManager
	Logger        domain.Logger

	// Loaded configuration
	AppConfig *domain.Config

	closers []func() error

	// Configuration
	Config Config
}

// New creates a new Container from the configuration files.
// configPath is the optional --config file.
func New(configPath string) (*Container, error) {
	configLoader := config.NewLoader(configPath)
	appConfig, err := configLoader.Load()
	if err != nil {
		return nil, err
	}
	cfg := newConfig(appConfig.Root)

	if err := os.MkdirAll(cfg.Root, 0o750); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}

	clock := domain.RealClock{}
	logger := logging.New(cfg.Root, logging.ParseLevel(appConfig.Log.Level), clock)

	historyStore, err := history.Open(cfg.HistoryPath)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	gitClient := git.NewClient(appConfig.Workspace.Actor)

	return &Container{
		Jars:          jarstore.New(cfg.Root),
		Provisioner:   worktree.NewClient(cfg.WorktreeDir, gitClient, logger),
		Sessions:      sessionstore.New(cfg.Root),
		Runner:        supervisor.New(clock, logger),
		Publisher:     publisher.New(gitClient, logger),
		History:       historyStore,
		Git:           gitClient,
		Clock:         clock,
		ConfigLoader:  configLoader,
		ConfigManager: config.NewManager(),
		Logger:        logger,
		AppConfig:     appConfig,
		closers:       []func() error{historyStore.Close, logger.Close},
		Config:        cfg,
	}, nil
}

// Close releases the history database and the log files.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// UseCase factory methods

// ProcessJarUseCase returns a new ProcessJar use case.
func (c *Container) ProcessJarUseCase() *usecase.ProcessJar {
	return usecase.NewProcessJar(c.Jars, c.Provisioner, c.Sessions, c.Runner, c.Publisher, c.History,
		c.ConfigLoader, c.Clock, c.Logger, c.Config.Root)
}

// AddToJarUseCase returns a new AddToJar use case.
func (c *Container) AddToJarUseCase() *usecase.AddToJar {
	return usecase.NewAddToJar(c.Jars, c.Sessions, c.Git, c.Clock, c.Logger)
}

// ListJarUseCase returns a new ListJar use case.
func (c *Container) ListJarUseCase() *usecase.ListJar {
	return usecase.NewListJar(c.Jars, c.Clock)
}

// ShowTaskUseCase returns a new ShowTask use case.
func (c *Container) ShowTaskUseCase() *usecase.ShowTask {
	return usecase.NewShowTask(c.Jars)
}

// SpawnWorkerUseCase returns a new SpawnWorker use case.
func (c *Container) SpawnWorkerUseCase() *usecase.SpawnWorker {
	return usecase.NewSpawnWorker(c.Sessions, c.Runner, c.ConfigLoader, c.Logger)
}

// ShowSessionUseCase returns a new ShowSession use case.
func (c *Container) ShowSessionUseCase() *usecase.ShowSession {
	return usecase.NewShowSession(c.Sessions, c.Clock)
}

// CancelSessionUseCase returns a new CancelSession use case.
func (c *Container) CancelSessionUseCase() *usecase.CancelSession {
	return usecase.NewCancelSession(c.Sessions, c.Logger)
}

// CreateWorktreeUseCase returns a new CreateWorktree use case.
func (c *Container) CreateWorktreeUseCase() *usecase.CreateWorktree {
	return usecase.NewCreateWorktree(c.Provisioner, c.Git)
}

// RemoveWorktreeUseCase returns a new RemoveWorktree use case.
func (c *Container) RemoveWorktreeUseCase() *usecase.RemoveWorktree {
	return usecase.NewRemoveWorktree(c.Provisioner)
}

// ListHistoryUseCase returns a new ListHistory use case.
func (c *Container) ListHistoryUseCase() *usecase.ListHistory {
	return usecase.NewListHistory(c.History)
}

// ShowLogsUseCase returns a new ShowLogs use case.
func (c *Container) ShowLogsUseCase() *usecase.ShowLogs {
	return usecase.NewShowLogs(c.Config.Root)
}

// ShowConfigUseCase returns a new ShowConfig use case.
func (c *Container) ShowConfigUseCase() *usecase.ShowConfig {
	return usecase.NewShowConfig(c.ConfigManager, c.ConfigLoader)
}
