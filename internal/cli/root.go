// Package cli provides the command-line interface for git-jar.
package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-jar/internal/app"
)

// Command group IDs.
const (
	groupJar    = "jar"
	groupWorker = "worker"
	groupSetup  = "setup"
)

// Factory builds the container once the --config flag is known.
type Factory func(configPath string) (*app.Container, error)

// deps lazily builds and caches the container for the running command.
type deps struct {
	factory    Factory
	c          *app.Container
	configPath string
}

func (d *deps) container() (*app.Container, error) {
	if d.c != nil {
		return d.c, nil
	}
	if d.factory == nil {
		return nil, errors.New("no container factory configured")
	}
	c, err := d.factory(d.configPath)
	if err != nil {
		return nil, err
	}
	d.c = c
	return c, nil
}

func (d *deps) close() error {
	if d.c == nil {
		return nil
	}
	err := d.c.Close()
	d.c = nil
	return err
}

// Execute runs the command line and releases the container afterwards,
// including when the command fails.
func Execute(ctx context.Context, factory Factory, version string) error {
	d := &deps{factory: factory}
	defer func() { _ = d.close() }()
	return newRootCommand(d, version).ExecuteContext(ctx)
}

// NewRootCommand creates the root command for git-jar.
// The container is built on first use so that --config is honoured.
func NewRootCommand(factory Factory, version string) *cobra.Command {
	return newRootCommand(&deps{factory: factory}, version)
}

func newRootCommand(d *deps, version string) *cobra.Command {

	root := &cobra.Command{
		Use:   "jar",
		Short: "Queue tasks and run them with bounded agent workers",
		Long: `git-jar drains a date-partitioned queue of delegated tasks.
Each task gets its own git worktree and a worker process that runs
under a time budget. A worker succeeds only when it prints the
completion marker; successful tasks are handed off as a pull request
draft or, with --publish, as a pushed branch with a pull request.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsContainer(cmd) {
				return nil
			}
			c, err := d.container()
			if err != nil {
				return err
			}
			for _, w := range c.AppConfig.Warnings {
				printWarning(cmd.ErrOrStderr(), w)
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return d.close()
		},
	}

	root.PersistentFlags().StringVar(&d.configPath, "config", "", "Configuration file merged over the global config")

	root.AddGroup(
		&cobra.Group{ID: groupJar, Title: "Jar Commands:"},
		&cobra.Group{ID: groupWorker, Title: "Worker and Session Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)

	for _, cmd := range []*cobra.Command{
		newRunCommand(d),
		newAddCommand(d),
		newListCommand(d),
		newShowCommand(d),
		newHistoryCommand(d),
		newLogsCommand(d),
	} {
		cmd.GroupID = groupJar
		root.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{
		newWorkerCommand(d),
		newSessionCommand(d),
		newWorktreeCommand(d),
	} {
		cmd.GroupID = groupWorker
		root.AddCommand(cmd)
	}

	configCmd := newConfigCommand(d)
	configCmd.GroupID = groupSetup
	root.AddCommand(configCmd)

	return root
}

// needsContainer reports whether a command touches the data root.
func needsContainer(cmd *cobra.Command) bool {
	if cmd.Annotations[annotationNoContainer] == "true" {
		return false
	}
	if cmd.Name() == "help" || strings.HasPrefix(cmd.Name(), "__") {
		return false
	}
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return false
	}
	return cmd.Runnable()
}

const annotationNoContainer = "jar.no-container"
