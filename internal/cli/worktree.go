package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-jar/internal/usecase"
)

// newWorktreeCommand creates the worktree command group.
func newWorktreeCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worktree",
		Aliases: []string{"wt"},
		Short:   "Provision or remove task worktrees by hand",
	}
	cmd.AddCommand(newWorktreeAddCommand(d), newWorktreeRemoveCommand(d))
	return cmd
}

// newWorktreeAddCommand creates the worktree add subcommand.
func newWorktreeAddCommand(d *deps) *cobra.Command {
	var in usecase.CreateWorktreeInput

	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Create a fresh worktree for a task",
		Long: `Create a fresh worktree for a task, replacing any stale worktree
and branch left by an earlier run of the same task.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			in.TaskID = args[0]
			out, err := c.CreateWorktreeUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Successfully created worktree: %s\n", out.Workspace.Path)
			_, _ = fmt.Fprintf(w, "Branch: %s (from %s at %.8s)\n", out.Workspace.Branch, out.Workspace.BaseBranch, out.Workspace.BaseCommit)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Source, "repo", ".", "Source repository")
	cmd.Flags().StringVar(&in.Base, "base", "", "Base branch (default: current branch of --repo)")

	return cmd
}

// newWorktreeRemoveCommand creates the worktree remove subcommand.
func newWorktreeRemoveCommand(d *deps) *cobra.Command {
	var in usecase.RemoveWorktreeInput

	cmd := &cobra.Command{
		Use:     "remove <path>",
		Aliases: []string{"rm"},
		Short:   "Remove a task worktree",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			in.Path = args[0]
			if err := c.RemoveWorktreeUseCase().Execute(cmd.Context(), in); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed worktree: %s\n", in.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Source, "repo", ".", "Repository the worktree belongs to")

	return cmd
}
