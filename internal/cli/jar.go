package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-jar/internal/app"
	"github.com/runoshun/git-jar/internal/domain"
	"github.com/runoshun/git-jar/internal/usecase"
)

// newRunCommand creates the run command that drains a jar partition.
func newRunCommand(d *deps) *cobra.Command {
	var opts struct {
		date    string
		publish bool
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every queued task of a jar partition",
		Long: `Process the queued and marinating tasks of a jar partition one at a time.

Each task gets a fresh worktree and a worker run. Failed tasks are marked
failed with a handoff.md note and their worktree is kept for review.
Without --publish, successful tasks get a pull request draft in their
worktree; with --publish the branch is pushed, a pull request is opened
and the worktree is removed.`,
		Example: `  jar run
  jar run --date 2026-01-15 --publish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			st := newStyler(w)

			out, err := c.ProcessJarUseCase().Execute(cmd.Context(), usecase.ProcessJarInput{
				Observer:           &printObserver{w: w, st: st},
				Date:               opts.date,
				EnclosingStatePath: enclosingStatePath(c),
				Publish:            opts.publish,
			})
			if errors.Is(err, domain.ErrJarNotFound) {
				printWarning(cmd.ErrOrStderr(), err.Error())
				return nil
			}
			if out != nil {
				printRunSummary(w, st, out)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "Jar partition to process (YYYY-MM-DD, default: today)")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Push the branch and open a pull request on success")

	return cmd
}

// enclosingStatePath finds the session that started this run: the
// JAR_STATE_FILE environment variable, else the session registered for cwd.
func enclosingStatePath(c *app.Container) string {
	if p := os.Getenv(domain.StateFileEnv); p != "" {
		return p
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir, err := c.Sessions.Lookup(cwd)
	if err != nil {
		return ""
	}
	return domain.StatePath(dir)
}

// printObserver prints per-task progress lines.
type printObserver struct {
	w  io.Writer
	st styler
}

func (o *printObserver) TaskStarted(index, total int, rec *domain.TaskRecord) {
	_, _ = fmt.Fprintf(o.w, "%s\n", o.st.Bold(fmt.Sprintf("[%d/%d] Crunching task: %s", index, total, rec.TaskID)))
	_, _ = fmt.Fprintf(o.w, "  Repo:        %s\n", rec.SourceLocation)
	_, _ = fmt.Fprintf(o.w, "  Base branch: %s\n", rec.BaseBranch)
}

func (o *printObserver) TaskSkipped(taskID, reason string) {
	_, _ = fmt.Fprintln(o.w, o.st.Muted(fmt.Sprintf("Skipping %s: %s", taskID, reason)))
}

func (o *printObserver) TaskFinished(r usecase.TaskResult) {
	if r.Succeeded() {
		_, _ = fmt.Fprintln(o.w, o.st.Success(fmt.Sprintf("Task %s crunched (%s)", r.TaskID, r.Outcome)))
		if r.PRURL != "" {
			_, _ = fmt.Fprintf(o.w, "  Pull request: %s\n", r.PRURL)
		}
	} else {
		_, _ = fmt.Fprintln(o.w, o.st.Failure(fmt.Sprintf("Task %s failed at %s: %v", r.TaskID, r.Stage, r.Err)))
	}
	if r.Retained {
		_, _ = fmt.Fprintln(o.w, o.st.Warning("  Worktree kept for review: "+r.Workspace))
	}
	_, _ = fmt.Fprintln(o.w, strings.Repeat("-", 60))
}

func printRunSummary(w io.Writer, st styler, out *usecase.ProcessJarOutput) {
	_, _ = fmt.Fprintln(w, st.Banner("Jar "+out.Date+" complete"))
	_, _ = fmt.Fprintf(w, "Processed: %d  Succeeded: %s  Failed: %s  Skipped: %d\n",
		out.Processed(),
		st.Success(fmt.Sprint(out.Succeeded)),
		st.Failure(fmt.Sprint(out.Failed)),
		len(out.Skipped))
	for _, path := range out.Retained {
		_, _ = fmt.Fprintf(w, "Retained: %s\n", path)
	}
}

// newAddCommand creates the add command that submits a task.
func newAddCommand(d *deps) *cobra.Command {
	var opts usecase.AddToJarInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a task to the jar",
		Long: `Submit a task to the jar.

With --session, the brief (prd.md) of a planning session is jarred as a
marinating task, the base branch is the current branch of the session's
working directory, and the session is deactivated.

Otherwise --repo and --brief describe a queued task directly.`,
		Example: `  jar add --session ~/.local/share/git-jar/sessions/2026-01-15-abc
  jar add --repo . --brief task.md --id fix-login --base main`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			out, err := c.AddToJarUseCase().Execute(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task successfully jarred at: %s\n", out.Record.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.SessionDir, "session", "", "Session directory to jar")
	cmd.Flags().StringVar(&opts.Source, "repo", "", "Repository of the task")
	cmd.Flags().StringVar(&opts.Base, "base", "", "Base branch (default: current branch of --repo)")
	cmd.Flags().StringVar(&opts.BriefPath, "brief", "", "Brief file describing the task")
	cmd.Flags().StringVar(&opts.TaskID, "id", "", "Task ID (default: generated)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Jar partition (YYYY-MM-DD, default: today)")
	cmd.MarkFlagsMutuallyExclusive("session", "repo")
	cmd.MarkFlagsOneRequired("session", "repo")

	return cmd
}

// newListCommand creates the list command.
func newListCommand(d *deps) *cobra.Command {
	var opts struct {
		date     string
		statuses []string
		all      bool
	}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks in the jar",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			statuses := make([]domain.Status, 0, len(opts.statuses))
			for _, s := range opts.statuses {
				statuses = append(statuses, domain.Status(s))
			}
			out, err := c.ListJarUseCase().Execute(cmd.Context(), usecase.ListJarInput{
				Date:   opts.date,
				Status: statuses,
				All:    opts.all,
			})
			if errors.Is(err, domain.ErrJarNotFound) {
				printWarning(cmd.ErrOrStderr(), err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			printJarList(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "Jar partition (YYYY-MM-DD, default: today)")
	cmd.Flags().StringSliceVarP(&opts.statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "List every partition")

	return cmd
}

func printJarList(w io.Writer, out *usecase.ListJarOutput) {
	st := newStyler(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DATE\tTASK\tSTATUS\tBRANCH\tREPO")
	for _, p := range out.Partitions {
		for _, e := range p.Entries {
			if e.Record == nil {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t-\t%v\n", p.Date, e.TaskID, st.Failure("unreadable"), e.Err)
				continue
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				p.Date, e.TaskID, st.Status(e.Record.Status), e.Record.BaseBranch, e.Record.SourceLocation)
		}
	}
	_ = tw.Flush()
}

// newShowCommand creates the show command.
func newShowCommand(d *deps) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its brief and handoff note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			out, err := c.ShowTaskUseCase().Execute(cmd.Context(), usecase.ShowTaskInput{TaskID: args[0], Date: date})
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Jar partition (default: newest containing the task)")

	return cmd
}

func printTask(w io.Writer, out *usecase.ShowTaskOutput) {
	st := newStyler(w)
	rec := out.Record
	_, _ = fmt.Fprintln(w, st.Banner("Task "+rec.TaskID))
	_, _ = fmt.Fprintf(w, "Date:      %s\n", out.Date)
	_, _ = fmt.Fprintf(w, "Status:    %s\n", st.Status(rec.Status))
	_, _ = fmt.Fprintf(w, "Repo:      %s\n", rec.SourceLocation)
	_, _ = fmt.Fprintf(w, "Base:      %s\n", rec.BaseBranch)
	_, _ = fmt.Fprintf(w, "Created:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	if rec.BranchName != "" {
		_, _ = fmt.Fprintf(w, "Branch:    %s\n", rec.BranchName)
	}
	if rec.WorkspacePath != "" {
		_, _ = fmt.Fprintf(w, "Worktree:  %s\n", rec.WorkspacePath)
	}
	if rec.LastError != "" {
		_, _ = fmt.Fprintf(w, "Error:     %s\n", st.Failure(rec.LastError))
	}
	if out.Brief != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n%s", st.Bold("Brief:"), out.Brief)
		if !strings.HasSuffix(out.Brief, "\n") {
			_, _ = fmt.Fprintln(w)
		}
	}
	if out.Handoff != nil {
		_, _ = fmt.Fprintf(w, "\n%s (stage %s, %s)\n%s\n", st.Bold("Handoff:"),
			out.Handoff.Stage, out.Handoff.Time.Format("2006-01-02 15:04:05"), out.Handoff.Error)
	}
}
