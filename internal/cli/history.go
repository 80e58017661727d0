package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-jar/internal/usecase"
)

// newHistoryCommand creates the history command.
func newHistoryCommand(d *deps) *cobra.Command {
	var in usecase.ListHistoryInput

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the worker runs recorded by jar run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			out, err := c.ListHistoryUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.TaskID, "task", "", "Only runs of this task")
	cmd.Flags().StringVar(&in.Date, "date", "", "Only runs of this jar partition")
	cmd.Flags().IntVarP(&in.Limit, "limit", "n", 20, "Maximum number of runs (0 = all)")

	return cmd
}

func printHistory(w io.Writer, out *usecase.ListHistoryOutput) {
	if len(out.Runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		return
	}
	st := newStyler(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RECORDED\tDATE\tTASK\tOUTCOME\tEXIT\tDURATION\tPUBLISHED")
	for _, r := range out.Runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%t\n",
			r.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			r.Date, r.TaskID, st.Outcome(r.Outcome), r.ExitCode, formatDuration(r.Duration), r.Published)
	}
	_ = tw.Flush()
}

// newLogsCommand creates the logs command.
func newLogsCommand(d *deps) *cobra.Command {
	var in usecase.ShowLogsInput

	cmd := &cobra.Command{
		Use:   "logs [task-id]",
		Short: "Show the global log or a task log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				in.TaskID = args[0]
			}
			out, err := c.ShowLogsUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out.Content)
			return nil
		},
	}

	cmd.Flags().IntVarP(&in.Lines, "lines", "n", 0, "Number of lines from the end (0 = all)")

	return cmd
}
