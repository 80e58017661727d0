package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-jar/internal/usecase"
)

// newSessionCommand creates the session command group.
func newSessionCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and cancel sessions",
	}
	cmd.AddCommand(newSessionShowCommand(d), newSessionCancelCommand(d))
	return cmd
}

func sessionRefFlags(cmd *cobra.Command, ref *usecase.SessionRef) {
	cmd.Flags().StringVar(&ref.SessionDir, "session", "", "Session directory")
	cmd.Flags().StringVar(&ref.Worktree, "worktree", "", "Worktree registered for the session (default: current directory)")
}

// defaultWorktree falls back to the current directory when no reference is given.
func defaultWorktree(ref *usecase.SessionRef) {
	if ref.SessionDir == "" && ref.Worktree == "" {
		ref.Worktree = "."
	}
}

// newSessionShowCommand creates the session show subcommand.
func newSessionShowCommand(d *deps) *cobra.Command {
	var ref usecase.SessionRef

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a session's state and remaining budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			defaultWorktree(&ref)
			out, err := c.ShowSessionUseCase().Execute(cmd.Context(), usecase.ShowSessionInput{Ref: ref})
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), out)
			return nil
		},
	}
	sessionRefFlags(cmd, &ref)
	return cmd
}

func printSession(w io.Writer, out *usecase.ShowSessionOutput) {
	st := newStyler(w)
	s := out.State
	_, _ = fmt.Fprintln(w, st.Banner("Session "+s.SessionDir))
	_, _ = fmt.Fprintf(w, "State file:  %s\n", out.StatePath)
	_, _ = fmt.Fprintf(w, "Active:      %t\n", s.Active)
	_, _ = fmt.Fprintf(w, "Working dir: %s\n", s.WorkingDir)
	_, _ = fmt.Fprintf(w, "Step:        %s\n", s.Step)
	_, _ = fmt.Fprintf(w, "Iteration:   %d/%d\n", s.Iteration, s.MaxIterations)
	if s.StartTimeEpoch > 0 {
		_, _ = fmt.Fprintf(w, "Started:     %s\n", time.Unix(s.StartTimeEpoch, 0).Format("2006-01-02 15:04:05"))
	}
	if out.HasBudget {
		_, _ = fmt.Fprintf(w, "Remaining:   %s of %dm\n", formatDuration(out.Remaining), s.MaxTimeMinutes)
	} else {
		_, _ = fmt.Fprintln(w, "Remaining:   no budget")
	}
	if s.Outcome != "" {
		_, _ = fmt.Fprintf(w, "Outcome:     %s\n", s.Outcome)
	}
	if out.Limit != "" {
		_, _ = fmt.Fprintf(w, "Limit:       %s\n", st.Warning(string(out.Limit)))
	}
}

// newSessionCancelCommand creates the session cancel subcommand.
func newSessionCancelCommand(d *deps) *cobra.Command {
	var ref usecase.SessionRef

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Deactivate a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			defaultWorktree(&ref)
			out, err := c.CancelSessionUseCase().Execute(cmd.Context(), usecase.CancelSessionInput{Ref: ref})
			if err != nil {
				return err
			}
			if !out.WasActive {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session already inactive: %s\n", out.StatePath)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session cancelled: %s\n", out.StatePath)
			return nil
		},
	}
	sessionRefFlags(cmd, &ref)
	return cmd
}
