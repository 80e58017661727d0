package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-jar/internal/domain"
	"github.com/runoshun/git-jar/internal/usecase"
)

// errWorkerFailed is returned when a spawned worker did not print the completion marker.
var errWorkerFailed = errors.New("worker did not report completion")

// newWorkerCommand creates the worker command group.
func newWorkerCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run nested workers inside a session budget",
	}
	cmd.AddCommand(newWorkerSpawnCommand(d))
	return cmd
}

// newWorkerSpawnCommand creates the worker spawn subcommand.
func newWorkerSpawnCommand(d *deps) *cobra.Command {
	var opts struct {
		ticketID   string
		ticketPath string
		timeout    int
	}

	cmd := &cobra.Command{
		Use:   "spawn <task>",
		Short: "Run a worker for a ticket, clamped to the enclosing session budget",
		Long: `Run a worker for one ticket of an orchestrating session.

The timeout is clamped to the remaining budget of the enclosing session,
read from $JAR_STATE_FILE, then the state.json next to the ticket
directory, then the ticket's own state.json. The worker output goes to
worker_session_<id>.log in the ticket directory.

Exits 0 only when the worker printed the completion marker.`,
		Example: `  jar worker spawn --ticket-id t1 --ticket-path "$SESSION/t1" "Implement the parser"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := d.container()
			if err != nil {
				return err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get current directory: %w", err)
			}

			out, err := c.SpawnWorkerUseCase().Execute(cmd.Context(), usecase.SpawnWorkerInput{
				Task:       strings.Join(args, " "),
				TicketID:   opts.ticketID,
				TicketPath: opts.ticketPath,
				StateFile:  os.Getenv(domain.StateFileEnv),
				Dir:        cwd,
				Timeout:    time.Duration(opts.timeout) * time.Second,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			st := newStyler(w)
			inv := out.Invocation
			if out.Clamped() {
				printWarning(cmd.ErrOrStderr(), fmt.Sprintf("worker timeout clamped: %s", formatDuration(inv.EffectiveTimeout)))
			}
			_, _ = fmt.Fprintln(w, st.Banner("Worker Report"))
			_, _ = fmt.Fprintf(w, "Ticket:     %s\n", opts.ticketID)
			_, _ = fmt.Fprintf(w, "Status:     exit:%d\n", inv.ExitCode)
			_, _ = fmt.Fprintf(w, "Outcome:    %s\n", st.Outcome(inv.Outcome))
			_, _ = fmt.Fprintf(w, "Timeout:    %s (requested %s)\n", formatDuration(inv.EffectiveTimeout), formatDuration(inv.RequestedTimeout))
			_, _ = fmt.Fprintf(w, "Duration:   %s\n", formatDuration(inv.Duration()))
			_, _ = fmt.Fprintf(w, "Log:        %s\n", inv.LogPath)

			if !out.Succeeded() {
				return errWorkerFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ticketID, "ticket-id", "", "Ticket ID")
	cmd.Flags().StringVar(&opts.ticketPath, "ticket-path", "", "Ticket directory (or a file inside it)")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "Requested timeout in seconds (default: worker.nested_timeout_seconds)")
	_ = cmd.MarkFlagRequired("ticket-id")
	_ = cmd.MarkFlagRequired("ticket-path")

	return cmd
}
