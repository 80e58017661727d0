package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/runoshun/git-jar/internal/domain"
)

// Colors defines the palette used for terminal output.
var Colors = struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Queued  lipgloss.Color
	Running lipgloss.Color
}{
	Primary: lipgloss.Color("#6C5CE7"), // Purple
	Muted:   lipgloss.Color("#636E72"), // Gray
	Error:   lipgloss.Color("#D63031"), // Red
	Success: lipgloss.Color("#00B894"), // Green
	Warning: lipgloss.Color("#FDCB6E"), // Yellow
	Queued:  lipgloss.Color("#74B9FF"), // Light blue
	Running: lipgloss.Color("#A29BFE"), // Lavender
}

// styler renders lipgloss styles only when writing to a terminal.
type styler struct {
	banner  lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	color   bool
}

func newStyler(w io.Writer) styler {
	return styler{
		banner: lipgloss.NewStyle().
			Bold(true).
			Foreground(Colors.Primary).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Colors.Primary).
			Padding(0, 1),
		bold:    lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(Colors.Muted),
		success: lipgloss.NewStyle().Foreground(Colors.Success),
		failure: lipgloss.NewStyle().Foreground(Colors.Error),
		warning: lipgloss.NewStyle().Foreground(Colors.Warning),
		color:   isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

// Banner renders a boxed heading, or a plain one outside a terminal.
func (s styler) Banner(text string) string {
	if !s.color {
		return "== " + text + " =="
	}
	return s.banner.Render(text)
}

func (s styler) Bold(text string) string    { return s.render(s.bold, text) }
func (s styler) Muted(text string) string   { return s.render(s.muted, text) }
func (s styler) Success(text string) string { return s.render(s.success, text) }
func (s styler) Failure(text string) string { return s.render(s.failure, text) }
func (s styler) Warning(text string) string { return s.render(s.warning, text) }

// Status renders a task status in its color.
func (s styler) Status(status domain.Status) string {
	text := status.Display()
	if !s.color {
		return text
	}
	var c lipgloss.Color
	switch status {
	case domain.StatusQueued, domain.StatusMarinating:
		c = Colors.Queued
	case domain.StatusRunning:
		c = Colors.Running
	case domain.StatusDone:
		c = Colors.Success
	case domain.StatusFailed:
		c = Colors.Error
	default:
		c = Colors.Muted
	}
	return lipgloss.NewStyle().Foreground(c).Render(text)
}

// Outcome renders a worker outcome in its color.
func (s styler) Outcome(o domain.Outcome) string {
	switch o {
	case domain.OutcomeSuccess:
		return s.Success(string(o))
	case domain.OutcomeTimeout:
		return s.Warning(string(o))
	default:
		return s.Failure(string(o))
	}
}

func printWarning(w io.Writer, msg string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", newStyler(w).Warning("Warning:"), msg)
}

// formatDuration renders a duration to the second.
func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
