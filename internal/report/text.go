package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/willibrandon/dbcheck/internal/db"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(10)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// StatusLine is the single line printed for r in text mode.
func StatusLine(r db.Result) string {
	if r.OK {
		return SuccessMessage
	}
	detail := "unknown failure"
	if r.Err != nil {
		detail = r.Err.Error()
	}
	// Keep the report on one line whatever the driver put in its message.
	detail = strings.Join(strings.Fields(detail), " ")
	return FailurePrefix + detail
}

func renderText(w io.Writer, r db.Result, opts Options) error {
	status := color.New(color.FgGreen, color.Bold)
	if !r.OK {
		status = color.New(color.FgHiRed, color.Bold)
	}
	if opts.Color {
		status.EnableColor()
	} else {
		status.DisableColor()
	}

	if _, err := fmt.Fprintln(w, status.Sprint(StatusLine(r))); err != nil {
		return err
	}
	if !opts.Verbose {
		return nil
	}
	_, err := fmt.Fprintln(w, details(r, opts))
	return err
}

func details(r db.Result, opts Options) string {
	var rows []string
	row := func(label, value string) {
		rows = append(rows, labelStyle.Render(label)+" "+value)
	}

	if r.Target.Host != "" {
		row("target", r.Target.Redacted())
		row("driver", r.Target.Driver())
		if r.Target.TLSVerify {
			row("tls", "verify "+r.Target.TLSCAPath)
		} else {
			row("tls", "unverified")
		}
	}
	if r.Bundle != nil {
		row("ca", fmt.Sprintf("%d certificates, %s", r.Bundle.Certificates, humanize.Bytes(uint64(r.Bundle.Size))))
	}
	row("kind", r.Kind.String())
	row("latency", r.Latency.Round(time.Microsecond).String())
	row("checked", r.CheckedAt.UTC().Format(time.RFC3339))
	if opts.RunID != "" {
		row("run", opts.RunID)
	}

	style := detailStyle
	if !opts.Color {
		style = style.UnsetBorderForeground()
	}
	return style.Render(strings.Join(rows, "\n"))
}
