package feedback

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleSink renders a small panel per event, standing in for the
// reader's display: who swiped and where they are now.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer

	box      lipgloss.Style
	accepted lipgloss.Style
	rejected lipgloss.Style
	failed   lipgloss.Style
	dim      lipgloss.Style
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:      out,
		box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		accepted: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		rejected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		failed:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dim:      lipgloss.NewStyle().Faint(true),
	}
}

func (s *ConsoleSink) Notify(_ context.Context, ev Event) error {
	if ev.Outcome == OutcomeSuppressed {
		return nil
	}
	panel := s.box.Render(s.Render(ev))

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, panel)
	return err
}

// Render returns the panel body for ev without the border.
func (s *ConsoleSink) Render(ev Event) string {
	name := ev.Holder
	if name == "" {
		name = ev.BadgeID
	}

	var line string
	switch ev.Outcome {
	case OutcomeAccepted:
		word := "Welcome"
		if ev.State == "OUT" {
			word = "Goodbye"
		}
		line = s.accepted.Render(word + ", " + name)
	case OutcomeRejected:
		line = s.rejected.Render("Already " + strings.ToLower(ev.State))
	case OutcomeUnknownReader:
		line = s.failed.Render("Reader not registered")
	default:
		line = s.failed.Render("Try again")
	}

	footer := ev.BadgeID
	if !ev.At.IsZero() {
		footer += "  " + ev.At.Format("15:04:05")
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, s.dim.Render(footer))
}
