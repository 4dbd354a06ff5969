package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// It auto-detects the terminal background for light/dark styling and wraps
// output to the terminal width when stdout is a terminal.
func NewRenderer() func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, _ := glamour.NewTermRenderer(opts...)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// TranscriptMarkdown formats the messages visible to viewer as a markdown
// document, one day per section. Private messages of other participants are
// filtered out before anything reaches the terminal.
func TranscriptMarkdown(messages []domain.GameMessage, viewer string) string {
	var sb strings.Builder
	day := -1
	for _, msg := range messages {
		if !msg.VisibleTo(viewer) {
			continue
		}
		if msg.Day != day {
			day = msg.Day
			if day == 0 {
				sb.WriteString("# Welcome to Moon Hollow\n\n")
			} else {
				fmt.Fprintf(&sb, "# Day %d\n\n", day)
			}
		}
		switch msg.Type {
		case domain.MessageNarrative:
			fmt.Fprintf(&sb, "> %s\n\n", msg.Body)
		case domain.MessageCommand:
			fmt.Fprintf(&sb, "*(%s)*\n\n", msg.Body)
		case domain.MessageError:
			fmt.Fprintf(&sb, "**%s:** %s\n\n", msg.Author, msg.Body)
		default:
			fmt.Fprintf(&sb, "**%s:** %s\n\n", msg.Author, msg.Body)
		}
	}
	return sb.String()
}
