package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robinvdvleuten/cgt/errors"
)

var (
	errCaretStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	errContextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})
)

// ErrorRenderer renders errors with terminal styling and source context.
type ErrorRenderer struct {
	text *errors.TextFormatter
}

// NewErrorRenderer creates a renderer. Sources that are not in the map are
// read from disk when an error points into them.
func NewErrorRenderer(sources map[string][]byte) *ErrorRenderer {
	opts := []errors.TextFormatterOption{errors.WithFileSource()}
	for filename, content := range sources {
		opts = append(opts, errors.WithSource(filename, content))
	}
	return &ErrorRenderer{text: errors.NewTextFormatter(opts...)}
}

// Render formats a single error with styling and context.
func (r *ErrorRenderer) Render(err error) string {
	formatted := r.text.Format(err)

	message, context, found := strings.Cut(formatted, "\n\n")
	if !found {
		return errorStyle.Render(formatted)
	}

	var buf strings.Builder
	buf.WriteString(errorStyle.Render(message))
	buf.WriteString("\n\n")

	for _, line := range strings.Split(strings.TrimRight(context, "\n"), "\n") {
		if strings.TrimSpace(line) == "^" {
			buf.WriteString(strings.TrimSuffix(line, "^"))
			buf.WriteString(errCaretStyle.Render("^"))
		} else {
			buf.WriteString("   ")
			buf.WriteString(errContextStyle.Render(strings.TrimPrefix(line, "   ")))
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// RenderAll formats multiple errors, separating them with blank lines.
func (r *ErrorRenderer) RenderAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf strings.Builder
	for i, err := range errs {
		buf.WriteString(r.Render(err))
		if i < len(errs)-1 {
			buf.WriteString("\n\n")
		}
	}
	return buf.String()
}
