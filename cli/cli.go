// Package cli implements the cgt command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
)

// stdin is where "-" inputs are read from.
var stdin io.Reader = os.Stdin

// isTerminal reports whether both stdin and stdout are attached to a
// terminal, so interactive prompts can be shown.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printInfof(w io.Writer, format string, args ...any) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

// promptYear asks which of years to report on. It returns 0, meaning all
// years, when there is no terminal to prompt on.
func promptYear(years []int) (int, error) {
	if !isTerminal() || len(years) == 0 {
		return 0, nil
	}

	options := []huh.Option[int]{huh.NewOption("All years", 0)}
	for i := len(years) - 1; i >= 0; i-- {
		year := years[i]
		options = append(options, huh.NewOption(fmt.Sprintf("%d/%02d", year-1, year%100), year))
	}

	var year int
	field := huh.NewSelect[int]().
		Title("Which tax year?").
		Options(options...).
		Value(&year)

	if err := field.Run(); err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	return year, nil
}
