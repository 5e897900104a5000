package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// defaultWrapWidth applies when stdout is not a terminal or its size is
// unknown.
const defaultWrapWidth = 100

// NewRenderer returns a function that renders markdown for the terminal
// using glamour, wrapped to the terminal width. Outside a terminal, and
// when the renderer cannot be constructed, the raw markdown is passed
// through untouched.
func NewRenderer() func(string) (string, error) {
	passthrough := func(markdown string) (string, error) {
		return markdown, nil
	}

	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return passthrough
	}

	width := defaultWrapWidth
	if w, _, err := term.GetSize(fd); err == nil && w > 0 && w < width {
		width = w
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return passthrough
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
