package output

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ConfigureCLIColorProfile picks a color profile for w and applies it to both
// lipgloss and fatih/color so styled and emphasized text agree.
func ConfigureCLIColorProfile(w io.Writer) termenv.Profile {
	profile := detectColorProfile(w)
	lipgloss.SetColorProfile(profile)
	color.NoColor = profile == termenv.Ascii
	return profile
}

func detectColorProfile(w io.Writer) termenv.Profile {
	if disableColorOutput() {
		return termenv.Ascii
	}
	if forceColorOutput() {
		return termenv.EnvColorProfile()
	}
	if file, ok := w.(*os.File); ok {
		if term.IsTerminal(int(file.Fd())) {
			return termenv.NewOutput(w).ColorProfile()
		}
		return termenv.Ascii
	}
	return termenv.Ascii
}

func disableColorOutput() bool {
	if termenv.EnvNoColor() {
		return true
	}
	if val, ok := os.LookupEnv("CLICOLOR"); ok && strings.TrimSpace(val) == "0" {
		return true
	}
	if val, ok := os.LookupEnv("TERM"); ok && strings.EqualFold(strings.TrimSpace(val), "dumb") {
		return true
	}
	return false
}

func forceColorOutput() bool {
	for _, key := range []string{"CLICOLOR_FORCE", "FORCE_COLOR"} {
		if val, ok := os.LookupEnv(key); ok && envTruthy(val) {
			return true
		}
	}
	return false
}

func envTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func detectOutputWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok {
		return 0
	}
	fd := int(file.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return 0
	}
	return width
}
