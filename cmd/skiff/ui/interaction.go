package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	envNoColor = "NO_COLOR"
	envCI      = "CI"
	envTerm    = "TERM"
)

var configureOnce sync.Once

// Configure picks the color profile once. Plain ASCII when the output is
// not a terminal, or when NO_COLOR/CI/TERM=dumb say so.
func Configure(noColor bool) {
	configureOnce.Do(func() {
		if colorAllowed(noColor) {
			lipgloss.SetColorProfile(termenv.ColorProfile())
			return
		}
		lipgloss.SetColorProfile(termenv.Ascii)
	})
}

func colorAllowed(noColor bool) bool {
	if noColor {
		return false
	}
	if envTruthy(envNoColor) || envTruthy(envCI) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(envTerm)), "dumb") {
		return false
	}
	return stdoutIsTerminal()
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func envTruthy(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
