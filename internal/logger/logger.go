// Package logger provides process-wide logging for the summaryprobs CLI.
//
// Debug and Info are only printed in verbose mode (--verbose). Warnings and
// section banners are always printed: a skipped language or group must be
// visible without extra flags.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// bannerWidth is the width of section banners.
const bannerWidth = 80

var (
	mu       sync.RWMutex
	verbose  bool
	output   io.Writer = os.Stderr
	renderer           = lipgloss.NewRenderer(os.Stderr)
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer. Defaults to os.Stderr.
// Styling is disabled automatically when w is not a terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	renderer = lipgloss.NewRenderer(w)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	style := renderer.NewStyle().Foreground(lipgloss.Color("214"))
	fmt.Fprintln(output, style.Render(fmt.Sprintf("[WARN] "+format, args...)))
}

// Section prints a full-width banner, e.g.
//
//	------------------------ Processing language: EN ------------------------
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	style := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	fmt.Fprintf(output, "\n%s\n", style.Render(banner(name, bannerWidth)))
}

// banner centres " name " in a line of dashes.
func banner(name string, width int) string {
	label := " " + name + " "
	pad := width - lipgloss.Width(label)
	if pad <= 0 {
		return label
	}
	left := pad / 2
	return strings.Repeat("-", left) + label + strings.Repeat("-", pad-left)
}
