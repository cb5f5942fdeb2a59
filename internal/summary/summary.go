// Package summary renders pipeline run results for the terminal using
// the teacher's lipgloss brand palette, scaled down to the handful of
// status colors the CLI commands in cmd/ need.
package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	success = lipgloss.Color("#8BC34A")
	failure = lipgloss.Color("#e53935")
	muted   = lipgloss.Color("#9aa5b1")
	heading = lipgloss.Color("#101F38")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(heading)
	successStyle = lipgloss.NewStyle().Foreground(success)
	failureStyle = lipgloss.NewStyle().Foreground(failure)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
)

// ControllerRun renders an Evolution Controller run summary.
func ControllerRun(processed, succeeded, failed, skipped int) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Evolution run complete"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  processed: %d\n", processed))
	b.WriteString(successStyle.Render(fmt.Sprintf("  succeeded: %d\n", succeeded)))
	b.WriteString(failureStyle.Render(fmt.Sprintf("  failed:    %d\n", failed)))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  skipped:   %d\n", skipped)))
	return b.String()
}

// Promotion renders a successful promotion.
func Promotion(name, version string) string {
	return successStyle.Render(fmt.Sprintf("promoted %s@%s to prod\n", name, version))
}

// PromotionFailed renders a failed promotion attempt.
func PromotionFailed(name string, err error) string {
	return failureStyle.Render(fmt.Sprintf("promotion of %s failed: %v\n", name, err))
}

// Rollback renders a successful rollback.
func Rollback(name, from, to string) string {
	return successStyle.Render(fmt.Sprintf("rolled back %s: %s -> %s\n", name, from, to))
}

// Error renders a generic failure line.
func Error(err error) string {
	return failureStyle.Render(fmt.Sprintf("error: %v\n", err))
}
