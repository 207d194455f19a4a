package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/batonkit/baton/internal/orchestrator"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	tableCellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderTable renders rows as a bordered table with a styled header.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Render(fmt.Sprintf("%-*s", widths[i], cell))
		}
		b.WriteString("  " + strings.Join(parts, tableBorderStyle.Render("  ")) + "\n")
	}

	writeRow(headers, tableHeaderStyle)
	sep := make([]string, len(headers))
	for i := range headers {
		sep[i] = strings.Repeat("-", widths[i])
	}
	writeRow(sep, tableBorderStyle)
	for _, row := range rows {
		writeRow(row, tableCellStyle)
	}
	return b.String()
}

// printEvent writes one orchestrator event as a colored status line.
func printEvent(ev orchestrator.Event) {
	stamp := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case orchestrator.EventGoalSubmitted:
		fmt.Printf("%s %s goal %s: %s\n", stamp, color.CyanString("•"), shortID(ev.GoalID), ev.Message)
	case orchestrator.EventGoalPlanned:
		fmt.Printf("%s %s planned: %s\n", stamp, color.CyanString("•"), ev.Message)
	case orchestrator.EventPhaseStarted:
		fmt.Printf("%s %s %s\n", stamp, color.BlueString("▸"), ev.Message)
	case orchestrator.EventPhaseCompleted:
		fmt.Printf("%s %s %s\n", stamp, color.BlueString("▪"), ev.Message)
	case orchestrator.EventTaskStarted:
		fmt.Printf("%s %s [%s] %s\n", stamp, color.WhiteString("·"), ev.Capability, ev.Message)
	case orchestrator.EventTaskCompleted:
		fmt.Printf("%s %s [%s] %s\n", stamp, color.GreenString("✓"), ev.Capability, ev.Message)
	case orchestrator.EventTaskAdapted:
		fmt.Printf("%s %s [%s] adapted: %s\n", stamp, color.YellowString("≈"), ev.Capability, ev.Message)
	case orchestrator.EventTaskRetrying:
		fmt.Printf("%s %s [%s] retrying (%s): %v\n", stamp, color.YellowString("⟳"), ev.Capability, ev.Message, ev.Error)
	case orchestrator.EventTaskFailed:
		fmt.Printf("%s %s [%s] failed: %v\n", stamp, color.RedString("✗"), ev.Capability, ev.Error)
	case orchestrator.EventConflictDetected:
		fmt.Printf("%s %s conflict: %s\n", stamp, color.MagentaString("≠"), ev.Message)
	case orchestrator.EventGoalCompleted:
		fmt.Printf("%s %s goal %s completed: %s\n", stamp, color.GreenString("✓"), shortID(ev.GoalID), ev.Message)
	case orchestrator.EventGoalFailed:
		fmt.Printf("%s %s goal %s failed: %s\n", stamp, color.RedString("✗"), shortID(ev.GoalID), ev.Message)
	case orchestrator.EventGoalPaused:
		fmt.Printf("%s %s goal %s paused\n", stamp, color.YellowString("❚❚"), shortID(ev.GoalID))
	case orchestrator.EventGoalResumed:
		fmt.Printf("%s %s goal %s resumed\n", stamp, color.GreenString("▶"), shortID(ev.GoalID))
	case orchestrator.EventGoalCanceled:
		fmt.Printf("%s %s goal %s canceled\n", stamp, color.YellowString("■"), shortID(ev.GoalID))
	default:
		fmt.Printf("%s • %s %s\n", stamp, ev.Type, ev.Message)
	}
}

// shortID returns the first 8 characters of an id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens a string to maxLen runes for table display.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	// Add commas every 3 digits from the right
	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		if len(s) > offset {
			result.WriteString(",")
		}
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
