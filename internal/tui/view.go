package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/juststeveking/stagewatch/internal/monitor"
)

var (
	colorAccent    = lipgloss.Color("#04D9FF") // Neon Cyan
	colorHealthy   = lipgloss.Color("#00FF94") // Neon Green
	colorUnhealthy = lipgloss.Color("#FF0055") // Neon Red
	colorChecking  = lipgloss.Color("#FFD700") // Gold
	colorMuted     = lipgloss.Color("#565f89") // Muted Blue
	colorSubtle    = lipgloss.Color("#24283b") // Dark Blue
	colorCard      = lipgloss.Color("#16161e") // Very Dark Blue
	colorText      = lipgloss.Color("#c0caf5") // Light Blue/White

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginTop(1).
			MarginBottom(1)

	// Status indicators
	healthyStyle = lipgloss.NewStyle().
			Foreground(colorHealthy).
			Bold(true)

	unhealthyStyle = lipgloss.NewStyle().
			Foreground(colorUnhealthy).
			Bold(true)

	checkingStyle = lipgloss.NewStyle().
			Foreground(colorChecking).
			Bold(true)

	// Base card style (border color will be overridden)
	baseCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Background(colorCard).
			Padding(0, 1).
			MarginRight(1).
			MarginBottom(1)

	metadataStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorUnhealthy)

	serviceNameStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorText)

	secondaryStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// View renders the TUI with full-screen grid layout
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.showForm && m.form != nil {
		return lipgloss.Place(
			m.width,
			m.height,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent).
				Padding(1, 2).
				Render(m.form.View()),
		)
	}

	width := m.width
	if width < 40 {
		width = 80
	}

	if m.showDetail {
		return m.renderDetail(width)
	}

	cols := 2
	if width > 160 {
		cols = 3
	}
	if width > 200 {
		cols = 4
	}
	cardWidth := (width - 4) / cols
	if cardWidth < 20 {
		cardWidth = 20
		cols = 1
	}

	var b strings.Builder

	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")

	if len(m.services) == 0 {
		b.WriteString("\n")
		centerText := "⟳ Waiting for health checks..."
		padding := (width - len(centerText)) / 2
		if padding > 0 {
			b.WriteString(strings.Repeat(" ", padding))
		}
		b.WriteString(metadataStyle.Render(centerText))
		b.WriteString("\n")
	} else {
		failing, starting, operational := m.groupServices()

		if len(failing) > 0 {
			b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("✗ Failing (%d)", len(failing))) + "\n")
			b.WriteString(m.renderServiceGrid(failing, cardWidth, cols))
		}
		if len(starting) > 0 {
			b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("⟳ Starting (%d)", len(starting))) + "\n")
			b.WriteString(m.renderServiceGrid(starting, cardWidth, cols))
		}
		if len(operational) > 0 {
			b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("✓ Operational (%d)", len(operational))) + "\n")
			b.WriteString(m.renderServiceGrid(operational, cardWidth, cols))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter(width))
	b.WriteString("\n")

	return b.String()
}

// groupServices splits services into failing, starting and operational
func (m Model) groupServices() (failing, starting, operational []ServiceState) {
	for _, svc := range m.services {
		switch {
		case svc.ThresholdExceeded || (svc.Checked && !svc.Healthy):
			failing = append(failing, svc)
		case svc.Stage == monitor.StageOperational:
			operational = append(operational, svc)
		default:
			starting = append(starting, svc)
		}
	}
	return failing, starting, operational
}

// renderHeader renders the title and per-stage counts
func (m Model) renderHeader(width int) string {
	var b strings.Builder

	titleRendered := titleStyle.Render("STAGEWATCH")

	var stats string
	if len(m.services) > 0 {
		var counts [monitor.NumStages]int
		for _, svc := range m.services {
			counts[svc.Stage]++
		}
		parts := make([]string, 0, monitor.NumStages)
		for _, s := range monitor.AllStages() {
			parts = append(parts, stageStyle(s).Render(fmt.Sprintf("%s %d", stageAbbrev(s), counts[s])))
		}
		stats = strings.Join(parts, "  ")
	}

	// STAGEWATCH                      init 1  start 0  warm 2  op 3
	availableWidth := width - lipgloss.Width(titleRendered) - lipgloss.Width(stats) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleRendered,
		strings.Repeat(" ", availableWidth),
		stats,
	)

	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorSubtle).Render(strings.Repeat("━", width)))

	return b.String()
}

// renderFooter renders the time, key help and summary bar
func (m Model) renderFooter(width int) string {
	timeStr := time.Now().Format("15:04:05")
	helpStr := "q quit • n add • c check • x remove • enter detail"
	if m.flash != "" && time.Since(m.flashTime) < 5*time.Second {
		helpStr = m.flash
	}

	statusSummary := "No services"
	if len(m.services) > 0 {
		_, _, operational := m.groupServices()
		statusSummary = fmt.Sprintf("%d/%d Operational", len(operational), len(m.services))
	}

	footerStyle := lipgloss.NewStyle().
		Foreground(colorMuted).
		BorderTop(true).
		BorderForeground(colorSubtle).
		Width(width).
		PaddingTop(1)

	left := fmt.Sprintf(" %s │ %s", timeStr, helpStr)
	right := fmt.Sprintf("%s ", statusSummary)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return footerStyle.Render(left + strings.Repeat(" ", gap) + right)
}

// renderServiceGrid renders services in a grid layout
func (m Model) renderServiceGrid(services []ServiceState, cardWidth int, cols int) string {
	if cardWidth < 20 {
		cardWidth = 20
	}

	var rows []string
	for i := 0; i < len(services); i += cols {
		end := i + cols
		if end > len(services) {
			end = len(services)
		}

		var rowCards []string
		for j := i; j < end; j++ {
			rowCards = append(rowCards, m.renderServiceCompact(services[j], cardWidth))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rowCards...))
	}

	return strings.Join(rows, "\n")
}

// renderServiceCompact renders a service card for grid layout
func (m Model) renderServiceCompact(svc ServiceState, width int) string {
	var b strings.Builder

	selected := m.getSelectedNameSafe() == svc.Name

	borderColor := colorSubtle
	switch {
	case svc.IsChecking:
		borderColor = colorChecking
	case svc.ThresholdExceeded || (svc.Checked && !svc.Healthy):
		borderColor = colorUnhealthy
	case svc.Checked:
		borderColor = colorHealthy
	}
	if selected {
		borderColor = colorAccent
	}

	var statusIcon string
	if svc.IsChecking {
		if s, exists := m.spinners[svc.Name]; exists {
			statusIcon = s.View()
		} else {
			statusIcon = "⟳"
		}
	} else {
		statusIcon = m.getStatusIcon(svc)
	}

	name := svc.Name
	maxNameLen := width - 6
	if len(name) > maxNameLen {
		name = name[:maxNameLen-1] + "…"
	}

	b.WriteString(fmt.Sprintf("%s %s", statusIcon, serviceNameStyle.Render(name)))
	b.WriteString("\n")

	b.WriteString(renderStageTrack(svc.Stage))
	b.WriteString("\n")

	details := []string{
		failureStyle(svc).Render(fmt.Sprintf("%d/%d failures", svc.FailureCount, svc.MaxFailures)),
		secondaryStyle.Render("every " + formatDuration(svc.Interval)),
	}
	if svc.Grace > 1 {
		details = append(details, checkingStyle.Render(fmt.Sprintf("grace ×%.1f", svc.Grace)))
	}
	b.WriteString(strings.Join(details, secondaryStyle.Render(" • ")))
	b.WriteString("\n")

	meta := "up " + formatDuration(svc.Uptime.Truncate(time.Second))
	if svc.Checked && !svc.IsChecking {
		meta += " • " + formatTime(svc.LastChecked)
	}
	if len(svc.Checks) > 0 {
		meta += " • " + strings.Join(svc.Checks, " ")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(colorMuted).Render(meta))

	if svc.Error != "" {
		b.WriteString("\n")
		errMsg := svc.Error
		if len(errMsg) > width-4 && width > 8 {
			errMsg = errMsg[:width-7] + "…"
		}
		b.WriteString(errorStyle.Render(errMsg))
	}

	return baseCardStyle.
		Width(width).
		BorderForeground(borderColor).
		Render(b.String())
}

// renderDetail renders the selected service with its recent history
func (m Model) renderDetail(width int) string {
	var svc ServiceState
	for _, s := range m.services {
		if s.Name == m.detailName {
			svc = s
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(svc.Name))
	b.WriteString("\n")
	b.WriteString(renderStageTrack(svc.Stage))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Stage", svc.Stage.String()},
		{"Failures", fmt.Sprintf("%d of %d", svc.FailureCount, svc.MaxFailures)},
		{"Interval", formatDuration(svc.Interval)},
		{"Grace", fmt.Sprintf("×%.2f", svc.Grace)},
		{"Uptime", formatDuration(svc.Uptime.Truncate(time.Second))},
		{"Checks", strings.Join(svc.Checks, ", ")},
	}
	for _, r := range rows {
		b.WriteString(secondaryStyle.Render(fmt.Sprintf("%-10s", r[0])))
		b.WriteString(r[1])
		b.WriteString("\n")
	}

	if m.monitor != nil {
		history := m.monitor.History(svc.Name)
		if len(history) > 10 {
			history = history[len(history)-10:]
		}
		if len(history) > 0 {
			b.WriteString("\n" + headerStyle.Render("Recent checks") + "\n")
		}
		for i := len(history) - 1; i >= 0; i-- {
			r := history[i]
			icon := healthyStyle.Render("✓")
			line := fmt.Sprintf("%s %-14s %s", r.Timestamp.Format("15:04:05"), r.Stage, formatDuration(time.Duration(r.CheckDurationMs*float64(time.Millisecond))))
			if !r.Success {
				icon = unhealthyStyle.Render("✗")
				line += " " + errorStyle.Render(r.ErrorMessage)
			}
			b.WriteString(icon + " " + line + "\n")
		}
	}

	b.WriteString("\n" + metadataStyle.Render("esc/enter to close"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(width - 4).
		Render(b.String())
}

// renderStageTrack draws the stage progression, e.g. ●━●━○━○ startup
func renderStageTrack(current monitor.HealthStage) string {
	parts := make([]string, 0, monitor.NumStages)
	for _, s := range monitor.AllStages() {
		if s <= current {
			parts = append(parts, stageStyle(current).Render("●"))
		} else {
			parts = append(parts, secondaryStyle.Render("○"))
		}
	}
	return strings.Join(parts, secondaryStyle.Render("━")) + " " + stageStyle(current).Render(current.String())
}

func stageStyle(s monitor.HealthStage) lipgloss.Style {
	switch s {
	case monitor.StageOperational:
		return healthyStyle
	case monitor.StageWarming:
		return lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	default:
		return checkingStyle
	}
}

func failureStyle(svc ServiceState) lipgloss.Style {
	switch {
	case svc.ThresholdExceeded:
		return unhealthyStyle
	case svc.FailureCount > 0:
		return checkingStyle
	default:
		return secondaryStyle
	}
}

// getStatusIcon returns the icon for a service
func (m Model) getStatusIcon(svc ServiceState) string {
	switch {
	case !svc.Checked:
		return "?"
	case svc.Healthy:
		return healthyStyle.Render("✓")
	default:
		return unhealthyStyle.Render("✗")
	}
}

// getSelectedNameSafe is getSelectedName without clamping
func (m Model) getSelectedNameSafe() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.services) {
		return ""
	}
	return m.services[m.selectedIndex].Name
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	}
	if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	}
	return t.Format("15:04:05")
}
