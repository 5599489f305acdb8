// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Latest telemetry seen on the link
type telemetryData struct {
	timestamp time.Time
	debug     *skylink.DebugData
	autopilot *skylink.AutopilotData
}

// TUI model
type model struct {
	linkName      string
	statsInterval int
	showAll       bool
	stats         skylink.Statistics
	invalid       uint64
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skipped       int
	width         int
	height        int
	quitting      bool
	linkDown      bool
	lastTelemetry *telemetryData
}

// Messages
type tickMsg time.Time
type statsMsg statsReport
type linkDownMsg struct {
	err error
}

// formatElapsed formats a duration to a human-friendly string
func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	hours := seconds / 3600
	minutes := (seconds / 60) % 60
	days := hours / 24
	hours %= 24
	seconds %= 60

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(linkName string, statsInterval int, showAll bool) model {
	return model{
		linkName:      linkName,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         *skylink.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case linkDownMsg:
		m.linkDown = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Link error: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	case statsMsg:
		m.applyReport(statsReport(msg))
	}

	return m, nil
}

func (m *model) applyReport(r statsReport) {
	m.stats = r.stats
	m.invalid = r.invalid

	if r.event == nil {
		// framing failures before the first good frame are line noise
		if !m.synchronized {
			m.skipped++
			return
		}
		for _, v := range r.problems {
			m.addLogEntry(fmt.Sprintf("%s: %s", v.Type, v.Message), true)
		}
		return
	}

	if !m.synchronized {
		m.synchronized = true
		if m.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after %d framing failures", m.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	m.parseTelemetry(r)

	if len(r.problems) > 0 {
		for _, v := range r.problems {
			m.addLogEntry(fmt.Sprintf("%s: %s", r.event, v.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", r.event), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// parseTelemetry keeps the latest debug and autopilot frames
func (m *model) parseTelemetry(r statsReport) {
	me, ok := r.event.(*skylink.MessageEvent)
	if !ok {
		return
	}
	if m.lastTelemetry == nil {
		m.lastTelemetry = &telemetryData{}
	}

	switch me.Message.Type() {
	case skylink.TypeControl:
		d, err := skylink.ParseDebugData(me.Message)
		if err != nil {
			return
		}
		m.lastTelemetry.debug = d
		m.lastTelemetry.timestamp = r.time

	case skylink.TypeAutopilot:
		a, err := skylink.ParseAutopilotData(me.Message)
		if err != nil {
			return
		}
		m.lastTelemetry.autopilot = a
		m.lastTelemetry.timestamp = r.time
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SKYLINK - LINK STATISTICS"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Link: %s | Mode: %s | Up: %s | Press 'q' to quit",
		m.linkName, mode, formatElapsed(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkDown:
		s.WriteString(errorStyle.Render("✗ Link down"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d framing failures)", m.skipped)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	st := m.stats
	totalErrors := st.Failures() + st.RecordErrors
	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(st.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d\n",
		statsLabelStyle.Render("Signal:"), st.SignalFrames,
		statsLabelStyle.Render("Control:"), st.ControlFrames,
		statsLabelStyle.Render("Autopilot:"), st.AutopilotFrames,
	))

	if st.Chunks > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Chunks:"),
			statsValueStyle.Render(fmt.Sprintf("%d (%d payloads)", st.Chunks, st.CompletedPayloads)),
		))
	}

	if st.CRCErrors > 0 || st.PreambleCollisions > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.CRCErrors)),
			statsLabelStyle.Render("Preamble Resync:"), errorStyle.Render(fmt.Sprintf("%d", st.PreambleCollisions)),
		))
	}

	if st.ReassemblyAnomalies > 0 || st.RecordErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Reassembly:"), errorStyle.Render(fmt.Sprintf("%d", st.ReassemblyAnomalies)),
			statsLabelStyle.Render("Record Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.RecordErrors)),
		))
	}

	if m.invalid > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Malformed:"), warningStyle.Render(fmt.Sprintf("%d", m.invalid)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Telemetry section (only shown if telemetry received)
	if t := m.lastTelemetry; t != nil && (t.debug != nil || t.autopilot != nil) {
		s.WriteString(statsLabelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")

		telemetryContent := strings.Builder{}
		if d := t.debug; d != nil {
			telemetryContent.WriteString(fmt.Sprintf("%s %s   %s %d   %s 0x%02X\n",
				statsLabelStyle.Render("State:"), statsValueStyle.Render(d.ControllerState.String()),
				statsLabelStyle.Render("Battery:"), d.Battery,
				statsLabelStyle.Render("Flags:"), d.Flags,
			))
			telemetryContent.WriteString(fmt.Sprintf("%s roll=%.3f pitch=%.3f yaw=%.3f\n",
				statsLabelStyle.Render("Attitude:"), d.Roll, d.Pitch, d.Yaw,
			))
			telemetryContent.WriteString(fmt.Sprintf("%s %s (alt %.1f m, to base %.1f m)\n",
				statsLabelStyle.Render("Position:"),
				statsValueStyle.Render(fmt.Sprintf("%.6f, %.6f", d.Latitude, d.Longitude)),
				d.RelativeAltitude, d.DistanceToBase,
			))
			telemetryContent.WriteString(fmt.Sprintf("%s v=%.2f m/s vz=%.2f m/s throttle=%.2f\n",
				statsLabelStyle.Render("Motion:"), d.Velocity, d.VerticalVelocity, d.UsedThrottle,
			))
		}
		if a := t.autopilot; a != nil {
			telemetryContent.WriteString(fmt.Sprintf("%s %s %.7f, %.7f\n",
				statsLabelStyle.Render("Autopilot:"), statsValueStyle.Render(a.Type.String()),
				a.Latitude, a.Longitude,
			))
		}
		telemetryContent.WriteString(headerStyle.Render(fmt.Sprintf("updated %s", t.timestamp.Format("15:04:05.000"))))

		s.WriteString(boxStyle.Render(telemetryContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 20 // Reserve space for header, stats and telemetry
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
