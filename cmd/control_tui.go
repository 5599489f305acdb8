// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/skylink/pkg/session"
	"github.com/Thermoquad/skylink/pkg/skylink"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxThrottle = 100
	minThrottle = 0
)

// Focus states
const (
	focusActionList = iota
	focusThrottleInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// actionItem is one entry of the action list; command is a relay command name
type actionItem struct {
	command string
	title   string
	desc    string
}

// Implement list.Item interface
func (a actionItem) Title() string       { return a.title }
func (a actionItem) Description() string { return a.desc }
func (a actionItem) FilterValue() string { return a.command }

var groundActions = []actionItem{
	{"start_flight", "Start flight", "Arm and fly the control frame"},
	{"end_flight", "End flight", "Stop the running flight"},
	{"calibrate_accel", "Calibrate accelerometer", "Keep the board level and still"},
	{"calibrate_magnet", "Calibrate magnetometer", "Rotate the board on all axes"},
	{"magnet_done", "Finish magnetometer", "End the rotation phase"},
	{"magnet_cancel", "Cancel magnetometer", "Abort the calibration"},
	{"download_control_settings", "Read control settings", "Download from the board"},
	{"download_route", "Read route", "Download the stored route"},
	{"disconnect", "Disconnect", "End the session"},
	{"connect", "Connect", "Open the link again"},
}

// controlKeyMap lists the bindings shown by the help bar
type controlKeyMap struct {
	Next key.Binding
	Prev key.Binding
	Run  key.Binding
	Stop key.Binding
	Help key.Binding
	Quit key.Binding
}

func (k controlKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Run, k.Stop, k.Help, k.Quit}
}

func (k controlKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Run},
		{k.Stop, k.Help, k.Quit},
	}
}

var controlKeys = controlKeyMap{
	Next: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
	Prev: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous panel")),
	Run:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
	Stop: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "stop motors")),
	Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// controlModel is the Bubble Tea model for the ground station TUI
type controlModel struct {
	// Connection manager (for running commands and reconnection)
	connMgr  *connectionManager
	linkName string

	actionList list.Model

	// Session state
	everConnected bool
	connected     bool
	flying        bool
	activeAction  session.ActionType
	activeState   string
	pingDelay     time.Duration

	// Monitoring
	stats           skylink.Statistics
	errorLog        []errorLogEntry
	maxLogEntries   int
	debug           *skylink.DebugData
	autopilot       *skylink.AutopilotData
	calibration     *skylink.CalibrationSettings
	controlSettings *skylink.ControlSettings
	route           *skylink.RouteContainer

	// Control
	throttleInput textinput.Model
	focusedField  int
	keys          controlKeyMap
	help          help.Model

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	events []session.Event
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	linkName string
}

type commandResultMsg struct {
	command string
	err     error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, linkName string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "0"
	ti.CharLimit = 3
	ti.Width = 6

	items := make([]list.Item, len(groundActions))
	for i, a := range groundActions {
		items[i] = a
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	actionList := list.New(items, delegate, 30, 10)
	actionList.Title = "Actions"
	actionList.SetShowStatusBar(false)
	actionList.SetShowHelp(false)
	actionList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:       connMgr,
		linkName:      linkName,
		actionList:    actionList,
		stats:         *skylink.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		throttleInput: ti,
		focusedField:  focusActionList,
		keys:          controlKeys,
		help:          help.New(),
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.updateListSize()

	case controlTickMsg:
		engine := m.connMgr.mgr.Engine()
		m.stats = engine.Statistics()
		m.activeAction, m.activeState = engine.ActiveState()
		return m, controlTickCmd()

	case controlBatchMsg:
		for _, ev := range msg.events {
			m.processSessionEvent(ev)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.linkName = msg.linkName
		m.addLogEntry("Reconnected - starting session", false)

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.command, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s accepted", msg.command), false)
		}
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusThrottleInput {
		m.throttleInput, cmd = m.throttleInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusActionList {
		m.actionList, cmd = m.actionList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit) && m.focusedField != focusThrottleInput,
		msg.String() == "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		return m.cycleFocus(1), nil

	case key.Matches(msg, m.keys.Prev):
		return m.cycleFocus(-1), nil

	case key.Matches(msg, m.keys.Run):
		return m.handleEnter()

	case key.Matches(msg, m.keys.Stop):
		return m.stopMotors()

	case key.Matches(msg, m.keys.Help) && m.focusedField != focusThrottleInput:
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focusedField {
	case focusThrottleInput:
		m.throttleInput, cmd = m.throttleInput.Update(msg)
	case focusActionList:
		m.actionList, cmd = m.actionList.Update(msg)
	}
	return m, cmd
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// For now, pass mouse events to the list
	m.actionList, _ = m.actionList.Update(msg)

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	maxFocus := focusButton

	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	// Throttle only applies during a flight
	if m.focusedField != focusActionList && !m.flying {
		m.focusedField = focusActionList
	}

	if m.focusedField == focusThrottleInput {
		m.throttleInput.Focus()
	} else {
		m.throttleInput.Blur()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focusedField == focusThrottleInput || m.focusedField == focusButton {
		return m.setThrottle()
	}

	item, ok := m.actionList.SelectedItem().(actionItem)
	if !ok {
		return m, nil
	}

	if item.command != "connect" && m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}
	if item.command == "connect" && m.connected {
		m.addLogEntry("Already connected", true)
		return m, nil
	}

	m.addLogEntry(fmt.Sprintf("Running %s", item.title), false)
	return m, m.connMgr.execute(item.command)
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("SKYLINK GROUND STATION"))
	s.WriteString(" ")
	connStatus := m.linkName
	switch {
	case m.connectionLost:
		connStatus = warningStyle.Render("RECONNECTING...")
	case !m.connected:
		connStatus += " " + errorStyle.Render("(down)")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s", connStatus)))
	s.WriteString("\n")

	// Latency (below header)
	if m.connected && m.pingDelay > 0 {
		s.WriteString(fmt.Sprintf(" %s %s",
			statsLabelStyle.Render("Latency:"),
			statsValueStyle.Render(m.pingDelay.Round(10*time.Microsecond).String())))
	}
	s.WriteString("\n\n")

	if !m.everConnected {
		s.WriteString(m.renderConnectingView(statsLabelStyle, warningStyle, boxStyle))
	} else {
		s.WriteString(m.renderControlView(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, headerStyle, boxStyle, focusedBoxStyle, buttonStyle, focusedButtonStyle))
	}

	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderConnectingView(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(warningStyle.Render("Waiting for the board..."))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Action: %s %s\n\n", m.activeAction, m.activeState))

	// Event log while connecting
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderControlView(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, headerStyle, boxStyle, focusedBoxStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	// Layout: left panel (actions) | right panel (session)
	leftWidth := 32
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusActionList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	actionPanel := listStyle.Render(m.actionList.View())

	sessionContent := m.renderSessionPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle)
	sessionPanel := boxStyle.Width(rightWidth).Render(sessionContent)

	// Join panels horizontally
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, actionPanel, " ", sessionPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderTelemetry(statsLabelStyle, statsValueStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderSessionPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	state := m.activeAction.String()
	if m.activeState != "" {
		state += " / " + m.activeState
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Action:"), statsValueStyle.Render(state)))

	if c := m.calibration; c != nil {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Board:"), c.BoardType))
	}
	if cs := m.controlSettings; cs != nil {
		s.WriteString(fmt.Sprintf("%s %d\n", statsLabelStyle.Render("UAV type:"), cs.UAVType))
	}
	if r := m.route; r != nil {
		s.WriteString(fmt.Sprintf("%s %d waypoint(s)\n", statsLabelStyle.Render("Route:"), len(r.Waypoints)))
	}
	s.WriteString("\n")

	if !m.flying {
		s.WriteString(headerStyle.Render("Throttle control is available during a flight"))
		return s.String()
	}

	s.WriteString(statsLabelStyle.Render("Throttle %: "))
	if m.focusedField == focusThrottleInput {
		s.WriteString(m.throttleInput.View())
	} else {
		val := m.throttleInput.Value()
		if val == "" {
			val = m.throttleInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n\n")

	btnText := "[ Set Throttle ]"
	if m.focusedField == focusButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var validPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		totalErrors := m.stats.Failures() + m.stats.RecordErrors
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderTelemetry(statsLabelStyle, statsValueStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("TELEMETRY"))
	content.WriteString(" | ")

	d := m.debug
	if d == nil {
		content.WriteString("No telemetry data")
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	content.WriteString(fmt.Sprintf("%s %s  ", statsLabelStyle.Render("State:"), statsValueStyle.Render(d.ControllerState.String())))
	content.WriteString(fmt.Sprintf("%s %s  ",
		statsLabelStyle.Render("Alt:"),
		statsValueStyle.Render(fmt.Sprintf("%.1f m", d.RelativeAltitude))))
	content.WriteString(fmt.Sprintf("%s %s  ",
		statsLabelStyle.Render("Speed:"),
		statsValueStyle.Render(fmt.Sprintf("%.1f m/s", d.Velocity))))
	content.WriteString(fmt.Sprintf("%s %s  ",
		statsLabelStyle.Render("Battery:"),
		statsValueStyle.Render(fmt.Sprintf("%d", d.Battery))))
	content.WriteString(fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Yaw:"),
		statsValueStyle.Render(fmt.Sprintf("%.1f", d.NormalYaw()))))

	if a := m.autopilot; a != nil {
		content.WriteString(fmt.Sprintf("\n%s %s %.7f, %.7f",
			statsLabelStyle.Render("Autopilot:"), statsValueStyle.Render(a.Type.String()),
			a.Latitude, a.Longitude))
	}

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}

	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Session Events
//////////////////////////////////////////////////////////////

func (m *controlModel) processSessionEvent(ev session.Event) {
	switch ev.Type {
	case session.EventConnected:
		m.everConnected = true
		m.connected = true
		m.connectionLost = false
		m.addLogEntry("Connected", false)

	case session.EventDisconnected:
		m.connected = false
		m.flying = false
		m.focusedField = focusActionList
		m.throttleInput.Blur()
		m.addLogEntry("Disconnected", true)

	case session.EventError:
		m.addLogEntry(ev.String(), true)

	case session.EventMessage:
		m.addLogEntry(ev.Message, false)

	case session.EventCalibrationNonStatic:
		m.addLogEntry("Board moved during calibration - keep it still", true)

	case session.EventDebugUpdated:
		if d, ok := ev.Data.(*skylink.DebugData); ok {
			m.debug = d
		}

	case session.EventAutopilotUpdated:
		if a, ok := ev.Data.(*skylink.AutopilotData); ok {
			m.autopilot = a
		}

	case session.EventPingUpdated:
		if d, ok := ev.Data.(time.Duration); ok {
			m.pingDelay = d
		}

	case session.EventControlUpdated:
		if cs, ok := ev.Data.(*skylink.ControlSettings); ok {
			m.controlSettings = cs
		}
		m.addLogEntry("Control settings received", false)

	case session.EventRouteUpdated:
		if r, ok := ev.Data.(*skylink.RouteContainer); ok {
			m.route = r
		}
		m.addLogEntry("Route received", false)

	case session.EventCalibrationUpdated:
		if c, ok := ev.Data.(*skylink.CalibrationSettings); ok {
			m.calibration = c
		}
		m.addLogEntry("Calibration received", false)

	case session.EventFlightStarted:
		m.flying = true
		m.addLogEntry("Flight started", false)

	case session.EventFlightEnded:
		m.flying = false
		m.focusedField = focusActionList
		m.throttleInput.Blur()
		m.addLogEntry("Flight ended", false)

	default:
		m.addLogEntry(ev.String(), false)
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) setThrottle() (tea.Model, tea.Cmd) {
	if !m.flying {
		m.addLogEntry("Throttle only applies during a flight", true)
		return m, nil
	}

	throttleStr := m.throttleInput.Value()
	if throttleStr == "" {
		throttleStr = m.throttleInput.Placeholder
	}

	throttle, err := strconv.Atoi(throttleStr)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid throttle value: %s", throttleStr), true)
		return m, nil
	}

	if throttle < minThrottle || throttle > maxThrottle {
		m.addLogEntry(fmt.Sprintf("Throttle must be between %d and %d", minThrottle, maxThrottle), true)
		return m, nil
	}

	mgr := m.connMgr.mgr
	c := *mgr.ControlData()
	c.Command = skylink.ControllerManual
	c.Throttle = float32(throttle) / maxThrottle
	mgr.SetControlData(c)

	m.addLogEntry(fmt.Sprintf("Throttle set to %d%%", throttle), false)
	return m, nil
}

func (m *controlModel) stopMotors() (tea.Model, tea.Cmd) {
	mgr := m.connMgr.mgr
	c := *mgr.ControlData()
	c.SetStop()
	mgr.SetControlData(c)
	m.throttleInput.SetValue("")

	m.addLogEntry("Stop requested", true)
	return m, nil
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.actionList.SetSize(30, listHeight)
}
