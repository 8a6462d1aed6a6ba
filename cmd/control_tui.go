// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/roombactl/pkg/drive"
	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	joystickStep   = 0.25 // Joystick movement per key press
	joystickRadius = 1.0
	joystickCols   = 9 // Joystick grid size (odd, so there is a centre cell)
	joystickRows   = 5
	maxLogEntries  = 100
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// robotLink is the part of the session the control panel drives
type robotLink interface {
	Send(cmd oi.Command) bool
	Connect()
	Disconnect()
}

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	link     robotLink
	endpoint string
	state    link.State

	// Joystick position in [-1, 1] on each axis; +y is forward. drive
	// takes screen coordinates, so y is negated on the way out.
	joyX   float64
	joyY   float64
	wheels drive.Wheels

	motors oi.MotorState
	led    bool

	// Monitoring
	lastFrame     *link.FrameEvent
	lastWarnings  []oi.ValidationError
	stats         *oi.Statistics
	errorLog      []errorLogEntry
	connectedAt   time.Time
	everConnected bool

	// Custom command entry
	input       textinput.Model
	inputActive bool

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

// controlBatchMsg carries the session notifications gathered since the last batch
type controlBatchMsg struct {
	states  []link.State
	frames  []link.FrameEvent
	logs    []string
	errs    []error
	dropped int
}

func (b controlBatchMsg) empty() bool {
	return len(b.states) == 0 && len(b.frames) == 0 && len(b.logs) == 0 && len(b.errs) == 0 && b.dropped == 0
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(l robotLink, endpoint string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "140, 3, 1, 64, 16"
	ti.CharLimit = 200
	ti.Width = 40
	ti.Prompt = "cmd> "

	return controlModel{
		link:     l,
		endpoint: endpoint,
		state:    link.Disconnected,
		stats:    oi.NewStatistics(),
		errorLog: make([]errorLogEntry, 0),
		input:    ti,
		width:    80,
		height:   24,
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
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputActive {
			return m.handleInputKey(msg)
		}
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case controlBatchMsg:
		m.processBatch(msg)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		// Leave the robot stopped
		m.link.Send(drive.Release().Command())
		return m, tea.Quit

	// Joystick
	case "up", "w":
		m.moveJoystick(0, joystickStep)
	case "down", "s":
		m.moveJoystick(0, -joystickStep)
	case "left", "a":
		m.moveJoystick(-joystickStep, 0)
	case "right", "d":
		m.moveJoystick(joystickStep, 0)
	case " ":
		m.releaseJoystick()

	// Cleaning motors
	case "1":
		m.toggleMotor(oi.FlagSideBrush)
	case "2":
		m.toggleMotor(oi.FlagVacuum)
	case "3":
		m.toggleMotor(oi.FlagMainBrush)
	case "4":
		m.toggleMotor(oi.FlagSideBrushClockwise)
	case "5":
		m.toggleMotor(oi.FlagMainBrushOutward)

	// Accessories
	case "l":
		m.led = !m.led
		m.send(oi.LED(m.led))
	case "h":
		m.send(oi.Honk())
	case "n":
		siren, _ := oi.PlaySong(oi.SirenSong)
		m.send(siren)
	case "e":
		m.send(oi.SensorsRequest(oi.SensorPacketAll))

	// Mode and system commands
	case "t":
		m.send(oi.Start())
	case "y":
		m.send(oi.Safe())
	case "f":
		m.send(oi.Full())
	case "b":
		m.send(oi.Reboot())
	case "x":
		m.send(oi.Stop())

	// Link
	case "c":
		m.toggleConnection()

	// Custom command
	case ":", "enter":
		m.inputActive = true
		return m, m.input.Focus()
	}

	return m, nil
}

func (m controlModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.closeInput()
		if text == "" {
			return m, nil
		}
		cmd, err := oi.ParseCommand(text)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid command: %v", err), true)
			return m, nil
		}
		m.send(cmd)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *controlModel) closeInput() {
	m.inputActive = false
	m.input.Blur()
	m.input.SetValue("")
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

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
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
	s.WriteString(titleStyle.Render("ROOMBA CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | ", m.endpoint)))
	s.WriteString(m.renderState(valueStyle, warningStyle, errorStyle))
	if m.state == link.Connected {
		s.WriteString(headerStyle.Render(" for " + formatUptime(uint64(time.Since(m.connectedAt).Milliseconds()))))
	}
	s.WriteString("\n\n")

	// Drive | Motors panels
	drivePanel := boxStyle.Render(m.renderDrivePanel(labelStyle, valueStyle))
	motorPanel := boxStyle.Render(m.renderMotorPanel(labelStyle, valueStyle, headerStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, drivePanel, " ", motorPanel))
	s.WriteString("\n")

	// Sensors
	s.WriteString(m.renderSensors(labelStyle, valueStyle, errorStyle, warningStyle, boxStyle))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, boxStyle))
	s.WriteString("\n")

	if m.inputActive {
		s.WriteString(m.input.View())
		s.WriteString("\n")
		s.WriteString(headerStyle.Render("enter=send esc=cancel"))
	} else {
		s.WriteString(headerStyle.Render(
			"arrows/wasd=drive space=stop 1-5=motors l=led h=honk n=siren e=sensors\n" +
				"t=start y=safe f=full b=reboot x=stop c=connect/disconnect :=command q=quit"))
	}

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderState(valueStyle, warningStyle, errorStyle lipgloss.Style) string {
	switch m.state {
	case link.Connected:
		return valueStyle.Render(m.state.String())
	case link.Connecting, link.Reconnecting:
		return warningStyle.Render(m.state.String() + "...")
	default:
		return errorStyle.Render(m.state.String())
	}
}

func (m controlModel) renderDrivePanel(labelStyle, valueStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("DRIVE"))
	s.WriteString("\n")
	s.WriteString(renderJoystick(m.joyX, m.joyY))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Direction:"),
		valueStyle.Render(m.direction().String())))
	s.WriteString(fmt.Sprintf("%s R=%s L=%s",
		labelStyle.Render("Wheels:"),
		valueStyle.Render(fmt.Sprintf("%4d", m.wheels.Right)),
		valueStyle.Render(fmt.Sprintf("%4d", m.wheels.Left))))
	return s.String()
}

// renderJoystick draws the joystick grid with the knob at (x, y)
func renderJoystick(x, y float64) string {
	col := int((x+1)/2*float64(joystickCols-1) + 0.5)
	row := int((1-y)/2*float64(joystickRows-1) + 0.5)

	var s strings.Builder
	for r := 0; r < joystickRows; r++ {
		for c := 0; c < joystickCols; c++ {
			switch {
			case r == row && c == col:
				s.WriteString("●")
			case r == joystickRows/2 && c == joystickCols/2:
				s.WriteString("+")
			default:
				s.WriteString("·")
			}
		}
		s.WriteString("\n")
	}
	return s.String()
}

func (m controlModel) renderMotorPanel(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("MOTORS"))
	s.WriteString("\n")

	flags := []oi.MotorFlag{
		oi.FlagSideBrush, oi.FlagVacuum, oi.FlagMainBrush,
		oi.FlagSideBrushClockwise, oi.FlagMainBrushOutward,
	}
	for i, f := range flags {
		state := headerStyle.Render("off")
		if m.motors.Get(f) {
			state = valueStyle.Render("ON")
		}
		s.WriteString(fmt.Sprintf("%d %-8s %s\n", i+1, f.String(), state))
	}

	led := headerStyle.Render("off")
	if m.led {
		led = valueStyle.Render("ON")
	}
	s.WriteString(fmt.Sprintf("l %-8s %s", "LED", led))
	return s.String()
}

func (m controlModel) renderSensors(labelStyle, valueStyle, errorStyle, warningStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(labelStyle.Render("SENSORS"))
	content.WriteString(" | ")

	if m.lastFrame == nil {
		content.WriteString("No sensor data")
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	f := m.lastFrame.Frame
	b := f.Battery
	content.WriteString(headerTime(m.lastFrame.Received))
	content.WriteString("\n")

	alert := func(label string, on bool) string {
		if on {
			return errorStyle.Render(label)
		}
		return valueStyle.Render("-")
	}

	content.WriteString(fmt.Sprintf("%s L:%s R:%s  %s L:%s R:%s C:%s  %s %s  %s %s\n",
		labelStyle.Render("Bump"), alert("HIT", f.Bump.Left), alert("HIT", f.Bump.Right),
		labelStyle.Render("Drop"), alert("DROP", f.WheelDrop.Left), alert("DROP", f.WheelDrop.Right), alert("DROP", f.WheelDrop.Caster),
		labelStyle.Render("Wall"), alert("WALL", f.Wall),
		labelStyle.Render("Virtual"), alert("WALL", f.VirtualWall)))

	content.WriteString(fmt.Sprintf("%s %s %s %s %s\n",
		labelStyle.Render("Cliff"),
		alert("L", f.Cliff[0]), alert("FL", f.Cliff[1]), alert("FR", f.Cliff[2]), alert("R", f.Cliff[3])))

	chargeStyle := valueStyle
	if b.ChargingState == oi.ChargingFault {
		chargeStyle = errorStyle
	}
	percent := 0.0
	if b.Capacity > 0 {
		percent = float64(b.Level) * 100.0 / float64(b.Capacity)
	}
	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s\n",
		labelStyle.Render("Charging"), chargeStyle.Render(b.ChargingState.String()),
		labelStyle.Render("Voltage"), valueStyle.Render(fmt.Sprintf("%d mV", b.Voltage)),
		labelStyle.Render("Current"), valueStyle.Render(fmt.Sprintf("%d mA", b.Current)),
		labelStyle.Render("Temp"), valueStyle.Render(fmt.Sprintf("%d C", b.Temp)),
		labelStyle.Render("Charge"), valueStyle.Render(fmt.Sprintf("%d/%d mAh (%.0f%%)", b.Level, b.Capacity, percent))))

	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s L:%d R:%d  %s %d  %s %s",
		labelStyle.Render("Distance"), valueStyle.Render(fmt.Sprintf("%d mm", f.Distance)),
		labelStyle.Render("Angle"), valueStyle.Render(fmt.Sprintf("%d", f.Angle)),
		labelStyle.Render("Dirt"), f.Dirt.Left, f.Dirt.Right,
		labelStyle.Render("Remote"), f.Remote,
		labelStyle.Render("Overcurrent"), formatOvercurrent(f.Overcurrent, valueStyle, errorStyle)))

	for _, w := range m.lastWarnings {
		content.WriteString("\n")
		content.WriteString(warningStyle.Render("! " + w.Message))
	}

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func headerTime(t time.Time) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(t.Format("15:04:05.000"))
}

func formatOvercurrent(o oi.Overcurrent, okStyle, errorStyle lipgloss.Style) string {
	var names []string
	if o.SideBrush {
		names = append(names, "SIDE")
	}
	if o.Vacuum {
		names = append(names, "VAC")
	}
	if o.MainBrush {
		names = append(names, "MAIN")
	}
	if o.DriveRight {
		names = append(names, "DRIVE_R")
	}
	if o.DriveLeft {
		names = append(names, "DRIVE_L")
	}
	if len(names) == 0 {
		return okStyle.Render("none")
	}
	return errorStyle.Render(strings.Join(names, "|"))
}

func (m controlModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle lipgloss.Style, boxStyle lipgloss.Style) string {
	m.stats.CalculateRates()
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
	}

	errors := valueStyle.Render("0")
	if n := m.stats.Errors(); n > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%d", n))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), errors,
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f fr/s", m.stats.FrameRate)),
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d/%d", m.stats.CommandsSent, m.stats.CommandsSent+m.stats.CommandsDropped)),
		labelStyle.Render("Reconnects:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Reconnects)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 6
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

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
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processBatch(batch controlBatchMsg) {
	for _, st := range batch.states {
		m.handleState(st)
	}

	for i := range batch.frames {
		ev := batch.frames[i]
		warnings := oi.ValidateFrame(ev.Raw)
		m.stats.UpdateFrame(warnings)
		m.lastFrame = &ev
		m.lastWarnings = warnings
	}
	if batch.dropped > 0 {
		m.addLogEntry(fmt.Sprintf("Display skipped %d frames", batch.dropped), false)
	}

	for _, line := range batch.logs {
		m.stats.LogLines++
		m.addLogEntry("robot: "+line, false)
	}

	for _, err := range batch.errs {
		m.stats.UpdateError(err)
		m.addLogEntry(err.Error(), true)
	}
}

func (m *controlModel) handleState(st link.State) {
	prev := m.state
	m.state = st

	switch st {
	case link.Connected:
		m.connectedAt = time.Now()
		if m.everConnected {
			m.stats.Reconnects++
		}
		m.everConnected = true
		m.addLogEntry("Connected to "+m.endpoint, false)
	case link.Reconnecting:
		m.addLogEntry("Connection lost - reconnecting...", true)
	case link.Disconnected:
		if prev != link.Disconnected {
			m.addLogEntry("Disconnected", false)
		}
	}

	// The robot keeps its last drive command; show the joystick centred
	// whenever the link is not up
	if st != link.Connected {
		m.joyX, m.joyY = 0, 0
		m.wheels = drive.Release()
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// send transmits a command and records the outcome
func (m *controlModel) send(cmd oi.Command) bool {
	if m.link.Send(cmd) {
		m.stats.CommandsSent++
		m.addLogEntry("Sent "+oi.FormatCommand(cmd), false)
		return true
	}
	m.stats.CommandsDropped++
	m.addLogEntry(fmt.Sprintf("Dropped %s: %s", oi.OpcodeName(cmd.Opcode()), m.state), true)
	return false
}

func (m *controlModel) moveJoystick(dx, dy float64) {
	m.joyX = clampAxis(m.joyX + dx)
	m.joyY = clampAxis(m.joyY + dy)

	wheels, err := drive.Map(m.joyX, -m.joyY, joystickRadius)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Joystick: %v", err), true)
		return
	}
	m.wheels = wheels
	m.send(wheels.Command())
}

// direction names where the knob points, in screen terms
func (m controlModel) direction() drive.Direction {
	return drive.DirectionOf(m.joyX, -m.joyY)
}

func (m *controlModel) releaseJoystick() {
	m.joyX, m.joyY = 0, 0
	m.wheels = drive.Release()
	m.send(m.wheels.Command())
}

func clampAxis(v float64) float64 {
	if v > joystickRadius {
		return joystickRadius
	}
	if v < -joystickRadius {
		return -joystickRadius
	}
	return v
}

func (m *controlModel) toggleMotor(f oi.MotorFlag) {
	m.motors = m.motors.Toggle(f)
	m.send(oi.Motors(m.motors))
}

func (m *controlModel) toggleConnection() {
	switch m.state {
	case link.Disconnected:
		m.addLogEntry("Connecting to "+m.endpoint, false)
		m.link.Connect()
	default:
		m.addLogEntry("Disconnecting", false)
		m.link.Disconnect()
	}
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

	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
}

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms < 1000 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, p := range []struct {
		n    uint64
		unit string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		switch {
		case p.n == 1:
			parts = append(parts, "1 "+p.unit)
		case p.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + " and " + last
}
