// Package ui renders live host cycles in the terminal.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/dialmix/internal/service"
)

const barWidth = 20

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// ReportMsg delivers a completed host cycle to the model.
type ReportMsg struct {
	Report *service.CycleReport
}

// Model is the monitor TUI state
type Model struct {
	profile  string
	bindings []string

	report    *service.CycleReport
	showPaths bool
	quitting  bool
	quitChan  chan struct{}

	width int
}

// NewModel creates a model for the given profile and dial names.
func NewModel(profile string, bindings []string, quitChan chan struct{}) Model {
	return Model{
		profile:  profile,
		bindings: bindings,
		quitChan: quitChan,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case "p":
			m.showPaths = !m.showPaths
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case ReportMsg:
		m.report = msg.Report
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return "Stopping sync loop...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("dialmix monitor"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Profile: "))
	b.WriteString(valueStyle.Render(m.profile))
	b.WriteString("\n")

	if m.report == nil {
		b.WriteString(valueStyle.Render(fmt.Sprintf("Waiting for the device (%d dials)...", len(m.bindings))))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to quit"))
		return b.String()
	}

	b.WriteString(headerStyle.Render("Cycle:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d at %s", m.report.Cycle, m.report.Time.Format("15:04:05"))))
	b.WriteString("\n\n")

	for _, d := range m.report.Dials {
		b.WriteString(m.renderDial(d))
	}

	if n := len(m.report.Unassigned); n > 0 {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d unassigned: %s", n, m.sessionNames(m.report.Unassigned))))
		b.WriteString("\n")
	}
	for _, w := range m.report.Warnings {
		b.WriteString(warnStyle.Render("! " + truncate(w, m.lineWidth())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("p: toggle paths  q: quit"))
	return b.String()
}

func (m Model) renderDial(d service.DialReport) string {
	mute := "  "
	if d.Muted {
		mute = mutedStyle.Render("M ")
	}
	line := fmt.Sprintf("%s%-10s [%s] %5.1f%%", mute, truncate(d.Name, 10), renderBar(d.Percent, 100, barWidth), d.Percent)
	if d.Command {
		line += mutedStyle.Render(" (off)")
	}

	apps := "no sessions"
	if len(d.Sessions) > 0 {
		apps = m.sessionNames(d.Sessions)
	}
	return line + "\n" + valueStyle.Render("    "+truncate(apps, m.lineWidth())) + "\n"
}

func (m Model) sessionNames(sessions []service.SessionReport) string {
	names := make([]string, len(sessions))
	for i, s := range sessions {
		name := s.Path
		if !m.showPaths && name != "" {
			name = filepath.Base(name)
		}
		if name == "" {
			name = "?"
		}
		names[i] = fmt.Sprintf("%s (%d)", name, s.PID)
	}
	return strings.Join(names, ", ")
}

func (m Model) lineWidth() int {
	if m.width > 8 {
		return m.width - 4
	}
	return 72
}

func renderBar(value, max float64, width int) string {
	filled := int(value * float64(width) / max)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	if length <= 3 {
		return s[:length]
	}
	return s[:length-3] + "..."
}
