package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/dialmix/internal/service"
)

// Monitor runs the TUI and feeds it host cycle reports.
type Monitor struct {
	program  *tea.Program
	updates  chan *service.CycleReport
	quitChan chan struct{}
}

// NewMonitor creates a monitor for the given profile and dial names.
func NewMonitor(profile string, bindings []string, opts ...tea.ProgramOption) *Monitor {
	quitChan := make(chan struct{}, 1)
	return &Monitor{
		program:  tea.NewProgram(NewModel(profile, bindings, quitChan), opts...),
		updates:  make(chan *service.CycleReport, 10),
		quitChan: quitChan,
	}
}

// Start runs the TUI until the user quits or Stop is called.
func (m *Monitor) Start() error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case report := <-m.updates:
				m.program.Send(ReportMsg{Report: report})
			case <-done:
				return
			}
		}
	}()

	_, err := m.program.Run()
	return err
}

// Observe queues a report for display without blocking the sync loop.
// Reports are dropped while the TUI is behind.
func (m *Monitor) Observe(report *service.CycleReport) {
	select {
	case m.updates <- report:
	default:
	}
}

// Stop asks the TUI to exit.
func (m *Monitor) Stop() {
	m.program.Quit()
}

// QuitChan is signalled when the user asks to quit.
func (m *Monitor) QuitChan() <-chan struct{} {
	return m.quitChan
}
