package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/engine"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/theme"
)

const refreshInterval = 50 * time.Millisecond

type refreshMsg time.Time

// Model renders the engine's diagnostic event log as a live view
type Model struct {
	Monitor  *engine.MIDIMonitor
	Theme    *theme.Theme
	PortName string

	height   int
	paused   bool
	frozen   []engine.MonitorEntry
	quitting bool
}

func NewModel(monitor *engine.MIDIMonitor, th *theme.Theme, portName string) Model {
	return Model{
		Monitor:  monitor,
		Theme:    th,
		PortName: portName,
		height:   24,
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return refresh()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "c":
			m.Monitor.Clear()

		case " ":
			m.paused = !m.paused
			if m.paused {
				m.frozen = m.Monitor.Events()
			} else {
				m.frozen = nil
			}
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height

	case refreshMsg:
		return m, refresh()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	inStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	outStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())

	state := "LIVE"
	if m.paused {
		state = "PAUSED"
	}
	header := headerStyle.Render(fmt.Sprintf("midi monitor  %s  %s  %d events", m.PortName, state, m.Monitor.Len()))

	rows := m.height - 5
	if rows < 1 {
		rows = 1
	}
	events := m.frozen
	if !m.paused {
		events = m.Monitor.Events()
	}
	if len(events) > rows {
		events = events[len(events)-rows:]
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	for _, e := range events {
		line := fmt.Sprintf("%s %-3s ch%-2d %-12s %s",
			e.Time.Format("15:04:05.000"), e.Direction, e.Channel+1, e.Kind, e.Summary)
		if e.Direction == engine.DirOut {
			out.WriteString(outStyle.Render(line))
		} else {
			out.WriteString(inStyle.Render(line))
		}
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("space:pause  c:clear  q:quit"))

	return out.String()
}
