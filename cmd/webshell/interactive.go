package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cwdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chrome is the number of screen lines outside the scrollback.
const chrome = 3

type modelState int

const (
	stateInput modelState = iota
	stateRunning
)

type interactiveModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	session *session
	input   textinput.Model
	output  viewport.Model
	lines   strings.Builder
	history []string
	histIdx int
	state   modelState
	ready   bool
}

type execDoneMsg struct {
	output string
	status int
}

func newInteractiveModel(ctx context.Context, s *session) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("$ ")
	ti.Focus()

	return &interactiveModel{
		ctx:     ctx,
		session: s,
		input:   ti,
		state:   stateInput,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-chrome, 1)
		if !m.ready {
			m.output = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.output.Width = msg.Width
			m.output.Height = height
		}
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.state == stateRunning {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit

		case "ctrl+d":
			if m.state == stateInput && m.input.Value() == "" {
				return m, tea.Quit
			}

		case "enter":
			if m.state != stateInput {
				return m, nil
			}
			return m.submit()

		case "up":
			m.recall(-1)
			return m, nil

		case "down":
			m.recall(1)
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case execDoneMsg:
		m.cancel()
		m.cancel = nil
		m.lines.WriteString(msg.output)
		if msg.status != 0 {
			m.lines.WriteString(errorStyle.Render(fmt.Sprintf("[exit %d]", msg.status)))
			m.lines.WriteByte('\n')
		}
		m.state = stateInput
		m.refresh()
		return m, nil
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// submit echoes the input line and starts it in the background.
func (m *interactiveModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	m.lines.WriteString(cwdStyle.Render(m.session.ns.Cwd()) + " " + promptStyle.Render("$ ") + line + "\n")
	defer m.refresh()

	switch line {
	case "":
		return m, nil
	case "exit":
		return m, tea.Quit
	case "clear":
		m.lines.Reset()
		m.remember(line)
		return m, nil
	}
	m.remember(line)

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.state = stateRunning

	s := m.session
	return m, func() tea.Msg {
		var out bytes.Buffer
		s.stdout, s.stderr = &out, &out
		status := s.Exec(ctx, line)
		return execDoneMsg{output: out.String(), status: status}
	}
}

func (m *interactiveModel) remember(line string) {
	if n := len(m.history); n == 0 || m.history[n-1] != line {
		m.history = append(m.history, line)
	}
	m.histIdx = len(m.history)
}

// recall moves through history; moving past the newest entry clears the
// input.
func (m *interactiveModel) recall(step int) {
	if m.state != stateInput || len(m.history) == 0 {
		return
	}
	m.histIdx = min(max(m.histIdx+step, 0), len(m.history))
	if m.histIdx == len(m.history) {
		m.input.Reset()
		return
	}
	m.input.SetValue(m.history[m.histIdx])
	m.input.CursorEnd()
}

func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	m.output.SetContent(m.lines.String())
	m.output.GotoBottom()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Starting shell..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("webshell"))
	b.WriteString(" ")
	b.WriteString(cwdStyle.Render(m.session.ns.Cwd()))
	b.WriteString("\n")
	b.WriteString(m.output.View())
	b.WriteString("\n")

	switch m.state {
	case stateInput:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter run • ↑/↓ history • pgup/pgdn scroll • ctrl+c quit"))
	case stateRunning:
		b.WriteString("running...\n")
		b.WriteString(helpStyle.Render("ctrl+c cancel"))
	}

	return b.String()
}

func runInteractive(ctx context.Context, s *session) error {
	p := tea.NewProgram(newInteractiveModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
