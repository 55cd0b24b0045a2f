// Package tui hosts the widget in an interactive terminal program.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/picker"
	"github.com/anime-shed/weld-inspector-go/internal/widget"
)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))

const (
	helpBrowsing = "tab path  enter/i inspect  q quit"
	helpEditing  = "enter select  esc cancel  ctrl+c quit"
)

// Model is the bubbletea model around one widget.
type Model struct {
	ctx     context.Context
	widget  *widget.Widget
	input   textinput.Model
	spinner spinner.Model
	maxSize int64
}

// New creates the model. maxSize is the picker's upload limit.
func New(ctx context.Context, w *widget.Widget, maxSize int64) Model {
	inp := textinput.New()
	inp.Placeholder = "path/to/weld.png"
	inp.Prompt = "path> "
	inp.CharLimit = 4096

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		widget:  w,
		input:   inp,
		spinner: sp,
		maxSize: maxSize,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case widget.ResultMsg:
		m.widget.Update(msg)
		return m, nil

	case spinner.TickMsg:
		if m.widget.Status().Phase() != widget.PhaseSubmitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "tab":
		if m.input.Focused() {
			m.input.Blur()
			return m, nil
		}
		return m, m.input.Focus()
	}

	if m.input.Focused() {
		switch msg.String() {
		case "esc":
			m.input.Blur()
			return m, nil
		case "enter":
			m.selectPath(m.input.Value())
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "enter", "i":
		return m, m.submit()
	}
	return m, nil
}

func (m Model) selectPath(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	file, err := picker.Open(path, m.maxSize)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("File rejected by picker")
		m.widget.RejectSelection(err.Error())
		return
	}
	m.widget.SelectFile(file)
}

func (m Model) submit() tea.Cmd {
	cmd := m.widget.Submit(m.ctx)
	if cmd == nil {
		return nil
	}
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if err := m.widget.Close(); err != nil {
		logger.WithError(err).Warn("Widget teardown incomplete")
	}
	return m, tea.Quit
}

func (m Model) View() string {
	spin := ""
	if m.widget.Status().Phase() == widget.PhaseSubmitting {
		spin = m.spinner.View()
	}

	help := helpBrowsing
	if m.input.Focused() {
		help = helpEditing
	}

	return widget.RenderView(m.widget.Screen(), spin) + "\n\n" +
		m.input.View() + "\n\n" +
		helpStyle.Render(help) + "\n"
}

// Widget returns the hosted widget.
func (m Model) Widget() *widget.Widget {
	return m.widget
}
