package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type executeDoneMsg struct {
	err error
}

type executeSpinnerModel struct {
	spinner spinner.Model
	label   string
	execute tea.Cmd
	err     error
	done    bool
}

func newExecuteSpinnerModel(label string, execute tea.Cmd) executeSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return executeSpinnerModel{
		spinner: s,
		label:   label,
		execute: execute,
	}
}

func (m executeSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.execute)
}

func (m executeSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case executeDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m executeSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

func runExecuteSpinner(ctx context.Context, output io.Writer, label string, execute func(context.Context) error) error {
	executeCmd := func() tea.Msg {
		return executeDoneMsg{err: execute(ctx)}
	}

	p := tea.NewProgram(
		newExecuteSpinnerModel(label, executeCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(executeSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
