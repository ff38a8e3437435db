// Package tui holds the small interactive prompts the CLI shows when it is
// attached to a terminal.
package tui

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the user cancels the prompt.
var ErrAborted = errors.New("prompt aborted")

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

// askModel is a single-line question. Enter submits a non-blank answer;
// Esc or Ctrl+C aborts.
type askModel struct {
	question string
	input    textinput.Model
	answer   string
	aborted  bool
	invalid  bool
}

func newAskModel(question, placeholder string) askModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()
	return askModel{question: question, input: ti}
}

func (m askModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			answer := strings.TrimSpace(m.input.Value())
			if answer == "" {
				m.invalid = true
				return m, nil
			}
			m.answer = answer
			return m, tea.Quit
		}
	}

	m.invalid = false
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m askModel) View() string {
	if m.answer != "" || m.aborted {
		return ""
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.invalid {
		b.WriteString(errorStyle.Render("An answer is required."))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("enter to confirm • esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

type askOptions struct {
	in  io.Reader
	out io.Writer
}

// AskOption configures Ask.
type AskOption func(*askOptions)

// WithIO overrides the terminal streams.
func WithIO(in io.Reader, out io.Writer) AskOption {
	return func(o *askOptions) {
		o.in = in
		o.out = out
	}
}

// Ask shows question with an editable line and returns the trimmed answer.
func Ask(question, placeholder string, opts ...AskOption) (string, error) {
	o := askOptions{in: os.Stdin, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	p := tea.NewProgram(newAskModel(question, placeholder),
		tea.WithInput(o.in),
		tea.WithOutput(o.out),
	)
	final, err := p.Run()
	if err != nil {
		return "", err
	}

	m := final.(askModel)
	if m.aborted {
		return "", ErrAborted
	}
	return m.answer, nil
}
