// Package prompt implements the interactive confirm and multi-select widgets
// used by the catch-up flow.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

// TTY runs bubbletea widgets on a terminal.
type TTY struct {
	In  io.Reader
	Out io.Writer
}

func NewTTY() *TTY {
	return &TTY{In: os.Stdin, Out: os.Stdout}
}

func (t *TTY) program(model tea.Model) *tea.Program {
	return tea.NewProgram(model, tea.WithInput(t.In), tea.WithOutput(t.Out))
}

// Confirm asks a yes/no question; enter takes the default.
func (t *TTY) Confirm(question string, def bool) (bool, error) {
	final, err := t.program(confirmModel{question: question, def: def}).Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(confirmModel)
	if !ok {
		return false, errors.New("confirm: unexpected model")
	}
	return m.answer, nil
}

// MultiSelect presents options all pre-selected and returns the indexes still
// selected when the user accepts. Cancelling keeps nothing.
func (t *TTY) MultiSelect(title string, options []string) ([]int, error) {
	if len(options) == 0 {
		return nil, nil
	}
	selected := make([]bool, len(options))
	for i := range selected {
		selected[i] = true
	}
	final, err := t.program(multiSelectModel{title: title, options: options, selected: selected}).Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(multiSelectModel)
	if !ok {
		return nil, errors.New("multi-select: unexpected model")
	}
	if !m.accepted {
		return nil, nil
	}
	var out []int
	for i, on := range m.selected {
		if on {
			out = append(out, i)
		}
	}
	return out, nil
}

type confirmModel struct {
	question string
	def      bool
	answer   bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y":
		m.answer = true
		m.done = true
		return m, tea.Quit
	case "n", "N", "esc", "ctrl+c":
		m.answer = false
		m.done = true
		return m, tea.Quit
	case "enter":
		m.answer = m.def
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	hint := "y/N"
	if m.def {
		hint = "Y/n"
	}
	return fmt.Sprintf("%s (%s) ", m.question, hint)
}

type selectKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Accept key.Binding
	Cancel key.Binding
}

var selectKeys = selectKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Toggle: key.NewBinding(key.WithKeys(" ", "space")),
	Accept: key.NewBinding(key.WithKeys("enter")),
	Cancel: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
}

type multiSelectModel struct {
	title    string
	options  []string
	selected []bool
	cursor   int
	accepted bool
	done     bool
}

func (m multiSelectModel) Init() tea.Cmd { return nil }

func (m multiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, selectKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, selectKeys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, selectKeys.Toggle):
		m.selected[m.cursor] = !m.selected[m.cursor]
	case key.Matches(keyMsg, selectKeys.Accept):
		m.accepted = true
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, selectKeys.Cancel):
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m multiSelectModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i, opt := range m.options {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		mark := "[ ]"
		if m.selected[i] {
			mark = selectedStyle.Render("[x]")
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", cursor, mark, opt))
	}
	b.WriteString(helpStyle.Render("space toggle • enter run • esc cancel"))
	b.WriteString("\n")
	return b.String()
}
