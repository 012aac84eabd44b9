package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/dealflow/internal/models"
)

var (
	cmdBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// CmdBarModel manages the command input bar.
type CmdBarModel struct {
	input       textinput.Model
	suggestions *Suggestions
	focused     bool
	message     string
}

// NewCmdBarModel creates a new command bar.
func NewCmdBarModel() *CmdBarModel {
	ti := textinput.New()
	ti.Placeholder = "add <title> | note <text> | due <YYYY-MM-DD|none> | assign <name> | ws <workstream>"
	ti.CharLimit = 256
	return &CmdBarModel{
		input:       ti,
		suggestions: NewSuggestions(),
	}
}

// Focus focuses the command bar.
func (m *CmdBarModel) Focus() tea.Cmd {
	m.focused = true
	m.message = ""
	return m.input.Focus()
}

// Blur unfocuses the command bar.
func (m *CmdBarModel) Blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
	m.suggestions.Update("")
}

// Focused reports whether the bar has keyboard focus.
func (m *CmdBarModel) Focused() bool {
	return m.focused
}

// Submit returns the current input and blurs.
func (m *CmdBarModel) Submit() string {
	val := m.input.Value()
	m.Blur()
	return val
}

// SetMessage shows a result line until the bar is focused again.
func (m *CmdBarModel) SetMessage(msg string) {
	m.message = msg
}

// Update handles messages while focused.
func (m *CmdBarModel) Update(msg tea.Msg) (*CmdBarModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.Blur()
			return m, nil
		case "tab":
			if s := m.suggestions.Selected(); s != nil {
				m.input.SetValue(m.suggestions.Complete(m.input.Value(), s.Text))
				m.input.CursorEnd()
				m.suggestions.Update(m.input.Value())
			}
			return m, nil
		case "up":
			m.suggestions.Prev()
			return m, nil
		case "down":
			m.suggestions.Next()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.suggestions.Update(m.input.Value())
	return m, cmd
}

// View renders the command bar.
func (m *CmdBarModel) View(width int) string {
	if m.focused {
		bar := cmdBarStyle.Render(promptStyle.Render(": ") + m.input.View())
		if s := m.suggestions.Render(width); s != "" {
			return s + "\n" + bar
		}
		return bar
	}
	if m.message != "" {
		return cmdBarStyle.Render(m.message)
	}
	return cmdBarStyle.Render("Press : to enter a command (add, note, due, assign, ws)")
}

// barCommand is a parsed command bar line.
type barCommand struct {
	name string
	arg  string
}

func parseCommand(input string) (barCommand, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return barCommand{}, fmt.Errorf("empty command")
	}
	name, arg, _ := strings.Cut(input, " ")
	c := barCommand{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}

	switch c.name {
	case "add", "note", "due", "assign", "ws":
		if c.arg == "" {
			return c, fmt.Errorf("usage: %s <value>", c.name)
		}
		return c, nil
	}
	return c, fmt.Errorf("unknown command: %s", c.name)
}

// patch converts an edit command into a task patch.
func (c barCommand) patch() (models.TaskPatch, error) {
	var p models.TaskPatch
	switch c.name {
	case "note":
		p.Notes = &c.arg
	case "assign":
		p.Responsible = &c.arg
	case "ws":
		ws, err := models.ParseWorkstream(c.arg)
		if err != nil {
			return p, err
		}
		s := string(ws)
		p.Workstream = &s
	case "due":
		if strings.EqualFold(c.arg, "none") {
			p.ClearDueDate = true
			break
		}
		d, err := time.ParseInLocation("2006-01-02", c.arg, time.Local)
		if err != nil {
			return p, fmt.Errorf("due date must be YYYY-MM-DD: %w", err)
		}
		p.DueDate = &d
	default:
		return p, fmt.Errorf("%s is not an edit command", c.name)
	}
	return p, nil
}

// Execute runs a command line against the selected task.
func (m *CmdBarModel) Execute(client *Client, dealID, input string, selected *TaskItem) tea.Cmd {
	c, err := parseCommand(input)
	if err != nil {
		return func() tea.Msg { return cmdResultMsg{message: fmt.Sprintf("Error: %v", err)} }
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()

		if c.name == "add" {
			phase := ""
			if selected != nil {
				phase = selected.Task.Phase
			}
			t, err := client.AddTask(ctx, dealID, phase, c.arg)
			if err != nil {
				return cmdResultMsg{message: fmt.Sprintf("Error: %v", err)}
			}
			return cmdResultMsg{message: fmt.Sprintf("Added %q", t.Title), refresh: true}
		}

		if selected == nil {
			return cmdResultMsg{message: "No task selected"}
		}
		p, err := c.patch()
		if err != nil {
			return cmdResultMsg{message: fmt.Sprintf("Error: %v", err)}
		}
		t, err := client.Edit(ctx, selected.Task.ID, p, selected.Task.Version)
		if err != nil {
			return cmdResultMsg{message: fmt.Sprintf("Error: %v", err)}
		}
		return cmdResultMsg{message: "Updated " + t.Title, task: t}
	}
}

type cmdResultMsg struct {
	message string
	task    *models.TaskRecord
	refresh bool
}
