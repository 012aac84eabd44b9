// Package tui provides the interactive deal board for dealflow.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/notify"
)

const refreshInterval = 10 * time.Second

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the main TUI application model: a phase progress panel, the
// deal's task list and a command bar.
type App struct {
	client       *Client
	dealID       string
	dealType     models.DealType
	phases       *PhasePanel
	tasks        *TaskListModel
	cmdbar       *CmdBarModel
	showDetail   bool
	width        int
	height       int
	message      string
	daemonOnline bool
	events       <-chan notify.Event
}

// New creates a new board for one deal. dt may be empty for deals
// instantiated from a template.
func New(apiAddr, dealID string, dt models.DealType) *App {
	client := NewClient(apiAddr)
	return &App{
		client:   client,
		dealID:   dealID,
		dealType: dt,
		phases:   NewPhasePanel(),
		tasks:    NewTaskListModel(client, dealID),
		cmdbar:   NewCmdBarModel(),
	}
}

// SetEvents makes the board reload whenever an event arrives on ch.
func (a *App) SetEvents(ch <-chan notify.Event) {
	a.events = ch
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchProgress(),
		a.tasks.Refresh(),
		a.tickCmd(),
		a.waitForEvent(),
	)
}

// waitForEvent blocks on the next deal event. It returns nil when no
// event source is set.
func (a *App) waitForEvent() tea.Cmd {
	if a.events == nil {
		return nil
	}
	ch := a.events
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return dealEventMsg{e}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) fetchProgress() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		p, err := a.client.Progress(ctx, a.dealID, a.dealType)
		if err != nil {
			return errMsg{err}
		}
		return progressLoadedMsg{p}
	}
}

func (a *App) cycleStatus() tea.Cmd {
	sel := a.tasks.SelectedTask()
	if sel == nil {
		return nil
	}
	t := sel.Task
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		updated, err := a.client.Transition(ctx, t.ID, nextStatus(t.Status), t.Version)
		if err != nil {
			return errMsg{err}
		}
		return taskUpdatedMsg{updated}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.cmdbar.Focused() {
			if msg.String() == "enter" {
				input := a.cmdbar.Submit()
				return a, a.cmdbar.Execute(a.client, a.dealID, input, a.tasks.SelectedTask())
			}
			var cmd tea.Cmd
			a.cmdbar, cmd = a.cmdbar.Update(msg)
			return a, cmd
		}
		if !a.tasks.Filtering() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case ":":
				return a, a.cmdbar.Focus()
			case " ", "s":
				return a, a.cycleStatus()
			case "tab":
				a.tasks.CycleFilter()
				return a, a.tasks.Refresh()
			case "r":
				return a, tea.Batch(a.fetchProgress(), a.tasks.Refresh())
			case "enter":
				a.showDetail = !a.showDetail
				a.layout()
				return a, nil
			}
		}

	case progressLoadedMsg:
		a.daemonOnline = true
		a.phases.SetProgress(msg.progress)
		return a, nil

	case tasksLoadedMsg:
		a.daemonOnline = true
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.Update(msg)
		return a, cmd

	case taskUpdatedMsg:
		a.message = fmt.Sprintf("%s → %s", msg.task.Title, msg.task.Status)
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.Update(msg)
		return a, tea.Batch(cmd, a.fetchProgress())

	case cmdResultMsg:
		a.cmdbar.SetMessage(msg.message)
		switch {
		case msg.task != nil:
			var cmd tea.Cmd
			a.tasks, cmd = a.tasks.Update(taskUpdatedMsg{msg.task})
			return a, tea.Batch(cmd, a.fetchProgress())
		case msg.refresh:
			return a, tea.Batch(a.fetchProgress(), a.tasks.Refresh())
		}
		return a, nil

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		if _, ok := msg.err.(*APIError); !ok {
			a.daemonOnline = false
		}
		return a, nil

	case dealEventMsg:
		if msg.event.Type != notify.EventOverdue {
			a.message = fmt.Sprintf("%s (%s)", msg.event.Type, msg.event.DealID)
		}
		return a, tea.Batch(a.fetchProgress(), a.tasks.Refresh(), a.waitForEvent())

	case eventsClosedMsg:
		a.events = nil
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.fetchProgress(), a.tasks.Refresh(), a.tickCmd())
	}

	var cmd tea.Cmd
	a.tasks, cmd = a.tasks.Update(msg)
	return a, cmd
}

func (a *App) leftWidth() int {
	w := a.width / 3
	if w < 30 {
		w = 30
	}
	return w
}

func (a *App) layout() {
	if a.width == 0 {
		return
	}
	left := a.leftWidth()
	a.phases.SetWidth(left - 30)

	listHeight := a.height - 6
	if a.showDetail {
		listHeight = listHeight / 2
	}
	if listHeight < 5 {
		listHeight = 5
	}
	a.tasks.SetSize(a.width-left-4, listHeight)
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	daemon := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemon = offlineStyle.Render("○ DAEMON")
	}
	b.WriteString(titleStyle.Render("dealflow · "+a.dealID) + "  " + daemon + "\n")
	if a.width > 0 {
		b.WriteString(strings.Repeat("─", a.width) + "\n")
	}

	left := panelStyle.Width(a.leftWidth()).Render(a.phases.View())
	right := a.tasks.View()
	if a.showDetail {
		right = lipgloss.JoinVertical(lipgloss.Left, right, panelStyle.Render(renderTaskDetail(a.tasks.SelectedTask())))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	b.WriteString(a.cmdbar.View(a.width) + "\n")
	if a.message != "" {
		b.WriteString(statusBarStyle.Render(a.message) + "\n")
	}
	b.WriteString(helpStyle.Render("space: cycle status • tab: filter • enter: details • : command • r: refresh • q: quit"))
	return b.String()
}

type dealEventMsg struct {
	event notify.Event
}

type eventsClosedMsg struct{}
