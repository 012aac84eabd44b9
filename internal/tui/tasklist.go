package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusPending    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan
	statusComplete   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	overdueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	criticalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// TaskItem implements list.Item for the task list.
type TaskItem struct {
	Task        models.TaskRecord
	DaysOverdue int
	Overdue     bool
}

func newTaskItem(t models.TaskRecord, now time.Time) TaskItem {
	days, overdue := checklist.DaysOverdue(t, now)
	return TaskItem{Task: t, DaysOverdue: days, Overdue: overdue}
}

func (i TaskItem) FilterValue() string { return i.Task.Title }

func (i TaskItem) Title() string {
	if i.Task.Critical {
		return criticalStyle.Render("! ") + i.Task.Title
	}
	return i.Task.Title
}

func (i TaskItem) Description() string {
	desc := fmt.Sprintf("%s • %s • %s", formatStatus(i.Task.Status), i.Task.Phase, i.Task.Workstream)
	if i.Overdue {
		desc += " • " + overdueStyle.Render(fmt.Sprintf("%dd overdue", i.DaysOverdue))
	}
	return desc
}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return statusPending.Render("○ pending")
	case models.TaskStatusInProgress:
		return statusInProgress.Render("◐ in progress")
	case models.TaskStatusComplete:
		return statusComplete.Render("● complete")
	default:
		return string(status)
	}
}

// nextStatus is the status the board cycles a task to.
func nextStatus(s models.TaskStatus) models.TaskStatus {
	switch s {
	case models.TaskStatusPending:
		return models.TaskStatusInProgress
	case models.TaskStatusInProgress:
		return models.TaskStatusComplete
	default:
		return models.TaskStatusPending
	}
}

// TaskListModel manages the task list pane.
type TaskListModel struct {
	client      *Client
	dealID      string
	list        list.Model
	filterIndex int
	now         func() time.Time
	width       int
	height      int
	loading     bool
}

type taskFilter struct {
	label   string
	status  models.TaskStatus
	overdue bool
}

var filters = []taskFilter{
	{label: "all"},
	{label: "pending", status: models.TaskStatusPending},
	{label: "in progress", status: models.TaskStatusInProgress},
	{label: "complete", status: models.TaskStatusComplete},
	{label: "overdue", overdue: true},
}

// NewTaskListModel creates a new task list model.
func NewTaskListModel(client *Client, dealID string) *TaskListModel {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Tasks [all]"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle

	return &TaskListModel{
		client: client,
		dealID: dealID,
		list:   l,
		now:    time.Now,
	}
}

// SetSize sets the list dimensions.
func (m *TaskListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(w, h)
}

// SelectedTask returns the currently selected task.
func (m *TaskListModel) SelectedTask() *TaskItem {
	if item := m.list.SelectedItem(); item != nil {
		task := item.(TaskItem)
		return &task
	}
	return nil
}

// Filtering reports whether the list's own filter prompt has focus.
func (m *TaskListModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// CycleFilter cycles through status filters.
func (m *TaskListModel) CycleFilter() {
	m.filterIndex = (m.filterIndex + 1) % len(filters)
	m.list.Title = fmt.Sprintf("Tasks [%s]", filters[m.filterIndex].label)
}

// Refresh fetches tasks from the API.
func (m *TaskListModel) Refresh() tea.Cmd {
	m.loading = true
	f := filters[m.filterIndex]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		tasks, err := m.client.ListTasks(ctx, m.dealID, string(f.status), f.overdue)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

// Update handles messages.
func (m *TaskListModel) Update(msg tea.Msg) (*TaskListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		m.loading = false
		now := m.now()
		items := make([]list.Item, len(msg.tasks))
		for i, t := range msg.tasks {
			items[i] = newTaskItem(t, now)
		}
		return m, m.list.SetItems(items)

	case taskUpdatedMsg:
		for i, item := range m.list.Items() {
			if ti, ok := item.(TaskItem); ok && ti.Task.ID == msg.task.ID {
				return m, m.list.SetItem(i, newTaskItem(*msg.task, m.now()))
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the task list.
func (m *TaskListModel) View() string {
	if m.loading && len(m.list.Items()) == 0 {
		return "Loading tasks..."
	}
	return m.list.View()
}

type tasksLoadedMsg struct {
	tasks []models.TaskRecord
}

type taskUpdatedMsg struct {
	task *models.TaskRecord
}

type progressLoadedMsg struct {
	progress *models.DealProgress
}

type errMsg struct {
	err error
}

type tickMsg time.Time
