package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/dealflow/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(13)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
)

// renderTaskDetail formats every field of a task for the detail pane.
func renderTaskDetail(item *TaskItem) string {
	if item == nil {
		return labelStyle.Render("No task selected")
	}
	t := item.Task

	var b strings.Builder
	b.WriteString(headerStyle.Render(t.Title))
	b.WriteString("\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	status := formatStatus(t.Status)
	if item.Overdue {
		status += "  " + overdueStyle.Render(fmt.Sprintf("%d days overdue", item.DaysOverdue))
	}
	row("Status", status)
	row("Phase", t.Phase)
	row("Workstream", string(t.Workstream))
	if t.Critical {
		row("Critical", "yes")
	}
	row("Responsible", t.Responsible)
	row("System", t.System)
	row("Start", formatDate(t.StartDate))
	row("Due", formatDate(t.DueDate))
	if t.Status == models.TaskStatusComplete {
		row("Completed", formatDate(t.CompletedAt))
	}
	row("URL", t.URL)
	row("Version", fmt.Sprintf("%d", t.Version))

	if t.Description != "" {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Description"))
		b.WriteString("\n")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	if t.Notes != "" {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Notes"))
		b.WriteString("\n")
		b.WriteString(t.Notes)
		b.WriteString("\n")
	}
	return b.String()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
