package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/controlplane"
	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/notify"
	"github.com/fentz26/dealflow/internal/store"
)

func newAPI(t *testing.T) *Client {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	svc := controlplane.NewService(store.NewMemory(), cat, nil, nil)
	srv := httptest.NewServer(controlplane.NewServer(svc, "", nil, nil).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, models.TaskStatusInProgress, nextStatus(models.TaskStatusPending))
	assert.Equal(t, models.TaskStatusComplete, nextStatus(models.TaskStatusInProgress))
	assert.Equal(t, models.TaskStatusPending, nextStatus(models.TaskStatusComplete))
}

func TestParseCommand(t *testing.T) {
	c, err := parseCommand("  add Revisar cap table ")
	require.NoError(t, err)
	assert.Equal(t, barCommand{name: "add", arg: "Revisar cap table"}, c)

	_, err = parseCommand("note")
	assert.Error(t, err)

	_, err = parseCommand("claim x")
	assert.Error(t, err)

	_, err = parseCommand("")
	assert.Error(t, err)
}

func TestCommandPatch(t *testing.T) {
	p, err := barCommand{name: "due", arg: "2026-05-01"}.patch()
	require.NoError(t, err)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, 2026, p.DueDate.Year())

	p, err = barCommand{name: "due", arg: "none"}.patch()
	require.NoError(t, err)
	assert.True(t, p.ClearDueDate)

	_, err = barCommand{name: "due", arg: "tomorrow"}.patch()
	assert.Error(t, err)

	p, err = barCommand{name: "ws", arg: "finance"}.patch()
	require.NoError(t, err)
	assert.Equal(t, "financial", *p.Workstream)

	_, err = barCommand{name: "ws", arg: "marketing"}.patch()
	assert.Error(t, err)

	p, err = barCommand{name: "assign", arg: "Lucía"}.patch()
	require.NoError(t, err)
	assert.Equal(t, "Lucía", *p.Responsible)
}

func TestSuggestions(t *testing.T) {
	s := NewSuggestions()

	s.Update("a")
	require.True(t, s.IsVisible())
	assert.Equal(t, "add", s.Selected().Text)
	s.Next()
	assert.Equal(t, "assign", s.Selected().Text)
	assert.Equal(t, "assign ", s.Complete("a", s.Selected().Text))

	s.Update("ws t")
	require.True(t, s.IsVisible())
	assert.Equal(t, "tax", s.Selected().Text)
	assert.Equal(t, "ws tax", s.Complete("ws t", "tax"))

	s.Update("note something")
	assert.False(t, s.IsVisible())

	s.Update("")
	assert.Nil(t, s.Selected())
}

func TestClientRoundTrip(t *testing.T) {
	c := newAPI(t)
	ctx := context.Background()

	added, err := c.AddTask(ctx, "deal-1", "Cierre", "Firmar SPA")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, added.Status)

	moved, err := c.Transition(ctx, added.ID, models.TaskStatusComplete, added.Version)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusComplete, moved.Status)

	_, err = c.Transition(ctx, added.ID, models.TaskStatusPending, added.Version)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.Status)

	notes := "pendiente de firma"
	edited, err := c.Edit(ctx, added.ID, models.TaskPatch{Notes: &notes}, moved.Version)
	require.NoError(t, err)
	assert.Equal(t, notes, edited.Notes)

	tasks, err := c.ListTasks(ctx, "deal-1", "complete", false)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	p, err := c.Progress(ctx, "deal-1", "")
	assert.Nil(t, p)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)

	p, err = c.Progress(ctx, "deal-1", models.DealTypeSell)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Totals.Completed)

	assert.True(t, c.Ping(ctx))
}

func TestAppShowsProgress(t *testing.T) {
	app := New("http://127.0.0.1:0", "deal-1", "")
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	app.Update(progressLoadedMsg{&models.DealProgress{
		DealID:  "deal-1",
		Overall: 42,
		Phases: []models.PhaseProgress{
			{Phase: "Preparación", Color: "#6366F1", Total: 4, Completed: 2, Percentage: 50},
			{Phase: "Cierre", Total: 2, Overdue: 1},
		},
	}})

	view := app.View()
	assert.Contains(t, view, "Overall 42%")
	assert.Contains(t, view, "Preparación")
	assert.Contains(t, view, "1 late")
	assert.True(t, app.daemonOnline)
}

func TestAppTaskUpdated(t *testing.T) {
	app := New("http://127.0.0.1:0", "deal-1", "")
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	app.tasks.now = func() time.Time { return now }

	due := now.Add(-49 * time.Hour)
	task := models.TaskRecord{ID: "t1", Title: "NDA", Status: models.TaskStatusPending, DueDate: &due, Version: 1}
	app.Update(tasksLoadedMsg{[]models.TaskRecord{task}})

	sel := app.tasks.SelectedTask()
	require.NotNil(t, sel)
	assert.True(t, sel.Overdue)
	assert.Equal(t, 2, sel.DaysOverdue)

	task.Status = models.TaskStatusComplete
	task.Version = 2
	app.Update(taskUpdatedMsg{&task})

	sel = app.tasks.SelectedTask()
	require.NotNil(t, sel)
	assert.Equal(t, models.TaskStatusComplete, sel.Task.Status)
	assert.False(t, sel.Overdue)
	assert.Contains(t, app.message, "complete")
}

func TestAppReloadsOnDealEvent(t *testing.T) {
	app := New("http://127.0.0.1:0", "deal-1", "")
	assert.Nil(t, app.waitForEvent(), "no event source means no listener")

	events := make(chan notify.Event, 1)
	app.SetEvents(events)
	events <- notify.Event{Type: notify.EventTaskUpdated, DealID: "deal-1", TaskID: "t1"}

	msg := app.waitForEvent()()
	got, ok := msg.(dealEventMsg)
	require.True(t, ok, "%T", msg)
	assert.Equal(t, "t1", got.event.TaskID)

	_, cmd := app.Update(got)
	assert.NotNil(t, cmd)
	assert.Contains(t, app.message, notify.EventTaskUpdated)

	close(events)
	msg = app.waitForEvent()()
	assert.IsType(t, eventsClosedMsg{}, msg)
	app.Update(msg)
	assert.Nil(t, app.waitForEvent())
}

func TestTaskDetailShowsCompletionOnlyWhenComplete(t *testing.T) {
	done := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	item := &TaskItem{Task: models.TaskRecord{Title: "NDA", Status: models.TaskStatusComplete, CompletedAt: &done}}
	assert.Contains(t, renderTaskDetail(item), "2026-04-01")

	item.Task.Status = models.TaskStatusPending
	assert.NotContains(t, renderTaskDetail(item), "2026-04-01")
}
