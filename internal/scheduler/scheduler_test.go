package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/notify"
	"github.com/fentz26/dealflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, s *store.Memory, dealID, title string, due time.Time, status models.TaskStatus) string {
	t.Helper()
	task := &models.TaskRecord{DealID: dealID, Title: title, Phase: "Cierre", DueDate: &due, Status: status}
	id, err := s.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return id
}

func TestSweepOncePublishesPerDeal(t *testing.T) {
	mem := store.NewMemory()
	late := seedTask(t, mem, "deal-a", "Firma", now.Add(-72*time.Hour), models.TaskStatusPending)
	seedTask(t, mem, "deal-a", "Cerrado", now.Add(-72*time.Hour), models.TaskStatusComplete)
	seedTask(t, mem, "deal-b", "A tiempo", now.Add(48*time.Hour), models.TaskStatusInProgress)

	var rec notify.Recorder
	sch := New(mem, &rec, nil, &Config{Workers: 2})
	sch.SetClock(func() time.Time { return now })

	res, err := sch.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deals)
	assert.Equal(t, 1, res.DealsOverdue)
	assert.Equal(t, 1, res.OverdueTasks)
	assert.Zero(t, res.Failed)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventOverdue, events[0].Type)
	assert.Equal(t, "deal-a", events[0].DealID)
	assert.Equal(t, []string{late}, events[0].TaskIDs)

	last := sch.LastSweep()
	require.NotNil(t, last)
	assert.Equal(t, 1, last.OverdueTasks)
}

func TestSweepDoesNotPersistOverdue(t *testing.T) {
	mem := store.NewMemory()
	id := seedTask(t, mem, "deal-a", "Firma", now.Add(-24*time.Hour), models.TaskStatusPending)

	sch := New(mem, nil, nil, nil)
	sch.SetClock(func() time.Time { return now })
	_, err := sch.SweepOnce(context.Background())
	require.NoError(t, err)

	task, err := mem.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, int64(1), task.Version)
}

type flakySource struct {
	*store.Memory
	fail string
}

func (f flakySource) ListTasksForDeal(ctx context.Context, dealID string) ([]models.TaskRecord, error) {
	if dealID == f.fail {
		return nil, errors.New("connection reset")
	}
	return f.Memory.ListTasksForDeal(ctx, dealID)
}

func TestSweepContinuesPastFailingDeal(t *testing.T) {
	mem := store.NewMemory()
	seedTask(t, mem, "deal-a", "Firma", now.Add(-24*time.Hour), models.TaskStatusPending)
	seedTask(t, mem, "deal-b", "Firma", now.Add(-24*time.Hour), models.TaskStatusPending)

	var rec notify.Recorder
	sch := New(flakySource{Memory: mem, fail: "deal-a"}, &rec, nil, nil)
	sch.SetClock(func() time.Time { return now })

	res, err := sch.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.DealsOverdue)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "deal-b", rec.Events()[0].DealID)
}

func TestStartStop(t *testing.T) {
	mem := store.NewMemory()
	seedTask(t, mem, "deal-a", "Firma", now.Add(-24*time.Hour), models.TaskStatusPending)

	var rec notify.Recorder
	sch := New(mem, &rec, nil, &Config{Enabled: true, Interval: 10 * time.Millisecond, Workers: 1})
	sch.SetClock(func() time.Time { return now })
	sch.Start()

	require.Eventually(t, func() bool { return sch.LastSweep() != nil }, 2*time.Second, 10*time.Millisecond)
	sch.Stop()
	assert.NotEmpty(t, rec.Events())
}

func TestDisabledDoesNotRun(t *testing.T) {
	sch := New(store.NewMemory(), nil, nil, &Config{Enabled: false, Interval: time.Millisecond})
	sch.Start()
	time.Sleep(20 * time.Millisecond)
	sch.Stop()
	assert.Nil(t, sch.LastSweep())
}
