package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every Backend implementation that needs no
// external service.
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func sampleTask(dealID, title string) *models.TaskRecord {
	return &models.TaskRecord{
		DealID:     dealID,
		Phase:      "Preparación",
		Title:      title,
		Workstream: models.WorkstreamLegal,
		Status:     models.TaskStatusPending,
		Order:      1,
	}
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestTaskCRUD(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		task := sampleTask("deal-1", "Firmar NDA")
		task.DueDate = &due
		task.Critical = true
		id, err := b.CreateTask(ctx, task)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, task.ID)
		assert.Equal(t, int64(1), task.Version)

		got, err := b.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Firmar NDA", got.Title)
		assert.Equal(t, "Preparación", got.Phase)
		assert.Equal(t, models.WorkstreamLegal, got.Workstream)
		assert.True(t, got.Critical)
		require.NotNil(t, got.DueDate)
		assert.True(t, due.Equal(*got.DueDate))
		assert.Nil(t, got.CompletedAt)

		got.Title = "Firmar NDA con comprador"
		got.Status = models.TaskStatusComplete
		done := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		got.CompletedAt = &done
		got.DueDate = nil
		updated, err := b.UpdateTask(ctx, got, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		reread, err := b.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Firmar NDA con comprador", reread.Title)
		assert.Equal(t, models.TaskStatusComplete, reread.Status)
		assert.Nil(t, reread.DueDate)
		require.NotNil(t, reread.CompletedAt)
		assert.True(t, done.Equal(*reread.CompletedAt))
		assert.Equal(t, int64(2), reread.Version)

		require.NoError(t, b.DeleteTask(ctx, id))
		_, err = b.GetTask(ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, b.DeleteTask(ctx, id), models.ErrNotFound)
	})
}

func TestUpdateTaskVersioning(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		task := sampleTask("deal-1", "Teaser")
		_, err := b.CreateTask(ctx, task)
		require.NoError(t, err)

		_, err = b.UpdateTask(ctx, task, 1)
		require.NoError(t, err)

		_, err = b.UpdateTask(ctx, task, 1)
		assert.ErrorIs(t, err, models.ErrConflict)

		updated, err := b.UpdateTask(ctx, task, 0)
		require.NoError(t, err, "unconditional update ignores the version")
		assert.Equal(t, int64(3), updated.Version)

		missing := sampleTask("deal-1", "ghost")
		missing.ID = "does-not-exist"
		_, err = b.UpdateTask(ctx, missing, 0)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = b.UpdateTask(ctx, missing, 4)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestListTasksForDealOrdering(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		for i, title := range []string{"c", "a", "b"} {
			task := sampleTask("deal-1", title)
			task.Order = []int{3, 1, 2}[i]
			_, err := b.CreateTask(ctx, task)
			require.NoError(t, err)
		}
		_, err := b.CreateTask(ctx, sampleTask("deal-2", "other deal"))
		require.NoError(t, err)

		tasks, err := b.ListTasksForDeal(ctx, "deal-1")
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})

		empty, err := b.ListTasksForDeal(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}

func TestSeedChecklistIsGuarded(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		seed := models.ChecklistSeed{DealID: "deal-1", DealType: models.DealTypeSell, TaskCount: 2}
		tasks := []*models.TaskRecord{sampleTask("deal-1", "one"), sampleTask("deal-1", "two")}

		ids, err := b.SeedChecklist(ctx, seed, tasks)
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		_, err = b.SeedChecklist(ctx, seed, []*models.TaskRecord{sampleTask("deal-1", "three")})
		assert.ErrorIs(t, err, models.ErrAlreadyInstantiated)

		all, err := b.ListTasksForDeal(ctx, "deal-1")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		got, err := b.GetSeed(ctx, "deal-1")
		require.NoError(t, err)
		assert.Equal(t, models.DealTypeSell, got.DealType)
		assert.Equal(t, 2, got.TaskCount)

		_, err = b.GetSeed(ctx, "deal-2")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestConcurrentSeedCreatesOnce(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seed := models.ChecklistSeed{DealID: "deal-1", DealType: models.DealTypeBuy, TaskCount: 1}
				_, err := b.SeedChecklist(ctx, seed, []*models.TaskRecord{sampleTask("deal-1", "only")})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, models.ErrAlreadyInstantiated)
		}
		assert.Equal(t, 1, succeeded)

		tasks, err := b.ListTasksForDeal(ctx, "deal-1")
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})
}

func TestCreateTasksAndListDeals(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		ids, err := b.CreateTasks(ctx, []*models.TaskRecord{sampleTask("deal-b", "x"), sampleTask("deal-b", "y")})
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		_, err = b.SeedChecklist(ctx, models.ChecklistSeed{DealID: "deal-a", DealType: models.DealTypeBuy}, nil)
		require.NoError(t, err)

		deals, err := b.ListDeals(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"deal-a", "deal-b"}, deals)
	})
}

func TestDecisions(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, action := range []string{"checklist.instantiate", "task.transition", "task.delete"} {
			d := &models.DecisionRecord{
				Action:     action,
				InputsHash: "abc",
				Outcome:    "success",
				DealID:     "deal-1",
				Timestamp:  base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, b.WriteDecision(ctx, d))
			assert.NotEmpty(t, d.ID)
		}
		require.NoError(t, b.WriteDecision(ctx, &models.DecisionRecord{Action: "task.create", InputsHash: "def", Outcome: "success", DealID: "deal-2"}))

		got, err := b.ListDecisions(ctx, "deal-1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "task.delete", got[0].Action)
		assert.Equal(t, "task.transition", got[1].Action)

		all, err := b.ListDecisions(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}
