package checklist_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*checklist.Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	m := checklist.NewManager(mem)
	m.SetClock(func() time.Time { return clock })
	return m, mem
}

func createTask(t *testing.T, m *checklist.Manager) *models.TaskRecord {
	t.Helper()
	tk, err := m.Create(context.Background(), models.TaskRecord{DealID: "deal-1", Title: "Revisar contratos", Phase: "Due Diligence"})
	require.NoError(t, err)
	return tk
}

func TestCreateDefaults(t *testing.T) {
	m, _ := newManager(t)
	tk := createTask(t, m)
	assert.NotEmpty(t, tk.ID)
	assert.Equal(t, models.TaskStatusPending, tk.Status)
	assert.Equal(t, models.WorkstreamOther, tk.Workstream)
	assert.Equal(t, 0, tk.Order, "order is stored as given")
	assert.Nil(t, tk.CompletedAt)
	assert.Equal(t, int64(1), tk.Version)
}

func TestCreatePlacesOrderZeroFirst(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Create(ctx, models.TaskRecord{DealID: "deal-1", Title: "Segundo", Order: models.OrderLast})
	require.NoError(t, err)
	_, err = m.Create(ctx, models.TaskRecord{DealID: "deal-1", Title: "Primero", Order: 0})
	require.NoError(t, err)

	list, err := m.List(ctx, "deal-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Primero", list[0].Title)
}

func TestCreateCompleteStampsCompletion(t *testing.T) {
	m, _ := newManager(t)
	tk, err := m.Create(context.Background(), models.TaskRecord{
		DealID: "deal-1", Title: "Ya hecho", Status: models.TaskStatusComplete, Workstream: "finance",
	})
	require.NoError(t, err)
	require.NotNil(t, tk.CompletedAt)
	assert.True(t, clock.Equal(*tk.CompletedAt))
	assert.Equal(t, models.WorkstreamFinancial, tk.Workstream)
}

func TestCreateValidation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	cases := []models.TaskRecord{
		{DealID: "deal-1", Title: "   "},
		{DealID: "", Title: "Sin deal"},
		{DealID: "deal-1", Title: "x", Status: "blocked"},
		{DealID: "deal-1", Title: "x", Workstream: "marketing"},
	}
	for _, c := range cases {
		_, err := m.Create(ctx, c)
		assert.ErrorIs(t, err, models.ErrValidation, "%+v", c)
	}
}

func TestTransitionCompletionTimestamp(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	done, err := m.Transition(ctx, tk.ID, models.TaskStatusComplete, 0)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, clock.Equal(*done.CompletedAt))

	back, err := m.Transition(ctx, tk.ID, models.TaskStatusInProgress, done.Version)
	require.NoError(t, err)
	assert.Nil(t, back.CompletedAt)
	assert.Equal(t, models.TaskStatusInProgress, back.Status)

	again, err := m.Transition(ctx, tk.ID, models.TaskStatusPending, 0)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, again.Status)
}

func TestTransitionSameStatusDoesNotWrite(t *testing.T) {
	m, _ := newManager(t)
	tk := createTask(t, m)

	same, err := m.Transition(context.Background(), tk.ID, models.TaskStatusPending, 0)
	require.NoError(t, err)
	assert.Equal(t, tk.Version, same.Version)
}

func TestTransitionErrors(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	_, err := m.Transition(ctx, "missing", models.TaskStatusComplete, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = m.Transition(ctx, tk.ID, "cancelled", 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = m.Transition(ctx, tk.ID, models.TaskStatusComplete, tk.Version+1)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestEditFields(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	dueAt := clock.AddDate(0, 0, 10)
	notes := "Pendiente de firma"
	ws := "legal"
	critical := true
	edited, err := m.Edit(ctx, tk.ID, models.TaskPatch{
		Notes:      &notes,
		Workstream: &ws,
		DueDate:    &dueAt,
		Critical:   &critical,
	}, tk.Version)
	require.NoError(t, err)
	assert.Equal(t, notes, edited.Notes)
	assert.Equal(t, models.WorkstreamLegal, edited.Workstream)
	assert.True(t, edited.Critical)
	require.NotNil(t, edited.DueDate)
	assert.Equal(t, models.TaskStatusPending, edited.Status, "field edits leave status alone")
	assert.Nil(t, edited.CompletedAt)

	cleared, err := m.Edit(ctx, tk.ID, models.TaskPatch{ClearDueDate: true}, 0)
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
}

func TestEditStatusFollowsTransitionRule(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	complete := models.TaskStatusComplete
	got, err := m.Edit(ctx, tk.ID, models.TaskPatch{Status: &complete}, 0)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)

	pending := models.TaskStatusPending
	got, err = m.Edit(ctx, tk.ID, models.TaskPatch{Status: &pending}, 0)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
}

func TestEditValidationAppliesNothing(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	notes := "should not stick"
	empty := ""
	_, err := m.Edit(ctx, tk.ID, models.TaskPatch{Notes: &notes, Title: &empty}, 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	stored, err := mem.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Notes)
	assert.Equal(t, tk.Version, stored.Version)

	dueAt := clock
	_, err = m.Edit(ctx, tk.ID, models.TaskPatch{DueDate: &dueAt, ClearDueDate: true}, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEditStaleVersionConflicts(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	first := "first"
	_, err := m.Edit(ctx, tk.ID, models.TaskPatch{Notes: &first}, tk.Version)
	require.NoError(t, err)

	second := "second"
	_, err = m.Edit(ctx, tk.ID, models.TaskPatch{Notes: &second}, tk.Version)
	assert.ErrorIs(t, err, models.ErrConflict)
}

// racingStore bumps the version behind the manager's back once, so the
// first conditional write loses.
type racingStore struct {
	*store.Memory
	raced bool
}

func (r *racingStore) UpdateTask(ctx context.Context, t *models.TaskRecord, expectedVersion int64) (*models.TaskRecord, error) {
	if !r.raced {
		r.raced = true
		cur, err := r.Memory.GetTask(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		cur.Responsible = "someone else"
		if _, err := r.Memory.UpdateTask(ctx, cur, 0); err != nil {
			return nil, err
		}
	}
	return r.Memory.UpdateTask(ctx, t, expectedVersion)
}

func TestUnconditionalEditRetriesOnRace(t *testing.T) {
	rs := &racingStore{Memory: store.NewMemory()}
	m := checklist.NewManager(rs)
	ctx := context.Background()
	tk, err := m.Create(ctx, models.TaskRecord{DealID: "deal-1", Title: "Teaser"})
	require.NoError(t, err)

	notes := "mine"
	got, err := m.Edit(ctx, tk.ID, models.TaskPatch{Notes: &notes}, 0)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Notes)
	assert.Equal(t, "someone else", got.Responsible, "concurrent field survives")
	assert.Equal(t, int64(3), got.Version)
}

func TestUnconditionalEditsUnderContention(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "deals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := checklist.NewManager(s)
	ctx := context.Background()
	tk, err := m.Create(ctx, models.TaskRecord{DealID: "deal-1", Title: "Data room"})
	require.NoError(t, err)

	const editors = 48
	var wg sync.WaitGroup
	errs := make(chan error, editors)
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patch := models.TaskPatch{}
			v := fmt.Sprintf("editor-%d", i)
			if i%2 == 0 {
				patch.Notes = &v
			} else {
				patch.Responsible = &v
			}
			_, err := m.Edit(ctx, tk.ID, patch, 0)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	final, err := m.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Version+editors, final.Version, "every edit lands exactly once")
	assert.Contains(t, final.Notes, "editor-")
	assert.Contains(t, final.Responsible, "editor-")
}

func TestUnconditionalEditStopsWithContext(t *testing.T) {
	m, _ := newManager(t)
	tk := createTask(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notes := "late"
	_, err := m.Edit(ctx, tk.ID, models.TaskPatch{Notes: &notes}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyPatchDoesNotWrite(t *testing.T) {
	m, mem := newManager(t)
	ctx := context.Background()
	tk := createTask(t, m)

	got, err := m.Edit(ctx, tk.ID, models.TaskPatch{}, 0)
	require.NoError(t, err)
	assert.Equal(t, tk.Version, got.Version)

	stored, err := mem.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Version, stored.Version)
}

func TestDeleteAndList(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	a := createTask(t, m)
	createTask(t, m)

	list, err := m.List(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, m.Delete(ctx, a.ID))
	_, err = m.Get(ctx, a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, a.ID), models.ErrNotFound)
}
