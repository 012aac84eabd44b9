package checklist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/dealflow/internal/models"
)

// Manager applies status transitions and field edits to live tasks.
type Manager struct {
	store TaskStore
	now   func() time.Time
}

// NewManager creates a lifecycle manager on top of s.
func NewManager(s TaskStore) *Manager {
	return &Manager{store: s, now: time.Now}
}

// SetClock replaces the time source used for completion timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create adds a manual task to a deal. Missing status defaults to pending and
// missing workstream to other. Order is stored as given; callers that want
// the task placed last pass models.OrderLast.
func (m *Manager) Create(ctx context.Context, t models.TaskRecord) (*models.TaskRecord, error) {
	t.DealID = strings.TrimSpace(t.DealID)
	t.Title = strings.TrimSpace(t.Title)
	t.Phase = strings.TrimSpace(t.Phase)
	if t.DealID == "" {
		return nil, fmt.Errorf("%w: deal id is required", models.ErrValidation)
	}
	if t.Title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if !t.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, t.Status)
	}
	if t.Workstream == "" {
		t.Workstream = models.WorkstreamOther
	} else {
		ws, err := models.ParseWorkstream(string(t.Workstream))
		if err != nil {
			return nil, err
		}
		t.Workstream = ws
	}

	now := m.now()
	t.CompletedAt = nil
	applyStatus(&t, t.Status, now)
	t.ID = ""
	t.Version = 0

	id, err := m.store.CreateTask(ctx, &t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return &t, nil
}

// Transition moves a task to status. Any state may move to any other.
// Entering complete stamps CompletedAt; leaving it clears the stamp. A
// transition to the current status returns the task without writing.
func (m *Manager) Transition(ctx context.Context, id string, status models.TaskStatus, expectedVersion int64) (*models.TaskRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, status)
	}
	return m.mutate(ctx, id, expectedVersion, func(t *models.TaskRecord, now time.Time) (bool, error) {
		if t.Status == status && (t.CompletedAt != nil) == (status == models.TaskStatusComplete) {
			return false, nil
		}
		applyStatus(t, status, now)
		return true, nil
	})
}

// Edit applies a partial update. A status carried by the patch follows the
// same completion rule as Transition. An empty patch returns the task
// without writing.
func (m *Manager) Edit(ctx context.Context, id string, patch models.TaskPatch, expectedVersion int64) (*models.TaskRecord, error) {
	empty := patch == models.TaskPatch{}
	return m.mutate(ctx, id, expectedVersion, func(t *models.TaskRecord, now time.Time) (bool, error) {
		if err := ApplyPatch(t, patch, now); err != nil {
			return false, err
		}
		return !empty, nil
	})
}

// Delete removes a task permanently.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteTask(ctx, id)
}

// Get returns one task.
func (m *Manager) Get(ctx context.Context, id string) (*models.TaskRecord, error) {
	return m.store.GetTask(ctx, id)
}

// List returns a deal's tasks in display order.
func (m *Manager) List(ctx context.Context, dealID string) ([]models.TaskRecord, error) {
	return m.store.ListTasksForDeal(ctx, dealID)
}

// mutate runs a read-modify-write cycle. With expectedVersion set, a stale
// version fails with ErrConflict. Without it, a lost race re-reads the record
// and reapplies fn until the write lands or ctx ends, so the patched fields
// win.
func (m *Manager) mutate(ctx context.Context, id string, expectedVersion int64, fn func(*models.TaskRecord, time.Time) (bool, error)) (*models.TaskRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := m.store.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if expectedVersion != 0 && t.Version != expectedVersion {
			return nil, fmt.Errorf("%w: task %s is at version %d, not %d", models.ErrConflict, id, t.Version, expectedVersion)
		}

		changed, err := fn(t, m.now())
		if err != nil {
			return nil, err
		}
		if !changed {
			return t, nil
		}

		updated, err := m.store.UpdateTask(ctx, t, t.Version)
		if err == nil {
			return updated, nil
		}
		if expectedVersion != 0 || !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
	}
}

// applyStatus sets the status and keeps CompletedAt consistent with it.
func applyStatus(t *models.TaskRecord, status models.TaskStatus, now time.Time) {
	if status == models.TaskStatusComplete {
		if t.Status != models.TaskStatusComplete || t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
}

// ApplyPatch validates patch and applies it to t in place. Nothing is
// applied when validation fails.
func ApplyPatch(t *models.TaskRecord, p models.TaskPatch, now time.Time) error {
	var ws models.Workstream
	if p.Workstream != nil {
		parsed, err := models.ParseWorkstream(*p.Workstream)
		if err != nil {
			return err
		}
		ws = parsed
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrValidation, *p.Status)
	}
	if p.ClearStartDate && p.StartDate != nil {
		return fmt.Errorf("%w: start_date set and cleared in one patch", models.ErrValidation)
	}
	if p.ClearDueDate && p.DueDate != nil {
		return fmt.Errorf("%w: due_date set and cleared in one patch", models.ErrValidation)
	}

	if p.Phase != nil {
		t.Phase = strings.TrimSpace(*p.Phase)
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.URL != nil {
		t.URL = *p.URL
	}
	if p.Responsible != nil {
		t.Responsible = *p.Responsible
	}
	if p.System != nil {
		t.System = *p.System
	}
	if p.Workstream != nil {
		t.Workstream = ws
	}
	if p.StartDate != nil {
		d := *p.StartDate
		t.StartDate = &d
	}
	if p.ClearStartDate {
		t.StartDate = nil
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.Critical != nil {
		t.Critical = *p.Critical
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.Status != nil {
		applyStatus(t, *p.Status, now)
	}
	return nil
}
