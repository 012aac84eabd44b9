package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/google/uuid"
)

// Memory implements Backend in memory. Records are copied on the way in and
// out so callers never share state with the store.
type Memory struct {
	mu        sync.RWMutex
	tasks     map[string]*models.TaskRecord
	seeds     map[string]models.ChecklistSeed
	decisions []models.DecisionRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks: make(map[string]*models.TaskRecord),
		seeds: make(map[string]models.ChecklistSeed),
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateTask(ctx context.Context, t *models.TaskRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prepareTask(t, time.Now().UTC())
	m.tasks[t.ID] = cloneTask(t)
	return t.ID, nil
}

func (m *Memory) CreateTasks(ctx context.Context, tasks []*models.TaskRecord) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(tasks), nil
}

func (m *Memory) insertLocked(tasks []*models.TaskRecord) []string {
	now := time.Now().UTC()
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		prepareTask(t, now)
		m.tasks[t.ID] = cloneTask(t)
		ids = append(ids, t.ID)
	}
	return ids
}

func (m *Memory) GetTask(ctx context.Context, id string) (*models.TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	return cloneTask(t), nil
}

func (m *Memory) UpdateTask(ctx context.Context, t *models.TaskRecord, expectedVersion int64) (*models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[t.ID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, t.ID)
	}
	if expectedVersion != 0 && cur.Version != expectedVersion {
		return nil, fmt.Errorf("%w: task %s is at version %d, not %d", models.ErrConflict, t.ID, cur.Version, expectedVersion)
	}

	next := cloneTask(t)
	next.DealID = cur.DealID
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	m.tasks[t.ID] = next
	return cloneTask(next), nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListTasksForDeal(ctx context.Context, dealID string) ([]models.TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.TaskRecord{}
	for _, t := range m.tasks {
		if t.DealID == dealID {
			out = append(out, *cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SeedChecklist(ctx context.Context, seed models.ChecklistSeed, tasks []*models.TaskRecord) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seeds[seed.DealID]; ok {
		return nil, fmt.Errorf("%w: deal %s", models.ErrAlreadyInstantiated, seed.DealID)
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now()
	}
	m.seeds[seed.DealID] = seed
	return m.insertLocked(tasks), nil
}

func (m *Memory) GetSeed(ctx context.Context, dealID string) (*models.ChecklistSeed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seed, ok := m.seeds[dealID]
	if !ok {
		return nil, fmt.Errorf("%w: no checklist for deal %s", models.ErrNotFound, dealID)
	}
	return &seed, nil
}

func (m *Memory) ListDeals(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	for id := range m.seeds {
		seen[id] = true
	}
	for _, t := range m.tasks {
		seen[t.DealID] = true
	}
	deals := make([]string, 0, len(seen))
	for id := range seen {
		deals = append(deals, id)
	}
	sort.Strings(deals)
	return deals, nil
}

func (m *Memory) WriteDecision(ctx context.Context, d *models.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *Memory) ListDecisions(ctx context.Context, dealID string, limit int) ([]models.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	out := []models.DecisionRecord{}
	for i := len(m.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		if dealID == "" || m.decisions[i].DealID == dealID {
			out = append(out, m.decisions[i])
		}
	}
	return out, nil
}

func cloneTask(t *models.TaskRecord) *models.TaskRecord {
	c := *t
	c.StartDate = cloneTime(t.StartDate)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
