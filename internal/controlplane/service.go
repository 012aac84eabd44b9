// Package controlplane provides the service layer and HTTP API for dealflow.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fentz26/dealflow/internal/audit"
	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/notify"
	"github.com/fentz26/dealflow/internal/store"
	"github.com/fentz26/dealflow/internal/telemetry"
)

// Service provides the control plane business logic. Every mutation is
// audited, counted and announced on the deal's channel.
type Service struct {
	store   store.Backend
	catalog *catalog.Catalog
	inst    *checklist.Instantiator
	tasks   *checklist.Manager
	audit   *audit.Recorder
	pub     notify.Publisher
	metrics *telemetry.Metrics
	now     func() time.Time
	log     *slog.Logger
}

// NewService creates a new control plane service. pub and metrics may be nil.
func NewService(b store.Backend, cat *catalog.Catalog, pub notify.Publisher, metrics *telemetry.Metrics) *Service {
	if pub == nil {
		pub = notify.Nop{}
	}
	return &Service{
		store:   b,
		catalog: cat,
		inst:    checklist.NewInstantiator(cat, b),
		tasks:   checklist.NewManager(b),
		audit:   audit.NewRecorder(b),
		pub:     pub,
		metrics: metrics,
		now:     time.Now,
		log:     slog.Default().With("component", "controlplane"),
	}
}

// SetClock replaces the time source for completion stamps and overdue checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.tasks.SetClock(now)
	s.inst.SetClock(now)
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- Templates ---

// DealTypes lists the deal types with a template.
func (s *Service) DealTypes() []models.DealType {
	return s.catalog.DealTypes()
}

// PreviewTemplate summarizes what instantiating dt would create.
func (s *Service) PreviewTemplate(dt models.DealType) (*catalog.Preview, error) {
	return s.inst.Preview(dt)
}

// --- Checklists ---

// Instantiate creates a deal's checklist from its template, once.
func (s *Service) Instantiate(ctx context.Context, dealID string, dt models.DealType) (int, error) {
	n, err := s.inst.Instantiate(ctx, dealID, dt)
	s.audit.Record(ctx, audit.Entry{
		Action:  "checklist.instantiate",
		Inputs:  map[string]string{"deal_id": dealID, "deal_type": string(dt)},
		Err:     err,
		DealID:  dealID,
		Details: fmt.Sprintf("created %d tasks", n),
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.Instantiated(ctx, string(dt), n)
		s.publish(ctx, notify.Event{Type: notify.EventChecklistCreated, DealID: dealID, Count: n})
	}
	return n, nil
}

// Repair adds template tasks for phases that currently have none.
func (s *Service) Repair(ctx context.Context, dealID string, dt models.DealType) (int, error) {
	n, err := s.inst.InstantiateMissing(ctx, dealID, dt)
	s.audit.Record(ctx, audit.Entry{
		Action:  "checklist.repair",
		Inputs:  map[string]string{"deal_id": dealID, "deal_type": string(dt)},
		Err:     err,
		DealID:  dealID,
		Details: fmt.Sprintf("created %d tasks", n),
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.Instantiated(ctx, string(dt), n)
		s.publish(ctx, notify.Event{Type: notify.EventChecklistCreated, DealID: dealID, Count: n})
	}
	return n, nil
}

// Progress computes the deal rollup. An empty dt resolves to the type the
// checklist was instantiated with.
func (s *Service) Progress(ctx context.Context, dealID string, dt models.DealType) (*models.DealProgress, error) {
	dt, err := s.resolveDealType(ctx, dealID, dt)
	if err != nil {
		return nil, err
	}
	phases, err := s.catalog.ListPhases(dt)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksForDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	p := checklist.DealSummary(dealID, dt, tasks, phases, s.now())
	return &p, nil
}

// Workstreams groups a deal's tasks by workstream.
func (s *Service) Workstreams(ctx context.Context, dealID string) ([]models.WorkstreamStats, error) {
	tasks, err := s.store.ListTasksForDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return checklist.GroupByWorkstream(tasks, s.now()), nil
}

// Overdue lists a deal's overdue tasks, most overdue first.
func (s *Service) Overdue(ctx context.Context, dealID string) ([]checklist.OverdueTask, error) {
	tasks, err := s.store.ListTasksForDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return checklist.OverdueTasks(tasks, s.now()), nil
}

// Decisions returns the audit trail for a deal.
func (s *Service) Decisions(ctx context.Context, dealID string, limit int) ([]models.DecisionRecord, error) {
	return s.store.ListDecisions(ctx, dealID, limit)
}

func (s *Service) resolveDealType(ctx context.Context, dealID string, dt models.DealType) (models.DealType, error) {
	if dt != "" {
		return dt, nil
	}
	seed, err := s.store.GetSeed(ctx, dealID)
	if errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("%w: deal %s has no template; pass deal_type", models.ErrValidation, dealID)
	}
	if err != nil {
		return "", err
	}
	return seed.DealType, nil
}

// --- Tasks ---

// CreateTask adds a manual task.
func (s *Service) CreateTask(ctx context.Context, t models.TaskRecord) (*models.TaskRecord, error) {
	t.Phase = s.canonicalPhase(ctx, t.DealID, t.Phase)
	created, err := s.tasks.Create(ctx, t)
	entry := audit.Entry{
		Action: "task.create",
		Inputs: map[string]string{"deal_id": t.DealID, "title": t.Title, "phase": t.Phase},
		Err:    err,
		DealID: t.DealID,
	}
	if created != nil {
		entry.TaskID = created.ID
	}
	s.audit.Record(ctx, entry)
	if err != nil {
		return nil, err
	}
	s.metrics.TaskCreated(ctx)
	s.publish(ctx, taskEvent(notify.EventTaskCreated, created))
	return created, nil
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*models.TaskRecord, error) {
	return s.tasks.Get(ctx, id)
}

// ListTasks returns a deal's tasks narrowed by f.
func (s *Service) ListTasks(ctx context.Context, dealID string, f checklist.TaskFilter) ([]models.TaskRecord, error) {
	tasks, err := s.tasks.List(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return checklist.FilterTasks(tasks, f, s.now()), nil
}

// TransitionTask moves a task to a new status.
func (s *Service) TransitionTask(ctx context.Context, id string, status models.TaskStatus, version int64) (*models.TaskRecord, error) {
	before, _ := s.tasks.Get(ctx, id)
	t, err := s.tasks.Transition(ctx, id, status, version)
	entry := audit.Entry{
		Action: "task.transition",
		Inputs: map[string]any{"task_id": id, "status": status, "version": version},
		Err:    err,
		TaskID: id,
	}
	if before != nil {
		entry.DealID = before.DealID
		entry.Details = fmt.Sprintf("%s -> %s", before.Status, status)
	}
	s.audit.Record(ctx, entry)
	if err != nil {
		s.countConflict(ctx, "transition", err)
		return nil, err
	}
	if before == nil || t.Version != before.Version {
		s.metrics.Transitioned(ctx, string(status))
		s.publish(ctx, taskEvent(notify.EventTaskUpdated, t))
	}
	return t, nil
}

// EditTask applies a partial update.
func (s *Service) EditTask(ctx context.Context, id string, patch models.TaskPatch, version int64) (*models.TaskRecord, error) {
	before, _ := s.tasks.Get(ctx, id)
	if before != nil && patch.Phase != nil {
		phase := s.canonicalPhase(ctx, before.DealID, *patch.Phase)
		patch.Phase = &phase
	}
	t, err := s.tasks.Edit(ctx, id, patch, version)
	entry := audit.Entry{
		Action: "task.edit",
		Inputs: map[string]any{"task_id": id, "patch": patch, "version": version},
		Err:    err,
		TaskID: id,
	}
	if before != nil {
		entry.DealID = before.DealID
	}
	s.audit.Record(ctx, entry)
	if err != nil {
		s.countConflict(ctx, "edit", err)
		return nil, err
	}
	if before != nil && t.Version == before.Version {
		return t, nil
	}
	if patch.Status != nil {
		s.metrics.Transitioned(ctx, string(*patch.Status))
	}
	s.publish(ctx, taskEvent(notify.EventTaskUpdated, t))
	return t, nil
}

// canonicalPhase rewrites phase to the template spelling when the deal was
// instantiated from a template and the name matches one of its phases.
func (s *Service) canonicalPhase(ctx context.Context, dealID, phase string) string {
	seed, err := s.store.GetSeed(ctx, dealID)
	if err != nil {
		return phase
	}
	if def, ok := s.catalog.MatchPhase(seed.DealType, phase); ok {
		return def.Name
	}
	return phase
}

// DeleteTask removes a task permanently.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.tasks.Delete(ctx, id)
	s.audit.Record(ctx, audit.Entry{
		Action:  "task.delete",
		Inputs:  map[string]string{"task_id": id},
		Err:     err,
		DealID:  t.DealID,
		TaskID:  id,
		Details: t.Title,
	})
	if err != nil {
		return err
	}
	s.publish(ctx, notify.Event{Type: notify.EventTaskDeleted, DealID: t.DealID, TaskID: id})
	return nil
}

func (s *Service) countConflict(ctx context.Context, op string, err error) {
	if errors.Is(err, models.ErrConflict) {
		s.metrics.Conflict(ctx, op)
	}
}

// publish is best effort; a lost notification only delays a refresh.
func (s *Service) publish(ctx context.Context, e notify.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", "type", e.Type, "deal_id", e.DealID, "err", err)
	}
}

func taskEvent(typ string, t *models.TaskRecord) notify.Event {
	return notify.Event{
		Type:    typ,
		DealID:  t.DealID,
		TaskID:  t.ID,
		Status:  t.Status,
		Version: t.Version,
	}
}
