// Package checklist is the deal checklist engine. It instantiates templates,
// runs the task status machine and derives progress from live task sets.
package checklist

import (
	"context"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/models"
)

// TaskStore is the persistence boundary of the engine.
//
// Implementations report a missing record with models.ErrNotFound, a stale
// expectedVersion with models.ErrConflict, a second seed for the same deal
// with models.ErrAlreadyInstantiated, and wrap driver failures in
// models.ErrStore. UpdateTask persists the whole record; partial updates are
// applied by the Manager before the write.
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.TaskRecord) (string, error)
	// CreateTasks inserts all tasks or none.
	CreateTasks(ctx context.Context, tasks []*models.TaskRecord) ([]string, error)
	GetTask(ctx context.Context, id string) (*models.TaskRecord, error)
	// UpdateTask writes t if the stored version equals expectedVersion, then
	// bumps the version. expectedVersion 0 skips the check.
	UpdateTask(ctx context.Context, t *models.TaskRecord, expectedVersion int64) (*models.TaskRecord, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasksForDeal(ctx context.Context, dealID string) ([]models.TaskRecord, error)

	// SeedChecklist records the seed and inserts tasks in one transaction.
	SeedChecklist(ctx context.Context, seed models.ChecklistSeed, tasks []*models.TaskRecord) ([]string, error)
	GetSeed(ctx context.Context, dealID string) (*models.ChecklistSeed, error)
	ListDeals(ctx context.Context) ([]string, error)
}

// TemplateSource supplies phase definitions and task templates per deal type.
// *catalog.Catalog implements it.
type TemplateSource interface {
	ListPhases(dt models.DealType) ([]models.PhaseDefinition, error)
	ListTaskTemplates(dt models.DealType) ([]models.TaskTemplate, error)
	Preview(dt models.DealType) (*catalog.Preview, error)
}
