package checklist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/models"
)

// Instantiator turns a deal type's templates into a deal's live task set.
type Instantiator struct {
	templates TemplateSource
	store     TaskStore
	now       func() time.Time
}

// NewInstantiator creates an instantiator reading from templates and
// writing through s.
func NewInstantiator(templates TemplateSource, s TaskStore) *Instantiator {
	return &Instantiator{templates: templates, store: s, now: time.Now}
}

// SetClock replaces the time source used for the seed record.
func (in *Instantiator) SetClock(now func() time.Time) {
	in.now = now
}

// Instantiate creates one pending task per template of dt, in catalog order.
// The seed record and the tasks are written together; a deal that already
// has a seed fails with models.ErrAlreadyInstantiated and nothing is
// created. A deal type without templates returns (0, nil).
func (in *Instantiator) Instantiate(ctx context.Context, dealID string, dt models.DealType) (int, error) {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return 0, fmt.Errorf("%w: deal id is required", models.ErrValidation)
	}
	templates, err := in.templates.ListTaskTemplates(dt)
	if err != nil {
		return 0, err
	}
	if len(templates) == 0 {
		return 0, nil
	}

	tasks := BuildTasks(dealID, templates)
	seed := models.ChecklistSeed{
		DealID:    dealID,
		DealType:  dt,
		TaskCount: len(tasks),
		CreatedAt: in.now(),
	}
	ids, err := in.store.SeedChecklist(ctx, seed, tasks)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// InstantiateMissing creates template tasks only for phases that currently
// hold no tasks. It repairs partial checklists and seeds a deal that has
// none at all.
func (in *Instantiator) InstantiateMissing(ctx context.Context, dealID string, dt models.DealType) (int, error) {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return 0, fmt.Errorf("%w: deal id is required", models.ErrValidation)
	}
	existing, err := in.store.ListTasksForDeal(ctx, dealID)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		_, err := in.store.GetSeed(ctx, dealID)
		if errors.Is(err, models.ErrNotFound) {
			return in.Instantiate(ctx, dealID, dt)
		}
		if err != nil {
			return 0, err
		}
	}

	templates, err := in.templates.ListTaskTemplates(dt)
	if err != nil {
		return 0, err
	}
	populated := make(map[string]bool)
	for _, t := range existing {
		populated[catalog.PhaseKey(t.Phase)] = true
	}
	var missing []models.TaskTemplate
	for _, tpl := range templates {
		if !populated[catalog.PhaseKey(tpl.Phase)] {
			missing = append(missing, tpl)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	ids, err := in.store.CreateTasks(ctx, BuildTasks(dealID, missing))
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Preview returns the template summary shown before a deal is instantiated.
func (in *Instantiator) Preview(dt models.DealType) (*catalog.Preview, error) {
	return in.templates.Preview(dt)
}

// BuildTasks maps templates onto new pending task records for dealID.
func BuildTasks(dealID string, templates []models.TaskTemplate) []*models.TaskRecord {
	tasks := make([]*models.TaskRecord, 0, len(templates))
	for _, tpl := range templates {
		ws := tpl.Workstream
		if !ws.Valid() {
			ws = models.NormalizeWorkstream(string(ws))
		}
		tasks = append(tasks, &models.TaskRecord{
			DealID:      dealID,
			Order:       tpl.Order,
			Phase:       tpl.Phase,
			Title:       tpl.Title,
			Description: tpl.Description,
			Responsible: tpl.Responsible,
			System:      tpl.System,
			Workstream:  ws,
			Critical:    tpl.Critical,
			Status:      models.TaskStatusPending,
		})
	}
	return tasks
}
