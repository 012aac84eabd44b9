package checklist

import (
	"time"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/models"
)

// TaskFilter narrows a task set. Zero-valued fields do not filter.
type TaskFilter struct {
	Phase       string
	Workstream  models.Workstream
	Status      models.TaskStatus
	Critical    *bool
	OverdueOnly bool
}

// FilterTasks returns the tasks matching every set field of f, preserving order.
func FilterTasks(tasks []models.TaskRecord, f TaskFilter, now time.Time) []models.TaskRecord {
	phaseKey := ""
	if f.Phase != "" {
		phaseKey = catalog.PhaseKey(f.Phase)
	}

	out := make([]models.TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		if phaseKey != "" && catalog.PhaseKey(t.Phase) != phaseKey {
			continue
		}
		if f.Workstream != "" && WorkstreamOf(t) != f.Workstream {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Critical != nil && t.Critical != *f.Critical {
			continue
		}
		if f.OverdueOnly && !IsOverdue(t, now) {
			continue
		}
		out = append(out, t)
	}
	return out
}
