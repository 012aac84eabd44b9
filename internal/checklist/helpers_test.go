package checklist

import (
	"time"

	"github.com/fentz26/dealflow/internal/models"
)

var today = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

func task(phase string, status models.TaskStatus) models.TaskRecord {
	return models.TaskRecord{Phase: phase, Title: phase + " task", Status: status, Workstream: models.WorkstreamOther}
}

func due(t models.TaskRecord, at time.Time) models.TaskRecord {
	t.DueDate = &at
	return t
}

// taskFromSeed derives a task deterministically from an integer so property
// generators only need to produce ints.
func taskFromSeed(n int) models.TaskRecord {
	statuses := []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusComplete}
	workstreams := append(append([]models.Workstream{}, models.Workstreams...), "", "marketing")

	t := models.TaskRecord{
		Title:      "generated",
		Phase:      []string{"Preparación", "Marketing", "Ofertas", "Otra"}[n%4],
		Status:     statuses[(n/4)%3],
		Workstream: workstreams[(n/12)%len(workstreams)],
		Critical:   (n/108)%2 == 1,
	}
	if (n/216)%2 == 1 {
		d := today.Add(time.Duration((n/432)%400-200) * time.Hour)
		t.DueDate = &d
	}
	return t
}

func tasksFromSeeds(seeds []int) []models.TaskRecord {
	out := make([]models.TaskRecord, len(seeds))
	for i, n := range seeds {
		out[i] = taskFromSeed(n)
	}
	return out
}
