package checklist

import (
	"time"

	"github.com/fentz26/dealflow/internal/models"
)

// WorkstreamOf returns the task's workstream, treating unset or unknown
// values as "other".
func WorkstreamOf(t models.TaskRecord) models.Workstream {
	if t.Workstream.Valid() {
		return t.Workstream
	}
	return models.NormalizeWorkstream(string(t.Workstream))
}

// GroupByWorkstream partitions tasks over all seven workstreams and returns
// one entry per workstream in canonical display order, empty ones included.
func GroupByWorkstream(tasks []models.TaskRecord, now time.Time) []models.WorkstreamStats {
	pos := make(map[models.Workstream]int, len(models.Workstreams))
	out := make([]models.WorkstreamStats, len(models.Workstreams))
	for i, w := range models.Workstreams {
		pos[w] = i
		out[i].Workstream = w
	}

	for _, t := range tasks {
		s := &out[pos[WorkstreamOf(t)]]
		s.Total++
		switch t.Status {
		case models.TaskStatusComplete:
			s.Completed++
		case models.TaskStatusInProgress:
			s.InProgress++
		}
		if IsOverdue(t, now) {
			s.Overdue++
		}
	}
	for i := range out {
		out[i].Percentage = Percentage(out[i].Completed, out[i].Total)
	}
	return out
}
