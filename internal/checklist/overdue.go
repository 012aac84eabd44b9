package checklist

import (
	"sort"
	"time"

	"github.com/fentz26/dealflow/internal/models"
)

// IsOverdue reports whether t has a due date before now and is not complete.
func IsOverdue(t models.TaskRecord, now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != models.TaskStatusComplete
}

// DaysOverdue returns the whole days elapsed since the due date. ok is false
// when the task is not overdue.
func DaysOverdue(t models.TaskRecord, now time.Time) (days int, ok bool) {
	if !IsOverdue(t, now) {
		return 0, false
	}
	return int(now.Sub(*t.DueDate) / (24 * time.Hour)), true
}

// OverdueTask pairs a task with how late it is.
type OverdueTask struct {
	Task        models.TaskRecord `json:"task"`
	DaysOverdue int               `json:"days_overdue"`
}

// OverdueTasks returns the overdue subset, most overdue first; critical tasks
// win ties, then display order.
func OverdueTasks(tasks []models.TaskRecord, now time.Time) []OverdueTask {
	out := []OverdueTask{}
	for _, t := range tasks {
		if days, ok := DaysOverdue(t, now); ok {
			out = append(out, OverdueTask{Task: t, DaysOverdue: days})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		if a.Task.Critical != b.Task.Critical {
			return a.Task.Critical
		}
		return a.Task.Order < b.Task.Order
	})
	return out
}
