package checklist

import (
	"math"
	"time"

	"github.com/fentz26/dealflow/internal/catalog"
	"github.com/fentz26/dealflow/internal/models"
)

// Percentage returns round(completed/total*100), or 0 for an empty set.
func Percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ComputeProgress aggregates an already-filtered task set.
func ComputeProgress(tasks []models.TaskRecord, now time.Time) models.PhaseProgress {
	var p models.PhaseProgress
	for _, t := range tasks {
		p.Total++
		switch t.Status {
		case models.TaskStatusComplete:
			p.Completed++
		case models.TaskStatusInProgress:
			p.InProgress++
		default:
			p.Pending++
		}
		if IsOverdue(t, now) {
			p.Overdue++
		}
		if t.Critical {
			p.Critical++
		}
	}
	p.Percentage = Percentage(p.Completed, p.Total)
	return p
}

// PhaseBreakdown computes one PhaseProgress per defined phase, in phase
// order, including phases with no tasks. Tasks whose phase matches no
// definition are collected in a trailing models.UnassignedPhase entry, which
// is only present when it is non-empty.
func PhaseBreakdown(tasks []models.TaskRecord, phases []models.PhaseDefinition, now time.Time) []models.PhaseProgress {
	index := make(map[string]int, len(phases))
	buckets := make([][]models.TaskRecord, len(phases))
	for i, p := range phases {
		index[catalog.PhaseKey(p.Name)] = i
	}

	var unassigned []models.TaskRecord
	for _, t := range tasks {
		if i, ok := index[catalog.PhaseKey(t.Phase)]; ok {
			buckets[i] = append(buckets[i], t)
			continue
		}
		unassigned = append(unassigned, t)
	}

	out := make([]models.PhaseProgress, 0, len(phases)+1)
	maxOrder := 0
	for i, def := range phases {
		p := ComputeProgress(buckets[i], now)
		p.Phase = def.Name
		p.Color = def.Color
		p.Order = def.Order
		if def.Order > maxOrder {
			maxOrder = def.Order
		}
		out = append(out, p)
	}
	if len(unassigned) > 0 {
		p := ComputeProgress(unassigned, now)
		p.Phase = models.UnassignedPhase
		p.Order = maxOrder + 1
		out = append(out, p)
	}
	return out
}

// OverallProgress is the mean of the phase percentages, rounded. Every phase
// counts the same regardless of how many tasks it holds.
func OverallProgress(phases []models.PhaseProgress) int {
	if len(phases) == 0 {
		return 0
	}
	sum := 0
	for _, p := range phases {
		sum += p.Percentage
	}
	return int(math.Round(float64(sum) / float64(len(phases))))
}

// WeightedProgress is completed/total across all phases.
func WeightedProgress(phases []models.PhaseProgress) int {
	completed, total := 0, 0
	for _, p := range phases {
		completed += p.Completed
		total += p.Total
	}
	return Percentage(completed, total)
}

// DealSummary builds the deal-level rollup shown on a deal's dashboard.
func DealSummary(dealID string, dt models.DealType, tasks []models.TaskRecord, phases []models.PhaseDefinition, now time.Time) models.DealProgress {
	breakdown := PhaseBreakdown(tasks, phases, now)
	totals := ComputeProgress(tasks, now)
	totals.Phase = ""
	return models.DealProgress{
		DealID:   dealID,
		DealType: dt,
		Phases:   breakdown,
		Totals:   totals,
		Overall:  OverallProgress(breakdown),
		Weighted: WeightedProgress(breakdown),
	}
}
