package catalog

import "github.com/fentz26/dealflow/internal/models"

// Preview is a template laid out for confirmation before instantiation.
type Preview struct {
	DealType      models.DealType `json:"deal_type"`
	Phases        []PhasePreview  `json:"phases"`
	TaskCount     int             `json:"task_count"`
	CriticalCount int             `json:"critical_count"`
}

// PhasePreview nests a phase's task templates under its definition.
type PhasePreview struct {
	models.PhaseDefinition
	Tasks         []models.TaskTemplate `json:"tasks"`
	EstimatedDays int                   `json:"estimated_days"`
}

// Preview groups the templates for dt by phase.
func (c *Catalog) Preview(dt models.DealType) (*Preview, error) {
	set, err := c.set(dt)
	if err != nil {
		return nil, err
	}

	p := &Preview{DealType: dt, Phases: make([]PhasePreview, len(set.phases))}
	index := make(map[string]int, len(set.phases))
	for i, def := range set.phases {
		p.Phases[i] = PhasePreview{PhaseDefinition: def, Tasks: []models.TaskTemplate{}}
		index[def.Name] = i
	}
	for _, t := range set.tasks {
		pp := &p.Phases[index[t.Phase]]
		pp.Tasks = append(pp.Tasks, t)
		pp.EstimatedDays += t.DurationDays
		p.TaskCount++
		if t.Critical {
			p.CriticalCount++
		}
	}
	return p, nil
}
