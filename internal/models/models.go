// Package models defines the core domain types for dealflow.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DealType identifies which process template a deal follows.
type DealType string

const (
	DealTypeBuy  DealType = "compra"
	DealTypeSell DealType = "venta"
)

// ParseDealType accepts the canonical names and their English aliases.
func ParseDealType(s string) (DealType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compra", "buy", "buy-side", "buyside":
		return DealTypeBuy, nil
	case "venta", "sell", "sell-side", "sellside":
		return DealTypeSell, nil
	}
	return "", fmt.Errorf("%w: unknown deal type %q", ErrValidation, s)
}

// TaskStatus represents the current state of a checklist task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusComplete   TaskStatus = "complete"
)

// Valid reports whether s is one of the three checklist states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusComplete:
		return true
	}
	return false
}

// Workstream is a due-diligence category, orthogonal to phase.
type Workstream string

const (
	WorkstreamLegal      Workstream = "legal"
	WorkstreamFinancial  Workstream = "financial"
	WorkstreamCommercial Workstream = "commercial"
	WorkstreamOps        Workstream = "ops"
	WorkstreamIT         Workstream = "it"
	WorkstreamTax        Workstream = "tax"
	WorkstreamOther      Workstream = "other"
)

// Workstreams lists every workstream in canonical display order.
var Workstreams = []Workstream{
	WorkstreamLegal,
	WorkstreamFinancial,
	WorkstreamCommercial,
	WorkstreamOps,
	WorkstreamIT,
	WorkstreamTax,
	WorkstreamOther,
}

var workstreamAliases = map[string]Workstream{
	"legal":       WorkstreamLegal,
	"financial":   WorkstreamFinancial,
	"finance":     WorkstreamFinancial,
	"financiero":  WorkstreamFinancial,
	"commercial":  WorkstreamCommercial,
	"comercial":   WorkstreamCommercial,
	"ops":         WorkstreamOps,
	"operations":  WorkstreamOps,
	"operaciones": WorkstreamOps,
	"it":          WorkstreamIT,
	"tech":        WorkstreamIT,
	"tax":         WorkstreamTax,
	"fiscal":      WorkstreamTax,
	"other":       WorkstreamOther,
	"otro":        WorkstreamOther,
}

// Valid reports whether w is one of the seven enumerated workstreams.
func (w Workstream) Valid() bool {
	for _, v := range Workstreams {
		if w == v {
			return true
		}
	}
	return false
}

// NormalizeWorkstream maps free-form input onto the enumeration.
// Empty and unrecognised values land in "other".
func NormalizeWorkstream(s string) Workstream {
	if w, ok := workstreamAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return w
	}
	return WorkstreamOther
}

// ParseWorkstream is the strict variant used for user edits.
func ParseWorkstream(s string) (Workstream, error) {
	if w, ok := workstreamAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return w, nil
	}
	return "", fmt.Errorf("%w: unknown workstream %q", ErrValidation, s)
}

// OrderLast is the display order given to manually added tasks.
const OrderLast = 999

// UnassignedPhase is the bucket for tasks whose phase matches no definition.
const UnassignedPhase = "Unassigned"

// PhaseDefinition is one stage of the standard process for a deal type.
type PhaseDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Order       int    `json:"order" yaml:"order"`
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// TaskTemplate is reference data copied into a TaskRecord at instantiation.
type TaskTemplate struct {
	DealType     DealType   `json:"deal_type" yaml:"-"`
	Phase        string     `json:"phase" yaml:"phase"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Responsible  string     `json:"responsible,omitempty" yaml:"responsible,omitempty"`
	System       string     `json:"system,omitempty" yaml:"system,omitempty"`
	Workstream   Workstream `json:"workstream,omitempty" yaml:"workstream,omitempty"`
	Critical     bool       `json:"critical" yaml:"critical"`
	DurationDays int        `json:"duration_days,omitempty" yaml:"duration_days,omitempty"`
	Order        int        `json:"order" yaml:"order"`
}

// TaskRecord is a live checklist task belonging to one deal.
type TaskRecord struct {
	ID          string     `json:"id"`
	DealID      string     `json:"deal_id"`
	Order       int        `json:"order"`
	Phase       string     `json:"phase"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	URL         string     `json:"url,omitempty"`
	Responsible string     `json:"responsible,omitempty"`
	System      string     `json:"system,omitempty"`
	Workstream  Workstream `json:"workstream"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      TaskStatus `json:"status"`
	Critical    bool       `json:"critical"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskPatch carries a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Phase       *string     `json:"phase,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	URL         *string     `json:"url,omitempty"`
	Responsible *string     `json:"responsible,omitempty"`
	System      *string     `json:"system,omitempty"`
	Workstream  *string     `json:"workstream,omitempty"`
	StartDate   *time.Time  `json:"start_date,omitempty"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Critical    *bool       `json:"critical,omitempty"`
	Order       *int        `json:"order,omitempty"`

	ClearStartDate bool `json:"clear_start_date,omitempty"`
	ClearDueDate   bool `json:"clear_due_date,omitempty"`
}

// PhaseProgress is derived per phase and never persisted.
type PhaseProgress struct {
	Phase      string `json:"phase"`
	Color      string `json:"color,omitempty"`
	Order      int    `json:"order"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Pending    int    `json:"pending"`
	Overdue    int    `json:"overdue"`
	Critical   int    `json:"critical"`
	Percentage int    `json:"percentage"`
}

// WorkstreamStats is derived per workstream and never persisted.
type WorkstreamStats struct {
	Workstream Workstream `json:"workstream"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	InProgress int        `json:"in_progress"`
	Overdue    int        `json:"overdue"`
	Percentage int        `json:"percentage"`
}

// DealProgress rolls up a deal's checklist.
// Overall is the mean of phase percentages; Weighted counts every task equally.
type DealProgress struct {
	DealID   string          `json:"deal_id"`
	DealType DealType        `json:"deal_type,omitempty"`
	Phases   []PhaseProgress `json:"phases"`
	Totals   PhaseProgress   `json:"totals"`
	Overall  int             `json:"overall"`
	Weighted int             `json:"weighted"`
}

// ChecklistSeed marks a deal whose checklist has been instantiated.
type ChecklistSeed struct {
	DealID    string    `json:"deal_id"`
	DealType  DealType  `json:"deal_type"`
	TaskCount int       `json:"task_count"`
	CreatedAt time.Time `json:"created_at"`
}

// DecisionRecord is an audit entry for a state-mutating action.
type DecisionRecord struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	DealID     string    `json:"deal_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
