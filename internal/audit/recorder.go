// Package audit writes decision records for state-mutating checklist actions.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/fentz26/dealflow/internal/models"
)

// Writer persists decision records.
type Writer interface {
	WriteDecision(ctx context.Context, d *models.DecisionRecord) error
}

// Outcomes recorded on a decision.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder hashes action inputs and appends a decision record per action.
type Recorder struct {
	w   Writer
	log *slog.Logger
}

// NewRecorder creates a recorder on top of w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w, log: slog.Default().With("component", "audit")}
}

// Entry describes one action to record.
type Entry struct {
	Action  string
	Inputs  any
	Err     error
	DealID  string
	TaskID  string
	Details string
}

// Record writes a decision for e. Audit failures are logged and never
// fail the action being audited.
func (r *Recorder) Record(ctx context.Context, e Entry) *models.DecisionRecord {
	d := &models.DecisionRecord{
		Action:     e.Action,
		InputsHash: HashInputs(e.Inputs),
		Outcome:    OutcomeSuccess,
		DealID:     e.DealID,
		TaskID:     e.TaskID,
		Details:    e.Details,
	}
	if e.Err != nil {
		d.Outcome = OutcomeError
		if d.Details == "" {
			d.Details = e.Err.Error()
		}
	}
	if err := r.w.WriteDecision(ctx, d); err != nil {
		r.log.Warn("write decision", "action", e.Action, "deal_id", e.DealID, "err", err)
		return nil
	}
	return d
}

// HashInputs returns the hex SHA-256 of the JSON encoding of inputs.
func HashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
