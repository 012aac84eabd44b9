package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/google/uuid"
)

// WriteDecision appends an audit record, assigning its ID and timestamp
// when unset.
func (s *Store) WriteDecision(ctx context.Context, d *models.DecisionRecord) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO decisions (id, action, inputs_hash, outcome, deal_id, task_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.Action, d.InputsHash, d.Outcome, d.DealID, d.TaskID, d.Details, d.Timestamp,
	)
	if err != nil {
		return storeErr("insert decision", err)
	}
	return nil
}

// ListDecisions returns the newest decisions for a deal, or for all deals
// when dealID is empty.
func (s *Store) ListDecisions(ctx context.Context, dealID string, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, action, inputs_hash, outcome, deal_id, task_id, details, timestamp FROM decisions`
	var args []any
	if dealID != "" {
		query += ` WHERE deal_id = ?`
		args = append(args, dealID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, storeErr("query decisions", err)
	}
	defer rows.Close()

	out := []models.DecisionRecord{}
	for rows.Next() {
		var d models.DecisionRecord
		var deal, task, details sql.NullString
		if err := rows.Scan(&d.ID, &d.Action, &d.InputsHash, &d.Outcome, &deal, &task, &details, &d.Timestamp); err != nil {
			return nil, storeErr("scan decision", err)
		}
		d.DealID = deal.String
		d.TaskID = task.String
		d.Details = details.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate decisions", err)
	}
	return out, nil
}
