package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/google/uuid"
)

const taskColumns = `id, deal_id, ord, phase, title, description, notes, url, responsible, system, workstream, start_date, due_date, completed_at, status, critical, version, created_at, updated_at`

const insertTaskSQL = `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// prepareTask assigns identity, version and timestamps to a new task.
func prepareTask(t *models.TaskRecord, now time.Time) {
	t.ID = uuid.New().String()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Workstream == "" {
		t.Workstream = models.WorkstreamOther
	}
}

func (s *Store) insertTask(ctx context.Context, ex execer, t *models.TaskRecord) error {
	_, err := ex.ExecContext(ctx, s.rebind(insertTaskSQL),
		t.ID, t.DealID, t.Order, t.Phase, t.Title, t.Description, t.Notes, t.URL,
		t.Responsible, t.System, string(t.Workstream),
		nullTime(t.StartDate), nullTime(t.DueDate), nullTime(t.CompletedAt),
		string(t.Status), t.Critical, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// CreateTask inserts t, filling in its ID, version and timestamps.
func (s *Store) CreateTask(ctx context.Context, t *models.TaskRecord) (string, error) {
	prepareTask(t, time.Now().UTC())
	if err := s.insertTask(ctx, s.db, t); err != nil {
		return "", storeErr("insert task", err)
	}
	return t.ID, nil
}

// CreateTasks inserts all tasks in a single transaction.
func (s *Store) CreateTasks(ctx context.Context, tasks []*models.TaskRecord) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	ids, err := s.insertAll(ctx, tx, tasks)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit transaction", err)
	}
	return ids, nil
}

func (s *Store) insertAll(ctx context.Context, tx *sql.Tx, tasks []*models.TaskRecord) ([]string, error) {
	now := time.Now().UTC()
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		prepareTask(t, now)
		if err := s.insertTask(ctx, tx, t); err != nil {
			return nil, storeErr("insert task", err)
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*models.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("query task", err)
	}
	return t, nil
}

// UpdateTask persists every mutable field of t and bumps its version.
func (s *Store) UpdateTask(ctx context.Context, t *models.TaskRecord, expectedVersion int64) (*models.TaskRecord, error) {
	now := time.Now().UTC()
	query := `UPDATE tasks SET ord = ?, phase = ?, title = ?, description = ?, notes = ?, url = ?,
		responsible = ?, system = ?, workstream = ?, start_date = ?, due_date = ?, completed_at = ?,
		status = ?, critical = ?, version = version + 1, updated_at = ?
		WHERE id = ?`
	args := []any{
		t.Order, t.Phase, t.Title, t.Description, t.Notes, t.URL,
		t.Responsible, t.System, string(t.Workstream),
		nullTime(t.StartDate), nullTime(t.DueDate), nullTime(t.CompletedAt),
		string(t.Status), t.Critical, now, t.ID,
	}
	if expectedVersion != 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}
	query += ` RETURNING version`

	var version int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&version)
	if isNoRows(err) {
		return nil, s.missOrConflict(ctx, t.ID, expectedVersion)
	}
	if err != nil {
		return nil, storeErr("update task", err)
	}

	updated := *t
	updated.Version = version
	updated.UpdatedAt = now
	return &updated, nil
}

// missOrConflict explains why a versioned update touched no row.
func (s *Store) missOrConflict(ctx context.Context, id string, expectedVersion int64) error {
	var version int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT version FROM tasks WHERE id = ?`), id).Scan(&version)
	if isNoRows(err) {
		return fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	if err != nil {
		return storeErr("query task version", err)
	}
	return fmt.Errorf("%w: task %s is at version %d, not %d", models.ErrConflict, id, version, expectedVersion)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return storeErr("delete task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("check rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: task %s", models.ErrNotFound, id)
	}
	return nil
}

// ListTasksForDeal returns a deal's tasks in display order.
func (s *Store) ListTasksForDeal(ctx context.Context, dealID string) ([]models.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE deal_id = ? ORDER BY ord, created_at, id`), dealID)
	if err != nil {
		return nil, storeErr("query tasks", err)
	}
	defer rows.Close()

	tasks := []models.TaskRecord{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scan task", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate tasks", err)
	}
	return tasks, nil
}

// SeedChecklist records the seed for a deal and inserts its tasks in one
// transaction. A deal that already has a seed is left untouched.
func (s *Store) SeedChecklist(ctx context.Context, seed models.ChecklistSeed, tasks []*models.TaskRecord) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT deal_id FROM checklist_seeds WHERE deal_id = ?`), seed.DealID).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: deal %s", models.ErrAlreadyInstantiated, seed.DealID)
	}
	if !isNoRows(err) {
		return nil, storeErr("query seed", err)
	}

	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO checklist_seeds (deal_id, deal_type, task_count, created_at) VALUES (?, ?, ?, ?)`),
		seed.DealID, string(seed.DealType), seed.TaskCount, seed.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: deal %s", models.ErrAlreadyInstantiated, seed.DealID)
		}
		return nil, storeErr("insert seed", err)
	}

	ids, err := s.insertAll(ctx, tx, tasks)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit transaction", err)
	}
	return ids, nil
}

// GetSeed returns the seed record of an instantiated deal.
func (s *Store) GetSeed(ctx context.Context, dealID string) (*models.ChecklistSeed, error) {
	var seed models.ChecklistSeed
	var dt string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT deal_id, deal_type, task_count, created_at FROM checklist_seeds WHERE deal_id = ?`), dealID,
	).Scan(&seed.DealID, &dt, &seed.TaskCount, &seed.CreatedAt)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: no checklist for deal %s", models.ErrNotFound, dealID)
	}
	if err != nil {
		return nil, storeErr("query seed", err)
	}
	seed.DealType = models.DealType(dt)
	return &seed, nil
}

// ListDeals returns every deal that has a seed or at least one task.
func (s *Store) ListDeals(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT deal_id FROM tasks UNION SELECT deal_id FROM checklist_seeds ORDER BY deal_id`)
	if err != nil {
		return nil, storeErr("query deals", err)
	}
	defer rows.Close()

	deals := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan deal", err)
		}
		deals = append(deals, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate deals", err)
	}
	return deals, nil
}

func scanTask(row scanner) (*models.TaskRecord, error) {
	var t models.TaskRecord
	var workstream, status string
	var start, due, completed sql.NullTime
	err := row.Scan(
		&t.ID, &t.DealID, &t.Order, &t.Phase, &t.Title, &t.Description, &t.Notes, &t.URL,
		&t.Responsible, &t.System, &workstream, &start, &due, &completed,
		&status, &t.Critical, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Workstream = models.Workstream(workstream)
	t.Status = models.TaskStatus(status)
	t.StartDate = timePtr(start)
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
