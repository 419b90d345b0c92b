package postgres

import (
	"context"
	"errors"
	"fmt"

	"tileexport/internal/store"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// CreateTask inserts a new task.
func (s *Store) CreateTask(ctx context.Context, tx store.DBTransaction, task *store.Task) error {
	query := `
		INSERT INTO tasks (id, resource_id, version, type, description, status, reason,
			model_path, tileset_filename, parameters, percentage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var executor store.DBTransaction = s.db
	if tx != nil {
		executor = tx
	}

	var params interface{}
	if len(task.Parameters) > 0 {
		params = []byte(task.Parameters)
	}

	_, err := executor.ExecContext(ctx, query,
		task.ID,
		task.ResourceID,
		task.Version,
		task.Type,
		task.Description,
		task.Status,
		task.Reason,
		task.ModelPath,
		task.TilesetFilename,
		params,
		task.Percentage,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicatePath
		}
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns tasks newest first.
func (s *Store) ListTasks(ctx context.Context, statuses []store.TaskStatus, limit int) ([]store.Task, error) {
	if limit <= 0 {
		limit = 100
	}

	args := []interface{}{limit}
	whereClause := ""
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		whereClause = "WHERE status = ANY($2)"
		args = append(args, pq.Array(names))
	}

	query := fmt.Sprintf(`
		SELECT id, resource_id, version, type, description, status, reason,
			model_path, tileset_filename, parameters, percentage, created_at, updated_at
		FROM tasks
		%s
		ORDER BY created_at DESC
		LIMIT $1
	`, whereClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []store.Task
	for rows.Next() {
		var t store.Task
		var params []byte
		if err := rows.Scan(
			&t.ID, &t.ResourceID, &t.Version, &t.Type, &t.Description, &t.Status, &t.Reason,
			&t.ModelPath, &t.TilesetFilename, &params, &t.Percentage, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(params) > 0 {
			t.Parameters = params
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// AdvanceTasks moves the oldest unfinished tasks forward. Rows locked by a
// concurrent advance are skipped.
func (s *Store) AdvanceTasks(ctx context.Context, step float64, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1
	}

	query := `
		UPDATE tasks
		SET percentage = LEAST(percentage + $1, 100),
			status = CASE WHEN percentage + $1 >= 100 THEN $2 ELSE $3 END,
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = ANY($4)
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $5
		)
	`

	active := pq.Array([]string{string(store.TaskStatusPending), string(store.TaskStatusInProgress)})
	res, err := s.db.ExecContext(ctx, query,
		step, store.TaskStatusCompleted, store.TaskStatusInProgress, active, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to advance tasks: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of tasks per status.
func (s *Store) CountByStatus(ctx context.Context) (map[store.TaskStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[store.TaskStatus]int64)
	for rows.Next() {
		var status store.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
