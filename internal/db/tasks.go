package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/trellis/pkg/models"
)

const taskColumns = `
	t.id, t.module_id, t.title, t.description, t.status, t.priority, t.progress, t.deadline,
	t.created_at, t.updated_at, m.name AS module_name
`

// CreateTask inserts a new task into the database.
// If t.ID is empty, a new UUID is generated. Tasks start in draft unless a
// status is given.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if err := db.createTask(ctx, db.DB, t); err != nil {
		return err
	}

	db.hook.fire(ctx)
	return nil
}

func (db *DB) createTask(ctx context.Context, exec executor, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.StatusDraft
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := validateDate(t.Deadline); err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, module_id, title, description, status, priority, progress, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		t.ID, t.ModuleID, t.Title, t.Description, t.Status, t.Priority, t.Progress, t.Deadline,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID. Returns nil if it does not exist.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		JOIN modules m ON t.module_id = m.id
		WHERE t.id = ?
	`
	tasks, err := db.queryTasks(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

// ListTasks returns tasks, optionally filtered by module or status. The
// order is insertion order, which is the order a board shows within a column.
func (db *DB) ListTasks(ctx context.Context, moduleID *string, status *models.Status) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		JOIN modules m ON t.module_id = m.id
		WHERE 1=1
	`
	var args []any

	if moduleID != nil {
		query += " AND t.module_id = ?"
		args = append(args, *moduleID)
	}

	if status != nil {
		query += " AND t.status = ?"
		args = append(args, *status)
	}

	query += " ORDER BY t.created_at ASC, t.rowid ASC"

	return db.queryTasks(ctx, query, args...)
}

// queryTasks is a helper to execute a query that returns a list of tasks.
func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{}
		err := rows.Scan(
			&t.ID, &t.ModuleID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Progress, &t.Deadline,
			&t.CreatedAt, &t.UpdatedAt, &t.ModuleName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

// UpdateTaskStatus applies a status update to a task and returns the stored
// result. Repeating the current status is accepted.
func (db *DB) UpdateTaskStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Task, error) {
	current, err := db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	progress, err := resolveProgress(u, current.Progress)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `UPDATE tasks SET status = ?, progress = ? WHERE id = ?`, u.Status, progress, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	db.hook.fire(ctx)
	return db.GetTask(ctx, id)
}

// DeleteTask deletes a task by its ID.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	db.hook.fire(ctx)
	return nil
}
