package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/trellis/pkg/models"
)

const moduleColumns = `
	m.id, m.project_id, m.name, m.description, m.status, m.priority, m.progress, m.deadline,
	m.completed_at, m.created_at, m.updated_at, p.name AS project_name
`

// CreateModule inserts a new module under m.ProjectID.
func (db *DB) CreateModule(ctx context.Context, m *models.Module) error {
	if err := db.createModule(ctx, db.DB, m); err != nil {
		return err
	}

	db.hook.fire(ctx)
	return nil
}

func (db *DB) createModule(ctx context.Context, exec executor, m *models.Module) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = models.StatusDraft
	}
	if m.Priority == "" {
		m.Priority = models.PriorityMedium
	}
	if err := validateDate(m.Deadline); err != nil {
		return err
	}
	if err := validateDate(m.CompletedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO modules (id, project_id, name, description, status, priority, progress, deadline, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		m.ID, m.ProjectID, m.Name, m.Description, m.Status, m.Priority, m.Progress, m.Deadline, m.CompletedAt,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}
	return nil
}

// GetModule retrieves a module by its ID. Returns nil if it does not exist.
func (db *DB) GetModule(ctx context.Context, id string) (*models.Module, error) {
	query := `SELECT ` + moduleColumns + `
		FROM modules m
		JOIN projects p ON m.project_id = p.id
		WHERE m.id = ?
	`
	modules, err := db.queryModules(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, nil
	}
	return modules[0], nil
}

// ListModules returns modules in insertion order, optionally restricted to
// one project.
func (db *DB) ListModules(ctx context.Context, projectID *string) ([]*models.Module, error) {
	query := `SELECT ` + moduleColumns + `
		FROM modules m
		JOIN projects p ON m.project_id = p.id
		WHERE 1=1
	`
	var args []any
	if projectID != nil {
		query += " AND m.project_id = ?"
		args = append(args, *projectID)
	}
	query += " ORDER BY m.created_at ASC, m.rowid ASC"

	return db.queryModules(ctx, query, args...)
}

func (db *DB) queryModules(ctx context.Context, query string, args ...any) ([]*models.Module, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	var modules []*models.Module
	for rows.Next() {
		m := &models.Module{}
		err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Name, &m.Description, &m.Status, &m.Priority, &m.Progress, &m.Deadline,
			&m.CompletedAt, &m.CreatedAt, &m.UpdatedAt, &m.ProjectName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return modules, nil
}

// UpdateModuleStatus applies a status update to a module. Entering completed
// keeps any existing completion date unless a new one is given; leaving
// completed clears it.
func (db *DB) UpdateModuleStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Module, error) {
	current, err := db.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("module %s: %w", id, ErrNotFound)
	}

	progress, err := resolveProgress(u, current.Progress)
	if err != nil {
		return nil, err
	}
	if err := validateDate(u.CompletedAt); err != nil {
		return nil, err
	}

	completedAt := current.CompletedAt
	if u.Status != models.StatusCompleted {
		completedAt = nil
	} else if u.CompletedAt != nil {
		completedAt = u.CompletedAt
	}

	_, err = db.ExecContext(ctx,
		`UPDATE modules SET status = ?, progress = ?, completed_at = ? WHERE id = ?`,
		u.Status, progress, completedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update module status: %w", err)
	}

	db.hook.fire(ctx)
	return db.GetModule(ctx, id)
}
