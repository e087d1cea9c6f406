package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/trellis/pkg/models"
)

// CreateOrganization inserts a new organization.
// If o.ID is empty, a new UUID is generated.
func (db *DB) CreateOrganization(ctx context.Context, o *models.Organization) error {
	if err := db.createOrganization(ctx, db.DB, o); err != nil {
		return err
	}

	db.hook.fire(ctx)
	return nil
}

func (db *DB) createOrganization(ctx context.Context, exec executor, o *models.Organization) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	query := `
		INSERT INTO organizations (id, name)
		VALUES (?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query, o.ID, o.Name).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganizationByName returns nil if no organization has the given name.
func (db *DB) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	o := &models.Organization{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations WHERE name = ?`, name,
	).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return o, nil
}

func (db *DB) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		o := &models.Organization{}
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orgs, nil
}

// CreateProject inserts a new project under p.OrganizationID.
func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	if err := db.createProject(ctx, db.DB, p); err != nil {
		return err
	}

	db.hook.fire(ctx)
	return nil
}

func (db *DB) createProject(ctx context.Context, exec executor, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO projects (id, organization_id, name, description)
		VALUES (?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query, p.ID, p.OrganizationID, p.Name, p.Description).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

const projectColumns = `
	p.id, p.organization_id, p.name, p.description, p.created_at, p.updated_at,
	o.name AS organization_name
`

// GetProject retrieves a project by its ID. Returns nil if it does not exist.
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects p
		JOIN organizations o ON p.organization_id = o.id
		WHERE p.id = ?
	`
	projects, err := db.queryProjects(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return projects[0], nil
}

// ListProjects returns projects, optionally restricted to one organization.
func (db *DB) ListProjects(ctx context.Context, organizationID *string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects p
		JOIN organizations o ON p.organization_id = o.id
		WHERE 1=1
	`
	var args []any
	if organizationID != nil {
		query += " AND p.organization_id = ?"
		args = append(args, *organizationID)
	}
	query += " ORDER BY o.name ASC, p.name ASC"

	return db.queryProjects(ctx, query, args...)
}

func (db *DB) queryProjects(ctx context.Context, query string, args ...any) ([]*models.Project, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt,
			&p.OrganizationName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return projects, nil
}
