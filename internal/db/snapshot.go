package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/trellis/pkg/models"
)

const snapshotVersion = 1

type snapshotMeta struct {
	RecordType string `json:"record_type"`
	Version    int    `json:"version"`
}

type organizationRecord struct {
	RecordType string `json:"record_type"`
	*models.Organization
}

type projectRecord struct {
	RecordType string `json:"record_type"`
	*models.Project
}

type moduleRecord struct {
	RecordType string `json:"record_type"`
	*models.Module
}

type taskRecord struct {
	RecordType string `json:"record_type"`
	*models.Task
}

// EnableAutoSnapshot sets up a hook that exports a snapshot to path after
// every successful write. Export failures are passed to onError, if set,
// and never fail the write itself.
func (db *DB) EnableAutoSnapshot(path string, onError func(error)) {
	db.SetOnChange(func(ctx context.Context) {
		if err := db.ExportSnapshot(ctx, path); err != nil && onError != nil {
			onError(err)
		}
	})
}

// ExportSnapshot writes every organization, project, module and task to
// path as JSON lines. The file is replaced atomically.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	lines, err := db.snapshotLines(ctx)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	for _, line := range lines {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (db *DB) snapshotLines(ctx context.Context) ([][]byte, error) {
	var records []any
	records = append(records, snapshotMeta{RecordType: "meta", Version: snapshotVersion})

	orgs, err := db.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		records = append(records, organizationRecord{RecordType: "organization", Organization: o})
	}

	projects, err := db.ListProjects(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		records = append(records, projectRecord{RecordType: "project", Project: p})
	}

	modules, err := db.ListModules(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		records = append(records, moduleRecord{RecordType: "module", Module: m})
	}

	tasks, err := db.ListTasks(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		records = append(records, taskRecord{RecordType: "task", Task: t})
	}

	lines := make([][]byte, 0, len(records))
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot record: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ImportSnapshot reads a JSONL snapshot and upserts its records by id in a
// single transaction. Parents must precede children in the file, which is
// the order ExportSnapshot writes.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return fmt.Errorf("line %d: failed to unmarshal base record: %w", lineNo, err)
		}

		switch base.RecordType {
		case "meta":
			var meta snapshotMeta
			if err := json.Unmarshal(line, &meta); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal meta: %w", lineNo, err)
			}
			if meta.Version > snapshotVersion {
				return fmt.Errorf("unsupported snapshot version %d", meta.Version)
			}

		case "organization":
			var o models.Organization
			if err := json.Unmarshal(line, &o); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal organization: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO organizations (id, name, created_at, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
				o.ID, o.Name, o.CreatedAt, o.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to sync organization %s: %w", o.Name, err)
			}

		case "project":
			var p models.Project
			if err := json.Unmarshal(line, &p); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal project: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO projects (id, organization_id, name, description, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					organization_id = excluded.organization_id,
					name = excluded.name,
					description = excluded.description`,
				p.ID, p.OrganizationID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to sync project %s: %w", p.Name, err)
			}

		case "module":
			var m models.Module
			if err := json.Unmarshal(line, &m); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal module: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO modules (
					id, project_id, name, description, status, priority, progress,
					deadline, completed_at, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					project_id = excluded.project_id,
					name = excluded.name,
					description = excluded.description,
					status = excluded.status,
					priority = excluded.priority,
					progress = excluded.progress,
					deadline = excluded.deadline,
					completed_at = excluded.completed_at`,
				m.ID, m.ProjectID, m.Name, m.Description, m.Status, m.Priority, m.Progress,
				m.Deadline, m.CompletedAt, m.CreatedAt, m.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to sync module %s: %w", m.Name, err)
			}

		case "task":
			var t models.Task
			if err := json.Unmarshal(line, &t); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal task: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tasks (
					id, module_id, title, description, status, priority, progress,
					deadline, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					module_id = excluded.module_id,
					title = excluded.title,
					description = excluded.description,
					status = excluded.status,
					priority = excluded.priority,
					progress = excluded.progress,
					deadline = excluded.deadline`,
				t.ID, t.ModuleID, t.Title, t.Description, t.Status, t.Priority, t.Progress,
				t.Deadline, t.CreatedAt, t.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to sync task %s: %w", t.Title, err)
			}

		default:
			return fmt.Errorf("line %d: unknown record type %q", lineNo, base.RecordType)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot import: %w", err)
	}

	db.hook.fire(ctx)
	return nil
}
