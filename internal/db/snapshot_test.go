package db

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldi/trellis/pkg/models"
)

func readSnapshotLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open snapshot file: %v", err)
	}
	defer file.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Failed to unmarshal line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Scanner error: %v", err)
	}
	return records
}

func TestExportSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, _, module := seedModule(t, db)

	task := &models.Task{ModuleID: module.ID, Title: "Snapshot me", Status: models.StatusPending, Progress: 10}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	snapshotPath := filepath.Join(t.TempDir(), "nested", "snapshot.jsonl")
	if err := db.ExportSnapshot(ctx, snapshotPath); err != nil {
		t.Fatalf("Failed to export snapshot: %v", err)
	}

	records := readSnapshotLines(t, snapshotPath)
	wantTypes := []string{"meta", "organization", "project", "module", "task"}
	if len(records) != len(wantTypes) {
		t.Fatalf("Expected %d lines, got %d", len(wantTypes), len(records))
	}
	for i, want := range wantTypes {
		if records[i]["record_type"] != want {
			t.Errorf("Line %d: expected record_type %s, got %v", i, want, records[i]["record_type"])
		}
	}

	taskRec := records[4]
	if taskRec["id"] != task.ID || taskRec["title"] != "Snapshot me" || taskRec["status"] != "pending" {
		t.Errorf("Unexpected task record: %v", taskRec)
	}

	// No temp files may be left next to the snapshot.
	entries, err := os.ReadDir(filepath.Dir(snapshotPath))
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "snapshot-") {
			t.Errorf("Leftover temp file %s", e.Name())
		}
	}
}

func TestImportSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestDB(t)
	_, project, module := seedModule(t, src)

	done := &models.Module{
		ProjectID:   project.ID,
		Name:        "Legacy",
		Status:      models.StatusCompleted,
		Progress:    100,
		CompletedAt: strPtr("2026-09-30"),
	}
	if err := src.CreateModule(ctx, done); err != nil {
		t.Fatalf("Failed to create module: %v", err)
	}
	for _, title := range []string{"one", "two", "three"} {
		if err := src.CreateTask(ctx, &models.Task{ModuleID: module.ID, Title: title, Status: models.StatusInReview}); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	snapshotPath := filepath.Join(t.TempDir(), "snapshot.jsonl")
	if err := src.ExportSnapshot(ctx, snapshotPath); err != nil {
		t.Fatalf("Failed to export snapshot: %v", err)
	}

	dst := newTestDB(t)
	if err := dst.ImportSnapshot(ctx, snapshotPath); err != nil {
		t.Fatalf("Failed to import snapshot: %v", err)
	}
	// Importing twice must not duplicate anything.
	if err := dst.ImportSnapshot(ctx, snapshotPath); err != nil {
		t.Fatalf("Failed to re-import snapshot: %v", err)
	}

	counts, err := dst.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts["modules"] != 2 || counts["tasks"] != 3 {
		t.Errorf("Unexpected counts after import: %v", counts)
	}

	tasks, err := dst.ListTasks(ctx, &module.ID, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	for i, want := range []string{"one", "two", "three"} {
		if tasks[i].Title != want || tasks[i].Status != models.StatusInReview {
			t.Errorf("Task %d: expected %s/in_review, got %s/%s", i, want, tasks[i].Title, tasks[i].Status)
		}
	}

	legacy, err := dst.GetModule(ctx, done.ID)
	if err != nil || legacy == nil {
		t.Fatalf("Failed to get imported module: %v", err)
	}
	if legacy.CompletedAt == nil || *legacy.CompletedAt != "2026-09-30" {
		t.Errorf("Expected completed_at to survive import, got %v", legacy.CompletedAt)
	}
}

func TestImportSnapshotRejectsUnknownRecord(t *testing.T) {
	db := newTestDB(t)
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte(`{"record_type":"feature","name":"x"}`+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := db.ImportSnapshot(context.Background(), path); err == nil {
		t.Fatal("Expected error for unknown record type")
	}
}
