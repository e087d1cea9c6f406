package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ldi/trellis/pkg/models"
)

// countingStore counts list calls that reach the underlying store.
type countingStore struct {
	Store
	tasks   int
	modules int
}

func (s *countingStore) ListTasks(ctx context.Context, moduleID *string, status *models.Status) ([]*models.Task, error) {
	s.tasks++
	return s.Store.ListTasks(ctx, moduleID, status)
}

func (s *countingStore) ListModules(ctx context.Context, projectID *string) ([]*models.Module, error) {
	s.modules++
	return s.Store.ListModules(ctx, projectID)
}

// gatedStore holds the first ListTasks call after it has read the store
// until release is closed.
type gatedStore struct {
	Store
	calls   atomic.Int32
	read    chan struct{}
	release chan struct{}
}

func (s *gatedStore) ListTasks(ctx context.Context, moduleID *string, status *models.Status) ([]*models.Task, error) {
	tasks, err := s.Store.ListTasks(ctx, moduleID, status)
	if s.calls.Add(1) == 1 {
		close(s.read)
		<-s.release
	}
	return tasks, err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	f := newFixture(t)
	mr, client := newRedis(t)
	store := &countingStore{Store: f.db}
	cache := NewCache(store, client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tasks, err := cache.ListTasks(ctx, &f.module.ID, nil)
		if err != nil {
			t.Fatalf("list tasks: %v", err)
		}
		if len(tasks) != 1 || tasks[0].ID != f.task.ID {
			t.Fatalf("unexpected tasks %+v", tasks)
		}
	}
	if store.tasks != 1 {
		t.Errorf("expected 1 call to the store, got %d", store.tasks)
	}
	if ttl := mr.TTL(tasksKey(f.module.ID)); ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected TTL: %v", ttl)
	}

	// Filtered lists bypass the cache.
	pending := models.StatusPending
	if _, err := cache.ListTasks(ctx, &f.module.ID, &pending); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if store.tasks != 2 {
		t.Errorf("expected filtered list to reach the store, got %d calls", store.tasks)
	}
}

func TestCacheEvictedOnStatusUpdate(t *testing.T) {
	f := newFixture(t)
	mr, client := newRedis(t)
	store := &countingStore{Store: f.db}
	h := NewServer(f.db, WithCache(NewCache(store, client, time.Minute))).Handler()

	tasksPath := "/api/modules/" + f.module.ID + "/tasks"
	do(t, h, http.MethodGet, tasksPath, "")
	if !mr.Exists(tasksKey(f.module.ID)) {
		t.Fatalf("expected tasks list to be cached")
	}

	rec := do(t, h, http.MethodPatch, "/api/tasks/"+f.task.ID+"/status", `{"status":"in_review"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if mr.Exists(tasksKey(f.module.ID)) {
		t.Errorf("expected tasks list to be evicted")
	}

	tasks := decode[[]models.Task](t, do(t, h, http.MethodGet, tasksPath, ""))
	if len(tasks) != 1 || tasks[0].Status != models.StatusInReview {
		t.Errorf("expected refetch to see in_review, got %+v", tasks)
	}
	if store.tasks != 2 {
		t.Errorf("expected 2 store calls, got %d", store.tasks)
	}

	modulesPath := "/api/projects/" + f.project.ID + "/modules"
	do(t, h, http.MethodGet, modulesPath, "")
	do(t, h, http.MethodPatch, "/api/modules/"+f.module.ID+"/status", `{"status":"blocked"}`)
	if mr.Exists(modulesKey(f.project.ID)) {
		t.Errorf("expected modules list to be evicted")
	}
}

func TestCacheRejectedUpdateKeepsEntry(t *testing.T) {
	f := newFixture(t)
	mr, client := newRedis(t)
	cache := NewCache(f.db, client, time.Minute)
	ctx := context.Background()

	if _, err := cache.ListTasks(ctx, &f.module.ID, nil); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if _, err := cache.UpdateTaskStatus(ctx, f.task.ID, models.StatusUpdate{Status: "archived"}); err == nil {
		t.Fatal("expected rejection")
	}
	if !mr.Exists(tasksKey(f.module.ID)) {
		t.Errorf("a rejected update must not evict")
	}
}

func TestCacheSurvivesRedisOutage(t *testing.T) {
	f := newFixture(t)
	mr, client := newRedis(t)
	cache := NewCache(f.db, client, time.Minute)
	mr.Close()

	tasks, err := cache.ListTasks(context.Background(), &f.module.ID, nil)
	if err != nil {
		t.Fatalf("expected fallback to the store, got %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("expected 1 task, got %d", len(tasks))
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	f := newFixture(t)
	mr, client := newRedis(t)
	cache := NewCache(f.db, client, time.Minute)

	if err := mr.Set(organizationsKey(), "{not json"); err != nil {
		t.Fatalf("seed redis: %v", err)
	}
	orgs, err := cache.ListOrganizations(context.Background())
	if err != nil {
		t.Fatalf("list organizations: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Name != "Acme" {
		t.Errorf("unexpected organizations %+v", orgs)
	}
}

func TestCacheFillRacingUpdateIsDropped(t *testing.T) {
	f := newFixture(t)
	_, client := newRedis(t)
	store := &gatedStore{Store: f.db, read: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(store, client, time.Minute)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := cache.ListTasks(ctx, &f.module.ID, nil)
		done <- err
	}()
	<-store.read

	if _, err := cache.UpdateTaskStatus(ctx, f.task.ID, models.StatusUpdate{Status: models.StatusInProgress}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("list tasks: %v", err)
	}

	tasks, err := cache.ListTasks(ctx, &f.module.ID, nil)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != models.StatusInProgress {
		t.Errorf("expected the list after the update to see in_progress, got %+v", tasks)
	}
}
