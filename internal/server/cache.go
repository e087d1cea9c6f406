package server

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ldi/trellis/pkg/models"
)

const cacheKeyPrefix = "trellis:"

// Cache wraps a Store with a redis read-through cache for the list
// endpoints. A status update evicts the list that contains the updated
// record and bumps that list's generation; a read only fills the cache if the
// generation it saw before reading the store is still current. Redis failures
// fall back to the store and never fail a request.
type Cache struct {
	base  Store
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("server.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	key := organizationsKey()
	var orgs []*models.Organization
	if c.load(ctx, key, &orgs) {
		return orgs, nil
	}
	gen := c.generation(ctx, key)
	orgs, err := c.base.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, gen, orgs)
	return orgs, nil
}

func (c *Cache) ListProjects(ctx context.Context, organizationID *string) ([]*models.Project, error) {
	if organizationID == nil {
		return c.base.ListProjects(ctx, nil)
	}
	key := projectsKey(*organizationID)
	var projects []*models.Project
	if c.load(ctx, key, &projects) {
		return projects, nil
	}
	gen := c.generation(ctx, key)
	projects, err := c.base.ListProjects(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, gen, projects)
	return projects, nil
}

func (c *Cache) ListModules(ctx context.Context, projectID *string) ([]*models.Module, error) {
	if projectID == nil {
		return c.base.ListModules(ctx, nil)
	}
	key := modulesKey(*projectID)
	var modules []*models.Module
	if c.load(ctx, key, &modules) {
		return modules, nil
	}
	gen := c.generation(ctx, key)
	modules, err := c.base.ListModules(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, gen, modules)
	return modules, nil
}

// ListTasks caches only the unfiltered list of one module.
func (c *Cache) ListTasks(ctx context.Context, moduleID *string, status *models.Status) ([]*models.Task, error) {
	if moduleID == nil || status != nil {
		return c.base.ListTasks(ctx, moduleID, status)
	}
	key := tasksKey(*moduleID)
	var tasks []*models.Task
	if c.load(ctx, key, &tasks) {
		return tasks, nil
	}
	gen := c.generation(ctx, key)
	tasks, err := c.base.ListTasks(ctx, moduleID, nil)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, gen, tasks)
	return tasks, nil
}

func (c *Cache) UpdateTaskStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Task, error) {
	task, err := c.base.UpdateTaskStatus(ctx, id, u)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, tasksKey(task.ModuleID))
	return task, nil
}

func (c *Cache) UpdateModuleStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Module, error) {
	module, err := c.base.UpdateModuleStatus(ctx, id, u)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, modulesKey(module.ProjectID))
	return module, nil
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).WithField("key", key).Debug("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

// errStaleGeneration aborts a cache fill that raced with an eviction.
var errStaleGeneration = errors.New("cache generation changed")

// generation returns the current generation of key, or -1 when it cannot be
// read, in which case nothing read afterwards is cached.
func (c *Cache) generation(ctx context.Context, key string) int64 {
	if c.redis == nil {
		return -1
	}
	gen, err := c.redis.Get(ctx, generationKey(key)).Int64()
	switch {
	case err == redis.Nil:
		return 0
	case err != nil:
		log.WithError(err).WithField("key", key).Debug("cache generation read failed")
		return -1
	}
	return gen
}

// store caches value under key if no eviction happened since gen was read.
func (c *Cache) store(ctx context.Context, key string, gen int64, value any) {
	if c.redis == nil || c.ttl == 0 || gen < 0 {
		return
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return
	}
	genKey := generationKey(key)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		log.WithField("key", key).Debug("cache fill skipped, list changed while reading")
	default:
		log.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, key := range keys {
			p.Incr(ctx, generationKey(key))
		}
		p.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("keys", keys).Warn("cache eviction failed")
	}
}

func organizationsKey() string        { return cacheKeyPrefix + "organizations" }
func projectsKey(orgID string) string { return cacheKeyPrefix + "projects:" + orgID }
func modulesKey(projID string) string { return cacheKeyPrefix + "modules:" + projID }
func tasksKey(moduleID string) string { return cacheKeyPrefix + "tasks:" + moduleID }
func generationKey(key string) string   { return key + ":gen" }
