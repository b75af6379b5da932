package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, userID string, draft domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, userID string, taskID int64, patch domain.Patch) (domain.Task, error)
	DeleteTask(ctx context.Context, userID string, taskID int64) error
	ReorderTasks(ctx context.Context, userID string, ids []int64) ([]domain.Task, error)
	Ping(ctx context.Context) error
}

// Cache wraps a Store with a Redis read-through cache for the per-user task
// list. Every mutation goes to the backing store first and then invalidates
// the cached list; a reorder re-primes it, since the store already returns
// the fresh authoritative ordering.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if tasks, ok := c.loadTasks(ctx, userID); ok {
		return tasks, nil
	}
	tasks, err := c.base.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.storeTasks(ctx, userID, tasks)
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, userID string, draft domain.Draft) (domain.Task, error) {
	task, err := c.base.CreateTask(ctx, userID, draft)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, userID)
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, userID string, taskID int64, patch domain.Patch) (domain.Task, error) {
	task, err := c.base.UpdateTask(ctx, userID, taskID, patch)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, userID)
	return task, nil
}

func (c *Cache) DeleteTask(ctx context.Context, userID string, taskID int64) error {
	if err := c.base.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) ReorderTasks(ctx context.Context, userID string, ids []int64) ([]domain.Task, error) {
	tasks, err := c.base.ReorderTasks(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	c.storeTasks(ctx, userID, tasks)
	return tasks, nil
}

func (c *Cache) Ping(ctx context.Context) error { return c.base.Ping(ctx) }

func (c *Cache) loadTasks(ctx context.Context, userID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, userID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(userID)).Result()
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}
