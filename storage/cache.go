package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	LoadTasks(ctx context.Context, userID, projectID string) ([]domain.Task, error)
	LoadSubtasks(ctx context.Context, userID, projectID string) ([]domain.Subtask, error)
	LoadColumns(ctx context.Context, userID, projectID string) ([]domain.Column, error)
	SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error
	SaveColumn(ctx context.Context, userID string, column domain.Column) error
	SaveColumns(ctx context.Context, userID string, columns []domain.Column) error
	PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error
}

// Cache wraps a Storage instance with Redis-backed caching for read
// operations. Writes evict the affected keys so the next read repopulates.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

// Ping checks backend health when the wrapped storage supports it.
func (c *Cache) Ping(ctx context.Context) error {
	if p, ok := c.base.(interface{ Ping(ctx context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *Cache) LoadTasks(ctx context.Context, userID, projectID string) ([]domain.Task, error) {
	key := tasksCacheKey(userID, projectID)
	var tasks []domain.Task
	if c.loadCached(ctx, key, &tasks) {
		return tasks, nil
	}

	tasks, err := c.base.LoadTasks(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, tasks)
	return tasks, nil
}

func (c *Cache) LoadSubtasks(ctx context.Context, userID, projectID string) ([]domain.Subtask, error) {
	key := subtasksCacheKey(userID, projectID)
	var subtasks []domain.Subtask
	if c.loadCached(ctx, key, &subtasks) {
		return subtasks, nil
	}

	subtasks, err := c.base.LoadSubtasks(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, subtasks)
	return subtasks, nil
}

func (c *Cache) LoadColumns(ctx context.Context, userID, projectID string) ([]domain.Column, error) {
	key := columnsCacheKey(userID, projectID)
	var columns []domain.Column
	if c.loadCached(ctx, key, &columns) {
		return columns, nil
	}

	columns, err := c.base.LoadColumns(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, columns)
	return columns, nil
}

func (c *Cache) SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error {
	if err := c.base.SaveTasks(ctx, userID, tasks); err != nil {
		return err
	}

	projects := map[string]struct{}{}
	for _, t := range tasks {
		projects[t.ProjectID] = struct{}{}
	}
	for projectID := range projects {
		c.evict(ctx, tasksCacheKey(userID, projectID))
	}
	return nil
}

func (c *Cache) SaveColumn(ctx context.Context, userID string, column domain.Column) error {
	if err := c.base.SaveColumn(ctx, userID, column); err != nil {
		return err
	}

	c.evict(ctx, columnsCacheKey(userID, column.ProjectID))
	return nil
}

func (c *Cache) SaveColumns(ctx context.Context, userID string, columns []domain.Column) error {
	if err := c.base.SaveColumns(ctx, userID, columns); err != nil {
		return err
	}

	projects := map[string]struct{}{}
	for _, col := range columns {
		projects[col.ProjectID] = struct{}{}
	}
	for projectID := range projects {
		c.evict(ctx, columnsCacheKey(userID, projectID))
	}
	return nil
}

// PublishEvents is a pass-through; events do not change the board state the
// cache holds.
func (c *Cache) PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error {
	return c.base.PublishEvents(ctx, userID, events)
}

func (c *Cache) loadCached(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func tasksCacheKey(userID, projectID string) string {
	return "tasks:" + userID + ":" + projectID
}

func subtasksCacheKey(userID, projectID string) string {
	return "subtasks:" + userID + ":" + projectID
}

func columnsCacheKey(userID, projectID string) string {
	return "columns:" + userID + ":" + projectID
}
