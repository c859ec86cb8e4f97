// Package cache keeps read-heavy project views (suggestions, triage lists,
// summaries) in Redis. Entries are namespaced by a per-project version
// counter so one INCR invalidates every view of a project.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rd-agent/backend/pkg/logger"
)

var ErrMiss = errors.New("cache miss")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Close() error
}

type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{store: store, ttl: ttl}
}

func (c *Cache) Close() error {
	return c.store.Close()
}

func versionKey(projectID int64) string {
	return fmt.Sprintf("rd:project:%d:version", projectID)
}

// ProjectKey returns the key for view name under the current version of
// the project.
func (c *Cache) ProjectKey(ctx context.Context, projectID int64, name string) (string, error) {
	version := int64(0)
	raw, err := c.store.Get(ctx, versionKey(projectID))
	switch {
	case errors.Is(err, ErrMiss):
	case err != nil:
		return "", err
	default:
		if err := json.Unmarshal(raw, &version); err != nil {
			return "", fmt.Errorf("bad version for project %d: %w", projectID, err)
		}
	}
	return fmt.Sprintf("rd:project:%d:v%d:%s", projectID, version, name), nil
}

// InvalidateProject drops every cached view of the project.
func (c *Cache) InvalidateProject(ctx context.Context, projectID int64) error {
	if c == nil {
		return nil
	}
	if _, err := c.store.Incr(ctx, versionKey(projectID)); err != nil {
		return fmt.Errorf("failed to invalidate project %d: %w", projectID, err)
	}
	return nil
}

// Remember returns the cached value of name for the project or computes it
// with fn and stores it. Cache failures are logged and never fail the call.
func Remember[T any](ctx context.Context, c *Cache, projectID int64, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fn(ctx)
	}

	key, err := c.ProjectKey(ctx, projectID, name)
	if err != nil {
		logger.Warn("[Cache] Key lookup failed", "project_id", projectID, "name", name, "err", err)
		return fn(ctx)
	}

	raw, err := c.store.Get(ctx, key)
	if err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		logger.Warn("[Cache] Dropping undecodable entry", "key", key)
	} else if !errors.Is(err, ErrMiss) {
		logger.Warn("[Cache] Get failed", "key", key, "err", err)
	}

	value, err := fn(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		logger.Warn("[Cache] Encode failed", "key", key, "err", err)
		return value, nil
	}
	if err := c.store.Set(ctx, key, encoded, c.ttl); err != nil {
		logger.Warn("[Cache] Set failed", "key", key, "err", err)
	}
	return value, nil
}
