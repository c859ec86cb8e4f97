package cache

import (
	"context"
	"time"

	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/logger"
)

// NewFromEnv uses Redis when REDIS_ADDR is set and an in-process store
// otherwise. The in-process store does not see invalidations made by other
// processes, so it only suits single-process setups and tests.
func NewFromEnv(ctx context.Context) (*Cache, error) {
	ttl := util.GetEnvSeconds("CACHE_TTL_SEC", 5*time.Minute)

	addr := util.GetEnv("REDIS_ADDR")
	if addr == "" {
		logger.Warn("[Cache] REDIS_ADDR not set, using in-memory cache")
		return New(NewMemoryStore(util.GetEnvInt("CACHE_MEMORY_ENTRIES", defaultMemoryEntries), ttl), ttl), nil
	}

	store, err := NewRedisStore(ctx, addr, util.GetEnv("REDIS_PASSWORD"), util.GetEnvInt("REDIS_DB", 0))
	if err != nil {
		return nil, err
	}
	return New(store, ttl), nil
}
