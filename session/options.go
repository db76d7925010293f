package session

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for session stores.
type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleEviction removes in-memory calls that have been silent for idle,
// checking every interval. Stores that expire keys themselves ignore it.
func WithIdleEviction(idle, interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.evictIdle = idle
		m.evictInterval = interval
	}
}

// WithEvictionHook is called with the number of calls removed by each sweep.
func WithEvictionHook(fn func(evicted int)) ManagerOption {
	return func(m *Manager) {
		m.onEvict = fn
	}
}
