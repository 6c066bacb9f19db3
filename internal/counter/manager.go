package counter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/omniflow/quotad/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// ConfigProvider supplies the latest fast-store settings snapshot.
type ConfigProvider func() config.RedisConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisSettings struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager routes counter operations to Redis when configured and healthy,
// and to the in-memory store otherwise. Writes always land somewhere;
// reads report ErrUnavailable while Redis is configured but unreachable so
// callers can fall back to the durable store instead of a cold local map.
type Manager struct {
	provider       ConfigProvider
	nowFn          func() time.Time
	memory         *MemoryStore
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisStore     *RedisStore
	redisCfg       redisSettings
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider ConfigProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() config.RedisConfig { return config.RedisConfig{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memory:         NewMemoryStore(nowFn),
		newRedisClient: newRedisClient,
	}
}

// IncrBy adds n to the counter using the best available backend and returns
// the post-increment value.
func (m *Manager) IncrBy(ctx context.Context, key string, n int64, expireAt time.Time) (int64, error) {
	if m == nil || key == "" {
		return 0, ErrUnavailable
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()

	if cfg.Enabled {
		if store := m.redisIfHealthy(ctx, cfg, now); store != nil {
			value, errIncr := store.IncrBy(ctx, key, n, expireAt)
			if errIncr == nil {
				return value, nil
			}
			m.tripBreaker(errIncr, now)
		}
	}
	return m.memory.IncrBy(ctx, key, n, expireAt)
}

// Get returns the current counter value. While Redis is configured but
// unreachable it returns ErrUnavailable rather than a cold local value.
func (m *Manager) Get(ctx context.Context, key string) (int64, error) {
	if m == nil || key == "" {
		return 0, ErrUnavailable
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()

	if !cfg.Enabled {
		return m.memory.Get(ctx, key)
	}
	store := m.redisIfHealthy(ctx, cfg, now)
	if store == nil {
		return 0, ErrUnavailable
	}
	value, errGet := store.Get(ctx, key)
	if errGet != nil {
		m.tripBreaker(errGet, now)
		return 0, ErrUnavailable
	}
	return value, nil
}

func (m *Manager) redisIfHealthy(ctx context.Context, cfg config.RedisConfig, now time.Time) *RedisStore {
	if m.isBreakerActive(now) {
		return nil
	}
	store, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return nil
	}
	return store
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil || m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("counter: redis unavailable, using fallback")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("counter: missing redis address")
	}

	nextCfg := redisSettings{
		addr:     addr,
		password: strings.TrimSpace(cfg.Password),
		prefix:   strings.TrimSpace(cfg.Prefix),
		db:       cfg.DB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisStore != nil && m.redisCfg == nextCfg {
		return m.redisStore, nil
	}
	if m.redisStore != nil {
		_ = m.redisStore.client.Close()
		m.redisStore = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisStore = NewRedisStore(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisStore, nil
}
