package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	internalsettings "github.com/lmslight/lms-core/internal/settings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager selects a limiter backend and enforces rate limits.
// Redis failures fall back to the in-memory registry for redisBreakerDuration.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memoryLimiter  *MemoryLimiter
	newRedisClient RedisClientFactory
	observer       Observer
	mu             sync.Mutex
	redisLimiter   *RedisLimiter
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = DefaultSettingsConfig
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
		memoryLimiter:  NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// SetObserver registers a decision observer.
func (m *Manager) SetObserver(observer Observer) {
	m.mu.Lock()
	m.observer = observer
	m.mu.Unlock()
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.nowFn()
}

// Policies returns the current policy set.
func (m *Manager) Policies() Policies {
	return m.settings().Policies
}

// Check consumes one unit of subject's budget for action when the window has room.
func (m *Manager) Check(ctx context.Context, subject, action string, policy Policy) (Result, error) {
	key, errKey := BuildKey(subject, action)
	if errKey != nil {
		return Result{}, errKey
	}
	if errValidate := policy.Validate(); errValidate != nil {
		return Result{}, errValidate
	}
	now := m.nowFn()

	result, ok := m.allowRedis(ctx, key, policy, now)
	if !ok {
		var errAllow error
		result, errAllow = m.memoryLimiter.Allow(ctx, key, policy, now)
		if errAllow != nil {
			return Result{}, errAllow
		}
	}
	m.observe(action, result.Allowed)
	return result, nil
}

func (m *Manager) allowRedis(ctx context.Context, key string, policy Policy, now time.Time) (Result, bool) {
	limiter := m.activeRedis(ctx, now)
	if limiter == nil {
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, policy, now)
	if errAllow != nil {
		m.tripBreaker(errAllow, now)
		return Result{}, false
	}
	return result, true
}

// Remaining reports the budget left for subject and action without consuming it.
func (m *Manager) Remaining(ctx context.Context, subject, action string, limit int) (int, error) {
	key, errKey := BuildKey(subject, action)
	if errKey != nil {
		return 0, errKey
	}
	if limit <= 0 {
		return 0, ErrInvalidArgument
	}
	now := m.nowFn()
	if limiter := m.activeRedis(ctx, now); limiter != nil {
		remaining, errRemaining := limiter.Remaining(ctx, key, limit, now)
		if errRemaining == nil {
			return remaining, nil
		}
		m.tripBreaker(errRemaining, now)
	}
	return m.memoryLimiter.Remaining(ctx, key, limit, now)
}

// Status returns the live counter for subject and action, or nil when there is none.
func (m *Manager) Status(ctx context.Context, subject, action string) (*Status, error) {
	key, errKey := BuildKey(subject, action)
	if errKey != nil {
		return nil, errKey
	}
	now := m.nowFn()
	if limiter := m.activeRedis(ctx, now); limiter != nil {
		status, errStatus := limiter.Status(ctx, key, now)
		if errStatus == nil {
			return status, nil
		}
		m.tripBreaker(errStatus, now)
	}
	return m.memoryLimiter.Status(ctx, key, now)
}

// Reset drops the counter for subject and action.
func (m *Manager) Reset(ctx context.Context, subject, action string) error {
	key, errKey := BuildKey(subject, action)
	if errKey != nil {
		return errKey
	}
	now := m.nowFn()
	if limiter := m.activeRedis(ctx, now); limiter != nil {
		if errReset := limiter.Reset(ctx, key); errReset != nil {
			m.tripBreaker(errReset, now)
		}
	}
	return m.memoryLimiter.Reset(ctx, key)
}

// Sweep reclaims expired in-memory counters. Redis expires its own keys.
func (m *Manager) Sweep(now time.Time) int {
	return m.memoryLimiter.Sweep(now)
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLimiter == nil {
		return nil
	}
	errClose := m.redisLimiter.Close()
	m.redisLimiter = nil
	return errClose
}

func (m *Manager) settings() SettingsConfig {
	return m.provider().Normalize()
}

func (m *Manager) observe(action string, allowed bool) {
	m.mu.Lock()
	observer := m.observer
	m.mu.Unlock()
	if observer != nil {
		observer.ObserveDecision(action, allowed)
	}
}

// activeRedis returns the Redis limiter when configured and healthy.
func (m *Manager) activeRedis(ctx context.Context, now time.Time) *RedisLimiter {
	cfg := m.settings()
	if cfg.Backend != internalsettings.BackendRedis {
		return nil
	}
	if m.isBreakerActive(now) {
		return nil
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return nil
	}
	return limiter
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
	if err == nil || errors.Is(err, ErrInvalidArgument) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: cfg.RedisPassword,
		prefix:   cfg.RedisPrefix,
		db:       cfg.RedisDB,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil && m.redisCfg == nextCfg {
		return m.redisLimiter, nil
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.Close()
		m.redisLimiter = nil
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
	m.redisLimiter = NewRedisLimiter(client, nextCfg.prefix)
	m.redisCfg = nextCfg
	return m.redisLimiter, nil
}
