package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"consentd/internal/sentinel"
)

const redisKeyPrefix = "consentd:slot:"

// RedisConfig configures RedisSlots. Zero pool and timeout values keep the
// go-redis defaults.
type RedisConfig struct {
	URL           string
	MaxValueBytes int
	// TTL expires a slot this long after its last write. Zero keeps it until
	// cleared.
	TTL          time.Duration
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisSlots stores each slot as one string key, so a write replaces the
// whole value atomically.
type RedisSlots struct {
	client        *redis.Client
	maxValueBytes int
	ttl           time.Duration
}

// NewRedisSlots connects to cfg.URL and fails when the server does not answer
// a ping.
func NewRedisSlots(ctx context.Context, cfg RedisConfig) (*RedisSlots, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisSlotsFromClient(client, cfg.MaxValueBytes, cfg.TTL), nil
}

// NewRedisSlotsFromClient wraps an existing client. Closing the slots closes
// the client.
func NewRedisSlotsFromClient(client *redis.Client, maxValueBytes int, ttl time.Duration) *RedisSlots {
	return &RedisSlots{client: client, maxValueBytes: maxValueBytes, ttl: ttl}
}

func redisKey(scope, key string) string {
	return redisKeyPrefix + scope + ":" + key
}

func (s *RedisSlots) Get(ctx context.Context, scope, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, redisKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read consent slot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return value, nil
}

func (s *RedisSlots) Set(ctx context.Context, scope, key string, value []byte) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return sentinel.ErrQuotaExceeded
	}
	if err := s.client.Set(ctx, redisKey(scope, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("write consent slot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisSlots) Delete(ctx context.Context, scope, key string) error {
	if err := s.client.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("delete consent slot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisSlots) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSlots) Close() error {
	return s.client.Close()
}

// RegisterMetrics exports connection pool statistics. Values are read from
// the client at scrape time.
func (s *RedisSlots) RegisterMetrics(reg prometheus.Registerer) error {
	stat := func(pick func(*redis.PoolStats) uint32) func() float64 {
		return func() float64 { return float64(pick(s.client.PoolStats())) }
	}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "consentd_redis_pool_total_conns",
			Help: "Connections currently held by the slot pool",
		}, stat(func(p *redis.PoolStats) uint32 { return p.TotalConns })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "consentd_redis_pool_idle_conns",
			Help: "Idle connections in the slot pool",
		}, stat(func(p *redis.PoolStats) uint32 { return p.IdleConns })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "consentd_redis_pool_hits_total",
			Help: "Times a free connection was found in the slot pool",
		}, stat(func(p *redis.PoolStats) uint32 { return p.Hits })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "consentd_redis_pool_misses_total",
			Help: "Times the slot pool had to dial a new connection",
		}, stat(func(p *redis.PoolStats) uint32 { return p.Misses })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "consentd_redis_pool_timeouts_total",
			Help: "Times waiting for a slot pool connection timed out",
		}, stat(func(p *redis.PoolStats) uint32 { return p.Timeouts })),
	}
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
