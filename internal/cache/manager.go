package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/kensaku/internal/config"
	"go.uber.org/zap"
)

// Manager is the two-tier cache: a byte-bounded in-process LRU tier in front
// of a TTL-honoring backing tier (Redis when reachable, an in-process bounded
// dictionary otherwise). Values are serialized to JSON on Set and decoded
// into caller-owned destinations on Get, so cached state is never shared by
// reference with callers.
//
// Expiry is deliberately asymmetric: the backing tier's TTL is authoritative,
// while the local tier evicts only under memory pressure. A locally cached
// entry can therefore outlive its backing TTL until evicted; the local tier
// is a hot-data buffer, not a second TTL owner.
type Manager struct {
	local      *localTier
	backing    backingTier
	defaultTTL time.Duration
	logger     *zap.Logger
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger *zap.Logger
}

// WithLogger sets a logger for fallback and degradation events.
func WithLogger(l *zap.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// NewManager creates a cache manager. When cfg.Redis.Addr is set, Redis is
// probed with PING; an unreachable service is logged and the in-process
// fallback tier takes over — never a construction failure.
func NewManager(ctx context.Context, cfg config.CacheConfig, opts ...Option) (*Manager, error) {
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	local, err := newLocalTier(cfg.LocalMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("create local cache tier: %w", err)
	}

	backing := backingTier(newFallbackTier())
	if cfg.Redis.Addr != "" {
		pingTimeout := time.Duration(cfg.Redis.PingTimeoutSeconds) * time.Second
		rt, err := newRedisTier(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, pingTimeout)
		if err != nil {
			o.logger.Warn("redis unreachable, using in-process fallback cache tier",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			backing = rt
		}
	}

	return &Manager{
		local:      local,
		backing:    backing,
		defaultTTL: time.Duration(cfg.DefaultTTLSeconds) * time.Second,
		logger:     o.logger,
	}, nil
}

// Get looks up the cached value for (op, params) and decodes it into dest.
// The local tier is checked first; a backing hit repopulates the local tier.
// Returns false on miss. Backing-tier errors degrade to a miss and are
// logged, never surfaced.
func (m *Manager) Get(ctx context.Context, op string, params, dest interface{}) (bool, error) {
	key, err := Key(op, params)
	if err != nil {
		return false, err
	}
	if raw, ok := m.local.get(key); ok {
		return true, json.Unmarshal(raw, dest)
	}
	raw, ok, err := m.backing.get(ctx, key)
	if err != nil {
		m.logger.Debug("backing cache get failed", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	if !ok {
		return false, nil
	}
	m.local.set(key, raw)
	return true, json.Unmarshal(raw, dest)
}

// Set stores value for (op, params) in both tiers. A non-positive ttl uses
// the configured default. Backing-tier errors are logged, never surfaced;
// the local tier always receives the entry.
func (m *Manager) Set(ctx context.Context, op string, params, value interface{}, ttl time.Duration) {
	key, err := Key(op, params)
	if err != nil {
		m.logger.Debug("cache key derivation failed", zap.String("op", op), zap.Error(err))
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.Debug("cache value marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.local.set(key, raw)
	if err := m.backing.set(ctx, key, raw, ttl); err != nil {
		m.logger.Debug("backing cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes all entries whose key contains pattern from both tiers.
// An empty pattern clears everything.
func (m *Manager) Invalidate(ctx context.Context, pattern string) error {
	m.local.removeMatching(pattern)
	if err := m.backing.invalidate(ctx, pattern); err != nil {
		m.logger.Warn("backing cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// Stats reports local-tier usage and the active backing tier.
type Stats struct {
	LocalEntries int
	LocalBytes   int64
	BackingTier  string
}

// Stats returns current cache statistics.
func (m *Manager) Stats() Stats {
	entries, bytes := m.local.stats()
	return Stats{LocalEntries: entries, LocalBytes: bytes, BackingTier: m.backing.name()}
}

// Close releases the backing tier's resources.
func (m *Manager) Close() error {
	return m.backing.close()
}
