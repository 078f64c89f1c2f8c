package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/domain/kv"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
)

const (
	DefaultFixtureCacheKey = "football_data_highlights_v2"
	DefaultFixtureTTL      = 15 * time.Minute
	DefaultLiveFixtureTTL  = time.Minute

	calendarDateLayout = "2006-01-02"
)

// CacheEntry is the stored envelope. StoredAt is unix milliseconds.
type CacheEntry[T any] struct {
	CalendarDate string `json:"date"`
	StoredAt     int64  `json:"timestamp"`
	Payload      T      `json:"data"`
}

// FreshnessRule reports whether a same-day entry must be treated as stale.
type FreshnessRule struct {
	Name  string
	Stale func(items []fixture.Fixture, storedAt, now time.Time) bool
}

// KickoffRule marks an entry stale once a fixture still waiting for kickoff
// has a kickoff time in the past, so its status flips to live promptly.
func KickoffRule() FreshnessRule {
	return FreshnessRule{
		Name: "smart_kickoff",
		Stale: func(items []fixture.Fixture, _ time.Time, now time.Time) bool {
			for _, item := range items {
				if item.Status.IsPending() && !item.RawDate.IsZero() && item.RawDate.Before(now) {
					return true
				}
			}
			return false
		},
	}
}

// TTLRule uses liveTTL when any fixture is in play or paused, base otherwise.
func TTLRule(base, liveTTL time.Duration) FreshnessRule {
	return FreshnessRule{
		Name: "dynamic_ttl",
		Stale: func(items []fixture.Fixture, storedAt, now time.Time) bool {
			ttl := base
			for _, item := range items {
				if item.Status.IsLive() {
					ttl = liveTTL
					break
				}
			}
			return now.Sub(storedAt) > ttl
		},
	}
}

func DefaultFreshnessRules() []FreshnessRule {
	return []FreshnessRule{
		KickoffRule(),
		TTLRule(DefaultFixtureTTL, DefaultLiveFixtureTTL),
	}
}

type FixtureCacheConfig struct {
	Location *time.Location
	Rules    []FreshnessRule
	// CleanupPrefixes and CleanupContains select keys owned by this cache.
	CleanupPrefixes []string
	CleanupContains []string
}

func DefaultFixtureCacheConfig() FixtureCacheConfig {
	return FixtureCacheConfig{
		Location:        time.Local,
		Rules:           DefaultFreshnessRules(),
		CleanupPrefixes: []string{"broadcaster_"},
		CleanupContains: []string{"highlights"},
	}
}

// FixtureCache is a date-scoped cache of fixture lists over a kv.Store.
type FixtureCache struct {
	store  kv.Store
	cfg    FixtureCacheConfig
	logger *logging.Logger
	now    func() time.Time

	writeMu sync.Mutex
}

func NewFixtureCache(store kv.Store, cfg FixtureCacheConfig, logger *logging.Logger) *FixtureCache {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultFreshnessRules()
	}

	return &FixtureCache{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (c *FixtureCache) today() string {
	return c.now().In(c.cfg.Location).Format(calendarDateLayout)
}

// Read returns the cached fixtures for key. Entries from another calendar day
// or with unparsable JSON are misses. Freshness rules apply unless
// ignoreFreshness is set.
func (c *FixtureCache) Read(ctx context.Context, key string, ignoreFreshness bool) ([]fixture.Fixture, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "fixture cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry CacheEntry[[]fixture.Fixture]
	if err := sonic.UnmarshalString(raw, &entry); err != nil {
		c.logger.WarnContext(ctx, "fixture cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	if entry.CalendarDate != c.today() {
		return nil, false
	}
	if ignoreFreshness {
		return entry.Payload, true
	}

	now := c.now()
	storedAt := time.UnixMilli(entry.StoredAt)
	for _, rule := range c.cfg.Rules {
		if rule.Stale(entry.Payload, storedAt, now) {
			c.logger.DebugContext(ctx, "fixture cache entry stale", "key", key, "rule", rule.Name)
			return nil, false
		}
	}
	return entry.Payload, true
}

// Write replaces the entry for key with today's date and the current time.
func (c *FixtureCache) Write(ctx context.Context, key string, payload []fixture.Fixture) error {
	now := c.now()
	entry := CacheEntry[[]fixture.Fixture]{
		CalendarDate: now.In(c.cfg.Location).Format(calendarDateLayout),
		StoredAt:     now.UnixMilli(),
		Payload:      payload,
	}
	encoded, err := sonic.MarshalString(entry)
	if err != nil {
		return fmt.Errorf("encode fixture cache entry: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.Set(ctx, key, encoded); err != nil {
		return fmt.Errorf("write fixture cache key=%s: %w", key, err)
	}
	return nil
}

// Cleanup evicts owned entries from another calendar day or with unparsable
// JSON. It returns the number of evicted keys.
func (c *FixtureCache) Cleanup(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list fixture cache keys: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	today := c.today()
	evicted := 0
	for _, key := range keys {
		if !c.owns(key) {
			continue
		}

		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.WarnContext(ctx, "fixture cache cleanup read failed", "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}

		var header struct {
			CalendarDate string `json:"date"`
		}
		if err := sonic.UnmarshalString(raw, &header); err == nil && header.CalendarDate == today {
			continue
		}

		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "fixture cache cleanup delete failed", "key", key, "error", err)
			continue
		}
		evicted++
	}

	if evicted > 0 {
		c.logger.InfoContext(ctx, "fixture cache cleanup", "evicted", evicted)
	}
	return evicted, nil
}

func (c *FixtureCache) owns(key string) bool {
	for _, prefix := range c.cfg.CleanupPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	for _, part := range c.cfg.CleanupContains {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
