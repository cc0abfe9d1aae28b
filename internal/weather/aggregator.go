package weather

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-facade/internal/logger"
)

// DefaultRefreshInterval is how long a cached reading is served without re-querying providers.
const DefaultRefreshInterval = 3 * time.Second

// singleSlotKey is the cache key used when every city shares one slot.
const singleSlotKey = "*"

// Aggregator queries a primary provider, fails over to a secondary one and
// caches the last good reading.
type Aggregator struct {
	primary   Provider
	secondary Provider
	store     Store

	refresh    time.Duration
	singleSlot bool
	clock      clockwork.Clock
	log        *logger.Logger
	metrics    Metrics

	group singleflight.Group
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.refresh = d
		}
	}
}

// WithClock sets the clock used for cache timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(a *Aggregator) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithSingleSlot makes all cities share one cache entry: the most recent
// successful lookup for any city is served to every caller until it expires.
func WithSingleSlot(enabled bool) Option {
	return func(a *Aggregator) {
		a.singleSlot = enabled
	}
}

// NewAggregator creates an Aggregator. primary is always queried first.
func NewAggregator(primary, secondary Provider, store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		primary:   primary,
		secondary: secondary,
		store:     store,
		refresh:   DefaultRefreshInterval,
		clock:     clockwork.NewRealClock(),
		log:       logger.Discard(),
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetWeatherData returns the canonical reading for city, a cached one, or the
// last provider's error when nothing better is available.
func (a *Aggregator) GetWeatherData(ctx context.Context, city string) Result {
	if city == "" {
		return ErrorResult("", http.StatusInternalServerError, EmptyCityName)
	}

	start := a.clock.Now()
	defer func() { a.metrics.ObserveLookup(a.clock.Since(start)) }()

	key := a.cacheKey(city)

	if entry, ok := a.fresh(key); ok {
		a.log.Debug("serving cached weather data", slog.String("city", city), slog.String("key", key))
		a.metrics.CacheResult(CacheResultHit)
		return cachedResult(entry, CacheHit)
	}

	// Concurrent requests for the same city share one provider round trip.
	// The shared lookup outlives any single caller; the HTTP client timeout
	// still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := a.group.DoChan(normalizeCity(city), func() (any, error) {
		if entry, ok := a.fresh(key); ok {
			a.metrics.CacheResult(CacheResultHit)
			return cachedResult(entry, CacheHit), nil
		}
		return a.lookup(shared, key, city), nil
	})

	select {
	case r := <-ch:
		return r.Val.(Result)
	case <-ctx.Done():
		a.log.Warn("caller gave up waiting for weather lookup", slog.String("city", city), logger.Err(ctx.Err()))
		return a.abandoned(key)
	}
}

// abandoned is returned to a caller whose context ends before the shared
// lookup does: the cached reading if there is one, otherwise an empty result.
func (a *Aggregator) abandoned(key string) Result {
	entry, err := a.store.Get(key)
	if err != nil {
		return Result{}
	}
	a.metrics.CacheResult(CacheResultStale)
	return cachedResult(entry, CacheStale)
}

// fresh returns the cache entry for key if it is within the refresh interval.
func (a *Aggregator) fresh(key string) (CacheEntry, bool) {
	entry, err := a.store.Get(key)
	if err != nil {
		return CacheEntry{}, false
	}
	if a.clock.Since(entry.Timestamp) > a.refresh {
		return CacheEntry{}, false
	}
	return entry, true
}

func (a *Aggregator) lookup(ctx context.Context, key, city string) Result {
	res := a.fetch(ctx, a.primary, city)
	if !res.OK() {
		a.log.Info("primary provider returned no data, failing over",
			slog.String("city", city),
			slog.String("primary", a.primary.Name()),
			slog.String("secondary", a.secondary.Name()),
		)
		res = a.fetch(ctx, a.secondary, city)
	}

	if res.OK() {
		a.store.Save(key, CacheEntry{
			Data:      *res.Record,
			Provider:  res.Provider,
			Timestamp: a.clock.Now(),
		})
		a.metrics.CacheEntries(a.store.Len())
		a.metrics.CacheResult(CacheResultMiss)
		res.Cache = CacheMiss
		return res
	}

	entry, err := a.store.Get(key)
	if err != nil {
		// Nothing to fall back on: surface the last provider's outcome.
		a.log.Warn("no weather data available and cache is cold", slog.String("city", city))
		a.metrics.CacheResult(CacheResultColdFailure)
		return res
	}

	a.log.Warn("all providers failed, serving stale weather data",
		slog.String("city", city),
		slog.Time("cached_at", entry.Timestamp),
	)
	a.metrics.CacheResult(CacheResultStale)
	return cachedResult(entry, CacheStale)
}

// fetch calls p and converts any fault into an empty result.
func (a *Aggregator) fetch(ctx context.Context, p Provider, city string) Result {
	res, err := p.Fetch(ctx, city)
	if err != nil {
		a.log.Warn("provider fetch failed", slog.String("provider", p.Name()), slog.String("city", city), logger.Err(err))
		a.metrics.ProviderOutcome(p.Name(), OutcomeFault)
		return Result{Provider: p.Name()}
	}

	switch {
	case res.OK():
		a.metrics.ProviderOutcome(p.Name(), OutcomeRecord)
	case res.Error != nil:
		a.log.Warn("provider returned an error",
			slog.String("provider", p.Name()),
			slog.Int("code", res.Error.Code),
			slog.String("message", res.Error.Message),
		)
		a.metrics.ProviderOutcome(p.Name(), OutcomeError)
	default:
		a.log.Info("provider returned an empty response", slog.String("provider", p.Name()), slog.String("city", city))
		a.metrics.ProviderOutcome(p.Name(), OutcomeEmpty)
	}
	if res.Provider == "" {
		res.Provider = p.Name()
	}
	return res
}

func (a *Aggregator) cacheKey(city string) string {
	if a.singleSlot {
		return singleSlotKey
	}
	return normalizeCity(city)
}

// normalizeCity also keys request coalescing, which stays per city even when
// the cache has a single slot.
func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

func cachedResult(entry CacheEntry, status CacheStatus) Result {
	rec := entry.Data
	return Result{Record: &rec, Provider: entry.Provider, Cache: status}
}
