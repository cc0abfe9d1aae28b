package weather

import (
	"context"
	"time"
)

// Provider abstracts an upstream weather API (e.g. WeatherStack, OpenWeatherMap).
//
// Fetch returns an empty Result when there is nothing usable, an error Result
// for non-200 responses, and a non-nil error only for transport faults such as
// network failures or undecodable payloads.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, city string) (Result, error)
}

// Store is the contract the in-memory cache must satisfy.
type Store interface {
	Get(key string) (CacheEntry, error)
	Save(key string, entry CacheEntry)
	Len() int
}

// Metrics receives aggregator events. The zero implementation is nopMetrics.
type Metrics interface {
	ProviderOutcome(provider, outcome string)
	CacheResult(result string)
	ObserveLookup(d time.Duration)
	CacheEntries(n int)
}

// Provider outcome labels.
const (
	OutcomeRecord = "record"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
	OutcomeFault  = "fault"
)

// Cache result labels.
const (
	CacheResultHit         = "hit"
	CacheResultMiss        = "miss"
	CacheResultStale       = "stale"
	CacheResultColdFailure = "cold_failure"
)

type nopMetrics struct{}

func (nopMetrics) ProviderOutcome(string, string) {}
func (nopMetrics) CacheResult(string)             {}
func (nopMetrics) ObserveLookup(time.Duration)    {}
func (nopMetrics) CacheEntries(int)               {}
