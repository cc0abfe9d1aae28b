package weather

import (
	"strconv"
	"time"
)

// EmptyCityName is reported when a lookup is requested without a city.
const EmptyCityName = "Empty city name"

// Record is the normalized, provider-agnostic weather reading.
type Record struct {
	WindSpeedKPH       float64 `json:"wind_speed"`
	TemperatureCelsius float64 `json:"temperature_degrees"`
}

// ProviderError describes a provider-level failure, usually a non-200 upstream response.
type ProviderError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e *ProviderError) Error() string {
	return strconv.Itoa(e.Code) + " " + e.Message
}

// CacheStatus tells the transport layer where a result came from.
type CacheStatus string

const (
	CacheNone  CacheStatus = ""
	CacheMiss  CacheStatus = "miss"
	CacheHit   CacheStatus = "hit"
	CacheStale CacheStatus = "stale"
)

// Result is the outcome of a provider call or an aggregated lookup.
// At most one of Record and Error is set; when neither is, the result is empty.
type Result struct {
	Record *Record
	Error  *ProviderError

	// Provider and Cache are informational and never part of the payload.
	Provider string
	Cache    CacheStatus
}

// RecordResult wraps a successful reading.
func RecordResult(provider string, r Record) Result {
	return Result{Record: &r, Provider: provider}
}

// ErrorResult wraps a provider-level failure.
func ErrorResult(provider string, code int, message string) Result {
	return Result{Error: &ProviderError{Code: code, Message: message}, Provider: provider}
}

// IsEmpty reports whether the result carries neither data nor an error.
func (r Result) IsEmpty() bool {
	return r.Record == nil && r.Error == nil
}

// OK reports whether the result carries a usable record.
func (r Result) OK() bool {
	return r.Record != nil
}

// CacheEntry is the last known-good reading for a cache key.
type CacheEntry struct {
	Data      Record    `json:"data"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}
