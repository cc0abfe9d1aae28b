package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// minBodyLen is the shortest body treated as carrying data; "{}" and blank bodies are empty.
const minBodyLen = 2

// BreakerConfig controls the optional per-provider circuit breaker.
type BreakerConfig struct {
	Enabled     bool
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
}

// Config holds what every provider needs to issue its request.
type Config struct {
	APIKey string
	// URLTemplate takes the API key and the escaped city name, in that order, as %s verbs.
	URLTemplate string
	Client      *http.Client
	Breaker     BreakerConfig
}

var (
	errServerError  = errors.New("server error")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
	errNoURL        = errors.New("url template not configured")
)

// rawResponse is what is left of an upstream response once its body is read.
type rawResponse struct {
	status int
	reason string
	body   []byte
}

// requester issues the GET for one provider, optionally through a circuit breaker.
type requester struct {
	cfg     Config
	circuit *gobreaker.CircuitBreaker
}

func newRequester(name string, cfg Config) requester {
	r := requester{cfg: cfg}
	if cfg.Breaker.Enabled {
		failures := cfg.Breaker.Failures
		if failures == 0 {
			failures = 5
		}
		r.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.Breaker.MaxRequests,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
		})
	}
	return r
}

// buildURL substitutes the API key and the city into the configured template.
func (r requester) buildURL(city string) string {
	return fmt.Sprintf(r.cfg.URLTemplate, r.cfg.APIKey, url.QueryEscape(city))
}

// get performs the GET and returns the status, reason phrase and body.
// A 5xx response is returned together with a nil error once it has been
// recorded as a breaker failure.
func (r requester) get(ctx context.Context, city string) (*rawResponse, error) {
	if r.cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if r.cfg.URLTemplate == "" {
		return nil, errNoURL
	}

	if r.circuit == nil {
		return r.do(ctx, city)
	}

	result, err := r.circuit.Execute(func() (interface{}, error) {
		raw, err := r.do(ctx, city)
		if err != nil {
			return nil, err
		}
		if raw.status >= http.StatusInternalServerError {
			return raw, fmt.Errorf("%w: %d", errServerError, raw.status)
		}
		return raw, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
	}
	if raw, ok := result.(*rawResponse); ok && raw != nil && (err == nil || errors.Is(err, errServerError)) {
		return raw, nil
	}
	return nil, err
}

func (r requester) do(ctx context.Context, city string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.buildURL(city), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &rawResponse{
		status: resp.StatusCode,
		reason: reasonPhrase(resp),
		body:   body,
	}, nil
}

// reasonPhrase extracts the reason from a status line such as "503 Service Unavailable".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

// hasData reports whether a 200 body is long enough to hold a payload.
func (raw *rawResponse) hasData() bool {
	return len(raw.body) > minBodyLen
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
