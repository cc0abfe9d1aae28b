package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-facade/internal/weather"
)

const (
	weatherStackFile   = "testdata/weather_stack.json"
	openWeatherMapFile = "testdata/open_weather_map.json"
	testAPIKey         = "testkey"
)

// upstream is a fake provider endpoint that records what it was asked for.
type upstream struct {
	*httptest.Server
	calls   atomic.Int32
	lastKey atomic.Value
	lastQ   atomic.Value
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.lastKey.Store(r.URL.Query().Get("key"))
		u.lastQ.Store(r.URL.Query().Get("city"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) config() Config {
	return Config{
		APIKey:      testAPIKey,
		URLTemplate: u.URL + "/current?key=%s&city=%s",
		Client:      &http.Client{Timeout: 2 * time.Second},
	}
}

func readPayload(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read payload %s: %v", path, err)
	}
	return string(data)
}

func TestWeatherStackProvider_Fetch(t *testing.T) {
	t.Run("a valid payload is truncated to whole units", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, readPayload(t, weatherStackFile))
		p := NewWeatherStackProvider(srv.config())

		res, err := p.Fetch(context.Background(), "Melbourne")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.OK() {
			t.Fatalf("expected a record, got %+v", res)
		}
		want := weather.Record{WindSpeedKPH: 9, TemperatureCelsius: 17}
		if *res.Record != want {
			t.Errorf("expected %+v, got %+v", want, *res.Record)
		}
		if res.Provider != WeatherStackName {
			t.Errorf("expected provider %q, got %q", WeatherStackName, res.Provider)
		}
		if got := srv.lastKey.Load(); got != testAPIKey {
			t.Errorf("expected api key %q in request, got %v", testAPIKey, got)
		}
		if got := srv.lastQ.Load(); got != "Melbourne" {
			t.Errorf("expected city Melbourne in request, got %v", got)
		}
	})

	t.Run("negative readings truncate toward zero", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, `{"current":{"wind_speed":3.9,"temperature":-2.7}}`)
		p := NewWeatherStackProvider(srv.config())

		res, err := p.Fetch(context.Background(), "Oslo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := weather.Record{WindSpeedKPH: 3, TemperatureCelsius: -2}
		if !res.OK() || *res.Record != want {
			t.Errorf("expected %+v, got %+v", want, res)
		}
	})

	t.Run("city names are escaped into the url", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, readPayload(t, weatherStackFile))
		p := NewWeatherStackProvider(srv.config())

		if _, err := p.Fetch(context.Background(), "New York&x=1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := srv.lastQ.Load(); got != "New York&x=1" {
			t.Errorf("expected escaped city to round trip, got %v", got)
		}
	})

	t.Run("a server error becomes an error record", func(t *testing.T) {
		srv := newUpstream(t, http.StatusInternalServerError, "")
		p := NewWeatherStackProvider(srv.config())

		res, err := p.Fetch(context.Background(), "Melbourne")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Error == nil {
			t.Fatalf("expected an error record, got %+v", res)
		}
		want := weather.ProviderError{Code: 500, Message: "Internal Server Error"}
		if *res.Error != want {
			t.Errorf("expected %+v, got %+v", want, *res.Error)
		}
	})

	t.Run("an empty body is an empty result", func(t *testing.T) {
		for _, body := range []string{"", "{}", "  "} {
			srv := newUpstream(t, http.StatusOK, body)
			p := NewWeatherStackProvider(srv.config())

			res, err := p.Fetch(context.Background(), "Melbourne")
			if err != nil {
				t.Fatalf("body %q: unexpected error: %v", body, err)
			}
			if !res.IsEmpty() {
				t.Errorf("body %q: expected empty result, got %+v", body, res)
			}
		}
	})

	t.Run("an error envelope is a fault", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, `{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"You have not supplied a valid API Access Key."}}`)
		p := NewWeatherStackProvider(srv.config())

		if _, err := p.Fetch(context.Background(), "Melbourne"); err == nil {
			t.Error("expected an error for the error envelope")
		}
	})

	t.Run("missing fields are a fault", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, `{"current":{"temperature":12}}`)
		p := NewWeatherStackProvider(srv.config())

		if _, err := p.Fetch(context.Background(), "Melbourne"); !errors.Is(err, errWeatherStackPayload) {
			t.Errorf("expected errWeatherStackPayload, got %v", err)
		}
	})

	t.Run("malformed JSON is a fault", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, `{"current": nope}`)
		p := NewWeatherStackProvider(srv.config())

		if _, err := p.Fetch(context.Background(), "Melbourne"); err == nil {
			t.Error("expected a decode error")
		}
	})

	t.Run("an empty city makes no request", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, readPayload(t, weatherStackFile))
		p := NewWeatherStackProvider(srv.config())

		res, err := p.Fetch(context.Background(), "")
		if err != nil || !res.IsEmpty() {
			t.Errorf("expected empty result without error, got %+v, %v", res, err)
		}
		if srv.calls.Load() != 0 {
			t.Errorf("expected no upstream calls, got %d", srv.calls.Load())
		}
	})
}

func TestOpenWeatherMapProvider_Fetch(t *testing.T) {
	t.Run("a valid payload is converted to km/h and Celsius", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, readPayload(t, openWeatherMapFile))
		p := NewOpenWeatherMapProvider(srv.config())

		res, err := p.Fetch(context.Background(), "Melbourne")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := weather.Record{WindSpeedKPH: 9.36, TemperatureCelsius: 18}
		if !res.OK() || *res.Record != want {
			t.Errorf("expected %+v, got %+v", want, res)
		}
		if res.Provider != OpenWeatherMapName {
			t.Errorf("expected provider %q, got %q", OpenWeatherMapName, res.Provider)
		}
	})

	t.Run("a not found response becomes an error record", func(t *testing.T) {
		srv := newUpstream(t, http.StatusNotFound, `{"cod":"404","message":"city not found"}`)
		p := NewOpenWeatherMapProvider(srv.config())

		res, err := p.Fetch(context.Background(), "Atlantis")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := weather.ProviderError{Code: 404, Message: "Not Found"}
		if res.Error == nil || *res.Error != want {
			t.Errorf("expected %+v, got %+v", want, res)
		}
	})

	t.Run("an empty body is an empty result", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, "")
		p := NewOpenWeatherMapProvider(srv.config())

		res, err := p.Fetch(context.Background(), "Melbourne")
		if err != nil || !res.IsEmpty() {
			t.Errorf("expected empty result, got %+v, %v", res, err)
		}
	})

	t.Run("missing fields are a fault", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, `{"main":{"temp":280}}`)
		p := NewOpenWeatherMapProvider(srv.config())

		if _, err := p.Fetch(context.Background(), "Melbourne"); !errors.Is(err, errOpenWeatherMapPayload) {
			t.Errorf("expected errOpenWeatherMapPayload, got %v", err)
		}
	})

	t.Run("an unreachable host is a fault", func(t *testing.T) {
		srv := newUpstream(t, http.StatusOK, "")
		cfg := srv.config()
		srv.Close()
		p := NewOpenWeatherMapProvider(cfg)

		if _, err := p.Fetch(context.Background(), "Melbourne"); err == nil {
			t.Error("expected a transport error")
		}
	})
}

func TestUnitConversions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) float64
		in   float64
		want float64
	}{
		{"calm wind", KPHFromMetresPerSecond, 0, 0},
		{"light wind", KPHFromMetresPerSecond, 2.6, 9.36},
		{"rounded wind", KPHFromMetresPerSecond, 3.33, 11.99},
		{"freezing", CelsiusFromKelvin, 273.15, 0},
		{"mild", CelsiusFromKelvin, 291.15, 18},
		{"rounded", CelsiusFromKelvin, 285.456, 12.31},
		{"below zero", CelsiusFromKelvin, 263.1, -10.05},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn(tc.in); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRequester_Misconfigured(t *testing.T) {
	p := NewWeatherStackProvider(Config{URLTemplate: "http://example.invalid/%s/%s"})
	if _, err := p.Fetch(context.Background(), "Melbourne"); !errors.Is(err, errNoHTTPClient) {
		t.Errorf("expected errNoHTTPClient, got %v", err)
	}

	p = NewWeatherStackProvider(Config{Client: http.DefaultClient})
	if _, err := p.Fetch(context.Background(), "Melbourne"); !errors.Is(err, errNoURL) {
		t.Errorf("expected errNoURL, got %v", err)
	}
}

func TestRequester_CircuitBreaker(t *testing.T) {
	srv := newUpstream(t, http.StatusServiceUnavailable, "")
	cfg := srv.config()
	cfg.Breaker = BreakerConfig{
		Enabled:     true,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		Failures:    2,
	}
	p := NewOpenWeatherMapProvider(cfg)

	for i := 0; i < 2; i++ {
		res, err := p.Fetch(context.Background(), "Melbourne")
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if res.Error == nil || res.Error.Code != http.StatusServiceUnavailable {
			t.Fatalf("attempt %d: expected 503 error record, got %+v", i, res)
		}
	}

	if _, err := p.Fetch(context.Background(), "Melbourne"); !errors.Is(err, errCircuitOpen) {
		t.Fatalf("expected errCircuitOpen once the breaker trips, got %v", err)
	}
	if got := srv.calls.Load(); got != 2 {
		t.Errorf("expected 2 upstream calls, got %d", got)
	}
}
