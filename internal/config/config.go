package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/i474232898/weather-facade/internal/logger"
)

const (
	// configFileEnv names the env var holding an optional YAML config path.
	configFileEnv = "WEATHER_CONFIG"
	envPrefix     = "WEATHER_"

	defaultWeatherStackURL   = "http://api.weatherstack.com/current?access_key=%s&query=%s"
	defaultOpenWeatherMapURL = "http://api.openweathermap.org/data/2.5/weather?appid=%s&q=%s"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// listKeys are read from env vars as comma-separated values.
var listKeys = map[string]struct{}{
	"warmup.cities": {},
}

// ProviderConfig is the per-provider API key and URL template.
// The template takes the API key and the city name, in that order.
type ProviderConfig struct {
	APIKey string `koanf:"api_key"`
	URL    string `koanf:"url"`
}

type BreakerConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxRequests uint32        `koanf:"max_requests"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
	Failures    uint32        `koanf:"failures"`
}

// WarmupConfig lists cities refreshed in the background.
type WarmupConfig struct {
	Cities   []string      `koanf:"cities"`
	Interval time.Duration `koanf:"interval"`
}

type AppConfig struct {
	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout     time.Duration `koanf:"http_timeout"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// SingleSlotCache shares one cache entry across all cities.
	SingleSlotCache bool `koanf:"single_slot_cache"`
	// CacheMaxEntries bounds the per-city cache; evicted cities lose their
	// stale fallback. 0 = unlimited.
	CacheMaxEntries int  `koanf:"cache_max_entries"`

	WeatherStack   ProviderConfig `koanf:"weather_stack"`
	OpenWeatherMap ProviderConfig `koanf:"open_weather_map"`

	Breaker BreakerConfig `koanf:"breaker"`
	Warmup  WarmupConfig  `koanf:"warmup"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		Addr:            ":8080",
		LogLevel:        "info",
		HTTPTimeout:     5 * time.Second,
		RefreshInterval: 3 * time.Second,
		WeatherStack:    ProviderConfig{URL: defaultWeatherStackURL},
		OpenWeatherMap:  ProviderConfig{URL: defaultOpenWeatherMapURL},
		Breaker: BreakerConfig{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			Failures:    5,
		},
		Warmup: WarmupConfig{Interval: time.Minute},
	}
}

// Load reads configuration with the following precedence (low -> high):
//  1. defaults
//  2. YAML file named by WEATHER_CONFIG
//  3. WEATHER_ prefixed env vars, "__" separating nested keys
//     (WEATHER_WEATHER_STACK__API_KEY -> weather_stack.api_key);
//     WEATHER_WARMUP__CITIES is a comma-separated list
//  4. WEATHERSTACK_API_KEY, OPENWEATHERMAP_API_KEY and PORT
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	k := koanf.New(".")

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if _, ok := listKeys[key]; ok {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	// The file path itself is not a config key.
	k.Delete("config")

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.WeatherStack.APIKey = getenvDefault("WEATHERSTACK_API_KEY", cfg.WeatherStack.APIKey)
	cfg.OpenWeatherMap.APIKey = getenvDefault("OPENWEATHERMAP_API_KEY", cfg.OpenWeatherMap.APIKey)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.Warmup.Cities = cleanCities(cfg.Warmup.Cities)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the service cannot run without.
func (c *AppConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalidConfig)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh_interval must be positive", ErrInvalidConfig)
	}
	for name, p := range map[string]ProviderConfig{
		"weather_stack":    c.WeatherStack,
		"open_weather_map": c.OpenWeatherMap,
	} {
		if n := strings.Count(p.URL, "%s"); n != 2 {
			return fmt.Errorf("%w: %s.url must contain two %%s verbs (api key, city), found %d", ErrInvalidConfig, name, n)
		}
		if strings.Count(p.URL, "%") != 2 {
			return fmt.Errorf("%w: %s.url must not contain other format verbs", ErrInvalidConfig, name)
		}
	}
	if len(c.Warmup.Cities) > 0 && c.Warmup.Interval <= 0 {
		return fmt.Errorf("%w: warmup.interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func cleanCities(cities []string) []string {
	var out []string
	for _, c := range cities {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
