package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/i474232898/weather-facade/internal/weather"
)

// OpenWeatherMapName is the provider name reported in logs, metrics and headers.
const OpenWeatherMapName = "openweathermap"

const (
	kelvinOffset = 273.15
	// metres per second to kilometres per hour
	secondsPerHour  = 3600
	metresPerKmetre = 1000
)

var errOpenWeatherMapPayload = errors.New("openweathermap payload missing wind speed or temperature")

// OpenWeatherMapProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherMapProvider struct {
	name string
	req  requester
}

func NewOpenWeatherMapProvider(cfg Config) *OpenWeatherMapProvider {
	return &OpenWeatherMapProvider{
		name: OpenWeatherMapName,
		req:  newRequester(OpenWeatherMapName, cfg),
	}
}

func (p *OpenWeatherMapProvider) Name() string {
	return p.name
}

func (p *OpenWeatherMapProvider) Fetch(ctx context.Context, city string) (weather.Result, error) {
	if city == "" {
		return weather.Result{}, nil
	}

	raw, err := p.req.get(ctx, city)
	if err != nil {
		return weather.Result{}, err
	}
	if raw.status != http.StatusOK {
		return weather.ErrorResult(p.name, raw.status, raw.reason), nil
	}
	if !raw.hasData() {
		return weather.Result{}, nil
	}

	var payload struct {
		Main *struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Wind *struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
	}

	if err := json.Unmarshal(raw.body, &payload); err != nil {
		return weather.Result{}, fmt.Errorf("failed to decode openweathermap response: %w", err)
	}
	if payload.Main == nil || payload.Main.Temp == nil || payload.Wind == nil || payload.Wind.Speed == nil {
		return weather.Result{}, errOpenWeatherMapPayload
	}

	return weather.RecordResult(p.name, weather.Record{
		WindSpeedKPH:       KPHFromMetresPerSecond(*payload.Wind.Speed),
		TemperatureCelsius: CelsiusFromKelvin(*payload.Main.Temp),
	}), nil
}

// KPHFromMetresPerSecond converts m/s to km/h rounded to two decimal places.
func KPHFromMetresPerSecond(ms float64) float64 {
	return round2(ms * secondsPerHour / metresPerKmetre)
}

// CelsiusFromKelvin converts Kelvin to Celsius rounded to two decimal places.
func CelsiusFromKelvin(k float64) float64 {
	return round2(k - kelvinOffset)
}
