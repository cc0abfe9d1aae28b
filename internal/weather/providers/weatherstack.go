package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/i474232898/weather-facade/internal/weather"
)

// WeatherStackName is the provider name reported in logs, metrics and headers.
const WeatherStackName = "weatherstack"

var errWeatherStackPayload = errors.New("weatherstack payload missing current conditions")

// WeatherStackProvider implements the weather.Provider interface for WeatherStack.
// WeatherStack reports km/h and Celsius, which are truncated to whole numbers.
type WeatherStackProvider struct {
	name string
	req  requester
}

func NewWeatherStackProvider(cfg Config) *WeatherStackProvider {
	return &WeatherStackProvider{
		name: WeatherStackName,
		req:  newRequester(WeatherStackName, cfg),
	}
}

func (p *WeatherStackProvider) Name() string {
	return p.name
}

func (p *WeatherStackProvider) Fetch(ctx context.Context, city string) (weather.Result, error) {
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
		Error *struct {
			Code int    `json:"code"`
			Type string `json:"type"`
			Info string `json:"info"`
		} `json:"error"`
		Current *struct {
			WindSpeed   *float64 `json:"wind_speed"`
			Temperature *float64 `json:"temperature"`
		} `json:"current"`
	}

	if err := json.Unmarshal(raw.body, &payload); err != nil {
		return weather.Result{}, fmt.Errorf("failed to decode weatherstack response: %w", err)
	}

	// WeatherStack reports API errors with a 200 status and an error envelope.
	if payload.Error != nil {
		return weather.Result{}, fmt.Errorf("weatherstack error %d (%s): %s", payload.Error.Code, payload.Error.Type, payload.Error.Info)
	}
	if payload.Current == nil || payload.Current.WindSpeed == nil || payload.Current.Temperature == nil {
		return weather.Result{}, errWeatherStackPayload
	}

	return weather.RecordResult(p.name, weather.Record{
		WindSpeedKPH:       float64(int(*payload.Current.WindSpeed)),
		TemperatureCelsius: float64(int(*payload.Current.Temperature)),
	}), nil
}
