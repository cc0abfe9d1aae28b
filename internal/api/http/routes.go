package httpapi

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-facade/internal/weather"
)

const (
	headerProvider = "X-Weather-Provider"
	headerCache    = "X-Cache"

	noDataMessage = "No weather data available"
)

var validate = validator.New()

// WeatherService is the aggregator entry point the routes depend on.
type WeatherService interface {
	GetWeatherData(ctx context.Context, city string) weather.Result
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService) {
	v1 := app.Group("/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		q, err := parseWeatherQuery(c)
		if err != nil {
			// Missing or empty city never reaches the aggregator.
			return c.Status(fiber.StatusOK).SendString(weather.EmptyCityName)
		}

		res := service.GetWeatherData(c.UserContext(), q.City)
		setResultHeaders(c, res)

		switch {
		case res.OK():
			return c.JSON(res.Record)
		case res.Error != nil:
			return c.Status(fiber.StatusOK).JSON(res.Error)
		default:
			return c.Status(fiber.StatusServiceUnavailable).JSON(weather.ProviderError{
				Code:    fiber.StatusServiceUnavailable,
				Message: noDataMessage,
			})
		}
	})
}

// RegisterHealth adds the liveness endpoint.
func RegisterHealth(app *fiber.App, service string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": service,
		})
	})
}

// RegisterMetrics exposes the registry in the Prometheus text format.
func RegisterMetrics(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// weatherQuery holds query parameters for the weather endpoint.
type weatherQuery struct {
	City string `query:"city" validate:"required"`
}

func parseWeatherQuery(c *fiber.Ctx) (weatherQuery, error) {
	var q weatherQuery

	q.City = c.Query("city")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

func setResultHeaders(c *fiber.Ctx, res weather.Result) {
	if res.Provider != "" {
		c.Set(headerProvider, res.Provider)
	}
	if res.Cache != weather.CacheNone {
		c.Set(headerCache, strings.ToUpper(string(res.Cache)))
	}
}
