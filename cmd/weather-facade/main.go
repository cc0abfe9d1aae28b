package main

import (
	"context"
	"crypto/tls"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/weather-facade/internal/api/http"
	"github.com/i474232898/weather-facade/internal/config"
	"github.com/i474232898/weather-facade/internal/logger"
	"github.com/i474232898/weather-facade/internal/metrics"
	"github.com/i474232898/weather-facade/internal/scheduler"
	"github.com/i474232898/weather-facade/internal/store"
	"github.com/i474232898/weather-facade/internal/weather"
	"github.com/i474232898/weather-facade/internal/weather/providers"
)

const serviceName = "weather-facade"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	lg := logger.New(level)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12}},
	}

	breaker := providers.BreakerConfig{
		Enabled:     cfg.Breaker.Enabled,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		Failures:    cfg.Breaker.Failures,
	}

	// WeatherStack is the primary provider, OpenWeatherMap the failover.
	primary := providers.NewWeatherStackProvider(providers.Config{
		APIKey:      cfg.WeatherStack.APIKey,
		URLTemplate: cfg.WeatherStack.URL,
		Client:      httpClient,
		Breaker:     breaker,
	})
	secondary := providers.NewOpenWeatherMapProvider(providers.Config{
		APIKey:      cfg.OpenWeatherMap.APIKey,
		URLTemplate: cfg.OpenWeatherMap.URL,
		Client:      httpClient,
		Breaker:     breaker,
	})

	metricsManager := metrics.NewManager()

	aggregator := weather.NewAggregator(primary, secondary, store.NewMemoryStore(cfg.CacheMaxEntries),
		weather.WithRefreshInterval(cfg.RefreshInterval),
		weather.WithSingleSlot(cfg.SingleSlotCache),
		weather.WithLogger(lg.With("component", "aggregator")),
		weather.WithMetrics(metricsManager),
	)

	// Keeps configured cities cached.
	sched := scheduler.New(cfg.Warmup.Cities, cfg.Warmup.Interval, aggregator, lg.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}?${queryParams}\n",
	}))
	app.Use(recover.New())

	httpapi.RegisterHealth(app, serviceName)
	httpapi.RegisterMetrics(app, metricsManager.Registry())
	httpapi.RegisterRoutes(app, aggregator)

	go func() {
		lg.Info("starting HTTP server", slog.String("addr", cfg.Addr))
		if err := app.Listen(cfg.Addr); err != nil {
			lg.Error("fiber server stopped", logger.Err(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", logger.Err(err))
	}
	lg.Info("server stopped")
}
