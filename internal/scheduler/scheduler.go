package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-facade/internal/logger"
	"github.com/i474232898/weather-facade/internal/weather"
)

// lookupTimeout bounds one warm-up lookup for a single city.
const lookupTimeout = 30 * time.Second

// WeatherGetter is the part of the aggregator the scheduler needs.
type WeatherGetter interface {
	GetWeatherData(ctx context.Context, city string) weather.Result
}

// Scheduler periodically looks up configured cities so their readings stay cached.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   WeatherGetter
	cities    []string
	interval  time.Duration
	log       *logger.Logger
}

// New creates a new Scheduler.
func New(cities []string, interval time.Duration, service WeatherGetter, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		cities:    cities,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the warm-up job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		s.log.Info("scheduler: no warm-up cities configured; nothing to schedule")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.WarmUp); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// WarmUp looks up every configured city once. Cities are processed in order
// so the providers see at most one request from the scheduler at a time.
func (s *Scheduler) WarmUp() {
	s.log.Debug("scheduler: running weather warm-up job", slog.Int("cities", len(s.cities)))

	for _, city := range s.cities {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		res := s.service.GetWeatherData(ctx, city)
		cancel()

		switch {
		case res.OK():
			s.log.Debug("scheduler: warmed city", slog.String("city", city), slog.String("cache", string(res.Cache)))
		case res.Error != nil:
			s.log.Warn("scheduler: warm-up failed", slog.String("city", city), slog.Int("code", res.Error.Code), slog.String("message", res.Error.Message))
		default:
			s.log.Warn("scheduler: warm-up returned no data", slog.String("city", city))
		}
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
