// Package app is the composition root: it loads configuration and wires
// the database, cache, perf monitor, and booking service into one injected
// graph. Consumers embed the core by calling New and using App.Bookings;
// nothing in this module holds package-level state, so several App
// instances can coexist (tests rely on this).
package app

import (
	"context"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/schedulo/go-booking-backend/internal/cache"
	"github.com/schedulo/go-booking-backend/internal/config"
	"github.com/schedulo/go-booking-backend/internal/observability"
	"github.com/schedulo/go-booking-backend/internal/perf"
	"github.com/schedulo/go-booking-backend/internal/repo"
	"github.com/schedulo/go-booking-backend/internal/services"
	"github.com/schedulo/go-booking-backend/internal/sysutil"
	"gorm.io/gorm"
)

// Version identifies this build in traces and diagnostics.
const Version = "1.0.0"

// App holds the wired components of the booking core.
type App struct {
	Config   config.Config
	Log      zerolog.Logger
	DB       *gorm.DB
	Cache    *cache.Cache
	Monitor  *perf.Monitor
	Samples  *repo.SampleStore
	Bookings *services.BookingService

	shutdownTracing func(context.Context) error
}

// New loads configuration (including a best-effort .env), opens and
// migrates the database, and wires the component graph. On error, nothing
// needs to be closed.
func New(ctx context.Context) (*App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log := zerolog.New(out).With().Timestamp().Str("component", "booking-core").Logger()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := observability.TraceDB(db); err != nil {
			return nil, err
		}
	}

	c := cache.New()
	samples := repo.NewSampleStore(db, log)
	monitor := perf.NewMonitor(
		perf.WithThresholds(cfg.SlowThreshold, cfg.CriticalThreshold),
		perf.WithLogger(log),
		perf.WithLogLimit(cfg.DiagRPS, cfg.DiagBurst),
		perf.WithSinks(perf.LogSink{Logger: log}, samples),
	)

	bookings := services.NewBookingService(db, c, monitor)
	bookings.ListTTL = cfg.ListTTL
	bookings.DetailTTL = cfg.DetailTTL
	bookings.StatsTTL = cfg.StatsTTL
	bookings.PageSizeDefault = cfg.PageSizeDefault
	bookings.PageSizeMax = cfg.PageSizeMax

	return &App{
		Config:          cfg,
		Log:             log,
		DB:              db,
		Cache:           c,
		Monitor:         monitor,
		Samples:         samples,
		Bookings:        bookings,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close flushes the tracer provider and closes the database handle.
func (a *App) Close(ctx context.Context) error {
	var first error
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			first = err
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
