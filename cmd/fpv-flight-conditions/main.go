package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	httpapi "github.com/i474232898/fpv-flight-conditions/internal/api/http"
	"github.com/i474232898/fpv-flight-conditions/internal/config"
	"github.com/i474232898/fpv-flight-conditions/internal/location"
	"github.com/i474232898/fpv-flight-conditions/internal/scheduler"
	"github.com/i474232898/fpv-flight-conditions/internal/store"
	"github.com/i474232898/fpv-flight-conditions/internal/weather"
	"github.com/i474232898/fpv-flight-conditions/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := newLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.ProviderMaxRetries

	primary := providers.NewOpenMeteoProvider(httpClient, cfg.ForecastURL, backoff, zl.Named("open-meteo"))
	geomagnetic := providers.NewSWPCProvider(httpClient, cfg.GeomagneticURL, backoff, zl.Named("noaa-swpc"))

	resolver := location.NewResolver(newLocationConfig(cfg, httpClient, zl.Named("location")))

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	service := weather.NewService(memStore, resolver, primary, geomagnetic, zl.Named("weather"))

	// Scheduler that fetches on start-up and every interval after.
	sched := scheduler.New(service, cfg.RefreshInterval, cfg.RefreshTimeout, zl.Named("scheduler"))
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := httpapi.NewApp("fpv-flight-conditions")

	// API routes.
	httpapi.RegisterRoutes(app, sched, memStore, resolver, zl.Named("http"))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()
	zl.Info("listening", zap.String("port", cfg.Port))

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}

// newLocationConfig picks the active fixer and reverse geocoder: Google when an
// API key is configured, otherwise fixed coordinates and OpenStreetMap.
func newLocationConfig(cfg *config.AppConfig, httpClient *http.Client, zl *zap.Logger) location.Config {
	lc := location.Config{
		Granted:   cfg.LocationGranted,
		FixMaxAge: cfg.FixMaxAge,
		Logger:    zl,
	}

	if cfg.GeocoderAPIKey != "" {
		google := location.NewGoogleGeocoder(cfg.GeocoderAPIKey, cfg.City, cfg.Country)
		lc.Reverse = google
		if cfg.City != "" {
			lc.Active = google
		}
	} else {
		lc.Reverse = location.NewNominatim(httpClient, cfg.NominatimURL, cfg.NominatimUserAgent)
	}

	// Explicit coordinates win over geocoding the configured city.
	if cfg.HasDefaultPosition() {
		lc.Active = location.StaticFixer{
			At: weather.Coordinates{Lat: *cfg.DefaultLat, Lon: *cfg.DefaultLon},
		}
	}
	if lc.Active == nil {
		zl.Warn("no fallback position configured; forecasts need a fix from the app")
	}
	return lc
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
