package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// RefreshInterval controls how often the forecast pipeline runs.
	RefreshInterval time.Duration `validate:"gte=1m"`
	// RefreshTimeout bounds one whole cycle.
	RefreshTimeout time.Duration `validate:"gt=0"`

	// In-memory report retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of reports (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of reports (0 = unlimited)

	ForecastURL        string `validate:"required,url"`
	GeomagneticURL     string `validate:"required,url"`
	ProviderMaxRetries int    `validate:"gte=0,lte=5"`

	// Location access and fallbacks.
	LocationGranted bool
	FixMaxAge       time.Duration `validate:"gt=0"`
	DefaultLat      *float64      `validate:"omitempty,gte=-90,lte=90"`
	DefaultLon      *float64      `validate:"omitempty,gte=-180,lte=180"`
	City            string
	Country         string

	GeocoderAPIKey     string
	NominatimURL       string `validate:"required,url"`
	NominatimUserAgent string `validate:"required"`

	LogLevel    string `validate:"oneof=debug info warn error"`
	Development bool
}

// HasDefaultPosition reports whether fixed fallback coordinates were configured.
func (c *AppConfig) HasDefaultPosition() bool {
	return c.DefaultLat != nil && c.DefaultLon != nil
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:               getenvDefault("PORT", "8080"),
		ForecastURL:        getenvDefault("FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		GeomagneticURL:     getenvDefault("GEOMAGNETIC_URL", "https://services.swpc.noaa.gov/products/noaa-planetary-k-index-forecast.json"),
		City:               os.Getenv("WEATHER_LOCATION_CITY"),
		Country:            os.Getenv("WEATHER_LOCATION_COUNTRY"),
		GeocoderAPIKey:     os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		NominatimURL:       getenvDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/reverse"),
		NominatimUserAgent: getenvDefault("NOMINATIM_USER_AGENT", "fpv-flight-conditions/1.0"),
		LogLevel:           strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		Development:        strings.EqualFold(os.Getenv("APP_ENV"), "development"),
	}

	var err error
	// 24h at 5-minute intervals.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 288); err != nil {
		return nil, err
	}
	if cfg.ProviderMaxRetries, err = getenvInt("PROVIDER_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}
	if cfg.FixMaxAge, err = getenvDuration("LOCATION_FIX_MAX_AGE", "30m"); err != nil {
		return nil, err
	}

	switch access := strings.ToLower(getenvDefault("LOCATION_ACCESS", "granted")); access {
	case "granted":
		cfg.LocationGranted = true
	case "denied":
		cfg.LocationGranted = false
	default:
		return nil, fmt.Errorf("invalid LOCATION_ACCESS %q: want granted or denied", access)
	}

	if cfg.DefaultLat, err = getenvFloat("WEATHER_LAT"); err != nil {
		return nil, err
	}
	if cfg.DefaultLon, err = getenvFloat("WEATHER_LON"); err != nil {
		return nil, err
	}
	if (cfg.DefaultLat == nil) != (cfg.DefaultLon == nil) {
		return nil, fmt.Errorf("WEATHER_LAT and WEATHER_LON must be set together")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}
