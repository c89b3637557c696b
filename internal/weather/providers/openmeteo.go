package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

// DefaultOpenMeteoURL is the public Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

var (
	openMeteoCurrent = []string{
		"temperature_2m",
		"apparent_temperature",
		"precipitation",
		"weather_code",
		"wind_speed_10m",
		"wind_gusts_10m",
		"relative_humidity_2m",
	}
	openMeteoMinutely15 = []string{
		"precipitation",
		"precipitation_probability",
		"wind_speed_10m",
		"wind_gusts_10m",
		"wind_direction_10m",
		"temperature_2m",
		"apparent_temperature",
	}
)

// OpenMeteoProvider implements weather.PrimarySource for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewOpenMeteoProvider creates the primary forecast client. An empty baseURL
// selects DefaultOpenMeteoURL.
func NewOpenMeteoProvider(client *http.Client, baseURL string, backoff BackoffConfig, logger *zap.Logger) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenMeteoProvider{
		name:    "open-meteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("open-meteo"),
		logger:  logger,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// FetchPrimary requests current conditions, the 15-minute forecast, hourly
// visibility and today's peak UV for a position in a single call. Every
// failure is reported as a *weather.UpstreamError.
func (p *OpenMeteoProvider) FetchPrimary(ctx context.Context, at weather.Coordinates) (weather.RawPrimaryForecast, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(at.Lat, 'f', 6, 64))
		values.Set("longitude", strconv.FormatFloat(at.Lon, 'f', 6, 64))
		values.Set("current", strings.Join(openMeteoCurrent, ","))
		values.Set("minutely_15", strings.Join(openMeteoMinutely15, ","))
		values.Set("hourly", "visibility")
		values.Set("daily", "uv_index_max")
		values.Set("timezone", "auto")
		values.Set("forecast_days", "1")

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.RawPrimaryForecast{}, &weather.UpstreamError{
			Source: p.name,
			Status: statusCode(err),
			Err:    err,
		}
	}
	defer resp.Body.Close()

	var payload weather.RawPrimaryForecast
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.RawPrimaryForecast{}, &weather.UpstreamError{Source: p.name, Err: fmt.Errorf("decode response: %w", err)}
	}
	if err := payload.Validate(); err != nil {
		return weather.RawPrimaryForecast{}, &weather.UpstreamError{Source: p.name, Err: fmt.Errorf("invalid response: %w", err)}
	}

	p.logger.Debug("fetched primary forecast",
		zap.String("timezone", payload.Timezone),
		zap.Int("utc_offset_seconds", payload.UTCOffsetSeconds),
		zap.Int("slots", len(payload.Minutely15.Time)),
	)
	return payload, nil
}
