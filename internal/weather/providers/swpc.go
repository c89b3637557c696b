package providers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

// DefaultSWPCKpURL is the NOAA SWPC planetary K-index forecast product.
const DefaultSWPCKpURL = "https://services.swpc.noaa.gov/products/noaa-planetary-k-index-forecast.json"

// SWPCProvider implements weather.GeomagneticSource for NOAA SWPC.
type SWPCProvider struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSWPCProvider creates the geomagnetic feed client. An empty url selects DefaultSWPCKpURL.
func NewSWPCProvider(client *http.Client, url string, backoff BackoffConfig, logger *zap.Logger) *SWPCProvider {
	if url == "" {
		url = DefaultSWPCKpURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SWPCProvider{
		name: "noaa-swpc",
		url:  url,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("noaa-swpc"),
		logger:  logger,
	}
}

func (p *SWPCProvider) Name() string {
	return p.name
}

// FetchGeomagnetic returns the decoded K-index table. A non-success status or
// an unusable table yields an empty forecast and no error; only transport and
// context failures are returned.
func (p *SWPCProvider) FetchGeomagnetic(ctx context.Context) (weather.GeomagneticForecast, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if code := statusCode(err); code != 0 {
			p.logger.Warn("kp forecast unavailable; proceeding without space weather",
				zap.Int("status", code),
			)
			return weather.GeomagneticForecast{}, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	var rows [][]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		p.logger.Warn("kp forecast body is not a table", zap.Error(err))
		return weather.GeomagneticForecast{}, nil
	}

	forecast, err := weather.DecodeKpTable(rows)
	if err != nil {
		p.logger.Warn("kp forecast table is malformed", zap.Error(err))
		return weather.GeomagneticForecast{}, nil
	}
	return forecast, nil
}
