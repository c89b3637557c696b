package location

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/fpv-flight-conditions/internal/common"
	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

// DefaultNominatimURL is the OpenStreetMap reverse geocoding endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"

// Nominatim is a ReverseGeocoder backed by OpenStreetMap. It needs no API key.
type Nominatim struct {
	client  *resty.Client
	baseURL string
}

// NominatimResponse is the subset of the /reverse response we read.
type NominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Suburb  string `json:"suburb"`
		County  string `json:"county"`
		State   string `json:"state"`
	} `json:"address"`
}

// NewNominatim creates a client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewNominatim(httpClient *http.Client, baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := resty.NewWithClient(httpClient).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(1)

	return &Nominatim{
		client:  client,
		baseURL: baseURL,
	}
}

// Reverse looks up the address of a position at town level.
func (n *Nominatim) Reverse(ctx context.Context, at weather.Coordinates) (Address, error) {
	var out NominatimResponse

	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":         "json",
			"lat":            strconv.FormatFloat(at.Lat, 'f', 6, 64),
			"lon":            strconv.FormatFloat(at.Lon, 'f', 6, 64),
			"zoom":           "10",
			"addressdetails": "1",
		}).
		SetResult(&out).
		Get(n.baseURL)
	if err != nil {
		return Address{}, fmt.Errorf("nominatim reverse: %w", err)
	}
	if resp.IsError() {
		return Address{}, fmt.Errorf("nominatim reverse: status %d", resp.StatusCode())
	}

	return Address{
		City:     common.FirstNonEmpty(out.Address.City, out.Address.Town, out.Address.Village),
		District: common.FirstNonEmpty(out.Address.Suburb, out.Address.County),
		Region:   out.Address.State,
	}, nil
}
