package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

var errNoAddress = errors.New("reverse geocode returned no address")

// GoogleGeocoder uses the Google Geocoding API both as an active fixer (by
// geocoding a configured city) and as a reverse geocoder.
type GoogleGeocoder struct {
	home geocoder.Address
}

// NewGoogleGeocoder configures the geocoding client. The geocoder library keeps
// its API key in a package variable, so only one key per process is supported.
func NewGoogleGeocoder(apiKey, city, country string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		home: geocoder.Address{
			City:    city,
			Country: country,
		},
	}
}

// Fix geocodes the configured city and country.
func (g *GoogleGeocoder) Fix(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}
	if g.home.City == "" {
		return weather.Coordinates{}, errors.New("geocoder: no city configured")
	}

	loc, err := geocoder.Geocoding(g.home)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocode %s,%s: %w", g.home.City, g.home.Country, err)
	}
	return weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}

// Reverse looks up the address closest to a position.
func (g *GoogleGeocoder) Reverse(ctx context.Context, at weather.Coordinates) (Address, error) {
	if err := ctx.Err(); err != nil {
		return Address{}, err
	}

	addrs, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  at.Lat,
		Longitude: at.Lon,
	})
	if err != nil {
		return Address{}, fmt.Errorf("reverse geocode: %w", err)
	}
	if len(addrs) == 0 {
		return Address{}, errNoAddress
	}

	a := addrs[0]
	return Address{
		City:     a.City,
		District: a.District,
		Region:   a.State,
	}, nil
}
