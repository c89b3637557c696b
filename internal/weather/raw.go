package weather

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RawCurrent holds the "current" block of the Open-Meteo forecast response.
type RawCurrent struct {
	Time                string  `json:"time"`
	Temperature         float64 `json:"temperature_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	Precipitation       float64 `json:"precipitation"`
	WeatherCode         int     `json:"weather_code"`
	WindSpeed           float64 `json:"wind_speed_10m"`
	WindGusts           float64 `json:"wind_gusts_10m"`
	RelativeHumidity    float64 `json:"relative_humidity_2m"`
}

// RawMinutely15 holds the parallel 15-minute arrays. Null cells decode as zero;
// short or missing arrays yield shorter forecast windows.
type RawMinutely15 struct {
	Time                     []string  `json:"time"`
	Precipitation            []float64 `json:"precipitation"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	WindSpeed                []float64 `json:"wind_speed_10m"`
	WindGusts                []float64 `json:"wind_gusts_10m"`
	WindDirection            []float64 `json:"wind_direction_10m"`
	Temperature              []float64 `json:"temperature_2m"`
	ApparentTemperature      []float64 `json:"apparent_temperature"`
}

// RawHourly holds the hourly block; only visibility (meters) is requested.
type RawHourly struct {
	Time       []string  `json:"time"`
	Visibility []float64 `json:"visibility"`
}

// RawDaily holds the daily block; only the peak UV index is requested.
type RawDaily struct {
	Time       []string  `json:"time"`
	UVIndexMax []float64 `json:"uv_index_max"`
}

// RawPrimaryForecast is the decoded Open-Meteo forecast response.
type RawPrimaryForecast struct {
	Timezone         string        `json:"timezone"`
	UTCOffsetSeconds int           `json:"utc_offset_seconds"`
	Current          *RawCurrent   `json:"current" validate:"required"`
	Minutely15       RawMinutely15 `json:"minutely_15"`
	Hourly           RawHourly     `json:"hourly"`
	Daily            RawDaily      `json:"daily"`
}

// Validate checks the fields the normalizer cannot work without.
func (r RawPrimaryForecast) Validate() error {
	return validate.Struct(r)
}

// at returns values[i], or 0 when the series is shorter than i+1.
func at(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return 0
	}
	return values[i]
}
