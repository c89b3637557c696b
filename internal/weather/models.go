package weather

import (
	"time"
)

// Condition is the human-readable label derived from a WMO weather code.
type Condition string

const (
	ConditionClear        Condition = "Clear sky"
	ConditionPartlyCloudy Condition = "Partly cloudy"
	ConditionFog          Condition = "Fog"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionRain         Condition = "Rain"
	ConditionSnow         Condition = "Snow"
	ConditionHeavyRain    Condition = "Heavy rain"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionUnknown      Condition = "Unknown"
)

// KpStatus buckets the planetary K-index the way pilots read it before a flight.
type KpStatus string

const (
	KpQuiet     KpStatus = "quiet"
	KpUnsettled KpStatus = "unsettled"
	KpStorm     KpStatus = "storm"
)

// PrecipitationType is a coarse classification of a 15-minute precipitation slot.
type PrecipitationType string

const (
	PrecipitationNone PrecipitationType = "none"
	PrecipitationRain PrecipitationType = "rain"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Place is a resolved position with its display label.
type Place struct {
	Name string `json:"name"`
	Coordinates
}

// KpEntry is a single point of the geomagnetic forecast series.
type KpEntry struct {
	Hour  string  `json:"hour"`
	Value float64 `json:"value"`
}

// WindEntry is a single 15-minute wind forecast point.
type WindEntry struct {
	Time      string  `json:"time"`
	Speed     float64 `json:"speed"`
	Gust      float64 `json:"gust"`
	Direction float64 `json:"direction"`
}

// PrecipitationEntry is a single 15-minute precipitation forecast point.
type PrecipitationEntry struct {
	Time        string            `json:"time"`
	Amount      float64           `json:"amount"`
	Probability float64           `json:"probability"`
	Type        PrecipitationType `json:"type"`
}

// TemperatureEntry is a single 15-minute temperature forecast point.
type TemperatureEntry struct {
	Time      string  `json:"time"`
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feelsLike"`
}

// Snapshot is the normalized weather and geomagnetic state computed for one instant.
// A Snapshot is never modified after Normalize returns it.
type Snapshot struct {
	GeneratedAt time.Time `json:"generatedAt"` // always UTC

	Temp          float64   `json:"temp"`
	Condition     Condition `json:"condition"`
	FeelsLike     float64   `json:"feelsLike"`
	WindSpeed     float64   `json:"windSpeed"`
	WindGusts     float64   `json:"windGusts"`
	KpIndex       float64   `json:"kpIndex"`
	KpStatus      KpStatus  `json:"kpStatus"`
	Visibility    float64   `json:"visibility"` // km
	Precipitation float64   `json:"precipitation"`
	Humidity      float64   `json:"humidity"`
	UVIndex       float64   `json:"uvIndex"`

	KpForecast            []KpEntry            `json:"kpForecast"`
	WindForecast          []WindEntry          `json:"windForecast"`
	PrecipitationForecast []PrecipitationEntry `json:"precipitationForecast"`
	TempForecast          []TemperatureEntry   `json:"tempForecast"`
}

// Report is the unit published to consumers: one snapshot plus where and when it was fetched.
type Report struct {
	ID        string    `json:"id"`
	Location  Place     `json:"location"`
	FetchedAt time.Time `json:"fetchedAt"`
	Snapshot  Snapshot  `json:"snapshot"`
}
