package weather

import (
	"strings"
	"time"
)

const (
	seriesEntries     = 10
	slotsPerHour      = 4
	slotMinutes       = 15
	defaultVisibility = 10.0 // km
	minutelyLayout    = "2006-01-02T15:04"
)

// alignment maps "now" onto the forecast location's hourly and 15-minute arrays.
type alignment struct {
	hourIndex int
	slotIndex int
}

// align shifts now by the location's UTC offset and reads the result as UTC
// components, so the host's own time zone never takes part.
func align(now time.Time, offset time.Duration) alignment {
	local := now.UTC().Add(offset)
	hour := local.Hour()
	return alignment{
		hourIndex: hour,
		slotIndex: hour*slotsPerHour + local.Minute()/slotMinutes,
	}
}

// window returns the half-open index range of at most seriesEntries slots
// starting at start. The range is empty when start is past the end.
func window(start, length int) (int, int) {
	if start >= length {
		return length, length
	}
	return start, min(start+seriesEntries, length)
}

// Normalize builds a Snapshot from the primary forecast, the decoded K-index
// table (possibly empty) and the instant to compute for. It has no side effects.
func Normalize(primary RawPrimaryForecast, geo GeomagneticForecast, now time.Time) Snapshot {
	offset := time.Duration(primary.UTCOffsetSeconds) * time.Second
	a := align(now, offset)

	var cur RawCurrent
	if primary.Current != nil {
		cur = *primary.Current
	}

	kp, kpSeries := reduceKp(geo, now, offset)
	m := primary.Minutely15
	from, to := window(a.slotIndex, len(m.Time))

	return Snapshot{
		GeneratedAt:           now.UTC(),
		Temp:                  cur.Temperature,
		Condition:             ConditionFromCode(cur.WeatherCode),
		FeelsLike:             cur.ApparentTemperature,
		WindSpeed:             cur.WindSpeed,
		WindGusts:             cur.WindGusts,
		KpIndex:               kp,
		KpStatus:              StatusFromKp(kp),
		Visibility:            visibilityKm(primary.Hourly.Visibility, a.hourIndex),
		Precipitation:         cur.Precipitation,
		Humidity:              cur.RelativeHumidity,
		UVIndex:               at(primary.Daily.UVIndexMax, 0),
		KpForecast:            kpSeries,
		WindForecast:          windSeries(m, from, to),
		PrecipitationForecast: precipitationSeries(m, from, to),
		TempForecast:          temperatureSeries(m, from, to),
	}
}

func visibilityKm(meters []float64, hour int) float64 {
	v := at(meters, hour)
	if v == 0 {
		return defaultVisibility
	}
	return v / 1000
}

func windSeries(m RawMinutely15, from, to int) []WindEntry {
	out := make([]WindEntry, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, WindEntry{
			Time:      clockLabel(m.Time[i]),
			Speed:     at(m.WindSpeed, i),
			Gust:      at(m.WindGusts, i),
			Direction: at(m.WindDirection, i),
		})
	}
	return out
}

func precipitationSeries(m RawMinutely15, from, to int) []PrecipitationEntry {
	out := make([]PrecipitationEntry, 0, to-from)
	for i := from; i < to; i++ {
		amount := at(m.Precipitation, i)
		kind := PrecipitationNone
		if amount > 0 {
			kind = PrecipitationRain
		}
		out = append(out, PrecipitationEntry{
			Time:        timeOfDay(m.Time[i]),
			Amount:      amount,
			Probability: at(m.PrecipitationProbability, i),
			Type:        kind,
		})
	}
	return out
}

func temperatureSeries(m RawMinutely15, from, to int) []TemperatureEntry {
	out := make([]TemperatureEntry, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, TemperatureEntry{
			Time:      timeOfDay(m.Time[i]),
			Temp:      at(m.Temperature, i),
			FeelsLike: at(m.ApparentTemperature, i),
		})
	}
	return out
}

// clockLabel re-formats a slot timestamp as HH:MM. Timestamps are already in
// the location's local time because the feed is asked for timezone=auto.
func clockLabel(ts string) string {
	t, err := time.Parse(minutelyLayout, ts)
	if err != nil {
		return timeOfDay(ts)
	}
	return t.Format("15:04")
}

// timeOfDay returns the part of an ISO-8601 timestamp after the "T".
func timeOfDay(ts string) string {
	if _, after, ok := strings.Cut(ts, "T"); ok {
		return after
	}
	return ts
}
