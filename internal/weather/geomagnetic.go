package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	kpTimeLayout      = "2006-01-02 15:04:05"
	kpForecastEntries = 5
)

var (
	errKpTableTooShort = errors.New("kp table has no data rows")
	errKpRowTooShort   = errors.New("kp row has fewer than 2 cells")
)

// KpReading is one row of the planetary K-index table.
type KpReading struct {
	Time  time.Time // UTC
	Value float64
}

// GeomagneticForecast is the decoded K-index table, ordered by time ascending.
// An empty forecast means the source failed or had nothing usable.
type GeomagneticForecast []KpReading

// DecodeKpTable converts the NOAA SWPC table (header row followed by
// [time_tag, kp, ...] rows) into readings. Any malformed data row rejects the
// whole table; callers treat that the same as an unavailable source.
func DecodeKpTable(rows [][]any) (GeomagneticForecast, error) {
	if len(rows) < 2 {
		return nil, errKpTableTooShort
	}

	out := make(GeomagneticForecast, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: %w", i+1, errKpRowTooShort)
		}

		ts, err := parseKpTime(cellString(row[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(cellString(row[1])), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid kp value: %w", i+1, err)
		}

		out = append(out, KpReading{Time: ts, Value: v})
	}
	return out, nil
}

func parseKpTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Some SWPC products append milliseconds; the fractional part is optional.
	if ts, err := time.ParseInLocation(kpTimeLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid kp timestamp %q", s)
}

func cellString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return ""
	}
}

// currentKpIndex returns the index of the last reading not after now. If no
// reading is after now, or the very first one already is, the last reading wins.
func currentKpIndex(geo GeomagneticForecast, now time.Time) int {
	next := -1
	for i, r := range geo {
		if r.Time.After(now) {
			next = i
			break
		}
	}
	if next <= 0 {
		return len(geo) - 1
	}
	return next - 1
}

// reduceKp derives the current K-index and the short forecast series starting at it.
func reduceKp(geo GeomagneticForecast, now time.Time, offset time.Duration) (float64, []KpEntry) {
	if len(geo) == 0 {
		return 0, []KpEntry{}
	}

	cur := currentKpIndex(geo, now)
	end := min(cur+kpForecastEntries, len(geo))

	series := make([]KpEntry, 0, end-cur)
	for _, r := range geo[cur:end] {
		series = append(series, KpEntry{
			Hour:  fmt.Sprintf("%d:00", r.Time.Add(offset).Hour()),
			Value: r.Value,
		})
	}
	return geo[cur].Value, series
}
