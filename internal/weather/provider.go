package weather

import (
	"context"
	"time"
)

// PrimarySource fetches the general weather forecast for a position. Any error
// it returns is fatal for the refresh cycle.
type PrimarySource interface {
	Name() string
	FetchPrimary(ctx context.Context, at Coordinates) (RawPrimaryForecast, error)
}

// GeomagneticSource fetches the planetary K-index forecast. Its failures only
// degrade the snapshot; an empty forecast is a valid result.
type GeomagneticSource interface {
	Name() string
	FetchGeomagnetic(ctx context.Context) (GeomagneticForecast, error)
}

// Locator resolves the caller's position and a display label for it.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
	PlaceName(ctx context.Context, at Coordinates) string
}

// Store is the contract the in-memory report store must satisfy.
type Store interface {
	SaveSnapshot(report Report)
	GetLatest() (Report, error)
	GetRange(from, to time.Time) ([]Report, error)
}
