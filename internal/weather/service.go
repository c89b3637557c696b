package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service runs one fetch+normalize cycle and publishes the result to the store.
type Service struct {
	store       Store
	locator     Locator
	primary     PrimarySource
	geomagnetic GeomagneticSource
	logger      *zap.Logger
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the wall clock used to align forecasts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new Service. geomagnetic may be nil, in which case
// snapshots carry no K-index data.
func NewService(store Store, locator Locator, primary PrimarySource, geomagnetic GeomagneticSource, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:       store,
		locator:     locator,
		primary:     primary,
		geomagnetic: geomagnetic,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAndStore resolves the position, queries both feeds and the reverse
// lookup concurrently, normalizes the result and stores it as the current report.
// On error nothing is stored and the previous report stays current.
func (s *Service) FetchAndStore(ctx context.Context) (Report, error) {
	if s.primary == nil {
		return Report{}, ErrNoSources
	}

	coords, err := s.locator.Locate(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("resolve location: %w", err)
	}

	var (
		place   Place
		primary RawPrimaryForecast
		geo     GeomagneticForecast
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		place = Place{
			Name:        s.locator.PlaceName(gctx, coords),
			Coordinates: coords,
		}
		return nil
	})

	g.Go(func() error {
		raw, err := s.primary.FetchPrimary(gctx, coords)
		if err != nil {
			return err
		}
		primary = raw
		return nil
	})

	if s.geomagnetic != nil {
		g.Go(func() error {
			f, err := s.geomagnetic.FetchGeomagnetic(gctx)
			if err != nil {
				// Degrade to Kp 0; never fail the cycle for this source.
				s.logger.Warn("geomagnetic fetch failed; continuing without kp data",
					zap.String("provider", s.geomagnetic.Name()),
					zap.Error(err),
				)
				return nil
			}
			geo = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("primary forecast fetch failed",
			zap.String("provider", s.primary.Name()),
			zap.Error(err),
		)
		return Report{}, err
	}

	// The caller went away while requests were in flight; drop the result.
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	now := s.now()
	report := Report{
		ID:        uuid.NewString(),
		Location:  place,
		FetchedAt: now.UTC(),
		Snapshot:  Normalize(primary, geo, now),
	}
	s.store.SaveSnapshot(report)

	s.logger.Debug("published report",
		zap.String("id", report.ID),
		zap.String("location", place.Name),
		zap.Int("kp_points", len(report.Snapshot.KpForecast)),
		zap.Int("wind_points", len(report.Snapshot.WindForecast)),
	)
	return report, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest() (Report, error) {
	return s.store.GetLatest()
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(from, to time.Time) ([]Report, error) {
	return s.store.GetRange(from, to)
}
