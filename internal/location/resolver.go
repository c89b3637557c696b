// Package location resolves where the pilot is: a recent fix reported by the
// app when available, an active fix otherwise, plus a short place label.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/i474232898/fpv-flight-conditions/internal/common"
	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

// DefaultPlaceName labels a position the reverse lookup could not name.
const DefaultPlaceName = "My location"

const (
	lastFixKey   = "last"
	placeNameTTL = time.Hour
)

// ErrNoFix is returned when neither a recent nor an active fix is available.
var ErrNoFix = errors.New("no location fix available")

// Address is the subset of a reverse lookup used to build a place label.
type Address struct {
	City     string
	District string
	Region   string
}

// Fixer actively determines the current position.
type Fixer interface {
	Fix(ctx context.Context) (weather.Coordinates, error)
}

// ReverseGeocoder turns a position into an administrative address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, at weather.Coordinates) (Address, error)
}

// StaticFixer always reports the same configured position.
type StaticFixer struct {
	At weather.Coordinates
}

func (f StaticFixer) Fix(context.Context) (weather.Coordinates, error) {
	return f.At, nil
}

// Config configures a Resolver.
type Config struct {
	Granted   bool
	FixMaxAge time.Duration // how long a reported fix counts as last-known
	Active    Fixer
	Reverse   ReverseGeocoder
	Logger    *zap.Logger
}

// Resolver implements weather.Locator.
type Resolver struct {
	granted atomic.Bool
	fixes   *cache.Cache
	names   *cache.Cache
	active  Fixer
	reverse ReverseGeocoder
	logger  *zap.Logger
}

// NewResolver creates a Resolver. Active and Reverse may be nil.
func NewResolver(cfg Config) *Resolver {
	maxAge := cfg.FixMaxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{
		fixes:   cache.New(maxAge, 2*maxAge),
		names:   cache.New(placeNameTTL, 2*placeNameTTL),
		active:  cfg.Active,
		reverse: cfg.Reverse,
		logger:  logger,
	}
	r.granted.Store(cfg.Granted)
	return r
}

// SetPermission records whether the user allows location access.
func (r *Resolver) SetPermission(granted bool) {
	r.granted.Store(granted)
	r.logger.Info("location permission changed", zap.Bool("granted", granted))
}

// Permitted reports whether location access is currently granted.
func (r *Resolver) Permitted() bool {
	return r.granted.Load()
}

// RecordFix stores a position reported by the device as the last-known fix.
func (r *Resolver) RecordFix(at weather.Coordinates) {
	r.fixes.Set(lastFixKey, at, cache.DefaultExpiration)
}

// LastKnown returns the last-known fix if it has not expired.
func (r *Resolver) LastKnown() (weather.Coordinates, bool) {
	v, ok := r.fixes.Get(lastFixKey)
	if !ok {
		return weather.Coordinates{}, false
	}
	at, ok := v.(weather.Coordinates)
	return at, ok
}

// Locate returns the best-known position: the last-known fix when fresh,
// otherwise an active fix. It fails with weather.ErrPermissionDenied when
// location access is not granted.
func (r *Resolver) Locate(ctx context.Context) (weather.Coordinates, error) {
	if !r.Permitted() {
		return weather.Coordinates{}, weather.ErrPermissionDenied
	}

	if at, ok := r.LastKnown(); ok {
		return at, nil
	}

	if r.active == nil {
		return weather.Coordinates{}, ErrNoFix
	}

	at, err := r.active.Fix(ctx)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: %w", ErrNoFix, err)
	}
	r.RecordFix(at)
	return at, nil
}

// PlaceName returns a short label for a position. It never fails: lookup
// errors and empty results fall back to DefaultPlaceName.
func (r *Resolver) PlaceName(ctx context.Context, at weather.Coordinates) string {
	if r.reverse == nil {
		return DefaultPlaceName
	}

	key := placeKey(at)
	if v, ok := r.names.Get(key); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}

	addr, err := r.reverse.Reverse(ctx, at)
	if err != nil {
		r.logger.Warn("reverse geocode failed", zap.Error(err))
		return DefaultPlaceName
	}

	name := Label(addr)
	if name != DefaultPlaceName {
		r.names.Set(key, name, cache.DefaultExpiration)
	}
	return name
}

// Label formats an address as "<city or district>, <region>".
func Label(a Address) string {
	name := common.JoinNonEmpty(", ", common.FirstNonEmpty(a.City, a.District), a.Region)
	if name == "" {
		return DefaultPlaceName
	}
	return name
}

// placeKey rounds to 2 decimals (about 1 km) so nearby fixes share a lookup.
func placeKey(at weather.Coordinates) string {
	const precision = 100.0
	return fmt.Sprintf("%.2f,%.2f",
		math.Round(at.Lat*precision)/precision,
		math.Round(at.Lon*precision)/precision,
	)
}
