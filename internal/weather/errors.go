package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when location access has not been granted.
	// No forecast can be fetched until the user grants it again.
	ErrPermissionDenied = errors.New("location access was not granted")

	// ErrNoSources is returned when the service was built without a primary source.
	ErrNoSources = errors.New("no primary forecast source configured")
)

// UpstreamError reports a failed primary feed request. Status carries a
// non-success HTTP status only; it is 0 for transport, decode and validation
// failures.
type UpstreamError struct {
	Source string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: upstream status %d: %v", e.Source, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: upstream status %d", e.Source, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	default:
		return e.Source + ": upstream error"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
