package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

var (
	// ErrNotFound is returned when no report has been published yet, or none falls in a range.
	ErrNotFound = errors.New("no weather report available")
)

// MemoryStore is a concurrency-safe in-memory report history. The newest
// report is the current one; every save is broadcast to subscribers.
type MemoryStore struct {
	mu sync.RWMutex

	// time-ordered, oldest first
	reports []weather.Report

	// retention configuration
	maxHistory int           // max number of reports kept
	maxAge     time.Duration // optional max age for reports

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan weather.Report
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		subs:       make(map[int]chan weather.Report),
	}
}

// SaveSnapshot appends a report, enforces retention and notifies subscribers.
func (s *MemoryStore) SaveSnapshot(report weather.Report) {
	s.mu.Lock()
	s.reports = append(s.reports, report)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.reports) > s.maxHistory {
		over := len(s.reports) - s.maxHistory
		s.reports = s.reports[over:]
	}

	// Enforce retention by age; the newest report always survives.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.reports)-1; i++ {
			if !s.reports[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		s.reports = s.reports[i:]
	}
	s.mu.Unlock()

	s.broadcast(report)
}

// GetLatest returns the current report.
func (s *MemoryStore) GetLatest() (weather.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return weather.Report{}, ErrNotFound
	}
	return s.reports[len(s.reports)-1], nil
}

// GetRange returns all reports fetched between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]weather.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Report
	for _, r := range s.reports {
		if !r.FetchedAt.Before(from) && !r.FetchedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Subscribe returns a channel receiving every report saved from now on, and a
// function that cancels the subscription and closes the channel. A slow
// subscriber only ever sees the newest pending report.
func (s *MemoryStore) Subscribe() (<-chan weather.Report, func()) {
	ch := make(chan weather.Report, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *MemoryStore) broadcast(report weather.Report) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		// Drop a stale pending report so the newest one fits.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- report:
		default:
		}
	}
}
