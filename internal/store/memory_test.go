package store

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

func report(id int, at time.Time) weather.Report {
	return weather.Report{
		ID:        strconv.Itoa(id),
		Location:  weather.Place{Name: "Field"},
		FetchedAt: at,
		Snapshot:  weather.Snapshot{Temp: float64(id)},
	}
}

func TestGetLatestEmpty(t *testing.T) {
	s := NewMemoryStore(0, 0)
	if _, err := s.GetLatest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndGetLatest(t *testing.T) {
	s := NewMemoryStore(0, 0)
	now := time.Now().UTC()

	s.SaveSnapshot(report(1, now.Add(-time.Minute)))
	s.SaveSnapshot(report(2, now))

	latest, err := s.GetLatest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.ID != "2" {
		t.Fatalf("expected latest report 2, got %s", latest.ID)
	}
}

func TestRetentionByCount(t *testing.T) {
	s := NewMemoryStore(3, 0)
	now := time.Now().UTC()

	for i := 1; i <= 5; i++ {
		s.SaveSnapshot(report(i, now.Add(time.Duration(i)*time.Second)))
	}

	all, err := s.GetRange(now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(all))
	}
	if all[0].ID != "3" || all[2].ID != "5" {
		t.Fatalf("expected reports 3..5, got %s..%s", all[0].ID, all[2].ID)
	}
}

func TestRetentionByAge(t *testing.T) {
	s := NewMemoryStore(0, time.Hour)
	now := time.Now().UTC()

	s.SaveSnapshot(report(1, now.Add(-3*time.Hour)))
	s.SaveSnapshot(report(2, now.Add(-2*time.Hour)))
	s.SaveSnapshot(report(3, now))

	all, err := s.GetRange(now.Add(-24*time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].ID != "3" {
		t.Fatalf("expected only report 3, got %+v", all)
	}
}

func TestRetentionByAgeKeepsNewest(t *testing.T) {
	s := NewMemoryStore(0, time.Hour)
	old := time.Now().UTC().Add(-5 * time.Hour)

	s.SaveSnapshot(report(1, old))

	latest, err := s.GetLatest()
	if err != nil {
		t.Fatalf("expected the stale report to remain current, got %v", err)
	}
	if latest.ID != "1" {
		t.Fatalf("expected report 1, got %s", latest.ID)
	}
}

func TestGetRangeInclusive(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.SaveSnapshot(report(i, base.Add(time.Duration(i)*5*time.Minute)))
	}

	got, err := s.GetRange(base.Add(5*time.Minute), base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("expected reports 1 and 2, got %+v", got)
	}

	if _, err := s.GetRange(base.Add(time.Hour), base.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty range, got %v", err)
	}
}

func TestSubscribeReceivesSaves(t *testing.T) {
	s := NewMemoryStore(0, 0)
	updates, cancel := s.Subscribe()
	defer cancel()

	s.SaveSnapshot(report(1, time.Now().UTC()))

	select {
	case r := <-updates:
		if r.ID != "1" {
			t.Fatalf("expected report 1, got %s", r.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for report")
	}
}

func TestSlowSubscriberSeesNewest(t *testing.T) {
	s := NewMemoryStore(0, 0)
	updates, cancel := s.Subscribe()
	defer cancel()

	now := time.Now().UTC()
	s.SaveSnapshot(report(1, now))
	s.SaveSnapshot(report(2, now.Add(time.Second)))
	s.SaveSnapshot(report(3, now.Add(2*time.Second)))

	r := <-updates
	if r.ID != "3" {
		t.Fatalf("expected newest report 3, got %s", r.ID)
	}
	select {
	case extra := <-updates:
		t.Fatalf("expected no further reports, got %s", extra.ID)
	default:
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	s := NewMemoryStore(0, 0)
	updates, cancel := s.Subscribe()

	cancel()
	cancel()

	if _, ok := <-updates; ok {
		t.Fatal("expected channel to be closed")
	}

	// Saving after cancel must not panic on the closed channel.
	s.SaveSnapshot(report(1, time.Now().UTC()))
}
