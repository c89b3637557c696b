package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/i474232898/fpv-flight-conditions/internal/location"
	"github.com/i474232898/fpv-flight-conditions/internal/scheduler"
	"github.com/i474232898/fpv-flight-conditions/internal/store"
	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

type fakeRefresher struct {
	status     scheduler.Status
	refreshErr error
	refreshes  int
}

func (f *fakeRefresher) Status() scheduler.Status { return f.status }

func (f *fakeRefresher) Refresh(context.Context) error {
	f.refreshes++
	return f.refreshErr
}

type fakeLocation struct {
	fix     *weather.Coordinates
	granted *bool
}

func (f *fakeLocation) RecordFix(at weather.Coordinates) { f.fix = &at }
func (f *fakeLocation) SetPermission(granted bool)       { f.granted = &granted }

func newTestApp(ref *fakeRefresher, reports ReportStore, loc *fakeLocation) *fiber.App {
	app := NewApp("fpv-flight-conditions-test")
	RegisterRoutes(app, ref, reports, loc, zap.NewNop())
	return app
}

func sampleReport(at time.Time) weather.Report {
	return weather.Report{
		ID:        "c0ffee",
		Location:  weather.Place{Name: "Kraków, Lesser Poland", Coordinates: weather.Coordinates{Lat: 50.06, Lon: 19.94}},
		FetchedAt: at,
		Snapshot: weather.Snapshot{
			Temp:      18,
			Condition: weather.ConditionPartlyCloudy,
			KpIndex:   2.33,
		},
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestConditionsBeforeFirstReport(t *testing.T) {
	ref := &fakeRefresher{status: scheduler.Status{State: scheduler.StateFetching}}
	app := newTestApp(ref, store.NewMemoryStore(0, 0), &fakeLocation{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conditions", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	decode(t, resp, &body)
	if body["loading"] != true {
		t.Errorf("expected loading=true, got %v", body["loading"])
	}
	if body["snapshot"] != nil || body["location"] != nil || body["error"] != nil {
		t.Errorf("expected empty snapshot, location and error, got %v", body)
	}
}

func TestConditionsWithReportAndError(t *testing.T) {
	report := sampleReport(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ref := &fakeRefresher{status: scheduler.Status{
		State:  scheduler.StateIdle,
		Report: &report,
		Err:    weather.ErrPermissionDenied,
	}}
	app := newTestApp(ref, store.NewMemoryStore(0, 0), &fakeLocation{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conditions", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Loading  bool              `json:"loading"`
		Error    *string           `json:"error"`
		Location *weather.Place    `json:"location"`
		Snapshot *weather.Snapshot `json:"snapshot"`
		ReportID string            `json:"reportId"`
	}
	decode(t, resp, &body)

	if body.Loading {
		t.Error("expected loading=false")
	}
	if body.Error == nil || *body.Error != "Permission to access location was denied" {
		t.Errorf("unexpected error message: %v", body.Error)
	}
	if body.Location == nil || body.Location.Name != report.Location.Name {
		t.Errorf("unexpected location: %+v", body.Location)
	}
	if body.Snapshot == nil || body.Snapshot.Condition != weather.ConditionPartlyCloudy {
		t.Errorf("unexpected snapshot: %+v", body.Snapshot)
	}
	if body.ReportID != report.ID {
		t.Errorf("expected report id %s, got %s", report.ID, body.ReportID)
	}
}

func TestRefreshStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"in progress", scheduler.ErrRefreshInProgress, http.StatusConflict},
		{"permission denied", weather.ErrPermissionDenied, http.StatusForbidden},
		{"no fix", location.ErrNoFix, http.StatusUnprocessableEntity},
		{"upstream", &weather.UpstreamError{Source: "open-meteo", Status: 503}, http.StatusBadGateway},
		{"stopped", scheduler.ErrStopped, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &fakeRefresher{refreshErr: tt.err}
			app := newTestApp(ref, store.NewMemoryStore(0, 0), &fakeLocation{})

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/conditions/refresh", nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if ref.refreshes != 1 {
				t.Fatalf("expected 1 refresh, got %d", ref.refreshes)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	memStore := store.NewMemoryStore(0, 0)
	memStore.SaveSnapshot(sampleReport(base))
	memStore.SaveSnapshot(sampleReport(base.Add(5 * time.Minute)))

	app := newTestApp(&fakeRefresher{}, memStore, &fakeLocation{})

	tests := []struct {
		name  string
		query string
		want  int
		count int
	}{
		{"rfc3339 range", "from=2025-06-01T11:00:00Z&to=2025-06-01T13:00:00Z", http.StatusOK, 2},
		{"unix range", "from=1748779200&to=1748779200", http.StatusOK, 1},
		{"missing to", "from=2025-06-01T11:00:00Z", http.StatusBadRequest, 0},
		{"bad format", "from=yesterday&to=today", http.StatusBadRequest, 0},
		{"reversed", "from=2025-06-01T13:00:00Z&to=2025-06-01T11:00:00Z", http.StatusBadRequest, 0},
		{"empty range", "from=2025-06-02T00:00:00Z&to=2025-06-02T01:00:00Z", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conditions/history?"+tt.query, nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if tt.want != http.StatusOK {
				return
			}

			var body struct {
				Reports []weather.Report `json:"reports"`
			}
			decode(t, resp, &body)
			if len(body.Reports) != tt.count {
				t.Fatalf("expected %d reports, got %d", tt.count, len(body.Reports))
			}
		})
	}
}

func TestLocationFix(t *testing.T) {
	loc := &fakeLocation{}
	app := newTestApp(&fakeRefresher{}, store.NewMemoryStore(0, 0), loc)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"latitude": 50.06, "longitude": 19.94}`, http.StatusNoContent},
		{"equator", `{"latitude": 0, "longitude": 0}`, http.StatusNoContent},
		{"missing longitude", `{"latitude": 50.06}`, http.StatusBadRequest},
		{"out of range", `{"latitude": 91, "longitude": 0}`, http.StatusBadRequest},
		{"not json", `lat=1`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc.fix = nil
			req := httptest.NewRequest(http.MethodPut, "/api/v1/location/fix", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if (tt.want == http.StatusNoContent) != (loc.fix != nil) {
				t.Fatalf("fix recorded=%v for status %d", loc.fix != nil, resp.StatusCode)
			}
		})
	}
}

func TestLocationPermission(t *testing.T) {
	loc := &fakeLocation{}
	app := newTestApp(&fakeRefresher{}, store.NewMemoryStore(0, 0), loc)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/location/permission", strings.NewReader(`{"granted": false}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if loc.granted == nil || *loc.granted {
		t.Fatalf("expected permission to be revoked, got %v", loc.granted)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/location/permission", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing field, got %d", resp.StatusCode)
	}
}

func TestStreamReports(t *testing.T) {
	updates := make(chan weather.Report, 1)
	updates <- sampleReport(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	close(updates)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	streamReports(w, updates, zap.NewNop())

	out := buf.String()
	if !strings.HasPrefix(out, "id: c0ffee\nevent: report\ndata: {") {
		t.Fatalf("unexpected event framing: %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("expected event to end with a blank line: %q", out)
	}
	if !strings.Contains(out, `"kpIndex":2.33`) {
		t.Fatalf("expected snapshot payload in event: %q", out)
	}
}

func TestStreamDropsUnencodableReport(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	bad := sampleReport(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	bad.ID = "bad"
	bad.Snapshot.Temp = math.NaN()
	good := sampleReport(time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC))

	updates := make(chan weather.Report, 2)
	updates <- bad
	updates <- good
	close(updates)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	streamReports(w, updates, zap.New(core))

	out := buf.String()
	if strings.Contains(out, "id: bad") {
		t.Fatalf("unencodable report must not be streamed: %q", out)
	}
	if !strings.Contains(out, "id: c0ffee") {
		t.Fatalf("expected the following report to be streamed: %q", out)
	}

	entries := logs.FilterField(zap.String("id", "bad")).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry for the dropped report, got %d", len(entries))
	}
}

func TestStreamDeliversEveryPublish(t *testing.T) {
	orig := streamKeepAlive
	streamKeepAlive = 50 * time.Millisecond
	defer func() { streamKeepAlive = orig }()

	memStore := store.NewMemoryStore(0, 0)
	app := newTestApp(&fakeRefresher{}, memStore, &fakeLocation{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+ln.Addr().String()+"/api/v1/conditions/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	// Headers arrive before any report is published.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		report := sampleReport(base.Add(time.Duration(i) * 5 * time.Minute))
		report.ID = fmt.Sprintf("report-%d", i)
		memStore.SaveSnapshot(report)

		// Keep-alive comments may interleave with events.
		want := "id: " + report.ID
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("event %d: stream ended: %v", i, err)
			}
			if strings.TrimRight(line, "\n") != want {
				continue
			}
			next, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("event %d: stream ended: %v", i, err)
			}
			if next != "event: report\n" {
				t.Fatalf("event %d: expected report event, got %q", i, next)
			}
			break
		}

		// Span several keep-alive periods between publishes.
		time.Sleep(200 * time.Millisecond)
	}
}
