package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("zoom") != "10" || q.Get("addressdetails") != "1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("lat") != "50.061400" || q.Get("lon") != "19.936600" {
			t.Errorf("unexpected position: lat=%s lon=%s", q.Get("lat"), q.Get("lon"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "fpv-test/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"display_name": "Kraków, Lesser Poland Voivodeship, Poland",
			"address": {"town": "Kraków", "county": "Kraków", "state": "Lesser Poland Voivodeship"}
		}`))
	}))
	defer srv.Close()

	n := NewNominatim(srv.Client(), srv.URL, "fpv-test/1.0")
	addr, err := n.Reverse(context.Background(), weather.Coordinates{Lat: 50.0614, Lon: 19.9366})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Address{City: "Kraków", District: "Kraków", Region: "Lesser Poland Voivodeship"}
	if addr != want {
		t.Fatalf("expected %+v, got %+v", want, addr)
	}
}

func TestNominatimErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewNominatim(srv.Client(), srv.URL, "fpv-test/1.0")
	if _, err := n.Reverse(context.Background(), weather.Coordinates{}); err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}

func TestResolverWithNominatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address": {"suburb": "Oliwa", "state": "Pomeranian Voivodeship"}}`))
	}))
	defer srv.Close()

	r := NewResolver(Config{
		Granted: true,
		Reverse: NewNominatim(srv.Client(), srv.URL, "fpv-test/1.0"),
	})

	got := r.PlaceName(context.Background(), weather.Coordinates{Lat: 54.41, Lon: 18.56})
	if got != "Oliwa, Pomeranian Voivodeship" {
		t.Fatalf("unexpected label %q", got)
	}
}
