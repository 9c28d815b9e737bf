package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"otp4gb/internal/core/geo"
	perr "otp4gb/internal/platform/errors"
)

const planBody = `{
	"plan": {
		"from": {"name": "Origin", "lat": 53.48, "lon": -2.24},
		"to": {"name": "Destination", "lat": 53.80, "lon": -1.55},
		"itineraries": [
			{"duration": 500, "transfers": 0, "waitingTime": 30, "walkTime": 200, "transitTime": 270,
			 "walkDistance": 250.5,
			 "legs": [{"mode": "WALK", "duration": 200, "distance": 250.5},
			          {"mode": "BUS", "duration": 270, "distance": 4100, "transitLeg": true}]},
			{"duration": 700, "transfers": 1, "legs": []}
		]
	}
}`

func planReq() PlanRequest {
	return PlanRequest{
		Origin:                geo.Point{Lat: 53.48, Lon: -2.24},
		Destination:           geo.Point{Lat: 53.80, Lon: -1.55},
		Time:                  time.Date(2024, 4, 15, 8, 30, 0, 0, time.UTC),
		Modes:                 []Mode{ModeTransit, ModeWalk},
		ArriveBy:              true,
		SearchWindowSeconds:   3600,
		MaxWalkDistanceMeters: 2500,
	}
}

func TestPlanEncodesQueryAndDecodesItineraries(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(planBody))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	res, err := c.Plan(context.Background(), planReq())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if gotPath != "/otp/routers/filtered/plan" {
		t.Fatalf("path = %q", gotPath)
	}
	checks := map[string]string{
		"fromPlace":       "53.48,-2.24",
		"toPlace":         "53.8,-1.55",
		"mode":            "TRANSIT,WALK",
		"arriveBy":        "true",
		"time":            "2024-04-15T08:30:00Z",
		"searchWindow":    "3600",
		"maxWalkDistance": "2500",
	}
	for k, want := range checks {
		if got := gotQuery.Get(k); got != want {
			t.Errorf("query %s = %q, want %q", k, got, want)
		}
	}

	its := res.Response.Itineraries()
	if len(its) != 2 {
		t.Fatalf("itineraries = %d, want 2", len(its))
	}
	if its[0].DurationSeconds != 500 || its[1].DurationSeconds != 700 {
		t.Fatalf("durations = %v, %v", its[0].DurationSeconds, its[1].DurationSeconds)
	}
	if len(its[0].Legs) != 2 || !its[0].Legs[1].TransitLeg {
		t.Fatalf("legs decoded wrong: %+v", its[0].Legs)
	}
	if res.URL == "" || len(res.Raw) == 0 {
		t.Fatalf("raw capture missing: url=%q rawlen=%d", res.URL, len(res.Raw))
	}
}

func TestPlanEngineErrorPayloadIsData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"id": 404, "msg": "No trip found.", "message": "PATH_NOT_FOUND"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	res, err := c.Plan(context.Background(), planReq())
	if err != nil {
		t.Fatalf("engine error payload must not be a Go error: %v", err)
	}
	if res.Response.Error == nil || res.Response.Error.Message != "PATH_NOT_FOUND" {
		t.Fatalf("error payload = %+v", res.Response.Error)
	}
	if n := len(res.Response.Itineraries()); n != 0 {
		t.Fatalf("itineraries = %d, want 0", n)
	}
}

func TestPlanEmptyBodyIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Plan(context.Background(), planReq())
	if err == nil {
		t.Fatalf("expected error for empty body")
	}
	if !perr.IsRetryable(err) {
		t.Fatalf("empty body must be retryable, got %v", err)
	}
	if perr.CodeOf(err) != perr.ErrorCodeUnavailable {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
}

func TestPlanTemporarilyUnavailableBodyIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"id": 500, "msg": "Service temporarily unavailable, graph is loading."}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Plan(context.Background(), planReq())
	if !perr.IsRetryable(err) {
		t.Fatalf("temporarily unavailable must be retryable, got %v", err)
	}
}

func TestPlanStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad gateway", http.StatusBadGateway, true},
		{"service unavailable", http.StatusServiceUnavailable, true},
		{"internal error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, false},
		{"not found", http.StatusNotFound, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := NewClient(Options{BaseURL: srv.URL})
			_, err := c.Plan(context.Background(), planReq())
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if got := perr.IsRetryable(err); got != tc.retryable {
				t.Fatalf("retryable = %v, want %v (err %v)", got, tc.retryable, err)
			}
		})
	}
}

func TestPlanConnectionRefusedIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: base, Timeout: time.Second})
	_, err := c.Plan(context.Background(), planReq())
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if !perr.IsRetryable(err) {
		t.Fatalf("connection refused must be retryable, got %v", err)
	}
}

func TestPlanMalformedJSONIsNotRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"plan": [`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Plan(context.Background(), planReq())
	if err == nil || perr.IsRetryable(err) {
		t.Fatalf("malformed body must be a permanent error, got %v", err)
	}
}

func TestIsochroneEncodesQuery(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {"time": 480}, "geometry": {"type": "MultiPolygon", "coordinates": []}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	loc, _ := time.LoadLocation("Europe/London")
	res, err := c.Isochrone(context.Background(), IsochroneRequest{
		Location: geo.Point{Lat: 53.383331, Lon: -1.466666},
		Time:     time.Date(2023, 4, 12, 10, 19, 3, 0, loc),
		Cutoffs:  []time.Duration{8 * time.Minute, 10 * time.Minute},
		Modes:    []Mode{ModeWalk},
	})
	if err != nil {
		t.Fatalf("isochrone: %v", err)
	}

	if gotPath != "/otp/traveltime/isochrone" {
		t.Fatalf("path = %q", gotPath)
	}
	if got := gotQuery.Get("location"); got != "(53.383331, -1.466666)" {
		t.Fatalf("location = %q", got)
	}
	if got := gotQuery["cutoff"]; len(got) != 2 || got[0] != "8M" || got[1] != "10M" {
		t.Fatalf("cutoffs = %v", got)
	}
	if got := gotQuery.Get("modes"); got != "WALK,FERRY" {
		t.Fatalf("modes = %q", got)
	}
	if got := gotQuery.Get("time"); got != "2023-04-12T10:19:03+01:00" {
		t.Fatalf("time = %q", got)
	}
	if len(res.Response.Features) != 1 {
		t.Fatalf("features = %d", len(res.Response.Features))
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/otp/routers/filtered/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"routerId": "filtered"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	bad := NewClient(Options{BaseURL: srv.URL, RouterID: "missing"})
	if err := bad.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure for unknown router")
	}
}
