// Package domain holds the request and result shapes shared by the
// isochrone batch runner and its sinks
package domain

import (
	"time"

	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/core/geo"
)

// Request is one reachability query for a single centroid and mode
// combination. Immutable once built; the JSON shape doubles as the
// saved-parameters line format
type Request struct {
	ZoneID   string    `json:"zone_id"`
	Location geo.Point `json:"location"`

	Travel        time.Time     `json:"travel_datetime"`
	CutoffSeconds []int         `json:"cutoff_seconds"`
	Modes         []engine.Mode `json:"modes"`
}

// ModeLabel renders the mode combination for file names, e.g. BUS_WALK
func (r Request) ModeLabel() string { return engine.ModeLabel(r.Modes) }

// EngineRequest translates the request into an engine query
func (r Request) EngineRequest() engine.IsochroneRequest {
	cutoffs := make([]time.Duration, len(r.CutoffSeconds))
	for i, s := range r.CutoffSeconds {
		cutoffs[i] = time.Duration(s) * time.Second
	}
	return engine.IsochroneRequest{
		Location: r.Location,
		Time:     r.Travel,
		Cutoffs:  cutoffs,
		Modes:    r.Modes,
	}
}

// AttemptError records one failed attempt against the engine
type AttemptError struct {
	Attempt int    `json:"attempt"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result couples a request with its outcome. Errored results carry the
// attempt trail instead of a response body
type Result struct {
	Request  Request
	URL      string
	Raw      []byte
	Attempts []AttemptError
	Errored  bool
}
