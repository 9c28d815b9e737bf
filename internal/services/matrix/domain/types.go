// Package domain holds the job and result shapes shared by the matrix
// builder, dispatcher and sinks
package domain

import (
	"time"

	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/core/geo"
)

// Job is one origin-destination request for a single time period and
// mode combination. Immutable once built; the JSON shape doubles as the
// saved-parameters line format
type Job struct {
	OriginID        string    `json:"origin_id"`
	OriginName      string    `json:"origin_name,omitempty"`
	Origin          geo.Point `json:"origin"`
	DestinationID   string    `json:"destination_id"`
	DestinationName string    `json:"destination_name,omitempty"`
	Destination     geo.Point `json:"destination"`

	Period   string        `json:"period"`
	Modes    []engine.Mode `json:"modes"`
	Travel   time.Time     `json:"travel_datetime"`
	ArriveBy bool          `json:"arrive_by"`

	SearchWindowSeconds   int     `json:"search_window_seconds,omitempty"`
	MaxWalkDistanceMeters float64 `json:"max_walk_distance_meters,omitempty"`
}

// ModeLabel renders the mode combination for file names, e.g. BUS_WALK
func (j Job) ModeLabel() string { return engine.ModeLabel(j.Modes) }

// PlanRequest translates the job into an engine query
func (j Job) PlanRequest() engine.PlanRequest {
	return engine.PlanRequest{
		Origin:                j.Origin,
		Destination:           j.Destination,
		Time:                  j.Travel,
		Modes:                 j.Modes,
		ArriveBy:              j.ArriveBy,
		SearchWindowSeconds:   j.SearchWindowSeconds,
		MaxWalkDistanceMeters: j.MaxWalkDistanceMeters,
	}
}

// AttemptError records one failed dispatch attempt. Kind carries the
// machine-readable error code name so downstream tooling can split
// timeouts from engine rejections without parsing messages
type AttemptError struct {
	Attempt int    `json:"attempt"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result couples a job with its routed outcome. Errored results carry
// the attempt trail instead of a response; successful ones may still
// carry earlier failed attempts
type Result struct {
	Job      Job
	URL      string
	Raw      []byte
	Response engine.PlanResponse
	Attempts []AttemptError
	Errored  bool
}

// CostMatrixRow is one output row. A nil itinerary count marks an
// errored job; count zero is a routable pair the engine found no trip
// for. Cost and duration are set only when at least one itinerary came
// back
type CostMatrixRow struct {
	OriginID        string
	DestinationID   string
	ItineraryCount  *int
	Cost            *float64
	DurationSeconds *float64
}

// BuildCounts tallies what the builder emitted and what each filter
// removed
type BuildCounts struct {
	Built      int
	SelfPairs  int
	CrowFly    int
	Irrelevant int
	Reused     int
}

// Total returns the full cross-product size the counts account for
func (c BuildCounts) Total() int {
	return c.Built + c.SelfPairs + c.CrowFly + c.Irrelevant + c.Reused
}
