package engine

import "encoding/json"

// PlanResponse is a partial trip-planner response document with the
// fields the aggregation pipeline uses. Exactly one of Plan or Error is
// populated on a well-formed body
type PlanResponse struct {
	Plan  *Plan      `json:"plan"`
	Error *PlanError `json:"error"`
}

// Itineraries returns the itinerary list, empty when the engine
// answered with an error payload or found no route
func (r PlanResponse) Itineraries() []Itinerary {
	if r.Plan == nil {
		return nil
	}
	return r.Plan.Itineraries
}

// Plan is the successful payload variant
type Plan struct {
	Date        int64       `json:"date"`
	From        Place       `json:"from"`
	To          Place       `json:"to"`
	Itineraries []Itinerary `json:"itineraries"`
}

// Place names an endpoint of the planned trip
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Itinerary is one complete trip option. Durations are in seconds,
// distances in metres, matching the engine's units
type Itinerary struct {
	DurationSeconds float64 `json:"duration"`
	StartTimeMs     int64   `json:"startTime"`
	EndTimeMs       int64   `json:"endTime"`
	WalkTime        float64 `json:"walkTime"`
	TransitTime     float64 `json:"transitTime"`
	WaitingTime     float64 `json:"waitingTime"`
	WalkDistance    float64 `json:"walkDistance"`
	Transfers       int     `json:"transfers"`
	Legs            []Leg   `json:"legs"`
}

// Leg is a single mode segment of an itinerary
type Leg struct {
	Mode            string  `json:"mode"`
	DurationSeconds float64 `json:"duration"`
	DistanceMeters  float64 `json:"distance"`
	TransitLeg      bool    `json:"transitLeg"`
}

// PlanError is the engine's structured error payload. A routable
// network legitimately produces these (e.g. PATH_NOT_FOUND), so it is
// data, not a Go error
type PlanError struct {
	ID      int    `json:"id"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// IsochroneResponse is a GeoJSON feature collection of reachability
// bands, kept raw apart from the envelope
type IsochroneResponse struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one reachability band
type Feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}
