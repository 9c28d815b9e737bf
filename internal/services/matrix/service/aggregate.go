package service

import (
	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/core/cost"
	"otp4gb/internal/services/matrix/domain"
)

// Aggregator collapses routed itineraries into cost matrix rows
type Aggregator struct {
	Factors cost.Factors
	Method  cost.Aggregation
}

// Row reduces one result. Errored results keep a nil itinerary count;
// a clean response with no itineraries counts zero with no cost.
// Cost and duration are reduced independently, so the reported
// duration is not necessarily the duration of the cheapest itinerary
func (a Aggregator) Row(res domain.Result) domain.CostMatrixRow {
	row := domain.CostMatrixRow{
		OriginID:      res.Job.OriginID,
		DestinationID: res.Job.DestinationID,
	}
	if res.Errored {
		return row
	}

	its := res.Response.Itineraries()
	n := len(its)
	row.ItineraryCount = &n
	if n == 0 {
		return row
	}

	costs := make([]float64, n)
	durations := make([]float64, n)
	for i, it := range its {
		costs[i] = cost.Generalised(a.Factors, itineraryComponents(it))
		durations[i] = it.DurationSeconds
	}
	c := a.Method.Reduce(costs)
	dur := a.Method.Reduce(durations)
	row.Cost = &c
	row.DurationSeconds = &dur
	return row
}

// itineraryComponents splits an itinerary into the quantities the cost
// model weighs. The engine reports times in seconds and distances in
// metres; the model takes minutes and kilometres. Transit distance is
// the sum of the legs the engine flags as transit
func itineraryComponents(it engine.Itinerary) cost.Components {
	var transitMeters float64
	for _, leg := range it.Legs {
		if leg.TransitLeg {
			transitMeters += leg.DistanceMeters
		}
	}
	return cost.Components{
		WaitMinutes:    it.WaitingTime / 60,
		WalkMinutes:    it.WalkTime / 60,
		TransitMinutes: it.TransitTime / 60,
		WalkKm:         it.WalkDistance / 1000,
		TransitKm:      transitMeters / 1000,
		Transfers:      float64(it.Transfers),
	}
}
