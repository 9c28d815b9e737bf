// Package cost implements the generalised cost model applied to routed
// itineraries and the reductions that collapse itineraries into a single
// matrix row
package cost

import (
	"math"
	"sort"
	"strings"

	perr "otp4gb/internal/platform/errors"
)

// Factors weight each itinerary component in the generalised cost sum.
// Times are weighted per minute, distances per kilometre, transfers per
// interchange
type Factors struct {
	WaitTime        float64 `json:"wait_time" yaml:"wait_time"`
	TransferNumber  float64 `json:"transfer_number" yaml:"transfer_number"`
	WalkTime        float64 `json:"walk_time" yaml:"walk_time"`
	TransitTime     float64 `json:"transit_time" yaml:"transit_time"`
	WalkDistance    float64 `json:"walk_distance" yaml:"walk_distance"`
	TransitDistance float64 `json:"transit_distance" yaml:"transit_distance"`
}

// DefaultFactors weighs in-vehicle and out-of-vehicle minutes equally
// and ignores distance
func DefaultFactors() Factors {
	return Factors{
		WaitTime:       2,
		TransferNumber: 5,
		WalkTime:       2,
		TransitTime:    1,
	}
}

// Components are the per-itinerary quantities the cost model consumes,
// already summed over legs
type Components struct {
	WaitMinutes    float64
	WalkMinutes    float64
	TransitMinutes float64
	WalkKm         float64
	TransitKm      float64
	Transfers      float64
}

// Generalised returns the weighted sum of c under f
func Generalised(f Factors, c Components) float64 {
	return f.WaitTime*c.WaitMinutes +
		f.TransferNumber*c.Transfers +
		f.WalkTime*c.WalkMinutes +
		f.TransitTime*c.TransitMinutes +
		f.WalkDistance*c.WalkKm +
		f.TransitDistance*c.TransitKm
}

// Aggregation selects how per-itinerary values collapse into one number
type Aggregation string

const (
	// AggregationMean averages the values
	AggregationMean Aggregation = "mean"
	// AggregationMedian takes the middle value, averaging the two middle
	// values for even counts
	AggregationMedian Aggregation = "median"
)

// ParseAggregation maps a config string onto an Aggregation,
// case-insensitively
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(s))) {
	case AggregationMean:
		return AggregationMean, nil
	case AggregationMedian:
		return AggregationMedian, nil
	}
	return "", perr.Validationf("unknown aggregation method %q, expected mean or median", s)
}

// Reduce collapses xs under the method. Callers guard len(xs) > 0; an
// empty slice reduces to NaN so accidental use is visible in output
func (a Aggregation) Reduce(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	switch a {
	case AggregationMedian:
		return median(xs)
	default:
		return mean(xs)
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	cp := make([]float64, len(xs))
	copy(cp, xs)
	sort.Float64s(cp)

	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return (cp[mid-1] + cp[mid]) / 2
}
