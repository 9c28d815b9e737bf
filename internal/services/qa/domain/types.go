// Package domain holds the matrix QA statistics shapes
package domain

// Stats summarises one cost matrix file. Rows split three ways: valid
// rows carry at least one itinerary, not-possible rows carry an
// explicit zero count, errored rows carry no count at all
type Stats struct {
	Path string

	Rows        int
	Valid       int
	NotPossible int
	Errored     int

	// Duration stats over valid rows, in minutes
	DurationMeanMinutes float64
	DurationMinMinutes  float64
	DurationMaxMinutes  float64
}

// PercentValid is the share of rows with at least one itinerary
func (s Stats) PercentValid() float64 { return s.percent(s.Valid) }

// PercentNotPossible is the share of rows the engine answered with no route
func (s Stats) PercentNotPossible() float64 { return s.percent(s.NotPossible) }

// PercentErrored is the share of rows whose request failed
func (s Stats) PercentErrored() float64 { return s.percent(s.Errored) }

func (s Stats) percent(n int) float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(n) / float64(s.Rows) * 100
}
