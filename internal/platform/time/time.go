// Package time contains time related helpers
package time

import "time"

// Layouts shared by output file naming and the run logs.
// CompactStamp matches the engine tooling convention (20240415T0900)
const (
	CompactStamp = "20060102T1504"
	DateStamp    = "20060102"
)

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
