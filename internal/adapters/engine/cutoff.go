package engine

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatCutoff encodes a duration the way the engine expects cutoffs:
// <H>H<M>M<S>S with zero components omitted, e.g. 90s -> "1M30S",
// 3600s -> "60M". Components only roll over past a full unit, so 60
// seconds stays "60S"
func FormatCutoff(d time.Duration) string {
	seconds := int(math.Round(d.Seconds()))
	minutes := 0
	hours := 0

	if seconds > 60 {
		minutes, seconds = seconds/60, seconds%60
	}
	if minutes > 60 {
		hours, minutes = minutes/60, minutes%60
	}

	var b strings.Builder
	for _, part := range []struct {
		name  string
		value int
	}{{"H", hours}, {"M", minutes}, {"S", seconds}} {
		if part.value > 0 {
			fmt.Fprintf(&b, "%d%s", part.value, part.name)
		}
	}
	return b.String()
}
