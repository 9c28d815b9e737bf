package engine

import (
	"testing"
	"time"
)

func TestFormatCutoff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, ""},
		{30 * time.Second, "30S"},
		{60 * time.Second, "60S"},
		{90 * time.Second, "1M30S"},
		{2 * time.Minute, "2M"},
		{10 * time.Minute, "10M"},
		{time.Hour, "60M"},
		{61 * time.Minute, "1H1M"},
		{3661 * time.Second, "1H1M1S"},
		{2 * time.Hour, "2H"},
	}
	for _, tc := range cases {
		if got := FormatCutoff(tc.d); got != tc.want {
			t.Errorf("FormatCutoff(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
