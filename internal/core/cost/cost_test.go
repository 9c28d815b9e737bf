package cost

import (
	"math"
	"testing"
)

func TestGeneralisedWeightsEachComponent(t *testing.T) {
	t.Parallel()

	f := Factors{
		WaitTime:        2,
		TransferNumber:  5,
		WalkTime:        2,
		TransitTime:     1,
		WalkDistance:    0.1,
		TransitDistance: 0.05,
	}
	c := Components{
		WaitMinutes:    4,
		Transfers:      1,
		WalkMinutes:    10,
		TransitMinutes: 30,
		WalkKm:         0.8,
		TransitKm:      20,
	}

	// 2*4 + 5*1 + 2*10 + 1*30 + 0.1*0.8 + 0.05*20 = 64.08
	got := Generalised(f, c)
	if math.Abs(got-64.08) > 1e-9 {
		t.Fatalf("Generalised = %v, want 64.08", got)
	}
}

func TestGeneralisedZeroFactorsIgnoreComponents(t *testing.T) {
	t.Parallel()

	c := Components{WaitMinutes: 99, WalkKm: 42, Transfers: 7}
	if got := Generalised(Factors{}, c); got != 0 {
		t.Fatalf("zero factors should cost zero, got %v", got)
	}
}

func TestParseAggregation(t *testing.T) {
	t.Parallel()

	if a, err := ParseAggregation("mean"); err != nil || a != AggregationMean {
		t.Fatalf("mean: got %v, %v", a, err)
	}
	if a, err := ParseAggregation("median"); err != nil || a != AggregationMedian {
		t.Fatalf("median: got %v, %v", a, err)
	}
	if a, err := ParseAggregation(" MEDIAN "); err != nil || a != AggregationMedian {
		t.Fatalf("upper-case median: got %v, %v", a, err)
	}
	if _, err := ParseAggregation("mode"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestReduceMean(t *testing.T) {
	t.Parallel()

	// two itineraries of 500s and 700s average to 600s
	got := AggregationMean.Reduce([]float64{500, 700})
	if got != 600 {
		t.Fatalf("mean = %v, want 600", got)
	}
}

func TestReduceMedian(t *testing.T) {
	t.Parallel()

	if got := AggregationMedian.Reduce([]float64{9, 1, 5}); got != 5 {
		t.Fatalf("odd median = %v, want 5", got)
	}
	if got := AggregationMedian.Reduce([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("even median = %v, want 2.5", got)
	}

	// input must not be reordered
	xs := []float64{9, 1, 5}
	AggregationMedian.Reduce(xs)
	if xs[0] != 9 || xs[1] != 1 || xs[2] != 5 {
		t.Fatalf("median mutated its input: %v", xs)
	}
}

func TestReduceEmptyIsNaN(t *testing.T) {
	t.Parallel()

	if got := AggregationMean.Reduce(nil); !math.IsNaN(got) {
		t.Fatalf("empty reduce = %v, want NaN", got)
	}
}
