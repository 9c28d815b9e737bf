package service

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"otp4gb/internal/adapters/engine"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/services/matrix/domain"
)

var errTestSink = errors.New("sink broke")

// fakePlanner answers Plan calls through fn, counting invocations
type fakePlanner struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req engine.PlanRequest) (engine.PlanResult, error)
}

func (p *fakePlanner) Plan(_ context.Context, req engine.PlanRequest) (engine.PlanResult, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.fn(call, req)
}

func (p *fakePlanner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memSink collects results, optionally failing or reacting per consume
type memSink struct {
	mu      sync.Mutex
	results []domain.Result
	fail    error
	onEach  func(n int)
}

func (s *memSink) Consume(res domain.Result) error {
	s.mu.Lock()
	s.results = append(s.results, res)
	n := len(s.results)
	fail := s.fail
	s.mu.Unlock()
	if s.onEach != nil {
		s.onEach(n)
	}
	return fail
}

func (s *memSink) all() []domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

func okResult() (engine.PlanResult, error) {
	return engine.PlanResult{
		URL:      "http://engine/plan",
		Raw:      []byte(`{"plan":{"itineraries":[{"duration":600}]}}`),
		Response: engine.PlanResponse{Plan: &engine.Plan{Itineraries: []engine.Itinerary{{DurationSeconds: 600}}}},
	}, nil
}

func nJobs(n int) iter.Seq[domain.Job] {
	return func(yield func(domain.Job) bool) {
		for i := range n {
			if !yield(domain.Job{OriginID: "O", DestinationID: "D", Period: "AM", Modes: []engine.Mode{engine.ModeBus}, Travel: time.Unix(int64(i), 0)}) {
				return
			}
		}
	}
}

func TestDispatcherDrainsAllJobs(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{fn: func(int, engine.PlanRequest) (engine.PlanResult, error) { return okResult() }}
	sink := &memSink{}
	d := &Dispatcher{Planner: planner, Workers: 3, RetryDelay: time.Millisecond}

	if err := d.Run(context.Background(), nJobs(20), sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(sink.all()); got != 20 {
		t.Fatalf("results = %d, want 20", got)
	}
	for _, res := range sink.all() {
		if res.Errored || len(res.Attempts) != 0 {
			t.Fatalf("unexpected failure result: %+v", res)
		}
	}
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{fn: func(call int, _ engine.PlanRequest) (engine.PlanResult, error) {
		if call < 3 {
			return engine.PlanResult{}, perr.Newf(perr.ErrorCodeUnavailable, "engine warming up")
		}
		return okResult()
	}}
	sink := &memSink{}
	d := &Dispatcher{Planner: planner, Workers: 1, MaxAttempts: 3, RetryDelay: time.Millisecond}

	if err := d.Run(context.Background(), nJobs(1), sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	res := sink.all()[0]
	if res.Errored {
		t.Fatalf("result errored after eventual success: %+v", res)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempt trail = %d, want 2", len(res.Attempts))
	}
	if res.Attempts[0].Attempt != 1 || res.Attempts[0].Kind != "unavailable" {
		t.Fatalf("first attempt = %+v", res.Attempts[0])
	}
	if planner.callCount() != 3 {
		t.Fatalf("planner calls = %d, want 3", planner.callCount())
	}
}

func TestDispatcherExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{fn: func(int, engine.PlanRequest) (engine.PlanResult, error) {
		return engine.PlanResult{}, perr.Newf(perr.ErrorCodeTimeout, "engine timed out")
	}}
	sink := &memSink{}
	d := &Dispatcher{Planner: planner, Workers: 1, MaxAttempts: 3, RetryDelay: time.Millisecond}

	if err := d.Run(context.Background(), nJobs(1), sink); err != nil {
		t.Fatalf("job failures must not fail the run: %v", err)
	}
	res := sink.all()[0]
	if !res.Errored {
		t.Fatalf("result not errored: %+v", res)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempt trail = %d, want 3", len(res.Attempts))
	}
	for i, at := range res.Attempts {
		if at.Attempt != i+1 || at.Kind != "timeout" || at.Message == "" {
			t.Fatalf("attempt %d = %+v", i, at)
		}
	}
}

func TestDispatcherStopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{fn: func(int, engine.PlanRequest) (engine.PlanResult, error) {
		return engine.PlanResult{}, perr.Newf(perr.ErrorCodeInvalidArgument, "engine rejected the request")
	}}
	sink := &memSink{}
	d := &Dispatcher{Planner: planner, Workers: 1, MaxAttempts: 5, RetryDelay: time.Millisecond}

	if err := d.Run(context.Background(), nJobs(1), sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	res := sink.all()[0]
	if !res.Errored || len(res.Attempts) != 1 {
		t.Fatalf("result = %+v, want one errored attempt", res)
	}
	if res.Attempts[0].Kind != "invalid_argument" {
		t.Fatalf("kind = %q", res.Attempts[0].Kind)
	}
	if planner.callCount() != 1 {
		t.Fatalf("planner calls = %d, want 1", planner.callCount())
	}
}

func TestDispatcherCancelStopsNewDispatchButKeepsInFlight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	planner := &fakePlanner{fn: func(call int, _ engine.PlanRequest) (engine.PlanResult, error) {
		if call == 3 {
			// cancel mid-request; this request must still land
			cancel()
		}
		return okResult()
	}}
	sink := &memSink{}
	d := &Dispatcher{Planner: planner, Workers: 1, RetryDelay: time.Millisecond}

	err := d.Run(ctx, nJobs(100), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run err = %v, want context.Canceled", err)
	}

	got := len(sink.all())
	if got < 3 {
		t.Fatalf("results = %d, want at least the in-flight job's 3", got)
	}
	if got >= 100 {
		t.Fatalf("results = %d, cancellation did not stop dispatch", got)
	}
	for _, res := range sink.all() {
		if res.Errored {
			t.Fatalf("in-flight result errored: %+v", res)
		}
	}
}

func TestDispatcherSinkFailureAbortsRun(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{fn: func(int, engine.PlanRequest) (engine.PlanResult, error) { return okResult() }}
	sink := &memSink{fail: errTestSink}
	d := &Dispatcher{Planner: planner, Workers: 2, RetryDelay: time.Millisecond}

	err := d.Run(context.Background(), nJobs(50), sink)
	if !errors.Is(err, errTestSink) {
		t.Fatalf("run err = %v, want sink error", err)
	}
	if planner.callCount() >= 50 {
		t.Fatalf("planner calls = %d, sink failure did not abort", planner.callCount())
	}
}

func TestDispatcherWorkerCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		workers int
		wantMax int
		wantMin int
	}{
		{workers: 4, wantMin: 4, wantMax: 4},
		{workers: 25, wantMin: 10, wantMax: 10},
		{workers: 0, wantMin: 1, wantMax: 10},
	}
	for _, tc := range cases {
		d := &Dispatcher{Workers: tc.workers}
		got := d.workerCount()
		if got < tc.wantMin || got > tc.wantMax {
			t.Errorf("workerCount(%d) = %d, want within [%d, %d]", tc.workers, got, tc.wantMin, tc.wantMax)
		}
	}
}
