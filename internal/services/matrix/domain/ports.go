package domain

import (
	"context"

	"otp4gb/internal/adapters/engine"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	// Run builds, dispatches and aggregates the full matrix for the
	// configured run folder
	Run(ctx context.Context) error

	// SaveParameters writes the request parameters the run would send
	// without dialling the engine
	SaveParameters(ctx context.Context) error

	// FromResponses rebuilds matrix files from persisted raw response
	// files instead of querying a live engine
	FromResponses(ctx context.Context, paths []string) error
}

// Planner is the engine surface the dispatcher dials. The production
// implementation is the engine client; tests substitute fakes
type Planner interface {
	Plan(ctx context.Context, req engine.PlanRequest) (engine.PlanResult, error)
}

// ResultSink receives completed results in whatever order workers
// finish. Implementations must be safe for concurrent use
type ResultSink interface {
	Consume(res Result) error
}
