package domain

import (
	"context"

	"otp4gb/internal/adapters/engine"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	// Run executes the configured isochrone batch against the engine
	Run(ctx context.Context) error

	// SaveParameters writes the request parameters the run would send
	// without dialling the engine
	SaveParameters(ctx context.Context) error
}

// Querier is the engine surface the runner dials. The production
// implementation is the engine client; tests substitute fakes
type Querier interface {
	Isochrone(ctx context.Context, req engine.IsochroneRequest) (engine.IsochroneResult, error)
}

// ResponseSink receives completed results in whatever order workers
// finish. Implementations must be safe for concurrent use
type ResponseSink interface {
	Consume(res Result) error
}
