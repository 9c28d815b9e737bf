// Package domain holds the graph preparation port
package domain

import "context"

// PreparerPort is the public port exposed by the module
type PreparerPort interface {
	// Run filters the timetable and map inputs for the configured run
	// and builds the engine graph, reusing an existing one unless forced
	Run(ctx context.Context) error
}
