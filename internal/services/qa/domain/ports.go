package domain

import "context"

// AnalyserPort is the public port exposed by the module
type AnalyserPort interface {
	// File computes the stats for one matrix CSV and writes its stats
	// file alongside the report
	File(ctx context.Context, path string) (Stats, error)

	// Run processes every listed matrix file in order
	Run(ctx context.Context, paths []string) error
}
