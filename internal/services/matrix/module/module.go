// Package module provides the matrix module implementation
package module

import (
	"otp4gb/internal/modkit"
	"otp4gb/internal/runconfig"
	"otp4gb/internal/services/matrix/domain"
	"otp4gb/internal/services/matrix/service"
)

// Ports defines the matrix module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the matrix module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the matrix module for one run folder, wiring the
// service with options from deps.Cfg
func New(deps modkit.Deps, folder string, params *runconfig.ProcessConfig) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(folder, params, deps.Paths, service.Config{
		Heap:          opts.Heap,
		MaxAttempts:   opts.MaxAttempts,
		RetryDelay:    opts.RetryDelay,
		SkipSelfPairs: opts.SkipSelfPairs,
		CompressRaw:   opts.CompressRaw,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "matrix" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Prefix returns the module prefix (none)
func (m *Module) Prefix() string { return "" }

// MountRoutes is a no-op as matrix has no routes
func (m *Module) MountRoutes(_ interface{}) {}
