// Package module provides the isochrone module implementation
package module

import (
	"otp4gb/internal/modkit"
	"otp4gb/internal/runconfig"
	"otp4gb/internal/services/isochrone/domain"
	"otp4gb/internal/services/isochrone/service"
)

// Ports defines the isochrone module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the isochrone module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the isochrone module for one run folder
func New(deps modkit.Deps, folder string, params *runconfig.ProcessConfig) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(folder, params, deps.Paths, service.Config{
		Heap:        opts.Heap,
		MaxAttempts: opts.MaxAttempts,
		RetryDelay:  opts.RetryDelay,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "isochrone" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as isochrone has no routes
func (m *Module) MountRoutes(_ interface{}) {}
