// Package module provides the prepare module implementation
package module

import (
	"otp4gb/internal/modkit"
	"otp4gb/internal/runconfig"
	"otp4gb/internal/services/prepare/domain"
	"otp4gb/internal/services/prepare/service"
)

// Ports defines the prepare module ports
type Ports struct {
	Preparer domain.PreparerPort
}

// Module implements the prepare module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the prepare module for one run folder
func New(deps modkit.Deps, folder string, params *runconfig.ProcessConfig, force bool) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(folder, params, deps.Paths, service.Config{
		Heap:  opts.Heap,
		Force: force,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Preparer: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "prepare" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as prepare has no routes
func (m *Module) MountRoutes(_ interface{}) {}
