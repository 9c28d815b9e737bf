// Package module provides the QA module implementation
package module

import (
	"otp4gb/internal/modkit"
	"otp4gb/internal/services/qa/domain"
	"otp4gb/internal/services/qa/service"
)

// Ports defines the QA module ports
type Ports struct {
	Analyser domain.AnalyserPort
}

// Module implements the QA module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the QA module. outDir receives the stats files; empty
// writes them next to each input
func New(deps modkit.Deps, outDir string) *Module {
	m := &Module{deps: deps}
	m.ports = Ports{Analyser: service.New(outDir)}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "qa" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op as QA has no routes
func (m *Module) MountRoutes(_ interface{}) {}
