// Package modkit provides module wiring and core deps
package modkit

import (
	"otp4gb/internal/platform/config"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	Paths paths.Layout
}

// ZeroOK returns true when deps are safe to use with zero values in tests
func (d Deps) ZeroOK() bool { return true }
