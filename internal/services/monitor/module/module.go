// Package module wires the status endpoints into the server binary
// using a tiny module
package module

import (
	"net/http"
	"time"

	"otp4gb/internal/modkit"
	"otp4gb/internal/modkit/httpkit"
	"otp4gb/internal/modkit/swaggerkit"

	monitorhttp "otp4gb/internal/services/monitor/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
}

// New constructs the monitor module. A non-empty token from
// OTP4GB_STATUS_TOKEN gates the engine stop endpoint; the read-only
// endpoints stay open
func New(deps modkit.Deps, d monitorhttp.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("monitor"),
		modkit.WithPrefix("/"),
	}, opts...)...)

	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	guard := httpkit.NewTokenGuard(deps.Cfg.Prefix("OTP4GB_").MayString("STATUS_TOKEN", ""))

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		monitorhttp.Register(r, d)
		if d.Stop != nil {
			httpkit.Protected(r, guard, func(gr httpkit.Router) {
				monitorhttp.RegisterStop(gr, d)
			})
		}
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, func(rr httpkit.Router) {
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.name }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }

func init() {
	swaggerkit.Register(func(spec map[string]any) {
		paths, ok := spec["paths"].(map[string]any)
		if !ok {
			return
		}
		paths["/status"] = map[string]any{
			"get": map[string]any{
				"summary": "Run and engine status",
				"tags":    []any{"Monitor"},
				"responses": map[string]any{
					"200": map[string]any{"description": "status payload"},
				},
			},
		}
		paths["/healthz"] = map[string]any{
			"get": map[string]any{
				"summary": "Engine liveness probe",
				"tags":    []any{"Monitor"},
				"responses": map[string]any{
					"200": map[string]any{"description": "engine answering"},
					"503": map[string]any{"description": "engine not answering"},
				},
			},
		}
	})
}
