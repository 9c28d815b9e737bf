// Package http provides the status endpoints served next to a
// supervised engine
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/core/version"
	"otp4gb/internal/modkit/httpkit"
	perr "otp4gb/internal/platform/errors"
)

// probeTimeout bounds the engine probe behind /healthz
const probeTimeout = 5 * time.Second

// EnginePort is the supervisor surface the handlers read. Tests
// substitute fakes
type EnginePort interface {
	State() engine.State
	Healthy(ctx stdctx.Context) bool
}

// Deps are the handler dependencies
type Deps struct {
	RunID     string
	StartedAt time.Time
	Port      int
	Engine    EnginePort

	// Stop shuts the supervised engine down; nil hides the endpoint
	Stop func(ctx stdctx.Context) error
}

type handlers struct {
	deps Deps
}

// Register mounts the status routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/status", h.status)
	httpkit.Get(r, "/healthz", h.healthz)
	httpkit.Get(r, "/version", h.version)
}

// RegisterStop mounts the engine stop route, normally behind the guard
func RegisterStop(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	httpkit.Post(r, "/engine/stop", h.stop)
}

// StatusResponse reports the run and the supervised engine
type StatusResponse struct {
	RunID         string `json:"run_id"`
	EngineState   string `json:"engine_state"`
	Port          int    `json:"port"`
	Started       string `json:"started"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HealthResponse is the healthz payload when the engine answers
type HealthResponse struct {
	OK          bool   `json:"ok"`
	EngineState string `json:"engine_state"`
}

func (h *handlers) status(_ *http.Request) (any, error) {
	return StatusResponse{
		RunID:         h.deps.RunID,
		EngineState:   string(h.deps.Engine.State()),
		Port:          h.deps.Port,
		Started:       h.deps.StartedAt.UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.deps.StartedAt) / time.Second),
	}, nil
}

// healthz probes the engine itself rather than reporting remembered
// state, so a wedged engine shows up even while the supervisor still
// thinks it is healthy
func (h *handlers) healthz(r *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if !h.deps.Engine.Healthy(ctx) {
		return nil, perr.Unavailablef("engine not answering")
	}
	return HealthResponse{OK: true, EngineState: string(h.deps.Engine.State())}, nil
}

func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

func (h *handlers) stop(r *http.Request) (any, error) {
	if h.deps.Stop == nil {
		return nil, perr.NotFoundf("engine stop not available")
	}
	if err := h.deps.Stop(r.Context()); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}
