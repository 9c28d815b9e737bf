package middleware

import (
	"net/http"

	pnet "otp4gb/internal/platform/net"
)

// GuardPort is the seam the status API uses to gate sensitive endpoints
type GuardPort interface {
	// Check returns an error when the request may not proceed
	Check(r *http.Request) error
}

// Guard rejects requests the port denies. A nil port allows everything
func Guard(p GuardPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := p.Check(r); err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
