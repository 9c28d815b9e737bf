package httpkit

import (
	"otp4gb/internal/platform/net/middleware"
)

// Protected groups routes behind the guard port
func Protected(r Router, p middleware.GuardPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Guard(p))
		fn(gr)
	})
}
