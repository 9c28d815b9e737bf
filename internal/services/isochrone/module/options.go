package module

import (
	"time"

	"otp4gb/internal/platform/config"
)

// Options holds configuration options for the isochrone service
type Options struct {
	Heap        string
	MaxAttempts int
	RetryDelay  time.Duration
}

// FromConfig reads the isochrone options from config with the OTP4GB_
// prefix. The engine heap is shared with the server binary; the rest
// sit under OTP4GB_ISO_
func FromConfig(cfg config.Conf) Options {
	root := cfg.Prefix("OTP4GB_")
	iso := cfg.Prefix("OTP4GB_ISO_")
	return Options{
		Heap:        root.MayString("SERVER_MAX_HEAP", "25G"),
		MaxAttempts: iso.MayInt("RETRIES", 3),
		RetryDelay:  iso.MayDuration("RETRY_DELAY", 2*time.Second),
	}
}
