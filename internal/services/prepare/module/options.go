package module

import (
	"otp4gb/internal/platform/config"
)

// Options holds configuration options for the prepare service
type Options struct {
	Heap string
}

// FromConfig reads the prepare options from config with the OTP4GB_
// prefix. Graph builds need far more heap than serving does, so the
// value is separate from the server heap
func FromConfig(cfg config.Conf) Options {
	root := cfg.Prefix("OTP4GB_")
	return Options{
		Heap: root.MayString("PREPARE_MAX_HEAP", "25G"),
	}
}
