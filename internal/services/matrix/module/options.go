package module

import (
	"time"

	"otp4gb/internal/platform/config"
)

// Options holds configuration options for the matrix service
type Options struct {
	Heap          string
	MaxAttempts   int
	RetryDelay    time.Duration
	SkipSelfPairs bool
	CompressRaw   bool
}

// FromConfig reads the matrix options from config with the OTP4GB_
// prefix. The engine heap is shared with the server binary; the rest
// sit under OTP4GB_MATRIX_
func FromConfig(cfg config.Conf) Options {
	root := cfg.Prefix("OTP4GB_")
	mx := cfg.Prefix("OTP4GB_MATRIX_")
	return Options{
		Heap:          root.MayString("SERVER_MAX_HEAP", "25G"),
		MaxAttempts:   mx.MayInt("RETRIES", 3),
		RetryDelay:    mx.MayDuration("RETRY_DELAY", 2*time.Second),
		SkipSelfPairs: mx.MayBool("SKIP_SELF_PAIRS", false),
		CompressRaw:   mx.MayBool("COMPRESS_RAW", true),
	}
}
