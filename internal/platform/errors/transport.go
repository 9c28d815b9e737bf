package errors

// HTTP/network helpers for mapping routing-engine transport failures to
// project ErrorCodes and retry semantics

import (
	"context"
	stderrs "errors"
	"net"
	"net/http"
	"strings"
)

// StatusErrorCode maps an HTTP response status to an ErrorCode with an ok flag
// !ok means the status is not an error (2xx/3xx); caller proceeds normally
func StatusErrorCode(status int) (ErrorCode, bool) {
	switch {
	case status < 400:
		return ErrorCodeUnknown, false

	case status == http.StatusRequestTimeout:
		return ErrorCodeTimeout, true

	case status == http.StatusTooManyRequests:
		// The engine sheds load while indexing; worth another attempt
		return ErrorCodeUnavailable, true

	case status == http.StatusNotFound:
		// Wrong router id or unbuilt graph: a config problem, not transient
		return ErrorCodeNotFound, true

	case status >= 400 && status < 500:
		return ErrorCodeInvalidArgument, true

	case status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return ErrorCodeUnavailable, true
	}

	// Remaining 5xx: the engine is in trouble but may recover
	return ErrorCodeUnavailable, true
}

// FromStatus wraps a non-2xx response into an *Error with a mapped code.
// Returns nil when the status is not an error
func FromStatus(status int, msg string) error {
	code, ok := StatusErrorCode(status)
	if !ok {
		return nil
	}
	return Newf(code, "%s: status %d", msg, status)
}

// FromTransport wraps a request-level failure (dial, TLS, timeout) with a
// mapped ErrorCode. If err is nil, returns nil
func FromTransport(err error, msg string) error {
	if err == nil {
		return nil
	}
	if stderrs.Is(err, context.Canceled) {
		// Run cancellation is not a transport fault; keep the cause visible
		return Wrap(err, ErrorCodeUnknown, msg)
	}
	var nerr net.Error
	if stderrs.As(err, &nerr) && nerr.Timeout() {
		return Wrap(err, ErrorCodeTimeout, msg)
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrorCodeTimeout, msg)
	}
	return Wrap(err, ErrorCodeUnavailable, msg)
}

// IsRetryable reports whether an error represents a transient condition worth
// retrying. It handles both coded *Error values and the raw net/http text
// seen before classification (e.g. "connection refused" during engine boot)
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Never retry after the run itself was cancelled
	if stderrs.Is(err, context.Canceled) {
		return false
	}

	// Coded errors carry the decision
	if e, ok := As(err); ok {
		switch e.code {
		case ErrorCodeUnavailable, ErrorCodeTimeout:
			return true
		default:
			return false
		}
	}

	// Unwrap to the root cause so we can see the underlying net error
	root := Root(err)

	var nerr net.Error
	if stderrs.As(root, &nerr) && nerr.Timeout() {
		return true
	}
	if stderrs.Is(root, context.DeadlineExceeded) {
		return true
	}

	// Fallback: text patterns from the dialer/transport during engine restarts
	s := strings.ToLower(root.Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset by peer"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "unexpected eof"),
		strings.Contains(s, "server closed idle connection"),
		strings.Contains(s, "no route to host"):
		return true
	default:
		return false
	}
}
