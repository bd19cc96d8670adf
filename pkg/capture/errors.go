package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for the capture package.
var (
	// ErrDequeueTimeout indicates no buffer matched the capture result
	// within the deadline. Recoverable: the caller may re-issue the
	// capture; the synchronizer never retries on its own.
	ErrDequeueTimeout = errors.New("capture: buffer dequeue timed out")

	// ErrBusy is reported by TryCapture when an operation is already in
	// flight. Capture itself serializes instead.
	ErrBusy = errors.New("capture: capture already in flight")

	// ErrClosed indicates the synchronizer was shut down.
	ErrClosed = errors.New("capture: synchronizer closed")
)

// UnsupportedFormatError reports a device-level format rejection during
// submission or completion. Fatal for this capture path; not retried.
type UnsupportedFormatError struct {
	Format string
	Cause  error
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("capture: unsupported format %s: %v", e.Format, e.Cause)
	}
	return fmt.Sprintf("capture: unsupported format %s", e.Format)
}

// Unwrap returns the underlying cause.
func (e *UnsupportedFormatError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the capture may be re-issued after err.
// Timeouts are; format and device errors are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDequeueTimeout)
}
