package device

import (
	"errors"
	"fmt"
)

// Sentinel errors for the device package.
var (
	// ErrDeviceClosed indicates an operation on a closed device.
	ErrDeviceClosed = errors.New("device: device closed")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("device: session closed")

	// ErrNoSuchDevice indicates the requested device ID does not exist.
	ErrNoSuchDevice = errors.New("device: no such device")

	// ErrUnsupportedFormat indicates the device cannot produce the
	// requested pixel format. Not retryable.
	ErrUnsupportedFormat = errors.New("device: unsupported pixel format")

	// ErrReaderClosed indicates a claim against a closed reader.
	ErrReaderClosed = errors.New("device: reader closed")
)

// OpenReason classifies why opening a device failed or why an opened device
// became unusable.
type OpenReason int

const (
	// ReasonUnknown is an unclassified device error.
	ReasonUnknown OpenReason = iota
	// ReasonDeviceFatal means the device hit an unrecoverable fault.
	ReasonDeviceFatal
	// ReasonDisabled means policy forbids opening the device.
	ReasonDisabled
	// ReasonInUse means another client holds the device.
	ReasonInUse
	// ReasonServiceFatal means the device service itself failed.
	ReasonServiceFatal
	// ReasonMaxInUse means the per-client device limit was reached.
	ReasonMaxInUse
	// ReasonDisconnected means the device went away after a successful
	// open. Fatal to the owning session.
	ReasonDisconnected
)

func (r OpenReason) String() string {
	switch r {
	case ReasonDeviceFatal:
		return "device fatal"
	case ReasonDisabled:
		return "disabled by policy"
	case ReasonInUse:
		return "in use"
	case ReasonServiceFatal:
		return "service fatal"
	case ReasonMaxInUse:
		return "max devices in use"
	case ReasonDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// OpenError reports that a device could not be opened, or that an opened
// device was lost. Open errors are fatal to the owning pipeline and are
// never silently retried.
type OpenError struct {
	ID     ID
	Reason OpenReason
	Cause  error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("device: open %q failed (%s): %v", string(e.ID), e.Reason, e.Cause)
	}
	return fmt.Sprintf("device: open %q failed (%s)", string(e.ID), e.Reason)
}

// Unwrap returns the underlying cause.
func (e *OpenError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error terminates the owning pipeline.
// All open errors do.
func (e *OpenError) IsFatal() bool {
	return true
}

// NewOpenError creates an OpenError.
func NewOpenError(id ID, reason OpenReason, cause error) *OpenError {
	return &OpenError{ID: id, Reason: reason, Cause: cause}
}

// ConfigurationError reports that a session could not be configured against
// its target list. Fatal to the current attempt; the pipeline must restart.
type ConfigurationError struct {
	ID    ID
	Cause error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("device: configure %q failed: %v", string(e.ID), e.Cause)
	}
	return fmt.Sprintf("device: configure %q failed", string(e.ID))
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// IsDisconnected reports whether err is a device-disconnect open error.
func IsDisconnected(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe) && oe.Reason == ReasonDisconnected
}
