package session

import "errors"

// Sentinel errors for the session package.
var (
	// ErrNotOpened indicates a call before Open succeeded.
	ErrNotOpened = errors.New("session: device not opened")

	// ErrNotConfigured indicates a call before Configure succeeded.
	ErrNotConfigured = errors.New("session: session not configured")

	// ErrClosed indicates a call after Close.
	ErrClosed = errors.New("session: controller closed")

	// ErrAlreadyOpen indicates a second Open on the same controller.
	ErrAlreadyOpen = errors.New("session: device already open")
)
