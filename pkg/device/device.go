package device

// StateCallbacks receives device lifecycle notifications. Exactly one of
// OnOpened or OnError fires first, on the driver's device dispatch queue.
// OnDisconnected may fire at any point after OnOpened and is fatal to the
// owning pipeline.
type StateCallbacks struct {
	OnOpened       func(Device)
	OnDisconnected func(Device)
	OnError        func(ID, *OpenError)
}

// SessionCallbacks receives session configuration notifications. Exactly one
// of the two fires, on the device dispatch queue.
type SessionCallbacks struct {
	OnConfigured      func(Session)
	OnConfigureFailed func(*ConfigurationError)
}

// CaptureCallbacks receives per-request completion notifications on the
// device dispatch queue. For a repeating request the callbacks fire once per
// produced frame; for a one-shot request exactly once.
type CaptureCallbacks struct {
	OnCompleted func(*Request, *Result)
	OnFailed    func(*Request, error)
}

// Driver opens capture devices. Open is asynchronous: it returns immediately
// and resolves through cb on the driver's device dispatch queue.
type Driver interface {
	// Open requests exclusive access to the named device.
	Open(id ID, cb StateCallbacks)

	// Devices lists the IDs the driver can open.
	Devices() []ID
}

// Device is an opened capture device. It is owned exclusively by one
// controller and is invalid after Close.
type Device interface {
	// ID returns the device identifier.
	ID() ID

	// Characteristics returns the immutable capability profile.
	Characteristics() Characteristics

	// CreateSession binds the device to a fixed output target list.
	// Asynchronous; exactly one callback fires.
	CreateSession(targets []Target, cb SessionCallbacks)

	// Close releases the device. Idempotent.
	Close() error
}

// Session accepts capture requests against its fixed target list. All
// methods must be called by the single session owner.
type Session interface {
	// SetRepeatingRequest replaces the repeating request driving the
	// live stream. The swap is atomic from the caller's point of view:
	// the stream never observes an unconfigured gap.
	SetRepeatingRequest(req *Request, cb *CaptureCallbacks) error

	// Capture submits a one-shot request.
	Capture(req *Request, cb *CaptureCallbacks) error

	// StopRepeating halts the repeating request without closing the
	// session.
	StopRepeating() error

	// Close tears the session down. Idempotent.
	Close() error
}

// Reader produces pixel buffers from completed captures, independent of
// capture-completion metadata. It owns a bounded pool; callers must release
// every buffer they claim or the pool exhausts and streaming stalls.
type Reader interface {
	// SetHandler installs the "buffer available" notification, delivered
	// on the reader dispatch queue. A nil handler detaches.
	SetHandler(fn func())

	// Acquire claims the next available buffer without blocking.
	// ok is false when no buffer is pending.
	Acquire() (b *Buffer, ok bool)

	// Depth returns the pool capacity.
	Depth() int

	// Close releases the reader and its pool.
	Close() error
}
