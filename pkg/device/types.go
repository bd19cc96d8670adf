// Package device defines the hardware abstraction for go-camkit: the opaque
// device handle, capture sessions, requests and results, pixel buffers, and
// the serialized dispatch queues that hardware callbacks are delivered on.
//
// The interfaces here mirror real sensor stacks: every lifecycle operation is
// asynchronous and completes through callbacks on a dispatch queue owned by
// the driver. Higher layers (pkg/session, pkg/capture) convert those
// callbacks into blocking, context-aware calls.
package device

import (
	"sync"

	"github.com/google/uuid"
)

// ID identifies an addressable capture device (e.g. "0", "/dev/video0").
type ID string

// Facing describes which way the sensor points.
type Facing int

const (
	// FacingBack is a rear-mounted sensor.
	FacingBack Facing = iota
	// FacingFront is a user-facing sensor. Front sensors are mirrored.
	FacingFront
	// FacingExternal is a detachable sensor (USB, etc.).
	FacingExternal
)

func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	case FacingExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Mirrored reports whether images from this facing are horizontally flipped.
func (f Facing) Mirrored() bool {
	return f == FacingFront
}

// AFMode is the autofocus mode of a request.
type AFMode int

const (
	// AFOff disables autofocus; the request's FocusDistance is applied.
	AFOff AFMode = iota
	// AFAuto runs a single autofocus sweep on demand.
	AFAuto
	// AFContinuousPicture keeps focus continuously adjusted for stills.
	AFContinuousPicture
)

// AEMode is the auto-exposure mode of a request.
type AEMode int

const (
	// AEOff disables auto-exposure; Sensitivity and ExposureTime apply
	// where set.
	AEOff AEMode = iota
	// AEOn lets the device meter exposure itself.
	AEOn
)

// ControlMode is the top-level 3A control mode. Requests built by this
// module always use ControlAuto; AF/AE sub-modes toggle underneath it.
type ControlMode int

const (
	// ControlAuto enables the device's 3A pipeline.
	ControlAuto ControlMode = iota
	// ControlOff disables the 3A pipeline entirely. Not used by the
	// request builder; present because drivers may report it.
	ControlOff
)

// IntRange is an inclusive numeric range reported by the device.
type IntRange struct {
	Min int64
	Max int64
}

// Contains reports whether v lies within the range.
func (r IntRange) Contains(v int64) bool {
	return v >= r.Min && v <= r.Max
}

// Characteristics is the per-device capability profile, read once at session
// start and immutable afterwards. Manual controls are offered only when the
// corresponding "off" mode is present in the mode set.
type Characteristics struct {
	// Facing is the sensor orientation relative to the user.
	Facing Facing

	// SensorOrientation is the clockwise angle (degrees) the sensor image
	// must be rotated to appear upright: one of 0, 90, 180, 270.
	SensorOrientation int

	// MinFocusDistance is the closest supported focus distance.
	// Zero means the lens is fixed-focus.
	MinFocusDistance float64

	// AFModes is the set of supported autofocus modes.
	AFModes []AFMode

	// AEModes is the set of supported auto-exposure modes.
	AEModes []AEMode

	// ISORange is the supported sensitivity range, nil if not reported.
	ISORange *IntRange

	// ExposureTimeRange is the supported exposure duration range in
	// nanoseconds, nil if not reported.
	ExposureTimeRange *IntRange
}

// SupportsAF reports whether mode is in the device's AF mode set.
func (c Characteristics) SupportsAF(mode AFMode) bool {
	for _, m := range c.AFModes {
		if m == mode {
			return true
		}
	}
	return false
}

// SupportsAE reports whether mode is in the device's AE mode set.
func (c Characteristics) SupportsAE(mode AEMode) bool {
	for _, m := range c.AEModes {
		if m == mode {
			return true
		}
	}
	return false
}

// RequestKind distinguishes the repeating preview request from a one-shot
// still request.
type RequestKind int

const (
	// KindPreview is a repeating request driving the live stream.
	KindPreview RequestKind = iota
	// KindStill is a one-shot request producing exactly one result.
	KindStill
)

func (k RequestKind) String() string {
	if k == KindStill {
		return "still"
	}
	return "preview"
}

// TargetKind identifies the class of output surface a request draws to.
type TargetKind int

const (
	// TargetPreview is the live viewfinder surface.
	TargetPreview TargetKind = iota
	// TargetReader is the buffer-reader surface used for stills.
	TargetReader
)

// Target is one output surface of a session's fixed target list.
type Target struct {
	Name string
	Kind TargetKind
}

// Request is a capture request. Zero-valued Sensitivity and ExposureTime
// mean "leave the field unset" so the device keeps its own auto behavior.
type Request struct {
	ID      uuid.UUID
	Kind    RequestKind
	Targets []Target

	ControlMode   ControlMode
	AFMode        AFMode
	FocusDistance float64
	AEMode        AEMode
	Sensitivity   int32
	ExposureTime  int64
	AWBAuto       bool
}

// Equivalent reports whether two requests carry the same control fields and
// targets, ignoring the request ID. Used to verify idempotent rebuilds.
func (r *Request) Equivalent(o *Request) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Kind != o.Kind ||
		r.ControlMode != o.ControlMode ||
		r.AFMode != o.AFMode ||
		r.FocusDistance != o.FocusDistance ||
		r.AEMode != o.AEMode ||
		r.Sensitivity != o.Sensitivity ||
		r.ExposureTime != o.ExposureTime ||
		r.AWBAuto != o.AWBAuto ||
		len(r.Targets) != len(o.Targets) {
		return false
	}
	for i := range r.Targets {
		if r.Targets[i] != o.Targets[i] {
			return false
		}
	}
	return true
}

// Result is the metadata the device reports when a capture completes.
// Timestamp is on the sensor clock and matches the timestamp of the pixel
// buffer produced by the same exposure.
type Result struct {
	RequestID     uuid.UUID
	Timestamp     int64
	Sensitivity   int32
	ExposureTime  int64
	FocusDistance float64
}

// PixelFormat is the buffer pixel layout.
type PixelFormat int

const (
	// FormatJPEG is a compressed JPEG buffer.
	FormatJPEG PixelFormat = iota
	// FormatRAW is an unprocessed sensor dump.
	FormatRAW
	// FormatYUV is planar YUV 4:2:0.
	FormatYUV
	// FormatDepth is a depth map. Depth buffers do not carry a sensor
	// timestamp comparable to capture results.
	FormatDepth
)

func (f PixelFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatRAW:
		return "raw"
	case FormatYUV:
		return "yuv"
	case FormatDepth:
		return "depth"
	default:
		return "unknown"
	}
}

// Buffer is one pixel buffer claimed from a Reader's bounded pool.
// Every claimed buffer must be released exactly once; Release is idempotent
// so error paths can release defensively without double-freeing the slot.
type Buffer struct {
	Timestamp int64
	Format    PixelFormat
	Width     int
	Height    int
	Data      []byte

	releaseOnce sync.Once
	release     func()
}

// NewBuffer constructs a buffer whose pool slot is returned by release.
// Drivers call this; consumers only ever call Release.
func NewBuffer(timestamp int64, format PixelFormat, w, h int, data []byte, release func()) *Buffer {
	return &Buffer{
		Timestamp: timestamp,
		Format:    format,
		Width:     w,
		Height:    h,
		Data:      data,
		release:   release,
	}
}

// Release returns the buffer's slot to the reader pool. Safe to call more
// than once; only the first call has effect.
func (b *Buffer) Release() {
	b.releaseOnce.Do(func() {
		if b.release != nil {
			b.release()
		}
	})
}
