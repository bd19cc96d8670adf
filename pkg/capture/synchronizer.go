// Package capture correlates a just-captured pixel buffer with its
// capture-result metadata. The buffer and the metadata arrive on independent
// asynchronous channels and may arrive in either order; the synchronizer
// matches them strictly by sensor timestamp under a bounded timeout and
// yields exactly one combined result or one typed failure per invocation.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-camkit/pkg/controls"
	"github.com/teslashibe/go-camkit/pkg/device"
)

// DefaultTimeout is how long the synchronizer waits for a matching buffer
// after the device reports the capture completed.
const DefaultTimeout = 5 * time.Second

// StillCapturer is the slice of the session controller the synchronizer
// uses: one-shot submission plus the capability profile for orientation.
type StillCapturer interface {
	CaptureStill(st controls.State, cb *device.CaptureCallbacks) (*device.Request, error)
	Characteristics() device.Characteristics
}

// StillResult is the correlated pairing of one pixel buffer with its capture
// metadata. It owns the buffer; the consumer must call Release on every exit
// path, including error paths, or the reader pool exhausts.
type StillResult struct {
	Buffer      *device.Buffer
	Meta        *device.Result
	Orientation int
	Format      device.PixelFormat
}

// Release returns the buffer to the reader pool. Idempotent.
func (r *StillResult) Release() {
	if r != nil && r.Buffer != nil {
		r.Buffer.Release()
	}
}

// Synchronizer issues one still capture at a time and resolves it into a
// StillResult. Invocations serialize: a second Capture waits until the first
// reaches a terminal state.
type Synchronizer struct {
	capturer        StillCapturer
	reader          device.Reader
	timeout         time.Duration
	displayRotation int
	logger          *slog.Logger

	mu     sync.Mutex
	closed bool
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithTimeout overrides the match deadline.
func WithTimeout(d time.Duration) SyncOption {
	return func(s *Synchronizer) { s.timeout = d }
}

// WithDisplayRotation sets the display rotation (degrees) used for the EXIF
// orientation of results.
func WithDisplayRotation(deg int) SyncOption {
	return func(s *Synchronizer) { s.displayRotation = deg }
}

// WithLogger sets the synchronizer's logger.
func WithLogger(l *slog.Logger) SyncOption {
	return func(s *Synchronizer) { s.logger = l }
}

// NewSynchronizer creates a synchronizer over the given capturer and reader.
func NewSynchronizer(capturer StillCapturer, reader device.Reader, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		capturer: capturer,
		reader:   reader,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture issues one still request built from the given control state and
// blocks until the matching buffer is paired with the capture metadata, the
// timeout fires, or a device error surfaces. Exactly one terminal outcome is
// produced. On success the caller owns the result and must Release it.
func (s *Synchronizer) Capture(ctx context.Context, st controls.State) (*StillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureLocked(ctx, st)
}

// TryCapture is the non-blocking variant of Capture: if another capture is
// already in flight it fails immediately with ErrBusy instead of waiting.
func (s *Synchronizer) TryCapture(ctx context.Context, st controls.State) (*StillResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()
	return s.captureLocked(ctx, st)
}

func (s *Synchronizer) captureLocked(ctx context.Context, st controls.State) (*StillResult, error) {
	if s.closed {
		return nil, ErrClosed
	}

	// Draining: the buffer channel must start from a known-empty state or
	// a stale frame from a previous operation could be mis-matched
	// against this request.
	for {
		b, ok := s.reader.Acquire()
		if !ok {
			break
		}
		b.Release()
	}

	queue := newBufferQueue(s.reader.Depth())
	s.reader.SetHandler(func() {
		for {
			b, ok := s.reader.Acquire()
			if !ok {
				return
			}
			queue.put(b)
		}
	})
	defer s.reader.SetHandler(nil)
	defer queue.drain()

	// AwaitingCapture: submit the one-shot and wait for the completion
	// metadata. No buffer filtering happens yet because the match target
	// is unknown until the request completes.
	type completion struct {
		res *device.Result
		err error
	}
	compCh := make(chan completion, 1)
	var compOnce sync.Once
	cb := &device.CaptureCallbacks{
		OnCompleted: func(_ *device.Request, res *device.Result) {
			compOnce.Do(func() { compCh <- completion{res: res} })
		},
		OnFailed: func(_ *device.Request, err error) {
			compOnce.Do(func() { compCh <- completion{err: err} })
		},
	}

	req, err := s.capturer.CaptureStill(st, cb)
	if err != nil {
		return nil, s.classify(err)
	}

	var res *device.Result
	select {
	case comp := <-compCh:
		if comp.err != nil {
			s.logger.Error("still capture failed", "request", req.ID.String(), "error", comp.err)
			return nil, s.classify(comp.err)
		}
		res = comp.res
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// AwaitingMatch: the timeout timer arms now, racing the queue takes.
	// Buffers can arrive out of order relative to the completion
	// notification, so matching is strictly by timestamp equality with
	// this specific result, never "the next buffer".
	matchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for {
		b, err := queue.take(matchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("capture match timed out",
					"request", req.ID.String(),
					"timestamp", res.Timestamp,
					"timeout", s.timeout)
				return nil, ErrDequeueTimeout
			}
			return nil, err
		}

		// Depth outputs do not carry a comparable sensor timestamp.
		if b.Format != device.FormatDepth && b.Timestamp != res.Timestamp {
			b.Release()
			continue
		}

		caps := s.capturer.Characteristics()
		mirrored := caps.Facing.Mirrored()
		rotation := RelativeRotation(caps.SensorOrientation, s.displayRotation, mirrored)
		result := &StillResult{
			Buffer:      b,
			Meta:        res,
			Orientation: ExifOrientation(rotation, mirrored),
			Format:      b.Format,
		}
		s.logger.Info("capture resolved",
			"request", req.ID.String(),
			"timestamp", res.Timestamp,
			"format", b.Format.String(),
			"orientation", result.Orientation)
		return result, nil
	}
}

// classify maps device submission/completion errors to the capture
// taxonomy.
func (s *Synchronizer) classify(err error) error {
	if errors.Is(err, device.ErrUnsupportedFormat) {
		return &UnsupportedFormatError{Cause: err}
	}
	return err
}

// Close shuts the synchronizer down. A capture in flight finishes first;
// later invocations fail with ErrClosed.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
