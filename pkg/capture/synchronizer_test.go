package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-camkit/pkg/controls"
	"github.com/teslashibe/go-camkit/pkg/device"
)

// fakeCapturer drives a BufferedReader with scripted completion metadata and
// buffer timestamps, standing in for the session controller.
type fakeCapturer struct {
	caps   device.Characteristics
	reader *device.BufferedReader

	timestamp int64
	offsets   []int64 // one emitted buffer per entry, relative to timestamp
	format    device.PixelFormat
	submitErr error
	failErr   error
	silent    bool // never resolve the completion
	release   chan struct{}
}

func (f *fakeCapturer) Characteristics() device.Characteristics { return f.caps }

func (f *fakeCapturer) CaptureStill(_ controls.State, cb *device.CaptureCallbacks) (*device.Request, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	req := &device.Request{ID: uuid.New(), Kind: device.KindStill}
	if f.silent {
		return req, nil
	}
	go func() {
		if f.release != nil {
			<-f.release
		}
		if f.failErr != nil {
			cb.OnFailed(req, f.failErr)
			return
		}
		cb.OnCompleted(req, &device.Result{RequestID: req.ID, Timestamp: f.timestamp})
		for _, off := range f.offsets {
			f.reader.Emit(f.timestamp+off, f.format, 4, 4, []byte{0xFF})
		}
	}()
	return req, nil
}

func newFakeCapture(t *testing.T, opts ...SyncOption) (*fakeCapturer, *Synchronizer) {
	t.Helper()
	q := device.NewQueue("capture-test")
	t.Cleanup(q.Close)
	reader := device.NewBufferedReader(3, q)
	t.Cleanup(func() { reader.Close() })

	f := &fakeCapturer{
		caps:      device.DefaultMockCharacteristics(),
		reader:    reader,
		timestamp: 1_000_000,
		offsets:   []int64{-2, -1, 0},
		format:    device.FormatJPEG,
	}
	s := NewSynchronizer(f, reader, opts...)
	t.Cleanup(s.Close)
	return f, s
}

func TestCaptureMatchesByTimestamp(t *testing.T) {
	f, s := newFakeCapture(t)

	res, err := s.Capture(context.Background(), controls.State{})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if res.Buffer.Timestamp != f.timestamp {
		t.Errorf("matched timestamp = %d, want %d", res.Buffer.Timestamp, f.timestamp)
	}
	if res.Meta.Timestamp != f.timestamp {
		t.Errorf("metadata timestamp = %d, want %d", res.Meta.Timestamp, f.timestamp)
	}
	if res.Format != device.FormatJPEG {
		t.Errorf("Format = %v, want FormatJPEG", res.Format)
	}
	res.Release()

	// The two preceding frames were released during matching, the matched
	// one just now. Nothing may stay claimed.
	if n := f.reader.Outstanding(); n != 0 {
		t.Errorf("%d buffers still outstanding after release", n)
	}
}

func TestCaptureTimesOutWithoutMatch(t *testing.T) {
	f, s := newFakeCapture(t, WithTimeout(60*time.Millisecond))
	f.offsets = []int64{-2, -1} // the matching frame never arrives

	_, err := s.Capture(context.Background(), controls.State{})
	if !errors.Is(err, ErrDequeueTimeout) {
		t.Fatalf("Capture() error = %v, want ErrDequeueTimeout", err)
	}
	if !IsRetryable(err) {
		t.Error("dequeue timeout should be retryable")
	}
	if n := f.reader.Outstanding(); n != 0 {
		t.Errorf("%d buffers leaked on the timeout path", n)
	}
}

func TestCaptureDepthFormatExemptFromMatching(t *testing.T) {
	f, s := newFakeCapture(t)
	f.format = device.FormatDepth
	f.offsets = []int64{-50} // deliberately off the result timestamp

	res, err := s.Capture(context.Background(), controls.State{})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	defer res.Release()
	if res.Format != device.FormatDepth {
		t.Errorf("Format = %v, want FormatDepth", res.Format)
	}
}

func TestCaptureOrientation(t *testing.T) {
	f, s := newFakeCapture(t, WithDisplayRotation(90))
	f.caps.Facing = device.FacingFront
	f.caps.SensorOrientation = 270

	res, err := s.Capture(context.Background(), controls.State{})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	defer res.Release()
	// (270 + 90) % 360 = 0 with mirroring: horizontal flip.
	if res.Orientation != OrientationFlipHorizontal {
		t.Errorf("Orientation = %d, want %d", res.Orientation, OrientationFlipHorizontal)
	}
}

func TestCaptureSubmitErrorPropagates(t *testing.T) {
	f, s := newFakeCapture(t)
	f.submitErr = device.ErrSessionClosed

	_, err := s.Capture(context.Background(), controls.State{})
	if !errors.Is(err, device.ErrSessionClosed) {
		t.Errorf("Capture() error = %v, want ErrSessionClosed", err)
	}
	if IsRetryable(err) {
		t.Error("submit failures are not retryable")
	}
}

func TestCaptureDeviceFailureClassified(t *testing.T) {
	f, s := newFakeCapture(t)
	f.failErr = device.ErrUnsupportedFormat

	_, err := s.Capture(context.Background(), controls.State{})
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("Capture() error = %v, want *UnsupportedFormatError", err)
	}
	if !errors.Is(err, device.ErrUnsupportedFormat) {
		t.Error("classified error should still unwrap to the device sentinel")
	}
	if IsRetryable(err) {
		t.Error("format rejections are not retryable")
	}
}

func TestCaptureContextCancelWhileWaiting(t *testing.T) {
	f, s := newFakeCapture(t)
	f.silent = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.Capture(ctx, controls.State{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Capture() error = %v, want deadline exceeded", err)
	}
}

func TestCaptureDrainsStaleFramesFirst(t *testing.T) {
	f, s := newFakeCapture(t)

	// Leftovers from a previous preview burst share no timestamp with the
	// upcoming capture.
	f.reader.Emit(1, device.FormatJPEG, 4, 4, nil)
	f.reader.Emit(2, device.FormatJPEG, 4, 4, nil)

	res, err := s.Capture(context.Background(), controls.State{})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if res.Buffer.Timestamp != f.timestamp {
		t.Errorf("matched a stale frame: timestamp = %d", res.Buffer.Timestamp)
	}
	res.Release()
	if n := f.reader.Outstanding(); n != 0 {
		t.Errorf("%d buffers still outstanding", n)
	}
}

func TestTryCaptureBusy(t *testing.T) {
	f, s := newFakeCapture(t)
	f.release = make(chan struct{})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := s.Capture(context.Background(), controls.State{})
		done <- err
	}()
	<-started
	time.Sleep(20 * time.Millisecond) // let the first capture take the lock

	if _, err := s.TryCapture(context.Background(), controls.State{}); !errors.Is(err, ErrBusy) {
		t.Errorf("TryCapture() error = %v, want ErrBusy", err)
	}

	close(f.release)
	if err := <-done; err != nil {
		t.Errorf("first Capture() error = %v", err)
	}
}

func TestCaptureAfterClose(t *testing.T) {
	_, s := newFakeCapture(t)
	s.Close()
	if _, err := s.Capture(context.Background(), controls.State{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Capture() after Close = %v, want ErrClosed", err)
	}
}
