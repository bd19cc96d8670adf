package device

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

// MockDriver is an in-memory driver for tests and for running the daemon
// without hardware. It produces synthetic JPEG frames and scriptable capture
// outcomes, and keeps full request histories for assertions.
type MockDriver struct {
	mu    sync.Mutex
	caps  Characteristics
	depth int

	openErr      *OpenError
	configureErr *ConfigurationError
	captureErr   error

	// stillOffsets are sensor-timestamp offsets, one emitted buffer per
	// entry, relative to the capture's result timestamp. The default
	// {-2, -1, 0} exercises the discard-then-match path.
	stillOffsets []int64
	stillFormat  PixelFormat
	bufferDelay  time.Duration

	deviceQueue *Queue
	readerQueue *Queue

	device      *MockDevice
	reader      *BufferedReader
	previewSink func([]byte)
}

// MockOption configures a MockDriver.
type MockOption func(*MockDriver)

// WithCharacteristics sets the capability profile the mock reports.
func WithCharacteristics(c Characteristics) MockOption {
	return func(m *MockDriver) { m.caps = c }
}

// WithOpenError makes Open fail with the given reason.
func WithOpenError(reason OpenReason) MockOption {
	return func(m *MockDriver) {
		m.openErr = &OpenError{Reason: reason}
	}
}

// WithConfigureError makes CreateSession fail.
func WithConfigureError(err error) MockOption {
	return func(m *MockDriver) {
		m.configureErr = &ConfigurationError{Cause: err}
	}
}

// WithCaptureError makes one-shot captures fail.
func WithCaptureError(err error) MockOption {
	return func(m *MockDriver) { m.captureErr = err }
}

// WithStillOffsets sets the timestamp offsets of the buffers emitted per
// still capture. An offset of zero emits the matching buffer.
func WithStillOffsets(offsets ...int64) MockOption {
	return func(m *MockDriver) { m.stillOffsets = offsets }
}

// WithStillFormat sets the pixel format of emitted still buffers.
func WithStillFormat(f PixelFormat) MockOption {
	return func(m *MockDriver) { m.stillFormat = f }
}

// WithReaderDepth sets the bounded reader pool capacity.
func WithReaderDepth(n int) MockOption {
	return func(m *MockDriver) { m.depth = n }
}

// WithBufferDelay delays each emitted buffer, simulating readout latency.
func WithBufferDelay(d time.Duration) MockOption {
	return func(m *MockDriver) { m.bufferDelay = d }
}

// DefaultMockCharacteristics is a fully capable back sensor: manual focus
// and manual exposure both available.
func DefaultMockCharacteristics() Characteristics {
	return Characteristics{
		Facing:            FacingBack,
		SensorOrientation: 90,
		MinFocusDistance:  0.1,
		AFModes:           []AFMode{AFOff, AFAuto, AFContinuousPicture},
		AEModes:           []AEMode{AEOff, AEOn},
		ISORange:          &IntRange{Min: 50, Max: 6400},
		ExposureTimeRange: &IntRange{Min: 100_000, Max: 1_000_000_000},
	}
}

// NewMockDriver creates a mock driver.
func NewMockDriver(opts ...MockOption) *MockDriver {
	m := &MockDriver{
		caps:         DefaultMockCharacteristics(),
		depth:        3,
		stillOffsets: []int64{-2, -1, 0},
		stillFormat:  FormatJPEG,
		deviceQueue:  NewQueue("mock-device"),
		readerQueue:  NewQueue("mock-reader"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reader = NewBufferedReader(m.depth, m.readerQueue)
	return m
}

// Devices lists the single mock device.
func (m *MockDriver) Devices() []ID {
	return []ID{"mock-0"}
}

// Open resolves asynchronously on the device dispatch queue.
func (m *MockDriver) Open(id ID, cb StateCallbacks) {
	m.deviceQueue.Submit(func() {
		if m.openErr != nil {
			if cb.OnError != nil {
				e := *m.openErr
				e.ID = id
				cb.OnError(id, &e)
			}
			return
		}
		m.mu.Lock()
		m.device = &MockDevice{id: id, driver: m, state: cb}
		dev := m.device
		m.mu.Unlock()
		if cb.OnOpened != nil {
			cb.OnOpened(dev)
		}
	})
}

// Device returns the opened mock device, or nil before Open resolves.
func (m *MockDriver) Device() *MockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// Session returns the configured mock session, or nil before CreateSession
// resolves.
func (d *MockDevice) Session() *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// SetPreviewSink routes synthetic preview frames from every session, current
// and future, to the given sink.
func (m *MockDriver) SetPreviewSink(sink func([]byte)) {
	m.mu.Lock()
	m.previewSink = sink
	m.mu.Unlock()
}

func (m *MockDriver) previewOut() func([]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previewSink
}

// Reader returns the mock's buffer reader.
func (m *MockDriver) Reader() *BufferedReader {
	return m.reader
}

// Close stops both dispatch queues.
func (m *MockDriver) Close() {
	m.deviceQueue.Close()
	m.readerQueue.Close()
}

var _ Driver = (*MockDriver)(nil)

// MockDevice is the device half of the mock driver.
type MockDevice struct {
	id     ID
	driver *MockDriver
	state  StateCallbacks

	mu      sync.Mutex
	closed  bool
	session *MockSession
}

// ID returns the mock device ID.
func (d *MockDevice) ID() ID { return d.id }

// Characteristics returns the configured capability profile.
func (d *MockDevice) Characteristics() Characteristics {
	return d.driver.caps
}

// CreateSession resolves asynchronously on the device dispatch queue.
func (d *MockDevice) CreateSession(targets []Target, cb SessionCallbacks) {
	d.driver.deviceQueue.Submit(func() {
		if d.driver.configureErr != nil {
			if cb.OnConfigureFailed != nil {
				e := *d.driver.configureErr
				e.ID = d.id
				cb.OnConfigureFailed(&e)
			}
			return
		}
		d.mu.Lock()
		d.session = newMockSession(d, targets)
		sess := d.session
		d.mu.Unlock()
		if cb.OnConfigured != nil {
			cb.OnConfigured(sess)
		}
	})
}

// TriggerDisconnect simulates the device going away after a successful open.
func (d *MockDevice) TriggerDisconnect() {
	d.driver.deviceQueue.Submit(func() {
		if d.state.OnDisconnected != nil {
			d.state.OnDisconnected(d)
		}
	})
}

// Close marks the device closed. Idempotent.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var _ Device = (*MockDevice)(nil)

// MockSession records every submitted request and synthesizes results and
// reader buffers for still captures.
type MockSession struct {
	device  *MockDevice
	targets []Target

	mu        sync.Mutex
	closed    bool
	stopped   bool
	repeating []*Request
	stills    []*Request
	frameSeq  int64

	// PreviewSink, when set, receives a synthetic JPEG per repeating
	// submission. The daemon points this at the web preview hub.
	PreviewSink func([]byte)
}

func newMockSession(d *MockDevice, targets []Target) *MockSession {
	return &MockSession{device: d, targets: targets}
}

// SetRepeatingRequest records the request and emits one synthetic preview
// frame so downstream consumers observe the new settings immediately.
func (s *MockSession) SetRepeatingRequest(req *Request, cb *CaptureCallbacks) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.repeating = append(s.repeating, req)
	s.stopped = false
	sink := s.PreviewSink
	s.mu.Unlock()
	if sink == nil {
		sink = s.device.driver.previewOut()
	}

	s.device.driver.deviceQueue.Submit(func() {
		ts := time.Now().UnixNano()
		if cb != nil && cb.OnCompleted != nil {
			cb.OnCompleted(req, s.resultFor(req, ts))
		}
		if sink != nil {
			sink(s.syntheticJPEG())
		}
	})
	return nil
}

// Capture submits a one-shot request: the scripted buffers land in the
// reader and the completion callback carries the matching timestamp.
func (s *MockSession) Capture(req *Request, cb *CaptureCallbacks) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.stills = append(s.stills, req)
	s.mu.Unlock()

	drv := s.device.driver
	drv.deviceQueue.Submit(func() {
		if drv.captureErr != nil {
			if cb != nil && cb.OnFailed != nil {
				cb.OnFailed(req, drv.captureErr)
			}
			return
		}
		ts := time.Now().UnixNano()
		if cb != nil && cb.OnCompleted != nil {
			cb.OnCompleted(req, s.resultFor(req, ts))
		}
		frame := s.syntheticJPEG()
		for _, off := range drv.stillOffsets {
			bufTS := ts + off
			if drv.bufferDelay > 0 {
				time.Sleep(drv.bufferDelay)
			}
			drv.reader.Emit(bufTS, drv.stillFormat, 64, 48, frame)
		}
	})
	return nil
}

func (s *MockSession) resultFor(req *Request, ts int64) *Result {
	return &Result{
		RequestID:     req.ID,
		Timestamp:     ts,
		Sensitivity:   req.Sensitivity,
		ExposureTime:  req.ExposureTime,
		FocusDistance: req.FocusDistance,
	}
}

// StopRepeating halts frame production without closing the session.
func (s *MockSession) StopRepeating() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.stopped = true
	return nil
}

// Close marks the session closed. Idempotent.
func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// RepeatingHistory returns every repeating request submitted, oldest first.
func (s *MockSession) RepeatingHistory() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.repeating))
	copy(out, s.repeating)
	return out
}

// StillHistory returns every one-shot request submitted, oldest first.
func (s *MockSession) StillHistory() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.stills))
	copy(out, s.stills)
	return out
}

// syntheticJPEG renders a small moving gradient so successive frames differ.
func (s *MockSession) syntheticJPEG() []byte {
	s.mu.Lock()
	seq := s.frameSeq
	s.frameSeq++
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*4 + int(seq)) % 256),
				G: uint8((y*5 + int(seq)*3) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70})
	return buf.Bytes()
}

var _ Session = (*MockSession)(nil)
