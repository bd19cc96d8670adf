// Package webcam is a gocv-backed driver for plain UVC webcams. It maps the
// request fields onto OpenCV capture properties where the hardware exposes
// them and reports a gated capability profile otherwise, so devices without
// manual controls degrade to the full-auto baseline exactly like any other
// capability-gated device.
package webcam

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-camkit/pkg/device"
)

// focusNear is the near focus distance the driver reports when the capture
// exposes a focus property. UVC focus is a unitless 0-255 position;
// distances are mapped across it relative to this near point.
const focusNear = 0.1

// uvcFocusMax is the far end of the UVC focus position range.
const uvcFocusMax = 255

// V4L2 auto-exposure menu values as exposed through OpenCV.
const (
	autoExposureManual = 0.25
	autoExposureAuto   = 0.75
)

// previewInterval paces the grab loop (~30 fps).
const previewInterval = 33 * time.Millisecond

// Driver opens UVC webcams by numeric index or device path.
type Driver struct {
	logger      *slog.Logger
	deviceQueue *device.Queue
	readerQueue *device.Queue
	reader      *device.BufferedReader

	mu          sync.Mutex
	previewSink func([]byte)
}

// NewDriver creates a webcam driver.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	q := device.NewQueue("webcam-device")
	rq := device.NewQueue("webcam-reader")
	return &Driver{
		logger:      logger,
		deviceQueue: q,
		readerQueue: rq,
		reader:      device.NewBufferedReader(device.DefaultReaderDepth, rq),
	}
}

// Devices lists the default webcam index. UVC offers no portable
// enumeration; operators pass explicit indices or paths.
func (d *Driver) Devices() []device.ID {
	return []device.ID{"0"}
}

// Open resolves asynchronously on the device dispatch queue.
func (d *Driver) Open(id device.ID, cb device.StateCallbacks) {
	d.deviceQueue.Submit(func() {
		vc, err := openCapture(string(id))
		if err != nil {
			d.logger.Error("webcam open failed", "device", string(id), "error", err)
			if cb.OnError != nil {
				cb.OnError(id, device.NewOpenError(id, device.ReasonDeviceFatal, err))
			}
			return
		}
		dev := &Device{
			id:     id,
			driver: d,
			cap:    vc,
			caps:   probeCharacteristics(vc),
		}
		if cb.OnOpened != nil {
			cb.OnOpened(dev)
		}
	})
}

func openCapture(id string) (*gocv.VideoCapture, error) {
	if idx, err := strconv.Atoi(id); err == nil {
		return gocv.OpenVideoCapture(idx)
	}
	return gocv.OpenVideoCapture(id)
}

// probeCharacteristics builds the capability profile from the properties
// the capture actually responds to. Manual modes are advertised only when
// the matching property reads back a value.
func probeCharacteristics(vc *gocv.VideoCapture) device.Characteristics {
	c := device.Characteristics{
		Facing:            device.FacingExternal,
		SensorOrientation: 0,
		AFModes:           []device.AFMode{device.AFContinuousPicture},
		AEModes:           []device.AEMode{device.AEOn},
	}
	if vc.Get(gocv.VideoCaptureAutoFocus) > 0 {
		c.MinFocusDistance = focusNear
		c.AFModes = append(c.AFModes, device.AFOff)
	}
	if vc.Get(gocv.VideoCaptureExposure) != 0 {
		c.AEModes = append(c.AEModes, device.AEOff)
		c.ExposureTimeRange = &device.IntRange{Min: 100_000, Max: 1_000_000_000}
		if vc.Get(gocv.VideoCaptureISOSpeed) > 0 {
			c.ISORange = &device.IntRange{Min: 100, Max: 1600}
		}
	}
	return c
}

// SetPreviewSink routes JPEG preview frames from every session, current and
// future, to the given sink.
func (d *Driver) SetPreviewSink(sink func([]byte)) {
	d.mu.Lock()
	d.previewSink = sink
	d.mu.Unlock()
}

func (d *Driver) previewOut() func([]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.previewSink
}

// Reader returns the driver's buffer reader.
func (d *Driver) Reader() *device.BufferedReader {
	return d.reader
}

// Close stops the dispatch queues.
func (d *Driver) Close() {
	d.deviceQueue.Close()
	d.readerQueue.Close()
}

var _ device.Driver = (*Driver)(nil)

// Device is one opened webcam.
type Device struct {
	id     device.ID
	driver *Driver
	caps   device.Characteristics

	camMu sync.Mutex
	cap   *gocv.VideoCapture

	mu      sync.Mutex
	closed  bool
	session *Session
}

// ID returns the device identifier.
func (w *Device) ID() device.ID { return w.id }

// Characteristics returns the probed capability profile.
func (w *Device) Characteristics() device.Characteristics { return w.caps }

// CreateSession resolves asynchronously on the device dispatch queue.
func (w *Device) CreateSession(targets []device.Target, cb device.SessionCallbacks) {
	w.driver.deviceQueue.Submit(func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			if cb.OnConfigureFailed != nil {
				cb.OnConfigureFailed(&device.ConfigurationError{ID: w.id, Cause: device.ErrDeviceClosed})
			}
			return
		}
		s := &Session{device: w, targets: targets, stop: make(chan struct{})}
		w.session = s
		w.mu.Unlock()
		if cb.OnConfigured != nil {
			cb.OnConfigured(s)
		}
	})
}

// Close releases the capture handle. Idempotent.
func (w *Device) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	sess := w.session
	w.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	w.camMu.Lock()
	defer w.camMu.Unlock()
	return w.cap.Close()
}

var _ device.Device = (*Device)(nil)

// Session drives the webcam: a grab loop for the repeating request and
// synchronous reads for stills.
type Session struct {
	device  *Device
	targets []device.Target

	// PreviewSink receives JPEG preview frames from the grab loop.
	PreviewSink func([]byte)

	mu      sync.Mutex
	closed  bool
	running bool
	stop    chan struct{}
}

// SetRepeatingRequest applies the request's control fields to the hardware
// and (re)starts the grab loop. Resubmission only rewrites properties; the
// loop keeps running, so the stream never gaps.
func (s *Session) SetRepeatingRequest(req *device.Request, cb *device.CaptureCallbacks) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return device.ErrSessionClosed
	}
	start := !s.running
	s.running = true
	stop := s.stop
	s.mu.Unlock()

	s.applyControls(req)
	if start {
		go s.grabLoop(stop)
	}
	return nil
}

// applyControls maps request fields onto capture properties.
func (s *Session) applyControls(req *device.Request) {
	w := s.device
	w.camMu.Lock()
	defer w.camMu.Unlock()

	if req.AFMode == device.AFOff {
		w.cap.Set(gocv.VideoCaptureAutoFocus, 0)
		w.cap.Set(gocv.VideoCaptureFocus, focusPosition(req.FocusDistance))
	} else {
		w.cap.Set(gocv.VideoCaptureAutoFocus, 1)
	}

	if req.AEMode == device.AEOff {
		w.cap.Set(gocv.VideoCaptureAutoExposure, autoExposureManual)
		if req.ExposureTime > 0 {
			// V4L2 absolute exposure is in 100 microsecond units.
			w.cap.Set(gocv.VideoCaptureExposure, float64(req.ExposureTime)/100_000)
		}
		if req.Sensitivity > 0 {
			w.cap.Set(gocv.VideoCaptureISOSpeed, float64(req.Sensitivity))
		}
	} else {
		w.cap.Set(gocv.VideoCaptureAutoExposure, autoExposureAuto)
	}
}

// focusPosition maps a focus distance onto the UVC 0-255 position range:
// the far end of the accepted range lands at 0, the near point at max.
// The span assumes the default focus range multiplier.
func focusPosition(dist float64) float64 {
	far := focusNear * 10 // matches controls.DefaultFocusRangeMultiplier
	if dist <= focusNear {
		return uvcFocusMax
	}
	if dist >= far {
		return 0
	}
	return uvcFocusMax * (far - dist) / (far - focusNear)
}

func (s *Session) grabLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()
	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.device.camMu.Lock()
		ok := s.device.cap.Read(&img)
		s.device.camMu.Unlock()
		if !ok || img.Empty() {
			continue
		}

		s.mu.Lock()
		sink := s.PreviewSink
		s.mu.Unlock()
		if sink == nil {
			sink = s.device.driver.previewOut()
		}
		if sink == nil {
			continue
		}
		if jpeg, err := encodeJPEG(img); err == nil {
			sink(jpeg)
		}
	}
}

// Capture reads one frame for the still request, completes the capture
// callback with the frame timestamp, and emits the buffer to the reader.
func (s *Session) Capture(req *device.Request, cb *device.CaptureCallbacks) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return device.ErrSessionClosed
	}
	s.mu.Unlock()

	s.device.driver.deviceQueue.Submit(func() {
		img := gocv.NewMat()
		defer img.Close()

		s.device.camMu.Lock()
		ok := s.device.cap.Read(&img)
		s.device.camMu.Unlock()
		if !ok || img.Empty() {
			if cb != nil && cb.OnFailed != nil {
				cb.OnFailed(req, fmt.Errorf("webcam: frame read failed"))
			}
			return
		}

		jpeg, err := encodeJPEG(img)
		if err != nil {
			if cb != nil && cb.OnFailed != nil {
				cb.OnFailed(req, fmt.Errorf("webcam: %w", device.ErrUnsupportedFormat))
			}
			return
		}

		ts := time.Now().UnixNano()
		if cb != nil && cb.OnCompleted != nil {
			cb.OnCompleted(req, &device.Result{
				RequestID:     req.ID,
				Timestamp:     ts,
				Sensitivity:   req.Sensitivity,
				ExposureTime:  req.ExposureTime,
				FocusDistance: req.FocusDistance,
			})
		}
		s.device.driver.reader.Emit(ts, device.FormatJPEG, img.Cols(), img.Rows(), jpeg)
	})
	return nil
}

func encodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// StopRepeating halts the grab loop without closing the session.
func (s *Session) StopRepeating() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return device.ErrSessionClosed
	}
	if s.running {
		s.running = false
		close(s.stop)
		s.stop = make(chan struct{})
	}
	return nil
}

// Close stops the loop and marks the session closed. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.running {
		s.running = false
		close(s.stop)
	}
	return nil
}

var _ device.Session = (*Session)(nil)
