// Package session drives the device lifecycle: asynchronous open, session
// configuration against a fixed target list, the repeating preview request,
// and one-shot still submission. All async device operations are converted
// into blocking context-aware calls through single-resume continuations.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-camkit/pkg/controls"
	"github.com/teslashibe/go-camkit/pkg/device"
)

// Controller owns one device and its session for the lifetime of a capture
// screen. It is the only component allowed to submit session-affecting
// calls.
type Controller struct {
	driver  device.Driver
	logger  *slog.Logger
	onFatal func(error)

	mu        sync.Mutex
	dev       device.Device
	sess      device.Session
	caps      device.Characteristics
	targets   []device.Target
	opened    bool
	closed    bool
	openFut   *oneshot[device.Device]
	lastState controls.State
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithOnFatal installs the hook invoked when the device disconnects after a
// successful open. The hosting screen must terminate; the controller has
// already shut itself down when the hook runs.
func WithOnFatal(fn func(error)) ControllerOption {
	return func(c *Controller) { c.onFatal = fn }
}

// NewController creates a controller over the given driver.
func NewController(driver device.Driver, opts ...ControllerOption) *Controller {
	c := &Controller{
		driver: driver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open requests exclusive access to the named device and blocks until the
// driver resolves it. Exactly one of success or a typed *device.OpenError is
// returned; open failures are never silently retried.
func (c *Controller) Open(ctx context.Context, id device.ID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	fut := newOneshot[device.Device]()
	c.openFut = fut
	c.mu.Unlock()

	c.driver.Open(id, device.StateCallbacks{
		OnOpened: func(d device.Device) {
			fut.resolve(d)
		},
		OnError: func(id device.ID, e *device.OpenError) {
			fut.reject(e)
		},
		OnDisconnected: func(d device.Device) {
			c.handleDisconnect(d, fut)
		},
	})

	dev, err := fut.await(ctx)
	if err != nil {
		c.logger.Error("device open failed", "device", string(id), "error", err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		dev.Close()
		return ErrClosed
	}
	c.dev = dev
	c.caps = dev.Characteristics()
	c.opened = true
	c.mu.Unlock()

	c.logger.Info("device opened",
		"device", string(id),
		"facing", c.caps.Facing.String(),
		"min_focus", c.caps.MinFocusDistance)
	return nil
}

// handleDisconnect deals with the device going away. A disconnect racing an
// unresolved open resolves the open as a failure; a disconnect after a
// successful open is fatal to the hosting screen.
func (c *Controller) handleDisconnect(d device.Device, openFut *oneshot[device.Device]) {
	err := device.NewOpenError(d.ID(), device.ReasonDisconnected, nil)
	openFut.reject(err)

	c.mu.Lock()
	wasOpen := c.opened && !c.closed
	c.mu.Unlock()
	if !wasOpen {
		return
	}

	c.logger.Error("device disconnected", "device", string(d.ID()))
	c.Close()
	if c.onFatal != nil {
		c.onFatal(err)
	}
}

// Characteristics returns the capability profile read at open.
func (c *Controller) Characteristics() device.Characteristics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// Configure binds the opened device to a fixed output target list and
// blocks until the session resolves. Succeeds or fails exactly once.
func (c *Controller) Configure(ctx context.Context, targets []device.Target) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	dev := c.dev
	c.mu.Unlock()
	if dev == nil {
		return ErrNotOpened
	}

	fut := newOneshot[device.Session]()
	dev.CreateSession(targets, device.SessionCallbacks{
		OnConfigured: func(s device.Session) {
			fut.resolve(s)
		},
		OnConfigureFailed: func(e *device.ConfigurationError) {
			fut.reject(e)
		},
	})

	sess, err := fut.await(ctx)
	if err != nil {
		c.logger.Error("session configure failed", "error", err)
		return err
	}

	c.mu.Lock()
	c.sess = sess
	c.targets = append([]device.Target(nil), targets...)
	c.mu.Unlock()

	c.logger.Info("session configured", "targets", len(targets))
	return nil
}

// StartPreview submits the full-auto baseline repeating request. Later
// parameter updates preserve this baseline's auto white balance and overall
// auto control mode; only AF and AE sub-modes toggle underneath it.
func (c *Controller) StartPreview() error {
	c.mu.Lock()
	sess, targets := c.sess, c.targets
	c.mu.Unlock()
	if sess == nil {
		return ErrNotConfigured
	}
	req := baselineRequest(device.KindPreview, targets)
	if err := sess.SetRepeatingRequest(req, nil); err != nil {
		c.logger.Error("start preview failed", "error", err)
		return err
	}
	c.logger.Debug("preview started", "request", req.ID.String())
	return nil
}

// ApplySettings rebuilds the repeating request from the given state snapshot
// and resubmits it in place of the previous one. The stream is never
// stopped. A submit failure is recovered locally by falling back to the
// full-auto baseline and is not propagated: preview must keep running
// regardless, so callers only learn about it through logs.
func (c *Controller) ApplySettings(st controls.State) {
	c.mu.Lock()
	sess, targets, caps := c.sess, c.targets, c.caps
	c.lastState = st
	c.mu.Unlock()
	if sess == nil {
		return
	}

	req := buildRequest(device.KindPreview, caps, targets, st)
	if err := sess.SetRepeatingRequest(req, nil); err != nil {
		c.logger.Warn("apply settings failed, falling back to full auto", "error", err)
		fallback := baselineRequest(device.KindPreview, targets)
		if ferr := sess.SetRepeatingRequest(fallback, nil); ferr != nil {
			c.logger.Error("full-auto fallback failed", "error", ferr)
		}
		return
	}
	c.logger.Debug("settings applied",
		"manual_focus", st.ManualFocus,
		"manual_exposure", st.ManualExposure,
		"iso_index", st.ISOIndex,
		"shutter_index", st.ShutterIndex)
}

// CaptureStill submits a one-shot request built with the identical policy
// as the repeating request, targeting the buffer-reader surface. The
// returned request identifies the capture in completion callbacks. Settings
// updates issued while the still is outstanding affect only the repeating
// stream, never this request.
func (c *Controller) CaptureStill(st controls.State, cb *device.CaptureCallbacks) (*device.Request, error) {
	c.mu.Lock()
	sess, targets, caps := c.sess, c.targets, c.caps
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrNotConfigured
	}

	req := buildRequest(device.KindStill, caps, targets, st)
	if err := sess.Capture(req, cb); err != nil {
		c.logger.Error("still capture submit failed", "error", err)
		return nil, err
	}
	c.logger.Debug("still submitted", "request", req.ID.String())
	return req, nil
}

// Close tears down the session and device. Pending continuations are
// invalidated; a callback arriving afterwards is ignored, not resumed
// twice. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sess, dev, fut := c.sess, c.dev, c.openFut
	c.sess, c.dev = nil, nil
	c.mu.Unlock()

	if fut != nil {
		fut.reject(ErrClosed)
	}
	if sess != nil {
		if err := sess.StopRepeating(); err != nil {
			c.logger.Debug("stop repeating on close", "error", err)
		}
		sess.Close()
	}
	if dev != nil {
		dev.Close()
	}
	c.logger.Info("session controller closed")
}
