package controls

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-camkit/pkg/device"
)

// DefaultDebounce is the quiet window for picker changes. Updates arriving
// inside the window collapse into one settings application issued this long
// after the last change.
const DefaultDebounce = 300 * time.Millisecond

// DefaultFocusRangeMultiplier scales the device-reported minimum focus
// distance to the far end of the accepted focus range. Calibration value
// carried over from field testing; override with WithFocusRangeMultiplier.
const DefaultFocusRangeMultiplier = 10.0

// Mapper owns the manual-control state. UI events come in through the
// setters; device-facing updates go out through the apply callback, either
// immediately (discrete toggles, focus slider) or debounced (pickers).
type Mapper struct {
	caps  device.Characteristics
	apply func(State)

	debounce   time.Duration
	multiplier float64
	filter     bool
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	timer  *time.Timer
	closed bool
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithDebounce overrides the picker quiet window.
func WithDebounce(d time.Duration) Option {
	return func(m *Mapper) { m.debounce = d }
}

// WithFocusRangeMultiplier overrides the focus range calibration constant.
func WithFocusRangeMultiplier(mult float64) Option {
	return func(m *Mapper) { m.multiplier = mult }
}

// WithRangeFilter controls whether table entries outside the device's
// reported ISO/exposure ranges are offered. Off by default.
func WithRangeFilter(on bool) Option {
	return func(m *Mapper) { m.filter = on }
}

// WithLogger sets the mapper's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// NewMapper creates a mapper for a device with the given capability profile.
// apply receives a state snapshot for every settings application.
func NewMapper(caps device.Characteristics, apply func(State), opts ...Option) *Mapper {
	m := &Mapper{
		caps:       caps,
		apply:      apply,
		debounce:   DefaultDebounce,
		multiplier: DefaultFocusRangeMultiplier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	// Start at the far end of the accepted range.
	_, m.state.FocusDistance = m.focusRange()
	return m
}

// FocusSupported reports whether manual focus may be offered: the device
// must report a positive minimum focus distance and an AF-off mode.
func (m *Mapper) FocusSupported() bool {
	return m.caps.MinFocusDistance > 0 && m.caps.SupportsAF(device.AFOff)
}

// ExposureSupported reports whether manual exposure may be offered: the
// device must report both ranges and an AE-off mode.
func (m *Mapper) ExposureSupported() bool {
	return m.caps.ISORange != nil &&
		m.caps.ExposureTimeRange != nil &&
		m.caps.SupportsAE(device.AEOff)
}

// FocusRange returns the accepted [near, far] focus distance range.
func (m *Mapper) FocusRange() (min, max float64) {
	return m.focusRange()
}

func (m *Mapper) focusRange() (min, max float64) {
	if m.caps.MinFocusDistance <= 0 {
		return 0, 0
	}
	return m.caps.MinFocusDistance, m.caps.MinFocusDistance * m.multiplier
}

// Snapshot returns a copy of the current state.
func (m *Mapper) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ToggleManualFocus flips manual focus. Discrete user action: applied
// immediately, not debounced.
func (m *Mapper) ToggleManualFocus() {
	if !m.FocusSupported() {
		return
	}
	m.mu.Lock()
	m.state.ManualFocus = !m.state.ManualFocus
	st := m.state
	m.mu.Unlock()
	m.applyNow(st)
}

// ToggleManualControls flips the combined manual mode: manual focus follows
// the toggle and exposure returns to auto until a picker is moved.
func (m *Mapper) ToggleManualControls() {
	if !m.FocusSupported() && !m.ExposureSupported() {
		return
	}
	m.mu.Lock()
	if m.FocusSupported() {
		m.state.ManualFocus = !m.state.ManualFocus
	}
	m.state.ISOIndex = AutoIndex
	m.state.ShutterIndex = AutoIndex
	m.state.ManualExposure = false
	st := m.state
	m.mu.Unlock()
	m.applyNow(st)
}

// SetFocusPosition maps a slider position in [0,100] to a focus distance by
// inversion: 0 is the far end (infinity), 100 the near end (macro). Applied
// immediately, but only while manual focus is enabled; moving the slider in
// auto mode records the value without touching the device.
func (m *Mapper) SetFocusPosition(position float64) {
	if position < 0 {
		position = 0
	} else if position > 100 {
		position = 100
	}
	min, max := m.focusRange()

	m.mu.Lock()
	dist := min + (100-position)/100*(max-min)
	if dist < min {
		dist = min
	} else if dist > max {
		dist = max
	}
	m.state.FocusDistance = dist
	shouldApply := m.state.ManualFocus && m.FocusSupported()
	st := m.state
	m.mu.Unlock()

	if shouldApply {
		m.applyNow(st)
	}
}

// SetISOIndex selects a sensitivity table entry. Debounced.
func (m *Mapper) SetISOIndex(i int) {
	if i < 0 || i >= len(ISOValues) {
		return
	}
	if m.filter && i != AutoIndex && m.caps.ISORange != nil &&
		!m.caps.ISORange.Contains(int64(ISOAt(i))) {
		m.logger.Debug("iso value filtered", "index", i, "value", ISOAt(i))
		return
	}
	m.mu.Lock()
	m.state.ISOIndex = i
	m.state.ManualExposure = m.state.ISOIndex > 0 || m.state.ShutterIndex > 0
	m.mu.Unlock()
	m.scheduleApply()
}

// SetShutterIndex selects a shutter table entry. Debounced.
func (m *Mapper) SetShutterIndex(i int) {
	if i < 0 || i >= len(ShutterSpeeds) {
		return
	}
	if m.filter && i != AutoIndex && m.caps.ExposureTimeRange != nil &&
		!m.caps.ExposureTimeRange.Contains(ShutterAt(i)) {
		m.logger.Debug("shutter value filtered", "index", i, "label", ShutterSpeeds[i].Label)
		return
	}
	m.mu.Lock()
	m.state.ShutterIndex = i
	m.state.ManualExposure = m.state.ISOIndex > 0 || m.state.ShutterIndex > 0
	m.mu.Unlock()
	m.scheduleApply()
}

// ISOChoices returns the picker labels to offer, honoring the range filter.
func (m *Mapper) ISOChoices() []string {
	if !m.ExposureSupported() {
		return nil
	}
	if !m.filter || m.caps.ISORange == nil {
		return append([]string(nil), ISOLabels...)
	}
	out := []string{ISOLabels[AutoIndex]}
	for i := 1; i < len(ISOValues); i++ {
		if m.caps.ISORange.Contains(int64(ISOValues[i])) {
			out = append(out, ISOLabels[i])
		}
	}
	return out
}

// ShutterChoices returns the picker labels to offer, honoring the range
// filter.
func (m *Mapper) ShutterChoices() []string {
	if !m.ExposureSupported() {
		return nil
	}
	out := make([]string, 0, len(ShutterSpeeds))
	for i, s := range ShutterSpeeds {
		if m.filter && i != AutoIndex && m.caps.ExposureTimeRange != nil &&
			!m.caps.ExposureTimeRange.Contains(s.Nanos) {
			continue
		}
		out = append(out, s.Label)
	}
	return out
}

// scheduleApply cancels any pending application and arms a fresh quiet
// window, so rapid successive picker changes collapse into one update.
func (m *Mapper) scheduleApply() {
	if !m.ExposureSupported() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.fireDebounced)
}

func (m *Mapper) fireDebounced() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	st := m.state
	m.mu.Unlock()
	m.applyNow(st)
}

func (m *Mapper) applyNow(st State) {
	if m.apply != nil {
		m.apply(st)
	}
}

// Close cancels any pending debounced application.
func (m *Mapper) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
