package controls

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-camkit/pkg/device"
)

// applyRecorder collects every state snapshot handed to the apply callback.
type applyRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *applyRecorder) apply(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *applyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *applyRecorder) last(t *testing.T) State {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		t.Fatal("no settings application recorded")
	}
	return r.states[len(r.states)-1]
}

func fullManualCaps() device.Characteristics {
	return device.Characteristics{
		Facing:            device.FacingBack,
		SensorOrientation: 90,
		MinFocusDistance:  0.1,
		AFModes:           []device.AFMode{device.AFOff, device.AFContinuousPicture},
		AEModes:           []device.AEMode{device.AEOff, device.AEOn},
		ISORange:          &device.IntRange{Min: 50, Max: 6400},
		ExposureTimeRange: &device.IntRange{Min: 100_000, Max: 1_000_000_000},
	}
}

func autoOnlyCaps() device.Characteristics {
	return device.Characteristics{
		Facing:            device.FacingFront,
		SensorOrientation: 270,
		AFModes:           []device.AFMode{device.AFContinuousPicture},
		AEModes:           []device.AEMode{device.AEOn},
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFocusRange(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply)
	defer m.Close()

	min, max := m.FocusRange()
	if !almostEqual(min, 0.1) || !almostEqual(max, 1.0) {
		t.Errorf("FocusRange() = [%v, %v], want [0.1, 1.0]", min, max)
	}
	// The mapper starts at the far end of the range.
	if st := m.Snapshot(); !almostEqual(st.FocusDistance, 1.0) {
		t.Errorf("initial FocusDistance = %v, want 1.0", st.FocusDistance)
	}
}

func TestFocusRangeMultiplierOverride(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithFocusRangeMultiplier(5))
	defer m.Close()

	if _, max := m.FocusRange(); !almostEqual(max, 0.5) {
		t.Errorf("far end = %v, want 0.5", max)
	}
}

func TestSetFocusPositionInversion(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		want     float64
	}{
		{"far end", 0, 1.0},
		{"near end", 100, 0.1},
		{"midpoint", 50, 0.55},
		{"quarter", 25, 0.775},
		{"below range clamps far", -10, 1.0},
		{"above range clamps near", 150, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &applyRecorder{}
			m := NewMapper(fullManualCaps(), rec.apply)
			defer m.Close()

			m.ToggleManualFocus()
			m.SetFocusPosition(tt.position)
			if got := rec.last(t).FocusDistance; !almostEqual(got, tt.want) {
				t.Errorf("position %v mapped to %v, want %v", tt.position, got, tt.want)
			}
		})
	}
}

func TestSetFocusPositionAutoModeRecordsWithoutApplying(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply)
	defer m.Close()

	m.SetFocusPosition(100)
	if n := rec.count(); n != 0 {
		t.Errorf("slider in auto mode issued %d applications, want 0", n)
	}
	if st := m.Snapshot(); !almostEqual(st.FocusDistance, 0.1) {
		t.Errorf("FocusDistance = %v, want 0.1 recorded even in auto mode", st.FocusDistance)
	}

	// Enabling manual focus afterwards applies the recorded distance.
	m.ToggleManualFocus()
	if got := rec.last(t).FocusDistance; !almostEqual(got, 0.1) {
		t.Errorf("applied FocusDistance = %v, want 0.1", got)
	}
}

func TestToggleManualFocusAppliesImmediately(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithDebounce(time.Hour))
	defer m.Close()

	m.ToggleManualFocus()
	if n := rec.count(); n != 1 {
		t.Fatalf("got %d applications, want 1 (not debounced)", n)
	}
	if !rec.last(t).ManualFocus {
		t.Error("ManualFocus should be true after first toggle")
	}

	m.ToggleManualFocus()
	if rec.last(t).ManualFocus {
		t.Error("ManualFocus should be false after second toggle")
	}
}

func TestManualExposureFollowsIndices(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithDebounce(time.Millisecond))
	defer m.Close()

	steps := []struct {
		iso, shutter int
		want         bool
	}{
		{1, 0, true},
		{0, 0, false},
		{0, 3, true},
		{2, 3, true},
		{0, 0, false},
	}
	for _, s := range steps {
		m.SetISOIndex(s.iso)
		m.SetShutterIndex(s.shutter)
		if got := m.Snapshot().ManualExposure; got != s.want {
			t.Errorf("iso=%d shutter=%d: ManualExposure = %v, want %v",
				s.iso, s.shutter, got, s.want)
		}
	}
}

func TestPickerDebounceCollapsesRapidChanges(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithDebounce(30*time.Millisecond))
	defer m.Close()

	m.SetISOIndex(1)
	m.SetISOIndex(2)
	m.SetShutterIndex(5)
	m.SetISOIndex(3)

	// Inside the quiet window nothing has been applied yet.
	if n := rec.count(); n != 0 {
		t.Fatalf("got %d applications inside the quiet window, want 0", n)
	}

	time.Sleep(100 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Fatalf("got %d applications after the quiet window, want 1", n)
	}
	st := rec.last(t)
	if st.ISOIndex != 3 || st.ShutterIndex != 5 {
		t.Errorf("applied iso=%d shutter=%d, want iso=3 shutter=5", st.ISOIndex, st.ShutterIndex)
	}
	if !st.ManualExposure {
		t.Error("applied state should have ManualExposure set")
	}
}

func TestPickerDebounceReschedules(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithDebounce(50*time.Millisecond))
	defer m.Close()

	m.SetISOIndex(1)
	time.Sleep(25 * time.Millisecond)
	m.SetISOIndex(2) // rearms the window before it elapses
	time.Sleep(35 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Fatalf("window should have been rearmed, got %d applications", n)
	}

	time.Sleep(60 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Fatalf("got %d applications, want 1", n)
	}
	if got := rec.last(t).ISOIndex; got != 2 {
		t.Errorf("applied ISOIndex = %d, want 2", got)
	}
}

func TestCloseCancelsPendingApply(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithDebounce(20*time.Millisecond))

	m.SetISOIndex(1)
	m.Close()
	time.Sleep(60 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("got %d applications after Close, want 0", n)
	}
}

func TestUnsupportedDeviceGating(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(autoOnlyCaps(), rec.apply, WithDebounce(time.Millisecond))
	defer m.Close()

	if m.FocusSupported() {
		t.Error("FocusSupported() = true for a fixed-focus device")
	}
	if m.ExposureSupported() {
		t.Error("ExposureSupported() = true for an auto-only device")
	}

	m.ToggleManualFocus()
	m.ToggleManualControls()
	m.SetISOIndex(2)
	m.SetShutterIndex(3)
	time.Sleep(20 * time.Millisecond)

	if n := rec.count(); n != 0 {
		t.Errorf("unsupported controls issued %d applications, want 0", n)
	}
	if st := m.Snapshot(); st.ManualFocus {
		t.Error("ManualFocus flipped on a device with no AF-off mode")
	}
	if m.ISOChoices() != nil || m.ShutterChoices() != nil {
		t.Error("choices should be nil when manual exposure is unsupported")
	}
}

func TestToggleManualControlsResetsExposure(t *testing.T) {
	rec := &applyRecorder{}
	m := NewMapper(fullManualCaps(), rec.apply, WithDebounce(time.Millisecond))
	defer m.Close()

	m.SetISOIndex(2)
	m.SetShutterIndex(4)
	time.Sleep(20 * time.Millisecond)

	before := rec.count()
	m.ToggleManualControls()
	if n := rec.count(); n != before+1 {
		t.Fatalf("toggle issued %d applications, want 1 (immediate)", n-before)
	}
	st := rec.last(t)
	if !st.ManualFocus {
		t.Error("ManualFocus should be enabled by the combined toggle")
	}
	if st.ISOIndex != AutoIndex || st.ShutterIndex != AutoIndex || st.ManualExposure {
		t.Errorf("exposure not reset: iso=%d shutter=%d manual=%v",
			st.ISOIndex, st.ShutterIndex, st.ManualExposure)
	}
}

func TestRangeFilter(t *testing.T) {
	caps := fullManualCaps()
	caps.ISORange = &device.IntRange{Min: 100, Max: 800}
	caps.ExposureTimeRange = &device.IntRange{Min: 1_000_000, Max: 250_000_000}

	rec := &applyRecorder{}
	m := NewMapper(caps, rec.apply, WithRangeFilter(true), WithDebounce(time.Millisecond))
	defer m.Close()

	wantISO := []string{"AUTO", "100", "200", "400", "800"}
	gotISO := m.ISOChoices()
	if len(gotISO) != len(wantISO) {
		t.Fatalf("ISOChoices() = %v, want %v", gotISO, wantISO)
	}
	for i := range wantISO {
		if gotISO[i] != wantISO[i] {
			t.Errorf("ISOChoices()[%d] = %q, want %q", i, gotISO[i], wantISO[i])
		}
	}

	// 1600 lies outside the device range and must be rejected.
	m.SetISOIndex(5)
	time.Sleep(20 * time.Millisecond)
	if st := m.Snapshot(); st.ISOIndex != 0 {
		t.Errorf("out-of-range ISO accepted, index = %d", st.ISOIndex)
	}

	// Shutter entries faster than 1/1000s or slower than 1/4s are filtered.
	for _, label := range m.ShutterChoices() {
		if label == "AUTO" {
			continue
		}
		d := ShutterDuration(label)
		if d < 1_000_000 || d > 250_000_000 {
			t.Errorf("ShutterChoices offered out-of-range %q (%d ns)", label, d)
		}
	}
}

func TestRangeFilterOffByDefault(t *testing.T) {
	caps := fullManualCaps()
	caps.ISORange = &device.IntRange{Min: 100, Max: 800}

	rec := &applyRecorder{}
	m := NewMapper(caps, rec.apply, WithDebounce(time.Millisecond))
	defer m.Close()

	if got := m.ISOChoices(); len(got) != len(ISOLabels) {
		t.Errorf("without the filter all %d entries should be offered, got %d",
			len(ISOLabels), len(got))
	}
	m.SetISOIndex(5) // 1600, outside the device range but accepted unfiltered
	if st := m.Snapshot(); st.ISOIndex != 5 {
		t.Errorf("ISOIndex = %d, want 5", st.ISOIndex)
	}
}
