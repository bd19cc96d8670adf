// Package controls maps user-facing slider and picker positions to native
// focus-distance and exposure values, and debounces rapid picker changes
// into single device-facing settings applications.
package controls

// AutoIndex is the picker index meaning "let the device decide". It is
// always the first entry of both tables.
const AutoIndex = 0

// ISOValues are the selectable sensitivities. Index 0 is AUTO.
var ISOValues = []int32{0, 100, 200, 400, 800, 1600, 3200}

// ISOLabels are the picker labels matching ISOValues.
var ISOLabels = []string{"AUTO", "100", "200", "400", "800", "1600", "3200"}

// ShutterSpeed pairs a picker label with its exposure duration in
// nanoseconds. A duration of zero means "do not set exposure time".
type ShutterSpeed struct {
	Label string
	Nanos int64
}

// ShutterSpeeds are the selectable shutter durations, fastest first.
// Index 0 is AUTO.
var ShutterSpeeds = []ShutterSpeed{
	{"AUTO", 0},
	{"1/4000s", 250_000},
	{"1/2000s", 500_000},
	{"1/1000s", 1_000_000},
	{"1/500s", 2_000_000},
	{"1/250s", 4_000_000},
	{"1/125s", 8_000_000},
	{"1/100s", 10_000_000},
	{"1/60s", 16_666_667},
	{"1/30s", 33_333_333},
	{"1/15s", 66_666_667},
	{"1/8s", 125_000_000},
	{"1/4s", 250_000_000},
	{"1/2s", 500_000_000},
	{"1s", 1_000_000_000},
}

// shutterByLabel is built once from the ordered table.
var shutterByLabel = func() map[string]int64 {
	m := make(map[string]int64, len(ShutterSpeeds))
	for _, s := range ShutterSpeeds {
		m[s.Label] = s.Nanos
	}
	return m
}()

// ShutterDuration resolves a picker label to its duration in nanoseconds.
// Unknown labels and "AUTO" both resolve to zero.
func ShutterDuration(label string) int64 {
	return shutterByLabel[label]
}

// ISOAt returns the sensitivity at index i, or 0 (auto) when out of range.
func ISOAt(i int) int32 {
	if i <= 0 || i >= len(ISOValues) {
		return 0
	}
	return ISOValues[i]
}

// ShutterAt returns the exposure duration at index i in nanoseconds, or 0
// (do not set) when out of range.
func ShutterAt(i int) int64 {
	if i <= 0 || i >= len(ShutterSpeeds) {
		return 0
	}
	return ShutterSpeeds[i].Nanos
}
