package controls

// State is the manual-control state. It has exactly one mutator (the Mapper)
// and crosses goroutines only as a value copy, never as a shared reference,
// so a request is never built from a partially updated state.
type State struct {
	// ManualFocus enables the explicit FocusDistance.
	ManualFocus bool

	// FocusDistance is the current focus distance, always clamped into
	// the mapper's accepted range.
	FocusDistance float64

	// ManualExposure is true whenever either picker is off AUTO.
	ManualExposure bool

	// ISOIndex indexes ISOValues; 0 is AUTO.
	ISOIndex int

	// ShutterIndex indexes ShutterSpeeds; 0 is AUTO.
	ShutterIndex int
}

// Sensitivity returns the native ISO value for the current index, 0 = unset.
func (s State) Sensitivity() int32 {
	return ISOAt(s.ISOIndex)
}

// ExposureTime returns the native exposure duration in nanoseconds for the
// current index, 0 = unset.
func (s State) ExposureTime() int64 {
	return ShutterAt(s.ShutterIndex)
}
