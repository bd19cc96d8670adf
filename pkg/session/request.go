package session

import (
	"github.com/google/uuid"

	"github.com/teslashibe/go-camkit/pkg/controls"
	"github.com/teslashibe/go-camkit/pkg/device"
)

// buildRequest is the single source of truth for turning control state into
// a capture request. It is applied identically to the repeating preview
// request and the one-shot still request, so what the user previewed is what
// gets captured.
//
// Policy: manual focus puts AF off with the explicit clamped distance,
// otherwise AF runs continuous. Manual exposure puts AE off and sets only
// the table values whose picker index is non-zero; index 0 leaves the field
// unset so the device keeps its own behavior. Auto white balance and the
// overall auto control mode are always preserved. Capability gating wins
// over state: a device without the corresponding "off" mode always gets the
// full-auto baseline, regardless of stale indices.
func buildRequest(kind device.RequestKind, caps device.Characteristics, targets []device.Target, st controls.State) *device.Request {
	req := baselineRequest(kind, targets)

	if st.ManualFocus && caps.MinFocusDistance > 0 && caps.SupportsAF(device.AFOff) {
		req.AFMode = device.AFOff
		req.FocusDistance = st.FocusDistance
	}

	manualExposureOK := st.ManualExposure &&
		caps.ISORange != nil &&
		caps.ExposureTimeRange != nil &&
		caps.SupportsAE(device.AEOff)
	if manualExposureOK {
		req.AEMode = device.AEOff
		if st.ISOIndex > 0 {
			req.Sensitivity = st.Sensitivity()
		}
		if st.ShutterIndex > 0 {
			req.ExposureTime = st.ExposureTime()
		}
	}

	return req
}

// baselineRequest is the unconditionally-safe full-auto request: continuous
// autofocus, auto exposure, auto white balance.
func baselineRequest(kind device.RequestKind, targets []device.Target) *device.Request {
	return &device.Request{
		ID:          uuid.New(),
		Kind:        kind,
		Targets:     selectTargets(kind, targets),
		ControlMode: device.ControlAuto,
		AFMode:      device.AFContinuousPicture,
		AEMode:      device.AEOn,
		AWBAuto:     true,
	}
}

// selectTargets picks the surfaces a request draws to: the preview surface
// for the repeating stream, the buffer-reader surface for stills.
func selectTargets(kind device.RequestKind, targets []device.Target) []device.Target {
	want := device.TargetPreview
	if kind == device.KindStill {
		want = device.TargetReader
	}
	var out []device.Target
	for _, t := range targets {
		if t.Kind == want {
			out = append(out, t)
		}
	}
	return out
}
