package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-camkit/pkg/capture"
	"github.com/teslashibe/go-camkit/pkg/controls"
)

// capabilitiesView is the read-only capability report for the UI. Manual
// sections are offered only when the device gates them in; hiding them is a
// supported degraded mode, not an error.
type capabilitiesView struct {
	Facing            string   `json:"facing"`
	ManualFocus       bool     `json:"manual_focus"`
	ManualExposure    bool     `json:"manual_exposure"`
	FocusNear         float64  `json:"focus_near"`
	FocusFar          float64  `json:"focus_far"`
	ISOChoices        []string `json:"iso_choices"`
	ShutterChoices    []string `json:"shutter_choices"`
	SensorOrientation int      `json:"sensor_orientation"`
}

// controlStateView mirrors the mapper state for the UI.
type controlStateView struct {
	ManualFocus    bool    `json:"manual_focus"`
	FocusDistance  float64 `json:"focus_distance"`
	ManualExposure bool    `json:"manual_exposure"`
	ISOIndex       int     `json:"iso_index"`
	ShutterIndex   int     `json:"shutter_index"`
}

func controlsView(m *controls.Mapper, st controls.State) controlStateView {
	return controlStateView{
		ManualFocus:    st.ManualFocus,
		FocusDistance:  st.FocusDistance,
		ManualExposure: st.ManualExposure,
		ISOIndex:       st.ISOIndex,
		ShutterIndex:   st.ShutterIndex,
	}
}

func (s *Server) handleCapabilities(c *fiber.Ctx) error {
	near, far := s.mapper.FocusRange()
	return c.JSON(capabilitiesView{
		Facing:            s.caps.Facing.String(),
		ManualFocus:       s.mapper.FocusSupported(),
		ManualExposure:    s.mapper.ExposureSupported(),
		FocusNear:         near,
		FocusFar:          far,
		ISOChoices:        s.mapper.ISOChoices(),
		ShutterChoices:    s.mapper.ShutterChoices(),
		SensorOrientation: s.caps.SensorOrientation,
	})
}

func (s *Server) handleControls(c *fiber.Ctx) error {
	return c.JSON(controlsView(s.mapper, s.mapper.Snapshot()))
}

func (s *Server) handleToggleFocus(c *fiber.Ctx) error {
	s.mapper.ToggleManualFocus()
	s.pushStatus()
	return c.JSON(controlsView(s.mapper, s.mapper.Snapshot()))
}

func (s *Server) handleToggleControls(c *fiber.Ctx) error {
	s.mapper.ToggleManualControls()
	s.pushStatus()
	return c.JSON(controlsView(s.mapper, s.mapper.Snapshot()))
}

// focusRequest carries a slider position, 0 (far) to 100 (near).
type focusRequest struct {
	Position float64 `json:"position"`
}

func (s *Server) handleFocus(c *fiber.Ctx) error {
	var req focusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	s.mapper.SetFocusPosition(req.Position)
	s.pushStatus()
	return c.JSON(controlsView(s.mapper, s.mapper.Snapshot()))
}

// indexRequest carries a picker index; 0 is always AUTO.
type indexRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleISO(c *fiber.Ctx) error {
	var req indexRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	s.mapper.SetISOIndex(req.Index)
	s.pushStatus()
	return c.JSON(controlsView(s.mapper, s.mapper.Snapshot()))
}

func (s *Server) handleShutter(c *fiber.Ctx) error {
	var req indexRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	s.mapper.SetShutterIndex(req.Index)
	s.pushStatus()
	return c.JSON(controlsView(s.mapper, s.mapper.Snapshot()))
}

// captureRequest selects the output kind.
type captureRequest struct {
	Kind string `json:"kind"` // "jpeg" (default) or "raw"
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	var req captureRequest
	if err := c.BodyParser(&req); err != nil {
		req.Kind = "jpeg"
	}
	if req.Kind == "" {
		req.Kind = "jpeg"
	}
	if s.OnCapture == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "capture not configured",
		})
	}

	path, err := s.OnCapture(req.Kind)
	if err != nil {
		s.logger.Warn("capture request failed", "kind", req.Kind, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":     err.Error(),
			"retryable": capture.IsRetryable(err),
		})
	}
	return c.JSON(fiber.Map{"path": path})
}
