package http

import (
	"time"

	"recap_server/core/domain"
	"recap_server/core/service/silence"
	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler serves silence window configuration.
type SettingsHandler struct {
	silences *silence.Service
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(silences *silence.Service) *SettingsHandler {
	return &SettingsHandler{silences: silences}
}

// Register registers settings routes.
func (h *SettingsHandler) Register(router fiber.Router) {
	settings := router.Group("/settings")

	settings.Get("/silence", h.GetSilence)
	settings.Post("/silence", h.UpdateSilence)
}

// SilenceResponse adds the live active flag to stored settings.
type SilenceResponse struct {
	*domain.SilenceSettings
	ActiveNow bool `json:"active_now"`
}

// GetSilence returns the user's silence settings. Users without stored
// settings get the disabled defaults.
// GET /api/v1/settings/silence
func (h *SettingsHandler) GetSilence(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	settings, err := h.silences.Get(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(SilenceResponse{
		SilenceSettings: settings,
		ActiveNow:       silence.IsActive(settings, time.Now().UTC()),
	})
}

// UpdateSilenceRequest is the silence settings update body.
type UpdateSilenceRequest struct {
	Enabled bool                  `json:"enabled"`
	Ranges  []domain.SilenceRange `json:"ranges"`
}

// UpdateSilence replaces the user's silence settings.
// POST /api/v1/settings/silence
func (h *SettingsHandler) UpdateSilence(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req UpdateSilenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	now := time.Now().UTC()
	settings, err := h.silences.Update(c.Context(), userID, req.Enabled, req.Ranges, now)
	if err != nil {
		return err
	}

	return c.JSON(SilenceResponse{
		SilenceSettings: settings,
		ActiveNow:       silence.IsActive(settings, now),
	})
}
