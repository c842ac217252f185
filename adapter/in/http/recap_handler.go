package http

import (
	"time"

	"recap_server/core/domain"
	"recap_server/core/service/recap"
	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// RecapHandler serves today views and recap generation.
type RecapHandler struct {
	builder *recap.Builder
}

// NewRecapHandler creates a new recap handler.
func NewRecapHandler(builder *recap.Builder) *RecapHandler {
	return &RecapHandler{builder: builder}
}

// Register registers recap routes.
func (h *RecapHandler) Register(router fiber.Router) {
	router.Get("/today", h.Today)
	router.Get("/recap/:type", h.GetRecap)
	router.Post("/recap/generate", h.Generate)
	router.Get("/recaps/history", h.History)
}

// Today returns the current prioritized view, computed fresh.
// GET /api/v1/today
func (h *RecapHandler) Today(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	summary, err := h.builder.Today(c.Context(), userID, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// GetRecap returns today's recap of the given type, generating it lazily.
// "auto" resolves to morning or evening by time of day.
// GET /api/v1/recap/:type
func (h *RecapHandler) GetRecap(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	r, err := h.builder.GetOrGenerate(c.Context(), userID, c.Params("type"), time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(r)
}

// GenerateRecapRequest is the recap generation request body.
type GenerateRecapRequest struct {
	Type  string `json:"type"`
	Force bool   `json:"force"`
}

// Generate builds a recap on demand. With force=true a new record is
// appended even when one already exists for today.
// POST /api/v1/recap/generate
func (h *RecapHandler) Generate(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req GenerateRecapRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Type == "" {
		req.Type = string(domain.RecapManual)
	}

	r, err := h.builder.Generate(c.Context(), userID, domain.RecapType(req.Type), req.Force, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(r)
}

// History lists persisted recaps, newest first.
// GET /api/v1/recaps/history?limit=N
func (h *RecapHandler) History(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	recaps, err := h.builder.History(c.Context(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	if recaps == nil {
		recaps = []*domain.Recap{}
	}
	return c.JSON(fiber.Map{
		"recaps": recaps,
		"total":  len(recaps),
	})
}
