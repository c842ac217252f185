package http

import (
	"strconv"
	"time"

	"recap_server/core/domain"
	"recap_server/core/service/memory"
	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// MemoryHandler serves the contact knowledge base.
type MemoryHandler struct {
	memory *memory.Service
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(memoryService *memory.Service) *MemoryHandler {
	return &MemoryHandler{memory: memoryService}
}

// Register registers memory routes.
func (h *MemoryHandler) Register(router fiber.Router) {
	mem := router.Group("/memory")

	mem.Get("/vips", h.ListVips)
	mem.Post("/vips", h.AddVip)
	mem.Delete("/vips/:id", h.DeleteVip)

	mem.Get("/aliases", h.ListAliases)
	mem.Post("/aliases", h.SetAlias)
	mem.Delete("/aliases/:id", h.DeleteAlias)

	mem.Get("/vendors", h.ListVendors)
	mem.Post("/vendors", h.SetVendor)
	mem.Delete("/vendors/:id", h.DeleteVendor)

	mem.Get("/stats", h.Stats)
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationFailed("id must be a positive integer")
	}
	return id, nil
}

// ===== VIPs =====

// GET /api/v1/memory/vips
func (h *MemoryHandler) ListVips(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	vips, err := h.memory.ListVips(c.Context(), userID)
	if err != nil {
		return err
	}
	if vips == nil {
		vips = []*domain.VipEntry{}
	}
	return c.JSON(fiber.Map{"vips": vips})
}

// AddVipRequest is the VIP creation body.
type AddVipRequest struct {
	Label string `json:"label"`
	Email string `json:"email"`
}

// POST /api/v1/memory/vips
func (h *MemoryHandler) AddVip(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req AddVipRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	entry, err := h.memory.AddVip(c.Context(), userID, req.Label, req.Email, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// DELETE /api/v1/memory/vips/:id
func (h *MemoryHandler) DeleteVip(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.memory.DeleteVip(c.Context(), userID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ===== Aliases =====

// GET /api/v1/memory/aliases
func (h *MemoryHandler) ListAliases(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	aliases, err := h.memory.ListAliases(c.Context(), userID)
	if err != nil {
		return err
	}
	if aliases == nil {
		aliases = []*domain.AliasEntry{}
	}
	return c.JSON(fiber.Map{"aliases": aliases})
}

// SetAliasRequest is the alias upsert body.
type SetAliasRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// POST /api/v1/memory/aliases
func (h *MemoryHandler) SetAlias(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req SetAliasRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	entry, err := h.memory.SetAlias(c.Context(), userID, req.Key, req.Value, 1.0, false, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// DELETE /api/v1/memory/aliases/:id
func (h *MemoryHandler) DeleteAlias(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.memory.DeleteAlias(c.Context(), userID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ===== Vendors =====

// GET /api/v1/memory/vendors
func (h *MemoryHandler) ListVendors(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	vendors, err := h.memory.ListVendors(c.Context(), userID)
	if err != nil {
		return err
	}
	if vendors == nil {
		vendors = []*domain.VendorEntry{}
	}
	return c.JSON(fiber.Map{"vendors": vendors})
}

// SetVendorRequest is the vendor upsert body.
type SetVendorRequest struct {
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
}

// POST /api/v1/memory/vendors
func (h *MemoryHandler) SetVendor(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req SetVendorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	entry, err := h.memory.SetVendor(c.Context(), userID, req.Name, req.Domains, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// DELETE /api/v1/memory/vendors/:id
func (h *MemoryHandler) DeleteVendor(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.memory.DeleteVendor(c.Context(), userID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// GET /api/v1/memory/stats
func (h *MemoryHandler) Stats(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	stats, err := h.memory.Stats(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
