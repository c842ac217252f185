// Package http implements the inbound HTTP API.
package http

import (
	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetUserID extracts the authenticated user id from the fiber context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return uuid.Nil, apperr.Unauthorized("")
	}
	return userID, nil
}

// PaginationParams holds common pagination parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// GetPaginationParams extracts pagination params from the query string.
func GetPaginationParams(c *fiber.Ctx, defaultLimit int) PaginationParams {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}

	return PaginationParams{
		Limit:  limit,
		Offset: c.QueryInt("offset", 0),
	}
}
