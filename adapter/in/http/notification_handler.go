package http

import (
	"recap_server/core/domain"
	"recap_server/core/service/notification"
	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler serves the notification log.
type NotificationHandler struct {
	notifications *notification.Service
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Register registers notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	notifications := router.Group("/notifications")

	notifications.Get("/", h.List)
	notifications.Get("/unread-count", h.UnreadCount)
	notifications.Post("/mark-read", h.MarkRead)
	notifications.Post("/mark-all-read", h.MarkAllRead)
}

// List returns notifications, newest first.
// GET /api/v1/notifications?unread_only=&type=&limit=&offset=
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	params := GetPaginationParams(c, 50)
	filter := &domain.NotificationFilter{
		UnreadOnly: c.QueryBool("unread_only", false),
		Limit:      params.Limit,
		Offset:     params.Offset,
	}
	if t := c.Query("type"); t != "" {
		nType := domain.NotificationType(t)
		filter.Type = &nType
	}

	notifications, total, err := h.notifications.List(c.Context(), userID, filter)
	if err != nil {
		return err
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         total,
	})
}

// UnreadCount returns the unread badge count. Silenced notifications are
// excluded.
// GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	count, err := h.notifications.UnreadCount(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// MarkReadRequest is the mark-read request body.
type MarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

// MarkRead marks the given notifications as read.
// POST /api/v1/notifications/mark-read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	updated, err := h.notifications.MarkRead(c.Context(), userID, req.NotificationIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// MarkAllRead marks every unread notification as read.
// POST /api/v1/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	updated, err := h.notifications.MarkAllRead(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": updated})
}
