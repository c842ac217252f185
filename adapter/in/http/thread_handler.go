package http

import (
	"time"

	"recap_server/core/domain"
	"recap_server/core/service/thread"
	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ThreadHandler serves thread status tracking.
type ThreadHandler struct {
	tracker *thread.Tracker
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(tracker *thread.Tracker) *ThreadHandler {
	return &ThreadHandler{tracker: tracker}
}

// Register registers thread routes.
func (h *ThreadHandler) Register(router fiber.Router) {
	threads := router.Group("/threads")

	threads.Get("/", h.List)
	threads.Get("/stats", h.Stats)
	threads.Get("/:thread_id/status", h.GetStatus)
	threads.Post("/:thread_id/status", h.SetStatus)
}

// List returns tracked threads, optionally filtered by status.
// GET /api/v1/threads?status=WAITING
func (h *ThreadHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var status *domain.ThreadState
	if s := c.Query("status"); s != "" {
		st := domain.ThreadState(s)
		status = &st
	}

	params := GetPaginationParams(c, 50)
	threads, err := h.tracker.ListByStatus(c.Context(), userID, status, params.Limit)
	if err != nil {
		return err
	}
	if threads == nil {
		threads = []*domain.ThreadStatus{}
	}
	return c.JSON(fiber.Map{
		"threads": threads,
		"total":   len(threads),
	})
}

// Stats returns thread counts per state plus the overdue count.
// GET /api/v1/threads/stats
func (h *ThreadHandler) Stats(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	stats, err := h.tracker.Stats(c.Context(), userID, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// ThreadStatusResponse adds derived waiting info to a status.
type ThreadStatusResponse struct {
	*domain.ThreadStatus
	DaysWaiting int  `json:"days_waiting"`
	IsOverdue   bool `json:"is_overdue"`
}

// GetStatus returns the tracked status of one thread. An untouched thread
// reports OPEN.
// GET /api/v1/threads/:thread_id/status
func (h *ThreadHandler) GetStatus(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	status, err := h.tracker.GetStatus(c.Context(), userID, c.Params("thread_id"))
	if err != nil {
		return err
	}

	info := h.tracker.ComputeWaitingInfo(status, time.Now().UTC())
	return c.JSON(ThreadStatusResponse{
		ThreadStatus: status,
		DaysWaiting:  info.DaysWaiting,
		IsOverdue:    info.IsOverdue,
	})
}

// SetStatusRequest is the status update request body.
type SetStatusRequest struct {
	Status    string `json:"status"`
	AccountID string `json:"account_id,omitempty"`
}

// SetStatus updates a thread's tracked status.
// POST /api/v1/threads/:thread_id/status
func (h *ThreadHandler) SetStatus(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var req SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	now := time.Now().UTC()
	status, err := h.tracker.SetStatus(c.Context(), userID, req.AccountID, c.Params("thread_id"), domain.ThreadState(req.Status), now)
	if err != nil {
		return err
	}

	info := h.tracker.ComputeWaitingInfo(status, now)
	return c.JSON(ThreadStatusResponse{
		ThreadStatus: status,
		DaysWaiting:  info.DaysWaiting,
		IsOverdue:    info.IsOverdue,
	})
}
