package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationType categorizes emitted notification events.
type NotificationType string

const (
	NotificationUrgent         NotificationType = "urgent"
	NotificationVIP            NotificationType = "vip"
	NotificationDocument       NotificationType = "document"
	NotificationWaitingOverdue NotificationType = "waiting_overdue"
)

// NotificationPriority levels surfaced to the UI layer.
const (
	NotificationPriorityUrgent = "urgent"
	NotificationPriorityHigh   = "high"
	NotificationPriorityMedium = "medium"
)

// NotificationData carries the references a notification points at.
type NotificationData struct {
	EmailID     string `json:"email_id,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
	IsVIP       bool   `json:"is_vip,omitempty"`
	Reason      string `json:"reason,omitempty"`
	DocType     string `json:"doc_type,omitempty"`
	DaysWaiting int    `json:"days_waiting,omitempty"`
}

// Notification is an append-only event record. Read state is the only
// mutable field. Silenced notifications are recorded but excluded from
// unread counts and live push.
type Notification struct {
	ID        string           `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Priority  string           `json:"priority"`
	Data      NotificationData `json:"data"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`
	Silenced  bool             `json:"silenced"`
}

// RefID returns the email or thread reference used for deduplication.
func (n *Notification) RefID() string {
	if n.Data.EmailID != "" {
		return n.Data.EmailID
	}
	return n.Data.ThreadID
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	Type       *NotificationType
	Limit      int
	Offset     int
}

// NotificationRepository is the persistence port for the notification log.
type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error

	// ExistsSince reports whether a notification for the same
	// (ref, type) pair was already recorded at or after since.
	ExistsSince(ctx context.Context, userID uuid.UUID, refID string, nType NotificationType, since time.Time) (bool, error)

	List(ctx context.Context, userID uuid.UUID, filter *NotificationFilter) ([]*Notification, int, error)

	// CountUnread excludes silenced notifications.
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)

	MarkRead(ctx context.Context, userID uuid.UUID, ids []string) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
