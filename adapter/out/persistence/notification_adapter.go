package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"recap_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NotificationAdapter implements domain.NotificationRepository using
// PostgreSQL. Rows are append-only; only read state changes after insert.
type NotificationAdapter struct {
	db *sqlx.DB
}

// NewNotificationAdapter creates a new notification adapter.
func NewNotificationAdapter(db *sqlx.DB) *NotificationAdapter {
	return &NotificationAdapter{db: db}
}

type notificationRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Priority  string    `db:"priority"`
	RefID     string    `db:"ref_id"`
	Data      []byte    `db:"data"`
	Read      bool      `db:"read"`
	Silenced  bool      `db:"silenced"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *notificationRow) toDomain() *domain.Notification {
	n := &domain.Notification{
		ID:        r.ID.String(),
		UserID:    r.UserID,
		Type:      domain.NotificationType(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Priority:  r.Priority,
		Read:      r.Read,
		Silenced:  r.Silenced,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Data) > 0 {
		json.Unmarshal(r.Data, &n.Data)
	}
	return n
}

// Insert appends a notification. The generated id and created_at are written
// back onto n.
func (a *NotificationAdapter) Insert(ctx context.Context, n *domain.Notification) error {
	dataBytes, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (user_id, type, title, message, priority, ref_id, data, read, silenced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)
		RETURNING id
	`
	var id uuid.UUID
	err = a.db.QueryRowContext(ctx, query,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		n.Priority,
		n.RefID(),
		dataBytes,
		n.Silenced,
		n.CreatedAt,
	).Scan(&id)
	if err != nil {
		return err
	}
	n.ID = id.String()
	return nil
}

// ExistsSince reports whether a notification for the same (ref, type) pair
// was recorded at or after since.
func (a *NotificationAdapter) ExistsSince(ctx context.Context, userID uuid.UUID, refID string, nType domain.NotificationType, since time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND ref_id = $2 AND type = $3 AND created_at >= $4
		)
	`
	err := a.db.GetContext(ctx, &exists, query, userID, refID, string(nType), since)
	return exists, err
}

// List returns notifications matching the filter plus the total match count,
// newest first.
func (a *NotificationAdapter) List(ctx context.Context, userID uuid.UUID, filter *domain.NotificationFilter) ([]*domain.Notification, int, error) {
	if filter == nil {
		filter = &domain.NotificationFilter{}
	}

	baseQuery := ` FROM notifications WHERE user_id = $1`
	args := []any{userID}
	argIndex := 2

	if filter.UnreadOnly {
		baseQuery += ` AND read = false`
	}
	if filter.Type != nil {
		baseQuery += ` AND type = $` + strconv.Itoa(argIndex)
		args = append(args, string(*filter.Type))
		argIndex++
	}

	var total int
	if err := a.db.GetContext(ctx, &total, `SELECT COUNT(*)`+baseQuery, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	selectQuery := `SELECT *` + baseQuery +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIndex) +
		` OFFSET $` + strconv.Itoa(argIndex+1)
	args = append(args, limit, filter.Offset)

	var rows []notificationRow
	if err := a.db.SelectContext(ctx, &rows, selectQuery, args...); err != nil {
		return nil, 0, err
	}

	notifications := make([]*domain.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = row.toDomain()
	}
	return notifications, total, nil
}

// CountUnread counts unread, non-silenced notifications.
func (a *NotificationAdapter) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false AND silenced = false`
	err := a.db.GetContext(ctx, &count, query, userID)
	return count, err
}

// MarkRead marks the given notifications as read, returning how many rows
// changed. Unknown ids are ignored.
func (a *NotificationAdapter) MarkRead(ctx context.Context, userID uuid.UUID, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`UPDATE notifications SET read = true WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return 0, err
	}

	query = a.db.Rebind(query)
	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkAllRead marks every unread notification as read.
func (a *NotificationAdapter) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := a.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ensure interface compliance
var _ domain.NotificationRepository = (*NotificationAdapter)(nil)
