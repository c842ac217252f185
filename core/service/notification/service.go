// Package notification converts classified email state into notification
// records, deduplicating against the persisted log and honoring silence
// windows.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recap_server/core/domain"
	"recap_server/core/service/silence"
	"recap_server/pkg/apperr"
	"recap_server/pkg/cache"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Notifications for the same (ref, type) pair dedupe within the current
	// calendar day. Dedup keys carry the day, so the TTL is only a cleanup
	// horizon; it never extends suppression past midnight.
	dedupTTL = 24 * time.Hour

	unreadCountTTL = 5 * time.Minute

	// Confidence floor below which an urgent item is not worth a push.
	urgentConfidenceFloor = 0.85
)

// Service emits and queries notifications. The Postgres log is the source
// of truth; Redis only narrows the dedup race window and caches unread
// counts.
type Service struct {
	repo     domain.NotificationRepository
	silences *silence.Service
	cache    *cache.RedisCache // optional
	batchCap int
	log      zerolog.Logger
}

// NewService creates a notification service. cache may be nil.
func NewService(repo domain.NotificationRepository, silences *silence.Service, c *cache.RedisCache, batchCap int, log zerolog.Logger) *Service {
	if batchCap <= 0 {
		batchCap = 10
	}
	return &Service{
		repo:     repo,
		silences: silences,
		cache:    c,
		batchCap: batchCap,
		log:      log,
	}
}

// =============================================================================
// Emission
// =============================================================================

// EmitForRecap builds notification candidates from a generated recap and
// records the ones not already notified today. Each write is independent;
// a failed item does not roll back the batch. The returned error joins the
// per-item persistence failures, if any.
func (s *Service) EmitForRecap(ctx context.Context, userID uuid.UUID, recap *domain.Recap, now time.Time) ([]*domain.Notification, error) {
	silenced, err := s.silences.ActiveNow(ctx, userID, now)
	if err != nil {
		// Missing settings must not block emission; default to audible.
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("silence lookup failed, assuming inactive")
		silenced = false
	}

	candidates := s.buildCandidates(userID, recap, now, silenced)
	if len(candidates) > s.batchCap {
		candidates = candidates[:s.batchCap]
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var created []*domain.Notification
	var errs []error

	for _, n := range candidates {
		dup, err := s.isDuplicate(ctx, userID, n, dayStart)
		if err != nil {
			errs = append(errs, apperr.Persistence("notification dedup check", err))
			continue
		}
		if dup {
			continue
		}

		if err := s.repo.Insert(ctx, n); err != nil {
			errs = append(errs, apperr.Persistence("insert notification", err))
			continue
		}
		s.markEmitted(ctx, userID, n, dayStart)
		created = append(created, n)
	}

	if len(created) > 0 {
		s.invalidateUnreadCount(ctx, userID)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int("candidates", len(candidates)).
		Int("created", len(created)).
		Bool("silenced", silenced).
		Msg("notifications emitted")

	return created, errors.Join(errs...)
}

// buildCandidates assembles the ordered candidate list: high-confidence
// urgent items, VIP items, critical documents, then overdue waits.
func (s *Service) buildCandidates(userID uuid.UUID, recap *domain.Recap, now time.Time, silenced bool) []*domain.Notification {
	var out []*domain.Notification
	seen := make(map[string]bool)

	newNotification := func(nType domain.NotificationType, title, message, priority string, data domain.NotificationData) *domain.Notification {
		return &domain.Notification{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      nType,
			Title:     title,
			Message:   message,
			Priority:  priority,
			Data:      data,
			CreatedAt: now,
			Silenced:  silenced,
		}
	}

	for _, item := range recap.Urgent {
		if item.Confidence < urgentConfidenceFloor {
			continue
		}
		out = append(out, newNotification(
			domain.NotificationUrgent,
			fmt.Sprintf("Urgent: %s", senderLabel(item)),
			truncate(item.Subject, 100),
			domain.NotificationPriorityUrgent,
			domain.NotificationData{
				EmailID:   item.EmailID,
				AccountID: item.AccountID,
				IsVIP:     item.IsVIP,
				Reason:    item.Reason,
			},
		))
		seen[item.EmailID] = true
	}

	for _, item := range append(append([]*domain.ClassifiedEmail{}, recap.Urgent...), recap.Todo...) {
		if !item.IsVIP || seen[item.EmailID] {
			continue
		}
		out = append(out, newNotification(
			domain.NotificationVIP,
			fmt.Sprintf("VIP: %s", senderLabel(item)),
			truncate(item.Subject, 100),
			domain.NotificationPriorityHigh,
			domain.NotificationData{
				EmailID:   item.EmailID,
				AccountID: item.AccountID,
				IsVIP:     true,
			},
		))
		seen[item.EmailID] = true
	}

	for _, doc := range recap.Documents {
		if doc.DocType != domain.DocTypeFacture && doc.DocType != domain.DocTypeDevis {
			continue
		}
		out = append(out, newNotification(
			domain.NotificationDocument,
			fmt.Sprintf("%s: %s", capitalize(doc.DocType), senderLabel(doc)),
			truncate(doc.Subject, 100),
			domain.NotificationPriorityMedium,
			domain.NotificationData{
				EmailID: doc.EmailID,
				DocType: doc.DocType,
			},
		))
	}

	for _, w := range recap.Waiting {
		if !w.IsOverdue {
			continue
		}
		out = append(out, newNotification(
			domain.NotificationWaitingOverdue,
			fmt.Sprintf("Follow up: %s", truncate(w.Subject, 40)),
			fmt.Sprintf("No reply for %d days", w.DaysWaiting),
			domain.NotificationPriorityMedium,
			domain.NotificationData{
				ThreadID:    w.ThreadID,
				DaysWaiting: w.DaysWaiting,
			},
		))
	}

	return out
}

// isDuplicate checks Redis first, then the persisted log. A concurrent
// emit for the same pair may still slip through; that duplicate is
// tolerated, not prevented.
func (s *Service) isDuplicate(ctx context.Context, userID uuid.UUID, n *domain.Notification, dayStart time.Time) (bool, error) {
	ref := n.RefID()
	if ref == "" {
		return false, nil
	}

	if s.cache != nil {
		if exists, err := s.cache.Exists(ctx, s.dedupKey(userID, n, dayStart)); err == nil && exists {
			return true, nil
		}
	}

	return s.repo.ExistsSince(ctx, userID, ref, n.Type, dayStart)
}

func (s *Service) markEmitted(ctx context.Context, userID uuid.UUID, n *domain.Notification, dayStart time.Time) {
	if s.cache == nil || n.RefID() == "" {
		return
	}
	if _, err := s.cache.SetNX(ctx, s.dedupKey(userID, n, dayStart), "1", dedupTTL); err != nil {
		s.log.Debug().Err(err).Msg("dedup cache write failed")
	}
}

// dedupKey scopes the fast-path key to the calendar day so a pair emitted
// late in the day becomes eligible again right after midnight, matching
// the day-scoped check against the persisted log.
func (s *Service) dedupKey(userID uuid.UUID, n *domain.Notification, dayStart time.Time) string {
	return fmt.Sprintf("notif:dedup:%s:%s:%s:%s", dayStart.Format("2006-01-02"), userID, n.Type, n.RefID())
}

// =============================================================================
// Queries and read-state
// =============================================================================

// List returns notifications for a user, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter *domain.NotificationFilter) ([]*domain.Notification, int, error) {
	if filter == nil {
		filter = &domain.NotificationFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, 0, apperr.Persistence("list notifications", err)
	}
	return items, total, nil
}

// UnreadCount returns the silenced-excluded unread count, cached briefly.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := s.unreadKey(userID)
	if s.cache != nil {
		var cached int64
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence("count unread notifications", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, count, unreadCountTTL); err != nil {
			s.log.Debug().Err(err).Msg("unread count cache write failed")
		}
	}
	return count, nil
}

// MarkRead flags the given notifications read.
func (s *Service) MarkRead(ctx context.Context, userID uuid.UUID, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.MissingField("notification_ids")
	}
	n, err := s.repo.MarkRead(ctx, userID, ids)
	if err != nil {
		return 0, apperr.Persistence("mark notifications read", err)
	}
	s.invalidateUnreadCount(ctx, userID)
	return n, nil
}

// MarkAllRead flags every unread notification read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence("mark all notifications read", err)
	}
	s.invalidateUnreadCount(ctx, userID)
	return n, nil
}

func (s *Service) invalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.unreadKey(userID)); err != nil {
		s.log.Debug().Err(err).Msg("unread count cache invalidation failed")
	}
}

func (s *Service) unreadKey(userID uuid.UUID) string {
	return fmt.Sprintf("notif:unread:%s", userID)
}

// senderLabel prefers the display name, falling back to the address.
func senderLabel(item *domain.ClassifiedEmail) string {
	if item.FromDisplayName != "" {
		return truncate(item.FromDisplayName, 30)
	}
	return truncate(item.FromAddress, 30)
}

// truncate cuts on rune boundaries; accented subjects must never end in a
// mangled byte.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
