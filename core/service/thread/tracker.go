// Package thread tracks per-thread conversation state (OPEN/WAITING/DONE)
// and derives waiting durations for follow-up detection.
package thread

import (
	"context"
	"time"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
)

// Tracker maintains thread statuses. All time values come from the caller.
type Tracker struct {
	repo             domain.ThreadRepository
	overdueThreshold int // days
}

// NewTracker creates a tracker with the configured overdue threshold.
func NewTracker(repo domain.ThreadRepository, overdueThresholdDays int) *Tracker {
	if overdueThresholdDays <= 0 {
		overdueThresholdDays = 3
	}
	return &Tracker{repo: repo, overdueThreshold: overdueThresholdDays}
}

// GetStatus returns the thread's tracked status. A thread never touched is
// a valid implicit OPEN state, not an error.
func (t *Tracker) GetStatus(ctx context.Context, userID uuid.UUID, threadID string) (*domain.ThreadStatus, error) {
	status, err := t.repo.Get(ctx, userID, threadID)
	if err != nil {
		return nil, apperr.Persistence("get thread status", err)
	}
	if status == nil {
		return &domain.ThreadStatus{
			UserID:   userID,
			ThreadID: threadID,
			Status:   domain.ThreadOpen,
		}, nil
	}
	return status, nil
}

// SetStatus upserts the thread status. Entering WAITING sets waiting_since
// once (repeated WAITING calls keep the original timestamp); leaving
// WAITING clears it. The store applies the transition atomically.
func (t *Tracker) SetStatus(ctx context.Context, userID uuid.UUID, accountID, threadID string, status domain.ThreadState, now time.Time) (*domain.ThreadStatus, error) {
	if threadID == "" {
		return nil, apperr.MissingField("thread_id")
	}
	if !status.Valid() {
		return nil, apperr.ValidationFailed("status must be OPEN, WAITING or DONE")
	}

	updated, err := t.repo.Upsert(ctx, &domain.ThreadStatus{
		UserID:    userID,
		AccountID: accountID,
		ThreadID:  threadID,
		Status:    status,
	}, now)
	if err != nil {
		return nil, apperr.Persistence("upsert thread status", err)
	}
	return updated, nil
}

// Touch records a sighting of a thread, creating an implicit OPEN record on
// first contact. Explicit get-or-create so the upsert contract stays
// auditable.
func (t *Tracker) Touch(ctx context.Context, userID uuid.UUID, accountID, threadID, subject string, now time.Time) error {
	if threadID == "" {
		return nil
	}
	if err := t.repo.Touch(ctx, userID, accountID, threadID, subject, now); err != nil {
		return apperr.Persistence("touch thread", err)
	}
	return nil
}

// ComputeWaitingInfo derives days waiting and overdue state for a status.
// Non-WAITING threads report zero days and are never overdue.
func (t *Tracker) ComputeWaitingInfo(status *domain.ThreadStatus, now time.Time) domain.WaitingInfo {
	if status == nil || status.Status != domain.ThreadWaiting || status.WaitingSince == nil {
		return domain.WaitingInfo{}
	}
	days := int(now.Sub(*status.WaitingSince).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return domain.WaitingInfo{
		DaysWaiting: days,
		IsOverdue:   days >= t.overdueThreshold,
	}
}

// ListWaiting returns all WAITING threads with their waiting info, sorted
// by days waiting descending by the caller's ordering of the repo result.
func (t *Tracker) ListWaiting(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.WaitingItem, error) {
	threads, err := t.repo.ListWaiting(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list waiting threads", err)
	}

	items := make([]*domain.WaitingItem, 0, len(threads))
	for _, th := range threads {
		info := t.ComputeWaitingInfo(th, now)
		items = append(items, &domain.WaitingItem{
			ThreadID:    th.ThreadID,
			AccountID:   th.AccountID,
			Subject:     th.Subject,
			DaysWaiting: info.DaysWaiting,
			IsOverdue:   info.IsOverdue,
		})
	}
	return items, nil
}

// ListByStatus returns tracked threads, optionally filtered by state.
func (t *Tracker) ListByStatus(ctx context.Context, userID uuid.UUID, status *domain.ThreadState, limit int) ([]*domain.ThreadStatus, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.ValidationFailed("status must be OPEN, WAITING or DONE")
	}
	threads, err := t.repo.ListByStatus(ctx, userID, status, limit)
	if err != nil {
		return nil, apperr.Persistence("list threads", err)
	}
	return threads, nil
}

// Stats aggregates thread counts, including how many WAITING threads are
// overdue at now.
func (t *Tracker) Stats(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.ThreadStats, error) {
	counts, err := t.repo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("count threads", err)
	}

	stats := &domain.ThreadStats{
		Open:    counts[domain.ThreadOpen],
		Waiting: counts[domain.ThreadWaiting],
		Done:    counts[domain.ThreadDone],
	}
	stats.Total = stats.Open + stats.Waiting + stats.Done

	waiting, err := t.repo.ListWaiting(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list waiting threads", err)
	}
	for _, th := range waiting {
		if t.ComputeWaitingInfo(th, now).IsOverdue {
			stats.Overdue++
		}
	}
	return stats, nil
}
