package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ThreadState is the tracked status of a conversation thread.
type ThreadState string

const (
	ThreadOpen    ThreadState = "OPEN"    // New or needs attention
	ThreadWaiting ThreadState = "WAITING" // User replied, awaiting a response
	ThreadDone    ThreadState = "DONE"    // Resolved / closed
)

// Valid reports whether s is a known thread state.
func (s ThreadState) Valid() bool {
	switch s {
	case ThreadOpen, ThreadWaiting, ThreadDone:
		return true
	}
	return false
}

// ThreadStatus tracks a thread's state for a user. Created implicitly on
// the first status-changing action; never hard-deleted.
// Invariant: WaitingSince is set if and only if Status == WAITING.
type ThreadStatus struct {
	ID             int64       `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	AccountID      string      `json:"account_id,omitempty"`
	ThreadID       string      `json:"thread_id"`
	Subject        string      `json:"subject,omitempty"`
	Status         ThreadState `json:"status"`
	WaitingSince   *time.Time  `json:"waiting_since,omitempty"`
	LastActivityAt time.Time   `json:"last_activity_at"`
	LastUpdatedAt  time.Time   `json:"last_updated_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// WaitingInfo is the derived waiting state of a WAITING thread.
type WaitingInfo struct {
	DaysWaiting int  `json:"days_waiting"`
	IsOverdue   bool `json:"is_overdue"`
}

// ThreadStats counts threads per state for a user.
type ThreadStats struct {
	Open    int `json:"open"`
	Waiting int `json:"waiting"`
	Done    int `json:"done"`
	Total   int `json:"total"`
	Overdue int `json:"overdue"`
}

// ThreadRepository is the persistence port for thread statuses. Upsert must
// be atomic per (user_id, thread_id); different threads are independent.
type ThreadRepository interface {
	// Get returns nil (no error) for a thread never touched.
	Get(ctx context.Context, userID uuid.UUID, threadID string) (*ThreadStatus, error)

	// Upsert atomically creates or updates the status row. The store applies
	// the waiting_since transition in a single write: entering WAITING sets
	// it if unset, leaving WAITING clears it.
	Upsert(ctx context.Context, status *ThreadStatus, now time.Time) (*ThreadStatus, error)

	// Touch creates an OPEN record on first sight, bumping last_activity_at
	// without changing an existing status.
	Touch(ctx context.Context, userID uuid.UUID, accountID, threadID, subject string, now time.Time) error

	ListByStatus(ctx context.Context, userID uuid.UUID, status *ThreadState, limit int) ([]*ThreadStatus, error)
	ListWaiting(ctx context.Context, userID uuid.UUID) ([]*ThreadStatus, error)
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[ThreadState]int, error)
}
