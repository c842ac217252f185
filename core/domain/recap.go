package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecapType identifies the period a recap covers.
type RecapType string

const (
	RecapMorning RecapType = "morning"
	RecapEvening RecapType = "evening"
	RecapManual  RecapType = "manual"
)

// Valid reports whether t is a generatable recap type.
func (t RecapType) Valid() bool {
	switch t {
	case RecapMorning, RecapEvening, RecapManual:
		return true
	}
	return false
}

// RecapStats are full (uncapped) bucket counts for a recap.
type RecapStats struct {
	UrgentCount    int `json:"urgent_count"`
	TodoCount      int `json:"todo_count"`
	WaitingCount   int `json:"waiting_count"`
	DocumentsCount int `json:"documents_count"`
}

// WaitingItem is a WAITING thread surfaced in a recap.
type WaitingItem struct {
	ThreadID    string `json:"thread_id"`
	AccountID   string `json:"account_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	DaysWaiting int    `json:"days_waiting"`
	IsOverdue   bool   `json:"is_overdue"`
}

// Suggestion is a proposed next action for a recap item.
type Suggestion struct {
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
	EmailID  string `json:"email_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Type     string `json:"type"`
}

// Rappel is an evening-only reminder prompt.
type Rappel struct {
	Message  string `json:"message"`
	Context  string `json:"context,omitempty"`
	EmailID  string `json:"email_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Priority string `json:"priority"`
}

// Recap is a point-in-time aggregated summary of prioritized email state.
// Immutable once generated; regeneration appends a new record and history
// is keyed by (user_id, date, type) with latest decided by GeneratedAt.
type Recap struct {
	ID          string    `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Type        RecapType `json:"type"`
	Date        string    `json:"date"` // calendar day, YYYY-MM-DD
	GeneratedAt time.Time `json:"generated_at"`

	Accounts []string `json:"accounts,omitempty"`

	Urgent    []*ClassifiedEmail `json:"urgent"`
	Todo      []*ClassifiedEmail `json:"todo"`
	Waiting   []*WaitingItem     `json:"waiting"`
	Documents []*ClassifiedEmail `json:"documents"`

	Suggestions []*Suggestion `json:"suggestions"`
	RappelsIA   []*Rappel     `json:"rappels_ia,omitempty"` // evening only

	Stats RecapStats `json:"stats"`
}

// TodaySummary is the fresh (non-persisted) combined view for the current
// day, merging classification buckets with thread statistics.
type TodaySummary struct {
	Date      string             `json:"date"`
	Urgent    []*ClassifiedEmail `json:"urgent"`
	Todo      []*ClassifiedEmail `json:"todo"`
	Waiting   []*WaitingItem     `json:"waiting"`
	Documents []*ClassifiedEmail `json:"documents"`
	Stats     TodayStats         `json:"stats"`
}

// TodayStats extends recap stats with the overdue-thread count.
type TodayStats struct {
	UrgentCount    int `json:"urgent_count"`
	TodoCount      int `json:"todo_count"`
	WaitingCount   int `json:"waiting_count"`
	DocumentsCount int `json:"documents_count"`
	OverdueCount   int `json:"overdue_count"`
}

// RecapRepository is the append-only persistence port for recap history.
type RecapRepository interface {
	Insert(ctx context.Context, recap *Recap) error
	Latest(ctx context.Context, userID uuid.UUID, date string, recapType RecapType) (*Recap, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*Recap, error)
}
