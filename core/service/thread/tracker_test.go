package thread

import (
	"context"
	"sort"
	"testing"
	"time"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
)

// fakeThreadRepo is an in-memory ThreadRepository applying the same
// waiting_since transition the store does.
type fakeThreadRepo struct {
	rows   map[string]*domain.ThreadStatus
	nextID int64
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{rows: make(map[string]*domain.ThreadStatus)}
}

func (f *fakeThreadRepo) key(userID uuid.UUID, threadID string) string {
	return userID.String() + "/" + threadID
}

func (f *fakeThreadRepo) Get(ctx context.Context, userID uuid.UUID, threadID string) (*domain.ThreadStatus, error) {
	row, ok := f.rows[f.key(userID, threadID)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeThreadRepo) Upsert(ctx context.Context, status *domain.ThreadStatus, now time.Time) (*domain.ThreadStatus, error) {
	k := f.key(status.UserID, status.ThreadID)
	row, ok := f.rows[k]
	if !ok {
		f.nextID++
		row = &domain.ThreadStatus{
			ID:        f.nextID,
			UserID:    status.UserID,
			ThreadID:  status.ThreadID,
			CreatedAt: now,
		}
		f.rows[k] = row
	}

	row.Status = status.Status
	if status.AccountID != "" {
		row.AccountID = status.AccountID
	}
	if status.Subject != "" {
		row.Subject = status.Subject
	}
	switch {
	case status.Status != domain.ThreadWaiting:
		row.WaitingSince = nil
	case row.WaitingSince == nil:
		ts := now
		row.WaitingSince = &ts
	}
	row.LastActivityAt = now
	row.LastUpdatedAt = now

	cp := *row
	return &cp, nil
}

func (f *fakeThreadRepo) Touch(ctx context.Context, userID uuid.UUID, accountID, threadID, subject string, now time.Time) error {
	k := f.key(userID, threadID)
	if row, ok := f.rows[k]; ok {
		if now.After(row.LastActivityAt) {
			row.LastActivityAt = now
		}
		return nil
	}
	f.nextID++
	f.rows[k] = &domain.ThreadStatus{
		ID:             f.nextID,
		UserID:         userID,
		AccountID:      accountID,
		ThreadID:       threadID,
		Subject:        subject,
		Status:         domain.ThreadOpen,
		LastActivityAt: now,
		LastUpdatedAt:  now,
		CreatedAt:      now,
	}
	return nil
}

func (f *fakeThreadRepo) ListByStatus(ctx context.Context, userID uuid.UUID, status *domain.ThreadState, limit int) ([]*domain.ThreadStatus, error) {
	var out []*domain.ThreadStatus
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		if status != nil && row.Status != *status {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeThreadRepo) ListWaiting(ctx context.Context, userID uuid.UUID) ([]*domain.ThreadStatus, error) {
	waiting := domain.ThreadWaiting
	out, _ := f.ListByStatus(ctx, userID, &waiting, 0)
	sort.Slice(out, func(i, j int) bool {
		return out[i].WaitingSince.Before(*out[j].WaitingSince)
	})
	return out, nil
}

func (f *fakeThreadRepo) CountByStatus(ctx context.Context, userID uuid.UUID) (map[domain.ThreadState]int, error) {
	counts := make(map[domain.ThreadState]int)
	for _, row := range f.rows {
		if row.UserID == userID {
			counts[row.Status]++
		}
	}
	return counts, nil
}

var _ domain.ThreadRepository = (*fakeThreadRepo)(nil)

func TestSetStatusWaitingTransitions(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	tracker := NewTracker(newFakeThreadRepo(), 3)

	day0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := day0.Add(48 * time.Hour)
	day3 := day0.Add(72 * time.Hour)

	got, err := tracker.SetStatus(ctx, userID, "acc1", "t1", domain.ThreadWaiting, day0)
	if err != nil {
		t.Fatalf("SetStatus(WAITING) error = %v", err)
	}
	if got.WaitingSince == nil || !got.WaitingSince.Equal(day0) {
		t.Fatalf("WaitingSince = %v, want %v", got.WaitingSince, day0)
	}

	// A second WAITING write two days later must keep the original start.
	got, err = tracker.SetStatus(ctx, userID, "acc1", "t1", domain.ThreadWaiting, day2)
	if err != nil {
		t.Fatalf("SetStatus(WAITING again) error = %v", err)
	}
	if got.WaitingSince == nil || !got.WaitingSince.Equal(day0) {
		t.Errorf("WaitingSince after repeat = %v, want %v", got.WaitingSince, day0)
	}

	got, err = tracker.SetStatus(ctx, userID, "acc1", "t1", domain.ThreadDone, day3)
	if err != nil {
		t.Fatalf("SetStatus(DONE) error = %v", err)
	}
	if got.WaitingSince != nil {
		t.Errorf("WaitingSince after leaving WAITING = %v, want nil", got.WaitingSince)
	}

	// Re-entering WAITING starts a fresh clock.
	got, err = tracker.SetStatus(ctx, userID, "acc1", "t1", domain.ThreadWaiting, day3)
	if err != nil {
		t.Fatalf("SetStatus(WAITING after DONE) error = %v", err)
	}
	if got.WaitingSince == nil || !got.WaitingSince.Equal(day3) {
		t.Errorf("WaitingSince after re-entry = %v, want %v", got.WaitingSince, day3)
	}
}

func TestSetStatusValidation(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newFakeThreadRepo(), 3)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		threadID string
		status   domain.ThreadState
		wantCode string
	}{
		{name: "empty thread id", threadID: "", status: domain.ThreadOpen, wantCode: apperr.CodeMissingField},
		{name: "unknown status", threadID: "t1", status: "SNOOZED", wantCode: apperr.CodeValidationFailed},
		{name: "lowercase status rejected", threadID: "t1", status: "waiting", wantCode: apperr.CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracker.SetStatus(ctx, uuid.New(), "", tt.threadID, tt.status, now)
			if err == nil {
				t.Fatal("SetStatus() expected error, got nil")
			}
			if !apperr.IsCode(err, tt.wantCode) {
				t.Errorf("error code = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestGetStatusImplicitOpen(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newFakeThreadRepo(), 3)
	userID := uuid.New()

	got, err := tracker.GetStatus(ctx, userID, "never-seen")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Status != domain.ThreadOpen {
		t.Errorf("Status = %q, want OPEN", got.Status)
	}
	if got.ID != 0 {
		t.Errorf("ID = %d, want 0 for an implicit status", got.ID)
	}
}

func TestComputeWaitingInfo(t *testing.T) {
	tracker := NewTracker(newFakeThreadRepo(), 3)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	since := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name        string
		status      *domain.ThreadStatus
		wantDays    int
		wantOverdue bool
	}{
		{
			name:   "nil status",
			status: nil,
		},
		{
			name:   "open thread reports zero",
			status: &domain.ThreadStatus{Status: domain.ThreadOpen},
		},
		{
			name:   "waiting without timestamp reports zero",
			status: &domain.ThreadStatus{Status: domain.ThreadWaiting},
		},
		{
			name:     "waiting a few hours",
			status:   &domain.ThreadStatus{Status: domain.ThreadWaiting, WaitingSince: since(6 * time.Hour)},
			wantDays: 0,
		},
		{
			name:     "just under the threshold",
			status:   &domain.ThreadStatus{Status: domain.ThreadWaiting, WaitingSince: since(71 * time.Hour)},
			wantDays: 2,
		},
		{
			name:        "exactly at the threshold",
			status:      &domain.ThreadStatus{Status: domain.ThreadWaiting, WaitingSince: since(72 * time.Hour)},
			wantDays:    3,
			wantOverdue: true,
		},
		{
			name:        "long overdue",
			status:      &domain.ThreadStatus{Status: domain.ThreadWaiting, WaitingSince: since(10*24*time.Hour + time.Hour)},
			wantDays:    10,
			wantOverdue: true,
		},
		{
			name:     "future timestamp clamps to zero",
			status:   &domain.ThreadStatus{Status: domain.ThreadWaiting, WaitingSince: since(-2 * time.Hour)},
			wantDays: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tracker.ComputeWaitingInfo(tt.status, now)
			if got.DaysWaiting != tt.wantDays {
				t.Errorf("DaysWaiting = %d, want %d", got.DaysWaiting, tt.wantDays)
			}
			if got.IsOverdue != tt.wantOverdue {
				t.Errorf("IsOverdue = %v, want %v", got.IsOverdue, tt.wantOverdue)
			}
		})
	}
}

func TestTrackerStats(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := newFakeThreadRepo()
	tracker := NewTracker(repo, 3)

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if err := tracker.Touch(ctx, userID, "acc1", "open-1", "New project", now); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if _, err := tracker.SetStatus(ctx, userID, "acc1", "wait-fresh", domain.ThreadWaiting, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if _, err := tracker.SetStatus(ctx, userID, "acc1", "wait-overdue", domain.ThreadWaiting, now.Add(-5*24*time.Hour)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if _, err := tracker.SetStatus(ctx, userID, "acc1", "done-1", domain.ThreadDone, now); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	stats, err := tracker.Stats(ctx, userID, now)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.Open != 1 || stats.Waiting != 2 || stats.Done != 1 {
		t.Errorf("counts = open %d / waiting %d / done %d, want 1/2/1", stats.Open, stats.Waiting, stats.Done)
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", stats.Overdue)
	}
}

func TestListWaitingOrdering(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := newFakeThreadRepo()
	tracker := NewTracker(repo, 3)

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := tracker.SetStatus(ctx, userID, "acc1", "recent", domain.ThreadWaiting, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if _, err := tracker.SetStatus(ctx, userID, "acc1", "oldest", domain.ThreadWaiting, now.Add(-6*24*time.Hour)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	items, err := tracker.ListWaiting(ctx, userID, now)
	if err != nil {
		t.Fatalf("ListWaiting() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ThreadID != "oldest" {
		t.Errorf("first item = %q, want oldest", items[0].ThreadID)
	}
	if items[0].DaysWaiting != 6 || !items[0].IsOverdue {
		t.Errorf("oldest info = %d days overdue=%v, want 6 days overdue", items[0].DaysWaiting, items[0].IsOverdue)
	}
	if items[1].DaysWaiting != 1 || items[1].IsOverdue {
		t.Errorf("recent info = %d days overdue=%v, want 1 day not overdue", items[1].DaysWaiting, items[1].IsOverdue)
	}
}
