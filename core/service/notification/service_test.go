package notification

import (
	"context"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"recap_server/core/domain"
	"recap_server/core/service/silence"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeNotifRepo is an in-memory notification log.
type fakeNotifRepo struct {
	items []*domain.Notification
}

func (f *fakeNotifRepo) Insert(ctx context.Context, n *domain.Notification) error {
	cp := *n
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeNotifRepo) ExistsSince(ctx context.Context, userID uuid.UUID, refID string, nType domain.NotificationType, since time.Time) (bool, error) {
	for _, n := range f.items {
		if n.UserID == userID && n.RefID() == refID && n.Type == nType && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifRepo) List(ctx context.Context, userID uuid.UUID, filter *domain.NotificationFilter) ([]*domain.Notification, int, error) {
	var out []*domain.Notification
	for _, n := range f.items {
		if n.UserID != userID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		if filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		out = append(out, n)
	}
	total := len(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (f *fakeNotifRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range f.items {
		if n.UserID == userID && !n.Read && !n.Silenced {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifRepo) MarkRead(ctx context.Context, userID uuid.UUID, ids []string) (int64, error) {
	var updated int64
	for _, n := range f.items {
		if n.UserID != userID || n.Read {
			continue
		}
		for _, id := range ids {
			if n.ID == id {
				n.Read = true
				updated++
				break
			}
		}
	}
	return updated, nil
}

func (f *fakeNotifRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var updated int64
	for _, n := range f.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

var _ domain.NotificationRepository = (*fakeNotifRepo)(nil)

// fakeSilenceRepo serves one settings row.
type fakeSilenceRepo struct {
	settings *domain.SilenceSettings
}

func (f *fakeSilenceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.SilenceSettings, error) {
	return f.settings, nil
}

func (f *fakeSilenceRepo) Upsert(ctx context.Context, settings *domain.SilenceSettings) error {
	f.settings = settings
	return nil
}

func newTestService(repo *fakeNotifRepo, settings *domain.SilenceSettings, batchCap int) *Service {
	silences := silence.NewService(&fakeSilenceRepo{settings: settings})
	return NewService(repo, silences, nil, batchCap, zerolog.Nop())
}

func classified(emailID, from, subject string, priority domain.Priority, confidence float64, isVIP bool, docType string) *domain.ClassifiedEmail {
	return &domain.ClassifiedEmail{
		EmailSummary: domain.EmailSummary{
			EmailID:     emailID,
			FromAddress: from,
			Subject:     subject,
			AccountID:   "acc1",
		},
		Priority:   priority,
		Reason:     "test rule",
		Confidence: confidence,
		IsVIP:      isVIP,
		DocType:    docType,
	}
}

func TestEmitForRecap(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	recap := &domain.Recap{
		UserID: userID,
		Urgent: []*domain.ClassifiedEmail{
			classified("u1", "marie@client.fr", "Urgent contract", domain.PriorityUrgent, 0.98, true, ""),
			classified("u2", "weak@corp.com", "Maybe urgent", domain.PriorityUrgent, 0.6, false, ""),
		},
		Todo: []*domain.ClassifiedEmail{
			classified("t1", "paul@client.fr", "Planning", domain.PriorityTodo, 0.9, true, ""),
			classified("t2", "other@corp.com", "FYI", domain.PriorityTodo, 0.75, false, ""),
		},
		Documents: []*domain.ClassifiedEmail{
			classified("d1", "billing@edf.fr", "Facture mars", domain.PriorityDocument, 0.85, false, domain.DocTypeFacture),
			classified("d2", "legal@corp.com", "Contrat cadre", domain.PriorityDocument, 0.85, false, domain.DocTypeContrat),
		},
		Waiting: []*domain.WaitingItem{
			{ThreadID: "w1", Subject: "Devis toiture", DaysWaiting: 5, IsOverdue: true},
			{ThreadID: "w2", Subject: "Question RH", DaysWaiting: 1, IsOverdue: false},
		},
	}

	repo := &fakeNotifRepo{}
	svc := newTestService(repo, nil, 10)

	created, err := svc.EmitForRecap(ctx, userID, recap, now)
	if err != nil {
		t.Fatalf("EmitForRecap() error = %v", err)
	}

	// High-confidence urgent u1, VIP t1 (u1 already seen, not repeated),
	// facture d1 (contrat is not push-worthy), overdue w1.
	byType := make(map[domain.NotificationType][]*domain.Notification)
	for _, n := range created {
		byType[n.Type] = append(byType[n.Type], n)
	}

	if len(created) != 4 {
		t.Fatalf("created %d notifications, want 4: %+v", len(created), byType)
	}
	if got := byType[domain.NotificationUrgent]; len(got) != 1 || got[0].Data.EmailID != "u1" {
		t.Errorf("urgent notifications = %+v, want one for u1", got)
	}
	if got := byType[domain.NotificationVIP]; len(got) != 1 || got[0].Data.EmailID != "t1" {
		t.Errorf("vip notifications = %+v, want one for t1", got)
	}
	if got := byType[domain.NotificationDocument]; len(got) != 1 || got[0].Data.EmailID != "d1" {
		t.Errorf("document notifications = %+v, want one for d1", got)
	}
	if got := byType[domain.NotificationWaitingOverdue]; len(got) != 1 || got[0].Data.ThreadID != "w1" {
		t.Errorf("overdue notifications = %+v, want one for w1", got)
	}

	if urgent := byType[domain.NotificationUrgent][0]; urgent.Priority != domain.NotificationPriorityUrgent {
		t.Errorf("urgent priority = %q, want %q", urgent.Priority, domain.NotificationPriorityUrgent)
	}
	for _, n := range created {
		if n.Silenced {
			t.Errorf("notification %s silenced without active window", n.ID)
		}
	}
}

func TestEmitForRecapDedupesWithinDay(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	recap := &domain.Recap{
		UserID: userID,
		Urgent: []*domain.ClassifiedEmail{
			classified("u1", "marie@client.fr", "Urgent contract", domain.PriorityUrgent, 0.98, true, ""),
		},
	}

	repo := &fakeNotifRepo{}
	svc := newTestService(repo, nil, 10)

	first, err := svc.EmitForRecap(ctx, userID, recap, now)
	if err != nil {
		t.Fatalf("first EmitForRecap() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first emission created %d, want 1", len(first))
	}

	// Regenerating later the same day must not notify again.
	second, err := svc.EmitForRecap(ctx, userID, recap, now.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("second EmitForRecap() error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second emission created %d, want 0", len(second))
	}

	// The next calendar day the pair is eligible again.
	third, err := svc.EmitForRecap(ctx, userID, recap, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("third EmitForRecap() error = %v", err)
	}
	if len(third) != 1 {
		t.Errorf("next-day emission created %d, want 1", len(third))
	}
}

func TestEmitForRecapBatchCap(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	recap := &domain.Recap{UserID: userID}
	for i := 0; i < 15; i++ {
		recap.Urgent = append(recap.Urgent, classified(
			fmt.Sprintf("u%d", i), "sender@corp.com", "Urgent", domain.PriorityUrgent, 0.95, false, "",
		))
	}

	repo := &fakeNotifRepo{}
	svc := newTestService(repo, nil, 10)

	created, err := svc.EmitForRecap(ctx, userID, recap, now)
	if err != nil {
		t.Fatalf("EmitForRecap() error = %v", err)
	}
	if len(created) != 10 {
		t.Errorf("created %d notifications, want the 10-item cap", len(created))
	}
}

func TestEmitForRecapSilenced(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	// 23:00 falls inside the 22:00-07:00 window.
	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)

	settings := &domain.SilenceSettings{
		UserID:  userID,
		Enabled: true,
		Ranges:  []domain.SilenceRange{{Start: "22:00", End: "07:00"}},
	}

	recap := &domain.Recap{
		UserID: userID,
		Urgent: []*domain.ClassifiedEmail{
			classified("u1", "marie@client.fr", "Urgent contract", domain.PriorityUrgent, 0.98, true, ""),
		},
	}

	repo := &fakeNotifRepo{}
	svc := newTestService(repo, settings, 10)

	created, err := svc.EmitForRecap(ctx, userID, recap, now)
	if err != nil {
		t.Fatalf("EmitForRecap() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d notifications, want 1 (recorded even when silenced)", len(created))
	}
	if !created[0].Silenced {
		t.Error("notification not flagged silenced inside the window")
	}

	count, err := svc.UnreadCount(ctx, userID)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("UnreadCount() = %d, want 0 with only silenced notifications", count)
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	repo := &fakeNotifRepo{}
	svc := newTestService(repo, nil, 10)

	recap := &domain.Recap{
		UserID: userID,
		Urgent: []*domain.ClassifiedEmail{
			classified("u1", "a@b.c", "One", domain.PriorityUrgent, 0.9, false, ""),
			classified("u2", "a@b.c", "Two", domain.PriorityUrgent, 0.9, false, ""),
		},
	}
	created, err := svc.EmitForRecap(ctx, userID, recap, now)
	if err != nil {
		t.Fatalf("EmitForRecap() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d, want 2", len(created))
	}

	if _, err := svc.MarkRead(ctx, userID, nil); !apperr.IsCode(err, apperr.CodeMissingField) {
		t.Errorf("MarkRead(empty) error = %v, want MISSING_FIELD", err)
	}

	updated, err := svc.MarkRead(ctx, userID, []string{created[0].ID})
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("MarkRead() updated = %d, want 1", updated)
	}

	count, err := svc.UnreadCount(ctx, userID)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("UnreadCount() = %d, want 1", count)
	}

	all, err := svc.MarkAllRead(ctx, userID)
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if all != 1 {
		t.Errorf("MarkAllRead() updated = %d, want 1", all)
	}
}

func TestDedupKeyScopedToCalendarDay(t *testing.T) {
	svc := newTestService(&fakeNotifRepo{}, nil, 10)
	userID := uuid.New()
	n := &domain.Notification{
		Type: domain.NotificationUrgent,
		Data: domain.NotificationData{EmailID: "e1"},
	}

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	nextDay := day.Add(24 * time.Hour)

	// An evening emission must not keep suppressing the pair past
	// midnight: the fast-path key has to roll over with the day.
	if svc.dedupKey(userID, n, day) == svc.dedupKey(userID, n, nextDay) {
		t.Error("dedup key identical across days, next-morning emissions would be suppressed")
	}
	if svc.dedupKey(userID, n, day) != svc.dedupKey(userID, n, day) {
		t.Error("dedup key not stable within a day")
	}
}

func TestTruncateRuneBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "short string untouched", input: "Facture", max: 100, want: "Facture"},
		{name: "ascii cut", input: "Invoice overdue", max: 7, want: "Invoice"},
		{name: "accented subject cut between runes", input: "Facture décembre", max: 10, want: "Facture dé"},
		{name: "cut right after an accent", input: "Céline", max: 2, want: "Cé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.input, tt.max)
			}
		})
	}
}
