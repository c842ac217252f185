// Package recap aggregates resolver, classifier and thread-tracker output
// into prioritized today views and morning/evening recap snapshots.
package recap

import (
	"context"
	"sort"
	"time"

	"recap_server/config"
	"recap_server/core/domain"
	"recap_server/core/port/out"
	"recap_server/core/service/classification"
	"recap_server/core/service/notification"
	"recap_server/core/service/resolver"
	"recap_server/core/service/thread"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Builder generates recaps and today views. It performs no network I/O of
// its own and takes every timestamp from the caller.
type Builder struct {
	mailbox    out.MailboxPort
	resolver   *resolver.Service
	classifier *classification.Classifier
	tracker    *thread.Tracker
	recaps     domain.RecapRepository
	notifier   *notification.Service
	suggester  *Suggester
	cfg        config.RecapConfig
	log        zerolog.Logger
}

// NewBuilder wires a recap builder.
func NewBuilder(
	mailbox out.MailboxPort,
	res *resolver.Service,
	classifier *classification.Classifier,
	tracker *thread.Tracker,
	recaps domain.RecapRepository,
	notifier *notification.Service,
	suggester *Suggester,
	cfg config.RecapConfig,
	log zerolog.Logger,
) *Builder {
	return &Builder{
		mailbox:    mailbox,
		resolver:   res,
		classifier: classifier,
		tracker:    tracker,
		recaps:     recaps,
		notifier:   notifier,
		suggester:  suggester,
		cfg:        cfg,
		log:        log,
	}
}

// classifiedBuckets is the intermediate result of scanning a snapshot.
type classifiedBuckets struct {
	urgent    []*domain.ClassifiedEmail
	todo      []*domain.ClassifiedEmail
	documents []*domain.ClassifiedEmail
	scanned   int
}

// Generate builds a recap for (user, today, type). Without force, an
// existing recap for the key is returned as-is. With force a new record is
// appended; history is never mutated.
func (b *Builder) Generate(ctx context.Context, userID uuid.UUID, recapType domain.RecapType, force bool, now time.Time) (*domain.Recap, error) {
	if !recapType.Valid() {
		return nil, apperr.ValidationFailed("type must be morning, evening or manual")
	}

	date := now.Format("2006-01-02")

	if !force {
		existing, err := b.recaps.Latest(ctx, userID, date, recapType)
		if err != nil {
			return nil, apperr.Persistence("load latest recap", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	accounts, err := b.mailbox.ListAccounts(ctx, userID)
	if err != nil {
		return nil, upstreamErr(err)
	}
	if len(accounts) == 0 {
		return nil, apperr.NotFound("connected mail account")
	}

	since := windowStart(recapType, now)
	summaries, err := b.mailbox.FetchSummaries(ctx, userID, accountIDs(accounts), since)
	if err != nil {
		// No partial recap is written on upstream failure.
		return nil, upstreamErr(err)
	}

	snap, err := b.resolver.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	buckets := b.classifySnapshot(ctx, userID, snap, summaries, now)

	waiting, err := b.tracker.ListWaiting(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	sortWaiting(waiting)

	sortUrgent(buckets.urgent)
	sortByRecency(buckets.todo)
	sortByRecency(buckets.documents)

	recap := &domain.Recap{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        recapType,
		Date:        date,
		GeneratedAt: now,
		Accounts:    accountEmails(accounts),
		Urgent:      capList(buckets.urgent, b.cfg.UrgentCap),
		Todo:        capList(buckets.todo, b.cfg.TodoCap),
		Waiting:     capWaiting(waiting, b.cfg.WaitingCap),
		Documents:   capList(buckets.documents, b.cfg.DocumentCap),
		Stats: domain.RecapStats{
			UrgentCount:    len(buckets.urgent),
			TodoCount:      len(buckets.todo),
			WaitingCount:   len(waiting),
			DocumentsCount: len(buckets.documents),
		},
	}

	recap.Suggestions = b.suggester.Suggestions(ctx, recap.Urgent, recap.Waiting, recap.Documents, b.cfg.SuggestionCap)
	if recapType == domain.RecapEvening {
		recap.RappelsIA = b.suggester.Rappels(ctx, recap.Todo, recap.Waiting, b.cfg.RappelCap)
	}

	if err := b.recaps.Insert(ctx, recap); err != nil {
		return nil, apperr.Persistence("insert recap", err)
	}

	// Notification failures must not fail an already-persisted recap.
	if _, err := b.notifier.EmitForRecap(ctx, userID, recap, now); err != nil {
		b.log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification emission incomplete")
	}

	b.log.Info().
		Str("user_id", userID.String()).
		Str("type", string(recapType)).
		Int("scanned", buckets.scanned).
		Int("urgent", recap.Stats.UrgentCount).
		Int("todo", recap.Stats.TodoCount).
		Int("waiting", recap.Stats.WaitingCount).
		Int("documents", recap.Stats.DocumentsCount).
		Msg("recap generated")

	return recap, nil
}

// GetOrGenerate returns today's latest recap of the requested type,
// generating one lazily when absent. "auto" selects morning between 06:00
// and 18:00 and evening otherwise.
func (b *Builder) GetOrGenerate(ctx context.Context, userID uuid.UUID, typeParam string, now time.Time) (*domain.Recap, error) {
	recapType := domain.RecapType(typeParam)
	if typeParam == "auto" {
		if h := now.Hour(); h >= 6 && h < 18 {
			recapType = domain.RecapMorning
		} else {
			recapType = domain.RecapEvening
		}
	}
	if !recapType.Valid() {
		return nil, apperr.ValidationFailed("type must be morning, evening or auto")
	}

	existing, err := b.recaps.Latest(ctx, userID, now.Format("2006-01-02"), recapType)
	if err != nil {
		return nil, apperr.Persistence("load latest recap", err)
	}
	if existing != nil {
		return existing, nil
	}

	return b.Generate(ctx, userID, recapType, false, now)
}

// History returns persisted recaps, newest first.
func (b *Builder) History(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Recap, error) {
	if limit <= 0 || limit > 100 {
		limit = b.cfg.HistoryLimit
	}
	recaps, err := b.recaps.History(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Persistence("load recap history", err)
	}
	return recaps, nil
}

// Today computes the current prioritized view from a fresh 24h snapshot.
// Never cached, never persisted, no notifications emitted.
func (b *Builder) Today(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.TodaySummary, error) {
	accounts, err := b.mailbox.ListAccounts(ctx, userID)
	if err != nil {
		return nil, upstreamErr(err)
	}

	var buckets classifiedBuckets
	if len(accounts) > 0 {
		summaries, err := b.mailbox.FetchSummaries(ctx, userID, accountIDs(accounts), now.Add(-24*time.Hour))
		if err != nil {
			return nil, upstreamErr(err)
		}
		snap, err := b.resolver.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		buckets = b.classifySnapshot(ctx, userID, snap, summaries, now)
	}

	waiting, err := b.tracker.ListWaiting(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	sortWaiting(waiting)

	stats, err := b.tracker.Stats(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	sortUrgent(buckets.urgent)
	sortByRecency(buckets.todo)
	sortByRecency(buckets.documents)

	return &domain.TodaySummary{
		Date:      now.Format("2006-01-02"),
		Urgent:    capList(buckets.urgent, b.cfg.UrgentCap),
		Todo:      capList(buckets.todo, b.cfg.TodoCap),
		Waiting:   capWaiting(waiting, b.cfg.WaitingCap),
		Documents: capList(buckets.documents, b.cfg.DocumentCap),
		Stats: domain.TodayStats{
			UrgentCount:    len(buckets.urgent),
			TodoCount:      len(buckets.todo),
			WaitingCount:   stats.Waiting,
			DocumentsCount: len(buckets.documents),
			OverdueCount:   stats.Overdue,
		},
	}, nil
}

// classifySnapshot resolves and classifies every summary, touching threads
// so waiting-state tracking sees each conversation. Malformed summaries
// are skipped with a warning rather than failing the whole snapshot.
func (b *Builder) classifySnapshot(ctx context.Context, userID uuid.UUID, snap *resolver.Snapshot, summaries []*domain.EmailSummary, now time.Time) classifiedBuckets {
	var buckets classifiedBuckets

	for _, email := range summaries {
		buckets.scanned++

		resolved := snap.Resolve(email.FromAddress, email.FromDisplayName)
		classified, err := b.classifier.Classify(email, resolved, now)
		if err != nil {
			b.log.Warn().Err(err).Str("email_id", email.EmailID).Msg("skipping malformed summary")
			continue
		}

		if err := b.tracker.Touch(ctx, userID, email.AccountID, threadID(email), email.Subject, now); err != nil {
			b.log.Warn().Err(err).Str("thread_id", threadID(email)).Msg("thread touch failed")
		}

		switch classified.Priority {
		case domain.PriorityUrgent:
			buckets.urgent = append(buckets.urgent, classified)
		case domain.PriorityTodo:
			buckets.todo = append(buckets.todo, classified)
		case domain.PriorityDocument:
			buckets.documents = append(buckets.documents, classified)
		}
	}

	return buckets
}

// windowStart returns the snapshot window for a recap type: morning covers
// the last 12 hours, evening the current day, manual the last 24 hours.
func windowStart(recapType domain.RecapType, now time.Time) time.Time {
	switch recapType {
	case domain.RecapMorning:
		return now.Add(-12 * time.Hour)
	case domain.RecapEvening:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	default:
		return now.Add(-24 * time.Hour)
	}
}

// sortUrgent orders VIP first, then recency descending.
func sortUrgent(items []*domain.ClassifiedEmail) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsVIP != items[j].IsVIP {
			return items[i].IsVIP
		}
		return items[i].ReceivedAt.After(items[j].ReceivedAt)
	})
}

func sortByRecency(items []*domain.ClassifiedEmail) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ReceivedAt.After(items[j].ReceivedAt)
	})
}

func sortWaiting(items []*domain.WaitingItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DaysWaiting > items[j].DaysWaiting
	})
}

func capList(items []*domain.ClassifiedEmail, cap int) []*domain.ClassifiedEmail {
	if items == nil {
		items = []*domain.ClassifiedEmail{}
	}
	if cap > 0 && len(items) > cap {
		return items[:cap]
	}
	return items
}

func capWaiting(items []*domain.WaitingItem, cap int) []*domain.WaitingItem {
	if items == nil {
		items = []*domain.WaitingItem{}
	}
	if cap > 0 && len(items) > cap {
		return items[:cap]
	}
	return items
}

// upstreamErr keeps already-classified adapter errors intact.
func upstreamErr(err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.UpstreamUnavailable("mailbox ingestion", err)
}

func threadID(email *domain.EmailSummary) string {
	if email.ThreadID != "" {
		return email.ThreadID
	}
	return email.EmailID
}

func accountIDs(accounts []*out.MailAccount) []string {
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.AccountID)
	}
	return ids
}

func accountEmails(accounts []*out.MailAccount) []string {
	emails := make([]string, 0, len(accounts))
	for _, a := range accounts {
		emails = append(emails, a.Email)
	}
	return emails
}
