// Package out defines outbound ports to external collaborators.
package out

import (
	"context"
	"time"

	"recap_server/core/domain"

	"github.com/google/uuid"
)

// MailAccount identifies a connected mailbox.
type MailAccount struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Provider  string `json:"provider,omitempty"`
}

// MailboxPort is the read-only interface to the mailbox ingestion
// collaborator. The engine never talks to a mail provider directly; it
// consumes normalized summaries and propagates fetch failures unchanged.
type MailboxPort interface {
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]*MailAccount, error)

	// FetchSummaries returns unread email summaries received at or after
	// since, across the given accounts (all accounts when empty).
	FetchSummaries(ctx context.Context, userID uuid.UUID, accountIDs []string, since time.Time) ([]*domain.EmailSummary, error)
}
