// Package provider implements adapters for the mailbox ingestion service.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"recap_server/core/domain"
	"recap_server/core/port/out"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MailboxAdapter implements out.MailboxPort against the mailbox ingestion
// service's HTTP API. Calls go through a circuit breaker so a degraded
// upstream fails fast instead of tying up recap generation.
type MailboxAdapter struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewMailboxAdapter creates a new mailbox ingestion adapter.
func NewMailboxAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *MailboxAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "mailbox-ingestion",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &MailboxAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		log:     log,
	}
}

type accountResponse struct {
	Accounts []*out.MailAccount `json:"accounts"`
}

type summariesResponse struct {
	Emails []*domain.EmailSummary `json:"emails"`
}

// ListAccounts returns the user's connected mail accounts.
func (a *MailboxAdapter) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*out.MailAccount, error) {
	endpoint := fmt.Sprintf("%s/internal/users/%s/accounts", a.baseURL, userID)

	var resp accountResponse
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// FetchSummaries returns normalized email summaries received at or after
// since across the given accounts.
func (a *MailboxAdapter) FetchSummaries(ctx context.Context, userID uuid.UUID, accountIDs []string, since time.Time) ([]*domain.EmailSummary, error) {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))
	if len(accountIDs) > 0 {
		params.Set("accounts", strings.Join(accountIDs, ","))
	}
	endpoint := fmt.Sprintf("%s/internal/users/%s/summaries?%s", a.baseURL, userID, params.Encode())

	var resp summariesResponse
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Emails, nil
}

func (a *MailboxAdapter) getJSON(ctx context.Context, endpoint string, v any) error {
	result, err := a.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("mailbox ingestion returned %d: %s", resp.StatusCode, truncateBody(body))
		}
		return body, nil
	})
	if err != nil {
		return apperr.UpstreamUnavailable("mailbox ingestion", err)
	}

	if err := json.Unmarshal(result.([]byte), v); err != nil {
		return apperr.UpstreamUnavailable("mailbox ingestion", fmt.Errorf("invalid response: %w", err))
	}
	return nil
}

func truncateBody(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var _ out.MailboxPort = (*MailboxAdapter)(nil)
