// Package resolver resolves raw sender addresses against the per-user
// knowledge base (VIPs, vendors, aliases).
package resolver

import (
	"context"
	"strings"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind classifies a resolved sender.
type Kind string

const (
	KindVIP     Kind = "vip"
	KindVendor  Kind = "vendor"
	KindAlias   Kind = "alias"
	KindUnknown Kind = "unknown"
)

// Result is the outcome of a resolution. An unresolved address is a valid
// result (KindUnknown), never an error.
type Result struct {
	Kind       Kind                `json:"kind"`
	Confidence float64             `json:"confidence"`
	VIP        *domain.VipEntry    `json:"vip,omitempty"`
	Vendor     *domain.VendorEntry `json:"vendor,omitempty"`
	Alias      *domain.AliasEntry  `json:"alias,omitempty"`
}

// IsVIP reports whether the sender resolved as a VIP.
func (r Result) IsVIP() bool { return r.Kind == KindVIP }

// Service loads resolution snapshots from the knowledge base.
type Service struct {
	contacts domain.ContactRepository
	log      zerolog.Logger
}

// NewService creates a resolver service.
func NewService(contacts domain.ContactRepository, log zerolog.Logger) *Service {
	return &Service{contacts: contacts, log: log}
}

// Snapshot is an immutable, pre-indexed view of one user's knowledge base.
// Resolution against a snapshot is pure and read-only.
type Snapshot struct {
	vips    map[string]*domain.VipEntry   // lowercased email -> entry
	aliases map[string]*domain.AliasEntry // lowercased key -> entry
	vendors []*domain.VendorEntry
}

// Load reads the user's knowledge base once and indexes it for resolution.
func (s *Service) Load(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	vips, err := s.contacts.ListVips(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list vips", err)
	}
	aliases, err := s.contacts.ListAliases(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list aliases", err)
	}
	vendors, err := s.contacts.ListVendors(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list vendors", err)
	}

	snap := &Snapshot{
		vips:    make(map[string]*domain.VipEntry, len(vips)),
		aliases: make(map[string]*domain.AliasEntry, len(aliases)),
		vendors: vendors,
	}
	for _, v := range vips {
		snap.vips[strings.ToLower(v.Email)] = v
	}
	for _, a := range aliases {
		snap.aliases[strings.ToLower(a.Key)] = a
	}

	s.log.Debug().
		Str("user_id", userID.String()).
		Int("vips", len(vips)).
		Int("aliases", len(aliases)).
		Int("vendors", len(vendors)).
		Msg("knowledge base snapshot loaded")

	return snap, nil
}

// Resolve matches an address (and optional display name) against the
// snapshot. Precedence: VIP, then vendor domain, then alias key. VIP wins
// over vendor for addresses matching both.
func (snap *Snapshot) Resolve(address, displayName string) Result {
	addr := strings.ToLower(strings.TrimSpace(address))

	if vip, ok := snap.vips[addr]; ok {
		return Result{Kind: KindVIP, Confidence: 1.0, VIP: vip}
	}

	if dom := emailDomain(addr); dom != "" {
		for _, v := range snap.vendors {
			for _, d := range v.Domains {
				d = strings.ToLower(strings.TrimPrefix(d, "@"))
				if dom == d || strings.HasSuffix(dom, "."+d) {
					return Result{Kind: KindVendor, Confidence: 1.0, Vendor: v}
				}
			}
		}
	}

	if a, ok := snap.aliases[addr]; ok {
		return Result{Kind: KindAlias, Confidence: a.Confidence, Alias: a}
	}
	for _, token := range nameTokens(displayName) {
		if a, ok := snap.aliases[token]; ok {
			return Result{Kind: KindAlias, Confidence: a.Confidence, Alias: a}
		}
	}

	return Result{Kind: KindUnknown, Confidence: 0}
}

// emailDomain extracts the lowercased domain part of an address.
func emailDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return address[at+1:]
}

// nameTokens splits a display name into lowercased lookup tokens.
func nameTokens(displayName string) []string {
	fields := strings.Fields(strings.ToLower(displayName))
	if len(fields) == 0 {
		return nil
	}
	// Whole name first, then individual words.
	tokens := make([]string, 0, len(fields)+1)
	if len(fields) > 1 {
		tokens = append(tokens, strings.Join(fields, " "))
	}
	return append(tokens, fields...)
}
