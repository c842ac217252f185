// Package memory manages the contact knowledge base: VIPs, aliases and
// recognized vendors.
package memory

import (
	"context"
	"strings"
	"time"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
)

// Service exposes knowledge-base CRUD with input validation. Uniqueness is
// enforced by the store.
type Service struct {
	contacts domain.ContactRepository
}

// NewService creates a memory service.
func NewService(contacts domain.ContactRepository) *Service {
	return &Service{contacts: contacts}
}

// ===== VIPs =====

func (s *Service) ListVips(ctx context.Context, userID uuid.UUID) ([]*domain.VipEntry, error) {
	vips, err := s.contacts.ListVips(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list vips", err)
	}
	return vips, nil
}

// AddVip registers a VIP contact. The email is stored lowercased.
func (s *Service) AddVip(ctx context.Context, userID uuid.UUID, label, email string, now time.Time) (*domain.VipEntry, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperr.MissingField("email")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.ValidationFailed("email must contain @")
	}
	if label == "" {
		label = email
	}

	entry := &domain.VipEntry{
		UserID:    userID,
		Label:     label,
		Email:     email,
		CreatedAt: now,
	}
	if err := s.contacts.CreateVip(ctx, entry); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, apperr.Persistence("create vip", err)
	}
	return entry, nil
}

func (s *Service) DeleteVip(ctx context.Context, userID uuid.UUID, id int64) error {
	err := s.contacts.DeleteVip(ctx, userID, id)
	if err != nil && !apperr.IsAppError(err) {
		return apperr.Persistence("delete vip", err)
	}
	return err
}

// ===== Aliases =====

func (s *Service) ListAliases(ctx context.Context, userID uuid.UUID) ([]*domain.AliasEntry, error) {
	aliases, err := s.contacts.ListAliases(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list aliases", err)
	}
	return aliases, nil
}

// SetAlias creates or updates an alias. User-set aliases are stored with
// full confidence; auto-created ones never replace a confirmed alias.
func (s *Service) SetAlias(ctx context.Context, userID uuid.UUID, key, value string, confidence float64, autoCreated bool, now time.Time) (*domain.AliasEntry, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return nil, apperr.MissingField("key")
	}
	if strings.TrimSpace(value) == "" {
		return nil, apperr.MissingField("value")
	}
	if confidence <= 0 || confidence > 1 {
		confidence = 1.0
	}
	if !autoCreated {
		confidence = 1.0
	}

	entry := &domain.AliasEntry{
		UserID:      userID,
		Key:         key,
		Value:       strings.TrimSpace(value),
		Confidence:  confidence,
		AutoCreated: autoCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.contacts.UpsertAlias(ctx, entry); err != nil {
		return nil, apperr.Persistence("upsert alias", err)
	}
	return entry, nil
}

func (s *Service) DeleteAlias(ctx context.Context, userID uuid.UUID, id int64) error {
	err := s.contacts.DeleteAlias(ctx, userID, id)
	if err != nil && !apperr.IsAppError(err) {
		return apperr.Persistence("delete alias", err)
	}
	return err
}

// ===== Vendors =====

func (s *Service) ListVendors(ctx context.Context, userID uuid.UUID) ([]*domain.VendorEntry, error) {
	vendors, err := s.contacts.ListVendors(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list vendors", err)
	}
	return vendors, nil
}

// SetVendor creates or updates a vendor and its sending domains.
func (s *Service) SetVendor(ctx context.Context, userID uuid.UUID, name string, domains []string, now time.Time) (*domain.VendorEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.MissingField("name")
	}

	cleaned := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(d, "@")))
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperr.MissingField("domains")
	}

	entry := &domain.VendorEntry{
		UserID:    userID,
		Name:      name,
		Domains:   cleaned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.contacts.UpsertVendor(ctx, entry); err != nil {
		return nil, apperr.Persistence("upsert vendor", err)
	}
	return entry, nil
}

func (s *Service) DeleteVendor(ctx context.Context, userID uuid.UUID, id int64) error {
	err := s.contacts.DeleteVendor(ctx, userID, id)
	if err != nil && !apperr.IsAppError(err) {
		return apperr.Persistence("delete vendor", err)
	}
	return err
}

// Stats counts knowledge-base entries per category.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*domain.MemoryStats, error) {
	stats, err := s.contacts.Stats(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("memory stats", err)
	}
	return stats, nil
}
