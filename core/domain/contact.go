package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VipEntry marks a contact whose emails always get elevated treatment.
// Emails are unique per user.
type VipEntry struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Label     string    `json:"label"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AliasEntry is a user-defined shortcut resolving to a contact email
// (e.g. "comptable" -> accountant's address). Keys are unique per user,
// case-insensitive. Confidence < 1.0 marks a heuristic guess pending
// confirmation.
type AliasEntry struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Confidence  float64   `json:"confidence"`
	AutoCreated bool      `json:"auto_created"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VendorEntry is a recognized recurring supplier, associated with its known
// sending domains, used to detect document-type emails.
type VendorEntry struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Domains   []string  `json:"domains"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryStats summarizes the knowledge base size for a user.
type MemoryStats struct {
	Vips    int64 `json:"vips"`
	Aliases int64 `json:"aliases"`
	Vendors int64 `json:"vendors"`
}

// ContactRepository is the persistence port for the VIP/alias/vendor
// knowledge base. Writes are atomic per row; alias and VIP uniqueness is
// enforced by the store.
type ContactRepository interface {
	ListVips(ctx context.Context, userID uuid.UUID) ([]*VipEntry, error)
	CreateVip(ctx context.Context, entry *VipEntry) error
	DeleteVip(ctx context.Context, userID uuid.UUID, id int64) error

	ListAliases(ctx context.Context, userID uuid.UUID) ([]*AliasEntry, error)
	GetAlias(ctx context.Context, userID uuid.UUID, key string) (*AliasEntry, error)
	UpsertAlias(ctx context.Context, entry *AliasEntry) error
	DeleteAlias(ctx context.Context, userID uuid.UUID, id int64) error

	ListVendors(ctx context.Context, userID uuid.UUID) ([]*VendorEntry, error)
	UpsertVendor(ctx context.Context, entry *VendorEntry) error
	DeleteVendor(ctx context.Context, userID uuid.UUID, id int64) error

	Stats(ctx context.Context, userID uuid.UUID) (*MemoryStats, error)
}
