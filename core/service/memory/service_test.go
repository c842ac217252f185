package memory

import (
	"context"
	"testing"
	"time"

	"recap_server/core/domain"
	"recap_server/pkg/apperr"

	"github.com/google/uuid"
)

// fakeContactRepo records writes and enforces VIP email uniqueness.
type fakeContactRepo struct {
	domain.ContactRepository

	vips    []*domain.VipEntry
	aliases []*domain.AliasEntry
	vendors []*domain.VendorEntry
	nextID  int64
}

func (f *fakeContactRepo) CreateVip(ctx context.Context, entry *domain.VipEntry) error {
	for _, v := range f.vips {
		if v.Email == entry.Email {
			return apperr.AlreadyExists("vip")
		}
	}
	f.nextID++
	entry.ID = f.nextID
	f.vips = append(f.vips, entry)
	return nil
}

func (f *fakeContactRepo) DeleteVip(ctx context.Context, userID uuid.UUID, id int64) error {
	for i, v := range f.vips {
		if v.ID == id {
			f.vips = append(f.vips[:i], f.vips[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("vip")
}

func (f *fakeContactRepo) UpsertAlias(ctx context.Context, entry *domain.AliasEntry) error {
	for i, a := range f.aliases {
		if a.Key != entry.Key {
			continue
		}
		// A heuristic write never replaces a confirmed alias; the stored
		// row is handed back instead.
		if entry.AutoCreated && !a.AutoCreated {
			*entry = *a
			return nil
		}
		entry.ID = a.ID
		f.aliases[i] = entry
		return nil
	}
	f.nextID++
	entry.ID = f.nextID
	f.aliases = append(f.aliases, entry)
	return nil
}

func (f *fakeContactRepo) ListAliases(ctx context.Context, userID uuid.UUID) ([]*domain.AliasEntry, error) {
	return f.aliases, nil
}

func (f *fakeContactRepo) UpsertVendor(ctx context.Context, entry *domain.VendorEntry) error {
	f.nextID++
	entry.ID = f.nextID
	f.vendors = append(f.vendors, entry)
	return nil
}

func TestAddVip(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		label     string
		email     string
		wantErr   string
		wantLabel string
		wantEmail string
	}{
		{
			name:      "stores lowercased email",
			label:     "Marie",
			email:     "  Marie@Client.FR ",
			wantLabel: "Marie",
			wantEmail: "marie@client.fr",
		},
		{
			name:      "label defaults to email",
			email:     "paul@corp.com",
			wantLabel: "paul@corp.com",
			wantEmail: "paul@corp.com",
		},
		{
			name:    "empty email",
			label:   "Nobody",
			wantErr: apperr.CodeMissingField,
		},
		{
			name:    "email without at sign",
			email:   "not-an-address",
			wantErr: apperr.CodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeContactRepo{})

			got, err := svc.AddVip(ctx, userID, tt.label, tt.email, now)
			if tt.wantErr != "" {
				if !apperr.IsCode(err, tt.wantErr) {
					t.Fatalf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddVip() error = %v", err)
			}
			if got.Label != tt.wantLabel || got.Email != tt.wantEmail {
				t.Errorf("entry = (%q, %q), want (%q, %q)", got.Label, got.Email, tt.wantLabel, tt.wantEmail)
			}
			if !got.CreatedAt.Equal(now) {
				t.Errorf("CreatedAt = %v, want the injected %v", got.CreatedAt, now)
			}
		})
	}
}

func TestAddVipDuplicate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(&fakeContactRepo{})

	if _, err := svc.AddVip(ctx, userID, "Marie", "marie@client.fr", now); err != nil {
		t.Fatalf("first AddVip() error = %v", err)
	}
	// Same address with different casing collides.
	_, err := svc.AddVip(ctx, userID, "Marie bis", "MARIE@CLIENT.FR", now)
	if !apperr.IsCode(err, apperr.CodeAlreadyExists) {
		t.Errorf("duplicate error = %v, want ALREADY_EXISTS", err)
	}
}

func TestSetAlias(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		key         string
		value       string
		confidence  float64
		autoCreated bool
		wantErr     string
		wantKey     string
		wantConf    float64
	}{
		{
			name:     "manual alias forces full confidence",
			key:      "Comptable",
			value:    "cabinet@compta.fr",
			wantKey:  "comptable",
			wantConf: 1.0,
		},
		{
			name:        "auto alias keeps its confidence",
			key:         "jean",
			value:       "j@corp.com",
			confidence:  0.7,
			autoCreated: true,
			wantKey:     "jean",
			wantConf:    0.7,
		},
		{
			name:        "out-of-range confidence normalized",
			key:         "paul",
			value:       "p@corp.com",
			confidence:  4.2,
			autoCreated: true,
			wantKey:     "paul",
			wantConf:    1.0,
		},
		{
			name:    "empty key",
			value:   "x@y.z",
			wantErr: apperr.CodeMissingField,
		},
		{
			name:    "empty value",
			key:     "banquier",
			wantErr: apperr.CodeMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeContactRepo{})

			got, err := svc.SetAlias(ctx, userID, tt.key, tt.value, tt.confidence, tt.autoCreated, now)
			if tt.wantErr != "" {
				if !apperr.IsCode(err, tt.wantErr) {
					t.Fatalf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetAlias() error = %v", err)
			}
			if got.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", got.Key, tt.wantKey)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if !got.UpdatedAt.Equal(now) {
				t.Errorf("UpdatedAt = %v, want the injected %v", got.UpdatedAt, now)
			}
		})
	}
}

func TestSetAliasAutoNeverOverwritesConfirmed(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := &fakeContactRepo{}
	svc := NewService(repo)

	if _, err := svc.SetAlias(ctx, userID, "comptable", "cabinet@compta.fr", 1.0, false, now); err != nil {
		t.Fatalf("manual SetAlias() error = %v", err)
	}
	skipped, err := svc.SetAlias(ctx, userID, "comptable", "guess@other.fr", 0.6, true, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("auto SetAlias() error = %v", err)
	}
	// The skipped write reports the stored confirmed alias, not the guess.
	if skipped.Value != "cabinet@compta.fr" || skipped.AutoCreated || skipped.ID == 0 {
		t.Errorf("skipped upsert returned %+v, want the stored confirmed alias", skipped)
	}

	aliases, err := svc.ListAliases(ctx, userID)
	if err != nil {
		t.Fatalf("ListAliases() error = %v", err)
	}
	if len(aliases) != 1 || aliases[0].Value != "cabinet@compta.fr" {
		t.Errorf("aliases = %+v, want the confirmed value untouched", aliases)
	}

	// The other direction is allowed: a user write replaces a guess.
	if _, err := svc.SetAlias(ctx, userID, "jean", "guess@corp.com", 0.6, true, now); err != nil {
		t.Fatalf("auto SetAlias() error = %v", err)
	}
	if _, err := svc.SetAlias(ctx, userID, "jean", "confirmed@corp.com", 0, false, now); err != nil {
		t.Fatalf("manual SetAlias() error = %v", err)
	}
	aliases, _ = svc.ListAliases(ctx, userID)
	for _, a := range aliases {
		if a.Key == "jean" && (a.Value != "confirmed@corp.com" || a.Confidence != 1.0) {
			t.Errorf("jean = %+v, want confirmed@corp.com at 1.0", a)
		}
	}
}

func TestSetVendor(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		vendorName  string
		domains     []string
		wantErr     string
		wantDomains []string
	}{
		{
			name:        "cleans and lowercases domains",
			vendorName:  "EDF",
			domains:     []string{"@EDF.fr", " edf-pro.com "},
			wantDomains: []string{"edf.fr", "edf-pro.com"},
		},
		{
			name:    "empty name",
			domains: []string{"edf.fr"},
			wantErr: apperr.CodeMissingField,
		},
		{
			name:       "no usable domains",
			vendorName: "EDF",
			domains:    []string{"", "  ", "@"},
			wantErr:    apperr.CodeMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeContactRepo{})

			got, err := svc.SetVendor(ctx, userID, tt.vendorName, tt.domains, now)
			if tt.wantErr != "" {
				if !apperr.IsCode(err, tt.wantErr) {
					t.Fatalf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetVendor() error = %v", err)
			}
			if len(got.Domains) != len(tt.wantDomains) {
				t.Fatalf("Domains = %v, want %v", got.Domains, tt.wantDomains)
			}
			for i, d := range tt.wantDomains {
				if got.Domains[i] != d {
					t.Errorf("Domains[%d] = %q, want %q", i, got.Domains[i], d)
				}
			}
		})
	}
}

func TestDeleteVipNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeContactRepo{})

	err := svc.DeleteVip(ctx, uuid.New(), 42)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("DeleteVip() error = %v, want NOT_FOUND", err)
	}
}
