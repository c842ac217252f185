package recap

import (
	"context"
	"testing"
	"unicode/utf8"

	"recap_server/core/domain"

	"github.com/rs/zerolog"
)

func TestSuggestions(t *testing.T) {
	ctx := context.Background()
	s := NewSuggester(zerolog.Nop())

	urgent := []*domain.ClassifiedEmail{{
		EmailSummary: domain.EmailSummary{EmailID: "u1", FromAddress: "boss@corp.com", FromDisplayName: "The Boss", Subject: "Now"},
		Reason:       "Urgency keyword detected",
	}}
	waiting := []*domain.WaitingItem{{ThreadID: "w1", Subject: "Devis toiture", DaysWaiting: 5, IsOverdue: true}}
	documents := []*domain.ClassifiedEmail{{
		EmailSummary: domain.EmailSummary{EmailID: "d1", FromAddress: "billing@edf.fr", Subject: "Facture"},
		DocType:      domain.DocTypeFacture,
	}}

	got := s.Suggestions(ctx, urgent, waiting, documents, 3)
	if len(got) != 3 {
		t.Fatalf("len(suggestions) = %d, want 3", len(got))
	}
	if got[0].Type != "urgent" || got[0].EmailID != "u1" {
		t.Errorf("first = %+v, want urgent for u1", got[0])
	}
	if got[0].Action != "Handle the urgent email from The Boss" {
		t.Errorf("urgent action = %q", got[0].Action)
	}
	if got[1].Type != "waiting" || got[1].ThreadID != "w1" || got[1].Reason != "No reply for 5 days" {
		t.Errorf("second = %+v, want overdue follow-up for w1", got[1])
	}
	if got[2].Type != "document" || got[2].Action != "Process the facture" {
		t.Errorf("third = %+v, want document suggestion", got[2])
	}
}

func TestSuggestionsSkipsFreshWaiting(t *testing.T) {
	ctx := context.Background()
	s := NewSuggester(zerolog.Nop())

	waiting := []*domain.WaitingItem{{ThreadID: "w1", Subject: "Question RH", DaysWaiting: 1, IsOverdue: false}}
	got := s.Suggestions(ctx, nil, waiting, nil, 3)
	if len(got) != 0 {
		t.Errorf("suggestions = %+v, want none for a fresh wait", got)
	}
}

func TestSuggestionsCap(t *testing.T) {
	ctx := context.Background()
	s := NewSuggester(zerolog.Nop())

	urgent := []*domain.ClassifiedEmail{{EmailSummary: domain.EmailSummary{EmailID: "u1", FromAddress: "a@b.c"}}}
	waiting := []*domain.WaitingItem{{ThreadID: "w1", DaysWaiting: 4, IsOverdue: true}}
	documents := []*domain.ClassifiedEmail{{EmailSummary: domain.EmailSummary{EmailID: "d1", FromAddress: "a@b.c"}, DocType: domain.DocTypeDevis}}

	if got := s.Suggestions(ctx, urgent, waiting, documents, 2); len(got) != 2 {
		t.Errorf("len(suggestions) = %d, want the 2-item cap", len(got))
	}
}

func TestRappels(t *testing.T) {
	ctx := context.Background()
	s := NewSuggester(zerolog.Nop())

	todo := []*domain.ClassifiedEmail{
		{EmailSummary: domain.EmailSummary{EmailID: "t1", FromAddress: "a@b.c", Subject: "Devis à valider"}},
		{EmailSummary: domain.EmailSummary{EmailID: "t2", FromAddress: "a@b.c", Subject: "Signature contrat"}},
	}
	waiting := []*domain.WaitingItem{
		{ThreadID: "w1", Subject: "Relance client", DaysWaiting: 6, IsOverdue: true},
		{ThreadID: "w2", Subject: "Question RH", DaysWaiting: 1, IsOverdue: false},
	}

	got := s.Rappels(ctx, todo, waiting, 3)
	if len(got) != 3 {
		t.Fatalf("len(rappels) = %d, want 3", len(got))
	}
	if got[0].Priority != "todo" || got[0].EmailID != "t1" {
		t.Errorf("first = %+v, want todo rappel for t1", got[0])
	}
	if got[2].Priority != "overdue" || got[2].ThreadID != "w1" {
		t.Errorf("third = %+v, want overdue rappel for w1", got[2])
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "under limit", input: "Relancer le client", max: 60, want: "Relancer le client"},
		{name: "accented cut", input: "Répondre à l'échéancier", max: 10, want: "Répondre à"},
		{name: "cut on multi-byte rune", input: "Déjà vu", max: 1, want: "D"},
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
