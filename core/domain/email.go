package domain

import (
	"time"
)

// Priority is the bucket assigned to an email by the classifier.
type Priority string

const (
	PriorityUrgent   Priority = "urgent"   // Immediate action required
	PriorityTodo     Priority = "todo"     // To handle today
	PriorityWaiting  Priority = "waiting"  // Awaiting a reply (thread-level, not per-email)
	PriorityDocument Priority = "document" // Detected business document
	PriorityNone     Priority = "none"     // Informational / ignorable
)

// Document types inferred from matched keywords.
const (
	DocTypeFacture     = "facture"
	DocTypeDevis       = "devis"
	DocTypeContrat     = "contrat"
	DocTypeAttestation = "attestation"
	DocTypeRIB         = "rib"
	DocTypeKbis        = "kbis"
	DocTypeAutre       = "autre"
)

// EmailSummary is the normalized, read-only snapshot entry supplied by the
// mailbox ingestion collaborator. The engine never mutates it.
type EmailSummary struct {
	EmailID         string    `json:"email_id"`
	ThreadID        string    `json:"thread_id"`
	FromAddress     string    `json:"from_address"`
	FromDisplayName string    `json:"from_display_name,omitempty"`
	Subject         string    `json:"subject"`
	Snippet         string    `json:"snippet,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
	HasAttachments  bool      `json:"has_attachments"`
	AttachmentTypes []string  `json:"attachment_types,omitempty"`
	AccountID       string    `json:"account_id"`
}

// Validate reports the first missing required field, if any.
func (e *EmailSummary) Validate() string {
	switch {
	case e.EmailID == "":
		return "email_id"
	case e.FromAddress == "":
		return "from_address"
	case e.ReceivedAt.IsZero():
		return "received_at"
	default:
		return ""
	}
}

// ClassifiedEmail wraps an EmailSummary with the classifier's verdict.
// Derived and ephemeral; recomputed per snapshot.
type ClassifiedEmail struct {
	EmailSummary

	Priority   Priority `json:"priority"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
	IsVIP      bool     `json:"is_vip"`
	DocType    string   `json:"doc_type,omitempty"` // set when Priority == document
}
