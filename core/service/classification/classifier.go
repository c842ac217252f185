// Package classification assigns priority buckets to email summaries using
// an ordered table of rules over sender, subject, age and attachments.
package classification

import (
	"fmt"
	"strings"
	"time"

	"recap_server/config"
	"recap_server/core/domain"
	"recap_server/core/service/resolver"
	"recap_server/pkg/apperr"
)

// ruleInput carries the normalized inputs a rule matches against.
type ruleInput struct {
	email    *domain.EmailSummary
	resolved resolver.Result
	now      time.Time

	fromLower string
	text      string // lowercased subject + snippet
}

// outcome is the verdict of a matched rule.
type outcome struct {
	priority   domain.Priority
	reason     string
	confidence float64
	docType    string
}

// rule is one ordered entry of the classification table. The first rule
// whose predicate matches decides the priority; waiting is orthogonal and
// merged per thread by the tracker, never here.
type rule struct {
	name  string
	match func(c *Classifier, in *ruleInput) *outcome
}

// Classifier evaluates the rule table. It is stateless; repeated calls for
// the same (email, resolved, now) yield identical output.
type Classifier struct {
	cfg   config.RulesConfig
	rules []rule
}

// New creates a classifier from the centralized rule configuration.
func New(cfg config.RulesConfig) *Classifier {
	c := &Classifier{cfg: cfg}
	c.rules = []rule{
		{name: "ignore", match: (*Classifier).matchIgnore},
		{name: "vip_urgent", match: (*Classifier).matchVIPUrgent},
		{name: "urgency_keyword", match: (*Classifier).matchUrgencyKeyword},
		{name: "official_sender", match: (*Classifier).matchOfficialSender},
		{name: "document", match: (*Classifier).matchDocument},
		{name: "vip_todo", match: (*Classifier).matchVIPTodo},
		{name: "vendor_todo", match: (*Classifier).matchVendorTodo},
		{name: "todo_keyword", match: (*Classifier).matchTodoKeyword},
		{name: "reply_expected", match: (*Classifier).matchReplyExpected},
		{name: "attachment", match: (*Classifier).matchAttachment},
	}
	return c
}

// Classify runs the rule table over one email. Only structurally invalid
// input is an error; "no rule matched" yields priority none.
func (c *Classifier) Classify(email *domain.EmailSummary, resolved resolver.Result, now time.Time) (*domain.ClassifiedEmail, error) {
	if email == nil {
		return nil, apperr.ValidationFailed("email summary is nil")
	}
	if field := email.Validate(); field != "" {
		return nil, apperr.MissingField(field)
	}

	in := &ruleInput{
		email:     email,
		resolved:  resolved,
		now:       now,
		fromLower: strings.ToLower(email.FromAddress),
		text:      strings.ToLower(email.Subject + " " + email.Snippet),
	}

	result := &domain.ClassifiedEmail{
		EmailSummary: *email,
		Priority:     domain.PriorityNone,
		Reason:       "Informational",
		Confidence:   0.5,
		IsVIP:        resolved.IsVIP(),
	}

	for _, r := range c.rules {
		if out := r.match(c, in); out != nil {
			result.Priority = out.priority
			result.Reason = out.reason
			result.Confidence = out.confidence
			result.DocType = out.docType
			break
		}
	}

	return result, nil
}

// =============================================================================
// Rule predicates (evaluation order is the table order above)
// =============================================================================

// matchIgnore drops promotional/automated mail. Never applies to VIPs.
func (c *Classifier) matchIgnore(in *ruleInput) *outcome {
	if in.resolved.IsVIP() {
		return nil
	}
	for _, p := range c.cfg.IgnorePatterns {
		p = strings.ToLower(p)
		if strings.Contains(in.text, p) || strings.Contains(in.fromLower, p) {
			return &outcome{priority: domain.PriorityNone, reason: "Promotional email", confidence: 0.8}
		}
	}
	return nil
}

// matchVIPUrgent: VIP sender combined with an urgency keyword, or (when the
// recency clause is enabled) with a very recent arrival. The two clauses
// are OR'd; the recency clause defaults off.
func (c *Classifier) matchVIPUrgent(in *ruleInput) *outcome {
	if !in.resolved.IsVIP() {
		return nil
	}
	if kw := firstKeyword(c.cfg.UrgentKeywords, in.text); kw != "" {
		return &outcome{priority: domain.PriorityUrgent, reason: "VIP + urgent keyword", confidence: 0.98}
	}
	if c.cfg.VIPRecentEnabled && in.now.Sub(in.email.ReceivedAt) < c.cfg.VIPRecentWindow() {
		return &outcome{priority: domain.PriorityUrgent, reason: "VIP recent", confidence: 0.9}
	}
	return nil
}

// matchUrgencyKeyword catches urgency wording from any sender.
func (c *Classifier) matchUrgencyKeyword(in *ruleInput) *outcome {
	if kw := firstKeyword(c.cfg.UrgentKeywords, in.text); kw != "" {
		return &outcome{priority: domain.PriorityUrgent, reason: "Urgency keyword detected", confidence: 0.85}
	}
	return nil
}

// matchOfficialSender flags mail from official organisms (banks, tax
// offices, courts) as urgent based on the sender address.
func (c *Classifier) matchOfficialSender(in *ruleInput) *outcome {
	for _, hint := range c.cfg.OfficialDomains {
		if strings.Contains(in.fromLower, strings.ToLower(hint)) {
			return &outcome{priority: domain.PriorityUrgent, reason: "Official sender", confidence: 0.9}
		}
	}
	return nil
}

// matchDocument detects business documents: a vendor sender, or a document
// keyword, combined with an attachment.
func (c *Classifier) matchDocument(in *ruleInput) *outcome {
	if !in.email.HasAttachments {
		return nil
	}
	if kw := firstKeyword(c.cfg.DocumentKeywords, in.text); kw != "" {
		return &outcome{
			priority:   domain.PriorityDocument,
			reason:     fmt.Sprintf("Document detected: %s", kw),
			confidence: 0.85,
			docType:    docTypeFor(kw),
		}
	}
	if in.resolved.Kind == resolver.KindVendor {
		return &outcome{
			priority:   domain.PriorityDocument,
			reason:     fmt.Sprintf("Vendor document: %s", in.resolved.Vendor.Name),
			confidence: 0.8,
			docType:    domain.DocTypeAutre,
		}
	}
	return nil
}

// matchVIPTodo: a VIP email that was not urgent is at least a todo.
func (c *Classifier) matchVIPTodo(in *ruleInput) *outcome {
	if in.resolved.IsVIP() {
		return &outcome{priority: domain.PriorityTodo, reason: "VIP contact", confidence: 0.9}
	}
	return nil
}

// matchVendorTodo: known supplier mail without attachments is still worth
// handling.
func (c *Classifier) matchVendorTodo(in *ruleInput) *outcome {
	if in.resolved.Kind == resolver.KindVendor {
		return &outcome{
			priority:   domain.PriorityTodo,
			reason:     fmt.Sprintf("Vendor: %s", in.resolved.Vendor.Name),
			confidence: 0.8,
		}
	}
	return nil
}

// matchTodoKeyword catches actionable wording (invoices, signatures,
// meetings).
func (c *Classifier) matchTodoKeyword(in *ruleInput) *outcome {
	if kw := firstKeyword(c.cfg.TodoKeywords, in.text); kw != "" {
		return &outcome{
			priority:   domain.PriorityTodo,
			reason:     fmt.Sprintf("To handle: %s", kw),
			confidence: 0.75,
		}
	}
	return nil
}

// matchReplyExpected: a direct question in the subject suggests a reply is
// expected.
func (c *Classifier) matchReplyExpected(in *ruleInput) *outcome {
	if strings.Contains(in.email.Subject, "?") {
		return &outcome{priority: domain.PriorityTodo, reason: "Question asked", confidence: 0.6}
	}
	return nil
}

// matchAttachment: any remaining attachment is a weak todo signal.
func (c *Classifier) matchAttachment(in *ruleInput) *outcome {
	if in.email.HasAttachments {
		return &outcome{priority: domain.PriorityTodo, reason: "Attachment", confidence: 0.6}
	}
	return nil
}

// firstKeyword returns the first keyword contained in text, or "".
func firstKeyword(keywords []string, text string) string {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return strings.ToLower(kw)
		}
	}
	return ""
}

// docTypeFor maps a matched document keyword to its type.
func docTypeFor(keyword string) string {
	switch keyword {
	case "facture", "invoice":
		return domain.DocTypeFacture
	case "devis", "quote":
		return domain.DocTypeDevis
	case "contrat", "contract":
		return domain.DocTypeContrat
	case "attestation":
		return domain.DocTypeAttestation
	case "rib":
		return domain.DocTypeRIB
	case "kbis":
		return domain.DocTypeKbis
	default:
		return domain.DocTypeAutre
	}
}
