package recap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recap_server/core/domain"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Suggester produces next-action suggestions and evening reminder prompts.
// Templates are the deterministic baseline; when an OpenAI client is
// configured the wording is rephrased, falling back to the template on any
// failure so recap generation never depends on the LLM.
type Suggester struct {
	client  *openai.Client // nil when rewording is disabled
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewSuggester creates a template-only suggester.
func NewSuggester(log zerolog.Logger) *Suggester {
	return &Suggester{log: log}
}

// NewSuggesterWithLLM creates a suggester that rephrases wording via OpenAI.
func NewSuggesterWithLLM(apiKey, model string, timeout time.Duration, log zerolog.Logger) *Suggester {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Suggester{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

// Suggestions builds up to cap suggestions: the first urgent item, the
// first overdue waiting thread, and the first detected document.
func (s *Suggester) Suggestions(ctx context.Context, urgent []*domain.ClassifiedEmail, waiting []*domain.WaitingItem, documents []*domain.ClassifiedEmail, cap int) []*domain.Suggestion {
	var out []*domain.Suggestion

	if len(urgent) > 0 {
		item := urgent[0]
		out = append(out, &domain.Suggestion{
			Action:  s.reword(ctx, fmt.Sprintf("Handle the urgent email from %s", senderLabel(item))),
			Reason:  item.Reason,
			EmailID: item.EmailID,
			Type:    "urgent",
		})
	}

	if len(waiting) > 0 && waiting[0].IsOverdue {
		w := waiting[0]
		out = append(out, &domain.Suggestion{
			Action:   s.reword(ctx, fmt.Sprintf("Follow up: %s", truncate(w.Subject, 40))),
			Reason:   fmt.Sprintf("No reply for %d days", w.DaysWaiting),
			ThreadID: w.ThreadID,
			Type:     "waiting",
		})
	}

	if len(documents) > 0 {
		doc := documents[0]
		out = append(out, &domain.Suggestion{
			Action:  s.reword(ctx, fmt.Sprintf("Process the %s", doc.DocType)),
			Reason:  fmt.Sprintf("From %s", senderLabel(doc)),
			EmailID: doc.EmailID,
			Type:    "document",
		})
	}

	if cap > 0 && len(out) > cap {
		out = out[:cap]
	}
	return out
}

// Rappels builds evening reminders from untreated todos and overdue waits.
func (s *Suggester) Rappels(ctx context.Context, todo []*domain.ClassifiedEmail, waiting []*domain.WaitingItem, cap int) []*domain.Rappel {
	if cap <= 0 {
		cap = 3
	}
	var out []*domain.Rappel

	for _, item := range todo {
		if len(out) >= cap {
			break
		}
		out = append(out, &domain.Rappel{
			Message:  s.reword(ctx, fmt.Sprintf("Don't forget: %s", truncate(item.Subject, 50))),
			Context:  senderLabel(item),
			EmailID:  item.EmailID,
			Priority: "todo",
		})
	}

	for _, w := range waiting {
		if len(out) >= cap {
			break
		}
		if !w.IsOverdue {
			continue
		}
		out = append(out, &domain.Rappel{
			Message:  s.reword(ctx, fmt.Sprintf("Overdue follow-up: %s", truncate(w.Subject, 40))),
			ThreadID: w.ThreadID,
			Priority: "overdue",
		})
	}

	return out
}

// reword asks the LLM for a short natural rewording of template text.
// Template text is returned unchanged when disabled or on failure.
func (s *Suggester) reword(ctx context.Context, text string) string {
	if s.client == nil {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 60,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Rephrase the following email-assistant reminder in one short natural sentence, same language as the input. Reply with the sentence only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		s.log.Debug().Err(err).Msg("suggestion rewording failed, using template")
		return text
	}

	reworded := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reworded == "" {
		return text
	}
	return reworded
}

func senderLabel(item *domain.ClassifiedEmail) string {
	if item.FromDisplayName != "" {
		return truncate(item.FromDisplayName, 30)
	}
	return truncate(item.FromAddress, 30)
}

// truncate cuts on rune boundaries; accented subjects must never end in a
// mangled byte.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
