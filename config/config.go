package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full runtime configuration, loaded from the environment.
type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// JWT
	JWTSecret string

	// Mailbox ingestion collaborator
	MailboxBaseURL string
	MailboxTimeout time.Duration

	// OpenAI (optional suggestion rewording)
	OpenAIAPIKey  string
	LLMModel      string
	LLMTimeoutSec int

	Rules RulesConfig
	Recap RecapConfig
}

// RulesConfig centralizes the classification keyword tables and thresholds.
// Defaults mirror the documented rule set; all lists are overridable via
// comma-separated environment variables.
type RulesConfig struct {
	UrgentKeywords   []string
	TodoKeywords     []string
	DocumentKeywords []string
	IgnorePatterns   []string
	OfficialDomains  []string

	// Rule 1 alternate clause: "VIP + received within VIPRecentWindow".
	// Disabled by default; a VIP without an urgency keyword stays todo.
	VIPRecentEnabled bool
	VIPRecentHours   int

	OverdueThresholdDays int
}

// RecapConfig holds display caps for recap buckets. Stats always count the
// full buckets even though the persisted lists are capped.
type RecapConfig struct {
	UrgentCap            int
	TodoCap              int
	DocumentCap          int
	WaitingCap           int // 0 = unlimited
	SuggestionCap        int
	RappelCap            int
	HistoryLimit         int
	NotificationBatchCap int
}

// VIPRecentWindow returns the rule-1 recency window as a duration.
func (r RulesConfig) VIPRecentWindow() time.Duration {
	return time.Duration(r.VIPRecentHours) * time.Hour
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		MongoDBURL:  os.Getenv("MONGODB_URL"),
		MongoDBName: getEnv("MONGODB_NAME", "recaps"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		MailboxBaseURL: os.Getenv("MAILBOX_BASE_URL"),
		MailboxTimeout: time.Duration(getEnvInt("MAILBOX_TIMEOUT_SEC", 15)) * time.Second,

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeoutSec: getEnvInt("LLM_TIMEOUT_SEC", 10),

		Rules: RulesConfig{
			UrgentKeywords: getEnvList("RULES_URGENT_KEYWORDS", []string{
				"urgent", "urgente", "asap", "immédiat", "immediately",
				"deadline", "échéance", "aujourd'hui", "today",
				"retard", "late", "overdue", "impayé", "unpaid",
				"mise en demeure", "relance finale", "dernier délai",
				"final notice", "action requise", "expiration", "expire",
			}),
			TodoKeywords: getEnvList("RULES_TODO_KEYWORDS", []string{
				"facture", "invoice", "paiement", "payment",
				"contrat", "contract", "devis", "quote",
				"signature", "à signer", "validation", "confirmer",
				"rendez-vous", "meeting", "réunion", "rappel",
			}),
			DocumentKeywords: getEnvList("RULES_DOCUMENT_KEYWORDS", []string{
				"facture", "devis", "contrat", "attestation", "rib", "kbis",
			}),
			IgnorePatterns: getEnvList("RULES_IGNORE_PATTERNS", []string{
				"newsletter", "unsubscribe", "se désabonner",
				"notification automatique", "no-reply", "noreply",
				"promo", "soldes", "offre spéciale", "marketing",
			}),
			OfficialDomains: getEnvList("RULES_OFFICIAL_DOMAINS", []string{
				"banque", "bank", "impot", "tax", "urssaf", "dgfip",
				"tresor", "tribunal", "avocat", "notaire", "assurance",
			}),
			VIPRecentEnabled:     getEnvBool("RULES_VIP_RECENT_ENABLED", false),
			VIPRecentHours:       getEnvInt("RULES_VIP_RECENT_HOURS", 4),
			OverdueThresholdDays: getEnvInt("RULES_OVERDUE_THRESHOLD_DAYS", 3),
		},

		Recap: RecapConfig{
			UrgentCap:            getEnvInt("RECAP_URGENT_CAP", 5),
			TodoCap:              getEnvInt("RECAP_TODO_CAP", 10),
			DocumentCap:          getEnvInt("RECAP_DOCUMENT_CAP", 5),
			WaitingCap:           getEnvInt("RECAP_WAITING_CAP", 0),
			SuggestionCap:        getEnvInt("RECAP_SUGGESTION_CAP", 3),
			RappelCap:            getEnvInt("RECAP_RAPPEL_CAP", 3),
			HistoryLimit:         getEnvInt("RECAP_HISTORY_LIMIT", 14),
			NotificationBatchCap: getEnvInt("RECAP_NOTIFICATION_BATCH_CAP", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	var missing []string

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.MongoDBURL == "" {
		missing = append(missing, "MONGODB_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.MailboxBaseURL == "" {
		missing = append(missing, "MAILBOX_BASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LLMEnabled reports whether suggestion rewording via OpenAI is configured.
func (c *Config) LLMEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
