// Package bootstrap wires configuration, stores, services and the HTTP API.
package bootstrap

import (
	"context"
	"time"

	"recap_server/adapter/out/mongodb"
	"recap_server/adapter/out/persistence"
	"recap_server/adapter/out/provider"
	"recap_server/config"
	"recap_server/core/port/out"
	"recap_server/core/service/classification"
	"recap_server/core/service/memory"
	"recap_server/core/service/notification"
	"recap_server/core/service/recap"
	"recap_server/core/service/resolver"
	"recap_server/core/service/silence"
	"recap_server/core/service/thread"
	"recap_server/infra/database"
	"recap_server/pkg/cache"
	"recap_server/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies holds every wired component of the application.
type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	DB      *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	ContactRepo      *persistence.ContactAdapter
	ThreadRepo       *persistence.ThreadAdapter
	SettingsRepo     *persistence.SettingsAdapter
	NotificationRepo *persistence.NotificationAdapter
	RecapRepo        *mongodb.RecapAdapter

	// Outbound
	Mailbox out.MailboxPort

	// Services
	Resolver            *resolver.Service
	Classifier          *classification.Classifier
	Tracker             *thread.Tracker
	SilenceService      *silence.Service
	NotificationService *notification.Service
	MemoryService       *memory.Service
	Suggester           *recap.Suggester
	RecapBuilder        *recap.Builder
}

// NewDependencies connects the stores and builds the service graph. The
// returned cleanup closes connections in reverse order.
func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Log: log}
	var cleanups []func()

	// PostgreSQL
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Redis is optional: without it, dedup falls back to the notification
	// log and unread counts are uncached.
	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis connection failed, running without cache")
		} else {
			deps.Redis = redisClient
			redisCache = cache.NewRedisCache(redisClient)
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}

	// MongoDB (recap history)
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, nil, err
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		mongoClient.Disconnect(context.Background())
	})

	// Repositories
	deps.ContactRepo = persistence.NewContactAdapter(db)
	deps.ThreadRepo = persistence.NewThreadAdapter(db)
	deps.SettingsRepo = persistence.NewSettingsAdapter(db)
	deps.NotificationRepo = persistence.NewNotificationAdapter(db)

	mongoDB := mongoClient.Database(cfg.MongoDBName)
	deps.RecapRepo = mongodb.NewRecapAdapter(mongoDB)
	if err := deps.RecapRepo.EnsureIndexes(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure recap indexes")
	}

	// Mailbox ingestion
	deps.Mailbox = provider.NewMailboxAdapter(cfg.MailboxBaseURL, cfg.MailboxTimeout, logger.Component(log, "mailbox"))

	// Services
	deps.Resolver = resolver.NewService(deps.ContactRepo, logger.Component(log, "resolver"))
	deps.Classifier = classification.New(cfg.Rules)
	deps.Tracker = thread.NewTracker(deps.ThreadRepo, cfg.Rules.OverdueThresholdDays)
	deps.SilenceService = silence.NewService(deps.SettingsRepo)
	deps.MemoryService = memory.NewService(deps.ContactRepo)

	deps.NotificationService = notification.NewService(
		deps.NotificationRepo,
		deps.SilenceService,
		redisCache,
		cfg.Recap.NotificationBatchCap,
		logger.Component(log, "notifications"),
	)

	if cfg.LLMEnabled() {
		deps.Suggester = recap.NewSuggesterWithLLM(
			cfg.OpenAIAPIKey,
			cfg.LLMModel,
			time.Duration(cfg.LLMTimeoutSec)*time.Second,
			logger.Component(log, "suggester"),
		)
	} else {
		deps.Suggester = recap.NewSuggester(logger.Component(log, "suggester"))
	}

	deps.RecapBuilder = recap.NewBuilder(
		deps.Mailbox,
		deps.Resolver,
		deps.Classifier,
		deps.Tracker,
		deps.RecapRepo,
		deps.NotificationService,
		deps.Suggester,
		cfg.Recap,
		logger.Component(log, "recap"),
	)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

// HealthCheck pings the backing stores.
func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.PingContext(ctx); err != nil {
		return err
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return d.MongoDB.Ping(ctx, nil)
}
