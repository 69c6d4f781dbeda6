package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pdfshelf/internal/ai"
	"pdfshelf/internal/app"
	"pdfshelf/internal/cache"
	"pdfshelf/internal/config"
	"pdfshelf/internal/metrics"
	"pdfshelf/internal/pkg/pdfextract"
	"pdfshelf/internal/platform/database"
	rabbitmqClient "pdfshelf/internal/platform/rabbitmq"
	redisClient "pdfshelf/internal/platform/redis"
	"pdfshelf/internal/platform/storage"
	"pdfshelf/internal/repository"
	"pdfshelf/internal/worker"
)

// Services groups the application services handed to the HTTP layer.
type Services struct {
	Auth       *app.AuthService
	Profile    *app.ProfileService
	Collection *app.CollectionService
	Document   *app.DocumentService
	Enrichment *app.EnrichmentService
	Chat       *app.ChatService
	Note       *app.NoteService
	Progress   *app.ReadingProgressService
}

// App holds every long-lived resource of the process. The database and object
// storage are required; Redis and RabbitMQ are optional and left nil when
// unreachable.
type App struct {
	Config           *config.Config
	Logger           *logrus.Logger
	Metrics          *metrics.Metrics
	DB               *gorm.DB
	Redis            *redis.Client
	MQConn           *amqp.Connection
	Storage          *storage.MinioStore
	RateCounter      *cache.RateCounter
	EnrichmentWorker *worker.EnrichmentWorker
	Services         Services

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Log)
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		_ = a.Close()
		return nil, err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init object storage failed: %w", err)
	}
	a.Storage = store

	if redisCli, err := redisClient.New(ctx, cfg.Redis); err != nil {
		logger.WithError(err).Warn("redis unavailable, history cache and rate limiting disabled")
	} else {
		a.Redis = redisCli
		a.RateCounter = cache.NewRateCounter(redisCli, "ratelimit")
	}

	if mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.EnrichmentQueue); err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable, background enrichment disabled")
	} else {
		a.MQConn = mqConn
	}

	a.wireServices()

	if a.MQConn != nil {
		a.EnrichmentWorker = worker.NewEnrichmentWorker(
			a.MQConn,
			a.Services.Enrichment,
			cfg.RabbitMQ.EnrichmentQueue,
			cfg.RabbitMQ.Workers,
			cfg.RabbitMQ.Prefetch,
			logger,
		)
		if err := a.EnrichmentWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start enrichment worker failed: %w", err)
		}
	}

	a.StartedAt = time.Now()
	return a, nil
}

func (a *App) wireServices() {
	cfg := a.Config

	userRepo := repository.NewUserRepository(a.DB)
	tokenRepo := repository.NewRefreshTokenRepository(a.DB)
	collectionRepo := repository.NewCollectionRepository(a.DB)
	documentRepo := repository.NewDocumentRepository(a.DB)
	conversationRepo := repository.NewConversationRepository(a.DB)
	noteRepo := repository.NewNoteRepository(a.DB)
	progressRepo := repository.NewReadingProgressRepository(a.DB)

	// Interfaces stay untyped nil when the collaborator is missing.
	var jobs app.JobPublisher
	if a.MQConn != nil {
		jobs = rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.EnrichmentQueue)
	}
	var historyCache app.HistoryCache
	if a.Redis != nil {
		historyCache = cache.NewConversationCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	inspector := pdfextract.NewInspector()
	llmClient := ai.NewOpenAICompatibleClient(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	llmCfg := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}

	a.Services = Services{
		Auth: app.NewAuthService(
			userRepo,
			tokenRepo,
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
			time.Duration(cfg.Auth.RefreshExpireDay)*24*time.Hour,
		),
		Profile:    app.NewProfileService(userRepo, tokenRepo),
		Collection: app.NewCollectionService(collectionRepo, documentRepo),
		Document: app.NewDocumentService(
			documentRepo,
			collectionRepo,
			a.Storage,
			inspector,
			jobs,
			a.Metrics,
			a.Logger.WithField("component", "documents"),
			app.DocumentServiceOptions{
				URLTTL:         time.Duration(cfg.Storage.SignedURLTTLSeconds) * time.Second,
				MaxUploadBytes: int64(cfg.Storage.MaxUploadMB) << 20,
			},
		),
		Enrichment: app.NewEnrichmentService(
			documentRepo,
			collectionRepo,
			a.Storage,
			inspector,
			llmClient,
			llmCfg,
			jobs,
			a.Metrics,
			a.Logger.WithField("component", "enrichment"),
		),
		Chat: app.NewChatService(
			conversationRepo,
			documentRepo,
			historyCache,
			llmClient,
			llmCfg,
			cfg.LLM.MaxContextMessage,
			cfg.LLM.ContextChars,
			a.Logger.WithField("component", "chat"),
		),
		Note:     app.NewNoteService(noteRepo, documentRepo),
		Progress: app.NewReadingProgressService(progressRepo, documentRepo, a.Logger.WithField("component", "progress")),
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.EnrichmentWorker != nil {
		a.EnrichmentWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
