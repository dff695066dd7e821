// Package bootstrap assembles the application's dependencies from config.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-feedback/internal/analyzer"
	"resume-feedback/internal/jobs"
	"resume-feedback/internal/llm"
	"resume-feedback/internal/llm/gemini"
	"resume-feedback/internal/llm/openai"
	"resume-feedback/internal/queue"
	"resume-feedback/internal/resumes"
	"resume-feedback/internal/services/health"
	"resume-feedback/internal/shared/auth"
	"resume-feedback/internal/shared/config"
	"resume-feedback/internal/shared/server"
	"resume-feedback/internal/shared/server/middleware"
	"resume-feedback/internal/shared/storage/db"
	"resume-feedback/internal/shared/storage/object"
	localstore "resume-feedback/internal/shared/storage/object/local"
	s3store "resume-feedback/internal/shared/storage/object/s3"
	"resume-feedback/internal/shared/telemetry"
	"resume-feedback/internal/workerproc"
)

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Queue      queue.Client
	LocalQueue *queue.LocalQueue
	AMQP       *queue.AMQPClient

	Repo      resumes.Repo
	Resumes   *resumes.Service
	Analyzer  *analyzer.Analyzer
	Processor *jobs.Processor
	Worker    *workerproc.Handler
	Cleanup   *jobs.Cleanup

	closers []func() error
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	llmClient llm.Client
	queue     queue.Client
	noRouter  bool
}

// WithLLMClient replaces the provider client built from config.
func WithLLMClient(c llm.Client) Option {
	return func(o *buildOptions) { o.llmClient = c }
}

// WithQueue replaces the queue client built from config.
func WithQueue(q queue.Client) Option {
	return func(o *buildOptions) { o.queue = q }
}

// WithoutRouter skips building the HTTP router, for worker processes.
func WithoutRouter() Option {
	return func(o *buildOptions) { o.noRouter = true }
}

// Build prepares dependencies and the router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.QueueBackend) == "" {
		cfg.QueueBackend = config.QueueLocal
	}

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	if o.queue != nil {
		app.Queue = o.queue
	} else if err := app.buildQueue(ctx); err != nil {
		return nil, err
	}

	llmClient := o.llmClient
	if llmClient == nil {
		llmClient, err = buildLLM(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if app.DB != nil {
		app.Repo = &resumes.PGRepo{DB: app.DB}
	} else {
		app.Repo = resumes.NewMemoryRepo()
	}
	app.Resumes = &resumes.Service{Repo: app.Repo, Store: app.Store, Queue: app.Queue}
	app.Analyzer = analyzer.New(llmClient, cfg.LLMProvider, cfg.LLMModel)
	policy := jobs.DefaultRetryPolicy()
	if cfg.RetryMax >= 0 {
		policy.MaxRetries = cfg.RetryMax
	}
	if cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.RetryBaseDelay
	}
	app.Processor = &jobs.Processor{
		Repo:     app.Repo,
		Store:    app.Store,
		Analyzer: app.Analyzer,
		Policy:   policy,
	}
	app.Worker = &workerproc.Handler{Processor: app.Processor, Queue: app.Queue}
	retention := jobs.DefaultRetention
	if cfg.RetentionDays > 0 {
		retention = time.Duration(cfg.RetentionDays) * 24 * time.Hour
	}
	app.Cleanup = &jobs.Cleanup{Repo: app.Repo, Remover: app.Resumes, Retention: retention}

	if !o.noRouter {
		verifier, err := auth.NewVerifier(cfg.JWTSecret, !config.IsDevLike(cfg.Env))
		if err != nil {
			return nil, err
		}
		app.Router = server.NewRouter(server.RouterDeps{
			Config:        cfg,
			Verifier:      verifier,
			ResumeHandler: resumes.NewHandler(app.Resumes),
			Health:        health.NewService(pingerOrNil(app.DB)),
			RateLimiter:   middleware.NewRateLimiter(nil),
		})
	}

	return app, nil
}

// Start runs in-process consumers. Only the local queue needs one; SQS and
// RabbitMQ are consumed by cmd/worker and cmd/lambda-worker.
func (a *App) Start(ctx context.Context) {
	if a.LocalQueue == nil {
		return
	}
	concurrency := a.Config.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	go a.LocalQueue.Run(ctx, concurrency, a.Worker.HandleMessage)
	telemetry.Info("worker.local_started", map[string]any{"concurrency": concurrency})
}

// Close releases queue and database resources.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if config.IsDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildQueue(ctx context.Context) error {
	switch a.Config.QueueBackend {
	case config.QueueSQS:
		client, err := queue.NewSQSClient(ctx, a.Config.SQSQueueURL, a.Config.AWSRegion)
		if err != nil {
			return err
		}
		a.Queue = client
	case config.QueueAMQP:
		client, err := queue.NewAMQPClient(a.Config.AMQPURL, a.Config.AMQPQueue)
		if err != nil {
			return err
		}
		a.Queue = client
		a.AMQP = client
		a.closers = append(a.closers, client.Close)
	default:
		local := queue.NewLocalQueue(0)
		a.Queue = local
		a.LocalQueue = local
		a.closers = append(a.closers, func() error { local.Close(); return nil })
	}
	return nil
}

// buildLLM returns nil when no credential is configured; the analyzer then
// reports a configuration error instead of calling out.
func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		telemetry.Warn("bootstrap.llm_not_configured", map[string]any{"provider": cfg.LLMProvider})
		return nil, nil
	}
	if cfg.LLMProvider == config.ProviderGemini {
		client, err := gemini.NewClient(ctx, cfg.LLMAPIKey, cfg.LLMTimeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	endpoint := openai.GroqURL
	if cfg.LLMProvider == config.ProviderOpenAI {
		endpoint = openai.OpenAIURL
	}
	client, err := openai.NewClient(openai.Options{
		Provider: cfg.LLMProvider,
		Endpoint: firstNonEmpty(cfg.LLMBaseURL, endpoint),
		APIKey:   cfg.LLMAPIKey,
		Timeout:  cfg.LLMTimeout,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func pingerOrNil(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}
