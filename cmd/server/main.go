package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/application/export"
	"github.com/ordersync/backend/internal/application/ingest"
	pipelineapp "github.com/ordersync/backend/internal/application/pipeline"
	"github.com/ordersync/backend/internal/application/probe"
	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/config"
	"github.com/ordersync/backend/internal/infrastructure/logger"
	"github.com/ordersync/backend/internal/infrastructure/persistence"
	"github.com/ordersync/backend/internal/infrastructure/queue"
	"github.com/ordersync/backend/internal/infrastructure/roar"
	"github.com/ordersync/backend/internal/infrastructure/scheduler"
	"github.com/ordersync/backend/internal/infrastructure/secrets"
	"github.com/ordersync/backend/internal/infrastructure/unleashed"
	"github.com/ordersync/backend/internal/interfaces/http/handler"
	"github.com/ordersync/backend/internal/interfaces/http/middleware"
	"github.com/ordersync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order sync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := persistence.Migrate(db.DB); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize the work queue, Redis when reachable
	queueFactory := queue.NewFactory(cfg.Redis, queue.WithLogger(log))
	workQueue, queueCloser, err := queueFactory.Create()
	if err != nil {
		log.Fatal("Failed to create queue", zap.Error(err))
	}
	defer func() {
		if err := queueCloser.Close(); err != nil {
			log.Error("Error closing queue", zap.Error(err))
		}
	}()

	// Initialize repositories
	stagingRepo := persistence.NewGormStagingRepository(db.DB)
	taskRepo := persistence.NewGormSyncTaskRepository(db.DB)
	mappingRepo := persistence.NewGormIdentifierMappingRepository(db.DB)
	probeResultRepo := persistence.NewGormProbeResultRepository(db.DB)

	// Encrypted credential store
	passphrase := cfg.Secrets.Passphrase
	if passphrase == "" {
		log.Warn("secrets.passphrase not set, using development passphrase")
		passphrase = "dev-only-insecure-passphrase"
	}
	encryptor, err := secrets.NewEncryptor(passphrase)
	if err != nil {
		log.Fatal("Failed to initialize secret encryptor", zap.Error(err))
	}
	secretStore := persistence.NewGormSecretStore(db.DB, encryptor, log)

	// Source API client
	sourceClient := unleashed.NewClient(unleashed.Config{
		BaseURL:        cfg.Unleashed.BaseURL,
		APIID:          cfg.Unleashed.APIID,
		APIKey:         cfg.Unleashed.APIKey,
		Timeout:        time.Duration(cfg.Unleashed.TimeoutSeconds) * time.Second,
		InitialBackoff: cfg.Unleashed.InitialBackoff,
		MaxAttempts:    cfg.Unleashed.MaxRetries,
	}, log)

	// Target API client factory. The processor resolves credentials fresh on
	// every sweep so an operator can rotate them without a restart.
	roarConfig := roar.Config{
		BaseURL: cfg.Roar.BaseURL,
		Timeout: time.Duration(cfg.Roar.TimeoutSeconds) * time.Second,
	}
	targetFactory := func(creds roar.Credentials) export.TargetClient {
		return roar.NewClient(roarConfig, creds, log)
	}
	authCheck := func(ctx context.Context) *roar.AuthResult {
		creds, err := roar.LoadCredentials(ctx, secretStore)
		if err != nil {
			if errors.Is(err, pipeline.ErrCredentialsMissing) {
				return &roar.AuthResult{OK: false, Message: "missing credentials"}
			}
			return &roar.AuthResult{OK: false, Message: err.Error()}
		}
		return roar.NewClient(roarConfig, creds, log).Auth(ctx)
	}

	// Initialize application services
	webhookService := ingest.NewWebhookService(ingest.WebhookConfig{
		Secret:   cfg.Unleashed.WebhookSecret,
		QueueKey: cfg.Queue.Key,
		DedupTTL: cfg.Queue.DedupTTL,
	}, workQueue, log)

	queueWorker := ingest.NewQueueWorker(ingest.WorkerConfig{
		QueueKey:    cfg.Queue.Key,
		BatchSize:   cfg.Queue.BatchSize,
		MaxAttempts: cfg.Queue.MaxAttempts,
	}, workQueue, sourceClient, stagingRepo, taskRepo, log)

	syncProcessor := export.NewSyncProcessor(export.ProcessorConfig{
		SweepBatch: cfg.Scheduler.SweepBatchSize,
	}, secretStore, targetFactory, sourceClient, taskRepo, mappingRepo, log)

	dashboardService := pipelineapp.NewService(cfg.Queue.Key, workQueue, taskRepo, log)
	probeService := probe.NewService(sourceClient, probeResultRepo, log)

	// Scheduled triggers: drain the queue, sweep ready tasks, probe the source
	if cfg.Scheduler.Enabled {
		intervalScheduler := scheduler.NewIntervalScheduler(scheduler.IntervalSchedulerConfig{
			RunTimeout: cfg.Scheduler.RunTimeout,
		}, log)

		intervalScheduler.Register(scheduler.IntervalJob{
			Name:     "queue-drain",
			Interval: cfg.Scheduler.DrainInterval,
			Run: func(ctx context.Context) error {
				_, err := queueWorker.Drain(ctx)
				return err
			},
		})
		intervalScheduler.Register(scheduler.IntervalJob{
			Name:     "sync-sweep",
			Interval: cfg.Scheduler.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := syncProcessor.Run(ctx)
				if errors.Is(err, pipeline.ErrCredentialsMissing) {
					log.Warn("sync sweep skipped, credentials not configured")
					return nil
				}
				return err
			},
		})
		intervalScheduler.Register(scheduler.IntervalJob{
			Name:     "resource-probe",
			Interval: cfg.Scheduler.ProbeInterval,
			Run: func(ctx context.Context) error {
				_, err := probeService.RunSweep(ctx)
				return err
			},
		})

		if err := intervalScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := intervalScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
		log.Info("Scheduler started",
			zap.Duration("drain_interval", cfg.Scheduler.DrainInterval),
			zap.Duration("sweep_interval", cfg.Scheduler.SweepInterval),
			zap.Duration("probe_interval", cfg.Scheduler.ProbeInterval),
		)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Root-level health check with a database ping, for load balancers
	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
	})

	router.NewRouter(engine).
		Register(handler.NewWebhookHandler(webhookService)).
		Register(handler.NewPipelineHandler(dashboardService, queueWorker, syncProcessor)).
		Register(handler.NewHealthHandler(probeService, authCheck, probeResultRepo, log)).
		Register(handler.NewSettingsHandler(secretStore)).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
