package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/podseek/internal/api/handlers"
	"github.com/cloo-solutions/podseek/internal/api/middleware"
	"github.com/cloo-solutions/podseek/internal/cache"
	"github.com/cloo-solutions/podseek/internal/captions"
	"github.com/cloo-solutions/podseek/internal/database"
	"github.com/cloo-solutions/podseek/internal/jobs"
	"github.com/cloo-solutions/podseek/internal/query"
	"github.com/cloo-solutions/podseek/internal/repository"
	"github.com/cloo-solutions/podseek/internal/server"
	"github.com/cloo-solutions/podseek/internal/service"
	"github.com/cloo-solutions/podseek/internal/storage"
	"github.com/cloo-solutions/podseek/internal/telemetry"
	"github.com/cloo-solutions/podseek/internal/timestamp"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the podseek search API on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 1.0
	if cfg.IsProduction() {
		sampleRate = 0.1
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		log.WithError(err).Warn("telemetry init failed, continuing without tracing")
	} else {
		defer shutdownTelemetry()
	}

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	indexClient, err := newIndexClient(ctx, cfg)
	if err != nil {
		return err
	}
	log.WithField("index", cfg.ElasticsearchIndex).Info("search index ready")

	var objects captions.ObjectReader
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		objects = s3Client
		log.WithField("bucket", cfg.S3Bucket).Info("s3 caption storage configured")
	}

	episodeRepo := repository.NewEpisodeRepository(pool)
	resultCache := cache.New(cfg.ResultCacheTTL())
	fetcher := captions.NewFetcher(&http.Client{}, objects, cfg.CaptionFetchTimeout)

	searchSvc := service.NewSearchService(indexClient, episodeRepo, fetcher, resultCache, log, service.SearchOptions{
		Query: query.Options{
			FragmentSize:               cfg.HighlightFragmentSize,
			FallbackMinimumShouldMatch: cfg.FallbackMinimumShouldMatch,
			Size:                       cfg.SearchSize,
		},
		Correlation:    timestamp.Options{WordOverlapRatio: cfg.WordOverlapRatio},
		CaptionTimeout: cfg.CaptionFetchTimeout,
	})

	sweeper := cache.NewSweeper(resultCache, func(removed int) {
		log.WithField("removed", removed).Debug("cache: swept expired entries")
	})
	sweepWorker := jobs.NewWorker("cache-sweep", sweeper, cfg.CacheSweepInterval, log)
	go sweepWorker.Start(ctx)

	listener := jobs.NewSyncListener(jobs.PoolConnector(pool), repository.SyncChannel, resultCache, log)
	go listener.Start(ctx)

	var syncWorker *jobs.Worker
	if cfg.IndexSyncInterval > 0 {
		syncWorker = jobs.NewWorker("index-sync", jobs.NewIndexSyncWorker(episodeRepo, indexClient, log), cfg.IndexSyncInterval, log)
		go syncWorker.Start(ctx)
		log.WithField("interval", cfg.IndexSyncInterval).Info("index sync worker started")
	}

	if !cfg.HasAdminKey() {
		log.Warn("PODSEEK_ADMIN_API_KEY not set, admin endpoints will reject every request")
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:        log,
		AuthValidator: middleware.NewStaticKeyValidator(cfg.AdminAPIKey),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		AdminHandler:  handlers.NewAdminHandler(searchSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	sweepWorker.Stop()
	if syncWorker != nil {
		syncWorker.Stop()
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func runMigrations(databaseURL string, log logrus.FieldLogger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("migrations: no migrations applied")
	case err != nil:
		return fmt.Errorf("failed to get migration version: %w", err)
	case dirty:
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	default:
		log.WithField("version", version).Info("migrations: database is up to date")
	}

	return nil
}
