package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursewise/videokb/internal/api/handlers"
	"github.com/coursewise/videokb/internal/audio"
	"github.com/coursewise/videokb/internal/config"
	"github.com/coursewise/videokb/internal/database"
	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/jobs"
	"github.com/coursewise/videokb/internal/openai"
	"github.com/coursewise/videokb/internal/repository"
	"github.com/coursewise/videokb/internal/server"
	"github.com/coursewise/videokb/internal/service"
	"github.com/coursewise/videokb/internal/storage"
	"github.com/coursewise/videokb/internal/telemetry"
	"github.com/coursewise/videokb/internal/youtube"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the videokb API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if a DSN is configured
	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	ownerRepo := repository.NewOwnerRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	if cfg.InitOwnerName != "" {
		if err := bootstrapInitialOwner(ctx, cfg, ownerRepo, apiKeyRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial owner: %w", err)
		}
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("VIDEOKB_OPENAI_API_KEY is required: embeddings and answer synthesis need an OpenAI key")
	}
	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:    cfg.OpenAIAPIKey,
		ChatModel: cfg.ChatModel,
	})

	youtubeClient := youtube.NewClient(youtube.WithTimeout(cfg.RequestTimeout))

	var archiver service.CaptionArchiver
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready, archiving captions", cfg.S3Bucket)
		archiver = s3Client
	}

	var downloader service.AudioDownloader
	var speech service.SpeechToText
	var sweeper *jobs.Worker
	if cfg.EnableSpeechFallback {
		if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
			return fmt.Errorf("failed to create temp dir: %w", err)
		}
		downloader = &downloadAdapter{
			downloader: audio.NewDownloader(audio.ExecRunner{}, cfg.YTDLPPath, cfg.TempDir),
			timeout:    cfg.DownloadTimeout,
		}
		speech = &transcribeAdapter{client: openaiClient, timeout: cfg.TranscribeTimeout}
		sweeper = jobs.NewWorker(jobs.NewTempFileSweeper(cfg.TempDir, 0), 10*time.Minute)
		go sweeper.Start(ctx)
		log.Println("speech fallback enabled, temp file sweeper started")
	}

	uuidGen := &service.DefaultUUIDGenerator{}

	transcriptSvc := service.NewTranscriptService(youtubeClient, downloader, speech, archiver)
	analysisSvc := service.NewAnalysisService(analysisRepo, chunkRepo, txRunner, youtubeClient, transcriptSvc, openaiClient)
	qaSvc := service.NewQAService(analysisSvc, chunkRepo, questionRepo, openaiClient, openaiClient)
	authSvc := service.NewAuthService(ownerRepo, apiKeyRepo, uuidGen)

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		AnalysisHandler: handlers.NewAnalysisHandler(analysisSvc, qaSvc),
		AuthHandler:     handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(routerCfg)

	// No write timeout: analyze requests legitimately run for minutes
	// while embeddings are generated.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// downloadAdapter bounds each yt-dlp download with the configured
// timeout, so a stalled download cannot hold an analyze request open.
type downloadAdapter struct {
	downloader *audio.Downloader
	timeout    time.Duration
}

func (a *downloadAdapter) DownloadAudio(ctx context.Context, videoID string) (string, func(), error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.downloader.DownloadAudio(ctx, videoID)
}

// transcribeAdapter bounds each Whisper call with the configured timeout.
type transcribeAdapter struct {
	client  *openai.Client
	timeout time.Duration
}

func (a *transcribeAdapter) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.client.Transcribe(ctx, audioPath)
}

func bootstrapInitialOwner(ctx context.Context, cfg *config.Config, ownerRepo *repository.OwnerRepository, apiKeyRepo *repository.APIKeyRepository) error {
	owner, err := ownerRepo.GetByName(ctx, cfg.InitOwnerName)
	if err != nil && err != domain.ErrOwnerNotFound {
		return fmt.Errorf("failed to check existing owner: %w", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(ownerRepo, apiKeyRepo, uuidGen)

	if owner == nil {
		owner, err = authSvc.CreateOwner(ctx, cfg.InitOwnerName)
		if err != nil {
			return fmt.Errorf("failed to create owner: %w", err)
		}
		log.Printf("bootstrap: created owner '%s' (id: %s)", owner.Name, owner.ID)
	} else {
		log.Printf("bootstrap: owner '%s' already exists (id: %s)", owner.Name, owner.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid VIDEOKB_INIT_API_KEY format (expected 'vkb_<64 hex chars>')")
		}

		existingKey, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
		if err == nil && existingKey != nil {
			log.Printf("bootstrap: API key already exists (id: %s)", existingKey.ID)
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, owner.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
