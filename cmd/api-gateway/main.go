package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	_ "github.com/noah-isme/studio-api/api/swagger"
	"github.com/noah-isme/studio-api/internal/handler"
	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/repository"
	"github.com/noah-isme/studio-api/internal/service"
	"github.com/noah-isme/studio-api/pkg/cache"
	"github.com/noah-isme/studio-api/pkg/config"
	"github.com/noah-isme/studio-api/pkg/database"
	"github.com/noah-isme/studio-api/pkg/docstore"
	"github.com/noah-isme/studio-api/pkg/identity"
	"github.com/noah-isme/studio-api/pkg/jobs"
	"github.com/noah-isme/studio-api/pkg/logger"
	"github.com/noah-isme/studio-api/pkg/observability"
	"github.com/noah-isme/studio-api/pkg/storage"
)

// @title Studio API
// @version 1.0.0
// @description Lessons, techniques, assignments and rosters for music teachers and their students.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	backend, err := openBackend(ctx, cfg, metrics, logr)
	if err != nil {
		logr.Fatal("failed to open backend", zap.String("driver", cfg.Backend.Driver), zap.Error(err))
	}
	defer backend.close()
	if backend.ready != nil {
		checks["backend"] = backend.ready
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, "studio", logr)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	validate := validator.New()
	users := repository.NewUserRepository(backend.store)
	lessonRepo := repository.NewContentRepository(backend.store, models.ContentLesson)
	technicRepo := repository.NewContentRepository(backend.store, models.ContentTechnic)
	assignmentRepo := repository.NewAssignmentRepository(backend.store)

	mediaStore, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare media storage", zap.Error(err))
	}
	mediaSvc := service.NewMediaService(mediaStore, storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL), metrics, service.MediaConfig{
		MaxFileSize:     cfg.Media.MaxFileSizeBytes,
		AllowedPrefixes: cfg.Media.AllowedPrefixes,
		PublicPath:      cfg.APIPrefix + "/media",
	}, logr)
	cleanupQueue := jobs.NewQueue("media-cleanup", mediaSvc.CleanupJob, jobs.QueueConfig{
		Workers:    cfg.Media.CleanupWorkers,
		MaxRetries: cfg.Media.CleanupRetries,
		Logger:     logr,
		DeadLetter: func(job jobs.Job, err error) {
			observability.CaptureErr(fmt.Errorf("media cleanup %s: %w", job.ID, err))
		},
	})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()
	mediaSvc.AttachQueue(cleanupQueue)

	contentCache := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	authSvc := service.NewAuthService(
		backend.identities,
		users,
		identity.NewTokenVerifier(cfg.Provider.Name, cfg.Provider.Secret, cfg.Provider.Issuer, cfg.Provider.Audience),
		service.NewTokenDenylist(cacheRepo),
		validate,
		logr,
		service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		},
	)
	directorySvc := service.NewDirectoryService(users)

	deps := routeDeps{
		cfg:         cfg,
		logger:      logr,
		metrics:     metrics,
		auth:        authSvc,
		lessons:     service.NewContentService(models.ContentLesson, lessonRepo, contentCache, mediaSvc, validate, logr).WithMediaReferences(lessonRepo, technicRepo),
		technics:    service.NewContentService(models.ContentTechnic, technicRepo, contentCache, mediaSvc, validate, logr).WithMediaReferences(lessonRepo, technicRepo),
		assignments: service.NewAssignmentService(assignmentRepo, lessonRepo, technicRepo, validate, logr),
		roster:      service.NewRosterService(users, directorySvc, validate, logr),
		directory:   directorySvc,
		media:       mediaSvc,
		checks:      checks,
	}
	r := newRouter(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "backend", cfg.Backend.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type backendHandles struct {
	store      docstore.Store
	identities identity.Provider
	ready      handler.ReadinessCheck
	close      func()
}

// openBackend selects the document store and identity provider named by
// BACKEND_DRIVER. The mongo driver keeps identities in postgres.
func openBackend(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*backendHandles, error) {
	switch cfg.Backend.Driver {
	case config.DriverMemory, "":
		logr.Warn("using in-memory backend; data is lost on restart")
		return &backendHandles{
			store:      docstore.NewMemoryStore(),
			identities: identity.NewMemoryProvider(),
			close:      func() {},
		}, nil

	case config.DriverPostgres:
		db, err := openPostgres(ctx, cfg, logr)
		if err != nil {
			return nil, err
		}
		return &backendHandles{
			store:      docstore.NewPostgresStore(db, metrics),
			identities: identity.NewPostgresProvider(db),
			ready:      db.PingContext,
			close:      func() { _ = db.Close() },
		}, nil

	case config.DriverMongo:
		db, err := openPostgres(ctx, cfg, logr)
		if err != nil {
			return nil, err
		}
		client, mdb, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backendHandles{
			store:      docstore.NewMongoStore(mdb, metrics),
			identities: identity.NewPostgresProvider(db),
			ready:      mongoReady(client),
			close: func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
				_ = db.Close()
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*sqlx.DB, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Backend.RunMigrations {
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logr.Info("migrations applied")
	}
	return db, nil
}

func mongoReady(client *mongo.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}
