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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/canto-lessons/api/swagger"
	"github.com/noah-isme/canto-lessons/internal/handler"
	"github.com/noah-isme/canto-lessons/internal/middleware"
	"github.com/noah-isme/canto-lessons/internal/repository"
	"github.com/noah-isme/canto-lessons/internal/service"
	"github.com/noah-isme/canto-lessons/pkg/cache"
	"github.com/noah-isme/canto-lessons/pkg/config"
	"github.com/noah-isme/canto-lessons/pkg/database"
	"github.com/noah-isme/canto-lessons/pkg/logger"
	corsmiddleware "github.com/noah-isme/canto-lessons/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/canto-lessons/pkg/middleware/requestid"
	"github.com/noah-isme/canto-lessons/pkg/storage"
)

// @title Canto Lessons API
// @version 0.1.0
// @description Lesson authoring, assignment and distribution for a Cantonese reading tool.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey TeacherPIN
// @in header
// @name X-Teacher-PIN

type recordStore interface {
	Get(ctx context.Context, table repository.Table, id string) ([]byte, error)
	Put(ctx context.Context, table repository.Table, id string, payload []byte) error
	Delete(ctx context.Context, table repository.Table, id string) error
	GetAll(ctx context.Context, table repository.Table) ([]repository.Record, error)
	Ping(ctx context.Context) error
}

type legacyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, legacy, db, err := openSubstrate(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to open storage", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if db != nil {
		defer db.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	adapter := service.NewPersistenceAdapter(records, legacy, cfg.Legacy.StorageKey, metricsSvc, logr)
	if err := adapter.Init(ctx); err != nil {
		logr.Fatal("record store unavailable", zap.Error(err))
	}
	if report, err := adapter.Migrate(ctx); err != nil {
		logr.Error("legacy migration failed; legacy data left in place", zap.Error(err))
	} else if report.BlobFound {
		logr.Info("legacy data migrated",
			zap.Int("lessons", report.LessonsWritten),
			zap.Int("students", report.StudentsWritten),
			zap.Bool("already_migrated", report.AlreadyMigrated))
	}

	store := service.NewEntityStore(adapter, logr)
	if err := store.Init(ctx); err != nil {
		logr.Fatal("failed to load lessons and students", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	cacheSvc := newCacheService(cfg, metricsSvc, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.String("dir", cfg.Exports.StorageDir), zap.Error(err))
	}
	publishStore, err := storage.NewLocalStorage(cfg.Snapshot.PublishDir)
	if err != nil {
		logr.Fatal("failed to prepare publish directory", zap.String("dir", cfg.Snapshot.PublishDir), zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	fetcher := service.NewSnapshotFetcher(cfg.Snapshot.BaseURL, cfg.Snapshot.FetchTimeout, metricsSvc, logr)
	portal := service.NewPortalService(store, fetcher, cacheSvc, service.PortalConfig{DefaultFilename: cfg.Snapshot.Filename}, metricsSvc, logr)
	gate := service.NewPINGate(cfg.Teacher.PIN)
	sessions := service.NewSessionController(gate, store, 0, logr)
	distribution := service.NewDistributionService(store, exportStore, publishStore, signer, cacheSvc, service.DistributionConfig{
		APIPrefix:        cfg.APIPrefix,
		PublicBaseURL:    cfg.ShareLink.PublicBaseURL,
		LinkMaxChars:     cfg.ShareLink.MaxChars,
		SnapshotFilename: cfg.Snapshot.Filename,
		ResultTTL:        cfg.Exports.SignedURLTTL,
	}, metricsSvc, logr)
	annotations := service.NewAnnotationService(service.AnnotationConfig{
		Endpoint:        cfg.Annotation.Endpoint,
		APIKey:          cfg.Annotation.APIKey,
		Timeout:         cfg.Annotation.Timeout,
		ArticleMaxBytes: cfg.Annotation.ArticleMaxBytes,
	}, validate, metricsSvc, logr)
	roster := service.NewRosterExportService(store, nil, metricsSvc, logr)

	maintenance := newMaintenanceQueue(distribution, portal, sessions, logr)
	maintenance.Start(ctx)
	defer maintenance.Stop()
	maintenance.Every(ctx, cfg.Exports.CleanupInterval, jobCleanupExports)
	maintenance.Every(ctx, cfg.Exports.CleanupInterval, jobPrunePortal)
	maintenance.Every(ctx, cfg.Exports.CleanupInterval, jobPruneSessions)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.Register(r, handler.Routes{
		APIPrefix:        cfg.APIPrefix,
		SnapshotFilename: cfg.Snapshot.Filename,
		TeacherGate:      middleware.TeacherGate(gate),
		Lessons:          handler.NewLessonHandler(store, validate),
		Students:         handler.NewStudentHandler(store, validate),
		Exports:          handler.NewExportHandler(distribution, roster),
		Portal:           handler.NewPortalHandler(portal, distribution),
		Sessions:         handler.NewSessionHandler(sessions, validate),
		Annotations:      handler.NewAnnotationHandler(annotations, validate),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"store": func(context.Context) error {
				if !store.Ready() {
					return errors.New("store not initialised")
				}
				return nil
			},
			"records": adapter.Init,
		}),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("db_driver", cfg.Database.Driver),
			zap.Bool("cache", cacheSvc.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openSubstrate returns the record and legacy stores for the configured
// driver. db is nil for the memory driver.
func openSubstrate(ctx context.Context, cfg *config.Config) (recordStore, legacyStore, *sqlx.DB, error) {
	if cfg.Database.Driver == config.DriverMemory {
		sub := repository.NewMemorySubstrate()
		return sub, sub.Legacy(), nil, nil
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := repository.InitSchema(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, nil, nil, fmt.Errorf("init schema: %w", err)
	}
	return repository.NewRecordRepository(db), repository.NewLegacyRepository(db), db, nil
}

func newCacheService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err == nil {
			return service.NewCacheService(repository.NewCacheRepository(client, logr), metrics, cfg.Snapshot.CacheTTL, logr)
		}
		logr.Warn("redis unavailable; caching snapshots in memory", zap.Error(err))
	}
	return service.NewCacheService(repository.NewMemoryCache(), metrics, cfg.Snapshot.CacheTTL, logr)
}
