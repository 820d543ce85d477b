package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mirkodev/notes-service/internal/cache"
	"github.com/mirkodev/notes-service/internal/config"
	"github.com/mirkodev/notes-service/internal/http/handler"
	"github.com/mirkodev/notes-service/internal/http/router"
	"github.com/mirkodev/notes-service/internal/observability"
	"github.com/mirkodev/notes-service/internal/repository"
	"github.com/mirkodev/notes-service/internal/security"
	"github.com/mirkodev/notes-service/internal/service"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Server *http.Server

	meterProvider *sdkmetric.MeterProvider
	redisClient   *redis.Client
}

// New builds the full dependency graph: database, cache, token codec,
// services, handlers and router. Everything is passed by constructor; no
// package-level registries.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	mp, err := observability.InitMetrics(ctx, observability.MetricsConfig{
		Enabled:     cfg.OTELMetricsEnabled,
		Endpoint:    cfg.OTELExporterOTLPEndpoint,
		Insecure:    cfg.OTELExporterOTLPInsecure,
		ServiceName: cfg.OTELServiceName,
		Environment: cfg.OTELEnvironment,
	}, logger)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	notesCache := cache.NewNotesCache(redisClient, cfg.CacheTTL)

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTSecret)
	authSvc := service.NewAuthService(userRepo, sessionRepo, jwtMgr, cfg.AccessTTL, cfg.RefreshTTL)
	userSvc := service.NewUserService(userRepo)
	noteSvc := service.NewNoteService(noteRepo, userRepo, notesCache)

	h := router.New(router.Dependencies{
		AuthHandler:    handler.NewAuthHandler(authSvc),
		UserHandler:    handler.NewUserHandler(userSvc),
		NoteHandler:    handler.NewNoteHandler(noteSvc),
		AuthService:    authSvc,
		EnableOTelHTTP: cfg.EnableOTelHTTP,
	})

	return &App{
		Config: cfg,
		Logger: logger,
		Server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		meterProvider: mp,
		redisClient:   redisClient,
	}, nil
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.meterProvider != nil {
		if mpErr := a.meterProvider.Shutdown(closeCtx); mpErr != nil {
			a.Logger.Warn("meter provider shutdown failed", "error", mpErr)
		}
	}
	if a.redisClient != nil {
		if rErr := a.redisClient.Close(); rErr != nil {
			a.Logger.Warn("redis close failed", "error", rErr)
		}
	}
	return err
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DatabaseDSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
