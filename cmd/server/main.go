package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iliyamo/restaurant-pos-auth/internal/config"
	"github.com/iliyamo/restaurant-pos-auth/internal/database"
	"github.com/iliyamo/restaurant-pos-auth/internal/handler"
	"github.com/iliyamo/restaurant-pos-auth/internal/logger"
	"github.com/iliyamo/restaurant-pos-auth/internal/metrics"
	"github.com/iliyamo/restaurant-pos-auth/internal/middleware"
	"github.com/iliyamo/restaurant-pos-auth/internal/queue"
	"github.com/iliyamo/restaurant-pos-auth/internal/repository"
	"github.com/iliyamo/restaurant-pos-auth/internal/router"
	"github.com/iliyamo/restaurant-pos-auth/internal/service"
	"github.com/iliyamo/restaurant-pos-auth/internal/utils"
	"github.com/iliyamo/restaurant-pos-auth/internal/worker"
)

func main() {
	// a missing .env is fine; the real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.IsDevelopment(), Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	if err := database.RunMigrations(db, cfg.DBName); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; revocations served from MySQL only, rate limit and cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	users := repository.NewUserRepo(db)
	ledger := service.NewRevocationLedger(repository.NewRevocationRepo(db), rdb, log.Named("ledger"))
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	publisher := queue.NewPublisher(cfg.AMQPURL, 1024, log.Named("publisher"))
	go publisher.Run(ctx)
	go queue.StartAuthEventConsumer(ctx, cfg.AMQPURL, cfg.LogDir, log.Named("auth-consumer"))

	svc := service.NewAuthService(service.Deps{
		Users:      users,
		Ledger:     ledger,
		Tokens:     tokens,
		BcryptCost: cfg.BcryptCost,
		Events:     publisher,
		Metrics:    rec,
		Cache:      cache,
		Log:        log.Named("auth"),
	})

	if cfg.BootstrapAdminUser != "" && cfg.BootstrapAdminPassword != "" {
		bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		created, err := svc.EnsureAdmin(bctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword)
		cancel()
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		log.Info("bootstrap admin checked", zap.String("login_name", cfg.BootstrapAdminUser), zap.Bool("created", created))
	}

	sweeper := worker.NewSweeper(ledger, rec, log)
	sweeper.RunOnce(ctx)
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsDevelopment(), log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("64K"))

	deps := router.Deps{
		Auth:      handler.NewAuthHandler(svc),
		Gate:      middleware.NewGate(tokens, ledger, users, rec, log.Named("gate")),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")),
		UserCache: cache,
		Metrics:   metrics.Handler(reg),
	}
	router.RegisterRoutes(e, deps)
	router.RegisterAuth(e, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", zap.Error(err))
	}
	sweeper.Stop(shutdownCtx)
	log.Info("goodbye")
	return nil
}
