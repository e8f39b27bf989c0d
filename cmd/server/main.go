package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/chat-auth/internal/config"
	"github.com/iliyamo/chat-auth/internal/database"
	"github.com/iliyamo/chat-auth/internal/handler"
	"github.com/iliyamo/chat-auth/internal/logging"
	"github.com/iliyamo/chat-auth/internal/metrics"
	"github.com/iliyamo/chat-auth/internal/middleware"
	"github.com/iliyamo/chat-auth/internal/queue"
	"github.com/iliyamo/chat-auth/internal/repository"
	"github.com/iliyamo/chat-auth/internal/router"
	"github.com/iliyamo/chat-auth/internal/service"
	"github.com/iliyamo/chat-auth/internal/utils"
)

type identityStore interface {
	service.UserStore
	handler.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional: rate limiting falls back to memory, caching turns off.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, using in-process rate limiting without cache", "err", err)
	} else {
		defer rdb.Close()
	}

	var events queue.Publisher = queue.NopPublisher{}
	if qc := config.LoadQueueConfig(); qc.Enabled {
		events = queue.NewAMQPPublisher(qc.URL, qc.Queue)
		log.Info("audit events enabled", "queue", qc.Queue)
	}
	defer events.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	auth := service.NewAuthService(store, utils.NewHasher(cfg.BcryptCost, cfg.HashConcurrency), tokens,
		service.WithEvents(events),
		service.WithMetrics(metrics.NewAuth(reg)),
		service.WithLogger(log),
		service.WithStoreTimeout(cfg.RequestTimeout),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))
	e.Use(middleware.RequestLogger(log))

	limiter := middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, log)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, store, reg, log)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), tokens, limiter.Middleware(), cache)

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr(), "env", cfg.Env)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (identityStore, func(), error) {
	if cfg.UseMemoryStore() {
		log.Warn("using in-memory identity store; users are lost on restart")
		return repository.NewMemoryUserRepo(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return repository.NewUserRepo(db), func() { closeDB(db, log) }, nil
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("close database", "err", err)
	}
}
