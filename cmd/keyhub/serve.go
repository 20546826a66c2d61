package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyhub-dev/keyhub/internal/api"
	"github.com/keyhub-dev/keyhub/internal/bootstrap"
	"github.com/keyhub-dev/keyhub/internal/cache"
	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/job"
	"github.com/keyhub-dev/keyhub/internal/migrations"
	"github.com/keyhub-dev/keyhub/internal/notifier"
	"github.com/keyhub-dev/keyhub/internal/repository/sqlstore"
	"github.com/keyhub-dev/keyhub/internal/security"
	"github.com/keyhub-dev/keyhub/internal/service"
	"github.com/keyhub-dev/keyhub/internal/support/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the subscription server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:     cfg.Log.SlogLevel(),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	db, err := bootstrap.OpenDatabase(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db.RawDB(), cfg.DB.Driver); err != nil {
		return err
	}

	store := sqlstore.NewStore(db)

	subscriptions, err := service.NewSubscriptionService(store.Keys(), store.Servers(), cfg.Subscription, logger)
	if err != nil {
		return err
	}

	cacheStore := cache.NewStore(cache.Options{DefaultTTL: time.Minute, Prefix: "keyhub"})
	limiter, err := security.NewRateLimiter(cacheStore)
	if err != nil {
		return err
	}

	var notify notifier.Service = notifier.NewLoggerService(logger)
	if cfg.Telegram.Enabled {
		tg, err := notifier.NewTelegramService(cfg.Telegram.Token, logger)
		if err != nil {
			return err
		}
		notify = tg
	}

	scheduler := job.NewScheduler(logger)
	expiryJob := job.NewExpiryNotifyJob(store.Keys(), notify, cfg.Provision.ExpiryNoticeWindow, logger)
	if _, err := scheduler.Register("0 12 * * *", expiryJob); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	router := api.NewRouter(api.RouterConfig{
		Logger:        logger,
		Subscriptions: subscriptions,
		DB:            db.RawDB(),
		RateLimiter:   limiter,
		RateLimit:     120,
		RateWindow:    time.Minute,
		EnableMetrics: cfg.Metrics.Enabled,
	})

	server := bootstrap.NewHTTPServer(cfg.HTTP.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
