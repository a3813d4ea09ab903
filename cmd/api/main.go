package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/aggregate"
	"github.com/hamed0406/uptimeprobe/internal/config"
	"github.com/hamed0406/uptimeprobe/internal/events/kafka"
	"github.com/hamed0406/uptimeprobe/internal/httpapi"
	apimw "github.com/hamed0406/uptimeprobe/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeprobe/internal/logging"
	"github.com/hamed0406/uptimeprobe/internal/notify"
	"github.com/hamed0406/uptimeprobe/internal/probe"
	"github.com/hamed0406/uptimeprobe/internal/registry"
	"github.com/hamed0406/uptimeprobe/internal/repo"
	"github.com/hamed0406/uptimeprobe/internal/repo/memory"
	"github.com/hamed0406/uptimeprobe/internal/repo/postgres"
	"github.com/hamed0406/uptimeprobe/internal/scheduler"
)

type store interface {
	repo.SiteStore
	repo.ResultStore
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(logging.Options{
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New(st, logger)

	var observers []scheduler.ResultObserver
	if len(cfg.KafkaBrokers) > 0 {
		pub := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { err = multierr.Append(err, pub.Close()) }()
		observers = append(observers, pub)
		logger.Info("kafka_enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", pub.Topic()))
	}

	notifiers := notify.Multi{notify.LogNotifier{Log: logger}}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlack(cfg.SlackWebhookURL))
	}
	alerter := notify.NewAlerter(notifiers, notify.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	}, logger)
	observers = append(observers, alerter)

	sched := scheduler.New(logger, reg, st, probe.NewHTTPChecker(cfg.HTTPTimeout), scheduler.Config{
		WriteAttempts:  cfg.RetryAttempts,
		WriteBackoff:   cfg.RetryBackoff,
		ResyncSchedule: cfg.ResyncSchedule,
	}, observers...)
	reg.Subscribe(sched)
	reg.Subscribe(alerter)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	api := httpapi.NewServer(logger, reg, aggregate.New(reg, st))
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			Keys:           apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			AllowedOrigins: cfg.AllowedOrigins,
			PublicRPM:      cfg.PublicRPM,
			PublicBurst:    cfg.PublicBurst,
			AdminRPM:       cfg.AdminRPM,
			AdminBurst:     cfg.AdminBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("api_shutdown")
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return multierr.Append(err, srv.Shutdown(shutdownCtx))
}

// openStore uses Postgres when DATABASE_URL is set and an in-memory store
// otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("store_memory")
		return memory.New(), func() {}, nil
	}
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("store_postgres")
	return pg, pg.Close, nil
}
