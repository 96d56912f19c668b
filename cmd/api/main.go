package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/httpapi"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/registry"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/repo/postgres"
	"github.com/hamed0406/sitewatch/internal/repo/rediscache"
	"github.com/hamed0406/sitewatch/internal/repo/sqlite"
	"github.com/hamed0406/sitewatch/internal/scheduler"
	"github.com/hamed0406/sitewatch/internal/status"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api_failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	tf, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stg, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range stg.closers {
			err = multierr.Append(err, c.Close())
		}
	}()

	reg := registry.New(stg.targets, registry.Options{
		Secret:       cfg.AdminSecret,
		SecretBcrypt: cfg.AdminSecretBcrypt,
	})
	if cfg.AdminSecret == "" && cfg.AdminSecretBcrypt == "" {
		logger.Warn("admin_secret_missing", zap.String("effect", "admin requests will be rejected"))
	}
	if err := reg.Seed(ctx, tf.DomainTargets()); err != nil {
		return err
	}

	store := status.NewStore(status.Meta{
		CheckedEveryMinutes: tf.CheckIntervalMinutes,
		Timezone:            tf.Timezone,
		Location:            tf.Location,
	})
	states, err := stg.states.ListStates(ctx)
	if err != nil {
		return err
	}
	logger.Info("status_restored", zap.Int("targets", store.Restore(states)))

	var checker probe.Checker = probe.NewHTTPChecker(cfg.ProbeTimeout)
	if cfg.ProbeRetryAttempts > 1 {
		checker = &probe.RetryChecker{Inner: checker, Attempts: cfg.ProbeRetryAttempts, Backoff: cfg.ProbeRetryBackoff}
	}
	if cfg.ProbeDNSDiagnose {
		checker = probe.NewDNSDiagnoser(checker, logger)
	}

	// a nil *Telegram must not end up as a non-nil Sender
	var sender notify.Sender
	if tg := notify.NewTelegram(cfg.TelegramAPIURL, cfg.TelegramToken); tg != nil {
		sender = tg
	} else {
		logger.Warn("telegram_disabled", zap.String("reason", "TELEGRAM_BOT_TOKEN not set"))
	}
	events := make(chan domain.Transition, cfg.NotifyQueue)
	disp := notify.NewDispatcher(logger, reg, sender, notify.DispatcherConfig{
		Attempts: cfg.NotifyAttempts,
		Backoff:  cfg.NotifyBackoff,
		Location: tf.Location,
	})

	sched := scheduler.New(logger, reg, checker, store, events, scheduler.Sinks{
		Downtime: stg.downtime,
		States:   stg.states,
		History:  stg.history,
	}, scheduler.Options{
		Interval:    tf.Interval(),
		Timeout:     checkBudget(cfg),
		Grace:       cfg.ShutdownGrace,
		Concurrency: cfg.MaxConcurrent,
	})

	api := httpapi.NewServer(logger, reg, store, stg.downtime)
	api.History = stg.history
	api.AdminLimit = apimw.RateLimitOptions{
		PerMinute:      cfg.AdminRPM,
		Burst:          cfg.AdminBurst,
		TrustForwarded: cfg.TrustProxy,
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// notifications keep draining after ctx ends, until events is closed
	notifyCtx, cancelNotify := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelNotify()
	notifyDone := make(chan struct{})
	go func() {
		disp.Run(notifyCtx, events)
		close(notifyDone)
	}()

	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen",
			zap.String("addr", cfg.Addr),
			zap.Int("targets", len(tf.Targets)),
			zap.Int("checked_every_minutes", tf.CheckIntervalMinutes),
			zap.String("timezone", tf.Timezone),
			zap.String("storage", string(cfg.Storage)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("api_shutdown", zap.String("reason", "signal"))
	case err := <-srvErr:
		stop()
		<-schedDone
		close(events)
		<-notifyDone
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}

	<-schedDone
	close(events)
	select {
	case <-notifyDone:
	case <-time.After(cfg.ShutdownGrace):
		cancelNotify()
		<-notifyDone
		logger.Warn("notify_drain_timeout", zap.Duration("grace", cfg.ShutdownGrace))
	}
	logger.Info("api_stopped")
	return nil
}

// backend is what every storage adapter provides.
type backend interface {
	repo.TargetStore
	repo.DowntimeLog
	repo.StateStore
	repo.StatusHistory
}

type storage struct {
	targets  repo.TargetStore
	downtime repo.DowntimeLog
	states   repo.StateStore
	history  repo.StatusHistory
	// closed in order
	closers []io.Closer
}

// openStorage builds the ports for cfg.Storage. Target lookups are
// optionally fronted by redis.
func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage, error) {
	var (
		b       backend
		closers []io.Closer
	)
	switch cfg.Storage {
	case config.StorageMemory:
		b = memory.New()
	case config.StoragePostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return storage{}, err
		}
		b = pg
		closers = append(closers, pg)
	default:
		sq, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return storage{}, err
		}
		b = sq
		closers = append(closers, sq)
	}
	var targets repo.TargetStore = b

	if cfg.RedisAddr != "" {
		rdb, err := rediscache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			// the cache is optional, keep running on the store alone
			logger.Warn("redis_unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			targets = rediscache.New(rdb, targets, cfg.RedisTTL, logger)
			closers = append([]io.Closer{rdb}, closers...)
			logger.Info("redis_cache_enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.RedisTTL))
		}
	}
	logger.Info("storage_ready", zap.String("storage", string(cfg.Storage)))
	return storage{targets: targets, downtime: b, states: b, history: b, closers: closers}, nil
}

// checkBudget covers every probe attempt, the waits between them and the
// optional DNS diagnosis.
func checkBudget(cfg config.Config) time.Duration {
	n := time.Duration(cfg.ProbeRetryAttempts)
	d := cfg.ProbeTimeout*n + cfg.ProbeRetryBackoff*(n-1)
	if cfg.ProbeDNSDiagnose {
		d += 3 * time.Second
	}
	return d
}
