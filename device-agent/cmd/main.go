package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rei1089/ec-ring/device-agent/internal/client"
	"github.com/rei1089/ec-ring/device-agent/internal/console"
	"github.com/rei1089/ec-ring/device-agent/internal/offline"
	"github.com/rei1089/ec-ring/device-agent/internal/scanner"
	"github.com/rei1089/ec-ring/device-agent/internal/syncer"
	"github.com/rei1089/ec-ring/pkg/barcode"
	"github.com/rei1089/ec-ring/pkg/circuitbreaker"
	"github.com/rei1089/ec-ring/pkg/config"
	"github.com/rei1089/ec-ring/pkg/logger"
	"go.uber.org/zap"
)

type Config struct {
	Env             string
	LogLevel        string
	APIBaseURL      string
	UserID          string
	QueueDBPath     string
	RequestTimeout  time.Duration
	PollInterval    time.Duration
	PruneInterval   time.Duration
	Retention       time.Duration
	DebounceWindow  time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

func loadConfig(env string) *Config {
	return &Config{
		Env:             env,
		LogLevel:        config.GetEnv("LOG_LEVEL", "info"),
		APIBaseURL:      config.GetEnv("API_BASE_URL", "http://localhost:8080"),
		UserID:          config.GetEnv("DEVICE_USER_ID", "00000000-0000-4000-8000-000000000001"),
		QueueDBPath:     config.GetEnv("QUEUE_DB_PATH", "./offline-queue.db"),
		RequestTimeout:  config.GetDuration("REQUEST_TIMEOUT", 10*time.Second),
		PollInterval:    config.GetDuration("CONNECTIVITY_POLL_INTERVAL", 5*time.Second),
		PruneInterval:   config.GetDuration("QUEUE_PRUNE_INTERVAL", time.Hour),
		Retention:       config.GetDuration("QUEUE_RETENTION", 7*24*time.Hour),
		DebounceWindow:  config.GetDuration("SCAN_DEBOUNCE_WINDOW", barcode.DefaultDebounceWindow),
		BreakerFailures: config.GetInt("BREAKER_CONSECUTIVE_FAILURES", 5),
		BreakerTimeout:  config.GetDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

func main() {
	env := config.LoadEnv(nil)
	cfg := loadConfig(env)

	log, err := logger.New(cfg.Env, cfg.LogLevel, zap.String("service", "device-agent"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := offline.NewSQLiteStorage(cfg.QueueDBPath)
	if err != nil {
		log.Fatal("failed to open offline queue", zap.Error(err))
	}
	defer store.Close()
	if err := store.RunMigrations(); err != nil {
		log.Fatal("failed to migrate offline queue", zap.Error(err))
	}
	log.Info("offline queue ready", zap.String("path", cfg.QueueDBPath))

	breaker := circuitbreaker.DefaultSettings("api-service")
	breaker.ConsecutiveFailures = uint32(cfg.BreakerFailures)
	breaker.OpenTimeout = cfg.BreakerTimeout
	api := client.New(client.Config{
		BaseURL: cfg.APIBaseURL,
		UserID:  cfg.UserID,
		Timeout: cfg.RequestTimeout,
		Breaker: breaker,
	}, log)

	queue := offline.NewQueue(store, offline.UUIDGenerator{}, log)
	engine := syncer.NewEngine(queue, api, log)
	intake := scanner.NewIntake(queue, api, api, barcode.NewDebouncer(cfg.DebounceWindow, nil), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := syncer.NewWatcher(engine, queue, api, syncer.WatcherConfig{
		PollInterval:  cfg.PollInterval,
		PruneInterval: cfg.PruneInterval,
		Retention:     cfg.Retention,
	}, log)
	go watcher.Run(ctx)
	go func() {
		for {
			select {
			case report := <-watcher.Reports():
				if report.Attempted() > 0 {
					console.PrintReport(os.Stdout, report)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	con := console.New(intake, engine, queue, os.Stdout, log)
	log.Info("device agent started", zap.String("api", cfg.APIBaseURL), zap.String("user_id", cfg.UserID))

	done := make(chan error, 1)
	go func() { done <- con.Run(ctx, os.Stdin) }()

	select {
	case <-ctx.Done():
	case err := <-done:
		if err != nil {
			log.Error("input loop stopped", zap.Error(err))
		}
	}
	log.Info("device agent stopped")
}
