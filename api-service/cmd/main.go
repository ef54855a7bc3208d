package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rei1089/ec-ring/api-service/internal/cache"
	"github.com/rei1089/ec-ring/api-service/internal/events"
	h "github.com/rei1089/ec-ring/api-service/internal/http"
	"github.com/rei1089/ec-ring/api-service/internal/metrics"
	"github.com/rei1089/ec-ring/api-service/internal/repository"
	s "github.com/rei1089/ec-ring/api-service/internal/service"
	"github.com/rei1089/ec-ring/pkg/config"
	"github.com/rei1089/ec-ring/pkg/logger"
	"go.uber.org/zap"
)

type Config struct {
	Env                string
	LogLevel           string
	HTTPPort           string
	PublicAppURL       string
	RedisAddr          string
	RedisPassword      string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	DB                 repository.Credentials
}

func loadConfig(env string) *Config {
	return &Config{
		Env:                env,
		LogLevel:           config.GetEnv("LOG_LEVEL", "info"),
		HTTPPort:           config.GetEnv("HTTP_PORT", "8080"),
		PublicAppURL:       config.GetEnv("PUBLIC_APP_URL", "http://localhost:3000"),
		RedisAddr:          config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      config.GetEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       config.GetList("KAFKA_BROKERS"),
		KafkaTopic:         config.GetEnv("KAFKA_TOPIC", events.DefaultTopic),
		KafkaGroupID:       config.GetEnv("KAFKA_GROUP_ID", "scan-cart-api"),
		RequestTimeout:     config.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    config.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		DB: repository.Credentials{
			Host:     config.GetEnv("DB_HOST", "localhost"),
			Port:     config.GetInt("DB_PORT", 5432),
			User:     config.GetEnv("DB_USER", "postgres"),
			Password: config.GetEnv("DB_PASSWORD", "postgres"),
			DBName:   config.GetEnv("DB_NAME", "scancart"),
			SSLMode:  config.GetEnv("DB_SSLMODE", "disable"),
		},
	}
}

func main() {
	env := config.LoadEnv(nil)
	cfg := loadConfig(env)

	log, err := logger.New(cfg.Env, cfg.LogLevel, zap.String("service", "api-service"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	repo, err := repository.NewRepository(&cfg.DB, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("connected to postgres", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.DBName))

	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, log, cfg.KafkaBrokers...)
		log.Info("publishing events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		log.Warn("KAFKA_BROKERS not set, events are dropped")
	}
	defer publisher.Close()

	resolutions := cache.NewRedisCache(redisClient)

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if len(cfg.KafkaBrokers) > 0 {
		consumer := events.NewConsumer(events.CatalogTopic, cfg.KafkaGroupID, log, cfg.KafkaBrokers...)
		consumer.Handle(events.TypeBarcodeUpdated, events.InvalidateOnBarcodeUpdate(resolutions, log))
		defer consumer.Close()
		go consumer.Run(consumeCtx)
	}

	m := metrics.New(nil, metrics.Config{ServiceName: "api-service", Environment: cfg.Env})

	scans := s.NewScanService(repo, resolutions, publisher, log)
	scans.SetRecorder(m)
	carts := s.NewCartService(repo, publisher, log)
	shares := s.NewShareService(repo, repo, publisher, log)

	router := h.NewRouter(h.Handlers{
		Scan:    h.NewScanHandler(scans, cfg.RequestTimeout, log),
		Cart:    h.NewCartHandler(carts, cfg.RequestTimeout, log),
		Share:   h.NewShareHandler(shares, cfg.PublicAppURL, cfg.RequestTimeout, log),
		Ship:    h.NewShipHandler(log),
		Health:  repo,
		Metrics: m,
	}, h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api-service starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopConsumer()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
