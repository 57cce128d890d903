package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_cart/checkout-payment/internal/auth"
	"github.com/fjod/go_cart/checkout-payment/internal/consumer"
	"github.com/fjod/go_cart/checkout-payment/internal/events"
	"github.com/fjod/go_cart/checkout-payment/internal/gateway"
	h "github.com/fjod/go_cart/checkout-payment/internal/http"
	"github.com/fjod/go_cart/checkout-payment/internal/lock"
	"github.com/fjod/go_cart/checkout-payment/internal/metrics"
	"github.com/fjod/go_cart/checkout-payment/internal/publisher"
	"github.com/fjod/go_cart/checkout-payment/internal/repository"
	"github.com/fjod/go_cart/checkout-payment/internal/service"
	"github.com/fjod/go_cart/checkout-payment/pkg/circuitbreaker"
	"github.com/fjod/go_cart/checkout-payment/pkg/logger"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	DB              repository.Credentials
	KafkaBrokers    []string
	OrderTopic      string
	RedisAddr       string
	LockTTL         time.Duration
	PaymentGateway  string
	StripeSecret    string
	StripeKey       string
	StripeURL       string
	JWTSecret       string
	Currency        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() (*Config, error) {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DB: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              port,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "ecommerce"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrderTopic:      getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		LockTTL:         30 * time.Second,
		PaymentGateway:  getEnv("PAYMENT_GATEWAY", "stripe"),
		StripeSecret:    os.Getenv("STRIPE_SECRET_KEY"),
		StripeKey:       os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeURL:       os.Getenv("STRIPE_API_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		Currency:        strings.ToLower(getEnv("CHECKOUT_CURRENCY", "usd")),
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: 10 * time.Second,
	}

	switch cfg.PaymentGateway {
	case "stripe":
		if cfg.StripeSecret == "" {
			return nil, errors.New("STRIPE_SECRET_KEY is required")
		}
	case "sandbox":
	default:
		return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", cfg.PaymentGateway)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// startWorkers runs each worker in its own goroutine; the returned func blocks
// until all of them have returned.
func startWorkers(ctx context.Context, workers ...func(context.Context)) func() {
	var wg sync.WaitGroup
	for _, run := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	return wg.Wait
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newPaymentGateway(cfg *Config, logg *slog.Logger) gateway.PaymentGateway {
	if cfg.PaymentGateway == "sandbox" {
		logg.Warn("using sandbox payment gateway, no real charges are made")
		return gateway.NewSandboxGateway(gateway.RandomStatus{})
	}
	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:         "stripe",
		IsSuccessful: gateway.IsResourceMissing,
		Logger:       logg,
	})
	return gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:  cfg.StripeSecret,
		BackendURL: cfg.StripeURL,
	}, breaker)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(logger.Options{Service: "checkout-payment", Level: cfg.LogLevel})
	logg.Info("checkout-payment starting", "port", cfg.HTTPPort)

	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(&cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logg.Info("database migrations completed")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCheckoutMetrics(reg)

	paymentGateway := newPaymentGateway(cfg, logg)

	orderPublisher := events.NewKafkaPublisher(cfg.OrderTopic, cfg.KafkaBrokers...)
	defer orderPublisher.Close()

	checkoutService := service.NewCheckoutService(
		repo,
		paymentGateway,
		orderPublisher,
		lock.NewRedisLocker(redisClient, cfg.LockTTL),
		service.Config{PublishableKey: cfg.StripeKey, Currency: cfg.Currency, OrderTimeout: cfg.RequestTimeout},
		logg,
		m,
	)

	router := h.NewRouter(h.RouterConfig{
		Handler:        h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout, logg),
		Verifier:       auth.NewJWTVerifier(cfg.JWTSecret),
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		Health: func(r *http.Request) error {
			if err := repo.Ping(r.Context()); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleaner := consumer.NewCartCleaner(repo, logg, cfg.OrderTopic, cfg.KafkaBrokers...)
	defer cleaner.Close()

	poller := publisher.NewOutboxPoller(repo, orderPublisher, logg, m)
	waitWorkers := startWorkers(ctx, poller.Run, cleaner.Run)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "checkout-payment"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("checkout-payment listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logg.Info("shutting down checkout-payment")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
	}

	// the poller and cleaner still use the writer, reader, DB and redis closed by the defers below
	waitWorkers()

	logg.Info("checkout-payment stopped")
}
