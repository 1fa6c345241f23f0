/**
 * @description
 * This is the main entry point for the payment-service. It is responsible for
 * initializing all components of the service, including configuration, the
 * database connection, the rail connector, message brokers, repositories, the
 * core application service, background jobs, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/railconnector: Rail gateway client and simulator.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onetap/payment-service/internal/api"
	"github.com/onetap/payment-service/internal/app"
	"github.com/onetap/payment-service/internal/config"
	"github.com/onetap/payment-service/internal/domain"
	"github.com/onetap/payment-service/internal/store"
	rmrabbit "github.com/onetap/payment-service/pkg/rabbitmq"
	"github.com/onetap/payment-service/pkg/railconnector"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.AuthJWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"auth jwt secret must be configured\" env=AUTH_JWT_SECRET")
	}

	logger.Info("starting payment-service", "port", cfg.ServerPort, "runtime_mode", cfg.RuntimeMode)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	logger.Info("database connected")

	// Initialize the RabbitMQ producer to publish events. This service only
	// needs to publish, so a producer is enough; a fallback keeps the service
	// bootable without a broker.
	var publisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "err", err)
		publisher = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		logger.Info("rabbitmq producer connected")
	}

	// Pick the rail connector: the HTTP gateway when configured, the local
	// simulator otherwise.
	var connector railconnector.Client
	if strings.TrimSpace(cfg.RailAPIBaseURL) != "" {
		connector = railconnector.NewHTTPClient(cfg.RailAPIBaseURL, cfg.RailAPIKey)
		logger.Info("rail gateway client configured", "base_url", cfg.RailAPIBaseURL)
	} else {
		connector = railconnector.NewSimulator(railconnector.WithFailureRate(cfg.SimulatorFailureRate))
		logger.Info("rail simulator in use", "failure_rate", cfg.SimulatorFailureRate)
	}

	// Redis backs the execute rate limiter. A missing or unreachable Redis
	// disables limiting rather than blocking startup.
	var limiter app.RateLimiter
	if cfg.ExecuteRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			logger.Warn("redis url missing; execute rate limiting disabled", "env", "REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				logger.Warn("redis url parse failed; execute rate limiting disabled", "err", parseErr)
			} else {
				redisClient := redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					logger.Warn("redis ping failed; execute rate limiting disabled", "err", pingErr)
					redisClient.Close()
				} else {
					defer redisClient.Close()
					limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					logger.Info("redis connected")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Wire the application components.
	mode := domain.ModeEnforced
	if cfg.RuntimeMode == "permissive" {
		mode = domain.ModePermissive
	}
	gates := app.NewGateChecker(repository, mode, logger)
	auditSink := app.NewStoreAuditSink(repository, publisher, logger)
	signer := app.NewHMACSigner(cfg.SigningKeyID, cfg.SigningSecret)
	security := app.NewSecurityService(
		limiter, signer, auditSink, logger,
		cfg.ExecuteRateLimitPerMinute, time.Minute,
	)
	engine := app.NewExecutionEngine(
		repository, gates, security, connector, publisher, logger,
		time.Duration(cfg.AsyncCompletionDelaySecs)*time.Second,
	)
	guardrails := domain.GuardrailConfig{
		RequireConfirmationAbove: cfg.RequireConfirmationAboveCents,
		DailyAutoLimit:           cfg.DailyAutoLimitCents,
		MaxSinglePaymentAuto:     cfg.MaxSinglePaymentAutoCents,
		MaxAutoTopUpAmount:       cfg.MaxAutoTopUpCents,
	}
	paymentService := app.NewPaymentService(repository, gates, engine, guardrails, logger)

	// Start the background jobs.
	jobs := app.NewJobs(
		repository, engine, logger,
		cfg.ExecutionTaskBatchSize,
		time.Duration(cfg.IntentTTLMinutes)*time.Minute,
	)
	scheduler := app.NewScheduler(jobs, logger, cfg.PendingCompletionSchedule, cfg.IntentExpirySchedule)
	scheduler.Start()

	// Initialize the API handlers.
	paymentHandlers := api.NewPaymentHandlers(paymentService, logger)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/payments", api.PaymentRoutes(paymentHandlers, cfg.AuthJWTSecret))
	router.Handle("/metrics", promhttp.Handler())

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	logger.Info("server listening", "addr", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}

	logger.Info("shutdown complete")
}
