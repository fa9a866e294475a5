package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	rd "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/mistika/checkout/internal/checkout/adapters"
	firestoreadapter "github.com/mistika/checkout/internal/checkout/adapters/firestore"
	httpadapter "github.com/mistika/checkout/internal/checkout/adapters/http"
	checkoutpostgres "github.com/mistika/checkout/internal/checkout/adapters/postgres"
	redisadapter "github.com/mistika/checkout/internal/checkout/adapters/redis"
	checkoutapp "github.com/mistika/checkout/internal/checkout/app"
	checkoutmetrics "github.com/mistika/checkout/internal/checkout/metrics"
	"github.com/mistika/checkout/internal/checkout/ports"
	"github.com/mistika/checkout/internal/config"
	"github.com/mistika/checkout/internal/database"
	idempostgres "github.com/mistika/checkout/internal/idempotency/postgres"
	"github.com/mistika/checkout/internal/kafka"
	"github.com/mistika/checkout/internal/mail"
	"github.com/mistika/checkout/internal/mercadopago"
	"github.com/mistika/checkout/internal/ordertoken"
	"github.com/mistika/checkout/internal/secrets"
	"github.com/mistika/checkout/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(telemetry.ParseLevel(cfg.Telemetry.LogLevel)).With(
		"service", cfg.Service.Name,
		"environment", cfg.Service.Environment,
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("checkout api exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Secrets.Project != "" {
		if err := resolveSecrets(ctx, cfg); err != nil {
			return err
		}
		logger.Info("secrets resolved from secret manager", "project", cfg.Secrets.Project)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	prom, err := telemetry.NewPrometheusEndpoint()
	if err != nil {
		return err
	}

	telOpts := []telemetry.Option{telemetry.WithMetricReader(prom.Reader())}
	if cfg.Telemetry.OTelEndpoint == "" {
		telOpts = append(telOpts,
			telemetry.WithTraceExporter(telemetry.NewNoopTraceExporter()),
			telemetry.WithMetricExporter(telemetry.NewNoopMetricExporter()),
		)
	}
	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		Insecure:       cfg.Telemetry.OTelInsecure,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	}, telOpts...)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := otel.GetMeterProvider().Meter(cfg.Service.Name)
	checkoutMetrics, err := checkoutmetrics.NewMetrics(meter)
	if err != nil {
		return err
	}
	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return err
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		return err
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed successfully")
	}

	var drafts ports.DraftRepository
	switch cfg.Checkout.DraftStore {
	case config.DraftStoreFirestore:
		client, err := gcfirestore.NewClient(ctx, cfg.Checkout.FirestoreProjectID)
		if err != nil {
			return fmt.Errorf("create firestore client: %w", err)
		}
		defer client.Close()
		drafts = firestoreadapter.NewDraftRepository(client)
	default:
		drafts = checkoutpostgres.NewDraftRepository(pool)
	}

	var (
		statusCache ports.DraftStatusCache
		cacheReady  func(context.Context) error
	)
	if cfg.Redis.Addr != "" {
		rdb := rd.NewClient(&rd.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cache := redisadapter.NewStatusCache(rdb, cfg.Redis.TTL)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("redis not reachable at startup, status reads fall back to storage", "error", err)
		}
		statusCache = cache
		cacheReady = cache.Ping
	}

	var bus ports.EventBus = kafka.NewNoopEventBus(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaBus := kafka.NewEventBus(kafka.NewWriter(cfg.Kafka.Brokers), cfg.Kafka.TopicPrefix, cfg.Kafka.PublishTimeout)
		defer func() {
			if err := kafkaBus.Close(); err != nil {
				logger.Error("kafka writer close failed", "error", err)
			}
		}()
		bus = kafkaBus
	}

	var sender mail.Sender = mail.NewLogSender(logger)
	if cfg.Mail.SendGridAPIKey != "" {
		sendgrid, err := mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.From)
		if err != nil {
			return fmt.Errorf("create sendgrid sender: %w", err)
		}
		sender = sendgrid
	}

	tokens, err := ordertoken.New(cfg.Checkout.OrderTokenSecret, cfg.Checkout.AppURL)
	if err != nil {
		return err
	}

	provider := mercadopago.NewClient(mercadopago.Config{
		BaseURL:     cfg.MercadoPago.BaseURL,
		AccessToken: cfg.MercadoPago.AccessToken,
		Timeout:     cfg.MercadoPago.Timeout,
	}, logger)

	service := checkoutapp.NewService(checkoutapp.Dependencies{
		Drafts:      adapters.NewObservableDraftRepository(drafts, dbMetrics),
		Orders:      adapters.NewObservableOrderRepository(checkoutpostgres.NewOrderRepository(pool), dbMetrics),
		Events:      adapters.NewObservableWebhookEventStore(checkoutpostgres.NewWebhookEventStore(pool), dbMetrics),
		Idempotency: idempostgres.NewStore(pool),
		Provider:    provider,
		Mailer:      mail.NewConfirmationMailer(sender),
		Tokens:      tokens,
		Bus:         adapters.NewObservableEventBus(bus, kafkaMetrics),
		StatusCache: statusCache,
		ClaimLease:  cfg.Checkout.ClaimLease,
	}, logger, checkoutMetrics)

	checkoutHandler := httpadapter.NewHandler(service, httpadapter.Options{
		WebhookSecret:  cfg.MercadoPago.WebhookSecret,
		AdminToken:     cfg.Checkout.AdminAPIToken,
		MaxWebhookBody: cfg.HTTP.MaxWebhookBody,
		Logger:         logger,
		Metrics:        httpMetrics,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		if cacheReady != nil {
			if err := cacheReady(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET "+cfg.HTTP.MetricsPath, prom.Handler())

	checkoutHandler.Register(mux)

	handler := httpadapter.WithMetrics(mux, httpMetrics)
	handler = httpadapter.WithLogging(handler, logger)
	handler = httpadapter.WithRecovery(handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(handler, cfg.Service.Name),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting",
			"port", cfg.HTTP.Port,
			"draft_store", cfg.Checkout.DraftStore,
			"mercadopago_configured", provider.Configured(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	accessor, err := secrets.NewManagerAccessor(ctx)
	if err != nil {
		return fmt.Errorf("create secret manager client: %w", err)
	}
	defer closeQuietly(accessor)

	return secrets.NewResolver(accessor, cfg.Secrets.Project).Fill(ctx, cfg.SecretTargets())
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
