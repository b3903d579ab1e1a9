package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/clickbridge/internal/adapter/clickup"
	cbhttp "github.com/Strob0t/clickbridge/internal/adapter/http"
	cbnats "github.com/Strob0t/clickbridge/internal/adapter/nats"
	"github.com/Strob0t/clickbridge/internal/adapter/natskv"
	cbotel "github.com/Strob0t/clickbridge/internal/adapter/otel"
	"github.com/Strob0t/clickbridge/internal/adapter/postgres"
	"github.com/Strob0t/clickbridge/internal/adapter/ristretto"
	"github.com/Strob0t/clickbridge/internal/config"
	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/logger"
	"github.com/Strob0t/clickbridge/internal/middleware"
	"github.com/Strob0t/clickbridge/internal/port/kvstore"
	"github.com/Strob0t/clickbridge/internal/resilience"
	"github.com/Strob0t/clickbridge/internal/secrets"
	"github.com/Strob0t/clickbridge/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, the sync loop and the delivery consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfgPath := config.Path()
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"public_url", cfg.Server.PublicURL,
		"installation_id", cfg.Installation.ID,
		"kv_backend", cfg.KV.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTEL, err := cbotel.Setup(ctx, cfg.OTEL, cfg.Logging.Service, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cbotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	key, err := installation.DeriveKey(cfg.Security.EncryptionKey, cfg.Installation.ID)
	if err != nil {
		return fmt.Errorf("signal encryption key (set CLICKBRIDGE_ENCRYPTION_KEY): %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool, key)

	queue, err := cbnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.EventsSubjectPrefix)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() {
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}()

	kv, closeKV, err := openKV(ctx, cfg, queue)
	if err != nil {
		return fmt.Errorf("kv: %w", err)
	}
	defer closeKV()

	vault, err := secrets.NewVault(clientSecretLoader(cfgPath))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	clientSecret := func() string { return vault.Get(config.EnvClientSecret) }

	api := clickup.NewClient(cfg.ClickUp.APIBaseURL, cfg.ClickUp.Timeout)
	api.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	api.SetRetry(cfg.Retry.MaxElapsed)

	// --- Services ---

	lifecycle := service.NewInstallationService(service.InstallationConfig{
		InstallationID:  cfg.Installation.ID,
		StartURL:        cfg.StartURL(),
		WebhookEndpoint: cfg.WebhookEndpoint(),
		CheckExisting:   cfg.Installation.ProvisionCheckExisting,
	}, clientSecret, store, store, kv, api)
	lifecycle.SetMetrics(metrics)

	oauth := service.NewOAuthService(service.OAuthConfig{
		InstallationID:  cfg.Installation.ID,
		ClientID:        cfg.ClickUp.ClientID,
		AuthorizeURL:    cfg.ClickUp.AuthorizeURL,
		CallbackURL:     cfg.CallbackURL(),
		InstallationURL: cfg.Server.InstallationURL,
	}, clientSecret, kv, store, api)

	deliverer := service.NewQueueDeliverer(cfg.Installation.ID, cfg.NATS.EventsSubjectPrefix, queue)
	webhooks := service.NewWebhookService(cfg.Installation.ID, store, store.Subscribers(), deliverer)
	webhooks.SetMetrics(metrics)

	projection := service.NewSubscriptionService(cfg.NATS.EventsSubjectPrefix, queue)
	cancelProjection, err := projection.Start(ctx)
	if err != nil {
		return fmt.Errorf("projection subscriber: %w", err)
	}
	defer cancelProjection()

	syncs := newSyncTrigger()
	oauth.OnComplete(func() { syncs.fire("oauth completed") })

	// --- HTTP ---

	var limiter *middleware.RateLimiter
	if cfg.Rate.Enabled() {
		limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
		stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
		defer stopCleanup()
	}

	handlers := &cbhttp.Handlers{
		InstallationID: cfg.Installation.ID,
		Installation:   lifecycle,
		OAuth:          oauth,
		Webhooks:       webhooks,
		Checks: map[string]cbhttp.HealthCheck{
			"postgres": store.Ping,
			"nats":     queue.Ping,
		},
	}

	r := chi.NewRouter()
	if cfg.Server.BehindProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(cbhttp.Logger)
	r.Use(cbotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.Timeout(30 * time.Second))

	cbhttp.MountRoutes(r, handlers, cbhttp.RouteConfig{
		AdminToken:     cfg.Server.AdminToken,
		WebhookBodyMax: cfg.Server.WebhookBodyMax,
		Limiter:        limiter,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	g.Go(func() error {
		runSyncLoop(gctx, lifecycle, cfg.Installation.SyncInterval, syncs)
		return nil
	})

	g.Go(func() error {
		watchSecrets(gctx, cfgPath, vault, syncs)
		return nil
	})

	return g.Wait()
}

// openKV selects the transient store backend.
func openKV(ctx context.Context, cfg *config.Config, queue *cbnats.Queue) (kvstore.Store, func(), error) {
	switch cfg.KV.Backend {
	case "memory":
		s, err := ristretto.New(cfg.KV.MemoryMaxMB<<20, cfg.Installation.ID)
		if err != nil {
			return nil, nil, err
		}
		slog.Warn("using in-memory kv; pending authorization is lost on restart")
		return s, s.Close, nil
	default:
		bucket, err := queue.KeyValue(ctx, cfg.NATS.KVBucket, cfg.NATS.KVTTL)
		if err != nil {
			return nil, nil, err
		}
		return natskv.New(bucket, cfg.Installation.ID), func() {}, nil
	}
}

// clientSecretLoader re-reads the configuration file on every call so a
// reload picks up a rotated secret from either the file or the environment.
func clientSecretLoader(path string) secrets.Loader {
	return func() (map[string]string, error) {
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return nil, err
		}
		return secrets.WithDefaults(
			map[string]string{config.EnvClientSecret: cfg.ClickUp.ClientSecret},
			secrets.EnvLoader(config.EnvClientSecret),
		)()
	}
}
