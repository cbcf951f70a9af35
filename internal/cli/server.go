package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gauntlet-service/internal/app"
	"gauntlet-service/internal/classifier"
	"gauntlet-service/internal/config"
	"gauntlet-service/internal/infra/memory"
	"gauntlet-service/internal/infra/postgres"
	redisstats "gauntlet-service/internal/infra/redis"
	"gauntlet-service/internal/logger"
	"gauntlet-service/internal/pii"
	transport "gauntlet-service/internal/transport/http"
	"gauntlet-service/internal/verify"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the submission API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("refusing to start", "error", err)
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8787"
	}

	var store app.SubmissionStore
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		store = memory.NewStore()
	}

	var statsCache app.StatsCache = memory.NewStatsCache()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		statsCache = redisstats.NewStatsCache(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	}

	gemini, err := classifier.NewGeminiClient(ctx, classifier.GeminiConfig{
		APIKey:      cfg.Classifier.APIKey,
		Model:       cfg.Classifier.Model,
		BaseURL:     cfg.Classifier.BaseURL,
		HTTPTimeout: cfg.ClassifierTimeout() + 5*time.Second,
	})
	if err != nil {
		return err
	}
	bounded := classifier.NewBounded(gemini, cfg.Classifier.MaxConcurrent, cfg.ClassifierTimeout())

	turnstile := verify.NewTurnstile(cfg.Turnstile.Secret, cfg.Turnstile.VerifyURL, nil)
	if !turnstile.Enabled() {
		log.Warn("TURNSTILE_SECRET not set, human verification disabled")
	}

	cipher, err := pii.NewCipher(cfg.Security.EncryptionSecret)
	if err != nil {
		return err
	}

	service := app.NewSubmissionService(app.Dependencies{
		Store:      store,
		Classifier: bounded,
		Verifier:   turnstile,
		StatsCache: statsCache,
		Hasher:     pii.NewHasher(cfg.Security.HashSecret),
		Cipher:     cipher,
		Logger:     log,
	}, app.Options{
		Limits:         app.DefaultLimits(cfg.Classifier.DailyBudget),
		SeededBaseline: cfg.Stats.SeededBaseline,
		StatsFreshFor:  config.TTLDuration(cfg.Stats.FreshFor, 30*time.Second),
	})
	handler := transport.NewHandler(service, log, transport.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		TrustedProxyHops: cfg.Server.TrustedProxyHops,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
	})

	// The write timeout must outlive the classifier deadline.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ClassifierTimeout() + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting submission api", "port", finalPort, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-serverErr:
		log.Error("server failed", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
