// Package main is the entrypoint for the jobsift API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jobsift/jobsift/internal/cache"
	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/handler"
	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/jobfeed"
	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/middleware"
	"github.com/jobsift/jobsift/internal/repository"
	"github.com/jobsift/jobsift/internal/server"
	"github.com/jobsift/jobsift/internal/service"
)

func main() {
	ctx := context.Background()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if cfg.RunMigrations {
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", sanitizeError(err, cfg.DatabaseURL))
			repo.Close()
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	feedURL := cfg.GetJobFeedDatabaseURL()
	feedDB, err := jobfeed.Open(ctx, feedURL)
	if err != nil {
		logger.Error(
			"failed to connect to job feed",
			slog.String("error", sanitizeError(err, feedURL)),
			slog.String("database_url", redactURL(feedURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	feedRepo := jobfeed.NewRepository(feedDB)

	if cfg.RunMigrations {
		if err := feedRepo.Migrate(ctx); err != nil {
			logger.Error("failed to run job feed migrations", "error", sanitizeError(err, feedURL))
			feedDB.Close()
			repo.Close()
			os.Exit(1)
		}
		logger.Info("job feed migrations applied")
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		feedDB.Close()
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()
	boardService, err := service.NewJobBoardService(repo, repo, feedRepo, cfg.StarterFilterVersion, recorder)
	if err != nil {
		logger.Error("failed to create job board service", "error", err)
		os.Exit(1)
	}

	starter, err := boardService.ProvisionStarterFilter(ctx)
	if err != nil {
		logger.Error("failed to provision starter filter", "error", err)
		os.Exit(1)
	}
	logger.Info("starter filter ready",
		"version", cfg.StarterFilterVersion,
		"filter_id", starter.ID,
		"document_hash", starter.DocumentHash,
	)

	var announcer handler.FilterAnnouncer
	if cfg.FilterEventsEnabled {
		announcer = ingest.NewPublisher(cacheClient.Client(), logger, recorder)
	}

	r := setupRouter(routerDeps{
		root:    handler.New(),
		health:  handler.NewHealthHandler(repo, feedRepo, cacheClient),
		metrics: handler.NewMetricsHandler(recorder),
		users:   handler.NewUserHandler(boardService, announcer, logger),
		limiter: cacheClient,
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("jobfeed", func(context.Context) error {
		return feedDB.Close()
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.IngestWorkerEnabled {
		worker := ingest.NewWorker(
			cacheClient.Client(),
			ingest.NewImporter(feedRepo, repo),
			logger,
			ingest.NewConsumerID(),
			recorder,
		)
		worker.SetBatchSize(cfg.IngestBatchSize)

		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("ingest worker stopped", "error", err)
			}
		}()
		// Registered last so it drains before the stores close.
		srv.OnShutdown("ingest-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "jobsift")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	root    *handler.Handler
	health  *handler.HealthHandler
	metrics *handler.MetricsHandler
	users   *handler.UserHandler
	limiter middleware.IPLimiter
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Probes and metrics stay outside the rate limit.
	r.Get("/", deps.root.Root)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: deps.limiter,
			Enabled: cfg.RateLimitEnabled,
			RPS:     cfg.RateLimitRPS,
			Burst:   cfg.RateLimitBurst,
		}))
		deps.users.Mount(r)
	})

	r.NotFound(deps.root.NotFound)
	r.MethodNotAllowed(deps.root.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips credentials from a connection URL, keeping the username.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
