// Package main is the entry point for the neco controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"neco/internal/config"
	"neco/internal/controller"
	"neco/internal/controller/handlers"
	"neco/internal/controller/middleware"
	"neco/internal/dispatch"
	"neco/internal/identity"
	"neco/internal/logger"
	"neco/internal/observability"
	"neco/internal/queue"
	"neco/internal/reaper"
	"neco/internal/service"
	"neco/internal/store/postgres"
	"neco/internal/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: neco.yaml in current directory)")
	flag.Parse()

	log := logger.New()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracer, err := observability.Init(ctx, "neco-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	if cfg.OTELEndpoint == "" {
		log.Info("tracing disabled, no collector configured")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn("failed to shutdown metrics", "error", err)
		}
	}()

	// Connect to Postgres (the "Store")
	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrateFlag {
		log.Info("running database migrations")
		if err := postgres.Migrate(store.DB()); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations completed")
	}

	// Work queue
	jobsQueue, err := queue.New(ctx, queue.Options{
		URL:          cfg.RedisURL,
		Name:         cfg.QueueName,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer jobsQueue.Close()

	// Observable gauge, only queries Redis when scraped.
	meter := otel.Meter("neco-controller")
	_, err = meter.Int64ObservableGauge("neco.queue.depth",
		metric.WithDescription("Jobs waiting in the work queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			n, err := jobsQueue.Len(ctx)
			if err != nil {
				log.Warn("failed to read queue depth", "error", err)
				return nil
			}
			obs.Observe(n)
			return nil
		}),
	)
	if err != nil {
		log.Warn("failed to register queue depth metric", "error", err)
	}

	executor, err := dispatch.New(dispatch.Config{
		Concurrency: cfg.DispatchConcurrency,
		TaskTimeout: 30 * time.Second,
	}, log)
	if err != nil {
		log.Error("failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	jobs := workflow.NewClient(jobsQueue)
	idp := identity.NewClient(identity.Config{
		URL:       cfg.SupabaseURL,
		AnonKey:   cfg.SupabaseAnonKey,
		JWTSecret: cfg.SupabaseJWTSecret,
	})

	users := service.NewUserService(idp, store)
	executions := service.NewExecutionService(store, store, store, executor, jobs, log)

	h := handlers.New(handlers.Deps{
		Users:           users,
		Workspaces:      service.NewWorkspaceService(store),
		Systems:         service.NewSystemService(store, store, executor, jobs, log),
		Executions:      executions,
		NodeDefinitions: service.NewNodeDefinitionService(store, cfg.NodeCacheSize, cfg.NodeCacheTTL),
		Checks: map[string]handlers.Pinger{
			"postgres": store,
			"redis":    jobsQueue,
		},
		Cookies: handlers.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		Logger:  log,
	})

	sweeper, err := reaper.New(cfg.ReaperSchedule, cfg.ExecutionTimeout, executions, log)
	if err != nil {
		log.Error("failed to create reaper", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		executor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, h, controller.Options{
		Authenticator:  users,
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitBurst),
		InternalSecret: cfg.InternalSecret,
		Metrics:        metricsHandler,
		Logger:         log,
	})

	log.Info("neco controller starting", "addr", addr, "queue", jobsQueue.Name())
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		stop()
	}

	log.Info("shutting down controller")
	wg.Wait()
	log.Info("controller exited properly")
}
