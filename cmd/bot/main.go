package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kvaty/gatekeeper-bot/internal/bot"
	"github.com/kvaty/gatekeeper-bot/internal/content"
	"github.com/kvaty/gatekeeper-bot/internal/database"
	"github.com/kvaty/gatekeeper-bot/internal/health"
	"github.com/kvaty/gatekeeper-bot/internal/jobs"
	jobhandlers "github.com/kvaty/gatekeeper-bot/internal/jobs/handlers"
	"github.com/kvaty/gatekeeper-bot/internal/lifecycle"
	"github.com/kvaty/gatekeeper-bot/internal/media"
	"github.com/kvaty/gatekeeper-bot/internal/ratelimit"
	"github.com/kvaty/gatekeeper-bot/internal/repository"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
	"github.com/kvaty/gatekeeper-bot/pkg/config"
	"github.com/kvaty/gatekeeper-bot/pkg/graceful"
	"github.com/kvaty/gatekeeper-bot/pkg/logger"
	redispkg "github.com/kvaty/gatekeeper-bot/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	log.Info("starting gatekeeper bot", slog.String("env", cfg.AppEnv))

	config.Watch(v, log)

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, cfg.DB.MigrationsDir); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := redispkg.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	// A broken content document means muted members could never verify, so
	// refusing to start is the only safe option.
	contentStore, err := content.Load(cfg.Verification.ContentPath, cfg.Verification.PassThreshold)
	if err != nil {
		log.Error("failed to load content document", slog.Any("error", err))
		os.Exit(1)
	}

	verificationRepo := repository.NewVerificationRepository(db, log)
	mediaRepo := repository.NewMediaRepository(db, log)

	policy := verification.NewPolicy(verificationRepo, log, cfg.Verification)

	mediaCache := media.NewCache(mediaRepo, log, cfg.Verification.MediaPath)
	if err := mediaCache.WarmUp(ctx); err != nil {
		log.Warn("media cache warm-up failed, images will be re-uploaded", slog.Any("error", err))
	}

	sessions := session.NewRedisStore(redisClient.Client, log, cfg.Verification.SessionTTL)
	limiter := ratelimit.NewRedisLimiter(redisClient.Client, log)

	b, err := bot.New(*cfg, log, policy, sessions, contentStore, mediaCache, limiter)
	if err != nil {
		log.Error("failed to initialize bot", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, map[string]int{jobs.QueueDefault: 2, jobs.QueueLow: 1}, log)
	worker.RegisterHandler(jobs.TaskTypeAttemptSweep, jobhandlers.NewAttemptSweepHandler(policy, log))

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker failed", slog.Any("error", err))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, cfg.Verification.SweepInterval, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register scheduled tasks", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Run()

	jobManager := jobs.NewManager(redisOpt, log)
	if err := jobManager.EnqueueAttemptSweep(ctx); err != nil {
		log.Warn("failed to enqueue boot-time attempt sweep", slog.Any("error", err))
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	srv := graceful.NewServer(log, &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: observabilityMux(checker),
	}, cfg.Server.ShutdownTimeout)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Error("observability server failed", slog.Any("error", err))
		}
	}()

	go b.Start()
	log.Info("gatekeeper bot started")

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram", func(context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register("scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("jobs-worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("jobs-manager", func(context.Context) error {
		return jobManager.Close()
	})
	shutdown.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})
	shutdown.Register("database", func(context.Context) error {
		return db.Close()
	})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("gatekeeper bot stopped")
}

func observabilityMux(checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results, healthy := checker.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(results)
	})

	return mux
}
