package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/config"
	"mannypuntos/internal/crm"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/retry"
	"mannypuntos/internal/router"
	"mannypuntos/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	// Without Redis the API still commits and the retry cron drains the
	// outbox; only the immediate announcements and the email jobs are lost.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	} else {
		log.Warn().Msg("REDIS_URL empty: running without worker queues")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mapping, err := crm.LoadMapping(cfg.CRMMappingFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load CRM mapping")
	}
	crmClient := crm.NewClient(cfg.CRMBaseURL, cfg.CRMToken,
		crm.Databases{Clientes: cfg.CRMClientesDB, Canjes: cfg.CRMCanjesDB},
		mapping, time.Duration(cfg.CRMTimeoutSeconds)*time.Second)
	crmCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	syncRepo := repository.NewSyncTaskRepository(db)
	canjeRepo := repository.NewCanjeRepository(db)
	auditLog := audit.NewLogger(repository.NewAuditoriaRepository(db))

	var locker worker.Locker = worker.NewLocalLocker()
	if rdb != nil {
		locker = worker.NewRedisLocker(rdb)
	}
	syncWorker := worker.NewSyncWorker(worker.SyncWorkerConfig{
		Tasks:    syncRepo,
		Refs:     repository.NewExternalRefRepository(db),
		Clientes: repository.NewClienteRepository(db),
		CRM:      crmClient,
		CB:       crmCB,
		Locker:   locker,
		Audit:    auditLog,
		RDB:      rdb,
		Policy: retry.Policy{
			BaseDelay:   time.Duration(cfg.SyncBaseDelaySeconds) * time.Second,
			MaxAttempts: cfg.SyncMaxAttempts,
		},
		SyncSince: cfg.SyncSince(),
	})

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	if rdb != nil {
		mailer := infra.NewMailer(cfg)
		notifyTo := cfg.AdminNotifyEmail
		if !mailer.Enabled() {
			log.Info().Msg("SMTP_HOST empty: canje notifications disabled")
			notifyTo = ""
		}
		emailWorker := worker.NewEmailWorker(canjeRepo, mailer, rdb, notifyTo, cfg.PDFStoragePath)
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, worker.Handlers{
			worker.JobSync:  syncWorker.Process,
			worker.JobEmail: emailWorker.Process,
		})
	}

	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Tasks:     syncRepo,
		Worker:    syncWorker,
		CB:        crmCB,
		Retention: time.Duration(cfg.SyncRetentionDays) * 24 * time.Hour,
	})

	r, err := router.New(ctx, cfg, db, rdb, crmCB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("Manny Puntos API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
