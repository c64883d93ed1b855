package worker

// retry_cron.go
// Background goroutine that periodically picks up entities with sync tasks
// whose next_retry_at is in the past (or that were never announced because
// Redis was down) and runs them through the sync worker. It also returns
// tasks stuck in_flight after a crash to pending and purges old done rows.
// Uses the Circuit Breaker to avoid hammering a downed CRM.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"mannypuntos/internal/infra"
	"mannypuntos/internal/repository"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 20
	stuckAfter        = 10 * time.Minute
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	Tasks     repository.SyncTaskRepository
	Worker    *SyncWorker
	CB        *infra.CircuitBreaker
	Retention time.Duration // done tasks older than this are purged; 0 keeps them
	Interval  time.Duration
	Now       func() time.Time
}

// StartRetryCron launches a background goroutine that ticks every Interval
// (30s by default). It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = retryTickInterval
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	now := time.Now()
	if cfg.Now != nil {
		now = cfg.Now()
	}

	if n, err := cfg.Tasks.ResetStuck(ctx, now.Add(-stuckAfter)); err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to reset stuck tasks")
	} else if n > 0 {
		log.Warn().Int64("count", n).Msg("retry_cron: returned stuck in_flight tasks to pending")
	}

	if cfg.Retention > 0 {
		if n, err := cfg.Tasks.PurgeDone(ctx, now.Add(-cfg.Retention)); err != nil {
			log.Error().Err(err).Msg("retry_cron: failed to purge done tasks")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("retry_cron: purged done tasks")
		}
	}

	// If CB is open, skip entirely; don't hammer a downed CRM
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	keys, err := cfg.Tasks.ListDueEntities(ctx, now, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query due tasks")
		return
	}
	if len(keys) == 0 {
		return
	}

	log.Info().Int("count", len(keys)).Msg("retry_cron: processing entities with due sync tasks")

	for _, key := range keys {
		// Check CB state before each entity; it may have tripped mid-batch
		if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}
		if err := cfg.Worker.ProcessEntity(ctx, key); err != nil {
			log.Error().Err(err).
				Str("entidad_tipo", key.EntidadTipo).
				Str("entidad_id", key.EntidadID.String()).
				Msg("retry_cron: entity processing failed")
		}
	}
}
