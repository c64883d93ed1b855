package worker

// sync_worker.go
// Mirrors committed local mutations into the CRM. Each SyncTask row carries the
// full target state of its entity, so a replay after a crash rewrites the same
// values. The external_refs row is the idempotency anchor: once an entity has a
// CRM page id, every later task is a plain update of that page.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/crm"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/retry"
)

const entityLockTTL = 2 * time.Minute

// CRMClient is the subset of the CRM API the worker needs.
type CRMClient interface {
	Mapping() *crm.Mapping
	FindByLocalID(ctx context.Context, tipo, localID string) (string, bool, error)
	CreatePage(ctx context.Context, tipo string, props crm.Properties) (string, error)
	UpdatePage(ctx context.Context, pageID string, props crm.Properties) error
}

// SyncWorkerConfig holds all dependencies of the sync worker.
type SyncWorkerConfig struct {
	Tasks    repository.SyncTaskRepository
	Refs     repository.ExternalRefRepository
	Clientes repository.ClienteRepository
	CRM      CRMClient
	CB       *infra.CircuitBreaker
	Locker   Locker
	Audit    *audit.Logger
	RDB      *redis.Client // DLQ; nil disables it
	Policy   retry.Policy
	// SyncSince is the sync epoch. Entities created before it never had a CRM
	// page and are skipped when no mapping exists.
	SyncSince time.Time
	Now       func() time.Time
}

// SyncWorker drains sync tasks entity by entity.
type SyncWorker struct {
	cfg SyncWorkerConfig
}

func NewSyncWorker(cfg SyncWorkerConfig) *SyncWorker {
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.Default
	}
	return &SyncWorker{cfg: cfg}
}

// Process handles a SyncJob announcement from the queue.
func (w *SyncWorker) Process(ctx context.Context, raw json.RawMessage) {
	var job SyncJob
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Msg("sync_worker: invalid payload")
		return
	}
	key := repository.EntidadKey{EntidadTipo: job.EntidadTipo, EntidadID: job.EntidadID}
	if err := w.ProcessEntity(ctx, key); err != nil {
		log.Error().Err(err).
			Str("entidad_tipo", key.EntidadTipo).
			Str("entidad_id", key.EntidadID.String()).
			Msg("sync_worker: entity processing failed")
	}
}

// ProcessEntity runs the open tasks of one entity in creation order. It stops
// at the first task that fails or is not yet due, so a later task never
// overtakes an earlier one. Returns nil when another worker holds the entity.
func (w *SyncWorker) ProcessEntity(ctx context.Context, key repository.EntidadKey) error {
	lockKey := fmt.Sprintf("sync:%s:%s", key.EntidadTipo, key.EntidadID)
	release, ok, err := w.cfg.Locker.TryLock(ctx, lockKey, entityLockTTL)
	if err != nil {
		return fmt.Errorf("lock %s: %w", lockKey, err)
	}
	if !ok {
		log.Debug().Str("lock", lockKey).Msg("sync_worker: entity busy, skipping")
		return nil
	}
	defer release()

	tasks, err := w.cfg.Tasks.ListOpenByEntity(ctx, key)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}
	lastDone, err := w.cfg.Tasks.LastDoneID(ctx, key)
	if err != nil {
		return fmt.Errorf("last done task: %w", err)
	}

	for i := range tasks {
		task := &tasks[i]
		if task.ID < lastDone {
			// revived after a newer state reached the CRM: its payload is stale
			w.supersede(ctx, task, lastDone)
			continue
		}
		now := w.cfg.Now()
		if task.NextRetryAt != nil && task.NextRetryAt.After(now) {
			return nil
		}
		if task.Estado == model.SyncPending {
			claimed, err := w.cfg.Tasks.MarkInFlight(ctx, task.ID)
			if err != nil {
				return fmt.Errorf("claim task %d: %w", task.ID, err)
			}
			if !claimed {
				return nil
			}
			task.Estado = model.SyncInFlight
		}
		// in_flight rows left over from a crash are ours too: we hold the lock

		if !w.runTask(ctx, task) {
			return nil
		}
	}
	return nil
}

// runTask executes one task and persists its outcome. Reports whether the
// caller may continue with the entity's next task.
func (w *SyncWorker) runTask(ctx context.Context, task *model.SyncTask) bool {
	resultado, err := w.SyncTask(ctx, task)

	if errors.Is(err, infra.ErrCircuitOpen) {
		// the CRM was not called: release the task without spending an attempt
		task.Estado = model.SyncPending
		next := w.cfg.Now().Add(w.cfg.Policy.Delay(1))
		task.NextRetryAt = &next
		w.save(ctx, task)
		log.Debug().Uint64("task_id", task.ID).Msg("sync_worker: circuit breaker open, task left pending")
		return false
	}

	w.cfg.Audit.Record(ctx, audit.Entry{
		Evento:      model.EventoSyncIntento,
		EntidadTipo: task.EntidadTipo,
		EntidadID:   task.EntidadID.String(),
		Accion:      task.Operacion,
		Actor:       model.ActorSistema,
		Err:         err,
	})

	if err != nil {
		w.fail(ctx, task, err)
		return false
	}

	task.Estado = model.SyncDone
	task.Resultado = resultado
	task.UltimoError = nil
	task.NextRetryAt = nil
	w.save(ctx, task)

	if task.EntidadTipo == model.EntidadCliente && resultado == model.ResultadoSuccess && w.cfg.Clientes != nil {
		if err := w.cfg.Clientes.MarkSyncedTx(w.cfg.Clientes.DB().WithContext(ctx), task.EntidadID); err != nil {
			log.Warn().Err(err).Str("cliente_id", task.EntidadID.String()).Msg("sync_worker: failed to stamp ultima_sync")
		}
	}

	log.Info().
		Uint64("task_id", task.ID).
		Str("entidad_tipo", task.EntidadTipo).
		Str("entidad_id", task.EntidadID.String()).
		Str("resultado", resultado).
		Msg("sync_worker: task done")
	return true
}

func (w *SyncWorker) supersede(ctx context.Context, task *model.SyncTask, by uint64) {
	task.Estado = model.SyncDone
	task.Resultado = model.ResultadoSkipped
	task.NextRetryAt = nil
	w.save(ctx, task)

	log.Info().
		Uint64("task_id", task.ID).
		Uint64("superseded_by", by).
		Str("entidad_tipo", task.EntidadTipo).
		Str("entidad_id", task.EntidadID.String()).
		Msg("sync_worker: stale task closed without CRM write")
}

func (w *SyncWorker) fail(ctx context.Context, task *model.SyncTask, cause error) {
	task.Intentos++
	msg := cause.Error()
	task.UltimoError = &msg

	if w.cfg.Policy.Exhausted(task.Intentos) {
		task.Estado = model.SyncFailed
		task.Resultado = model.ResultadoFailed
		task.NextRetryAt = nil
		w.save(ctx, task)

		log.Error().
			Uint64("task_id", task.ID).
			Str("entidad_id", task.EntidadID.String()).
			Int("intentos", task.Intentos).
			Msg("sync_worker: max attempts exceeded, moving to failed/DLQ")

		payload, _ := json.Marshal(SyncJob{EntidadTipo: task.EntidadTipo, EntidadID: task.EntidadID})
		SendToDLQ(ctx, w.cfg.RDB, QueueSync, JobSync, payload,
			fmt.Sprintf("task %d: max attempts (%d) exceeded: %s", task.ID, task.Intentos, msg),
			task.Intentos)
		return
	}

	task.Estado = model.SyncPending
	next := w.cfg.Policy.NextAt(w.cfg.Now(), task.Intentos)
	task.NextRetryAt = &next
	w.save(ctx, task)

	log.Warn().
		Err(cause).
		Uint64("task_id", task.ID).
		Int("intentos", task.Intentos).
		Time("next_retry_at", next).
		Msg("sync_worker: CRM write failed, scheduled next attempt")
}

func (w *SyncWorker) save(ctx context.Context, task *model.SyncTask) {
	if err := w.cfg.Tasks.Save(context.WithoutCancel(ctx), task); err != nil {
		log.Error().Err(err).Uint64("task_id", task.ID).Msg("sync_worker: failed to persist task state")
	}
}

// SyncTask mirrors one task into the CRM and returns its result
// (success or skipped). It does not persist the task row.
func (w *SyncWorker) SyncTask(ctx context.Context, task *model.SyncTask) (string, error) {
	props, createdAt, err := w.properties(task)
	if err != nil {
		// an undecodable payload will never succeed; let it burn attempts and surface
		return "", fmt.Errorf("decode payload: %w", err)
	}
	key := repository.EntidadKey{EntidadTipo: task.EntidadTipo, EntidadID: task.EntidadID}

	ref, err := w.cfg.Refs.Find(ctx, key)
	switch {
	case err == nil:
		if err := w.call(func() error { return w.cfg.CRM.UpdatePage(ctx, ref.ExternalID, props) }); err != nil {
			return "", err
		}
		return model.ResultadoSuccess, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("find external ref: %w", err)
	}

	if !w.cfg.SyncSince.IsZero() && createdAt.Before(w.cfg.SyncSince) {
		return model.ResultadoSkipped, nil
	}

	// A previous attempt may have created the page and crashed before storing
	// the mapping; look it up by local id before creating another one.
	var pageID string
	var found bool
	err = w.call(func() error {
		var ferr error
		pageID, found, ferr = w.cfg.CRM.FindByLocalID(ctx, task.EntidadTipo, task.EntidadID.String())
		return ferr
	})
	if err != nil {
		return "", err
	}
	if !found {
		err = w.call(func() error {
			var cerr error
			pageID, cerr = w.cfg.CRM.CreatePage(ctx, task.EntidadTipo, props)
			return cerr
		})
		if err != nil {
			return "", err
		}
	}

	ref, err = w.cfg.Refs.Create(ctx, &model.ExternalRef{
		EntidadTipo: task.EntidadTipo,
		EntidadID:   task.EntidadID,
		ExternalID:  pageID,
	})
	if err != nil {
		return "", fmt.Errorf("store external ref: %w", err)
	}
	if !found && ref.ExternalID == pageID {
		// the page was just created with this exact state
		return model.ResultadoSuccess, nil
	}
	if err := w.call(func() error { return w.cfg.CRM.UpdatePage(ctx, ref.ExternalID, props) }); err != nil {
		return "", err
	}
	return model.ResultadoSuccess, nil
}

func (w *SyncWorker) call(fn func() error) error {
	if w.cfg.CB == nil {
		return fn()
	}
	return w.cfg.CB.ExecuteFiltered(fn, crm.IsTransient)
}

func (w *SyncWorker) properties(task *model.SyncTask) (crm.Properties, time.Time, error) {
	m := w.cfg.CRM.Mapping()
	switch task.EntidadTipo {
	case model.EntidadCliente:
		var s model.ClienteSnapshot
		if err := task.DecodePayload(&s); err != nil {
			return nil, time.Time{}, err
		}
		return m.ClienteProperties(s), s.CreatedAt, nil
	case model.EntidadCanje:
		var s model.CanjeSnapshot
		if err := task.DecodePayload(&s); err != nil {
			return nil, time.Time{}, err
		}
		return m.CanjeProperties(s), s.CreatedAt, nil
	default:
		return nil, time.Time{}, fmt.Errorf("unknown entidad_tipo %q", task.EntidadTipo)
	}
}
