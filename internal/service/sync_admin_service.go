package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/worker"
)

// SyncAdminService exposes the sync outbox and the audit log to admins.
type SyncAdminService interface {
	ListTasks(ctx context.Context, filter dto.SyncTaskFilter) (*dto.SyncTaskListResponse, error)
	// Reintentar puts a failed task back in the queue with a fresh attempt budget.
	Reintentar(ctx context.Context, id uint64, actor string) (*dto.SyncTaskResponse, error)
	ListAuditoria(ctx context.Context, filter dto.AuditoriaFilter) (*dto.AuditoriaListResponse, error)
}

type syncAdminService struct {
	syncs      repository.SyncTaskRepository
	auditoria  repository.AuditoriaRepository
	audit      *audit.Logger
	dispatcher *worker.Dispatcher
	cb         *infra.CircuitBreaker
}

func NewSyncAdminService(
	syncs repository.SyncTaskRepository,
	auditoria repository.AuditoriaRepository,
	auditLog *audit.Logger,
	dispatcher *worker.Dispatcher,
	cb *infra.CircuitBreaker,
) SyncAdminService {
	return &syncAdminService{syncs: syncs, auditoria: auditoria, audit: auditLog, dispatcher: dispatcher, cb: cb}
}

func (s *syncAdminService) ListTasks(ctx context.Context, filter dto.SyncTaskFilter) (*dto.SyncTaskListResponse, error) {
	tasks, total, err := s.syncs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	resumen, err := s.syncs.CountByEstado(ctx)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SyncTaskResponse, len(tasks))
	for i := range tasks {
		data[i] = syncTaskResponse(&tasks[i])
	}
	resp := &dto.SyncTaskListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit, Resumen: resumen}
	if s.cb != nil {
		resp.CRMState = s.cb.State().String()
	}
	return resp, nil
}

func (s *syncAdminService) Reintentar(ctx context.Context, id uint64, actor string) (*dto.SyncTaskResponse, error) {
	task, err := s.syncs.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSyncTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if task.Estado != model.SyncFailed {
		return nil, businessErrorf(ErrInvalidTransition, "solo se reintentan tareas fallidas (estado actual: %s)", task.Estado)
	}

	task.Estado = model.SyncPending
	task.Resultado = ""
	task.Intentos = 0
	task.NextRetryAt = nil
	err = s.syncs.Save(ctx, task)

	s.audit.Record(ctx, audit.Entry{
		Evento:      model.EventoSyncReintento,
		EntidadTipo: task.EntidadTipo,
		EntidadID:   task.EntidadID.String(),
		Accion:      fmt.Sprintf("reintentar tarea %d", task.ID),
		Actor:       actor,
		Err:         err,
	})
	if err != nil {
		return nil, err
	}

	announceSync(ctx, s.dispatcher, task.EntidadTipo, task.EntidadID)
	resp := syncTaskResponse(task)
	return &resp, nil
}

func (s *syncAdminService) ListAuditoria(ctx context.Context, filter dto.AuditoriaFilter) (*dto.AuditoriaListResponse, error) {
	regs, total, err := s.auditoria.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.AuditoriaResponse, len(regs))
	for i, r := range regs {
		data[i] = dto.AuditoriaResponse{
			ID:          r.ID.String(),
			Evento:      r.Evento,
			EntidadTipo: r.EntidadTipo,
			EntidadID:   r.EntidadID,
			Accion:      r.Accion,
			Exito:       r.Exito,
			Error:       r.Error,
			Actor:       r.Actor,
			CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		}
	}
	return &dto.AuditoriaListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func syncTaskResponse(t *model.SyncTask) dto.SyncTaskResponse {
	resp := dto.SyncTaskResponse{
		ID:          t.ID,
		EntidadTipo: t.EntidadTipo,
		EntidadID:   t.EntidadID.String(),
		Operacion:   t.Operacion,
		Estado:      t.Estado,
		Resultado:   t.Resultado,
		Intentos:    t.Intentos,
		UltimoError: t.UltimoError,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.NextRetryAt != nil {
		n := t.NextRetryAt.Format(time.RFC3339)
		resp.NextRetryAt = &n
	}
	return resp
}
