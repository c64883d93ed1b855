// Package audit appends to the audit log. Recording is fire-and-forget: a
// failure to write an entry is logged and never propagated to the caller.
package audit

import (
	"context"

	"github.com/rs/zerolog/log"

	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
)

// Entry describes one audited action.
type Entry struct {
	Evento      string
	EntidadTipo string
	EntidadID   string
	Accion      string
	Actor       string
	Err         error
}

// Logger writes audit entries. A nil *Logger discards everything.
type Logger struct {
	repo repository.AuditoriaRepository
}

func NewLogger(repo repository.AuditoriaRepository) *Logger {
	return &Logger{repo: repo}
}

// Record appends e. Exito is derived from e.Err.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l == nil || l.repo == nil {
		return
	}
	reg := &model.RegistroAuditoria{
		Evento:      e.Evento,
		EntidadTipo: e.EntidadTipo,
		EntidadID:   e.EntidadID,
		Accion:      e.Accion,
		Exito:       e.Err == nil,
		Actor:       e.Actor,
	}
	if e.Err != nil {
		msg := e.Err.Error()
		reg.Error = &msg
	}
	// detached from the request so a cancelled caller still leaves a trace
	if err := l.repo.Create(context.WithoutCancel(ctx), reg); err != nil {
		log.Warn().Err(err).
			Str("evento", e.Evento).
			Str("entidad_id", e.EntidadID).
			Msg("audit: failed to record entry")
	}
}
