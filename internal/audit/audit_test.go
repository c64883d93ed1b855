package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

type stubAuditRepo struct {
	entries []*model.RegistroAuditoria
	err     error
}

func (s *stubAuditRepo) Create(_ context.Context, r *model.RegistroAuditoria) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, r)
	return nil
}

func (s *stubAuditRepo) List(context.Context, dto.AuditoriaFilter) ([]model.RegistroAuditoria, int64, error) {
	return nil, 0, nil
}

func TestRecord_SuccessAndFailure(t *testing.T) {
	repo := &stubAuditRepo{}
	l := NewLogger(repo)

	l.Record(context.Background(), Entry{Evento: model.EventoCanjeCreado, EntidadTipo: model.EntidadCanje, EntidadID: "c1", Accion: "crear"})
	l.Record(context.Background(), Entry{Evento: model.EventoSyncIntento, EntidadTipo: model.EntidadCanje, EntidadID: "c1", Accion: "sync", Err: errors.New("crm timeout")})

	require.Len(t, repo.entries, 2)
	assert.True(t, repo.entries[0].Exito)
	assert.Nil(t, repo.entries[0].Error)
	assert.False(t, repo.entries[1].Exito)
	require.NotNil(t, repo.entries[1].Error)
	assert.Equal(t, "crm timeout", *repo.entries[1].Error)
}

func TestRecord_SwallowsSinkErrors(t *testing.T) {
	l := NewLogger(&stubAuditRepo{err: errors.New("db down")})
	assert.NotPanics(t, func() {
		l.Record(context.Background(), Entry{Evento: model.EventoTransaccion})
	})

	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.Record(context.Background(), Entry{Evento: model.EventoTransaccion})
	})
}
