package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

func TestSyncAdmin_ListAndRetry(t *testing.T) {
	h := newHarness(t)
	c := h.cliente(t, "5491100000001", 500)
	p := h.producto(t, "Masaje", model.TipoProducto, 100, 5)
	ctx := context.Background()
	admin := model.ActorAdmin(uuid.New())

	_, err := h.canjes.CrearCanje(ctx, c.ID, p.ID, model.ActorCliente(c.ID), nil)
	require.NoError(t, err)

	list, err := h.sync.ListTasks(ctx, dto.SyncTaskFilter{Estado: model.SyncPending, Page: 1, Limit: 50})
	require.NoError(t, err)
	require.EqualValues(t, 2, list.Total)
	assert.Equal(t, int64(2), list.Resumen[model.SyncPending])

	task := list.Data[0]
	_, err = h.sync.Reintentar(ctx, task.ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition, "only failed tasks are retried")

	require.NoError(t, h.db.Model(&model.SyncTask{}).Where("id = ?", task.ID).
		Updates(map[string]any{"estado": model.SyncFailed, "intentos": 6, "resultado": model.ResultadoFailed}).Error)

	got, err := h.sync.Reintentar(ctx, task.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, got.Estado)
	assert.Zero(t, got.Intentos)

	_, err = h.sync.Reintentar(ctx, 999999, admin)
	assert.ErrorIs(t, err, ErrSyncTaskNotFound)

	regs, err := h.sync.ListAuditoria(ctx, dto.AuditoriaFilter{Evento: model.EventoSyncReintento, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, regs.Total)
	assert.Equal(t, admin, regs.Data[0].Actor)
}
