package offline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "cliente.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestQueue_EnqueueKeepsCreationOrder(t *testing.T) {
	q := NewQueue(newStore(t))
	ctx := context.Background()

	a, err := q.Enqueue(ctx, TipoTransaccion, TransaccionPayload{ClienteID: uuid.New(), Delta: 100, Motivo: "ajuste_manual"})
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, TipoReclamo, ReclamoPayload{Codigo: "VERANO"})
	require.NoError(t, err)

	actions, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, a.ID, actions[0].ID)
	assert.Equal(t, b.ID, actions[1].ID)
	assert.Equal(t, EstadoPending, actions[0].Estado)
	assert.JSONEq(t, `{"codigo":"VERANO"}`, string(actions[1].Payload))

	pending, err := q.HasPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestQueue_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cliente.db")
	ctx := context.Background()

	s, err := OpenStore(path)
	require.NoError(t, err)
	a, err := NewQueue(s).Enqueue(ctx, TipoReclamo, ReclamoPayload{Codigo: "X1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	actions, err := NewQueue(s).List(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, a.ID, actions[0].ID)
}

func TestQueue_DismissAndRetry(t *testing.T) {
	q := NewQueue(newStore(t))
	ctx := context.Background()
	a, err := q.Enqueue(ctx, TipoReclamo, ReclamoPayload{Codigo: "A"})
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, TipoReclamo, ReclamoPayload{Codigo: "B"})
	require.NoError(t, err)

	require.NoError(t, q.modify(ctx, a.ID, func(x *Action) {
		x.Estado = EstadoFailed
		x.Intentos = 3
		x.UltimoError = "puntos insuficientes"
	}))
	require.NoError(t, q.Retry(ctx, a.ID))

	actions, err := q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, actions[0].ID)
	assert.Equal(t, EstadoPending, actions[0].Estado)
	assert.Zero(t, actions[0].Intentos)
	assert.Empty(t, actions[0].UltimoError)

	require.NoError(t, q.Dismiss(ctx, b.ID))
	actions, err = q.List(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	assert.ErrorIs(t, q.Dismiss(ctx, b.ID), ErrActionNotFound)
	assert.ErrorIs(t, q.Retry(ctx, uuid.New()), ErrActionNotFound)
}

func TestQueue_CorruptStateIsDiscarded(t *testing.T) {
	s := newStore(t)
	q := NewQueue(s)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, KeyQueue, `[{"id": "not-a-uuid"`))

	actions, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
	_, ok, err := s.Get(ctx, KeyQueue)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = q.Enqueue(ctx, TipoReclamo, ReclamoPayload{Codigo: "OK"})
	require.NoError(t, err)
	actions, err = q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestSessionAndProfile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sessions := NewSessionStore(s)
	got, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := &Session{ClienteID: uuid.New(), Telefono: "+5491100000001", Rol: "admin", Token: "tok"}
	require.NoError(t, sessions.Save(ctx, sess))
	got, err = sessions.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ClienteID, got.ClienteID)
	assert.True(t, got.EsAdmin())
	require.NoError(t, sessions.Clear(ctx))

	profiles := NewProfileCache(s)
	require.NoError(t, s.Put(ctx, KeyPerfil, "{corrupt"))
	_, ok, err := profiles.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
