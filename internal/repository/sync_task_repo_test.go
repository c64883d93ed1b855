package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/testutil"
)

func newTask(t *testing.T, db *gorm.DB, repo SyncTaskRepository, tipo string, id uuid.UUID) *model.SyncTask {
	t.Helper()
	task := &model.SyncTask{EntidadTipo: tipo, EntidadID: id, Operacion: model.OperacionActualizar, Payload: "{}", Estado: model.SyncPending}
	require.NoError(t, repo.CreateTx(db, task))
	return task
}

func TestSyncTasks_OpenByEntityInCreationOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSyncTaskRepository(db)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	t1 := newTask(t, db, repo, model.EntidadCanje, a)
	newTask(t, db, repo, model.EntidadCanje, b)
	t3 := newTask(t, db, repo, model.EntidadCanje, a)

	tasks, err := repo.ListOpenByEntity(ctx, EntidadKey{model.EntidadCanje, a})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, t1.ID, tasks[0].ID)
	assert.Equal(t, t3.ID, tasks[1].ID)
	assert.Less(t, t1.ID, t3.ID)
}

func TestSyncTasks_LastDoneID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSyncTaskRepository(db)
	ctx := context.Background()
	id := uuid.New()
	key := EntidadKey{model.EntidadCliente, id}

	last, err := repo.LastDoneID(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, last)

	first := newTask(t, db, repo, model.EntidadCliente, id)
	second := newTask(t, db, repo, model.EntidadCliente, id)
	newTask(t, db, repo, model.EntidadCliente, id)
	other := newTask(t, db, repo, model.EntidadCliente, uuid.New())
	for _, task := range []*model.SyncTask{first, second, other} {
		task.Estado = model.SyncDone
		require.NoError(t, repo.Save(ctx, task))
	}

	last, err = repo.LastDoneID(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second.ID, last)
}

func TestSyncTasks_MarkInFlightIsExclusive(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSyncTaskRepository(db)
	ctx := context.Background()
	task := newTask(t, db, repo, model.EntidadCliente, uuid.New())

	ok, err := repo.MarkInFlight(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkInFlight(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncTasks_DueEntitiesRespectBackoff(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSyncTaskRepository(db)
	ctx := context.Background()
	now := time.Now()

	due := newTask(t, db, repo, model.EntidadCliente, uuid.New())
	later := newTask(t, db, repo, model.EntidadCliente, uuid.New())
	next := now.Add(time.Hour)
	later.NextRetryAt = &next
	require.NoError(t, repo.Save(ctx, later))

	keys, err := repo.ListDueEntities(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, due.EntidadID, keys[0].EntidadID)
}

func TestSyncTasks_CountAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSyncTaskRepository(db)
	ctx := context.Background()

	newTask(t, db, repo, model.EntidadCliente, uuid.New())
	failed := newTask(t, db, repo, model.EntidadCanje, uuid.New())
	failed.Estado = model.SyncFailed
	require.NoError(t, repo.Save(ctx, failed))

	counts, err := repo.CountByEstado(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.SyncPending])
	assert.Equal(t, int64(1), counts[model.SyncFailed])

	tasks, total, err := repo.List(ctx, dto.SyncTaskFilter{Estado: model.SyncFailed, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, failed.ID, tasks[0].ID)
}

func TestExternalRefs_CreateKeepsFirstWriter(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewExternalRefRepository(db)
	ctx := context.Background()
	key := EntidadKey{model.EntidadCliente, uuid.New()}

	_, err := repo.Find(ctx, key)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	first, err := repo.Create(ctx, &model.ExternalRef{EntidadTipo: key.EntidadTipo, EntidadID: key.EntidadID, ExternalID: "page-1"})
	require.NoError(t, err)
	assert.Equal(t, "page-1", first.ExternalID)

	second, err := repo.Create(ctx, &model.ExternalRef{EntidadTipo: key.EntidadTipo, EntidadID: key.EntidadID, ExternalID: "page-2"})
	require.NoError(t, err)
	assert.Equal(t, "page-1", second.ExternalID)
}
