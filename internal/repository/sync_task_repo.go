package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

// EntidadKey identifies the entity a group of sync tasks belongs to.
type EntidadKey struct {
	EntidadTipo string
	EntidadID   uuid.UUID
}

// SyncTaskRepository persists the outbox of CRM mirror tasks.
type SyncTaskRepository interface {
	CreateTx(tx *gorm.DB, t *model.SyncTask) error
	FindByID(ctx context.Context, id uint64) (*model.SyncTask, error)
	// ListOpenByEntity returns pending and in-flight tasks of one entity in
	// creation order.
	ListOpenByEntity(ctx context.Context, key EntidadKey) ([]model.SyncTask, error)
	// LastDoneID returns the highest id among the entity's done tasks, 0 if none.
	LastDoneID(ctx context.Context, key EntidadKey) (uint64, error)
	// ListDueEntities returns entities with at least one pending task whose
	// retry time has passed (or was never set), oldest task first.
	ListDueEntities(ctx context.Context, now time.Time, limit int) ([]EntidadKey, error)
	// MarkInFlight claims a pending task. false when someone else claimed it.
	MarkInFlight(ctx context.Context, id uint64) (bool, error)
	Save(ctx context.Context, t *model.SyncTask) error
	// ResetStuck returns in-flight tasks untouched since before to pending.
	ResetStuck(ctx context.Context, before time.Time) (int64, error)
	PurgeDone(ctx context.Context, before time.Time) (int64, error)
	List(ctx context.Context, filter dto.SyncTaskFilter) ([]model.SyncTask, int64, error)
	CountByEstado(ctx context.Context) (map[string]int64, error)
}

type syncTaskRepo struct{ db *gorm.DB }

func NewSyncTaskRepository(db *gorm.DB) SyncTaskRepository { return &syncTaskRepo{db: db} }

func (r *syncTaskRepo) CreateTx(tx *gorm.DB, t *model.SyncTask) error {
	return tx.Create(t).Error
}

func (r *syncTaskRepo) FindByID(ctx context.Context, id uint64) (*model.SyncTask, error) {
	var t model.SyncTask
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	return &t, err
}

func (r *syncTaskRepo) ListOpenByEntity(ctx context.Context, key EntidadKey) ([]model.SyncTask, error) {
	var tasks []model.SyncTask
	err := r.db.WithContext(ctx).
		Where("entidad_tipo = ? AND entidad_id = ? AND estado IN ?", key.EntidadTipo, key.EntidadID,
			[]string{model.SyncPending, model.SyncInFlight}).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *syncTaskRepo) LastDoneID(ctx context.Context, key EntidadKey) (uint64, error) {
	var id uint64
	err := r.db.WithContext(ctx).Model(&model.SyncTask{}).
		Select("COALESCE(MAX(id), 0)").
		Where("entidad_tipo = ? AND entidad_id = ? AND estado = ?", key.EntidadTipo, key.EntidadID, model.SyncDone).
		Scan(&id).Error
	return id, err
}

func (r *syncTaskRepo) ListDueEntities(ctx context.Context, now time.Time, limit int) ([]EntidadKey, error) {
	var keys []EntidadKey
	err := r.db.WithContext(ctx).Model(&model.SyncTask{}).
		Select("entidad_tipo, entidad_id, MIN(id) AS primera").
		Where("estado = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", model.SyncPending, now).
		Group("entidad_tipo, entidad_id").
		Order("primera ASC").
		Limit(limit).
		Scan(&keys).Error
	return keys, err
}

func (r *syncTaskRepo) MarkInFlight(ctx context.Context, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.SyncTask{}).
		Where("id = ? AND estado = ?", id, model.SyncPending).
		UpdateColumns(map[string]any{"estado": model.SyncInFlight, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

func (r *syncTaskRepo) Save(ctx context.Context, t *model.SyncTask) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *syncTaskRepo) ResetStuck(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.SyncTask{}).
		Where("estado = ? AND updated_at < ?", model.SyncInFlight, before).
		UpdateColumns(map[string]any{"estado": model.SyncPending, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *syncTaskRepo) PurgeDone(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("estado = ? AND updated_at < ?", model.SyncDone, before).
		Delete(&model.SyncTask{})
	return res.RowsAffected, res.Error
}

func (r *syncTaskRepo) List(ctx context.Context, filter dto.SyncTaskFilter) ([]model.SyncTask, int64, error) {
	var tasks []model.SyncTask
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.SyncTask{})
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.EntidadTipo != "" {
		q = q.Where("entidad_tipo = ?", filter.EntidadTipo)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id DESC").Offset(offset).Limit(filter.Limit).Find(&tasks).Error
	return tasks, total, err
}

func (r *syncTaskRepo) CountByEstado(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Estado string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&model.SyncTask{}).
		Select("estado, COUNT(*) AS n").Group("estado").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Estado] = row.N
	}
	return out, nil
}
