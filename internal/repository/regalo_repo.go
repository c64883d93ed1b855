package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/model"
)

type RegaloRepository interface {
	Create(ctx context.Context, l *model.LinkRegalo) error
	FindByCodigo(ctx context.Context, codigo string) (*model.LinkRegalo, error)
	FindReclamoByOfflineID(ctx context.Context, offlineID string) (*model.ReclamoRegalo, error)

	FindByCodigoTx(tx *gorm.DB, codigo string) (*model.LinkRegalo, error)
	// ConsumeTx marks a single-use link consumed by clienteID, guarded on
	// consumido_por IS NULL. ErrRegaloConsumido when the guard fails.
	ConsumeTx(tx *gorm.DB, linkID, clienteID uuid.UUID, at time.Time) error
	// CreateReclamoTx records the claim; a second claim of the same link by
	// the same client maps to ErrRegaloConsumido.
	CreateReclamoTx(tx *gorm.DB, r *model.ReclamoRegalo) error
}

type regaloRepo struct{ db *gorm.DB }

func NewRegaloRepository(db *gorm.DB) RegaloRepository { return &regaloRepo{db: db} }

func (r *regaloRepo) Create(ctx context.Context, l *model.LinkRegalo) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *regaloRepo) FindByCodigo(ctx context.Context, codigo string) (*model.LinkRegalo, error) {
	return r.FindByCodigoTx(r.db.WithContext(ctx), codigo)
}

func (r *regaloRepo) FindByCodigoTx(tx *gorm.DB, codigo string) (*model.LinkRegalo, error) {
	var l model.LinkRegalo
	err := tx.Where("codigo = ?", codigo).First(&l).Error
	return &l, err
}

func (r *regaloRepo) FindReclamoByOfflineID(ctx context.Context, offlineID string) (*model.ReclamoRegalo, error) {
	var rec model.ReclamoRegalo
	err := r.db.WithContext(ctx).Where("offline_id = ?", offlineID).First(&rec).Error
	return &rec, err
}

func (r *regaloRepo) ConsumeTx(tx *gorm.DB, linkID, clienteID uuid.UUID, at time.Time) error {
	res := tx.Model(&model.LinkRegalo{}).
		Where("id = ? AND consumido_por IS NULL", linkID).
		UpdateColumns(map[string]any{
			"consumido_por": clienteID,
			"consumido_at":  at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRegaloConsumido
	}
	return nil
}

func (r *regaloRepo) CreateReclamoTx(tx *gorm.DB, rec *model.ReclamoRegalo) error {
	err := tx.Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRegaloConsumido
	}
	return err
}
