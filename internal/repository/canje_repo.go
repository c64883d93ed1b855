package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

type CanjeRepository interface {
	CreateTx(tx *gorm.DB, c *model.Canje) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Canje, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Canje, error)
	FindByOfflineID(ctx context.Context, offlineID string) (*model.Canje, error)
	// UpdateEstadoTx moves the canje from desde to hacia only if it is still in
	// desde. ErrEstadoDesactualizado when another writer got there first.
	UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, desde, hacia string, entregadoAt *time.Time) error
	List(ctx context.Context, filter dto.CanjeFilter) ([]model.Canje, int64, error)
	DB() *gorm.DB
}

type canjeRepo struct{ db *gorm.DB }

func NewCanjeRepository(db *gorm.DB) CanjeRepository { return &canjeRepo{db: db} }

func (r *canjeRepo) DB() *gorm.DB { return r.db }

func (r *canjeRepo) CreateTx(tx *gorm.DB, c *model.Canje) error {
	return tx.Omit("Cliente", "Producto").Create(c).Error
}

func (r *canjeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Canje, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *canjeRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Canje, error) {
	var c model.Canje
	err := tx.Preload("Cliente").Preload("Producto").Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *canjeRepo) FindByOfflineID(ctx context.Context, offlineID string) (*model.Canje, error) {
	var c model.Canje
	err := r.db.WithContext(ctx).Preload("Producto").Where("offline_id = ?", offlineID).First(&c).Error
	return &c, err
}

func (r *canjeRepo) UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, desde, hacia string, entregadoAt *time.Time) error {
	cols := map[string]any{
		"estado":     hacia,
		"updated_at": time.Now(),
	}
	if entregadoAt != nil {
		cols["entregado_at"] = *entregadoAt
	}
	res := tx.Model(&model.Canje{}).Where("id = ? AND estado = ?", id, desde).UpdateColumns(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEstadoDesactualizado
	}
	return nil
}

func (r *canjeRepo) List(ctx context.Context, filter dto.CanjeFilter) ([]model.Canje, int64, error) {
	var canjes []model.Canje
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Canje{})
	if filter.ClienteID != "" {
		q = q.Where("cliente_id = ?", filter.ClienteID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Producto").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&canjes).Error
	return canjes, total, err
}
