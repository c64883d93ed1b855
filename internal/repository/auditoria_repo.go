package repository

import (
	"context"

	"gorm.io/gorm"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

// AuditoriaRepository appends to and reads the audit log. There is no update
// or delete.
type AuditoriaRepository interface {
	Create(ctx context.Context, r *model.RegistroAuditoria) error
	List(ctx context.Context, filter dto.AuditoriaFilter) ([]model.RegistroAuditoria, int64, error)
}

type auditoriaRepo struct{ db *gorm.DB }

func NewAuditoriaRepository(db *gorm.DB) AuditoriaRepository { return &auditoriaRepo{db: db} }

func (r *auditoriaRepo) Create(ctx context.Context, reg *model.RegistroAuditoria) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *auditoriaRepo) List(ctx context.Context, filter dto.AuditoriaFilter) ([]model.RegistroAuditoria, int64, error) {
	var regs []model.RegistroAuditoria
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.RegistroAuditoria{})
	if filter.Evento != "" {
		q = q.Where("evento = ?", filter.Evento)
	}
	if filter.EntidadID != "" {
		q = q.Where("entidad_id = ?", filter.EntidadID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&regs).Error
	return regs, total, err
}
