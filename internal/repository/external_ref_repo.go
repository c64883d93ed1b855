package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mannypuntos/internal/model"
)

type ExternalRefRepository interface {
	// Find returns gorm.ErrRecordNotFound when the entity was never mirrored.
	Find(ctx context.Context, key EntidadKey) (*model.ExternalRef, error)
	// Create stores the mapping. If a concurrent writer stored one first, the
	// existing row wins and is returned.
	Create(ctx context.Context, ref *model.ExternalRef) (*model.ExternalRef, error)
}

type externalRefRepo struct{ db *gorm.DB }

func NewExternalRefRepository(db *gorm.DB) ExternalRefRepository { return &externalRefRepo{db: db} }

func (r *externalRefRepo) Find(ctx context.Context, key EntidadKey) (*model.ExternalRef, error) {
	var ref model.ExternalRef
	err := r.db.WithContext(ctx).
		Where("entidad_tipo = ? AND entidad_id = ?", key.EntidadTipo, key.EntidadID).
		First(&ref).Error
	return &ref, err
}

func (r *externalRefRepo) Create(ctx context.Context, ref *model.ExternalRef) (*model.ExternalRef, error) {
	err := r.db.WithContext(ctx).Create(ref).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.Find(ctx, EntidadKey{EntidadTipo: ref.EntidadTipo, EntidadID: ref.EntidadID})
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}
