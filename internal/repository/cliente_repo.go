package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/model"
)

// ClienteRepository defines the data access contract for clients.
// The saldo_puntos column is never written here; see LedgerRepository.
type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	FindByTelefono(ctx context.Context, telefono string) (*model.Cliente, error)

	// Used inside transactions; callers must pass the tx instance
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Cliente, error)
	MarkSyncedTx(tx *gorm.DB, id uuid.UUID) error

	DB() *gorm.DB
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) DB() *gorm.DB { return r.db }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *clienteRepo) FindByTelefono(ctx context.Context, telefono string) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).Where("telefono = ?", telefono).First(&c).Error
	return &c, err
}

func (r *clienteRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := tx.Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *clienteRepo) MarkSyncedTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&model.Cliente{}).Where("id = ?", id).
		UpdateColumn("ultima_sync", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
