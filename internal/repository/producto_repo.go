package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/model"
)

// ProductoRepository defines the data access contract for the rewards catalog.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	ListActivos(ctx context.Context) ([]model.Producto, error)

	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Producto, error)
	// DecrementStockTx removes qty units only if that many remain, and returns
	// the remaining stock. ErrStockInsuficiente when the guard fails.
	DecrementStockTx(tx *gorm.DB, id uuid.UUID, qty int) (int, error)
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *productoRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := tx.Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *productoRepo) ListActivos(ctx context.Context) ([]model.Producto, error) {
	var productos []model.Producto
	err := r.db.WithContext(ctx).Where("activo = ?", true).Order("puntos_requeridos ASC, nombre ASC").Find(&productos).Error
	return productos, err
}

func (r *productoRepo) DecrementStockTx(tx *gorm.DB, id uuid.UUID, qty int) (int, error) {
	res := tx.Model(&model.Producto{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrStockInsuficiente
	}
	var stock int
	err := tx.Model(&model.Producto{}).Where("id = ?", id).Select("stock").Row().Scan(&stock)
	return stock, err
}
