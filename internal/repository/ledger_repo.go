package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

// LedgerRepository owns the points ledger: the append-only transacciones_puntos
// table and the cached clientes.saldo_puntos column.
type LedgerRepository interface {
	// ApplyTx moves the client's balance by t.Delta with a single conditional
	// UPDATE and appends t with the resulting balance. Must run inside tx.
	// Returns ErrClienteNoEncontrado or ErrSaldoInsuficiente when the guard
	// rejects the movement; nothing is written in that case.
	ApplyTx(tx *gorm.DB, t *model.TransaccionPuntos) error

	SumDeltas(ctx context.Context, clienteID uuid.UUID) (int, error)
	ListByCliente(ctx context.Context, clienteID uuid.UUID, filter dto.TransaccionFilter) ([]model.TransaccionPuntos, int64, error)
	FindByOfflineID(ctx context.Context, offlineID string) (*model.TransaccionPuntos, error)

	DB() *gorm.DB
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) DB() *gorm.DB { return r.db }

func (r *ledgerRepo) ApplyTx(tx *gorm.DB, t *model.TransaccionPuntos) error {
	res := tx.Model(&model.Cliente{}).
		Where("id = ? AND saldo_puntos + ? >= 0", t.ClienteID, t.Delta).
		UpdateColumns(map[string]any{
			"saldo_puntos": gorm.Expr("saldo_puntos + ?", t.Delta),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&model.Cliente{}).Where("id = ?", t.ClienteID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrClienteNoEncontrado
		}
		return ErrSaldoInsuficiente
	}

	var saldo int
	if err := tx.Model(&model.Cliente{}).Where("id = ?", t.ClienteID).
		Select("saldo_puntos").Row().Scan(&saldo); err != nil {
		return err
	}
	t.SaldoResultante = saldo
	return tx.Create(t).Error
}

func (r *ledgerRepo) SumDeltas(ctx context.Context, clienteID uuid.UUID) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&model.TransaccionPuntos{}).
		Where("cliente_id = ?", clienteID).
		Select("COALESCE(SUM(delta), 0)").Scan(&sum).Error
	return sum, err
}

func (r *ledgerRepo) ListByCliente(ctx context.Context, clienteID uuid.UUID, filter dto.TransaccionFilter) ([]model.TransaccionPuntos, int64, error) {
	var txs []model.TransaccionPuntos
	var total int64

	q := r.db.WithContext(ctx).Model(&model.TransaccionPuntos{}).Where("cliente_id = ?", clienteID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(filter.Limit).Find(&txs).Error
	return txs, total, err
}

func (r *ledgerRepo) FindByOfflineID(ctx context.Context, offlineID string) (*model.TransaccionPuntos, error) {
	var t model.TransaccionPuntos
	err := r.db.WithContext(ctx).Where("offline_id = ?", offlineID).First(&t).Error
	return &t, err
}
