// Package testutil provides a throwaway database and seed helpers for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
)

// NewTestDB opens a private in-memory sqlite database with the full schema.
// A single connection serializes concurrent transactions, which is enough to
// exercise the conditional-update guards.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.Migrate(db))
	return db
}

// SeedCliente creates a client whose balance is backed by one acumulacion row,
// so the cached balance equals the sum of deltas from the start.
func SeedCliente(t *testing.T, db *gorm.DB, telefono string, saldo int) *model.Cliente {
	t.Helper()
	c := &model.Cliente{Telefono: telefono, Nombre: "Cliente " + telefono, SaldoPuntos: saldo}
	require.NoError(t, db.Create(c).Error)
	if saldo > 0 {
		require.NoError(t, db.Create(&model.TransaccionPuntos{
			ClienteID:       c.ID,
			Delta:           saldo,
			Motivo:          model.MotivoAcumulacion,
			Actor:           model.ActorSistema,
			SaldoResultante: saldo,
		}).Error)
	}
	return c
}

// SeedProducto creates an active catalog item.
func SeedProducto(t *testing.T, db *gorm.DB, nombre, tipo string, puntos, stock int) *model.Producto {
	t.Helper()
	p := &model.Producto{Nombre: nombre, Tipo: tipo, PuntosRequeridos: puntos, Stock: stock, Activo: true}
	require.NoError(t, db.Create(p).Error)
	return p
}
