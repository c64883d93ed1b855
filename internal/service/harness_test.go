package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/testutil"
)

// harness wires every service over one sqlite database, without Redis.
type harness struct {
	db      *gorm.DB
	ledger  LedgerService
	canjes  CanjeService
	regalos *regaloService
	sync    SyncAdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)

	clientes := repository.NewClienteRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	syncs := repository.NewSyncTaskRepository(db)
	auditoria := repository.NewAuditoriaRepository(db)
	auditLog := audit.NewLogger(auditoria)

	acum := AcumulacionConfig{
		PuntosPorUnidad:  decimal.RequireFromString("0.01"),
		MultiplicadorVIP: decimal.RequireFromString("1.5"),
	}
	return &harness{
		db:     db,
		ledger: NewLedgerService(ledgerRepo, clientes, syncs, acum, auditLog, nil),
		canjes: NewCanjeService(repository.NewCanjeRepository(db), repository.NewProductoRepository(db),
			ledgerRepo, clientes, syncs, auditLog, nil),
		regalos: NewRegaloService(repository.NewRegaloRepository(db), ledgerRepo, clientes, syncs, auditLog, nil).(*regaloService),
		sync:    NewSyncAdminService(syncs, auditoria, auditLog, nil, nil),
	}
}

func (h *harness) cliente(t *testing.T, telefono string, saldo int) *model.Cliente {
	t.Helper()
	return testutil.SeedCliente(t, h.db, telefono, saldo)
}

func (h *harness) producto(t *testing.T, nombre, tipo string, puntos, stock int) *model.Producto {
	t.Helper()
	return testutil.SeedProducto(t, h.db, nombre, tipo, puntos, stock)
}

func (h *harness) reload(t *testing.T, dst any, id any) {
	t.Helper()
	require.NoError(t, h.db.First(dst, "id = ?", id).Error)
}

func ptr[T any](v T) *T { return &v }
