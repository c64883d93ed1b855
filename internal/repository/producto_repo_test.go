package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mannypuntos/internal/model"
	"mannypuntos/internal/testutil"
)

func TestProducto_DecrementStockTx(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductoRepository(db)
	p := testutil.SeedProducto(t, db, "Lavado", model.TipoProducto, 100, 2)

	var restante int
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		restante, err = repo.DecrementStockTx(tx, p.ID, 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, restante)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.DecrementStockTx(tx, p.ID, 2)
		return err
	})
	assert.ErrorIs(t, err, ErrStockInsuficiente)
}

func TestProducto_CreateKeepsInactiveFlag(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductoRepository(db)
	ctx := context.Background()

	oculto := &model.Producto{Nombre: "Oculto", Tipo: model.TipoProducto, PuntosRequeridos: 50, Stock: 1, Activo: false}
	require.NoError(t, repo.Create(ctx, oculto))
	visible := &model.Producto{Nombre: "Visible", Tipo: model.TipoProducto, PuntosRequeridos: 60, Stock: 1, Activo: true}
	require.NoError(t, repo.Create(ctx, visible))

	var stored model.Producto
	require.NoError(t, db.First(&stored, "id = ?", oculto.ID).Error)
	assert.False(t, stored.Activo)

	activos, err := repo.ListActivos(ctx)
	require.NoError(t, err)
	require.Len(t, activos, 1)
	assert.Equal(t, visible.ID, activos[0].ID)
}

func TestProducto_ConcurrentDecrementsNeverOversell(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductoRepository(db)
	p := testutil.SeedProducto(t, db, "Gorra", model.TipoProducto, 10, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := repo.DecrementStockTx(tx, p.ID, 1)
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	got, err := repo.FindByIDTx(db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}
