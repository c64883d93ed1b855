package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mannypuntos/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the schema
// up to date. TranslateError is enabled so unique violations surface as
// gorm.ErrDuplicatedKey regardless of driver.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates / updates all tables, then applies the idempotent SQL patches
// that GORM cannot express. Patches are postgres-only; on other dialects
// (sqlite in tests) only AutoMigrate runs.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Cliente{},
		&model.Producto{},
		&model.TransaccionPuntos{},
		&model.Canje{},
		&model.LinkRegalo{},
		&model.ReclamoRegalo{},
		&model.SyncTask{},
		&model.ExternalRef{},
		&model.RegistroAuditoria{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own (partial indexes, append-only guards). Each statement uses
// IF NOT EXISTS / OR REPLACE semantics so re-running on a patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// partial index for the sync retry cron query
		`CREATE INDEX IF NOT EXISTS idx_sync_tasks_pending_retry
		    ON sync_tasks (next_retry_at)
		    WHERE estado = 'pending'`,
		// per-entity FIFO scan used by the sync worker
		`CREATE INDEX IF NOT EXISTS idx_sync_tasks_entidad_pending
		    ON sync_tasks (entidad_tipo, entidad_id, id)
		    WHERE estado IN ('pending', 'in_flight')`,
		// ledger history is read newest-first per client
		`CREATE INDEX IF NOT EXISTS idx_transacciones_cliente_created
		    ON transacciones_puntos (cliente_id, created_at DESC)`,
		// ledger and audit rows are append-only
		`CREATE OR REPLACE FUNCTION manny_append_only() RETURNS trigger AS $$
		BEGIN
		  RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
		END $$ LANGUAGE plpgsql`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_transacciones_append_only') THEN
		    CREATE TRIGGER trg_transacciones_append_only
		      BEFORE UPDATE OR DELETE ON transacciones_puntos
		      FOR EACH ROW EXECUTE FUNCTION manny_append_only();
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_auditoria_append_only') THEN
		    CREATE TRIGGER trg_auditoria_append_only
		      BEFORE UPDATE OR DELETE ON auditoria
		      FOR EACH ROW EXECUTE FUNCTION manny_append_only();
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
