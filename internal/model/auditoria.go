package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Eventos de auditoría.
const (
	EventoTransaccion   = "ledger.transaccion"
	EventoCanjeCreado   = "canje.creado"
	EventoCanjeEstado   = "canje.estado"
	EventoRegaloReclamo = "regalo.reclamo"
	EventoSyncIntento   = "sync.intento"
	EventoSyncReintento = "sync.reintento_manual"
)

// RegistroAuditoria is an append-only record of a mutating action or a sync
// attempt, successful or not.
type RegistroAuditoria struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Evento      string    `gorm:"type:varchar(40);not null;index"`
	EntidadTipo string    `gorm:"type:varchar(20);not null"`
	EntidadID   string    `gorm:"type:varchar(64);not null;index"`
	Accion      string    `gorm:"not null"`
	Exito       bool      `gorm:"not null"`
	Error       *string
	Actor       string
	CreatedAt   time.Time `gorm:"index"`
}

// TableName overrides GORM's default pluralization.
func (RegistroAuditoria) TableName() string { return "auditoria" }

func (r *RegistroAuditoria) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
