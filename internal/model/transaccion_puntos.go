package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MotivoAcumulacion  = "acumulacion"
	MotivoCanje        = "canje"
	MotivoAjusteManual = "ajuste_manual"
	MotivoRegalo       = "regalo"

	ActorSistema = "sistema"
)

// TransaccionPuntos is one append-only ledger row. Rows are never updated.
// A client's balance is the running sum of Delta ordered by CreatedAt.
type TransaccionPuntos struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClienteID uuid.UUID `gorm:"type:uuid;not null;index"`
	Delta     int       `gorm:"not null"`
	Motivo    string    `gorm:"type:varchar(20);not null"`
	// Actor: "sistema" | "admin:<uuid>" | "regalo:<codigo>" | "cliente:<uuid>"
	Actor           string `gorm:"not null"`
	SaldoResultante int    `gorm:"not null"`
	// ReferenciaID points at the canje or link_regalo that caused the movement.
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	OfflineID    *string    `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt    time.Time

	Cliente *Cliente `gorm:"foreignKey:ClienteID"`
}

// TableName overrides GORM's default pluralization.
func (TransaccionPuntos) TableName() string { return "transacciones_puntos" }

func (t *TransaccionPuntos) BeforeCreate(_ *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

func ActorAdmin(id uuid.UUID) string   { return "admin:" + id.String() }
func ActorCliente(id uuid.UUID) string { return "cliente:" + id.String() }
func ActorRegalo(codigo string) string { return "regalo:" + codigo }
