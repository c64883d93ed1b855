package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NivelPartner = "partner"
	NivelVIP     = "vip"

	RolCliente = "cliente"
	RolAdmin   = "admin"
)

// Cliente is a loyalty-program customer identified by phone number.
// Nivel: "partner" | "vip"
// Rol: "cliente" | "admin"; admin authority is granted only through cmd/seedadmin.
//
// SaldoPuntos is a cache of SUM(transacciones_puntos.delta) and is written
// exclusively by LedgerRepository.ApplyTx.
type Cliente struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Telefono    string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Nombre      string    `gorm:"not null"`
	SaldoPuntos int       `gorm:"not null;default:0;check:chk_clientes_saldo_no_negativo,saldo_puntos >= 0"`
	Nivel       string    `gorm:"type:varchar(20);not null;default:'partner'"`
	Rol         string    `gorm:"type:varchar(20);not null;default:'cliente'"`
	PinHash     string    `gorm:"column:pin_hash"`
	// UltimaSync is the last time the CRM acknowledged this client's record.
	UltimaSync *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Cliente) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.ID)
	if c.Nivel == "" {
		c.Nivel = NivelPartner
	}
	if c.Rol == "" {
		c.Rol = RolCliente
	}
	return nil
}

func (c *Cliente) EsAdmin() bool { return c.Rol == RolAdmin }

// ensureID assigns a fresh UUID when the caller did not provide one, so ids do
// not depend on a database-side default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
