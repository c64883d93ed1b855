package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TipoProducto = "producto"
	TipoServicio = "servicio"
)

// Producto is an item of the rewards catalog.
// Tipo: "producto" (stock-tracked) | "servicio" (stock ignored).
type Producto struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre           string    `gorm:"index;not null"`
	Tipo             string    `gorm:"type:varchar(20);not null;default:'producto'"`
	PuntosRequeridos int       `gorm:"not null;check:chk_productos_puntos_positivos,puntos_requeridos > 0"`
	Stock            int       `gorm:"not null;default:0;check:chk_productos_stock_no_negativo,stock >= 0"`
	Activo           bool      `gorm:"not null"`
	ImagenURL        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Producto) BeforeCreate(_ *gorm.DB) error {
	ensureID(&p.ID)
	if p.Tipo == "" {
		p.Tipo = TipoProducto
	}
	return nil
}

// ControlaStock reports whether redemptions of p consume stock units.
func (p *Producto) ControlaStock() bool { return p.Tipo != TipoServicio }
