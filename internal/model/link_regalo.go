package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RegaloPuntos    = "puntos"
	RegaloBeneficio = "beneficio"

	VigenciaSinVencimiento = "sin_vencimiento"
	VigenciaFecha          = "fecha"
	VigenciaDias           = "dias"
)

// LinkRegalo is a shareable code granting points or a benefit.
// Tipo: "puntos" | "beneficio"
// Vigencia: "sin_vencimiento" | "fecha" (ExpiraEn) | "dias" (DiasValidez after CreatedAt)
//
// Regular links are consumed once (ConsumidoPor). Campaign links (EsCampana)
// accept one claim per client, tracked in reclamos_regalo.
type LinkRegalo struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Codigo       string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Tipo         string    `gorm:"type:varchar(20);not null"`
	Puntos       int       `gorm:"not null;default:0"`
	Beneficio    *string
	EsCampana    bool       `gorm:"not null;default:false"`
	ConsumidoPor *uuid.UUID `gorm:"type:uuid;index"`
	ConsumidoAt  *time.Time
	Vigencia     string `gorm:"type:varchar(20);not null;default:'sin_vencimiento'"`
	ExpiraEn     *time.Time
	DiasValidez  *int
	CreadoPor    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides GORM's default pluralization (link_regalos → links_regalo).
func (LinkRegalo) TableName() string { return "links_regalo" }

func (l *LinkRegalo) BeforeCreate(_ *gorm.DB) error {
	ensureID(&l.ID)
	if l.Vigencia == "" {
		switch {
		case l.ExpiraEn != nil:
			l.Vigencia = VigenciaFecha
		case l.DiasValidez != nil:
			l.Vigencia = VigenciaDias
		default:
			l.Vigencia = VigenciaSinVencimiento
		}
	}
	return nil
}

// Vencido reports whether the link can no longer be claimed at now.
func (l *LinkRegalo) Vencido(now time.Time) bool {
	switch l.Vigencia {
	case VigenciaFecha:
		return l.ExpiraEn != nil && !now.Before(*l.ExpiraEn)
	case VigenciaDias:
		if l.DiasValidez == nil {
			return false
		}
		return !now.Before(l.CreatedAt.AddDate(0, 0, *l.DiasValidez))
	default:
		return false
	}
}

// ReclamoRegalo records one client's claim of a link. The unique pair makes a
// second claim by the same client fail inside the claiming transaction.
type ReclamoRegalo struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	LinkID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reclamo_link_cliente"`
	ClienteID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reclamo_link_cliente"`
	OfflineID *string   `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (ReclamoRegalo) TableName() string { return "reclamos_regalo" }

func (r *ReclamoRegalo) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
