package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Estados de un canje, in lifecycle order.
const (
	EstadoPendienteEntrega = "pendiente_entrega"
	EstadoEnLista          = "en_lista"
	EstadoEntregado        = "entregado"
	EstadoCompletado       = "completado"

	// EstadoAgendado is accepted on input and stored as EstadoEnLista.
	EstadoAgendado = "agendado"
)

var ordenEstados = []string{
	EstadoPendienteEntrega,
	EstadoEnLista,
	EstadoEntregado,
	EstadoCompletado,
}

// Canje is a redemption of points for a product or service.
// PuntosCanjeados is a snapshot of Producto.PuntosRequeridos at creation time
// and is never recomputed.
type Canje struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClienteID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductoID      uuid.UUID `gorm:"type:uuid;not null;index"`
	PuntosCanjeados int       `gorm:"not null;check:chk_canjes_puntos_positivos,puntos_canjeados > 0"`
	Estado          string    `gorm:"type:varchar(30);not null;default:'pendiente_entrega';index"`
	EntregadoAt     *time.Time
	OfflineID       *string `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Cliente  *Cliente  `gorm:"foreignKey:ClienteID"`
	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (c *Canje) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.ID)
	if c.Estado == "" {
		c.Estado = EstadoPendienteEntrega
	}
	return nil
}

var foldEstado = cases.Fold()

// NormalizarEstado maps free-form input ("Entregado", "en lista", "AGENDADO",
// "pendiente-entrega") to a canonical estado. agendado collapses into en_lista.
func NormalizarEstado(s string) (string, bool) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plano, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	plano = foldEstado.String(plano)
	plano = strings.NewReplacer(" ", "_", "-", "_").Replace(plano)

	if plano == EstadoAgendado {
		return EstadoEnLista, true
	}
	for _, e := range ordenEstados {
		if e == plano {
			return e, true
		}
	}
	return "", false
}

// SiguienteEstado returns the only estado reachable from actual.
func SiguienteEstado(actual string) (string, bool) {
	for i, e := range ordenEstados {
		if e == actual && i+1 < len(ordenEstados) {
			return ordenEstados[i+1], true
		}
	}
	return "", false
}

// EstadoCerrado reports whether the canje has been handed over. From entregado
// on, only the estado itself may still move forward.
func EstadoCerrado(estado string) bool {
	return estado == EstadoEntregado || estado == EstadoCompletado
}
