package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EntidadCliente = "cliente"
	EntidadCanje   = "canje"

	OperacionCrear      = "crear"
	OperacionActualizar = "actualizar"

	SyncPending  = "pending"
	SyncInFlight = "in_flight"
	SyncDone     = "done"
	SyncFailed   = "failed"

	ResultadoSuccess = "success"
	ResultadoSkipped = "skipped"
	ResultadoFailed  = "failed"

	SistemaNotion = "notion"
)

// SyncTask is one pending mirror of a committed local mutation into the CRM.
// Rows are inserted in the same transaction as the mutation they describe.
// ID is monotonic, so ordering by ID is creation order per entity.
//
// Estado: "pending" | "in_flight" | "done" | "failed"
// Resultado: "success" | "skipped" (done) or "failed" (failed)
type SyncTask struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	EntidadTipo string    `gorm:"type:varchar(20);not null;index:idx_sync_tasks_entidad"`
	EntidadID   uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_tasks_entidad"`
	Operacion   string    `gorm:"type:varchar(20);not null"`
	// Payload is the JSON snapshot of the full target state (ClienteSnapshot or CanjeSnapshot).
	Payload     string `gorm:"type:text;not null"`
	Estado      string `gorm:"type:varchar(20);not null;default:'pending';index"`
	Resultado   string `gorm:"type:varchar(20)"`
	Intentos    int    `gorm:"not null;default:0"`
	UltimoError *string
	NextRetryAt *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DecodePayload unmarshals the snapshot into dst.
func (t *SyncTask) DecodePayload(dst any) error {
	return json.Unmarshal([]byte(t.Payload), dst)
}

// ExternalRef maps a local entity to its CRM page id. It is the idempotency
// anchor for every update after the first create.
type ExternalRef struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntidadTipo string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_external_refs_entidad"`
	EntidadID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_external_refs_entidad"`
	Sistema     string    `gorm:"type:varchar(20);not null;default:'notion'"`
	ExternalID  string    `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (r *ExternalRef) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.ID)
	if r.Sistema == "" {
		r.Sistema = SistemaNotion
	}
	return nil
}

// ClienteSnapshot is the full CRM-facing state of a client at commit time.
type ClienteSnapshot struct {
	ID          uuid.UUID `json:"id"`
	Nombre      string    `json:"nombre"`
	Telefono    string    `json:"telefono"`
	Nivel       string    `json:"nivel"`
	SaldoPuntos int       `json:"saldo_puntos"`
	CreatedAt   time.Time `json:"created_at"`
}

// CanjeSnapshot is the full CRM-facing state of a canje at commit time.
type CanjeSnapshot struct {
	ID              uuid.UUID  `json:"id"`
	ClienteID       uuid.UUID  `json:"cliente_id"`
	ClienteNombre   string     `json:"cliente_nombre"`
	ClienteTelefono string     `json:"cliente_telefono"`
	ProductoNombre  string     `json:"producto_nombre"`
	ProductoTipo    string     `json:"producto_tipo"`
	PuntosCanjeados int        `json:"puntos_canjeados"`
	Estado          string     `json:"estado"`
	CreatedAt       time.Time  `json:"created_at"`
	EntregadoAt     *time.Time `json:"entregado_at,omitempty"`
}

func SnapshotCliente(c *Cliente) ClienteSnapshot {
	return ClienteSnapshot{
		ID:          c.ID,
		Nombre:      c.Nombre,
		Telefono:    c.Telefono,
		Nivel:       c.Nivel,
		SaldoPuntos: c.SaldoPuntos,
		CreatedAt:   c.CreatedAt,
	}
}

func SnapshotCanje(c *Canje, cli *Cliente, p *Producto) CanjeSnapshot {
	s := CanjeSnapshot{
		ID:              c.ID,
		ClienteID:       c.ClienteID,
		PuntosCanjeados: c.PuntosCanjeados,
		Estado:          c.Estado,
		CreatedAt:       c.CreatedAt,
		EntregadoAt:     c.EntregadoAt,
	}
	if cli != nil {
		s.ClienteNombre = cli.Nombre
		s.ClienteTelefono = cli.Telefono
	}
	if p != nil {
		s.ProductoNombre = p.Nombre
		s.ProductoTipo = p.Tipo
	}
	return s
}
