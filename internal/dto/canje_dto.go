package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearCanjeRequest struct {
	// ClienteID is ignored for non-admin callers, who always redeem for themselves.
	ClienteID  string `json:"cliente_id"  validate:"omitempty,uuid"`
	ProductoID string `json:"producto_id" validate:"required,uuid"`
}

// AvanzarEstadoRequest accepts free-form estado names ("Entregado", "agendado").
type AvanzarEstadoRequest struct {
	Estado string `json:"estado" validate:"required,min=3,max=40"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type CanjeFilter struct {
	ClienteID string `form:"cliente_id" validate:"omitempty,uuid"`
	Estado    string `form:"estado"     validate:"omitempty,oneof=pendiente_entrega en_lista entregado completado"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CanjeResponse struct {
	ID              string  `json:"id"`
	ClienteID       string  `json:"cliente_id"`
	ProductoID      string  `json:"producto_id"`
	ProductoNombre  string  `json:"producto_nombre,omitempty"`
	PuntosCanjeados int     `json:"puntos_canjeados"`
	Estado          string  `json:"estado"`
	EntregadoAt     *string `json:"entregado_at"`
	CreatedAt       string  `json:"created_at"`
	// SaldoRestante is only set on creation.
	SaldoRestante *int `json:"saldo_restante,omitempty"`
}

type CanjeListResponse struct {
	Data  []CanjeResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
