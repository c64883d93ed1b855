package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AplicarTransaccionRequest is the body of POST /v1/clientes/:id/transacciones.
// Only ajuste_manual and acumulacion are accepted from admins; canje and regalo
// movements are produced by their own flows.
type AplicarTransaccionRequest struct {
	Delta  int    `json:"delta"  validate:"required"`
	Motivo string `json:"motivo" validate:"required,oneof=ajuste_manual acumulacion"`
}

// AcumularRequest converts a purchase amount into points at the configured rate.
type AcumularRequest struct {
	Monto decimal.Decimal `json:"monto" validate:"required"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type TransaccionFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ClienteResponse struct {
	ID          string `json:"id"`
	Telefono    string `json:"telefono"`
	Nombre      string `json:"nombre"`
	SaldoPuntos int    `json:"saldo_puntos"`
	Nivel       string `json:"nivel"`
	Rol         string `json:"rol"`
}

type TransaccionResponse struct {
	ID              string  `json:"id"`
	Delta           int     `json:"delta"`
	Motivo          string  `json:"motivo"`
	Actor           string  `json:"actor"`
	SaldoResultante int     `json:"saldo_resultante"`
	ReferenciaID    *string `json:"referencia_id"`
	CreatedAt       string  `json:"created_at"`
}

type TransaccionListResponse struct {
	Data  []TransaccionResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// SaldoResponse is returned by ledger mutations.
type SaldoResponse struct {
	ClienteID   string `json:"cliente_id"`
	SaldoPuntos int    `json:"saldo_puntos"`
	Delta       int    `json:"delta"`
}
