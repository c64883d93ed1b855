package repository

import "errors"

// Conditional-update outcomes. A zero-row UPDATE is reported with one of these
// so services can tell a failed guard from a missing row.
var (
	ErrClienteNoEncontrado  = errors.New("repository: cliente not found")
	ErrSaldoInsuficiente    = errors.New("repository: saldo would go negative")
	ErrStockInsuficiente    = errors.New("repository: stock would go negative")
	ErrEstadoDesactualizado = errors.New("repository: canje estado changed concurrently")
	ErrRegaloConsumido      = errors.New("repository: gift link already consumed")
)
