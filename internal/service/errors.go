package service

import (
	"errors"
	"fmt"
)

// BusinessError is a rejection the caller can act on. It is never retried:
// replaying the same intent yields the same answer.
type BusinessError struct {
	Code    string
	Message string
	// Cause is a broader rejection this one also counts as, e.g. a sold-out
	// product is unavailable and out of stock at once.
	Cause *BusinessError
}

func (e *BusinessError) Error() string { return e.Message }

func (e *BusinessError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is matches any BusinessError with the same Code, so
// errors.Is(err, ErrInsufficientPoints) works on detailed instances.
func (e *BusinessError) Is(target error) bool {
	var t *BusinessError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Rejected marks the error as a permanent business rejection.
func (e *BusinessError) Rejected() bool { return true }

var (
	ErrInsufficientPoints = &BusinessError{Code: "insufficient_points", Message: "puntos insuficientes"}
	ErrOutOfStock         = &BusinessError{Code: "out_of_stock", Message: "producto sin stock"}
	ErrProductUnavailable = &BusinessError{Code: "product_unavailable", Message: "producto no disponible"}
	ErrUnknownClient      = &BusinessError{Code: "unknown_client", Message: "cliente no encontrado"}
	ErrInvalidTransition  = &BusinessError{Code: "invalid_transition", Message: "transición de estado inválida"}
	ErrGiftNotFound       = &BusinessError{Code: "gift_not_found", Message: "link de regalo no encontrado"}
	ErrGiftAlreadyClaimed = &BusinessError{Code: "gift_already_claimed", Message: "el regalo ya fue reclamado"}
	ErrGiftExpired        = &BusinessError{Code: "gift_expired", Message: "el link de regalo venció"}
	ErrCanjeNotFound      = &BusinessError{Code: "canje_not_found", Message: "canje no encontrado"}
	ErrSyncTaskNotFound   = &BusinessError{Code: "sync_task_not_found", Message: "tarea de sincronización no encontrada"}
	ErrInvalidCredentials = &BusinessError{Code: "invalid_credentials", Message: "credenciales inválidas"}
	ErrInvalidAmount      = &BusinessError{Code: "invalid_amount", Message: "monto inválido"}
	ErrOfflineIDConflict  = &BusinessError{Code: "offline_id_conflict", Message: "el offline_id ya pertenece a otra operación"}
)

func businessErrorf(base *BusinessError, format string, args ...any) *BusinessError {
	return &BusinessError{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}
