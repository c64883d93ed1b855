package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mannypuntos/internal/client"
	"mannypuntos/internal/dto"
)

// Payloads stored with each action type. A canje action stores a
// dto.CrearCanjeRequest.
type (
	EstadoCanjePayload struct {
		CanjeID uuid.UUID `json:"canje_id"`
		Estado  string    `json:"estado"`
	}
	ReclamoPayload struct {
		Codigo string `json:"codigo"`
	}
	TransaccionPayload struct {
		ClienteID uuid.UUID `json:"cliente_id"`
		Delta     int       `json:"delta"`
		Motivo    string    `json:"motivo"`
	}
)

// Executor applies one action through the online entry points.
type Executor interface {
	Execute(ctx context.Context, a Action) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, a Action) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, a Action) (any, error) { return f(ctx, a) }

// IsRejected reports whether err is a business-rule rejection: the action is
// invalid as the world stands and retrying it cannot help.
func IsRejected(err error) bool {
	var r interface{ Rejected() bool }
	return errors.As(err, &r) && r.Rejected()
}

// APIExecutor replays actions against the HTTP API, sending the action id as
// the offline id.
type APIExecutor struct {
	API *client.Client
}

func (e APIExecutor) Execute(ctx context.Context, a Action) (any, error) {
	offlineID := a.ID.String()
	switch a.Tipo {
	case TipoCanje:
		var p dto.CrearCanjeRequest
		if err := decodePayload(a, &p); err != nil {
			return nil, err
		}
		return e.API.CrearCanje(ctx, p, offlineID)
	case TipoEstadoCanje:
		var p EstadoCanjePayload
		if err := decodePayload(a, &p); err != nil {
			return nil, err
		}
		return e.API.AvanzarEstado(ctx, p.CanjeID, dto.AvanzarEstadoRequest{Estado: p.Estado}, offlineID)
	case TipoReclamo:
		var p ReclamoPayload
		if err := decodePayload(a, &p); err != nil {
			return nil, err
		}
		return e.API.ReclamarRegalo(ctx, p.Codigo, offlineID)
	case TipoTransaccion:
		var p TransaccionPayload
		if err := decodePayload(a, &p); err != nil {
			return nil, err
		}
		return e.API.AplicarTransaccion(ctx, p.ClienteID, dto.AplicarTransaccionRequest{Delta: p.Delta, Motivo: p.Motivo}, offlineID)
	default:
		return nil, &invalidActionError{fmt.Sprintf("tipo de acción desconocido %q", a.Tipo)}
	}
}

// invalidActionError marks an action that can never be replayed.
type invalidActionError struct{ msg string }

func (e *invalidActionError) Error() string  { return "offline: " + e.msg }
func (e *invalidActionError) Rejected() bool { return true }

func decodePayload(a Action, dst any) error {
	if err := json.Unmarshal(a.Payload, dst); err != nil {
		return &invalidActionError{fmt.Sprintf("payload inválido: %v", err)}
	}
	return nil
}
