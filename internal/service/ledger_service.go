package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/worker"
)

// AcumulacionConfig converts purchase amounts into points.
type AcumulacionConfig struct {
	PuntosPorUnidad  decimal.Decimal
	MultiplicadorVIP decimal.Decimal
}

type LedgerService interface {
	// ApplyTransaction applies delta to the client's balance. A non-nil
	// offlineID that was already applied returns the original row.
	ApplyTransaction(ctx context.Context, clienteID uuid.UUID, delta int, motivo, actor string, offlineID *string) (*dto.SaldoResponse, error)
	Acumular(ctx context.Context, clienteID uuid.UUID, monto decimal.Decimal, actor string, offlineID *string) (*dto.SaldoResponse, error)
	GetCliente(ctx context.Context, clienteID uuid.UUID) (*dto.ClienteResponse, error)
	Saldo(ctx context.Context, clienteID uuid.UUID) (int, error)
	// VerifyBalance returns the cached balance and the sum of ledger deltas.
	VerifyBalance(ctx context.Context, clienteID uuid.UUID) (cached, sum int, err error)
	ListTransacciones(ctx context.Context, clienteID uuid.UUID, filter dto.TransaccionFilter) (*dto.TransaccionListResponse, error)
}

type ledgerService struct {
	ops        ledgerOps
	acum       AcumulacionConfig
	audit      *audit.Logger
	dispatcher *worker.Dispatcher
}

func NewLedgerService(
	ledger repository.LedgerRepository,
	clientes repository.ClienteRepository,
	syncs repository.SyncTaskRepository,
	acum AcumulacionConfig,
	auditLog *audit.Logger,
	dispatcher *worker.Dispatcher,
) LedgerService {
	return &ledgerService{
		ops:        ledgerOps{ledger: ledger, clientes: clientes, syncs: syncs},
		acum:       acum,
		audit:      auditLog,
		dispatcher: dispatcher,
	}
}

func (s *ledgerService) ApplyTransaction(ctx context.Context, clienteID uuid.UUID, delta int, motivo, actor string, offlineID *string) (*dto.SaldoResponse, error) {
	if offlineID != nil {
		prev, err := s.ops.ledger.FindByOfflineID(ctx, *offlineID)
		ok, err := replayed(err, prev.ClienteID, clienteID, *offlineID)
		if err != nil {
			return nil, err
		}
		if ok {
			return saldoResponse(prev), nil
		}
	}

	t := &model.TransaccionPuntos{
		ClienteID: clienteID,
		Delta:     delta,
		Motivo:    motivo,
		Actor:     actor,
		OfflineID: offlineID,
	}
	err := runTx(ctx, s.ops.ledger.DB(), func(tx *gorm.DB) error {
		_, err := s.ops.apply(tx, t)
		return err
	})

	// lost a race against a concurrent replay of the same offline id
	if errors.Is(err, gorm.ErrDuplicatedKey) && offlineID != nil {
		prev, ferr := s.ops.ledger.FindByOfflineID(ctx, *offlineID)
		ok, rerr := replayed(ferr, prev.ClienteID, clienteID, *offlineID)
		if rerr != nil {
			return nil, rerr
		}
		if ok {
			return saldoResponse(prev), nil
		}
	}

	s.audit.Record(ctx, audit.Entry{
		Evento:      model.EventoTransaccion,
		EntidadTipo: model.EntidadCliente,
		EntidadID:   clienteID.String(),
		Accion:      motivo,
		Actor:       actor,
		Err:         err,
	})
	if err != nil {
		return nil, err
	}

	announceSync(ctx, s.dispatcher, model.EntidadCliente, clienteID)
	return saldoResponse(t), nil
}

// Acumular awards floor(monto * rate) points, times the VIP multiplier for
// VIP clients.
func (s *ledgerService) Acumular(ctx context.Context, clienteID uuid.UUID, monto decimal.Decimal, actor string, offlineID *string) (*dto.SaldoResponse, error) {
	if !monto.IsPositive() {
		return nil, businessErrorf(ErrInvalidAmount, "el monto debe ser mayor a cero")
	}
	cli, err := s.ops.clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, ErrUnknownClient
	}

	puntos := monto.Mul(s.acum.PuntosPorUnidad)
	if cli.Nivel == model.NivelVIP && s.acum.MultiplicadorVIP.IsPositive() {
		puntos = puntos.Mul(s.acum.MultiplicadorVIP)
	}
	delta := int(puntos.Floor().IntPart())
	if delta <= 0 {
		return nil, businessErrorf(ErrInvalidAmount, "el monto %s no alcanza para acumular puntos", monto.StringFixed(2))
	}
	return s.ApplyTransaction(ctx, clienteID, delta, model.MotivoAcumulacion, actor, offlineID)
}

func (s *ledgerService) GetCliente(ctx context.Context, clienteID uuid.UUID) (*dto.ClienteResponse, error) {
	cli, err := s.ops.clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, ErrUnknownClient
	}
	resp := clienteResponse(cli)
	return &resp, nil
}

func (s *ledgerService) Saldo(ctx context.Context, clienteID uuid.UUID) (int, error) {
	cli, err := s.ops.clientes.FindByID(ctx, clienteID)
	if err != nil {
		return 0, ErrUnknownClient
	}
	return cli.SaldoPuntos, nil
}

func (s *ledgerService) VerifyBalance(ctx context.Context, clienteID uuid.UUID) (int, int, error) {
	cached, err := s.Saldo(ctx, clienteID)
	if err != nil {
		return 0, 0, err
	}
	sum, err := s.ops.ledger.SumDeltas(ctx, clienteID)
	if err != nil {
		return 0, 0, err
	}
	return cached, sum, nil
}

func (s *ledgerService) ListTransacciones(ctx context.Context, clienteID uuid.UUID, filter dto.TransaccionFilter) (*dto.TransaccionListResponse, error) {
	txs, total, err := s.ops.ledger.ListByCliente(ctx, clienteID, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.TransaccionResponse, len(txs))
	for i, t := range txs {
		data[i] = dto.TransaccionResponse{
			ID:              t.ID.String(),
			Delta:           t.Delta,
			Motivo:          t.Motivo,
			Actor:           t.Actor,
			SaldoResultante: t.SaldoResultante,
			ReferenciaID:    uuidPtrString(t.ReferenciaID),
			CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		}
	}
	return &dto.TransaccionListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func saldoResponse(t *model.TransaccionPuntos) *dto.SaldoResponse {
	return &dto.SaldoResponse{
		ClienteID:   t.ClienteID.String(),
		SaldoPuntos: t.SaldoResultante,
		Delta:       t.Delta,
	}
}

func clienteResponse(c *model.Cliente) dto.ClienteResponse {
	return dto.ClienteResponse{
		ID:          c.ID.String(),
		Telefono:    c.Telefono,
		Nombre:      c.Nombre,
		SaldoPuntos: c.SaldoPuntos,
		Nivel:       c.Nivel,
		Rol:         c.Rol,
	}
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
