package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/worker"
)

type CanjeService interface {
	CrearCanje(ctx context.Context, clienteID, productoID uuid.UUID, actor string, offlineID *string) (*dto.CanjeResponse, error)
	// AvanzarEstado moves the canje to estado, which must be the immediate
	// next one. Asking for the current estado again is a successful no-op.
	AvanzarEstado(ctx context.Context, canjeID uuid.UUID, estado, actor string) (*dto.CanjeResponse, error)
	ObtenerCanje(ctx context.Context, canjeID uuid.UUID) (*model.Canje, error)
	ListCanjes(ctx context.Context, filter dto.CanjeFilter) (*dto.CanjeListResponse, error)
	// Comprobante renders the canje voucher PDF into w.
	Comprobante(ctx context.Context, canjeID uuid.UUID, w io.Writer) error
}

type canjeService struct {
	repo       repository.CanjeRepository
	productos  repository.ProductoRepository
	ops        ledgerOps
	audit      *audit.Logger
	dispatcher *worker.Dispatcher
	now        func() time.Time
}

func NewCanjeService(
	repo repository.CanjeRepository,
	productos repository.ProductoRepository,
	ledger repository.LedgerRepository,
	clientes repository.ClienteRepository,
	syncs repository.SyncTaskRepository,
	auditLog *audit.Logger,
	dispatcher *worker.Dispatcher,
) CanjeService {
	return &canjeService{
		repo:       repo,
		productos:  productos,
		ops:        ledgerOps{ledger: ledger, clientes: clientes, syncs: syncs},
		audit:      auditLog,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// ── CrearCanje ────────────────────────────────────────────────────────────────
// One transaction:
//   1. Client and product must exist
//   2. Product must be active and, when stock-tracked, not sold out
//   3. Debit PuntosRequeridos from the client (guarded, never negative)
//   4. Decrement stock for stock-tracked products (guarded; a lost race is OutOfStock)
//   5. Insert the canje with the points snapshot
//   6. Insert the client and canje sync tasks
// After commit: audit entry, sync announcement, admin notification.

func (s *canjeService) CrearCanje(ctx context.Context, clienteID, productoID uuid.UUID, actor string, offlineID *string) (*dto.CanjeResponse, error) {
	if offlineID != nil {
		prev, err := s.repo.FindByOfflineID(ctx, *offlineID)
		ok, err := replayed(err, prev.ClienteID, clienteID, *offlineID)
		if err != nil {
			return nil, err
		}
		if ok {
			resp := canjeResponse(prev)
			return &resp, nil
		}
	}

	canje := &model.Canje{
		ID:         uuid.New(),
		ClienteID:  clienteID,
		ProductoID: productoID,
		Estado:     model.EstadoPendienteEntrega,
		OfflineID:  offlineID,
	}
	var saldo int

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if _, err := s.ops.clientes.FindByIDTx(tx, clienteID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownClient
			}
			return err
		}
		producto, err := s.productos.FindByIDTx(tx, productoID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductUnavailable
		}
		if err != nil {
			return err
		}
		if !producto.Activo {
			return businessErrorf(ErrProductUnavailable, "%s no está disponible para canje", producto.Nombre)
		}
		if producto.ControlaStock() && producto.Stock <= 0 {
			soldOut := businessErrorf(ErrProductUnavailable, "%s está agotado (quedan 0 unidades)", producto.Nombre)
			soldOut.Cause = ErrOutOfStock
			return soldOut
		}

		cli, err := s.ops.apply(tx, &model.TransaccionPuntos{
			ClienteID:    clienteID,
			Delta:        -producto.PuntosRequeridos,
			Motivo:       model.MotivoCanje,
			Actor:        actor,
			ReferenciaID: &canje.ID,
		})
		if err != nil {
			return err
		}
		saldo = cli.SaldoPuntos

		if producto.ControlaStock() {
			if _, err := s.productos.DecrementStockTx(tx, producto.ID, 1); err != nil {
				if errors.Is(err, repository.ErrStockInsuficiente) {
					return businessErrorf(ErrOutOfStock, "%s se agotó mientras se procesaba el canje", producto.Nombre)
				}
				return err
			}
		}

		canje.PuntosCanjeados = producto.PuntosRequeridos
		if err := s.repo.CreateTx(tx, canje); err != nil {
			return err
		}
		canje.Producto = producto

		_, err = enqueueSyncTx(tx, s.ops.syncs, model.EntidadCanje, canje.ID,
			model.OperacionCrear, model.SnapshotCanje(canje, cli, producto))
		return err
	})

	if errors.Is(txErr, gorm.ErrDuplicatedKey) && offlineID != nil {
		prev, err := s.repo.FindByOfflineID(ctx, *offlineID)
		ok, err := replayed(err, prev.ClienteID, clienteID, *offlineID)
		if err != nil {
			return nil, err
		}
		if ok {
			resp := canjeResponse(prev)
			return &resp, nil
		}
	}

	s.audit.Record(ctx, audit.Entry{
		Evento:      model.EventoCanjeCreado,
		EntidadTipo: model.EntidadCanje,
		EntidadID:   canje.ID.String(),
		Accion:      fmt.Sprintf("canje de %s por %s", productoID, clienteID),
		Actor:       actor,
		Err:         txErr,
	})
	if txErr != nil {
		return nil, txErr
	}

	announceSync(ctx, s.dispatcher, model.EntidadCliente, clienteID)
	announceSync(ctx, s.dispatcher, model.EntidadCanje, canje.ID)
	if err := s.dispatcher.EnqueueEmail(ctx, worker.EmailJob{Tipo: worker.EmailNuevoCanje, CanjeID: canje.ID}); err != nil {
		log.Warn().Err(err).Str("canje_id", canje.ID.String()).Msg("failed to enqueue canje notification")
	}

	log.Info().
		Str("canje_id", canje.ID.String()).
		Str("cliente_id", clienteID.String()).
		Int("puntos", canje.PuntosCanjeados).
		Msg("canje creado")

	resp := canjeResponse(canje)
	resp.SaldoRestante = &saldo
	return &resp, nil
}

// ── AvanzarEstado ─────────────────────────────────────────────────────────────

func (s *canjeService) AvanzarEstado(ctx context.Context, canjeID uuid.UUID, estado, actor string) (*dto.CanjeResponse, error) {
	target, ok := model.NormalizarEstado(estado)
	if !ok {
		return nil, businessErrorf(ErrInvalidTransition, "estado desconocido: %q", estado)
	}

	var canje *model.Canje
	var desde string
	noop := false

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		canje, err = s.repo.FindByIDTx(tx, canjeID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCanjeNotFound
		}
		if err != nil {
			return err
		}
		desde = canje.Estado

		if canje.Estado == target {
			noop = true
			return nil
		}
		next, ok := model.SiguienteEstado(canje.Estado)
		if !ok {
			return businessErrorf(ErrInvalidTransition, "el canje ya está %s", canje.Estado)
		}
		if next != target {
			return businessErrorf(ErrInvalidTransition, "desde %s solo se puede pasar a %s, no a %s", canje.Estado, next, target)
		}

		var entregadoAt *time.Time
		if target == model.EstadoEntregado {
			t := s.now()
			entregadoAt = &t
		}
		if err := s.repo.UpdateEstadoTx(tx, canje.ID, canje.Estado, target, entregadoAt); err != nil {
			if errors.Is(err, repository.ErrEstadoDesactualizado) {
				return businessErrorf(ErrInvalidTransition, "el canje cambió de estado mientras se procesaba")
			}
			return err
		}
		canje.Estado = target
		if entregadoAt != nil {
			canje.EntregadoAt = entregadoAt
		}

		_, err = enqueueSyncTx(tx, s.ops.syncs, model.EntidadCanje, canje.ID,
			model.OperacionActualizar, model.SnapshotCanje(canje, canje.Cliente, canje.Producto))
		return err
	})

	if txErr == nil && noop {
		resp := canjeResponse(canje)
		return &resp, nil
	}

	s.audit.Record(ctx, audit.Entry{
		Evento:      model.EventoCanjeEstado,
		EntidadTipo: model.EntidadCanje,
		EntidadID:   canjeID.String(),
		Accion:      fmt.Sprintf("%s -> %s", desde, target),
		Actor:       actor,
		Err:         txErr,
	})
	if txErr != nil {
		return nil, txErr
	}

	announceSync(ctx, s.dispatcher, model.EntidadCanje, canje.ID)
	resp := canjeResponse(canje)
	return &resp, nil
}

func (s *canjeService) ObtenerCanje(ctx context.Context, canjeID uuid.UUID) (*model.Canje, error) {
	canje, err := s.repo.FindByID(ctx, canjeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCanjeNotFound
	}
	return canje, err
}

func (s *canjeService) ListCanjes(ctx context.Context, filter dto.CanjeFilter) (*dto.CanjeListResponse, error) {
	canjes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.CanjeResponse, len(canjes))
	for i := range canjes {
		data[i] = canjeResponse(&canjes[i])
	}
	return &dto.CanjeListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *canjeService) Comprobante(ctx context.Context, canjeID uuid.UUID, w io.Writer) error {
	canje, err := s.ObtenerCanje(ctx, canjeID)
	if err != nil {
		return err
	}
	return infra.WriteCanjeVoucher(w, model.SnapshotCanje(canje, canje.Cliente, canje.Producto))
}

func canjeResponse(c *model.Canje) dto.CanjeResponse {
	resp := dto.CanjeResponse{
		ID:              c.ID.String(),
		ClienteID:       c.ClienteID.String(),
		ProductoID:      c.ProductoID.String(),
		PuntosCanjeados: c.PuntosCanjeados,
		Estado:          c.Estado,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if c.Producto != nil {
		resp.ProductoNombre = c.Producto.Nombre
	}
	if c.EntregadoAt != nil {
		e := c.EntregadoAt.Format(time.RFC3339)
		resp.EntregadoAt = &e
	}
	return resp
}
