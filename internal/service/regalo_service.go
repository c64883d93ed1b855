package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/worker"
)

type RegaloService interface {
	CrearLink(ctx context.Context, req dto.CrearLinkRegaloRequest, creadoPor uuid.UUID) (*dto.LinkRegaloResponse, error)
	// Reclamar claims codigo for the client. Single-use links are consumed
	// atomically with the points grant; campaign links accept one claim per
	// client.
	Reclamar(ctx context.Context, codigo string, clienteID uuid.UUID, offlineID *string) (*dto.ReclamoResponse, error)
}

type regaloService struct {
	repo       repository.RegaloRepository
	db         *gorm.DB
	ops        ledgerOps
	audit      *audit.Logger
	dispatcher *worker.Dispatcher
	now        func() time.Time
}

func NewRegaloService(
	repo repository.RegaloRepository,
	ledger repository.LedgerRepository,
	clientes repository.ClienteRepository,
	syncs repository.SyncTaskRepository,
	auditLog *audit.Logger,
	dispatcher *worker.Dispatcher,
) RegaloService {
	return &regaloService{
		repo:       repo,
		db:         ledger.DB(),
		ops:        ledgerOps{ledger: ledger, clientes: clientes, syncs: syncs},
		audit:      auditLog,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (s *regaloService) CrearLink(ctx context.Context, req dto.CrearLinkRegaloRequest, creadoPor uuid.UUID) (*dto.LinkRegaloResponse, error) {
	codigo := strings.ToUpper(strings.TrimSpace(req.Codigo))
	if codigo == "" {
		codigo = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}
	link := &model.LinkRegalo{
		Codigo:      codigo,
		Tipo:        req.Tipo,
		Puntos:      req.Puntos,
		Beneficio:   req.Beneficio,
		EsCampana:   req.EsCampana,
		Vigencia:    req.Vigencia,
		DiasValidez: req.DiasValidez,
		CreadoPor:   &creadoPor,
	}
	if link.Tipo == model.RegaloPuntos && link.Puntos <= 0 {
		return nil, businessErrorf(ErrInvalidAmount, "un regalo de puntos necesita puntos > 0")
	}
	if req.ExpiraEn != nil {
		switch link.Vigencia {
		case "":
			link.Vigencia = model.VigenciaFecha
		case model.VigenciaFecha:
		default:
			return nil, businessErrorf(ErrInvalidAmount, "expira_en solo aplica a vigencia fecha (vigencia: %s)", link.Vigencia)
		}
		dia, err := time.ParseInLocation("2006-01-02", *req.ExpiraEn, time.Local)
		if err != nil {
			return nil, businessErrorf(ErrInvalidAmount, "expira_en inválido: %s", *req.ExpiraEn)
		}
		// valid through the whole day
		fin := dia.AddDate(0, 0, 1)
		link.ExpiraEn = &fin
	}
	if err := s.repo.Create(ctx, link); err != nil {
		return nil, err
	}
	return linkResponse(link), nil
}

func (s *regaloService) Reclamar(ctx context.Context, codigo string, clienteID uuid.UUID, offlineID *string) (*dto.ReclamoResponse, error) {
	codigo = strings.ToUpper(strings.TrimSpace(codigo))

	if offlineID != nil {
		prev, err := s.repo.FindReclamoByOfflineID(ctx, *offlineID)
		ok, err := replayed(err, prev.ClienteID, clienteID, *offlineID)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.reclamoPrevio(ctx, codigo, clienteID)
		}
	}

	var link *model.LinkRegalo
	saldo := 0
	txErr := runTx(ctx, s.db, func(tx *gorm.DB) error {
		cli, err := s.ops.clientes.FindByIDTx(tx, clienteID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownClient
		}
		if err != nil {
			return err
		}
		saldo = cli.SaldoPuntos

		link, err = s.repo.FindByCodigoTx(tx, codigo)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGiftNotFound
		}
		if err != nil {
			return err
		}
		now := s.now()
		if link.Vencido(now) {
			return ErrGiftExpired
		}

		if !link.EsCampana {
			if err := s.repo.ConsumeTx(tx, link.ID, clienteID, now); err != nil {
				if errors.Is(err, repository.ErrRegaloConsumido) {
					return ErrGiftAlreadyClaimed
				}
				return err
			}
		}
		if err := s.repo.CreateReclamoTx(tx, &model.ReclamoRegalo{
			LinkID:    link.ID,
			ClienteID: clienteID,
			OfflineID: offlineID,
		}); err != nil {
			if errors.Is(err, repository.ErrRegaloConsumido) {
				return ErrGiftAlreadyClaimed
			}
			return err
		}

		if link.Tipo != model.RegaloPuntos || link.Puntos <= 0 {
			return nil
		}
		cli, err = s.ops.apply(tx, &model.TransaccionPuntos{
			ClienteID:    clienteID,
			Delta:        link.Puntos,
			Motivo:       model.MotivoRegalo,
			Actor:        model.ActorRegalo(link.Codigo),
			ReferenciaID: &link.ID,
		})
		if err != nil {
			return err
		}
		saldo = cli.SaldoPuntos
		return nil
	})

	// a concurrent replay of the same offline id trips the claim uniqueness
	if errors.Is(txErr, ErrGiftAlreadyClaimed) && offlineID != nil {
		prev, err := s.repo.FindReclamoByOfflineID(ctx, *offlineID)
		ok, err := replayed(err, prev.ClienteID, clienteID, *offlineID)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.reclamoPrevio(ctx, codigo, clienteID)
		}
	}

	s.audit.Record(ctx, audit.Entry{
		Evento:      model.EventoRegaloReclamo,
		EntidadTipo: model.EntidadCliente,
		EntidadID:   clienteID.String(),
		Accion:      "reclamo " + codigo,
		Actor:       model.ActorCliente(clienteID),
		Err:         txErr,
	})
	if txErr != nil {
		return nil, txErr
	}

	if link.Tipo == model.RegaloPuntos {
		announceSync(ctx, s.dispatcher, model.EntidadCliente, clienteID)
	}
	return &dto.ReclamoResponse{
		Codigo:      link.Codigo,
		Tipo:        link.Tipo,
		Puntos:      link.Puntos,
		Beneficio:   link.Beneficio,
		SaldoPuntos: saldo,
	}, nil
}

// reclamoPrevio answers a replayed claim with the current state.
func (s *regaloService) reclamoPrevio(ctx context.Context, codigo string, clienteID uuid.UUID) (*dto.ReclamoResponse, error) {
	link, err := s.repo.FindByCodigo(ctx, codigo)
	if err != nil {
		return nil, ErrGiftNotFound
	}
	cli, err := s.ops.clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, ErrUnknownClient
	}
	return &dto.ReclamoResponse{
		Codigo:      link.Codigo,
		Tipo:        link.Tipo,
		Puntos:      link.Puntos,
		Beneficio:   link.Beneficio,
		SaldoPuntos: cli.SaldoPuntos,
	}, nil
}

func linkResponse(l *model.LinkRegalo) *dto.LinkRegaloResponse {
	resp := &dto.LinkRegaloResponse{
		ID:        l.ID.String(),
		Codigo:    l.Codigo,
		Tipo:      l.Tipo,
		Puntos:    l.Puntos,
		Beneficio: l.Beneficio,
		EsCampana: l.EsCampana,
		Vigencia:  l.Vigencia,
	}
	if l.ExpiraEn != nil {
		e := l.ExpiraEn.Format(time.RFC3339)
		resp.ExpiraEn = &e
	}
	return resp
}
