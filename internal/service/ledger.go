package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/worker"
)

// runTx executes fn inside a GORM transaction.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// replayed interprets an offline-id lookup. It reports true when the id was
// already committed for clienteID; an id owned by another client is a
// conflict, and only a missing row means the action is new.
func replayed(err error, owner, clienteID uuid.UUID, offlineID string) (bool, error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup offline_id %s: %w", offlineID, err)
	case owner != clienteID:
		return false, businessErrorf(ErrOfflineIDConflict, "el offline_id %s ya fue usado por otro cliente", offlineID)
	}
	return true, nil
}

// ledgerOps bundles the writes every points movement performs inside the
// caller's transaction: the guarded balance update, the ledger row, and the
// client sync task carrying the new balance.
type ledgerOps struct {
	ledger   repository.LedgerRepository
	clientes repository.ClienteRepository
	syncs    repository.SyncTaskRepository
}

// apply moves the balance and returns the client as it stands after the move.
func (o ledgerOps) apply(tx *gorm.DB, t *model.TransaccionPuntos) (*model.Cliente, error) {
	err := o.ledger.ApplyTx(tx, t)
	switch {
	case errors.Is(err, repository.ErrClienteNoEncontrado):
		return nil, ErrUnknownClient
	case errors.Is(err, repository.ErrSaldoInsuficiente):
		cli, ferr := o.clientes.FindByIDTx(tx, t.ClienteID)
		if ferr != nil {
			return nil, ErrInsufficientPoints
		}
		return nil, businessErrorf(ErrInsufficientPoints,
			"puntos insuficientes: se necesitan %d y el saldo es %d (faltan %d)",
			-t.Delta, cli.SaldoPuntos, -t.Delta-cli.SaldoPuntos)
	case err != nil:
		return nil, err
	}

	cli, err := o.clientes.FindByIDTx(tx, t.ClienteID)
	if err != nil {
		return nil, err
	}
	if _, err := enqueueSyncTx(tx, o.syncs, model.EntidadCliente, cli.ID,
		model.OperacionActualizar, model.SnapshotCliente(cli)); err != nil {
		return nil, err
	}
	return cli, nil
}

// enqueueSyncTx inserts the outbox row for a mutation in the same transaction.
func enqueueSyncTx(tx *gorm.DB, repo repository.SyncTaskRepository, tipo string, id uuid.UUID, op string, snapshot any) (*model.SyncTask, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("sync payload: %w", err)
	}
	task := &model.SyncTask{
		EntidadTipo: tipo,
		EntidadID:   id,
		Operacion:   op,
		Payload:     string(payload),
		Estado:      model.SyncPending,
	}
	if err := repo.CreateTx(tx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// announceSync tells the worker pool about freshly committed tasks. A lost
// announcement only delays the mirror until the retry cron finds the task.
func announceSync(ctx context.Context, d *worker.Dispatcher, tipo string, id uuid.UUID) {
	if err := d.EnqueueSync(ctx, worker.SyncJob{EntidadTipo: tipo, EntidadID: id}); err != nil {
		log.Warn().Err(err).Str("entidad", tipo).Str("id", id.String()).Msg("sync announce failed; retry cron will pick it up")
	}
}
