package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action types.
const (
	TipoCanje       = "canje"
	TipoEstadoCanje = "estado_canje"
	TipoReclamo     = "reclamar_regalo"
	TipoTransaccion = "transaccion"
)

// Action states. Done actions are removed from the queue, so a stored action
// is either pending or failed.
const (
	EstadoPending = "pending"
	EstadoDone    = "done"
	EstadoFailed  = "failed"
)

var ErrActionNotFound = errors.New("offline: action not found")

// Action is one intent captured while offline. ID doubles as the offline id
// the server dedupes replays on.
type Action struct {
	ID            uuid.UUID       `json:"id"`
	Tipo          string          `json:"tipo"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Estado        string          `json:"estado"`
	Intentos      int             `json:"intentos"`
	UltimoError   string          `json:"ultimo_error,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
}

// Queue is the durable FIFO of offline actions.
type Queue struct {
	store *Store
	mu    sync.Mutex
	now   func() time.Time
}

func NewQueue(store *Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Enqueue appends a pending action and returns it. The caller must treat it
// as accepted, not applied.
func (q *Queue) Enqueue(ctx context.Context, tipo string, payload any) (Action, error) {
	a, err := NewAction(tipo, payload, q.now())
	if err != nil {
		return Action{}, err
	}
	return a, q.Append(ctx, a)
}

// NewAction builds a pending action with a fresh id.
func NewAction(tipo string, payload any, now time.Time) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("offline: marshal payload: %w", err)
	}
	return Action{
		ID:        uuid.New(),
		Tipo:      tipo,
		Payload:   raw,
		CreatedAt: now,
		Estado:    EstadoPending,
	}, nil
}

// Append stores an already built action at the tail.
func (q *Queue) Append(ctx context.Context, a Action) error {
	return q.update(ctx, func(actions []Action) ([]Action, error) {
		return append(actions, a), nil
	})
}

// List returns every stored action in creation order.
func (q *Queue) List(ctx context.Context) ([]Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// HasPending reports whether any action still waits for replay.
func (q *Queue) HasPending(ctx context.Context) (bool, error) {
	actions, err := q.List(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		if a.Estado == EstadoPending {
			return true, nil
		}
	}
	return false, nil
}

// Dismiss removes an action, typically a failed one the user has seen.
func (q *Queue) Dismiss(ctx context.Context, id uuid.UUID) error {
	return q.update(ctx, func(actions []Action) ([]Action, error) {
		for i, a := range actions {
			if a.ID == id {
				return append(actions[:i], actions[i+1:]...), nil
			}
		}
		return nil, ErrActionNotFound
	})
}

// Retry returns a failed action to pending with a fresh attempt budget.
// It keeps its place in the queue.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID) error {
	return q.modify(ctx, id, func(a *Action) {
		a.Estado = EstadoPending
		a.Intentos = 0
		a.UltimoError = ""
		a.NextAttemptAt = nil
	})
}

// modify applies fn to the stored action with id.
func (q *Queue) modify(ctx context.Context, id uuid.UUID, fn func(*Action)) error {
	return q.update(ctx, func(actions []Action) ([]Action, error) {
		for i := range actions {
			if actions[i].ID == id {
				fn(&actions[i])
				return actions, nil
			}
		}
		return nil, ErrActionNotFound
	})
}

func (q *Queue) remove(ctx context.Context, id uuid.UUID) error {
	err := q.Dismiss(ctx, id)
	if errors.Is(err, ErrActionNotFound) {
		return nil
	}
	return err
}

func (q *Queue) update(ctx context.Context, fn func([]Action) ([]Action, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	actions, err := q.load(ctx)
	if err != nil {
		return err
	}
	actions, err = fn(actions)
	if err != nil {
		return err
	}
	return q.store.PutJSON(ctx, KeyQueue, actions)
}

func (q *Queue) load(ctx context.Context) ([]Action, error) {
	var actions []Action
	ok, err := q.store.GetJSON(ctx, KeyQueue, &actions)
	if err != nil || !ok {
		return nil, err
	}
	return actions, nil
}
