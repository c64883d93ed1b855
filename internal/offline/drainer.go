package offline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mannypuntos/internal/retry"
)

// ErrDrainInProgress is returned when a drain is already running.
var ErrDrainInProgress = errors.New("offline: drain already in progress")

// DrainResult summarizes one drain run.
type DrainResult struct {
	Applied int
	Failed  int
	// Interrupted is set when the drain stopped before the queue was empty
	// because of a transient failure, a pending backoff or cancellation.
	Interrupted bool
}

// Drainer replays queued actions strictly in creation order. Its position is
// derived from action state alone, so an interrupted drain resumes from the
// first pending action on the next run.
type Drainer struct {
	queue  *Queue
	exec   Executor
	policy retry.Policy
	now    func() time.Time
	mu     sync.Mutex

	// OnFailed is called for every action that ends failed so the user sees
	// it; they already believed it succeeded when it was queued.
	OnFailed func(Action)
}

func NewDrainer(queue *Queue, exec Executor, policy retry.Policy) *Drainer {
	return &Drainer{queue: queue, exec: exec, policy: policy, now: time.Now}
}

// Drain runs until the queue has no pending action or a transient failure
// stops it. Only one drain runs at a time.
func (d *Drainer) Drain(ctx context.Context) (DrainResult, error) {
	if !d.mu.TryLock() {
		return DrainResult{}, ErrDrainInProgress
	}
	defer d.mu.Unlock()

	var res DrainResult
	for {
		if ctx.Err() != nil {
			res.Interrupted = true
			return res, nil
		}
		actions, err := d.queue.List(ctx)
		if err != nil {
			return res, err
		}
		next, ok := firstPending(actions)
		if !ok {
			return res, nil
		}
		if next.NextAttemptAt != nil && next.NextAttemptAt.After(d.now()) {
			res.Interrupted = true
			return res, nil
		}

		_, execErr := d.exec.Execute(ctx, next)
		switch {
		case execErr == nil:
			if err := d.queue.remove(ctx, next.ID); err != nil {
				return res, err
			}
			res.Applied++
			log.Info().Str("action_id", next.ID.String()).Str("tipo", next.Tipo).Msg("offline: action replayed")

		case IsRejected(execErr):
			if err := d.markFailed(ctx, next, execErr); err != nil {
				return res, err
			}
			res.Failed++

		default:
			next.Intentos++
			if d.policy.Exhausted(next.Intentos) {
				if err := d.markFailed(ctx, next, execErr); err != nil {
					return res, err
				}
				res.Failed++
				continue
			}
			at := d.policy.NextAt(d.now(), next.Intentos)
			err := d.queue.modify(ctx, next.ID, func(a *Action) {
				a.Intentos = next.Intentos
				a.UltimoError = execErr.Error()
				a.NextAttemptAt = &at
			})
			if err != nil && !errors.Is(err, ErrActionNotFound) {
				return res, err
			}
			log.Warn().Err(execErr).
				Str("action_id", next.ID.String()).
				Int("intentos", next.Intentos).
				Time("next_attempt_at", at).
				Msg("offline: replay failed, drain paused")
			res.Interrupted = true
			return res, nil
		}
	}
}

func (d *Drainer) markFailed(ctx context.Context, a Action, cause error) error {
	err := d.queue.modify(ctx, a.ID, func(stored *Action) {
		stored.Estado = EstadoFailed
		stored.Intentos = a.Intentos
		stored.UltimoError = cause.Error()
		stored.NextAttemptAt = nil
	})
	if errors.Is(err, ErrActionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a.Estado = EstadoFailed
	a.UltimoError = cause.Error()
	log.Warn().Err(cause).Str("action_id", a.ID.String()).Str("tipo", a.Tipo).Msg("offline: action failed")
	if d.OnFailed != nil {
		d.OnFailed(a)
	}
	return nil
}

func firstPending(actions []Action) (Action, bool) {
	for _, a := range actions {
		if a.Estado == EstadoPending {
			return a, true
		}
	}
	return Action{}, false
}
