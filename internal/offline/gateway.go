package offline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"mannypuntos/internal/client"
)

// Outcome of a submitted action: either applied online (Result set) or
// captured for later replay (Queued).
type Outcome struct {
	Action Action
	Queued bool
	Result any
}

// Gateway is the single entry point for mutating calls on the client. Online
// calls go straight through the executor; while offline, or while older
// actions still wait in the queue, the action is captured instead so replay
// order stays the enqueue order.
type Gateway struct {
	exec    Executor
	queue   *Queue
	monitor *Monitor
	drainer *Drainer
	now     func() time.Time
}

func NewGateway(exec Executor, queue *Queue, monitor *Monitor, drainer *Drainer) *Gateway {
	return &Gateway{exec: exec, queue: queue, monitor: monitor, drainer: drainer, now: time.Now}
}

// Submit applies or captures one action. Business rejections of an online
// call are returned as errors, never queued.
func (g *Gateway) Submit(ctx context.Context, tipo string, payload any) (Outcome, error) {
	a, err := NewAction(tipo, payload, g.now())
	if err != nil {
		return Outcome{}, err
	}

	backlog, err := g.queue.HasPending(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !g.monitor.Online() || backlog {
		if err := g.queue.Append(ctx, a); err != nil {
			return Outcome{}, err
		}
		if backlog && g.monitor.Online() && g.drainer != nil {
			if _, err := g.drainer.Drain(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
				log.Warn().Err(err).Msg("offline: drain after submit failed")
			}
		}
		return Outcome{Action: a, Queued: true}, nil
	}

	result, err := g.exec.Execute(ctx, a)
	switch {
	case err == nil:
		g.monitor.Report(ctx, true)
		return Outcome{Action: a, Result: result}, nil
	case errors.Is(err, client.ErrUnavailable) && !IsRejected(err):
		// the server may still have committed it; the replay carries the same
		// offline id and is deduped
		g.monitor.Report(ctx, false)
		if err := g.queue.Append(ctx, a); err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: a, Queued: true}, nil
	default:
		return Outcome{Action: a}, err
	}
}
