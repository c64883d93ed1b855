package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mannypuntos/internal/client"
	"mannypuntos/internal/offline"
	"mannypuntos/internal/retry"
)

// app is the per-invocation state shared by all commands.
type app struct {
	opts     *RootOptions
	out      *output
	store    *offline.Store
	queue    *offline.Queue
	sessions *offline.SessionStore
	profiles *offline.ProfileCache
	now      func() time.Time
}

func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	if dir := filepath.Dir(opts.Store); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, WrapExitError(ExitCommandError, "no se pudo crear el directorio local", err)
		}
	}
	store, err := offline.OpenStore(opts.Store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "no se pudo abrir el almacenamiento local", err)
	}
	return &app{
		opts:     opts,
		out:      &output{format: opts.Format, w: cmd.OutOrStdout(), errW: cmd.ErrOrStderr()},
		store:    store,
		queue:    offline.NewQueue(store),
		sessions: offline.NewSessionStore(store),
		profiles: offline.NewProfileCache(store),
		now:      time.Now,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("cli: closing store")
	}
}

// withApp opens the store around fn.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// session returns the stored session; commands that act for someone need one.
func (a *app) session(ctx context.Context) (*offline.Session, error) {
	sess, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, NewExitError(ExitCommandError, "sin sesión: ejecutá 'puntos login <telefono> --pin <pin>'")
	}
	return sess, nil
}

func (a *app) api(sess *offline.Session) *client.Client {
	token := ""
	if sess != nil {
		token = sess.Token
	}
	return client.New(a.opts.APIURL, token, a.opts.Timeout)
}

// pipeline is the online/offline machinery for one session.
type pipeline struct {
	api     *client.Client
	drainer *offline.Drainer
	monitor *offline.Monitor
	gateway *offline.Gateway
}

func (a *app) pipeline(sess *offline.Session, probeEvery time.Duration) *pipeline {
	p := &pipeline{api: a.api(sess)}
	exec := offline.APIExecutor{API: p.api}

	p.drainer = offline.NewDrainer(a.queue, exec, retry.Default)
	p.drainer.OnFailed = func(act offline.Action) {
		a.out.warnf("La acción %s (%s) fue rechazada al reenviarla: %s",
			shortID(act.ID.String()), act.Tipo, act.UltimoError)
	}
	p.monitor = offline.NewMonitor(p.api.Health, probeEvery, func(ctx context.Context) {
		a.drain(ctx, p)
	})
	p.gateway = offline.NewGateway(exec, a.queue, p.monitor, p.drainer)
	return p
}

// drain replays the queue once and reports what happened.
func (a *app) drain(ctx context.Context, p *pipeline) (offline.DrainResult, error) {
	res, err := p.drainer.Drain(ctx)
	if errors.Is(err, offline.ErrDrainInProgress) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if res.Applied > 0 || res.Failed > 0 {
		log.Info().Int("aplicadas", res.Applied).Int("fallidas", res.Failed).Msg("cola reenviada")
	}
	return res, nil
}

// submit runs one mutating action through the gateway. An expired session
// cannot reach the server, so the action goes straight to the queue.
func (a *app) submit(ctx context.Context, tipo string, payload any) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if !sess.Valid(a.now()) {
		act, err := a.queue.Enqueue(ctx, tipo, payload)
		if err != nil {
			return err
		}
		return a.out.queued(act, "sesión vencida, volvé a iniciar sesión para enviarla")
	}

	outcome, err := a.pipeline(sess, 0).gateway.Submit(ctx, tipo, payload)
	if err != nil {
		return apiExitError(err)
	}
	if !outcome.Queued {
		return a.out.ok(outcome.Result)
	}

	// queued behind a backlog: the gateway may have drained it already
	stored, err := a.findAction(ctx, outcome.Action.ID.String())
	if err != nil {
		return err
	}
	switch {
	case stored == nil:
		return a.out.ok(replayed{ID: outcome.Action.ID.String(), Tipo: tipo})
	case stored.Estado == offline.EstadoFailed:
		return NewExitError(ExitRejected, stored.UltimoError)
	default:
		return a.out.queued(*stored, "servidor no disponible o acciones previas pendientes")
	}
}

// replayed is printed for an action sent as part of a drain.
type replayed struct {
	ID   string `json:"id"`
	Tipo string `json:"tipo"`
}

func (r replayed) String() string {
	return fmt.Sprintf("%s enviado junto con las acciones pendientes (%s).", r.Tipo, shortID(r.ID))
}

func (a *app) findAction(ctx context.Context, id string) (*offline.Action, error) {
	actions, err := a.queue.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range actions {
		if actions[i].ID.String() == id {
			return &actions[i], nil
		}
	}
	return nil, nil
}

// resolveAction finds a queued action by full id or unique prefix.
func (a *app) resolveAction(ctx context.Context, ref string) (offline.Action, error) {
	actions, err := a.queue.List(ctx)
	if err != nil {
		return offline.Action{}, err
	}
	ref = strings.ToLower(ref)
	var match []offline.Action
	for _, act := range actions {
		if strings.HasPrefix(act.ID.String(), ref) {
			match = append(match, act)
		}
	}
	switch len(match) {
	case 0:
		return offline.Action{}, NewExitError(ExitCommandError, fmt.Sprintf("no hay una acción %q en la cola", ref))
	case 1:
		return match[0], nil
	default:
		return offline.Action{}, NewExitError(ExitCommandError, fmt.Sprintf("%q es ambiguo: coincide con %d acciones", ref, len(match)))
	}
}
