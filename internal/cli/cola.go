package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mannypuntos/internal/offline"
)

// queueView prints the offline queue oldest first.
type queueView []offline.Action

func (q queueView) String() string {
	if len(q) == 0 {
		return "La cola está vacía."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIPO\tESTADO\tINTENTOS\tCREADA\tERROR")
	for _, a := range q {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(a.ID.String()), a.Tipo, a.Estado, a.Intentos,
			a.CreatedAt.Local().Format("02/01 15:04"), a.UltimoError)
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func (q queueView) MarshalJSON() ([]byte, error) {
	views := make([]actionJSON, len(q))
	for i, a := range q {
		views[i] = actionView(a)
	}
	return json.Marshal(views)
}

func NewColaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cola",
		Short: "Ver las acciones en cola y las que fallaron al reenviarse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				actions, err := a.queue.List(ctx)
				if err != nil {
					return err
				}
				return a.out.ok(queueView(actions))
			})
		},
	}
}

// drainView summarizes a drain run.
type drainView struct {
	Aplicadas    int  `json:"aplicadas"`
	Fallidas     int  `json:"fallidas"`
	Pendientes   int  `json:"pendientes"`
	Interrumpido bool `json:"interrumpido"`
}

func (d drainView) String() string {
	s := fmt.Sprintf("Reenviadas: %d · Fallidas: %d · En cola: %d", d.Aplicadas, d.Fallidas, d.Pendientes)
	if d.Interrumpido {
		s += "\nEl reenvío se detuvo; se reintentará más tarde."
	}
	return s
}

func NewDrenarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drenar",
		Short: "Reenviar ahora las acciones en cola, en orden",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, runDrenar)
		},
	}
}

func runDrenar(ctx context.Context, a *app) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	// a 401 would mark every action failed: require a live token first
	if !sess.Valid(a.now()) {
		return NewExitError(ExitCommandError, "la sesión venció: ejecutá 'puntos login' antes de reenviar la cola")
	}

	p := a.pipeline(sess, 0)
	if !p.monitor.Check(ctx) {
		return NewExitError(ExitRejected, "servidor no disponible; la cola se conserva")
	}
	res, err := a.drain(ctx, p)
	if err != nil {
		return err
	}
	pendientes, err := countPending(ctx, a.queue)
	if err != nil {
		return err
	}
	return a.out.ok(drainView{
		Aplicadas:    res.Applied,
		Fallidas:     res.Failed,
		Pendientes:   pendientes,
		Interrumpido: res.Interrupted,
	})
}

func NewDescartarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "descartar <accion-id>",
		Short: "Quitar una acción de la cola sin enviarla",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				act, err := a.resolveAction(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.queue.Dismiss(ctx, act.ID); err != nil {
					return err
				}
				return a.out.ok(message(fmt.Sprintf("Acción %s (%s) descartada.", shortID(act.ID.String()), act.Tipo)))
			})
		},
	}
}

func NewReintentarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reintentar <accion-id>",
		Short: "Volver a poner en cola una acción fallida",
		Long: `Devuelve una acción fallida a la cola con los intentos en cero. Conserva su
lugar original, así que se reenvía antes que las acciones posteriores.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				act, err := a.resolveAction(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.queue.Retry(ctx, act.ID); err != nil {
					return err
				}
				return a.out.ok(message(fmt.Sprintf("Acción %s (%s) vuelve a la cola.", shortID(act.ID.String()), act.Tipo)))
			})
		},
	}
}

// VigilarOptions holds flags for the vigilar command.
type VigilarOptions struct {
	*RootOptions
	Interval time.Duration
}

func NewVigilarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VigilarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vigilar",
		Short: "Quedarse esperando conexión y reenviar la cola al recuperarla",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return runVigilar(ctx, a, opts.Interval)
			})
		},
	}
	cmd.Flags().DurationVar(&opts.Interval, "intervalo", 30*time.Second, "cada cuánto probar la conexión")
	return cmd
}

func runVigilar(ctx context.Context, a *app, interval time.Duration) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if !sess.Valid(a.now()) {
		return NewExitError(ExitCommandError, "la sesión venció: ejecutá 'puntos login'")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := a.pipeline(sess, interval)
	if p.monitor.Check(ctx) {
		if _, err := a.drain(ctx, p); err != nil {
			return err
		}
	}
	a.out.warnf("Vigilando la conexión cada %s (Ctrl+C para salir)…", interval)
	p.monitor.Run(ctx)
	return nil
}
