package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mannypuntos/internal/client"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/offline"
)

// profileView is a client profile plus what the local copy knows about it.
type profileView struct {
	Cliente dto.ClienteResponse `json:"cliente"`
	// Desactualizado is set when the server was unreachable and the cached
	// copy from that date is shown instead.
	Desactualizado string `json:"desactualizado,omitempty"`
	// Pendientes counts queued actions not yet reflected in the balance;
	// -1 hides the line.
	Pendientes int `json:"pendientes"`
}

func (p profileView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", p.Cliente.Nombre, p.Cliente.Telefono)
	fmt.Fprintf(&b, "Saldo: %d puntos · Nivel: %s", p.Cliente.SaldoPuntos, p.Cliente.Nivel)
	if p.Cliente.Rol != "" && p.Cliente.Rol != model.RolCliente {
		fmt.Fprintf(&b, " · Rol: %s", p.Cliente.Rol)
	}
	if p.Desactualizado != "" {
		fmt.Fprintf(&b, "\nSin conexión: datos guardados el %s", p.Desactualizado)
	}
	if p.Pendientes > 0 {
		fmt.Fprintf(&b, "\n%d acción(es) en cola todavía no reflejadas en el saldo", p.Pendientes)
	}
	return b.String()
}

func NewPerfilCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "perfil",
		Short: "Ver saldo y nivel (usa la copia local sin conexión)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, runPerfil)
		},
	}
}

func runPerfil(ctx context.Context, a *app) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	pendientes, err := countPending(ctx, a.queue)
	if err != nil {
		return err
	}

	c, err := a.api(sess).GetCliente(ctx, sess.ClienteID)
	if err == nil {
		if err := a.profiles.Save(ctx, *c, a.now()); err != nil {
			return err
		}
		return a.out.ok(profileView{Cliente: *c, Pendientes: pendientes})
	}
	if !errors.Is(err, client.ErrUnavailable) {
		return apiExitError(err)
	}

	prof, ok, lerr := a.profiles.Load(ctx)
	if lerr != nil {
		return lerr
	}
	if !ok {
		return WrapExitError(ExitRejected, "servidor no disponible y no hay perfil guardado", err)
	}
	return a.out.ok(profileView{
		Cliente:        prof.ClienteResponse,
		Desactualizado: prof.FetchedAt.Local().Format("02/01/2006 15:04"),
		Pendientes:     pendientes,
	})
}

func countPending(ctx context.Context, q *offline.Queue) (int, error) {
	actions, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, act := range actions {
		if act.Estado == offline.EstadoPending {
			n++
		}
	}
	return n, nil
}

// catalogView lists the redeemable items.
type catalogView []dto.ProductoResponse

func (c catalogView) String() string {
	var b strings.Builder
	for i, p := range c {
		if i > 0 {
			b.WriteByte('\n')
		}
		stock := "servicio"
		if p.Stock != nil {
			stock = fmt.Sprintf("stock %d", *p.Stock)
		}
		fmt.Fprintf(&b, "%s  %-30s %6d pts  (%s)", p.ID, p.Nombre, p.PuntosRequeridos, stock)
	}
	if len(c) == 0 {
		return "El catálogo está vacío."
	}
	return b.String()
}

func NewCatalogoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalogo",
		Short: "Listar productos y servicios canjeables (requiere conexión)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				sess, err := a.session(ctx)
				if err != nil {
					return err
				}
				productos, err := a.api(sess).ListProductos(ctx)
				if err != nil {
					return apiExitError(err)
				}
				return a.out.ok(catalogView(productos))
			})
		},
	}
}
