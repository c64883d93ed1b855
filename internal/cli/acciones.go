package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/offline"
)

// CanjearOptions holds flags for the canjear command.
type CanjearOptions struct {
	*RootOptions
	ClienteID string
}

func NewCanjearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CanjearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "canjear <producto-id>",
		Short: "Canjear puntos por un producto o servicio",
		Long: `Canjea puntos por un producto o servicio del catálogo.

Sin conexión el canje queda en cola; el saldo y el stock se validan recién al
enviarlo, y si no alcanzan el canje queda marcado como fallido en la cola.

Ejemplo:
  puntos canjear 3f2a9c4e-0b1d-4c8e-9a57-1d2e3f4a5b6c`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productoID, err := parseID("producto", args[0])
			if err != nil {
				return err
			}
			req := dto.CrearCanjeRequest{ProductoID: productoID.String()}
			if opts.ClienteID != "" {
				clienteID, err := parseID("cliente", opts.ClienteID)
				if err != nil {
					return err
				}
				req.ClienteID = clienteID.String()
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if req.ClienteID != "" {
					if err := requireAdmin(ctx, a); err != nil {
						return err
					}
				}
				return a.submit(ctx, offline.TipoCanje, req)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ClienteID, "cliente", "", "canjear para otro cliente (solo admin)")
	return cmd
}

func NewEstadoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "estado <canje-id> <estado>",
		Short: "Avanzar el estado de un canje (admin)",
		Long: `Avanza un canje al estado siguiente: pendiente_entrega → en_lista (agendado) →
entregado → completado. Acepta mayúsculas y acentos ("Entregado").`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			canjeID, err := parseID("canje", args[0])
			if err != nil {
				return err
			}
			estado, ok := model.NormalizarEstado(args[1])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("estado desconocido %q", args[1]))
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := requireAdmin(ctx, a); err != nil {
					return err
				}
				return a.submit(ctx, offline.TipoEstadoCanje, offline.EstadoCanjePayload{CanjeID: canjeID, Estado: estado})
			})
		},
	}
}

func NewReclamarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reclamar <codigo>",
		Short: "Reclamar un link de regalo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return a.submit(ctx, offline.TipoReclamo, offline.ReclamoPayload{Codigo: args[0]})
			})
		},
	}
}

// AjustarOptions holds flags for the ajustar command.
type AjustarOptions struct {
	*RootOptions
	Motivo string
}

func NewAjustarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AjustarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ajustar <cliente-id> <delta>",
		Short: "Sumar o restar puntos a un cliente (admin)",
		Long: `Aplica un movimiento manual al saldo de un cliente. El delta puede ser negativo;
el servidor rechaza cualquier movimiento que deje el saldo por debajo de cero.

Ejemplo:
  puntos ajustar 8b1c... -- -50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clienteID, err := parseID("cliente", args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil || delta == 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("delta inválido %q", args[1]))
			}
			if opts.Motivo != model.MotivoAjusteManual && opts.Motivo != model.MotivoAcumulacion {
				return NewExitError(ExitCommandError, fmt.Sprintf("motivo inválido %q", opts.Motivo))
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := requireAdmin(ctx, a); err != nil {
					return err
				}
				return a.submit(ctx, offline.TipoTransaccion, offline.TransaccionPayload{
					ClienteID: clienteID,
					Delta:     delta,
					Motivo:    opts.Motivo,
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Motivo, "motivo", model.MotivoAjusteManual, "ajuste_manual | acumulacion")
	return cmd
}

func parseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, NewExitError(ExitCommandError, fmt.Sprintf("id de %s inválido %q", what, s))
	}
	return id, nil
}

// requireAdmin checks the stored role up front so an admin-only action is
// not queued just to be refused on replay.
func requireAdmin(ctx context.Context, a *app) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if !sess.EsAdmin() {
		return NewExitError(ExitRejected, "esta acción requiere una sesión de admin")
	}
	return nil
}
