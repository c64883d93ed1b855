package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/offline"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	PIN string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login <telefono>",
		Short: "Iniciar sesión (requiere conexión)",
		Long: `Inicia sesión con teléfono y PIN y guarda el token y el perfil localmente.

Ejemplo:
  puntos login 5491155550000 --pin 1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return runLogin(ctx, a, args[0], opts.PIN)
			})
		},
	}
	cmd.Flags().StringVar(&opts.PIN, "pin", "", "PIN de acceso")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func runLogin(ctx context.Context, a *app, telefono, pin string) error {
	resp, err := a.api(nil).Login(ctx, dto.LoginRequest{Telefono: telefono, PIN: pin})
	if err != nil {
		return apiExitError(err)
	}
	sess, err := offline.NewSession(resp, a.now())
	if err != nil {
		return err
	}
	if err := a.sessions.Save(ctx, sess); err != nil {
		return err
	}
	if err := a.profiles.Save(ctx, resp.Cliente, a.now()); err != nil {
		return err
	}
	return a.out.ok(profileView{Cliente: resp.Cliente, Pendientes: -1})
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cerrar sesión (la cola pendiente se conserva)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.sessions.Clear(ctx); err != nil {
					return err
				}
				return a.out.ok(message("Sesión cerrada."))
			})
		},
	}
}

// message is a plain confirmation line.
type message string

func (m message) String() string { return string(m) }

func (m message) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"mensaje": string(m)})
}
