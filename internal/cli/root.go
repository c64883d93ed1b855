// Package cli implements the puntos command: the client side of Manny Puntos,
// which keeps working without connectivity by queuing actions locally and
// replaying them in order once the server is reachable.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands. Every flag can also be set
// with a MANNY_ environment variable (MANNY_API, MANNY_STORE, ...).
type RootOptions struct {
	APIURL  string
	Store   string
	Format  string
	Timeout time.Duration
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the puntos CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{Format: "text"}
	v := viper.New()
	v.SetEnvPrefix("MANNY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "puntos",
		Short: "Cliente de Manny Puntos con cola offline",
		Long: `Cliente de Manny Puntos.

Sin conexión, los canjes, cambios de estado, reclamos y ajustes quedan en una
cola local y se envían en el mismo orden al reconectar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.APIURL = strings.TrimRight(v.GetString("api"), "/")
			opts.Store = v.GetString("store")
			opts.Format = v.GetString("format")
			opts.Timeout = v.GetDuration("timeout")
			opts.Verbose = v.GetBool("verbose")

			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("api", "http://localhost:8000", "URL base de la API")
	pf.String("store", defaultStorePath(), "archivo sqlite local (sesión, perfil y cola)")
	pf.String("format", "text", "output format (json|text)")
	pf.Duration("timeout", 10*time.Second, "timeout de cada llamada HTTP")
	pf.BoolP("verbose", "v", false, "verbose output")
	_ = v.BindPFlags(pf)

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewPerfilCommand(opts))
	cmd.AddCommand(NewCatalogoCommand(opts))
	cmd.AddCommand(NewCanjearCommand(opts))
	cmd.AddCommand(NewEstadoCommand(opts))
	cmd.AddCommand(NewReclamarCommand(opts))
	cmd.AddCommand(NewAjustarCommand(opts))
	cmd.AddCommand(NewColaCommand(opts))
	cmd.AddCommand(NewDrenarCommand(opts))
	cmd.AddCommand(NewDescartarCommand(opts))
	cmd.AddCommand(NewReintentarCommand(opts))
	cmd.AddCommand(NewVigilarCommand(opts))

	return cmd, opts
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		out := &output{format: opts.Format, w: stdout, errW: stderr}
		out.fail(err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "puntos.db"
	}
	return filepath.Join(dir, "manny", "puntos.db")
}

// configureLogging keeps library logs on stderr, quiet unless verbose.
func configureLogging(w io.Writer, verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}
