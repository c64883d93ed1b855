package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"mannypuntos/internal/client"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/offline"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitRejected     = 1 // the server refused the action on its merits
	ExitCommandError = 2 // bad arguments, no session, unreadable store
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that never reached
// the server (flag parsing, local store) are command errors.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// apiExitError turns an API rejection into a one-line message with its code.
func apiExitError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Rejected() {
		msg := apiErr.Detail
		if apiErr.Code != "" {
			msg = fmt.Sprintf("%s [%s]", apiErr.Detail, apiErr.Code)
		}
		return NewExitError(ExitRejected, msg)
	}
	if errors.Is(err, client.ErrUnavailable) {
		return WrapExitError(ExitRejected, "servidor no disponible", err)
	}
	return err
}

// response is the JSON envelope printed with --format json.
type response struct {
	Status string      `json:"status"` // ok | queued | error
	Data   interface{} `json:"data,omitempty"`
	Error  *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// output renders command results as text or JSON.
type output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

func (o *output) ok(data interface{}) error {
	if o.format == "json" {
		return json.NewEncoder(o.w).Encode(response{Status: "ok", Data: data})
	}
	fmt.Fprintln(o.w, describe(data))
	return nil
}

func (o *output) queued(a offline.Action, reason string) error {
	if o.format == "json" {
		return json.NewEncoder(o.w).Encode(response{Status: "queued", Data: actionView(a)})
	}
	fmt.Fprintf(o.w, "Sin conexión (%s): %s quedó en cola como %s y se enviará al reconectar.\n",
		reason, a.Tipo, shortID(a.ID.String()))
	return nil
}

func (o *output) fail(err error) {
	if o.format == "json" {
		_ = json.NewEncoder(o.w).Encode(response{
			Status: "error",
			Error:  &errorBody{Code: GetExitCode(err), Message: err.Error()},
		})
		return
	}
	fmt.Fprintln(o.errW, "Error:", err)
}

func (o *output) warnf(format string, args ...interface{}) {
	fmt.Fprintf(o.errW, format+"\n", args...)
}

// describe is the human-readable form of each result type.
func describe(v interface{}) string {
	switch r := v.(type) {
	case *dto.CanjeResponse:
		s := fmt.Sprintf("Canje %s: %s por %d puntos (%s)", shortID(r.ID), r.ProductoNombre, r.PuntosCanjeados, r.Estado)
		if r.SaldoRestante != nil {
			s += fmt.Sprintf(". Saldo restante: %d", *r.SaldoRestante)
		}
		return s
	case *dto.SaldoResponse:
		return fmt.Sprintf("Movimiento de %+d aplicado. Saldo: %d", r.Delta, r.SaldoPuntos)
	case *dto.ReclamoResponse:
		if r.Beneficio != nil {
			return fmt.Sprintf("Regalo %s reclamado: %s", r.Codigo, *r.Beneficio)
		}
		return fmt.Sprintf("Regalo %s reclamado: +%d puntos. Saldo: %d", r.Codigo, r.Puntos, r.SaldoPuntos)
	case fmt.Stringer:
		return r.String()
	default:
		b, _ := json.MarshalIndent(v, "", "  ")
		return string(b)
	}
}

// actionJSON is the printed form of a queued action.
type actionJSON struct {
	ID          string          `json:"id"`
	Tipo        string          `json:"tipo"`
	Estado      string          `json:"estado"`
	Intentos    int             `json:"intentos"`
	UltimoError string          `json:"ultimo_error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

func actionView(a offline.Action) actionJSON {
	return actionJSON{
		ID:          a.ID.String(),
		Tipo:        a.Tipo,
		Estado:      a.Estado,
		Intentos:    a.Intentos,
		UltimoError: a.UltimoError,
		CreatedAt:   a.CreatedAt.Format("2006-01-02 15:04:05"),
		Payload:     a.Payload,
	}
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
