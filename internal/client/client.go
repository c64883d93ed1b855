// Package client is the HTTP client for the Manny Puntos API, used by the
// offline queue and the puntos CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"mannypuntos/internal/dto"
)

// OfflineIDHeader carries the client-generated action id so the server can
// return the original result when a queued action is replayed.
const OfflineIDHeader = "X-Offline-ID"

// ErrUnavailable wraps network failures and 5xx answers: the server may be
// unreachable, so the call is worth retrying later.
var ErrUnavailable = errors.New("api: unavailable")

// APIError is a non-2xx answer decoded from the {"detail","code"} envelope.
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Detail)
}

// Rejected reports whether the server refused the request on its merits.
// Retrying a rejected request cannot succeed until the world changes.
func (e *APIError) Rejected() bool {
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// Unwrap lets errors.Is(err, ErrUnavailable) match every answer that is
// not a rejection (5xx, 408, 429).
func (e *APIError) Unwrap() error {
	if !e.Rejected() {
		return ErrUnavailable
	}
	return nil
}

// Client talks to the API with an optional bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy authenticated with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	var out dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProductos(ctx context.Context) ([]dto.ProductoResponse, error) {
	var out dto.CatalogoResponse
	if err := c.do(ctx, http.MethodGet, "/v1/productos", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetCliente(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error) {
	var out dto.ClienteResponse
	if err := c.do(ctx, http.MethodGet, "/v1/clientes/"+id.String(), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AplicarTransaccion(ctx context.Context, clienteID uuid.UUID, req dto.AplicarTransaccionRequest, offlineID string) (*dto.SaldoResponse, error) {
	var out dto.SaldoResponse
	if err := c.do(ctx, http.MethodPost, "/v1/clientes/"+clienteID.String()+"/transacciones", offlineID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CrearCanje(ctx context.Context, req dto.CrearCanjeRequest, offlineID string) (*dto.CanjeResponse, error) {
	var out dto.CanjeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/canjes", offlineID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AvanzarEstado(ctx context.Context, canjeID uuid.UUID, req dto.AvanzarEstadoRequest, offlineID string) (*dto.CanjeResponse, error) {
	var out dto.CanjeResponse
	if err := c.do(ctx, http.MethodPatch, "/v1/canjes/"+canjeID.String()+"/estado", offlineID, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReclamarRegalo(ctx context.Context, codigo, offlineID string) (*dto.ReclamoResponse, error) {
	var out dto.ReclamoResponse
	if err := c.do(ctx, http.MethodPost, "/v1/regalos/"+url.PathEscape(codigo)+"/reclamar", offlineID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, offlineID string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if offlineID != "" {
		req.Header.Set(OfflineIDHeader, offlineID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Detail string `json:"detail"`
			Code   string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			apiErr.Detail = envelope.Detail
			apiErr.Code = envelope.Code
		}
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
