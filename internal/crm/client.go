// Package crm talks to the external CRM (a Notion-style pages API) that is the
// business's system of record for clients and canjes.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mannypuntos/internal/model"
)

// APIVersion is sent on every request.
const APIVersion = "2022-06-28"

// ErrTransient marks failures worth retrying: network errors, timeouts,
// rate limiting and 5xx responses.
var ErrTransient = errors.New("crm: transient failure")

// APIError is a non-retryable rejection (4xx other than 429).
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsTransient reports whether err should count against the circuit breaker.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Databases holds the CRM database ids per entity type.
type Databases struct {
	Clientes string
	Canjes   string
}

// Client is an HTTP client for the CRM pages API.
type Client struct {
	baseURL    string
	token      string
	dbs        Databases
	mapping    *Mapping
	httpClient *http.Client
}

func NewClient(baseURL, token string, dbs Databases, mapping *Mapping, timeout time.Duration) *Client {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		dbs:        dbs,
		mapping:    mapping,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Mapping returns the property mapping the client writes with.
func (c *Client) Mapping() *Mapping { return c.mapping }

type pageRef struct {
	ID string `json:"id"`
}

// FindByLocalID looks up the page whose local-id property equals localID.
// The boolean is false when no page exists.
func (c *Client) FindByLocalID(ctx context.Context, tipo, localID string) (string, bool, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property":  c.mapping.IDLocalProperty(tipo),
			"rich_text": map[string]any{"equals": localID},
		},
		"page_size": 1,
	}
	var out struct {
		Results []pageRef `json:"results"`
	}
	path := fmt.Sprintf("/v1/databases/%s/query", c.database(tipo))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", false, err
	}
	if len(out.Results) == 0 {
		return "", false, nil
	}
	return out.Results[0].ID, true, nil
}

// CreatePage creates a page in the database of tipo and returns its id.
func (c *Client) CreatePage(ctx context.Context, tipo string, props Properties) (string, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": c.database(tipo)},
		"properties": props,
	}
	var out pageRef
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("crm: create page: empty id in response")
	}
	return out.ID, nil
}

// UpdatePage overwrites the given properties of pageID.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props Properties) error {
	body := map[string]any{"properties": props}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

func (c *Client) database(tipo string) string {
	if tipo == model.EntidadCanje {
		return c.dbs.Canjes
	}
	return c.dbs.Clientes
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("crm: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", APIVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s returned %d", ErrTransient, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm: decode response: %w", err)
	}
	return nil
}
