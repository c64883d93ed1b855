// Package crmtwin is an in-memory stand-in for the CRM pages API. It serves
// the three endpoints the sync adapter uses and lets tests inject failures.
package crmtwin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Page is one stored CRM page.
type Page struct {
	ID         string                     `json:"id"`
	DatabaseID string                     `json:"database_id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Twin holds all pages in memory.
type Twin struct {
	mu      sync.Mutex
	pages   map[string]*Page
	order   []string
	nextID  int
	faults  []int // statuses to return for the next requests, FIFO
	creates int
	updates int
	queries int
}

func New() *Twin {
	return &Twin{pages: make(map[string]*Page)}
}

// Handler returns the chi router serving the twin.
func (t *Twin) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Route("/v1", func(r chi.Router) {
		r.Use(t.faultInjection)
		r.Post("/pages", t.createPage)
		r.Patch("/pages/{id}", t.updatePage)
		r.Post("/databases/{id}/query", t.queryDatabase)
	})
	r.Get("/admin/pages", t.listPages)
	return r
}

// FailNext makes the next len(statuses) API requests answer with those
// statuses instead of being served.
func (t *Twin) FailNext(statuses ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = append(t.faults, statuses...)
}

// Counts returns how many creates, updates and queries were served.
func (t *Twin) Counts() (creates, updates, queries int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creates, t.updates, t.queries
}

// Pages returns a copy of every stored page in creation order.
func (t *Twin) Pages() []Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Page, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, clonePage(t.pages[id]))
	}
	return out
}

// Page returns a copy of one page.
func (t *Twin) Page(id string) (Page, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[id]
	if !ok {
		return Page{}, false
	}
	return clonePage(p), true
}

// Seed stores a page directly, as if it had been created earlier.
func (t *Twin) Seed(databaseID string, props map[string]any) string {
	raw := make(map[string]json.RawMessage, len(props))
	for k, v := range props {
		b, _ := json.Marshal(v)
		raw[k] = b
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(databaseID, raw)
}

func (t *Twin) insertLocked(databaseID string, props map[string]json.RawMessage) string {
	t.nextID++
	id := fmt.Sprintf("page-%04d", t.nextID)
	t.pages[id] = &Page{ID: id, DatabaseID: databaseID, Properties: props}
	t.order = append(t.order, id)
	return id
}

func (t *Twin) faultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.mu.Lock()
		var status int
		if len(t.faults) > 0 {
			status = t.faults[0]
			t.faults = t.faults[1:]
		}
		t.mu.Unlock()
		if status != 0 {
			writeError(w, status, "injected_fault", "injected fault")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Twin) createPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if req.Parent.DatabaseID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "parent.database_id is required")
		return
	}

	t.mu.Lock()
	id := t.insertLocked(req.Parent.DatabaseID, req.Properties)
	t.creates++
	t.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": id})
}

func (t *Twin) updatePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "page not found")
		return
	}
	for k, v := range req.Properties {
		p.Properties[k] = v
	}
	t.updates++
	writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": id})
}

func (t *Twin) queryDatabase(w http.ResponseWriter, r *http.Request) {
	dbID := chi.URLParam(r, "id")
	var req struct {
		Filter struct {
			Property string `json:"property"`
			RichText struct {
				Equals string `json:"equals"`
			} `json:"rich_text"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries++
	results := []map[string]any{}
	for _, id := range t.order {
		p := t.pages[id]
		if p.DatabaseID != dbID {
			continue
		}
		if req.Filter.Property != "" && richTextContent(p.Properties[req.Filter.Property]) != req.Filter.RichText.Equals {
			continue
		}
		results = append(results, map[string]any{"object": "page", "id": p.ID})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": results})
}

func (t *Twin) listPages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, t.Pages())
}

// richTextContent extracts the plain text of a rich_text property value.
func richTextContent(raw json.RawMessage) string {
	var v struct {
		RichText []struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		} `json:"rich_text"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || len(v.RichText) == 0 {
		return ""
	}
	return v.RichText[0].Text.Content
}

func clonePage(p *Page) Page {
	props := make(map[string]json.RawMessage, len(p.Properties))
	for k, v := range p.Properties {
		props[k] = v
	}
	return Page{ID: p.ID, DatabaseID: p.DatabaseID, Properties: props}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"object": "error", "status": status, "code": code, "message": message})
}

// Prop decodes one property of p into dst.
func (p Page) Prop(name string, dst any) error {
	raw, ok := p.Properties[name]
	if !ok {
		return fmt.Errorf("crmtwin: page %s has no property %q", p.ID, name)
	}
	return json.Unmarshal(raw, dst)
}
