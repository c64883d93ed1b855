package crm

import (
	_ "embed"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"mannypuntos/internal/model"
)

//go:embed mapping.yaml
var defaultMapping []byte

// ClienteFields names the client database properties.
type ClienteFields struct {
	IDLocal     string `yaml:"id_local"`
	Nombre      string `yaml:"nombre"`
	Telefono    string `yaml:"telefono"`
	Nivel       string `yaml:"nivel"`
	SaldoPuntos string `yaml:"saldo_puntos"`
	Creado      string `yaml:"creado"`
}

// CanjeFields names the canje database properties.
type CanjeFields struct {
	IDLocal   string `yaml:"id_local"`
	Titulo    string `yaml:"titulo"`
	Cliente   string `yaml:"cliente"`
	Telefono  string `yaml:"telefono"`
	Producto  string `yaml:"producto"`
	Tipo      string `yaml:"tipo"`
	Puntos    string `yaml:"puntos"`
	Estado    string `yaml:"estado"`
	Creado    string `yaml:"creado"`
	Entregado string `yaml:"entregado"`
}

// Mapping translates local snapshots into CRM page properties.
type Mapping struct {
	Cliente ClienteFields     `yaml:"cliente"`
	Canje   CanjeFields       `yaml:"canje"`
	Estados map[string]string `yaml:"estados"`
	Niveles map[string]string `yaml:"niveles"`
	// ZonaHoraria is the IANA zone dates are truncated in. Empty means UTC.
	ZonaHoraria string `yaml:"zona_horaria"`

	loc *time.Location
}

// DefaultMapping returns the embedded mapping.
func DefaultMapping() *Mapping {
	m, err := parseMapping(defaultMapping)
	if err != nil {
		panic(fmt.Sprintf("crm: embedded mapping is invalid: %v", err))
	}
	return m
}

// LoadMapping reads a mapping file; an empty path yields the embedded one.
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crm: read mapping: %w", err)
	}
	return parseMapping(data)
}

func parseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("crm: parse mapping: %w", err)
	}
	if m.Cliente.IDLocal == "" || m.Canje.IDLocal == "" {
		return nil, fmt.Errorf("crm: mapping must name the id_local property of both databases")
	}
	m.loc = time.UTC
	if m.ZonaHoraria != "" {
		loc, err := time.LoadLocation(m.ZonaHoraria)
		if err != nil {
			return nil, fmt.Errorf("crm: zona_horaria: %w", err)
		}
		m.loc = loc
	}
	return &m, nil
}

// EstadoLabel returns the CRM vocabulary for a local estado. agendado maps to
// the en_lista label. Unknown estados pass through unchanged.
func (m *Mapping) EstadoLabel(estado string) string {
	if canon, ok := model.NormalizarEstado(estado); ok {
		estado = canon
	}
	if label, ok := m.Estados[estado]; ok {
		return label
	}
	return estado
}

// IDLocalProperty returns the property holding the local id for tipo.
func (m *Mapping) IDLocalProperty(tipo string) string {
	if tipo == model.EntidadCanje {
		return m.Canje.IDLocal
	}
	return m.Cliente.IDLocal
}

// ClienteProperties renders the full client state.
func (m *Mapping) ClienteProperties(s model.ClienteSnapshot) Properties {
	f := m.Cliente
	nivel := s.Nivel
	if label, ok := m.Niveles[nivel]; ok {
		nivel = label
	}
	return Properties{
		f.IDLocal:     richText(s.ID.String()),
		f.Nombre:      title(s.Nombre),
		f.Telefono:    phone(s.Telefono),
		f.Nivel:       selectOption(nivel),
		f.SaldoPuntos: number(s.SaldoPuntos),
		f.Creado:      m.date(&s.CreatedAt),
	}
}

// CanjeProperties renders the full canje state.
func (m *Mapping) CanjeProperties(s model.CanjeSnapshot) Properties {
	f := m.Canje
	props := Properties{
		f.IDLocal:   richText(s.ID.String()),
		f.Titulo:    title(fmt.Sprintf("%s - %s", s.ProductoNombre, s.ClienteNombre)),
		f.Cliente:   richText(s.ClienteNombre),
		f.Telefono:  phone(s.ClienteTelefono),
		f.Producto:  richText(s.ProductoNombre),
		f.Tipo:      selectOption(s.ProductoTipo),
		f.Puntos:    number(s.PuntosCanjeados),
		f.Estado:    status(m.EstadoLabel(s.Estado)),
		f.Creado:    m.date(&s.CreatedAt),
		f.Entregado: m.date(s.EntregadoAt),
	}
	return props
}

// Properties is a page property set in the CRM wire format.
type Properties map[string]any

func title(s string) map[string]any {
	return map[string]any{"title": []any{map[string]any{"text": map[string]any{"content": s}}}}
}

func richText(s string) map[string]any {
	return map[string]any{"rich_text": []any{map[string]any{"text": map[string]any{"content": s}}}}
}

func phone(s string) map[string]any { return map[string]any{"phone_number": s} }

func number(n int) map[string]any { return map[string]any{"number": n} }

func selectOption(s string) map[string]any {
	return map[string]any{"select": map[string]any{"name": s}}
}

func status(s string) map[string]any {
	return map[string]any{"status": map[string]any{"name": s}}
}

// date truncates to the calendar day in the mapping's zone, whatever zone t
// carries; nil clears the property.
func (m *Mapping) date(t *time.Time) map[string]any {
	if t == nil || t.IsZero() {
		return map[string]any{"date": nil}
	}
	loc := m.loc
	if loc == nil {
		loc = time.UTC
	}
	return map[string]any{"date": map[string]any{"start": t.In(loc).Format("2006-01-02")}}
}
