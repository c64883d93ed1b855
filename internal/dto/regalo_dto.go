package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearLinkRegaloRequest struct {
	// Codigo is generated when empty.
	Codigo      string  `json:"codigo"       validate:"omitempty,alphanum,min=4,max=64"`
	Tipo        string  `json:"tipo"         validate:"required,oneof=puntos beneficio"`
	Puntos      int     `json:"puntos"       validate:"required_if=Tipo puntos,min=0"`
	Beneficio   *string `json:"beneficio"    validate:"required_if=Tipo beneficio,omitempty,min=2,max=200"`
	EsCampana   bool    `json:"es_campana"`
	Vigencia    string  `json:"vigencia"     validate:"omitempty,oneof=sin_vencimiento fecha dias"`
	ExpiraEn    *string `json:"expira_en"    validate:"required_if=Vigencia fecha,omitempty,datetime=2006-01-02"`
	DiasValidez *int    `json:"dias_validez" validate:"required_if=Vigencia dias,omitempty,min=1"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LinkRegaloResponse struct {
	ID        string  `json:"id"`
	Codigo    string  `json:"codigo"`
	Tipo      string  `json:"tipo"`
	Puntos    int     `json:"puntos"`
	Beneficio *string `json:"beneficio"`
	EsCampana bool    `json:"es_campana"`
	Vigencia  string  `json:"vigencia"`
	ExpiraEn  *string `json:"expira_en"`
}

type ReclamoResponse struct {
	Codigo      string  `json:"codigo"`
	Tipo        string  `json:"tipo"`
	Puntos      int     `json:"puntos"`
	Beneficio   *string `json:"beneficio"`
	SaldoPuntos int     `json:"saldo_puntos"`
}
