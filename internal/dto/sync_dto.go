package dto

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type SyncTaskFilter struct {
	Estado      string `form:"estado"       validate:"omitempty,oneof=pending in_flight done failed"`
	EntidadTipo string `form:"entidad_tipo" validate:"omitempty,oneof=cliente canje"`
	Page        int    `form:"page,default=1"   validate:"min=1"`
	Limit       int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type AuditoriaFilter struct {
	Evento    string `form:"evento"`
	EntidadID string `form:"entidad_id"`
	Page      int    `form:"page,default=1"    validate:"min=1"`
	Limit     int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SyncTaskResponse struct {
	ID          uint64  `json:"id"`
	EntidadTipo string  `json:"entidad_tipo"`
	EntidadID   string  `json:"entidad_id"`
	Operacion   string  `json:"operacion"`
	Estado      string  `json:"estado"`
	Resultado   string  `json:"resultado,omitempty"`
	Intentos    int     `json:"intentos"`
	UltimoError *string `json:"ultimo_error"`
	NextRetryAt *string `json:"next_retry_at"`
	CreatedAt   string  `json:"created_at"`
}

type SyncTaskListResponse struct {
	Data     []SyncTaskResponse `json:"data"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
	Resumen  map[string]int64   `json:"resumen"` // count per estado
	CRMState string             `json:"crm_circuit"`
}

type AuditoriaResponse struct {
	ID          string  `json:"id"`
	Evento      string  `json:"evento"`
	EntidadTipo string  `json:"entidad_tipo"`
	EntidadID   string  `json:"entidad_id"`
	Accion      string  `json:"accion"`
	Exito       bool    `json:"exito"`
	Error       *string `json:"error"`
	Actor       string  `json:"actor"`
	CreatedAt   string  `json:"created_at"`
}

type AuditoriaListResponse struct {
	Data  []AuditoriaResponse `json:"data"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}
