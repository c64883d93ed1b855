package dto

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID               string  `json:"id"`
	Nombre           string  `json:"nombre"`
	Tipo             string  `json:"tipo"`
	PuntosRequeridos int     `json:"puntos_requeridos"`
	// Stock is nil for servicios, which are never out of stock.
	Stock     *int    `json:"stock"`
	ImagenURL *string `json:"imagen_url"`
}

type CatalogoResponse struct {
	Data []ProductoResponse `json:"data"`
}
