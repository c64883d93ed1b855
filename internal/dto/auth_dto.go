package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Telefono string `json:"telefono" validate:"required,min=8,max=20"`
	PIN      string `json:"pin"      validate:"required,min=4,max=12"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"` // seconds
	Cliente     ClienteResponse `json:"cliente"`
}
