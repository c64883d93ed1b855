package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mannypuntos/internal/config"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
)

func TestLogin(t *testing.T) {
	h := newHarness(t)
	c := h.cliente(t, "5491100000001", 70)
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, h.db.Model(c).Updates(map[string]any{"pin_hash": string(hash), "rol": model.RolAdmin}).Error)
	sinPIN := h.cliente(t, "5491100000002", 0)

	cfg := &config.Config{JWTSecret: "auth-test-secret", JWTExpirationHours: 2}
	svc := NewAuthService(repository.NewClienteRepository(h.db), cfg)
	ctx := context.Background()

	resp, err := svc.Login(ctx, dto.LoginRequest{Telefono: c.Telefono, PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, 7200, resp.ExpiresIn)
	assert.Equal(t, 70, resp.Cliente.SaldoPuntos)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID.String(), claims["user_id"])
	assert.Equal(t, model.RolAdmin, claims["rol"])

	for _, req := range []dto.LoginRequest{
		{Telefono: c.Telefono, PIN: "0000"},
		{Telefono: "5490000000000", PIN: "1234"},
		{Telefono: sinPIN.Telefono, PIN: ""},
	} {
		_, err := svc.Login(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidCredentials, req.Telefono)
	}
}
