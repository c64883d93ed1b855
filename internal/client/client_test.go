package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mannypuntos/internal/dto"
)

func TestClient_SendsTokenAndOfflineID(t *testing.T) {
	var gotAuth, gotOffline string
	var gotBody dto.CrearCanjeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOffline = r.Header.Get(OfflineIDHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/v1/canjes", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c-1","estado":"pendiente_entrega","puntos_canjeados":300,"saldo_restante":200}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second).WithToken("tok")
	productoID := uuid.NewString()
	out, err := c.CrearCanje(context.Background(), dto.CrearCanjeRequest{ProductoID: productoID}, "off-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "off-1", gotOffline)
	assert.Equal(t, productoID, gotBody.ProductoID)
	assert.Equal(t, 300, out.PuntosCanjeados)
	require.NotNil(t, out.SaldoRestante)
	assert.Equal(t, 200, *out.SaldoRestante)
}

func TestClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		status   int
		body     string
		rejected bool
		code     string
	}{
		{http.StatusConflict, `{"detail":"Faltan 50 puntos","code":"insufficient_points"}`, true, "insufficient_points"},
		{http.StatusNotFound, `{"detail":"Link no encontrado","code":"gift_not_found"}`, true, "gift_not_found"},
		{http.StatusUnprocessableEntity, `{"detail":"Error de validacion","code":"validation_error"}`, true, "validation_error"},
		{http.StatusServiceUnavailable, `oops`, false, ""},
		{http.StatusTooManyRequests, `{"detail":"Demasiadas solicitudes"}`, false, ""},
		{http.StatusUnauthorized, `{"detail":"Token expirado"}`, true, ""},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := New(srv.URL, "t", time.Second).ReclamarRegalo(context.Background(), "ABC", "")
		srv.Close()

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), tc.status)
		assert.Equal(t, tc.status, apiErr.Status)
		assert.Equal(t, tc.rejected, apiErr.Rejected(), tc.status)
		assert.Equal(t, !tc.rejected, errors.Is(err, ErrUnavailable), tc.status)
		assert.Equal(t, tc.code, apiErr.Code)
		assert.NotEmpty(t, apiErr.Detail)
	}
}

func TestClient_NetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, "", 200*time.Millisecond).Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
