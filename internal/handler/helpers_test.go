package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"mannypuntos/internal/service"
)

func TestRespondError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrUnknownClient, http.StatusNotFound, "unknown_client"},
		{service.ErrGiftNotFound, http.StatusNotFound, "gift_not_found"},
		{&service.BusinessError{Code: "insufficient_points", Message: "faltan 50"}, http.StatusConflict, "insufficient_points"},
		{service.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
		{service.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{service.ErrGiftAlreadyClaimed, http.StatusConflict, "gift_already_claimed"},
		{service.ErrGiftExpired, http.StatusUnprocessableEntity, "gift_expired"},
		{service.ErrProductUnavailable, http.StatusUnprocessableEntity, "product_unavailable"},
		{&service.BusinessError{Code: "product_unavailable", Message: "agotado", Cause: service.ErrOutOfStock}, http.StatusConflict, "product_unavailable"},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{service.ErrOfflineIDConflict, http.StatusConflict, "offline_id_conflict"},
		{fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), http.StatusConflict, "duplicate"},
		{errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
			} else {
				assert.NotContains(t, w.Body.String(), "connection reset")
			}
		})
	}
}

func TestOfflineIDHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	id, ok := offlineID(c)
	assert.True(t, ok)
	assert.Nil(t, id)

	c.Request.Header.Set("X-Offline-ID", "a1")
	id, ok = offlineID(c)
	assert.True(t, ok)
	if assert.NotNil(t, id) {
		assert.Equal(t, "a1", *id)
	}
}
