package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/service"
)

type ClientesHandler struct{ svc service.LedgerService }

func NewClientesHandler(svc service.LedgerService) *ClientesHandler {
	return &ClientesHandler{svc: svc}
}

// Obtener godoc
// @Summary      Perfil y saldo de un cliente
// @Description  Un cliente solo puede ver su propio perfil; los admins ven cualquiera.
// @Tags         clientes
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID del cliente"
// @Success      200 {object} dto.ClienteResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/clientes/{id} [get]
func (h *ClientesHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if !currentCaller(c).canSee(id) {
		forbidden(c)
		return
	}
	resp, err := h.svc.GetCliente(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarTransacciones godoc
// @Summary      Historial de puntos, más reciente primero
// @Tags         clientes
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "UUID del cliente"
// @Param        page  query int    false "Página (default 1)"
// @Param        limit query int    false "Registros por página (default 50)"
// @Success      200   {object} dto.TransaccionListResponse
// @Router       /v1/clientes/{id}/transacciones [get]
func (h *ClientesHandler) ListarTransacciones(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if !currentCaller(c).canSee(id) {
		forbidden(c)
		return
	}
	var filter dto.TransaccionFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListTransacciones(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AplicarTransaccion godoc
// @Summary      Ajuste manual del saldo (admin)
// @Description  Aplica un delta firmado. Rechaza con 409 si el saldo quedaría negativo. Idempotente por X-Offline-ID.
// @Tags         clientes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                       true "UUID del cliente"
// @Param        body body     dto.AplicarTransaccionRequest true "Delta y motivo"
// @Success      201  {object} dto.SaldoResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/clientes/{id}/transacciones [post]
func (h *ClientesHandler) AplicarTransaccion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AplicarTransaccionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	offline, ok := offlineID(c)
	if !ok {
		return
	}

	resp, err := h.svc.ApplyTransaction(c.Request.Context(), id, req.Delta, req.Motivo, currentCaller(c).Actor(), offline)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Acumular converts a purchase amount into points at the configured rate.
func (h *ClientesHandler) Acumular(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AcumularRequest
	if !bindAndValidate(c, &req) {
		return
	}
	offline, ok := offlineID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Acumular(c.Request.Context(), id, req.Monto, currentCaller(c).Actor(), offline)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
