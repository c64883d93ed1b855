package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mannypuntos/internal/apierror"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/service"
)

type CanjesHandler struct{ svc service.CanjeService }

func NewCanjesHandler(svc service.CanjeService) *CanjesHandler { return &CanjesHandler{svc: svc} }

// Crear godoc
// @Summary      Canjear puntos por un producto o servicio
// @Description  Debita los puntos, descuenta stock y crea el canje en una sola transacción. Idempotente por X-Offline-ID.
// @Tags         canjes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.CrearCanjeRequest true "Producto a canjear"
// @Success      201  {object} dto.CanjeResponse
// @Failure      409  {object} apierror.APIError "insufficient_points | out_of_stock"
// @Failure      422  {object} apierror.APIError "product_unavailable"
// @Router       /v1/canjes [post]
func (h *CanjesHandler) Crear(c *gin.Context) {
	var req dto.CrearCanjeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	offline, ok := offlineID(c)
	if !ok {
		return
	}

	who := currentCaller(c)
	clienteID := who.ID
	if who.Admin && req.ClienteID != "" {
		clienteID = uuid.MustParse(req.ClienteID)
	}
	productoID := uuid.MustParse(req.ProductoID)

	resp, err := h.svc.CrearCanje(c.Request.Context(), clienteID, productoID, who.Actor(), offline)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary      Listar canjes
// @Description  Los clientes solo ven sus propios canjes.
// @Tags         canjes
// @Produce      json
// @Security     BearerAuth
// @Param        cliente_id query string false "UUID del cliente (solo admin)"
// @Param        estado     query string false "pendiente_entrega | en_lista | entregado | completado"
// @Success      200 {object} dto.CanjeListResponse
// @Router       /v1/canjes [get]
func (h *CanjesHandler) Listar(c *gin.Context) {
	var filter dto.CanjeFilter
	if !bindQuery(c, &filter) {
		return
	}
	if who := currentCaller(c); !who.Admin {
		filter.ClienteID = who.ID.String()
	}
	resp, err := h.svc.ListCanjes(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AvanzarEstado godoc
// @Summary      Avanzar el estado de un canje (admin)
// @Description  Solo se permite el estado inmediato siguiente; repetir el estado actual no tiene efecto.
// @Tags         canjes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                   true "UUID del canje"
// @Param        body body     dto.AvanzarEstadoRequest true "Estado destino"
// @Success      200  {object} dto.CanjeResponse
// @Failure      409  {object} apierror.APIError "invalid_transition"
// @Router       /v1/canjes/{id}/estado [patch]
func (h *CanjesHandler) AvanzarEstado(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AvanzarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AvanzarEstado(c.Request.Context(), id, req.Estado, currentCaller(c).Actor())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Comprobante streams the canje voucher as a PDF attachment.
func (h *CanjesHandler) Comprobante(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	canje, err := h.svc.ObtenerCanje(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !currentCaller(c).canSee(canje.ClienteID) {
		// do not reveal that the canje exists
		c.JSON(http.StatusNotFound, apierror.WithCode(service.ErrCanjeNotFound.Code, service.ErrCanjeNotFound.Message))
		return
	}

	var buf bytes.Buffer
	if err := h.svc.Comprobante(c.Request.Context(), id, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="canje_%s.pdf"`, id.String()[:8]))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
