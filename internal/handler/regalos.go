package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mannypuntos/internal/apierror"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/service"
)

type RegalosHandler struct{ svc service.RegaloService }

func NewRegalosHandler(svc service.RegaloService) *RegalosHandler { return &RegalosHandler{svc: svc} }

// CrearLink godoc
// @Summary      Crear un link de regalo (admin)
// @Tags         regalos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body     dto.CrearLinkRegaloRequest true "Definición del regalo"
// @Success      201  {object} dto.LinkRegaloResponse
// @Router       /v1/regalos [post]
func (h *RegalosHandler) CrearLink(c *gin.Context) {
	var req dto.CrearLinkRegaloRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearLink(c.Request.Context(), req, currentCaller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Reclamar godoc
// @Summary      Reclamar un link de regalo
// @Description  Un link individual se reclama una sola vez; uno de campaña, una vez por cliente.
// @Tags         regalos
// @Produce      json
// @Security     BearerAuth
// @Param        codigo path     string true "Código del link"
// @Success      200    {object} dto.ReclamoResponse
// @Failure      404    {object} apierror.APIError "gift_not_found"
// @Failure      409    {object} apierror.APIError "gift_already_claimed"
// @Failure      422    {object} apierror.APIError "gift_expired"
// @Router       /v1/regalos/{codigo}/reclamar [post]
func (h *RegalosHandler) Reclamar(c *gin.Context) {
	codigo := c.Param("codigo")
	if codigo == "" || len(codigo) > 64 {
		c.JSON(http.StatusBadRequest, apierror.New("Código invalido"))
		return
	}
	offline, ok := offlineID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Reclamar(c.Request.Context(), codigo, currentCaller(c).ID, offline)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
