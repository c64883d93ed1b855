package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mannypuntos/internal/apierror"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/service"
)

// SyncHandler exposes the CRM outbox and the audit log to admins.
type SyncHandler struct{ svc service.SyncAdminService }

func NewSyncHandler(svc service.SyncAdminService) *SyncHandler { return &SyncHandler{svc: svc} }

// ListarTareas godoc
// @Summary      Tareas de sincronización con el CRM (admin)
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        estado       query string false "pending | in_flight | done | failed"
// @Param        entidad_tipo query string false "cliente | canje"
// @Success      200 {object} dto.SyncTaskListResponse
// @Router       /v1/sync/tareas [get]
func (h *SyncHandler) ListarTareas(c *gin.Context) {
	var filter dto.SyncTaskFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListTasks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reintentar godoc
// @Summary      Reintentar una tarea fallida (admin)
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     int true "ID de la tarea"
// @Success      200 {object} dto.SyncTaskResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sync/tareas/{id}/reintentar [post]
func (h *SyncHandler) Reintentar(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.Reintentar(c.Request.Context(), id, currentCaller(c).Actor())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SyncHandler) ListarAuditoria(c *gin.Context) {
	var filter dto.AuditoriaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListAuditoria(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
