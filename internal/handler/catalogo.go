package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/repository"
)

const (
	catalogoCacheKey = "catalogo:activos"
	// short TTL: stock moves with every redemption
	catalogoCacheTTL = 30 * time.Second
)

// CatalogoHandler serves the active rewards catalog, cached in Redis when
// one is configured.
type CatalogoHandler struct {
	repo repository.ProductoRepository
	rdb  *redis.Client
}

func NewCatalogoHandler(repo repository.ProductoRepository, rdb *redis.Client) *CatalogoHandler {
	return &CatalogoHandler{repo: repo, rdb: rdb}
}

// Listar godoc
// @Summary Catálogo de productos y servicios canjeables
// @Tags catalogo
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.CatalogoResponse
// @Router /v1/productos [get]
func (h *CatalogoHandler) Listar(c *gin.Context) {
	ctx := c.Request.Context()

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, catalogoCacheKey).Bytes(); err == nil {
			var resp dto.CatalogoResponse
			if json.Unmarshal(cached, &resp) == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	productos, err := h.repo.ListActivos(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.CatalogoResponse{Data: make([]dto.ProductoResponse, len(productos))}
	for i := range productos {
		p := &productos[i]
		item := dto.ProductoResponse{
			ID:               p.ID.String(),
			Nombre:           p.Nombre,
			Tipo:             p.Tipo,
			PuntosRequeridos: p.PuntosRequeridos,
			ImagenURL:        p.ImagenURL,
		}
		if p.ControlaStock() {
			stock := p.Stock
			item.Stock = &stock
		}
		resp.Data[i] = item
	}

	if h.rdb != nil {
		if b, err := json.Marshal(resp); err == nil {
			if err := h.rdb.Set(context.WithoutCancel(ctx), catalogoCacheKey, b, catalogoCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Msg("catalogo: cache write failed")
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
