package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/config"
	"mannypuntos/internal/handler"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/middleware"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/service"
	"mannypuntos/internal/worker"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis.
// rdb may be nil: sync announcements are then dropped and the retry cron
// picks the tasks up from the outbox. ctx bounds the background purge of the
// rate limiters.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, crmCB *infra.CircuitBreaker) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	porUnidad, multVIP, err := cfg.AccrualRates()
	if err != nil {
		return nil, fmt.Errorf("accrual config: %w", err)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())

	apiLimiter := middleware.NewRateLimiter(1000, time.Minute, "Demasiadas solicitudes. Intente nuevamente en un momento.")
	loginLimiter := middleware.LoginRateLimiter()
	claimLimiter := middleware.ClaimRateLimiter()
	for _, l := range []*middleware.RateLimiter{apiLimiter, loginLimiter, claimLimiter} {
		go l.Run(ctx, 5*time.Minute)
	}
	r.Use(apiLimiter.Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	clienteRepo := repository.NewClienteRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	canjeRepo := repository.NewCanjeRepository(db)
	regaloRepo := repository.NewRegaloRepository(db)
	syncRepo := repository.NewSyncTaskRepository(db)
	auditoriaRepo := repository.NewAuditoriaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	auditLog := audit.NewLogger(auditoriaRepo)
	// Worker dispatcher: services announce committed sync tasks through it
	dispatcher := worker.NewDispatcher(rdb)

	authSvc := service.NewAuthService(clienteRepo, cfg)
	ledgerSvc := service.NewLedgerService(ledgerRepo, clienteRepo, syncRepo,
		service.AcumulacionConfig{PuntosPorUnidad: porUnidad, MultiplicadorVIP: multVIP},
		auditLog, dispatcher)
	canjeSvc := service.NewCanjeService(canjeRepo, productoRepo, ledgerRepo, clienteRepo, syncRepo, auditLog, dispatcher)
	regaloSvc := service.NewRegaloService(regaloRepo, ledgerRepo, clienteRepo, syncRepo, auditLog, dispatcher)
	syncAdminSvc := service.NewSyncAdminService(syncRepo, auditoriaRepo, auditLog, dispatcher, crmCB)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	clientesH := handler.NewClientesHandler(ledgerSvc)
	catalogoH := handler.NewCatalogoHandler(productoRepo, rdb)
	canjesH := handler.NewCanjesHandler(canjeSvc)
	regalosH := handler.NewRegalosHandler(regaloSvc)
	syncH := handler.NewSyncHandler(syncAdminSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, crmCB))
	r.POST("/v1/auth/login", loginLimiter.Middleware(), authH.Login)

	// Protected routes. Clients act on their own data; admins on anyone's.
	admin := middleware.RequireRole(model.RolAdmin)
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/productos", catalogoH.Listar)

		clientes := v1.Group("/clientes/:id")
		{
			clientes.GET("", clientesH.Obtener)
			clientes.GET("/transacciones", clientesH.ListarTransacciones)
			clientes.POST("/transacciones", admin, clientesH.AplicarTransaccion)
			clientes.POST("/acumular", admin, clientesH.Acumular)
		}

		canjes := v1.Group("/canjes")
		{
			canjes.POST("", canjesH.Crear)
			canjes.GET("", canjesH.Listar)
			canjes.PATCH("/:id/estado", admin, canjesH.AvanzarEstado)
			canjes.GET("/:id/comprobante", canjesH.Comprobante)
		}

		v1.POST("/regalos", admin, regalosH.CrearLink)
		v1.POST("/regalos/:codigo/reclamar", claimLimiter.Middleware(), regalosH.Reclamar)

		sync := v1.Group("/sync", admin)
		{
			sync.GET("/tareas", syncH.ListarTareas)
			sync.POST("/tareas/:id/reintentar", syncH.Reintentar)
		}
		v1.GET("/auditoria", admin, syncH.ListarAuditoria)
	}

	// Swagger UI: only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
