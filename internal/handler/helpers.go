package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mannypuntos/internal/apierror"
	"mannypuntos/internal/client"
	"mannypuntos/internal/middleware"
	"mannypuntos/internal/model"
	"mannypuntos/internal/service"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// required and gt=0 work on purchase amounts.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindQuery is bindAndValidate for list filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// offlineID returns the X-Offline-ID header, nil when absent. Replays of a
// queued action carry the same id and get the original result back.
func offlineID(c *gin.Context) (*string, bool) {
	v := c.GetHeader(client.OfflineIDHeader)
	if v == "" {
		return nil, true
	}
	if len(v) > 64 {
		c.JSON(http.StatusBadRequest, apierror.New("X-Offline-ID demasiado largo"))
		return nil, false
	}
	return &v, true
}

// caller is the authenticated client behind the request.
type caller struct {
	ID    uuid.UUID
	Admin bool
}

func currentCaller(c *gin.Context) caller {
	claims := middleware.GetClaims(c)
	id, _ := claims.ClienteID()
	return caller{ID: id, Admin: claims.EsAdmin()}
}

// Actor is the ledger and audit attribution for actions taken by the caller.
func (k caller) Actor() string {
	if k.Admin {
		return model.ActorAdmin(k.ID)
	}
	return model.ActorCliente(k.ID)
}

// canSee reports whether the caller may read data owned by clienteID.
func (k caller) canSee(clienteID uuid.UUID) bool {
	return k.Admin || k.ID == clienteID
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
}

// respondError maps service errors onto the {"detail","code"} envelope.
// Anything that is not a business rejection is logged by the ErrorHandler
// middleware and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		c.JSON(http.StatusConflict, apierror.WithCode("duplicate", "El registro ya existe"))
		return
	}
	var be *service.BusinessError
	if !errors.As(err, &be) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
		return
	}
	c.JSON(businessStatus(be), apierror.WithCode(be.Code, be.Message))
}

func businessStatus(be *service.BusinessError) int {
	switch {
	case errors.Is(be, service.ErrUnknownClient),
		errors.Is(be, service.ErrCanjeNotFound),
		errors.Is(be, service.ErrGiftNotFound),
		errors.Is(be, service.ErrSyncTaskNotFound):
		return http.StatusNotFound
	case errors.Is(be, service.ErrInsufficientPoints),
		errors.Is(be, service.ErrOutOfStock),
		errors.Is(be, service.ErrGiftAlreadyClaimed),
		errors.Is(be, service.ErrInvalidTransition),
		errors.Is(be, service.ErrOfflineIDConflict):
		return http.StatusConflict
	case errors.Is(be, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusUnprocessableEntity
	}
}
