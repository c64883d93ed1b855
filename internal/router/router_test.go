package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mannypuntos/internal/apierror"
	"mannypuntos/internal/client"
	"mannypuntos/internal/config"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/testutil"
)

type api struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "router-test-secret",
		JWTExpirationHours: 1,
		PuntosPorUnidad:    "0.01",
		MultiplicadorVIP:   "1.5",
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine, err := New(ctx, cfg, db, nil, nil)
	require.NoError(t, err)
	return &api{t: t, db: db, engine: engine}
}

// withPIN sets a PIN (and optionally the admin role) on a seeded client.
func (a *api) withPIN(c *model.Cliente, pin, rol string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(a.t, err)
	require.NoError(a.t, a.db.Model(c).Updates(map[string]any{"pin_hash": string(hash), "rol": rol}).Error)
}

func (a *api) login(telefono, pin string) string {
	w := a.do(http.MethodPost, "/v1/auth/login", "", "", dto.LoginRequest{Telefono: telefono, PIN: pin})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func (a *api) do(method, path, token, offlineID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if offlineID != "" {
		req.Header.Set(client.OfflineIDHeader, offlineID)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// fixture: a client with 500 points, an admin, and a 300-point massage with one unit.
type fixture struct {
	*api
	cliente     *model.Cliente
	admin       *model.Cliente
	producto    *model.Producto
	clienteTok  string
	adminTok    string
}

func newFixture(t *testing.T) *fixture {
	a := newAPI(t)
	f := &fixture{api: a}
	f.cliente = testutil.SeedCliente(t, a.db, "5491100000001", 500)
	f.admin = testutil.SeedCliente(t, a.db, "5491100000099", 0)
	f.producto = testutil.SeedProducto(t, a.db, "Masaje", model.TipoProducto, 300, 1)
	a.withPIN(f.cliente, "1234", model.RolCliente)
	a.withPIN(f.admin, "9999", model.RolAdmin)
	f.clienteTok = a.login(f.cliente.Telefono, "1234")
	f.adminTok = a.login(f.admin.Telefono, "9999")
	return f
}

func TestHealth_WithoutRedis(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestLogin_WrongPIN(t *testing.T) {
	a := newAPI(t)
	c := testutil.SeedCliente(t, a.db, "5491100000001", 0)
	a.withPIN(c, "1234", model.RolCliente)

	w := a.do(http.MethodPost, "/v1/auth/login", "", "", dto.LoginRequest{Telefono: c.Telefono, PIN: "0000"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode[apierror.APIError](t, w).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/v1/canjes", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCanje_DebitsAndRejectsWithDeficit(t *testing.T) {
	f := newFixture(t)
	otro := testutil.SeedProducto(t, f.db, "Corte", model.TipoServicio, 300, 0)

	w := f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "", dto.CrearCanjeRequest{ProductoID: f.producto.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	canje := decode[dto.CanjeResponse](t, w)
	assert.Equal(t, 300, canje.PuntosCanjeados)
	assert.Equal(t, model.EstadoPendienteEntrega, canje.Estado)
	require.NotNil(t, canje.SaldoRestante)
	assert.Equal(t, 200, *canje.SaldoRestante)

	w = f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "", dto.CrearCanjeRequest{ProductoID: otro.ID.String()})
	assert.Equal(t, http.StatusConflict, w.Code)
	apiErr := decode[apierror.APIError](t, w)
	assert.Equal(t, "insufficient_points", apiErr.Code)
	assert.Contains(t, apiErr.Detail, "faltan 100")

	w = f.do(http.MethodGet, "/v1/clientes/"+f.cliente.ID.String(), f.clienteTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, decode[dto.ClienteResponse](t, w).SaldoPuntos)
}

func TestCanje_OutOfStock(t *testing.T) {
	f := newFixture(t)
	rico := testutil.SeedCliente(t, f.db, "5491100000002", 1000)
	f.withPIN(rico, "4321", model.RolCliente)
	ricoTok := f.login(rico.Telefono, "4321")

	w := f.do(http.MethodPost, "/v1/canjes", ricoTok, "", dto.CrearCanjeRequest{ProductoID: f.producto.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)

	// sold out: the product is reported unavailable before the balance is looked at
	w = f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "", dto.CrearCanjeRequest{ProductoID: f.producto.ID.String()})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "product_unavailable", decode[apierror.APIError](t, w).Code)
}

func TestCanje_OfflineReplayReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	req := dto.CrearCanjeRequest{ProductoID: f.producto.ID.String()}

	first := f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "act-1", req)
	require.Equal(t, http.StatusCreated, first.Code)
	second := f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "act-1", req)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, decode[dto.CanjeResponse](t, first).ID, decode[dto.CanjeResponse](t, second).ID)

	var saldo int
	require.NoError(t, f.db.Model(&model.Cliente{}).Select("saldo_puntos").Where("id = ?", f.cliente.ID).Row().Scan(&saldo))
	assert.Equal(t, 200, saldo)
}

func TestCanje_ClientsOnlySeeTheirOwnData(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/v1/clientes/"+f.admin.ID.String(), f.clienteTok, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/v1/clientes/"+f.cliente.ID.String()+"/transacciones", f.clienteTok, "",
		dto.AplicarTransaccionRequest{Delta: 1000, Motivo: model.MotivoAjusteManual})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/v1/sync/tareas", f.clienteTok, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCanje_TransitionsAndVoucher(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "", dto.CrearCanjeRequest{ProductoID: f.producto.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[dto.CanjeResponse](t, w).ID
	path := "/v1/canjes/" + id + "/estado"

	w = f.do(http.MethodPatch, path, f.clienteTok, "", dto.AvanzarEstadoRequest{Estado: "en_lista"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPatch, path, f.adminTok, "", dto.AvanzarEstadoRequest{Estado: "Completado"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode[apierror.APIError](t, w).Code)

	w = f.do(http.MethodPatch, path, f.adminTok, "", dto.AvanzarEstadoRequest{Estado: "Agendado"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.EstadoEnLista, decode[dto.CanjeResponse](t, w).Estado)

	w = f.do(http.MethodGet, "/v1/canjes/"+id+"/comprobante", f.clienteTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = f.do(http.MethodGet, "/v1/canjes", f.adminTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[dto.CanjeListResponse](t, w).Total)
}

func TestAdmin_AdjustAndAccrue(t *testing.T) {
	f := newFixture(t)
	base := "/v1/clientes/" + f.cliente.ID.String()

	w := f.do(http.MethodPost, base+"/transacciones", f.adminTok, "",
		dto.AplicarTransaccionRequest{Delta: -600, Motivo: model.MotivoAjusteManual})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, base+"/transacciones", f.adminTok, "",
		dto.AplicarTransaccionRequest{Delta: -100, Motivo: model.MotivoAjusteManual})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 400, decode[dto.SaldoResponse](t, w).SaldoPuntos)

	w = f.do(http.MethodPost, base+"/acumular", f.adminTok, "", map[string]any{"monto": "25000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 650, decode[dto.SaldoResponse](t, w).SaldoPuntos)

	w = f.do(http.MethodGet, base+"/transacciones", f.clienteTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.TransaccionListResponse](t, w)
	require.NotEmpty(t, list.Data)
	assert.Equal(t, 250, list.Data[0].Delta, "newest first")
	assert.Equal(t, model.ActorAdmin(f.admin.ID), list.Data[0].Actor)
}

func TestRegalo_ClaimOnce(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/regalos", f.adminTok, "",
		dto.CrearLinkRegaloRequest{Codigo: "BIENVENIDA", Tipo: model.RegaloPuntos, Puntos: 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/regalos/bienvenida/reclamar", f.clienteTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 600, decode[dto.ReclamoResponse](t, w).SaldoPuntos)

	w = f.do(http.MethodPost, "/v1/regalos/BIENVENIDA/reclamar", f.adminTok, "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "gift_already_claimed", decode[apierror.APIError](t, w).Code)

	w = f.do(http.MethodPost, "/v1/regalos/NOEXISTE/reclamar", f.clienteTok, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncAdmin_ListsOutboxAndAudit(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "", dto.CrearCanjeRequest{ProductoID: f.producto.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, "/v1/sync/tareas?estado=pending", f.adminTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tareas := decode[dto.SyncTaskListResponse](t, w)
	assert.EqualValues(t, 2, tareas.Total, "client balance and canje")

	w = f.do(http.MethodPost, "/v1/sync/tareas/999999/reintentar", f.adminTok, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/v1/auditoria?evento="+model.EventoCanjeCreado, f.adminTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[dto.AuditoriaListResponse](t, w).Total)
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/canjes", f.clienteTok, "", dto.CrearCanjeRequest{ProductoID: "not-a-uuid"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_error", decode[apierror.ValidationError](t, w).Code)

	w = f.do(http.MethodGet, "/v1/canjes?estado=perdido", f.clienteTok, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodGet, "/v1/clientes/123", f.clienteTok, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogo_HidesStockOfServicios(t *testing.T) {
	f := newFixture(t)
	testutil.SeedProducto(t, f.db, "Corte", model.TipoServicio, 200, 0)

	w := f.do(http.MethodGet, "/v1/productos", f.clienteTok, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cat := decode[dto.CatalogoResponse](t, w)
	require.Len(t, cat.Data, 2)
	assert.Equal(t, "Corte", cat.Data[0].Nombre, "cheapest first")
	assert.Nil(t, cat.Data[0].Stock)
	require.NotNil(t, cat.Data[1].Stock)
	assert.Equal(t, 1, *cat.Data[1].Stock)
}
