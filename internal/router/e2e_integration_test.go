//go:build integration

package router

// End-to-end tests against real Postgres and Redis via testcontainers, with the
// sync worker mirroring into an in-process CRM twin.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mannypuntos/internal/audit"
	"mannypuntos/internal/config"
	"mannypuntos/internal/crm"
	"mannypuntos/internal/crm/crmtwin"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/retry"
	"mannypuntos/internal/testutil"
	"mannypuntos/internal/worker"
)

type e2eEnv struct {
	*api
	twin *crmtwin.Twin
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("manny_test"),
		tcPostgres.WithUsername("manny"),
		tcPostgres.WithPassword("manny"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)

	twin := crmtwin.New()
	crmSrv := httptest.NewServer(twin.Handler())
	t.Cleanup(crmSrv.Close)

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "e2e-secret",
		JWTExpirationHours: 1,
		PuntosPorUnidad:    "0.01",
		MultiplicadorVIP:   "1.5",
		PDFStoragePath:     t.TempDir(),
	}

	wctx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)

	crmCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	syncWorker := worker.NewSyncWorker(worker.SyncWorkerConfig{
		Tasks:    repository.NewSyncTaskRepository(db),
		Refs:     repository.NewExternalRefRepository(db),
		Clientes: repository.NewClienteRepository(db),
		CRM: crm.NewClient(crmSrv.URL, "token", crm.Databases{Clientes: "db-clientes", Canjes: "db-canjes"},
			crm.DefaultMapping(), 5*time.Second),
		CB:     crmCB,
		Locker: worker.NewRedisLocker(rdb),
		Audit:  audit.NewLogger(repository.NewAuditoriaRepository(db)),
		RDB:    rdb,
		Policy: retry.Policy{BaseDelay: 50 * time.Millisecond, MaxAttempts: 6},
	})
	worker.StartWorkerPool(wctx, rdb, 2, worker.Handlers{worker.JobSync: syncWorker.Process})
	worker.StartRetryCron(wctx, worker.RetryCronConfig{
		Tasks:    repository.NewSyncTaskRepository(db),
		Worker:   syncWorker,
		CB:       crmCB,
		Interval: 200 * time.Millisecond,
	})

	engine, err := New(wctx, cfg, db, rdb, crmCB)
	require.NoError(t, err)

	return &e2eEnv{api: &api{t: t, db: db, engine: engine}, twin: twin}
}

func (e *e2eEnv) user(telefono string, saldo int, pin, rol string) (*model.Cliente, string) {
	e.t.Helper()
	c := testutil.SeedCliente(e.t, e.db, telefono, saldo)
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(e.t, err)
	require.NoError(e.t, e.db.Model(c).Updates(map[string]any{"pin_hash": string(hash), "rol": rol}).Error)
	return c, e.login(telefono, pin)
}

func openTasks(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&model.SyncTask{}).
		Where("estado IN ?", []string{model.SyncPending, model.SyncInFlight}).Count(&n).Error)
	return n
}

func TestE2E_CanjeMirrorsIntoCRM(t *testing.T) {
	e := setupE2E(t)
	c, clienteTok := e.user("5491100000001", 500, "1234", model.RolCliente)
	_, adminTok := e.user("5491100000099", 0, "9999", model.RolAdmin)
	p := testutil.SeedProducto(t, e.db, "Masaje", model.TipoProducto, 300, 2)

	w := e.do(http.MethodPost, "/v1/canjes", clienteTok, "", dto.CrearCanjeRequest{ProductoID: p.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	canje := decode[dto.CanjeResponse](t, w)

	// the client page and the canje page
	require.Eventually(t, func() bool {
		return openTasks(t, e.db) == 0 && len(e.twin.Pages()) == 2
	}, 20*time.Second, 100*time.Millisecond)

	w = e.do(http.MethodPatch, "/v1/canjes/"+canje.ID+"/estado", adminTok, "", dto.AvanzarEstadoRequest{Estado: "en_lista"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		_, updates, _ := e.twin.Counts()
		return openTasks(t, e.db) == 0 && updates >= 1
	}, 20*time.Second, 100*time.Millisecond)
	assert.Len(t, e.twin.Pages(), 2, "updates never create a second page")

	var ref model.ExternalRef
	require.NoError(t, e.db.Where("entidad_tipo = ? AND entidad_id = ?", model.EntidadCanje, canje.ID).First(&ref).Error)
	page, ok := e.twin.Page(ref.ExternalID)
	require.True(t, ok)
	var estado struct {
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
	}
	require.NoError(t, page.Prop("Estado", &estado))
	assert.Equal(t, "En Proceso", estado.Status.Name)

	var cli model.Cliente
	require.NoError(t, e.db.First(&cli, "id = ?", c.ID).Error)
	assert.NotNil(t, cli.UltimaSync)
}

func TestE2E_CRMOutageDoesNotBlockCommits(t *testing.T) {
	e := setupE2E(t)
	_, tok := e.user("5491100000001", 500, "1234", model.RolCliente)
	p := testutil.SeedProducto(t, e.db, "Corte", model.TipoServicio, 100, 0)

	e.twin.FailNext(http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway)
	w := e.do(http.MethodPost, "/v1/canjes", tok, "", dto.CrearCanjeRequest{ProductoID: p.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// transient failures are retried by the cron until the pages exist
	require.Eventually(t, func() bool {
		return openTasks(t, e.db) == 0 && len(e.twin.Pages()) == 2
	}, 90*time.Second, 250*time.Millisecond)
}

func TestE2E_ConcurrentCanjesOnPostgres(t *testing.T) {
	e := setupE2E(t)
	p := testutil.SeedProducto(t, e.db, "Masaje", model.TipoProducto, 100, 3)

	const n = 10
	tokens := make([]string, n)
	for i := range tokens {
		_, tokens[i] = e.user(fmt.Sprintf("54911000002%02d", i), 500, "1234", model.RolCliente)
	}

	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = e.do(http.MethodPost, "/v1/canjes", tokens[i], "", dto.CrearCanjeRequest{ProductoID: p.ID.String()}).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, code)
		}
	}
	assert.Equal(t, 3, created)

	var prod model.Producto
	require.NoError(t, e.db.First(&prod, "id = ?", p.ID).Error)
	assert.Zero(t, prod.Stock)
}

func TestE2E_LedgerIsAppendOnly(t *testing.T) {
	e := setupE2E(t)
	c, _ := e.user("5491100000001", 500, "1234", model.RolCliente)

	err := e.db.Model(&model.TransaccionPuntos{}).Where("cliente_id = ?", c.ID).Update("delta", 1).Error
	assert.Error(t, err)
	err = e.db.Where("cliente_id = ?", c.ID).Delete(&model.TransaccionPuntos{}).Error
	assert.Error(t, err)
}
