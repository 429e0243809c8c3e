package plans_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	plansapi "saas-billing/internal/api/plans"
	"saas-billing/internal/repository"
	"saas-billing/internal/service/catalog"
	"saas-billing/internal/testsupport"
)

func newRouter(t *testing.T, gw *testsupport.FakeGateway) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	db := testsupport.NewDB(t)

	resolver := catalog.New(gw, repository.NewPlanCatalogRepository(db), nil, time.Minute, logger, nil)
	h := plansapi.NewHandler(resolver, logger)

	r := gin.New()
	r.GET("/plans", h.ListPlans)
	r.POST("/admin/plans/sync", h.SyncPlansFromStripe)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestListPlans(t *testing.T) {
	gw := testsupport.NewFakeGateway()
	gw.SeedCatalog()
	r := newRouter(t, gw)

	w := serve(r, http.MethodGet, "/plans")
	require.Equal(t, http.StatusOK, w.Code)

	var got []plansapi.PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 3)

	assert.EqualValues(t, "free", got[0].ID)
	require.NotNil(t, got[0].MonthlyPrice)
	assert.Zero(t, *got[0].MonthlyPrice)
	assert.Equal(t, []string{}, got[0].Features)

	assert.EqualValues(t, "starter", got[1].ID)
	require.NotNil(t, got[1].MonthlyPrice)
	require.NotNil(t, got[1].YearlyPrice)
	assert.EqualValues(t, 900, *got[1].MonthlyPrice)
	assert.EqualValues(t, 9000, *got[1].YearlyPrice)

	assert.EqualValues(t, "pro", got[2].ID)
	assert.EqualValues(t, 1900, *got[2].MonthlyPrice)
}

func TestListPlans_MissingCycleIsNull(t *testing.T) {
	gw := testsupport.NewFakeGateway()
	gw.Products = append(gw.Products,
		testsupport.Product("prod_pro", "Pro", map[string]string{"planId": "pro", "public": "true"}))
	gw.Prices["prod_pro"] = testsupport.PriceList(testsupport.Price("price_pro_m", "prod_pro", "month", 1900))
	r := newRouter(t, gw)

	w := serve(r, http.MethodGet, "/plans")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"yearlyPrice":null`)
}

func TestListPlans_ProviderDownWithoutSnapshot(t *testing.T) {
	gw := testsupport.NewFakeGateway()
	gw.ListErr = errors.New("stripe unavailable")
	r := newRouter(t, gw)

	w := serve(r, http.MethodGet, "/plans")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "stripe unavailable")
}

func TestSyncPlansFromStripe(t *testing.T) {
	gw := testsupport.NewFakeGateway()
	gw.SeedCatalog()
	r := newRouter(t, gw)

	w := serve(r, http.MethodPost, "/admin/plans/sync")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Synced int                     `json:"synced"`
		Plans  []plansapi.PlanResponse `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Synced)
	assert.Len(t, body.Plans, 3)

	// the stored snapshot now serves the listing while Stripe is down
	gw.ListErr = errors.New("stripe unavailable")
	w = serve(r, http.MethodGet, "/plans")
	assert.Equal(t, http.StatusOK, w.Code)
}
