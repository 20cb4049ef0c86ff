package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/api/response"
	"storefront/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingController struct{}

func (pingController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ping", func(c *gin.Context) { response.HandleSuccess(c, "pong", "ok") })
}

func newTestRouter() *Router {
	cfg := &config.Config{App: config.AppConfig{Name: "storefront", Version: "1.2.3", Env: "test"}}
	r := NewRouter(cfg, pingController{})
	r.SetupRoutes()
	return r
}

func do(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.GetEngine().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterMountsControllersUnderPrefix(t *testing.T) {
	rec := do(newTestRouter(), http.MethodGet, "/api/v1/ping")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pong", resp.Data)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, rec.Header().Get("X-Session-ID"))
}

func TestRouterFallbacksUseEnvelope(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodGet, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"NOT_FOUND"`)

	rec = do(r, http.MethodDelete, "/api/v1/ping")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"METHOD_NOT_ALLOWED"`)
}

func TestRouterIndex(t *testing.T) {
	rec := do(newTestRouter(), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"storefront","version":"1.2.3","health":"/api/v1/health"}`, rec.Body.String())
}
