package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-webinar/adstore/internal/auth"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.Any("/ads", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r *gin.Engine, method, authz, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ads", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(JWT(svc), RequireRole(auth.RoleAdmin))

	admin, err := svc.Generate("ops", auth.RoleAdmin)
	require.NoError(t, err)
	viewer, err := svc.Generate("page", "viewer")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "Token "+admin, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "Bearer nope", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "Bearer "+viewer, "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "Bearer "+admin, "").Code)
}

func TestRequireRole_WithoutJWT(t *testing.T) {
	r := newRouter(RequireRole(auth.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "", "").Code)
}

func TestRequireRole_ForbiddenNamesRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(JWT(svc), RequireRole(auth.RoleAdmin))
	viewer, err := svc.Generate("page", "viewer")
	require.NoError(t, err)

	w := serve(r, http.MethodDelete, "Bearer "+viewer, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "managing ads requires role "+auth.RoleAdmin)
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS("http://a.test, http://b.test"))

	w := serve(r, http.MethodGet, "", "http://a.test")
	assert.Equal(t, "http://a.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "", "http://evil.test")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "", "http://b.test")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(newRouter(CORS("*")), http.MethodGet, "", "http://any.test")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newRouter(Logger(zap.New(core)))
	serve(r, http.MethodGet, "", "")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)
	assert.EqualValues(t, http.StatusOK, entry.ContextMap()["status"])
	assert.Equal(t, "/ads", entry.ContextMap()["path"])
}
