package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()

	calls := []string{}
	g := NewDomainGroup("sessions", "/sessions").Use(func(c *gin.Context) {
		calls = append(calls, "mw")
		c.Next()
	})
	g.POST("", func(c *gin.Context) { c.Status(http.StatusCreated) })
	g.DELETE("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	g.Group("exports", "/:id/exports").GET("/latest", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	assert.Equal(t, "sessions", g.Name())
	assert.Equal(t, "/sessions", g.Prefix())

	g.RegisterRoutes(engine.Group("/api/v1"))

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodPost, "/api/v1/sessions", http.StatusCreated},
		{http.MethodDelete, "/api/v1/sessions/abc", http.StatusOK},
		{http.MethodGet, "/api/v1/sessions/abc/exports/latest", http.StatusAccepted},
		{http.MethodGet, "/api/v1/sessions", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
	}
	assert.Equal(t, []string{"mw", "mw", "mw"}, calls, "group middleware runs for matched routes only")
}
