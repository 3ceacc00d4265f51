package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/averba/model-relay/internal/server/middleware"
)

func authRouter(keys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.Auth(keys))
	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return engine
}

func get(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/ping", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuth_DisabledWithoutKeys(t *testing.T) {
	router := authRouter(nil)
	assert.Equal(t, http.StatusOK, get(router, "").Code)
}

func TestAuth_ValidKey(t *testing.T) {
	router := authRouter([]string{"sk-one", "sk-two"})
	assert.Equal(t, http.StatusOK, get(router, "Bearer sk-two").Code)
}

func TestAuth_MissingHeader(t *testing.T) {
	router := authRouter([]string{"sk-one"})
	assert.Equal(t, http.StatusUnauthorized, get(router, "").Code)
}

func TestAuth_WrongScheme(t *testing.T) {
	router := authRouter([]string{"sk-one"})
	assert.Equal(t, http.StatusUnauthorized, get(router, "Basic sk-one").Code)
}

func TestAuth_UnknownKey(t *testing.T) {
	router := authRouter([]string{"sk-one"})
	assert.Equal(t, http.StatusUnauthorized, get(router, "Bearer sk-wrong").Code)
}

func TestAuth_BlankConfiguredKeysIgnored(t *testing.T) {
	// A config with only empty strings must not lock everyone out.
	router := authRouter([]string{"", ""})
	assert.Equal(t, http.StatusOK, get(router, "").Code)
}
