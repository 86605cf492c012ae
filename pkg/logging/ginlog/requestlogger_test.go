package ginlog

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
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetOrCreateRequestID(t *testing.T) {
	t.Run("creates an ID when none is present", func(t *testing.T) {
		r, err := http.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, err)
		c := &gin.Context{Request: r}

		id := GetOrCreateRequestID(c)
		assert.NotEmpty(t, id)

		stored, ok := c.Get(RequestIDKey)
		assert.True(t, ok)
		assert.Equal(t, id, stored)
	})

	t.Run("uses the request header", func(t *testing.T) {
		r, err := http.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, err)
		r.Header.Add(RequestIDHeader, "abc-123")
		c := &gin.Context{Request: r}

		assert.Equal(t, "abc-123", GetOrCreateRequestID(c))
	})

	t.Run("prefers the context value", func(t *testing.T) {
		c := &gin.Context{}
		c.Set(RequestIDKey, "from-context")

		assert.Equal(t, "from-context", GetOrCreateRequestID(c))
	})
}

func newLoggedEngine(level zapcore.Level, opts ...RequestLoggerOption) (*gin.Engine, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	engine := gin.New()
	engine.Use(RequestLogger(zap.New(core), opts...))
	engine.GET("/predict", func(c *gin.Context) {
		GetRequestLogger(c).Info("handler")
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine, logs
}

func TestRequestLogger_AccessLog(t *testing.T) {
	engine, logs := newLoggedEngine(zapcore.InfoLevel)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/predict?text=hello", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "handler", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].ContextMap()[RequestIDKey])

	access := entries[1].ContextMap()
	assert.Equal(t, "/predict", access["path"])
	assert.Equal(t, "text=hello", access["query"])
	assert.Equal(t, int64(http.StatusOK), access["status"])
}

func TestRequestLogger_ExcludeQueryAndLevelByPath(t *testing.T) {
	config := RequestLoggerConfig{
		ExcludeQueryParameters: true,
		LevelByPath:            map[string]string{"/healthz": "debug", "/predict": "not-a-level"},
	}
	engine, logs := newLoggedEngine(zapcore.InfoLevel, config.Opts()...)

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, 0, logs.Len(), "debug level access log must be filtered at info")

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/predict?text=secret", nil))
	access := logs.FilterMessage("/predict").All()
	require.Len(t, access, 1)
	_, hasQuery := access[0].ContextMap()["query"]
	assert.False(t, hasQuery)
}
