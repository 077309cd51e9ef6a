package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henjicc/henji-server/internal/infra/config"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Server.Mode = "test"
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(a.Stop)
	return a
}

func do(a *App, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestApp_OpsEndpoints(t *testing.T) {
	a := newTestApp(t, nil)

	w := do(a, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = do(a, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestApp_Routes(t *testing.T) {
	a := newTestApp(t, nil)

	t.Run("models", func(t *testing.T) {
		w := do(a, http.MethodGet, "/api/v1/models", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Total int `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, a.Dependencies().Catalog.Len(), body.Total)
	})

	t.Run("empty history", func(t *testing.T) {
		w := do(a, http.MethodGet, "/api/v1/tasks", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":0`)
	})

	t.Run("unknown model is rejected without a task", func(t *testing.T) {
		w := do(a, http.MethodPost, "/api/v1/tasks", `{"model":"no-such-model","prompt":"x"}`)
		assert.GreaterOrEqual(t, w.Code, 400)
		assert.Less(t, w.Code, 500)
		assert.Empty(t, a.Dependencies().Scheduler.List(context.Background(), nil))
	})

	t.Run("missing file", func(t *testing.T) {
		w := do(a, http.MethodGet, "/api/v1/files/ab/missing.png", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("credentials", func(t *testing.T) {
		w := do(a, http.MethodGet, "/api/v1/credentials", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestApp_Auth(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Auth.JWTSecret = "test-secret"
	})

	w := do(a, http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := a.Dependencies().Tokens.IssueToken("desktop", 0)
	require.NoError(t, err)
	w = do(a, http.MethodGet, "/api/v1/tasks", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(a, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "ops endpoints stay open")
}

func TestApp_Reload(t *testing.T) {
	a := newTestApp(t, nil)

	next := *a.config
	next.Log.Level = "debug"
	a.Reload(&next)
	assert.Equal(t, "debug", a.deps.LogLevel.Level().String())
}

func TestProvideDocumentStore_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "etcd"}}
	_, err := ProvideDocumentStore(cfg, nil, nil)
	assert.Error(t, err)
}

func TestProvideRedisClient_RequiredForRedisStore(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: DriverRedis}}
	_, _, err := ProvideRedisClient(cfg, nil)
	assert.Error(t, err)
}
