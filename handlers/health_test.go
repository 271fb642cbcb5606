package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	upStore   = pingFunc(func(context.Context) error { return nil })
	downStore = pingFunc(func(context.Context) error { return errors.New("no reachable servers") })
)

type readyBody struct {
	Status string          `json:"status"`
	Deps   map[string]bool `json:"deps"`
}

func ready(t *testing.T, deps Readiness) (int, readyBody) {
	t.Helper()
	g := gin.New()
	RegisterHealth(g, deps, time.Now())
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth(t *testing.T) {
	g := gin.New()
	RegisterHealth(g, Readiness{Store: upStore}, time.Now())
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())
}

func TestReadyStore(t *testing.T) {
	code, body := ready(t, Readiness{Store: upStore})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body.Status)
	require.True(t, body.Deps["store"])

	code, body = ready(t, Readiness{Store: downStore})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.False(t, body.Deps["store"])
}

func TestReadyRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	code, body := ready(t, Readiness{Store: upStore, Redis: client, RequireRedis: true})
	require.Equal(t, http.StatusOK, code)
	require.True(t, body.Deps["redis"])

	code, _ = ready(t, Readiness{Store: upStore, RequireRedis: true})
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyAuth(t *testing.T) {
	code, body := ready(t, Readiness{Store: upStore, AuthRequired: true})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.False(t, body.Deps["auth"])

	code, _ = ready(t, Readiness{Store: upStore, AuthRequired: true, AuthReady: true})
	require.Equal(t, http.StatusOK, code)
}
