package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/ctfboard/internal/store"
)

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz_MethodNotAllowed(t *testing.T) {
	s := NewServer(":0", nil, nil)
	w := get(t, s.Handler(), http.MethodPost, "/healthz")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthz(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := store.NewClientFromURL("redis://"+mr.Addr(), "guild-1")
	require.NoError(t, err)
	defer client.Close()

	discordUp := true
	checks := map[string]Check{
		"redis": client.Ping,
		"discord": func(context.Context) error {
			if !discordUp {
				return errors.New("gateway not connected")
			}
			return nil
		},
	}
	s := NewServer(":0", checks, nil)

	t.Run("healthy", func(t *testing.T) {
		w := get(t, s.Handler(), http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, map[string]string{"redis": "ok", "discord": "ok"}, resp.Checks)
	})

	t.Run("unhealthy when a check fails", func(t *testing.T) {
		discordUp = false
		defer func() { discordUp = true }()

		w := get(t, s.Handler(), http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "gateway not connected", resp.Checks["discord"])
		assert.Equal(t, "ok", resp.Checks["redis"])
	})

	t.Run("unhealthy when redis is gone", func(t *testing.T) {
		mr.Close()
		w := get(t, s.Handler(), http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "ctfboard_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := NewServer(":0", nil, reg)
	w := get(t, s.Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ctfboard_test_total 1")

	t.Run("disabled without gatherer", func(t *testing.T) {
		w := get(t, NewServer(":0", nil, nil).Handler(), http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
