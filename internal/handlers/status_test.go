package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/monitor"
)

func newTestHandler() *StatusHandler {
	cfg := config.Default()
	m := monitor.New(nil, nil, nil, nil, &cfg, zap.NewNop())
	return NewStatusHandler(m, zap.NewNop())
}

func TestHandleStatus(t *testing.T) {
	router := mux.NewRouter()
	newTestHandler().Register(router)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap monitor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "disconnected", snap.State)
}

func TestHandleHealthz(t *testing.T) {
	router := mux.NewRouter()
	newTestHandler().Register(router)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
