package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"mailwatch/internal/monitor"
)

// StatusHandler exposes the monitor loop state over HTTP for operators
// and liveness probes.
type StatusHandler struct {
	monitor *monitor.Monitor
	logger  *zap.Logger
}

func NewStatusHandler(m *monitor.Monitor, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		monitor: m,
		logger:  logger,
	}
}

// Register wires the status routes onto the router.
func (h *StatusHandler) Register(router *mux.Router) {
	router.HandleFunc("/status", h.HandleStatus).Methods("GET")
	router.HandleFunc("/healthz", h.HandleHealthz).Methods("GET")
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.monitor.Snapshot()); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

func (h *StatusHandler) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
