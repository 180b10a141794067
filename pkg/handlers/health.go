package handlers

import (
	"net/http"
	"os"
	"runtime"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/config"
)

// PingResponse describes the running service and what it is configured with.
type PingResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	Environment    string `json:"environment"`
	GoVersion      string `json:"go_version"`
	Hostname       string `json:"hostname"`
	Model          string `json:"model"`
	Companies      int    `json:"companies"`
	Servers        int    `json:"servers"`
	WriteBackTable string `json:"write_back_table"`
}

// HealthHandler serves liveness and service information.
type HealthHandler struct {
	cfg    *config.Config
	dir    Directory
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler. dir may be nil.
func NewHealthHandler(cfg *config.Config, dir Directory, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, dir: dir, logger: logger}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ping", h.Ping)
}

// Health is a liveness check; it never touches the database or the model.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ping reports version, runtime and directory sizes.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		h.logger.Warn("Hostname unavailable", zap.Error(err))
		hostname = "unknown"
	}

	resp := PingResponse{
		Status:         "ok",
		Service:        "order-insight",
		Version:        h.cfg.Version,
		Environment:    h.cfg.Env,
		GoVersion:      runtime.Version(),
		Hostname:       hostname,
		Model:          h.cfg.LLM.Model,
		WriteBackTable: h.cfg.WriteBack.Table,
	}
	if h.dir != nil {
		resp.Companies = len(h.dir.Companies())
		resp.Servers = len(h.dir.Servers())
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
