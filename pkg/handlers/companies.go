package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/logging"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// CompaniesResponse lists directory companies.
type CompaniesResponse struct {
	Companies []models.Company `json:"companies"`
}

// ServersResponse lists directory servers.
type ServersResponse struct {
	Servers []models.ServerEntry `json:"servers"`
}

// DatabasesResponse lists databases reachable with a company's credentials.
type DatabasesResponse struct {
	Server    string   `json:"server"`
	Databases []string `json:"databases"`
}

// ConnectionStatusResponse reports a connectivity probe.
type ConnectionStatusResponse struct {
	Target    string `json:"target"`
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

// DirectoryHandler serves company and server lookups and connection probes.
type DirectoryHandler struct {
	dir    Directory
	prober DatabaseProber
	logger *zap.Logger
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(dir Directory, prober DatabaseProber, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{dir: dir, prober: prober, logger: logger.Named("directory-handler")}
}

// RegisterRoutes registers the directory routes under /api.
func (h *DirectoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/companies", h.ListCompanies)
	r.Get("/companies/{name}/status", h.CompanyStatus)
	r.Get("/companies/{name}/databases", h.CompanyDatabases)
	r.Get("/servers", h.ListServers)
	r.Get("/servers/{id}/databases", h.ServerDatabases)
	r.Post("/test-connection", h.TestConnection)
}

// ListCompanies handles GET /api/companies.
func (h *DirectoryHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, CompaniesResponse{Companies: h.dir.Companies()}); err != nil {
		h.logger.Error("Failed to encode companies", zap.Error(err))
	}
}

// CompanyStatus handles GET /api/companies/{name}/status.
// An unreachable database is a normal response with connected=false.
func (h *DirectoryHandler) CompanyStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := h.dir.Company(name)
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	h.writeProbe(w, r, params.String(), h.prober.Probe(r.Context(), params))
}

// CompanyDatabases handles GET /api/companies/{name}/databases.
func (h *DirectoryHandler) CompanyDatabases(w http.ResponseWriter, r *http.Request) {
	params, err := h.dir.Company(chi.URLParam(r, "name"))
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}

	conn, err := h.prober.Connect(r.Context(), params)
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	defer conn.Close()

	databases, err := conn.ListDatabases(r.Context())
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	if databases == nil {
		databases = []string{}
	}
	if err := WriteJSON(w, http.StatusOK, DatabasesResponse{Server: params.Server, Databases: databases}); err != nil {
		h.logger.Error("Failed to encode databases", zap.Error(err))
	}
}

// ListServers handles GET /api/servers.
func (h *DirectoryHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, ServersResponse{Servers: h.dir.Servers()}); err != nil {
		h.logger.Error("Failed to encode servers", zap.Error(err))
	}
}

// ServerDatabases handles GET /api/servers/{id}/databases.
func (h *DirectoryHandler) ServerDatabases(w http.ResponseWriter, r *http.Request) {
	server, err := h.dir.Server(chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, server); err != nil {
		h.logger.Error("Failed to encode server", zap.Error(err))
	}
}

// TestConnection handles POST /api/test-connection with a directory.Target body.
func (h *DirectoryHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var target directory.Target
	if err := decodeJSON(r, &target); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	params, err := h.dir.Resolve(target)
	if err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	if err := params.Validate(false); err != nil {
		writeLookupError(w, err, h.logger)
		return
	}
	h.writeProbe(w, r, params.String(), h.prober.Probe(r.Context(), params))
}

func (h *DirectoryHandler) writeProbe(w http.ResponseWriter, r *http.Request, target string, probeErr error) {
	resp := ConnectionStatusResponse{Target: target, Connected: probeErr == nil, Message: "Connection successful"}
	if probeErr != nil {
		resp.Message = logging.SanitizeError(probeErr)
		h.logger.Info("Connection probe failed",
			zap.String("target", target),
			zap.String("error", resp.Message))
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode probe result", zap.Error(err))
	}
}
