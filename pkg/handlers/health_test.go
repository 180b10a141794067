package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/config"
)

func TestHealthHandler_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", rec.Body.String())
	}
	if len(env.prober.probed) != 0 {
		t.Error("health must not touch the database")
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/ping", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp PingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "order-insight" {
		t.Errorf("unexpected ping response: %+v", resp)
	}
	if resp.Version != "1.2.3" || resp.Environment != "test" {
		t.Errorf("expected version and environment from config, got %+v", resp)
	}
	if resp.Model != "gemini-2.0-flash" {
		t.Errorf("expected model from config, got %q", resp.Model)
	}
	if resp.GoVersion == "" || resp.Hostname == "" {
		t.Errorf("expected runtime details, got %+v", resp)
	}
	if resp.Companies != 1 || resp.Servers != 1 {
		t.Errorf("expected directory sizes 1/1, got %d/%d", resp.Companies, resp.Servers)
	}
}

func TestHealthHandler_Ping_WithoutDirectory(t *testing.T) {
	h := NewHealthHandler(&config.Config{Version: "dev"}, nil, zap.NewNop())
	rec := httptest.NewRecorder()

	h.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp PingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Companies != 0 || resp.Version != "dev" {
		t.Errorf("unexpected ping response: %+v", resp)
	}
}
