package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

type mockDirectory struct {
	companies  map[string]datasource.ConnectionParams
	servers    []models.ServerEntry
	resolved   datasource.ConnectionParams
	resolveErr error
	targets    []directory.Target
}

func (m *mockDirectory) Companies() []models.Company {
	out := make([]models.Company, 0, len(m.companies))
	for name, p := range m.companies {
		out = append(out, models.Company{Name: name, Server: p.Server, Database: p.Database, Trusted: p.Trusted()})
	}
	return out
}

func (m *mockDirectory) Company(name string) (datasource.ConnectionParams, error) {
	p, ok := m.companies[name]
	if !ok {
		return datasource.ConnectionParams{}, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *mockDirectory) Servers() []models.ServerEntry { return m.servers }

func (m *mockDirectory) Server(serverID string) (models.ServerEntry, error) {
	for _, s := range m.servers {
		if s.ID == serverID {
			return s, nil
		}
	}
	return models.ServerEntry{}, apperrors.ErrNotFound
}

func (m *mockDirectory) Resolve(t directory.Target) (datasource.ConnectionParams, error) {
	m.targets = append(m.targets, t)
	if m.resolveErr != nil {
		return datasource.ConnectionParams{}, m.resolveErr
	}
	return m.resolved, nil
}

type mockConnection struct {
	databases []string
	listErr   error
	closed    bool
}

func (c *mockConnection) TestConnection(ctx context.Context) error { return nil }
func (c *mockConnection) Close() error                             { c.closed = true; return nil }
func (c *mockConnection) DatabaseName() string                     { return "" }
func (c *mockConnection) ListDatabases(ctx context.Context) ([]string, error) {
	return c.databases, c.listErr
}
func (c *mockConnection) QueryExecutor() datasource.QueryExecutor       { return nil }
func (c *mockConnection) SchemaDiscoverer() datasource.SchemaDiscoverer { return nil }

type mockProber struct {
	conn       *mockConnection
	connectErr error
	probeErr   error
	probed     []datasource.ConnectionParams
}

func (p *mockProber) Connect(ctx context.Context, params datasource.ConnectionParams) (datasource.Connection, error) {
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	return p.conn, nil
}

func (p *mockProber) Probe(ctx context.Context, params datasource.ConnectionParams) error {
	p.probed = append(p.probed, params)
	return p.probeErr
}

type mockPredictionService struct {
	response     models.PredictionResponse
	records      *models.RecordSet
	loadErr      error
	writeBack    *models.WriteBackStatus
	orderNumbers []string
	rowKeys      []string
}

func (m *mockPredictionService) PredictOrder(ctx context.Context, params datasource.ConnectionParams, orderNumber string) models.PredictionResponse {
	m.orderNumbers = append(m.orderNumbers, orderNumber)
	return m.response
}

func (m *mockPredictionService) LoadRecords(ctx context.Context, params datasource.ConnectionParams) (*models.RecordSet, error) {
	return m.records, m.loadErr
}

func (m *mockPredictionService) WriteBack(ctx context.Context, params datasource.ConnectionParams, rowKey string, result models.PredictionResult) *models.WriteBackStatus {
	m.rowKeys = append(m.rowKeys, rowKey)
	return m.writeBack
}

type mockQueryService struct {
	outcome   models.QueryOutcome
	questions []string
	params    []datasource.ConnectionParams
}

func (m *mockQueryService) Ask(ctx context.Context, params datasource.ConnectionParams, question string) models.QueryOutcome {
	m.questions = append(m.questions, question)
	m.params = append(m.params, params)
	return m.outcome
}

type testEnv struct {
	dir        *mockDirectory
	prober     *mockProber
	prediction *mockPredictionService
	query      *mockQueryService
	handler    http.Handler
}

var acmeParams = datasource.ConnectionParams{Server: "sql01", Database: "Orders", Username: "app", Password: "secret"}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		dir: &mockDirectory{
			companies: map[string]datasource.ConnectionParams{"Acme": acmeParams},
			servers: []models.ServerEntry{{
				ID:        "east",
				Name:      "sql-east",
				Databases: []models.DatabaseEntry{{ID: "orders", Name: "Orders"}},
			}},
			resolved: acmeParams,
		},
		prober:     &mockProber{conn: &mockConnection{databases: []string{"Orders", "Archive"}}},
		prediction: &mockPredictionService{},
		query:      &mockQueryService{},
	}
	env.handler = NewRouter(RouterDeps{
		Config:     &config.Config{Version: "1.2.3", Env: "test", LLM: config.LLMConfig{Model: "gemini-2.0-flash"}},
		Directory:  env.dir,
		Prober:     env.prober,
		Prediction: env.prediction,
		Query:      env.query,
		Logger:     zap.NewNop(),
	})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error response %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}
