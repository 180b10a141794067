package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

type mockDirectory struct {
	companies map[string]datasource.ConnectionParams
}

func (m *mockDirectory) Companies() []models.Company {
	var out []models.Company
	for name, p := range m.companies {
		out = append(out, models.Company{Name: name, Server: p.Server, Database: p.Database, Trusted: p.Trusted()})
	}
	return out
}

func (m *mockDirectory) Resolve(t directory.Target) (datasource.ConnectionParams, error) {
	p, ok := m.companies[t.Company]
	if !ok {
		return datasource.ConnectionParams{}, fmt.Errorf("company %q: %w", t.Company, apperrors.ErrNotFound)
	}
	if t.Database != "" {
		p = p.WithDatabase(t.Database)
	}
	return p, nil
}

type mockPredictor struct {
	response    models.PredictionResponse
	params      []datasource.ConnectionParams
	orders      []string
	writeBacks  []string
	writeStatus *models.WriteBackStatus
}

func (m *mockPredictor) PredictOrder(_ context.Context, params datasource.ConnectionParams, orderNumber string) models.PredictionResponse {
	m.params = append(m.params, params)
	m.orders = append(m.orders, orderNumber)
	resp := m.response
	resp.OrderNumber = orderNumber
	return resp
}

func (m *mockPredictor) WriteBack(_ context.Context, _ datasource.ConnectionParams, rowKey string, _ models.PredictionResult) *models.WriteBackStatus {
	m.writeBacks = append(m.writeBacks, rowKey)
	return m.writeStatus
}

type mockAsker struct {
	outcome   models.QueryOutcome
	params    []datasource.ConnectionParams
	questions []string
}

func (m *mockAsker) Ask(_ context.Context, params datasource.ConnectionParams, question string) models.QueryOutcome {
	m.params = append(m.params, params)
	m.questions = append(m.questions, question)
	return m.outcome
}

func newTestDeps() (*Deps, *mockPredictor, *mockAsker) {
	predictor := &mockPredictor{}
	asker := &mockAsker{}
	deps := &Deps{
		Directory: &mockDirectory{companies: map[string]datasource.ConnectionParams{
			"Acme": {Server: "sql01", Database: "Orders", Username: "app", Password: "pw"},
		}},
		Predictor: predictor,
		Asker:     asker,
		Defaults:  datasource.ConnectionParams{Server: "sql-default", Database: "Main"},
		Model:     "mock-model",
		Logger:    zap.NewNop(),
	}
	return deps, predictor, asker
}

func newTestServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(s, "1.0.0", deps)
	RegisterDirectoryTools(s, deps)
	RegisterPredictionTool(s, deps)
	RegisterQueryTool(s, deps)
	return s
}

type toolCallResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
}

// callTool sends a tools/call message and returns the first text content.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var resp toolCallResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotEmpty(t, resp.Result.Content, string(raw))
	return resp.Result.Content[0].Text, resp.Result.IsError
}
