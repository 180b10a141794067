// Package tools implements the MCP tools.
package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// Resolver turns tool arguments into connection parameters.
type Resolver interface {
	Companies() []models.Company
	Resolve(t directory.Target) (datasource.ConnectionParams, error)
}

// Predictor runs predictions and optional write-back.
type Predictor interface {
	PredictOrder(ctx context.Context, params datasource.ConnectionParams, orderNumber string) models.PredictionResponse
	WriteBack(ctx context.Context, params datasource.ConnectionParams, rowKey string, result models.PredictionResult) *models.WriteBackStatus
}

// Asker answers natural-language questions.
type Asker interface {
	Ask(ctx context.Context, params datasource.ConnectionParams, question string) models.QueryOutcome
}

// Deps holds what the tools call into. Credentials for a target come from
// the directory or the server's defaults, never from tool arguments.
type Deps struct {
	Directory Resolver
	Predictor Predictor
	Asker     Asker
	// Defaults fills server and database when a call names neither a company
	// nor a server id.
	Defaults datasource.ConnectionParams
	Model    string
	Logger   *zap.Logger
}
