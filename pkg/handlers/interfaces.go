package handlers

import (
	"context"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// Directory resolves companies and configured servers.
type Directory interface {
	Companies() []models.Company
	Company(name string) (datasource.ConnectionParams, error)
	Servers() []models.ServerEntry
	Server(serverID string) (models.ServerEntry, error)
	Resolve(t directory.Target) (datasource.ConnectionParams, error)
}

// DatabaseProber opens connections and runs bounded connectivity probes.
type DatabaseProber interface {
	datasource.Connector
	Probe(ctx context.Context, params datasource.ConnectionParams) error
}

// PredictionService is the prediction pipeline as used by the handlers.
type PredictionService interface {
	PredictOrder(ctx context.Context, params datasource.ConnectionParams, orderNumber string) models.PredictionResponse
	LoadRecords(ctx context.Context, params datasource.ConnectionParams) (*models.RecordSet, error)
	WriteBack(ctx context.Context, params datasource.ConnectionParams, rowKey string, result models.PredictionResult) *models.WriteBackStatus
}

// QueryService answers natural-language questions.
type QueryService interface {
	Ask(ctx context.Context, params datasource.ConnectionParams, question string) models.QueryOutcome
}
