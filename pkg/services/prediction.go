package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/audit"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/llm"
	"github.com/ekaya-inc/order-insight/pkg/logging"
	"github.com/ekaya-inc/order-insight/pkg/models"
	"github.com/ekaya-inc/order-insight/pkg/observability"
	"github.com/ekaya-inc/order-insight/pkg/repositories"
	"github.com/ekaya-inc/order-insight/pkg/retry"
	sqlutil "github.com/ekaya-inc/order-insight/pkg/sql"
)

// Prediction sentinel summaries. Each is returned after models.ErrorPrefix.
const (
	PredictionMissingConfig = "Missing environment variables"
	PredictionLoadFailed    = "Could not load data"
	PredictionOrderNotFound = "Order not found"
	PredictionNoData        = "No data available for prediction"
)

// PredictionService predicts journal comments for orders from the comments
// of recent orders with similar trend patterns.
type PredictionService struct {
	connector datasource.Connector
	generator llm.TextGenerator
	repo      repositories.OrderRepository
	writeBack config.WriteBackConfig
	logger    *zap.Logger
	now       func() time.Time
	// loadRetry governs retries of the record load on transient failures.
	loadRetry *retry.Config
	auditor   *audit.SecurityAuditor
}

// NewPredictionService creates a PredictionService.
func NewPredictionService(
	connector datasource.Connector,
	generator llm.TextGenerator,
	repo repositories.OrderRepository,
	writeBack config.WriteBackConfig,
	logger *zap.Logger,
) *PredictionService {
	return &PredictionService{
		connector: connector,
		generator: generator,
		repo:      repo,
		writeBack: writeBack,
		logger:    logger.Named("prediction"),
		now:       time.Now,
		loadRetry: retry.DefaultConfig(),
		auditor:   audit.NewSecurityAuditor(logger),
	}
}

// PredictOrder loads recent orders from the database described by params
// and predicts a comment for orderNumber. Failures are returned as sentinel
// results; credentials are checked before any connection is opened.
func (s *PredictionService) PredictOrder(ctx context.Context, params datasource.ConnectionParams, orderNumber string) models.PredictionResponse {
	resp := models.PredictionResponse{OrderNumber: orderNumber, Model: s.generator.Model()}

	if err := s.generator.CheckCredentials(); err != nil {
		s.logger.Error("LLM credentials missing", zap.Error(err))
		observability.ObservePrediction(observability.OutcomeError)
		resp.PredictionResult = models.NewPredictionError(PredictionMissingConfig, err.Error())
		return resp
	}
	if err := params.Validate(true); err != nil {
		observability.ObservePrediction(observability.OutcomeError)
		resp.PredictionResult = models.NewPredictionError(PredictionMissingConfig, err.Error())
		return resp
	}

	records, err := s.LoadRecords(ctx, params)
	if err != nil {
		s.logger.Error("Failed to load order records",
			zap.String("target", params.String()),
			zap.String("error", logging.SanitizeError(err)))
		observability.ObservePrediction(observability.OutcomeError)
		resp.PredictionResult = models.NewPredictionError(PredictionLoadFailed, "Failed to read from SQL Server")
		return resp
	}

	resp.PredictionResult = s.Predict(ctx, orderNumber, records)
	return resp
}

// LoadRecords opens a connection, reads the recent order set and closes the
// connection again. Nothing is cached between calls. The read is idempotent,
// so deadlocks and dropped connections are retried with backoff.
func (s *PredictionService) LoadRecords(ctx context.Context, params datasource.ConnectionParams) (*models.RecordSet, error) {
	attempt := 0
	records, err := retry.DoIfRetryable(ctx, s.loadRetry, func() (*models.RecordSet, error) {
		attempt++
		if attempt > 1 {
			s.logger.Warn("Retrying order record load",
				zap.String("target", params.String()),
				zap.Int("attempt", attempt))
		}
		return s.loadOnce(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	observability.ObserveRecordsLoaded(records.Len())
	return records, nil
}

func (s *PredictionService) loadOnce(ctx context.Context, params datasource.ConnectionParams) (*models.RecordSet, error) {
	conn, err := s.connector.Connect(ctx, params)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return s.repo.LoadRecent(ctx, conn.QueryExecutor())
}

// Predict runs the prediction for orderNumber against an already loaded set.
// No model call is made unless a context could be built.
func (s *PredictionService) Predict(ctx context.Context, orderNumber string, records *models.RecordSet) models.PredictionResult {
	logger := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("order_number", orderNumber))

	if records.Len() == 0 {
		observability.ObservePrediction(observability.OutcomeEmpty)
		return models.NewPredictionError(PredictionNoData, "No recent orders with trend data were found")
	}

	target, ok := records.Find(orderNumber)
	if !ok {
		observability.ObservePrediction(observability.OutcomeEmpty)
		return models.NewPredictionError(PredictionOrderNotFound,
			fmt.Sprintf("Order %s is not among the %d recent orders loaded", orderNumber, records.Len()))
	}

	pc, ok := BuildPredictionContext(target, records)
	if !ok {
		observability.ObservePrediction(observability.OutcomeEmpty)
		return models.NewPredictionError(PredictionNoData, "No recent orders with trend data were found")
	}

	prompt, err := CompilePredictionPrompt(pc)
	if err != nil {
		observability.ObservePrediction(observability.OutcomeError)
		return models.NewPredictionError(PredictionFailedSummary, err.Error())
	}

	logger.Info("Requesting prediction",
		zap.Int("comparisons", len(pc.Comparisons)),
		zap.String("model", s.generator.Model()))

	start := time.Now()
	raw, err := s.generator.Generate(ctx, prompt)
	observability.ObserveLLMRequest("prediction", time.Since(start))
	if err != nil {
		logger.Error("Prediction request failed", zap.Error(err))
		observability.ObservePrediction(observability.OutcomeError)
		return models.NewPredictionError(PredictionFailedSummary, err.Error())
	}

	result := NormalizePrediction(raw)
	if result.IsError() {
		logger.Warn("Model response could not be normalized",
			zap.String("response", logging.SanitizePrompt(raw)))
		observability.ObservePrediction(observability.OutcomeError)
		return result
	}

	observability.ObservePrediction(observability.OutcomeSuccess)
	logger.Info("Prediction generated", zap.Duration("elapsed", time.Since(start)))
	return result
}

// WriteBack persists result to the one configured table row keyed by rowKey.
// Sentinel results are never written, and neither is a blank key or a key
// that matches several rows.
func (s *PredictionService) WriteBack(ctx context.Context, params datasource.ConnectionParams, rowKey string, result models.PredictionResult) *models.WriteBackStatus {
	at := s.now()
	status := &models.WriteBackStatus{
		Table:     s.writeBack.Table,
		RowKey:    rowKey,
		WrittenAt: at.UTC(),
	}

	if result.IsError() {
		status.Error = "prediction failed; nothing written"
		observability.ObserveWriteBack(observability.OutcomeEmpty)
		return status
	}

	if strings.TrimSpace(rowKey) == "" {
		status.Error = "row key is required for write-back"
		observability.ObserveWriteBack(observability.OutcomeError)
		return status
	}

	if check := sqlutil.CheckParameterForInjection(s.writeBack.KeyColumn, rowKey); check != nil {
		s.auditor.LogInjectionAttempt(ctx, params.String(), audit.SQLInjectionDetails{
			ParamName:   check.ParamName,
			ParamValue:  check.ParamValue,
			Fingerprint: check.Fingerprint,
		})
		status.Error = "row key rejected"
		observability.ObserveWriteBack(observability.OutcomeError)
		return status
	}

	conn, err := s.connector.Connect(ctx, params)
	if err != nil {
		status.Error = logging.SanitizeError(err)
		observability.ObserveWriteBack(observability.OutcomeError)
		return status
	}
	defer conn.Close()

	affected, err := s.repo.UpdatePrediction(ctx, conn.QueryExecutor(), rowKey, result, at)
	status.RowsAffected = affected
	if err != nil {
		s.logger.Error("Write-back failed",
			zap.String("table", s.writeBack.Table),
			zap.String("row_key", rowKey),
			zap.Int64("rows_affected", affected),
			zap.String("error", logging.SanitizeError(err)))
		status.Error = logging.SanitizeError(err)
		if errors.Is(err, apperrors.ErrNotFound) {
			observability.ObserveWriteBack(observability.OutcomeEmpty)
		} else {
			observability.ObserveWriteBack(observability.OutcomeError)
		}
		return status
	}

	observability.ObserveWriteBack(observability.OutcomeSuccess)
	return status
}
