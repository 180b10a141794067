package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/audit"
	"github.com/ekaya-inc/order-insight/pkg/llm"
	"github.com/ekaya-inc/order-insight/pkg/logging"
	"github.com/ekaya-inc/order-insight/pkg/models"
	"github.com/ekaya-inc/order-insight/pkg/observability"
	sqlutil "github.com/ekaya-inc/order-insight/pkg/sql"
)

// User-facing query outcome messages.
const (
	MessageNotConfigured   = "The service is missing required configuration. Please contact support."
	MessageConnectFailed   = "We couldn't connect to the database. Please try again later or contact support."
	MessageNotUnderstood   = "We couldn't understand your question. Please try rephrasing it or being more specific."
	MessageNotReadOnly     = "The generated query was not a read-only SELECT statement. Please try a different question."
	MessageExecutionFailed = "We couldn't find the information you requested. Please try a different question."
	MessageNoRecords       = "No records found matching your criteria. Please try a different search."
	SummaryNoRecords       = "No data found that matches your criteria."
)

// QueryService answers natural-language questions against a SQL Server database.
type QueryService struct {
	connector  datasource.Connector
	generator  llm.TextGenerator
	schema     *SchemaContextBuilder
	translator *SQLTranslator
	policy     ColumnPolicy
	auditor    *audit.SecurityAuditor
	logger     *zap.Logger
}

// NewQueryService wires the NL-to-SQL pipeline. The same policy governs the
// schema description, the check on generated SQL and the returned columns.
func NewQueryService(connector datasource.Connector, generator llm.TextGenerator, policy ColumnPolicy, logger *zap.Logger) *QueryService {
	return &QueryService{
		connector:  connector,
		generator:  generator,
		schema:     NewSchemaContextBuilder(policy, logger),
		translator: NewSQLTranslator(generator, policy, logger),
		policy:     policy,
		auditor:    audit.NewSecurityAuditor(logger),
		logger:     logger.Named("query"),
	}
}

// Ask runs the whole pipeline on one connection and always returns an
// outcome; errors are logged and mapped to user-facing messages. Failed SQL
// is not retried.
func (s *QueryService) Ask(ctx context.Context, params datasource.ConnectionParams, question string) models.QueryOutcome {
	start := time.Now()
	logger := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("target", params.String()))

	if err := s.generator.CheckCredentials(); err != nil {
		logger.Error("LLM credentials missing", zap.Error(err))
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageNotConfigured, nil)
	}
	if err := params.Validate(true); err != nil {
		logger.Error("Connection parameters incomplete", zap.Error(err))
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageNotConfigured, nil)
	}

	conn, err := s.connector.Connect(ctx, params)
	if err != nil {
		logger.Error("Failed to connect", zap.String("error", logging.SanitizeError(err)))
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageConnectFailed, nil)
	}
	defer conn.Close()

	desc, err := s.schema.Build(ctx, conn)
	if err != nil {
		logger.Error("Failed to describe schema", zap.String("error", logging.SanitizeError(err)))
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageConnectFailed, nil)
	}

	generated := s.translator.Translate(ctx, s.schema.Render(desc), question)
	if generated.Failed() {
		logger.Info("No query generated", zap.String("explanation", generated.Explanation))
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageNotUnderstood, nil)
	}

	validated := sqlutil.ValidateReadOnly(generated.SQLQuery)
	if validated.Error != nil {
		s.auditor.LogGeneratedQueryRejected(ctx, params.String(), generated.SQLQuery, validated.Error.Error())
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageNotReadOnly, &generated.SQLQuery)
	}
	sqlQuery := validated.NormalizedSQL

	result, err := conn.QueryExecutor().Query(ctx, sqlQuery, datasource.MaxQueryLimit)
	if err != nil {
		logger.Error("Query execution failed",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("error", logging.SanitizeError(err)))
		observability.ObserveQuery(observability.OutcomeError)
		return failedOutcome(MessageExecutionFailed, &sqlQuery)
	}

	table, removed := s.resultTable(result)
	if removed > 0 {
		s.auditor.LogSensitiveResultColumns(ctx, params.String(), removed)
	}

	s.auditor.LogQueryExecution(ctx, params.String(), sqlQuery, len(table.Rows))
	logger.Info("Query completed",
		zap.Int("rows", len(table.Rows)),
		zap.Bool("truncated", table.Truncated),
		zap.Duration("elapsed", time.Since(start)))

	if len(table.Rows) == 0 {
		observability.ObserveQuery(observability.OutcomeEmpty)
		summary := SummaryNoRecords
		return models.QueryOutcome{
			Success:  true,
			Results:  table,
			Message:  MessageNoRecords,
			Summary:  &summary,
			SQLQuery: &sqlQuery,
		}
	}

	observability.ObserveQuery(observability.OutcomeSuccess)
	summary := summarize(table, generated.Explanation)
	return models.QueryOutcome{
		Success:  true,
		Results:  table,
		Message:  fmt.Sprintf("Found %d records matching your query.", len(table.Rows)),
		Summary:  &summary,
		SQLQuery: &sqlQuery,
	}
}

// resultTable copies result without the columns the policy excludes, for
// queries such as SELECT * that never name them. It returns how many columns
// were removed. A result left with no columns has no rows either.
func (s *QueryService) resultTable(result *datasource.QueryExecutionResult) (*models.ResultTable, int) {
	table := &models.ResultTable{Columns: []string{}, Rows: []map[string]any{}, Truncated: result.Truncated}

	var dropped []string
	for _, name := range result.ColumnNames() {
		if s.policy.IsSensitive(name) {
			dropped = append(dropped, name)
			continue
		}
		table.Columns = append(table.Columns, name)
	}
	if len(table.Columns) == 0 && len(dropped) > 0 {
		return table, len(dropped)
	}

	for _, row := range result.Rows {
		if len(dropped) == 0 {
			table.Rows = append(table.Rows, row)
			continue
		}
		kept := make(map[string]any, len(table.Columns))
		for k, v := range row {
			if !s.policy.IsSensitive(k) {
				kept[k] = v
			}
		}
		table.Rows = append(table.Rows, kept)
	}
	return table, len(dropped)
}

func summarize(table *models.ResultTable, explanation string) string {
	summary := fmt.Sprintf("Found %d records with %d columns.", len(table.Rows), len(table.Columns))
	if explanation != "" {
		summary += "\n\nThis shows: " + explanation
	}
	return summary
}

func failedOutcome(message string, sqlQuery *string) models.QueryOutcome {
	return models.QueryOutcome{Message: message, SQLQuery: sqlQuery}
}
