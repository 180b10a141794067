package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/audit"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/llm"
	"github.com/ekaya-inc/order-insight/pkg/models"
	"github.com/ekaya-inc/order-insight/pkg/repositories"
	"github.com/ekaya-inc/order-insight/pkg/retry"
)

var testWriteBack = config.WriteBackConfig{
	Table:                  "dbo.OrderTrends",
	KeyColumn:              "OrderNumber",
	PredictedCommentColumn: "Predicted_Comment",
	ReasonColumn:           "Prediction_Reason",
	TimestampColumn:        "Prediction_Date",
}

func journalRows(rows ...map[string]any) *datasource.QueryExecutionResult {
	return &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{
			{Name: "ORDER_JRNL_CMT_TXT"},
			{Name: "ORDERNUMBER"},
			{Name: "INGRD_GRP_NM"},
			{Name: "TREND_LAG1_STRNT"},
			{Name: "TREND_LAG2_STRNT"},
		},
		Rows:     rows,
		RowCount: len(rows),
	}
}

func sampleJournal() *datasource.QueryExecutionResult {
	return journalRows(
		map[string]any{"ORDER_JRNL_CMT_TXT": nil, "ORDERNUMBER": "100234", "INGRD_GRP_NM": "Grain", "TREND_LAG1_STRNT": 5.0, "TREND_LAG2_STRNT": 4.8},
		map[string]any{"ORDER_JRNL_CMT_TXT": "Released - strength stable", "ORDERNUMBER": "100200", "INGRD_GRP_NM": "Grain", "TREND_LAG1_STRNT": 5.01, "TREND_LAG2_STRNT": 4.79},
		map[string]any{"ORDER_JRNL_CMT_TXT": "Hold - strength falling", "ORDERNUMBER": "100150", "INGRD_GRP_NM": "Dairy", "TREND_LAG1_STRNT": 1.2, "TREND_LAG2_STRNT": 3.9},
		map[string]any{"ORDER_JRNL_CMT_TXT": "Expedite", "ORDERNUMBER": "100101", "INGRD_GRP_NM": "Dairy", "TREND_LAG1_STRNT": 9.4, "TREND_LAG2_STRNT": 2.0},
	)
}

func newPredictionFixture(response string) (*PredictionService, *fakeConnector, *llm.MockTextGenerator) {
	connector := newFakeConnector("Orders")
	connector.conn.exec.result = sampleJournal()
	gen := llm.NewMockTextGenerator(response)
	records := config.RecordsConfig{
		Limit:             1000,
		OrderNumberColumn: "ORDERNUMBER",
		CommentColumn:     "ORDER_JRNL_CMT_TXT",
		TrendMarker:       "TREND",
		SortColumn:        "TREND_LAG1_STRNT",
	}
	repo := repositories.NewOrderRepository(records, testWriteBack, NewSubstringPolicy([]string{"sold_to"}).IsSensitive)
	svc := NewPredictionService(connector, gen, repo, testWriteBack, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }
	svc.loadRetry = &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return svc, connector, gen
}

func TestPredictionService_PredictOrder(t *testing.T) {
	svc, connector, gen := newPredictionFixture("```json\n" +
		`{"predicted_comment": "Released - strength stable", "reason": "Order 100200 has near-identical trends"}` +
		"\n```")

	resp := svc.PredictOrder(context.Background(), testParams(), "100234")

	assert.Equal(t, "100234", resp.OrderNumber)
	assert.Equal(t, "mock-model", resp.Model)
	assert.Equal(t, "Released - strength stable", resp.PredictedComment)
	assert.Equal(t, "Order 100200 has near-identical trends", resp.Reason)
	assert.False(t, resp.IsError())

	assert.Equal(t, 1, connector.calls)
	assert.Equal(t, 1, connector.conn.closed)
	require.Equal(t, 1, gen.GenerateCalls)

	prompt := gen.LastPrompt()
	assert.Contains(t, prompt, "Selected Order Number: 100234")
	assert.Contains(t, prompt, `"INGRD_GRP_NM": "Grain"`)
	assert.Contains(t, prompt, `"comment": "Released - strength stable"`)
	others := prompt[strings.Index(prompt, "Other Recent Orders with Comments"):]
	assert.NotContains(t, others, `"order_number": "100234"`)
}

func TestPredictionService_PredictOrder_SensitiveColumnsNeverReachPrompt(t *testing.T) {
	svc, connector, gen := newPredictionFixture(`{"predicted_comment": "Released", "reason": "r"}`)
	connector.conn.exec.result = &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{
			{Name: "ORDER_JRNL_CMT_TXT"},
			{Name: "ORDERNUMBER"},
			{Name: "SOLD_TO_NAME"},
			{Name: "INGRD_GRP_NM"},
			{Name: "TREND_LAG1_STRNT"},
			{Name: "SOLD_TO_TREND_SCORE"},
		},
		Rows: []map[string]any{
			{"ORDER_JRNL_CMT_TXT": nil, "ORDERNUMBER": "1", "SOLD_TO_NAME": "ACME Corp", "INGRD_GRP_NM": "Grain", "TREND_LAG1_STRNT": 2.0, "SOLD_TO_TREND_SCORE": 8.5},
			{"ORDER_JRNL_CMT_TXT": "Released", "ORDERNUMBER": "2", "SOLD_TO_NAME": "Globex", "INGRD_GRP_NM": "Grain", "TREND_LAG1_STRNT": 2.1, "SOLD_TO_TREND_SCORE": 8.4},
		},
		RowCount: 2,
	}

	resp := svc.PredictOrder(context.Background(), testParams(), "1")
	require.False(t, resp.IsError())

	prompt := gen.LastPrompt()
	assert.Contains(t, prompt, `"INGRD_GRP_NM": "Grain"`)
	assert.NotContains(t, strings.ToLower(prompt), "sold_to")
	assert.NotContains(t, prompt, "ACME Corp")
	assert.NotContains(t, prompt, "Globex")
}

func TestPredictionService_PredictOrder_MissingCredentials(t *testing.T) {
	svc, connector, gen := newPredictionFixture("")
	gen.CredentialsErr = llm.NewMissingAPIKeyError("gemini-2.0-flash", "")

	resp := svc.PredictOrder(context.Background(), testParams(), "100234")

	assert.Equal(t, "Error: "+PredictionMissingConfig, resp.PredictedComment)
	assert.Contains(t, resp.Reason, "LLM_API_KEY")
	assert.Zero(t, connector.calls)
	assert.Zero(t, gen.GenerateCalls)
}

func TestPredictionService_PredictOrder_MissingServer(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")

	resp := svc.PredictOrder(context.Background(), datasource.ConnectionParams{Database: "Orders"}, "100234")

	assert.Equal(t, "Error: "+PredictionMissingConfig, resp.PredictedComment)
	assert.Zero(t, connector.calls)
}

func TestPredictionService_PredictOrder_LoadFailure(t *testing.T) {
	svc, connector, gen := newPredictionFixture("")
	connector.err = apperrors.ErrConnectivity

	resp := svc.PredictOrder(context.Background(), testParams(), "100234")

	assert.Equal(t, "Error: "+PredictionLoadFailed, resp.PredictedComment)
	assert.Equal(t, "Failed to read from SQL Server", resp.Reason)
	assert.Zero(t, gen.GenerateCalls)
}

func TestPredictionService_LoadRecords_RetriesTransientConnectFailure(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	connector.err = errors.New("read tcp 10.0.0.5:1433: connection reset by peer")
	connector.failFirst = 1

	records, err := svc.LoadRecords(context.Background(), testParams())

	require.NoError(t, err)
	assert.Equal(t, 2, connector.calls)
	assert.Positive(t, records.Len())
}

func TestPredictionService_LoadRecords_PermanentFailureNotRetried(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	connector.err = apperrors.ErrConnectivity

	_, err := svc.LoadRecords(context.Background(), testParams())

	require.ErrorIs(t, err, apperrors.ErrConnectivity)
	assert.Equal(t, 1, connector.calls)
}

func TestPredictionService_PredictOrder_QueryFailure(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	connector.conn.exec.queryErr = errors.New("Invalid object name 'SUS_ORDER_JRNL'")

	resp := svc.PredictOrder(context.Background(), testParams(), "100234")

	assert.Equal(t, "Error: "+PredictionLoadFailed, resp.PredictedComment)
	assert.Equal(t, 1, connector.conn.closed)
}

func TestPredictionService_PredictOrder_NoRecords(t *testing.T) {
	svc, connector, gen := newPredictionFixture("")
	connector.conn.exec.result = journalRows()

	resp := svc.PredictOrder(context.Background(), testParams(), "100234")

	assert.Equal(t, "Error: "+PredictionNoData, resp.PredictedComment)
	assert.Zero(t, gen.GenerateCalls)
}

func TestPredictionService_PredictOrder_UnknownOrder(t *testing.T) {
	svc, _, gen := newPredictionFixture("")

	resp := svc.PredictOrder(context.Background(), testParams(), "999999")

	assert.Equal(t, "Error: "+PredictionOrderNotFound, resp.PredictedComment)
	assert.Contains(t, resp.Reason, "999999")
	assert.Zero(t, gen.GenerateCalls)
}

func TestPredictionService_Predict_ModelError(t *testing.T) {
	svc, _, gen := newPredictionFixture("")
	gen.Err = errors.New("upstream returned HTTP 503")

	got := svc.Predict(context.Background(), "2", recordSet(3))

	assert.Equal(t, "Error: "+PredictionFailedSummary, got.PredictedComment)
	assert.Equal(t, "upstream returned HTTP 503", got.Reason)
}

func TestPredictionService_Predict_UnparseableResponse(t *testing.T) {
	svc, _, _ := newPredictionFixture("The order will probably be released.")

	got := svc.Predict(context.Background(), "2", recordSet(3))

	assert.True(t, got.IsError())
	assert.Equal(t, PredictionParseReason, got.Reason)
}

func TestPredictionService_Predict_EmptySetMakesNoCall(t *testing.T) {
	svc, _, gen := newPredictionFixture(`{"predicted_comment": "x", "reason": "y"}`)

	got := svc.Predict(context.Background(), "1", &models.RecordSet{})

	assert.Equal(t, "Error: "+PredictionNoData, got.PredictedComment)
	assert.Zero(t, gen.GenerateCalls)
}

func TestPredictionService_WriteBack(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	connector.conn.exec.affected = 1
	result := models.PredictionResult{PredictedComment: "Released", Reason: "similar to 100200"}

	status := svc.WriteBack(context.Background(), testParams(), "100234", result)

	assert.Empty(t, status.Error)
	assert.Equal(t, int64(1), status.RowsAffected)
	assert.Equal(t, "dbo.OrderTrends", status.Table)
	assert.Equal(t, "100234", status.RowKey)
	require.Len(t, connector.conn.exec.executed, 1)
	assert.Equal(t,
		"UPDATE [dbo].[OrderTrends] SET [Predicted_Comment] = @p1, [Prediction_Reason] = @p2, [Prediction_Date] = @p3 "+
			"WHERE [OrderNumber] = @p4 AND (SELECT COUNT(*) FROM [dbo].[OrderTrends] WHERE [OrderNumber] = @p4) = 1",
		connector.conn.exec.executed[0])
	assert.Equal(t, []any{"Released", "similar to 100200", svc.now(), "100234"}, connector.conn.exec.execArgs[0])
	assert.Equal(t, 1, connector.conn.closed)
}

func TestPredictionService_WriteBack_SkipsSentinel(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")

	status := svc.WriteBack(context.Background(), testParams(), "100234",
		models.NewPredictionError(PredictionFailedSummary, "x"))

	assert.NotEmpty(t, status.Error)
	assert.Zero(t, connector.calls)
}

func TestPredictionService_WriteBack_RejectsInjectedRowKey(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	core, logs := observer.New(zap.WarnLevel)
	svc.auditor = audit.NewSecurityAuditor(zap.New(core))

	status := svc.WriteBack(context.Background(), testParams(), "' OR '1'='1",
		models.PredictionResult{PredictedComment: "Released", Reason: "r"})

	assert.Equal(t, "row key rejected", status.Error)
	assert.Zero(t, connector.calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sql_injection_attempt", logs.All()[0].ContextMap()["event_type"])
}

func TestPredictionService_WriteBack_NoMatchingRow(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	connector.conn.exec.affected = 0

	status := svc.WriteBack(context.Background(), testParams(), "100234",
		models.PredictionResult{PredictedComment: "Released", Reason: "r"})

	assert.Contains(t, status.Error, "not found")
	assert.Zero(t, status.RowsAffected)
}

func TestPredictionService_WriteBack_ReportsAllAffectedRows(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")
	connector.conn.exec.affected = 7

	status := svc.WriteBack(context.Background(), testParams(), "100234",
		models.PredictionResult{PredictedComment: "Released", Reason: "r"})

	assert.Equal(t, int64(7), status.RowsAffected)
	assert.Contains(t, status.Error, "more than one row")
}

func TestPredictionService_WriteBack_RequiresRowKey(t *testing.T) {
	svc, connector, _ := newPredictionFixture("")

	status := svc.WriteBack(context.Background(), testParams(), " ",
		models.PredictionResult{PredictedComment: "Released", Reason: "r"})

	assert.Equal(t, "row key is required for write-back", status.Error)
	assert.Zero(t, connector.calls)
}
