package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

type mockExecutor struct {
	result      *datasource.QueryExecutionResult
	queryErr    error
	affected    int64
	execErr     error
	lastSQL     string
	lastLimit   int
	lastArgs    []any
	executeCall int
}

func (m *mockExecutor) Query(_ context.Context, sqlQuery string, limit int, args ...any) (*datasource.QueryExecutionResult, error) {
	m.lastSQL, m.lastLimit, m.lastArgs = sqlQuery, limit, args
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.result, nil
}

func (m *mockExecutor) Execute(_ context.Context, sqlStatement string, args ...any) (*datasource.ExecuteResult, error) {
	m.executeCall++
	m.lastSQL, m.lastArgs = sqlStatement, args
	if m.execErr != nil {
		return nil, m.execErr
	}
	return &datasource.ExecuteResult{RowsAffected: m.affected}, nil
}

func testRecordsConfig() config.RecordsConfig {
	return config.RecordsConfig{
		Limit:             1000,
		OrderNumberColumn: "ORDERNUMBER",
		CommentColumn:     "ORDER_JRNL_CMT_TXT",
		TrendMarker:       "TREND",
		SortColumn:        "TREND_LAG1_STRNT",
	}
}

func testWriteBackConfig() config.WriteBackConfig {
	return config.WriteBackConfig{
		Table:                  "dbo.OrderTrends",
		KeyColumn:              "OrderNumber",
		PredictedCommentColumn: "Predicted_Comment",
		ReasonColumn:           "Prediction_Reason",
		TimestampColumn:        "Prediction_Date",
	}
}

func journalResult(rows ...map[string]any) *datasource.QueryExecutionResult {
	return &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{
			{Name: "ORDER_JRNL_CMT_TXT"},
			{Name: "ORDERNUMBER"},
			{Name: "INGRD_GRP_NM"},
			{Name: "TREND_LAG2_STRNT"},
			{Name: "TREND_LAG1_STRNT"},
		},
		Rows:     rows,
		RowCount: len(rows),
	}
}

func TestOrderRepository_LoadRecent(t *testing.T) {
	exec := &mockExecutor{result: journalResult(
		map[string]any{"ORDER_JRNL_CMT_TXT": "Standard release", "ORDERNUMBER": "SO-2", "INGRD_GRP_NM": "Dairy", "TREND_LAG2_STRNT": "0.1", "TREND_LAG1_STRNT": "0.15"},
		map[string]any{"ORDER_JRNL_CMT_TXT": "Expedite", "ORDERNUMBER": "SO-1", "INGRD_GRP_NM": "Grain", "TREND_LAG2_STRNT": 0.4, "TREND_LAG1_STRNT": 0.92},
		map[string]any{"ORDER_JRNL_CMT_TXT": "Awaiting credit", "ORDERNUMBER": "SO-3", "INGRD_GRP_NM": "Grain", "TREND_LAG2_STRNT": nil, "TREND_LAG1_STRNT": "n/a"},
		map[string]any{"ORDER_JRNL_CMT_TXT": nil, "ORDERNUMBER": int64(4), "INGRD_GRP_NM": "Dairy", "TREND_LAG2_STRNT": int64(2), "TREND_LAG1_STRNT": nil},
	)}

	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)
	set, err := repo.LoadRecent(context.Background(), exec)
	require.NoError(t, err)

	assert.Equal(t, DefaultRecordsQuery, exec.lastSQL)
	assert.Equal(t, 1000, exec.lastLimit)
	assert.False(t, set.LoadedAt.IsZero())

	// SO-3 has no numeric trends and is dropped; the rest sort by lag 1,
	// highest first, with the record lacking lag 1 last.
	require.Equal(t, 3, set.Len())
	assert.Equal(t, "SO-1", set.Records[0].OrderNumber)
	assert.Equal(t, "SO-2", set.Records[1].OrderNumber)
	assert.Equal(t, "4", set.Records[2].OrderNumber)
	assert.Equal(t, "", set.Records[2].Comment)

	v, ok := set.Records[1].Trends.Get("TREND_LAG1_STRNT")
	require.True(t, ok)
	assert.InDelta(t, 0.15, v, 1e-9)

	_, ok = set.Records[2].Trends.Get("TREND_LAG1_STRNT")
	assert.False(t, ok)

	require.Len(t, set.Records[0].Attributes, 1)
	assert.Equal(t, "INGRD_GRP_NM", set.Records[0].Attributes[0].Name)
	assert.Equal(t, "Grain", set.Records[0].Attributes[0].Value)

	_, found := set.Find("SO-3")
	assert.False(t, found)
}

func TestOrderRepository_LoadRecent_DropsExcludedColumns(t *testing.T) {
	exec := &mockExecutor{result: &datasource.QueryExecutionResult{
		Columns: []datasource.ColumnInfo{
			{Name: "ORDERNUMBER"},
			{Name: "SOLD_TO_NAME"},
			{Name: "INGRD_GRP_NM"},
			{Name: "TREND_LAG1_STRNT"},
			{Name: "SOLD_TO_TREND"},
		},
		Rows: []map[string]any{
			{"ORDERNUMBER": "SO-1", "SOLD_TO_NAME": "ACME Corp", "INGRD_GRP_NM": "Grain", "TREND_LAG1_STRNT": 0.5, "SOLD_TO_TREND": 0.9},
			// Only the excluded trend is present, so the row has no usable trends.
			{"ORDERNUMBER": "SO-2", "SOLD_TO_NAME": "Globex", "INGRD_GRP_NM": "Dairy", "TREND_LAG1_STRNT": nil, "SOLD_TO_TREND": 0.7},
		},
	}}
	exclude := func(name string) bool { return strings.Contains(strings.ToLower(name), "sold_to") }

	set, err := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), exclude).LoadRecent(context.Background(), exec)
	require.NoError(t, err)

	require.Equal(t, 1, set.Len())
	rec := set.Records[0]
	assert.Equal(t, models.Attributes{{Name: "INGRD_GRP_NM", Value: "Grain"}}, rec.Attributes)
	require.Len(t, rec.Trends, 1)
	assert.Equal(t, "TREND_LAG1_STRNT", rec.Trends[0].Name)
}

func TestOrderRepository_LoadRecent_ConfiguredQuery(t *testing.T) {
	cfg := testRecordsConfig()
	cfg.Query = "SELECT ORDERNUMBER, ORDER_JRNL_CMT_TXT, TREND_LAG1_STRNT FROM dbo.OrderHistory"
	cfg.Limit = 50

	exec := &mockExecutor{result: journalResult()}
	repo := NewOrderRepository(cfg, testWriteBackConfig(), nil)

	set, err := repo.LoadRecent(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, cfg.Query, exec.lastSQL)
	assert.Equal(t, 50, exec.lastLimit)
	assert.Equal(t, 0, set.Len())
}

func TestOrderRepository_LoadRecent_NoSortColumn(t *testing.T) {
	cfg := testRecordsConfig()
	cfg.SortColumn = ""

	exec := &mockExecutor{result: journalResult(
		map[string]any{"ORDERNUMBER": "SO-2", "TREND_LAG1_STRNT": 0.1},
		map[string]any{"ORDERNUMBER": "SO-1", "TREND_LAG1_STRNT": 0.9},
	)}
	set, err := NewOrderRepository(cfg, testWriteBackConfig(), nil).LoadRecent(context.Background(), exec)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "SO-2", set.Records[0].OrderNumber)
}

func TestOrderRepository_LoadRecent_QueryError(t *testing.T) {
	exec := &mockExecutor{queryErr: errors.New("Invalid object name 'NEW_ATTRIBUTES_TBL_HIST'")}
	_, err := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil).LoadRecent(context.Background(), exec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load order records")
}

func TestCoerceTrend(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  *float64
	}{
		{"float", 0.5, ptr(0.5)},
		{"int64", int64(3), ptr(3)},
		{"decimal bytes", []byte("12.25"), ptr(12.25)},
		{"numeric string", " 7 ", ptr(7)},
		{"text", "high", nil},
		{"nil", nil, nil},
		{"nan string", "NaN", nil},
		{"inf string", "+Inf", nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coerceTrend(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func ptr(f float64) *float64 { return &f }

func TestOrderRepository_UpdatePrediction(t *testing.T) {
	exec := &mockExecutor{affected: 1}
	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	affected, err := repo.UpdatePrediction(context.Background(), exec, "SO-1001",
		models.PredictionResult{PredictedComment: "Expedite", Reason: "Similar to SO-1"}, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	assert.Equal(t,
		"UPDATE [dbo].[OrderTrends] SET [Predicted_Comment] = @p1, [Prediction_Reason] = @p2, [Prediction_Date] = @p3 "+
			"WHERE [OrderNumber] = @p4 AND (SELECT COUNT(*) FROM [dbo].[OrderTrends] WHERE [OrderNumber] = @p4) = 1",
		exec.lastSQL)
	assert.Equal(t, []any{"Expedite", "Similar to SO-1", at, "SO-1001"}, exec.lastArgs)
}

func TestOrderRepository_UpdatePrediction_NoMatchingRow(t *testing.T) {
	exec := &mockExecutor{affected: 0}
	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)

	_, err := repo.UpdatePrediction(context.Background(), exec, "SO-404", models.PredictionResult{}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "SELECT COUNT(*) AS matches FROM [dbo].[OrderTrends] WHERE [OrderNumber] = @p1", exec.lastSQL)
	assert.Equal(t, []any{"SO-404"}, exec.lastArgs)
}

func TestOrderRepository_UpdatePrediction_DuplicateKeyWritesNothing(t *testing.T) {
	exec := &mockExecutor{
		affected: 0,
		result: &datasource.QueryExecutionResult{
			Columns: []datasource.ColumnInfo{{Name: "matches"}},
			Rows:    []map[string]any{{"matches": int64(7)}},
		},
	}
	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)

	affected, err := repo.UpdatePrediction(context.Background(), exec, "SO-1001", models.PredictionResult{}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousRowKey)
	assert.Zero(t, affected)
	assert.Contains(t, err.Error(), "matches 7 rows")
}

func TestOrderRepository_UpdatePrediction_ReportsMultiRowUpdate(t *testing.T) {
	exec := &mockExecutor{affected: 3}
	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)

	affected, err := repo.UpdatePrediction(context.Background(), exec, "SO-1001", models.PredictionResult{}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousRowKey)
	assert.Equal(t, int64(3), affected)
}

func TestOrderRepository_UpdatePrediction_RejectsInjectedKey(t *testing.T) {
	exec := &mockExecutor{affected: 1}
	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)

	_, err := repo.UpdatePrediction(context.Background(), exec, "' OR '1'='1", models.PredictionResult{}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrUnsafeParameter)
	assert.Equal(t, 0, exec.executeCall)
}

func TestOrderRepository_UpdatePrediction_EmptyKey(t *testing.T) {
	exec := &mockExecutor{affected: 1}
	repo := NewOrderRepository(testRecordsConfig(), testWriteBackConfig(), nil)

	_, err := repo.UpdatePrediction(context.Background(), exec, "  ", models.PredictionResult{}, time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "row key"))
	assert.Equal(t, 0, exec.executeCall)
}
