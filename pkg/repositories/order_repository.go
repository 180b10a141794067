package repositories

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/models"
	sqlutil "github.com/ekaya-inc/order-insight/pkg/sql"
)

// DefaultRecordsQuery joins order journal comments with the order history
// trend features. Journal types and order statuses limit it to released
// and approved orders.
const DefaultRecordsQuery = `
SELECT TOP 1000
    j.ORDER_JRNL_CMT_TXT,
    hist.ORDERNUMBER,
    hist.ORDERSTRENGTH,
    hist.CUMULSTRENGTH,
    i.INGRD_GRP_NM,
    hist.TREND_LAG12_STRNT,
    hist.TREND_LAG11_STRNT,
    hist.TREND_LAG10_STRNT,
    hist.TREND_LAG9_STRNT,
    hist.TREND_LAG8_STRNT,
    hist.TREND_LAG7_STRNT,
    hist.TREND_LAG6_STRNT,
    hist.TREND_LAG5_STRNT,
    hist.TREND_LAG4_STRNT,
    hist.TREND_LAG3_STRNT,
    hist.TREND_LAG2_STRNT,
    hist.TREND_LAG1_STRNT
FROM NEW_ATTRIBUTES_TBL_HIST hist
INNER JOIN SUS_ORDER_TRANS_HDR h ON h.ORDER_CD = hist.ORDERNUMBER
INNER JOIN SUS_ORDER_TRANS_DETL d ON h.ORDER_HDR_ID = d.ORDER_HDR_ID AND d.INGRD_GRP_ID = hist.INGRD_GRP_ID
INNER JOIN SUS_ORDER_JRNL j ON j.ORDER_HDR_ID = d.ORDER_HDR_ID AND j.INGRD_GRP_ID = d.INGRD_GRP_ID
INNER JOIN SUS_ORDER_JRNL_TYP k ON k.ORDER_JRNL_TYP_ID = j.ORDER_JRNL_TYP_ID
INNER JOIN SUS_INGRD_FMLY_GRP i ON i.INGRD_GRP_ID = hist.INGRD_GRP_ID
WHERE k.ORDER_JRNL_TYP_TXT IN ('Release', 'Comment', 'First Approval', 'Second Approval')
  AND d.ORDER_STATUS_CD IN ('P', 'C', 'I')
  AND d.ORDER_SCORE_FCT <> -2
ORDER BY 1 DESC`

// OrderRepository reads order history and writes predictions back.
// Every call runs on the caller's connection; the repository holds none.
type OrderRepository interface {
	// LoadRecent returns the record set for one prediction request.
	LoadRecent(ctx context.Context, exec datasource.QueryExecutor) (*models.RecordSet, error)
	// UpdatePrediction writes a prediction to the single row whose key column
	// equals rowKey and returns the number of rows the database reports as
	// updated. Returns apperrors.ErrNotFound when no row matches and
	// apperrors.ErrAmbiguousRowKey when the key matches several rows; in that
	// case nothing is written.
	UpdatePrediction(ctx context.Context, exec datasource.QueryExecutor, rowKey string, result models.PredictionResult, at time.Time) (int64, error)
}

type orderRepository struct {
	records   config.RecordsConfig
	writeBack config.WriteBackConfig
	exclude   func(columnName string) bool
	now       func() time.Time
}

// NewOrderRepository creates an OrderRepository for the configured columns.
// Columns for which exclude reports true are dropped from every record as
// rows are read; a nil exclude keeps all columns.
func NewOrderRepository(records config.RecordsConfig, writeBack config.WriteBackConfig, exclude func(columnName string) bool) OrderRepository {
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	return &orderRepository{records: records, writeBack: writeBack, exclude: exclude, now: time.Now}
}

var _ OrderRepository = (*orderRepository)(nil)

func (r *orderRepository) LoadRecent(ctx context.Context, exec datasource.QueryExecutor) (*models.RecordSet, error) {
	query := r.records.Query
	if strings.TrimSpace(query) == "" {
		query = DefaultRecordsQuery
	}

	result, err := exec.Query(ctx, query, r.records.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load order records: %w", err)
	}

	set := &models.RecordSet{
		Records:  buildRecords(result, r.records, r.exclude),
		LoadedAt: r.now().UTC(),
	}
	sortByTrend(set.Records, r.records.SortColumn)
	return set, nil
}

// buildRecords converts query rows into records, dropping excluded columns
// and rows whose trend features are all absent.
func buildRecords(result *datasource.QueryExecutionResult, cfg config.RecordsConfig, exclude func(string) bool) []models.OrderRecord {
	var trendCols, attrCols []string
	for _, name := range result.ColumnNames() {
		switch {
		case strings.EqualFold(name, cfg.OrderNumberColumn), strings.EqualFold(name, cfg.CommentColumn):
		case exclude(name):
		case strings.Contains(name, cfg.TrendMarker):
			trendCols = append(trendCols, name)
		default:
			attrCols = append(attrCols, name)
		}
	}
	orderCol := matchColumn(result.ColumnNames(), cfg.OrderNumberColumn)
	commentCol := matchColumn(result.ColumnNames(), cfg.CommentColumn)

	records := make([]models.OrderRecord, 0, len(result.Rows))
	for _, row := range result.Rows {
		rec := models.OrderRecord{
			OrderNumber: textValue(row[orderCol]),
			Comment:     textValue(row[commentCol]),
			Trends:      make(models.TrendProfile, 0, len(trendCols)),
		}
		for _, col := range trendCols {
			rec.Trends = append(rec.Trends, models.TrendValue{Name: col, Value: coerceTrend(row[col])})
		}
		if rec.Trends.AllAbsent() {
			continue
		}
		for _, col := range attrCols {
			rec.Attributes = append(rec.Attributes, models.Attribute{Name: col, Value: row[col]})
		}
		records = append(records, rec)
	}
	return records
}

func matchColumn(names []string, want string) string {
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return n
		}
	}
	return want
}

// sortByTrend orders records by the named feature, highest first. Records
// without the feature keep their relative order after the others.
func sortByTrend(records []models.OrderRecord, column string) {
	if column == "" || len(records) == 0 {
		return
	}
	if _, ok := findTrend(records[0].Trends, column); !ok {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		vi, okI := records[i].Trends.Get(column)
		vj, okJ := records[j].Trends.Get(column)
		switch {
		case okI && okJ:
			return vi > vj
		default:
			return okI && !okJ
		}
	})
}

func findTrend(p models.TrendProfile, name string) (models.TrendValue, bool) {
	for _, tv := range p {
		if tv.Name == name {
			return tv, true
		}
	}
	return models.TrendValue{}, false
}

// coerceTrend converts a driver value to a finite float, or nil when the
// value is missing or not numeric.
func coerceTrend(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int64:
		f = float64(val)
	case int32:
		f = float64(val)
	case int:
		f = float64(val)
	case int16:
		f = float64(val)
	case uint8:
		f = float64(val)
	case []byte:
		return coerceTrend(string(val))
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func (r *orderRepository) UpdatePrediction(ctx context.Context, exec datasource.QueryExecutor, rowKey string, result models.PredictionResult, at time.Time) (int64, error) {
	if strings.TrimSpace(rowKey) == "" {
		return 0, fmt.Errorf("row key is required for write-back")
	}
	if err := sqlutil.ScreenParameter(r.writeBack.KeyColumn, rowKey); err != nil {
		return 0, err
	}

	table := sqlutil.QuoteQualifiedName(r.writeBack.Table)
	key := sqlutil.QuoteIdentifier(r.writeBack.KeyColumn)

	// The count guard keeps a non-unique key from touching several rows.
	stmt := fmt.Sprintf("UPDATE %s SET %s = @p1, %s = @p2, %s = @p3 WHERE %s = @p4 AND (SELECT COUNT(*) FROM %s WHERE %s = @p4) = 1",
		table,
		sqlutil.QuoteIdentifier(r.writeBack.PredictedCommentColumn),
		sqlutil.QuoteIdentifier(r.writeBack.ReasonColumn),
		sqlutil.QuoteIdentifier(r.writeBack.TimestampColumn),
		key, table, key,
	)

	res, err := exec.Execute(ctx, stmt, result.PredictedComment, result.Reason, at, rowKey)
	if err != nil {
		return 0, fmt.Errorf("failed to write prediction: %w", err)
	}
	switch {
	case res.RowsAffected == 1:
		return 1, nil
	case res.RowsAffected > 1:
		return res.RowsAffected, fmt.Errorf("%s %q updated %d rows: %w",
			r.writeBack.KeyColumn, rowKey, res.RowsAffected, apperrors.ErrAmbiguousRowKey)
	}

	matches, err := r.countMatches(ctx, exec, table, key, rowKey)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", r.writeBack.KeyColumn, rowKey, apperrors.ErrNotFound)
	}
	if matches > 1 {
		return 0, fmt.Errorf("%s %q matches %d rows: %w",
			r.writeBack.KeyColumn, rowKey, matches, apperrors.ErrAmbiguousRowKey)
	}
	return 0, fmt.Errorf("%s %q: %w", r.writeBack.KeyColumn, rowKey, apperrors.ErrNotFound)
}

// countMatches tells a missing key apart from a duplicated one after an
// update touched nothing.
func (r *orderRepository) countMatches(ctx context.Context, exec datasource.QueryExecutor, table, key, rowKey string) (int64, error) {
	res, err := exec.Query(ctx, fmt.Sprintf("SELECT COUNT(*) AS matches FROM %s WHERE %s = @p1", table, key), 1, rowKey)
	if err != nil {
		return 0, err
	}
	if res == nil || len(res.Rows) == 0 {
		return 0, nil
	}
	switch v := res.Rows[0]["matches"].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
