package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
)

// QueryExecutor provides SQL Server query execution.
type QueryExecutor struct {
	db *sql.DB
}

// Query runs a statement and returns at most limit rows.
// See datasource.QueryExecutor.Query for limit behavior.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int, args ...any) (*datasource.QueryExecutionResult, error) {
	effectiveLimit := datasource.ClampLimit(limit)

	rows, err := e.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]datasource.ColumnInfo, len(columnNames))
	dbTypes := make([]string, len(columnNames))
	for i, colName := range columnNames {
		dbTypes[i] = columnTypes[i].DatabaseTypeName()
		columns[i] = datasource.ColumnInfo{
			Name: colName,
			Type: mapSQLServerType(dbTypes[i]),
		}
	}

	result := &datasource.QueryExecutionResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}
	for rows.Next() {
		if len(result.Rows) == effectiveLimit {
			result.Truncated = true
			break
		}

		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			rowMap[col] = normalizeValue(values[i], dbTypes[i])
		}
		result.Rows = append(result.Rows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// Execute runs a DML statement and reports rows affected. Parameters are
// referenced as @p1, @p2, ... in the statement.
func (e *QueryExecutor) Execute(ctx context.Context, sqlStatement string, args ...any) (*datasource.ExecuteResult, error) {
	execResult, err := e.db.ExecContext(ctx, sqlStatement, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}

	rowsAffected, err := execResult.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return &datasource.ExecuteResult{RowsAffected: rowsAffected}, nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
