package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
)

// SchemaDiscoverer implements datasource.SchemaDiscoverer for SQL Server.
type SchemaDiscoverer struct {
	db     *sql.DB
	logger *zap.Logger
}

// Tables that take part in a foreign key on either side sort first, then by
// table name and column order.
const discoverColumnsQuery = `
SET NOCOUNT ON;
WITH related AS (
    SELECT parent_object_id AS object_id FROM sys.foreign_keys
    UNION
    SELECT referenced_object_id FROM sys.foreign_keys
)
SELECT
    s.name AS table_schema,
    t.name AS table_name,
    c.name AS column_name,
    tp.name AS data_type,
    c.is_nullable,
    c.max_length,
    c.column_id
FROM sys.tables t
INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
INNER JOIN sys.columns c ON c.object_id = t.object_id
INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
WHERE t.is_ms_shipped = 0
  AND s.name NOT IN ('sys', 'INFORMATION_SCHEMA')
  AND t.name NOT LIKE '#%'
ORDER BY
    CASE WHEN t.object_id IN (SELECT object_id FROM related) THEN 0 ELSE 1 END,
    t.name,
    c.column_id
`

// DiscoverColumns returns the columns of all user tables. Columns for which
// exclude returns true are dropped while rows are read.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, exclude func(columnName string) bool) ([]datasource.ColumnMetadata, error) {
	rows, err := s.db.QueryContext(ctx, discoverColumnsQuery)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	excluded := 0
	for rows.Next() {
		var col datasource.ColumnMetadata
		var maxLength int
		err := rows.Scan(
			&col.SchemaName,
			&col.TableName,
			&col.ColumnName,
			&col.DataType,
			&col.IsNullable,
			&maxLength,
			&col.OrdinalPosition,
		)
		if err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		if isSystemSchema(col.SchemaName) || strings.HasPrefix(col.TableName, "#") {
			continue
		}
		if exclude != nil && exclude(col.ColumnName) {
			excluded++
			continue
		}

		col.MaxLength = characterLength(col.DataType, maxLength)
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	s.logger.Debug("Discovered columns",
		zap.Int("columns", len(columns)),
		zap.Int("excluded", excluded))

	return columns, nil
}

const discoverForeignKeysQuery = `
SET NOCOUNT ON;
SELECT TOP (@p1)
    fk.name AS constraint_name,
    SCHEMA_NAME(fk.schema_id) AS source_schema,
    OBJECT_NAME(fk.parent_object_id) AS source_table,
    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
    SCHEMA_NAME(rt.schema_id) AS target_schema,
    OBJECT_NAME(fk.referenced_object_id) AS target_table,
    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
FROM sys.foreign_keys fk
INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
WHERE fk.is_ms_shipped = 0
ORDER BY source_table, fk.name, fkc.constraint_column_id
`

// DiscoverForeignKeys returns foreign key column pairs, reading at most
// scanLimit catalog rows. Pairs touching an excluded column are dropped.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context, exclude func(columnName string) bool, scanLimit int) ([]datasource.ForeignKeyMetadata, error) {
	if scanLimit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, discoverForeignKeysQuery, scanLimit)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		err := rows.Scan(
			&fk.ConstraintName,
			&fk.SourceSchema,
			&fk.SourceTable,
			&fk.SourceColumn,
			&fk.TargetSchema,
			&fk.TargetTable,
			&fk.TargetColumn,
		)
		if err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		if exclude != nil && (exclude(fk.SourceColumn) || exclude(fk.TargetColumn)) {
			continue
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
