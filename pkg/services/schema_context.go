package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// Schema description limits.
const (
	MaxSchemaTables     = 50
	MaxColumnsPerTable  = 20
	MaxForeignKeys      = 100
	ForeignKeyScanLimit = 300
)

// SchemaContextBuilder describes a database for the SQL generation prompt.
type SchemaContextBuilder struct {
	policy ColumnPolicy
	logger *zap.Logger
}

// NewSchemaContextBuilder creates a builder that drops every column the
// policy marks sensitive.
func NewSchemaContextBuilder(policy ColumnPolicy, logger *zap.Logger) *SchemaContextBuilder {
	return &SchemaContextBuilder{policy: policy, logger: logger.Named("schema")}
}

// Build reads the catalog over conn. A failed column query wraps
// apperrors.ErrSchemaUnavailable; a failed foreign key query only drops the
// relationship section. A database without user tables gives an empty,
// valid description.
func (b *SchemaContextBuilder) Build(ctx context.Context, conn datasource.Connection) (*models.SchemaDescription, error) {
	discoverer := conn.SchemaDiscoverer()

	columns, err := discoverer.DiscoverColumns(ctx, b.policy.IsSensitive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaUnavailable, err)
	}

	desc := &models.SchemaDescription{
		Database:    conn.DatabaseName(),
		Tables:      groupTables(columns, b.policy),
		ForeignKeys: []models.ForeignKeyEdge{},
	}
	desc.TotalTables = len(desc.Tables)
	if len(desc.Tables) > MaxSchemaTables {
		desc.Tables = desc.Tables[:MaxSchemaTables]
	}

	fks, err := discoverer.DiscoverForeignKeys(ctx, b.policy.IsSensitive, ForeignKeyScanLimit)
	if err != nil {
		b.logger.Warn("Foreign key discovery failed; describing schema without relationships",
			zap.String("database", desc.Database),
			zap.Error(err))
	} else {
		for _, fk := range fks {
			if b.policy.IsSensitive(fk.SourceColumn) || b.policy.IsSensitive(fk.TargetColumn) {
				continue
			}
			desc.ForeignKeys = append(desc.ForeignKeys, models.ForeignKeyEdge{
				ParentTable:      qualify(fk.SourceSchema, fk.SourceTable),
				ParentColumn:     fk.SourceColumn,
				ReferencedTable:  qualify(fk.TargetSchema, fk.TargetTable),
				ReferencedColumn: fk.TargetColumn,
			})
		}
	}
	desc.TotalForeignKeys = len(desc.ForeignKeys)
	if len(desc.ForeignKeys) > MaxForeignKeys {
		desc.ForeignKeys = desc.ForeignKeys[:MaxForeignKeys]
	}

	b.logger.Debug("Schema described",
		zap.String("database", desc.Database),
		zap.Int("tables", desc.TotalTables),
		zap.Int("foreign_keys", desc.TotalForeignKeys))

	return desc, nil
}

// groupTables groups columns by table in catalog order, then ranks tables by
// column count (largest first, ties keep catalog order) and caps each table's
// column list.
func groupTables(columns []datasource.ColumnMetadata, policy ColumnPolicy) []models.TableDescription {
	index := make(map[string]int)
	var tables []models.TableDescription
	for _, c := range columns {
		if policy.IsSensitive(c.ColumnName) {
			continue
		}
		key := qualify(c.SchemaName, c.TableName)
		i, ok := index[key]
		if !ok {
			i = len(tables)
			index[key] = i
			tables = append(tables, models.TableDescription{Schema: c.SchemaName, Name: c.TableName})
		}
		tables[i].TotalColumns++
		if len(tables[i].Columns) < MaxColumnsPerTable {
			tables[i].Columns = append(tables[i].Columns, models.ColumnDescription{
				Name:      c.ColumnName,
				DataType:  c.DataType,
				Nullable:  c.IsNullable,
				MaxLength: c.MaxLength,
			})
		}
	}

	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].TotalColumns > tables[j].TotalColumns
	})
	if tables == nil {
		tables = []models.TableDescription{}
	}
	return tables
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// Render writes the description as prompt text. Sensitive columns and
// relationships are filtered again here, so a description assembled
// elsewhere cannot leak them.
func (b *SchemaContextBuilder) Render(desc *models.SchemaDescription) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Database: %s\n\n", desc.Database)
	sb.WriteString("Tables and Columns:\n")

	if len(desc.Tables) == 0 {
		sb.WriteString("(no user tables found)\n")
	}
	for _, t := range desc.Tables {
		fmt.Fprintf(&sb, "Table: %s\n", t.QualifiedName())
		for _, c := range t.Columns {
			if b.policy.IsSensitive(c.Name) {
				continue
			}
			nullable := "NOT NULL"
			if c.Nullable {
				nullable = "NULL"
			}
			fmt.Fprintf(&sb, "  - %s (%s, %s)\n", c.Name, c.DataType, nullable)
		}
		if omitted := t.OmittedColumns(); omitted > 0 {
			fmt.Fprintf(&sb, "  - ... and %d more columns\n", omitted)
		}
		sb.WriteString("\n")
	}
	if more := desc.TotalTables - len(desc.Tables); more > 0 {
		fmt.Fprintf(&sb, "... and %d more tables\n\n", more)
	}

	var edges []string
	for _, fk := range desc.ForeignKeys {
		if b.policy.IsSensitive(fk.ParentColumn) || b.policy.IsSensitive(fk.ReferencedColumn) {
			continue
		}
		edges = append(edges, fmt.Sprintf("  - %s.%s -> %s.%s\n",
			fk.ParentTable, fk.ParentColumn, fk.ReferencedTable, fk.ReferencedColumn))
	}
	if len(edges) > 0 {
		sb.WriteString("Foreign Key Relationships:\n")
		for _, e := range edges {
			sb.WriteString(e)
		}
		if more := desc.TotalForeignKeys - len(desc.ForeignKeys); more > 0 {
			fmt.Fprintf(&sb, "  - ... and %d more relationships\n", more)
		}
	}

	return sb.String()
}
